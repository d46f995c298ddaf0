package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/microwire-quality/internal/middleware"
	"github.com/iliyamo/microwire-quality/internal/model"
	"github.com/iliyamo/microwire-quality/internal/repository"
)

// QuestionHandler lets users ask quality questions and administrators
// answer them.
type QuestionHandler struct {
	Questions *repository.QuestionRepo
}

func NewQuestionHandler(q *repository.QuestionRepo) *QuestionHandler {
	return &QuestionHandler{Questions: q}
}

type questionReq struct {
	Title   string `json:"title" validate:"required,max=200"`
	Content string `json:"content" validate:"required,max=5000"`
}

type answerReq struct {
	Answer string `json:"answer" validate:"required,max=5000"`
}

func (h *QuestionHandler) Create(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req questionReq
	if err := bindValid(c, &req); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()
	q := &model.Question{UserID: uid, Title: strings.TrimSpace(req.Title), Content: strings.TrimSpace(req.Content)}
	if err := h.Questions.Create(ctx, q); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, q)
}

// ListMine returns the caller's questions, optionally by ?status=.
func (h *QuestionHandler) ListMine(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	return h.list(c, uid)
}

// ListAll is the administrator view over every user's questions.
func (h *QuestionHandler) ListAll(c echo.Context) error {
	return h.list(c, 0)
}

func (h *QuestionHandler) list(c echo.Context, uid uint64) error {
	p := pageFrom(c)
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()
	items, total, err := h.Questions.List(ctx, repository.QuestionFilter{
		UserID: uid,
		Status: strings.ToUpper(strings.TrimSpace(c.QueryParam("status"))),
		Page:   p,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pageOf(items, total, p))
}

// Get returns a question to its author or to any administrator.
func (h *QuestionHandler) Get(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := parseID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()
	var q *model.Question
	if middleware.Role(c) == model.RoleAdmin {
		q, err = h.Questions.GetByID(ctx, id)
	} else {
		q, err = h.Questions.GetByIDAndUser(ctx, id, uid)
	}
	if err != nil {
		return respondError(c, err, "question")
	}
	return c.JSON(http.StatusOK, q)
}

// Close lets the author mark a question as resolved.
func (h *QuestionHandler) Close(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := parseID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()
	if err := h.Questions.Close(ctx, id, uid); err != nil {
		return respondError(c, err, "question")
	}
	return c.NoContent(http.StatusNoContent)
}

// Answer stores an administrator's answer; closed questions give 409.
func (h *QuestionHandler) Answer(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	var req answerReq
	if err := bindValid(c, &req); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()
	if err := h.Questions.Answer(ctx, id, strings.TrimSpace(req.Answer)); err != nil {
		return respondError(c, err, "question")
	}
	q, err := h.Questions.GetByID(ctx, id)
	if err != nil {
		return respondError(c, err, "question")
	}
	return c.JSON(http.StatusOK, q)
}

func (h *QuestionHandler) Delete(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()
	if err := h.Questions.Delete(ctx, id); err != nil {
		return respondError(c, err, "question")
	}
	return c.NoContent(http.StatusNoContent)
}
