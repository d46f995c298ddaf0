package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/microwire-quality/internal/model"
	"github.com/iliyamo/microwire-quality/internal/repository"
	"github.com/iliyamo/microwire-quality/internal/service"
)

// Asker sends a user message to the assistant and returns the reply.
type Asker interface {
	Ask(ctx context.Context, userID, sessionID uint64, content string) (*model.ChatMessage, error)
}

// ChatHandler serves assistant sessions and their messages.
type ChatHandler struct {
	Chats     *repository.ChatRepo
	Assistant Asker
	// Timeout bounds a whole Send, including the assistant call.
	Timeout time.Duration
}

func NewChatHandler(chats *repository.ChatRepo, assistant Asker, timeout time.Duration) *ChatHandler {
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	return &ChatHandler{Chats: chats, Assistant: assistant, Timeout: timeout}
}

type sessionReq struct {
	Title string `json:"title" validate:"max=200"`
}

type messageReq struct {
	Content string `json:"content" validate:"required,max=4000"`
}

func (h *ChatHandler) CreateSession(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req sessionReq
	if err := bindValid(c, &req); err != nil {
		return err
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = "New chat"
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()
	s := &model.ChatSession{UserID: uid, Title: title}
	if err := h.Chats.CreateSession(ctx, s); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, s)
}

func (h *ChatHandler) ListSessions(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()
	items, err := h.Chats.ListSessions(ctx, uid)
	if err != nil {
		return err
	}
	if items == nil {
		items = []*model.ChatSession{}
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// Messages returns the full history of one of the caller's sessions.
func (h *ChatHandler) Messages(c echo.Context) error {
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
	if _, err := h.Chats.GetSession(ctx, id, uid); err != nil {
		return respondError(c, err, "chat session")
	}
	items, err := h.Chats.RecentMessages(ctx, id, 0)
	if err != nil {
		return err
	}
	if items == nil {
		items = []model.ChatMessage{}
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// Send asks the assistant within a session and returns its reply.
func (h *ChatHandler) Send(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := parseID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	var req messageReq
	if err := bindValid(c, &req); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), h.Timeout)
	defer cancel()
	reply, err := h.Assistant.Ask(ctx, uid, id, strings.TrimSpace(req.Content))
	switch {
	case err == nil:
		return c.JSON(http.StatusOK, reply)
	case errors.Is(err, service.ErrAssistantDisabled):
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "assistant is not configured"})
	case errors.Is(err, service.ErrAssistantFailed):
		return c.JSON(http.StatusBadGateway, echo.Map{"error": "assistant unavailable, try again later"})
	}
	return respondError(c, err, "chat session")
}

func (h *ChatHandler) DeleteSession(c echo.Context) error {
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
	if err := h.Chats.DeleteSession(ctx, id, uid); err != nil {
		return respondError(c, err, "chat session")
	}
	return c.NoContent(http.StatusNoContent)
}
