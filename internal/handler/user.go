package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/microwire-quality/internal/config"
	"github.com/iliyamo/microwire-quality/internal/model"
	"github.com/iliyamo/microwire-quality/internal/repository"
	"github.com/iliyamo/microwire-quality/internal/utils"
)

// UserHandler serves the caller's own profile and the admin user CRUD.
type UserHandler struct {
	Cfg    config.Config
	Users  *repository.UserRepo
	Tokens *repository.TokenRepo
}

func NewUserHandler(cfg config.Config, u *repository.UserRepo, t *repository.TokenRepo) *UserHandler {
	return &UserHandler{Cfg: cfg, Users: u, Tokens: t}
}

type updateMeReq struct {
	Username *string `json:"username" validate:"omitempty,min=3,max=64"`
	Phone    *string `json:"phone" validate:"omitempty,phone"`
}

type changePasswordReq struct {
	OldPassword string `json:"old_password" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=8,max=72"`
}

type createUserReq struct {
	Email    string `json:"email" validate:"required,email,max=255"`
	Username string `json:"username" validate:"required,min=3,max=64"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	Phone    string `json:"phone" validate:"omitempty,phone"`
	Role     string `json:"role" validate:"omitempty,oneof=USER ADMIN"`
}

type updateUserReq struct {
	Username *string `json:"username" validate:"omitempty,min=3,max=64"`
	Phone    *string `json:"phone" validate:"omitempty,phone"`
	Role     *string `json:"role" validate:"omitempty,oneof=USER ADMIN"`
	IsActive *bool   `json:"is_active"`
}

// Me returns the caller's profile.
func (h *UserHandler) Me(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()
	u, err := h.Users.GetByID(ctx, uid)
	if err != nil {
		return respondError(c, err, "user")
	}
	return c.JSON(http.StatusOK, u)
}

// UpdateMe changes the caller's username or phone.
func (h *UserHandler) UpdateMe(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req updateMeReq
	if err := bindValid(c, &req); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()
	if err := h.Users.Update(ctx, uid, repository.UserUpdate{Username: req.Username, Phone: req.Phone}); err != nil {
		return respondError(c, err, "user")
	}
	u, err := h.Users.GetByID(ctx, uid)
	if err != nil {
		return respondError(c, err, "user")
	}
	return c.JSON(http.StatusOK, u)
}

// ChangePassword verifies the old password, stores the new one and signs
// the user out of every other session.
func (h *UserHandler) ChangePassword(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req changePasswordReq
	if err := bindValid(c, &req); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	u, err := h.Users.GetByID(ctx, uid)
	if err != nil {
		return respondError(c, err, "user")
	}
	if !utils.VerifyPassword(u.PasswordHash, req.OldPassword) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "old password does not match"})
	}
	if err := h.Users.UpdatePassword(ctx, uid, req.NewPassword, h.Cfg.BcryptCost); err != nil {
		return respondError(c, err, "user")
	}
	if err := h.Tokens.RevokeAllForUser(ctx, uid); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// List returns users filtered by ?keyword= and ?role=.
func (h *UserHandler) List(c echo.Context) error {
	p := pageFrom(c)
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()
	users, total, err := h.Users.List(ctx, repository.UserFilter{
		Keyword: c.QueryParam("keyword"),
		Role:    strings.ToUpper(strings.TrimSpace(c.QueryParam("role"))),
		Page:    p,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pageOf(users, total, p))
}

func (h *UserHandler) Get(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()
	u, err := h.Users.GetByID(ctx, id)
	if err != nil {
		return respondError(c, err, "user")
	}
	return c.JSON(http.StatusOK, u)
}

func (h *UserHandler) Create(c echo.Context) error {
	var req createUserReq
	if err := bindValid(c, &req); err != nil {
		return err
	}
	if req.Role == "" {
		req.Role = model.RoleUser
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()
	id, err := h.Users.Create(ctx, repository.NewUser{
		Email:    req.Email,
		Username: req.Username,
		Phone:    req.Phone,
		Password: req.Password,
		Role:     req.Role,
	}, h.Cfg.BcryptCost)
	if err != nil {
		return respondError(c, err, "user")
	}
	u, err := h.Users.GetByID(ctx, id)
	if err != nil {
		return respondError(c, err, "user")
	}
	return c.JSON(http.StatusCreated, u)
}

// Update edits a user.  Administrators cannot demote or deactivate
// themselves.
func (h *UserHandler) Update(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	var req updateUserReq
	if err := bindValid(c, &req); err != nil {
		return err
	}
	if self, _ := getUserID(c); self == id {
		if (req.Role != nil && *req.Role != model.RoleAdmin) || (req.IsActive != nil && !*req.IsActive) {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "cannot demote or deactivate yourself"})
		}
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()
	if err := h.Users.Update(ctx, id, repository.UserUpdate{
		Username: req.Username,
		Phone:    req.Phone,
		Role:     req.Role,
		IsActive: req.IsActive,
	}); err != nil {
		return respondError(c, err, "user")
	}
	if req.IsActive != nil && !*req.IsActive {
		if err := h.Tokens.RevokeAllForUser(ctx, id); err != nil {
			return err
		}
	}
	u, err := h.Users.GetByID(ctx, id)
	if err != nil {
		return respondError(c, err, "user")
	}
	return c.JSON(http.StatusOK, u)
}

func (h *UserHandler) Delete(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	if self, _ := getUserID(c); self == id {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "cannot delete yourself"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()
	if err := h.Users.Delete(ctx, id); err != nil {
		return respondError(c, err, "user")
	}
	return c.NoContent(http.StatusNoContent)
}
