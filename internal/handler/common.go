package handler // HTTP handlers for the quality API

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/microwire-quality/internal/middleware"
	"github.com/iliyamo/microwire-quality/internal/repository"
)

// dbTimeout bounds the database work of a single request.
const dbTimeout = 5 * time.Second

var errNoUser = errors.New("invalid user_id in context")

// getUserID returns the id JWTAuth stored in the context.
func getUserID(c echo.Context) (uint64, error) {
	id, ok := middleware.UserID(c)
	if !ok {
		return 0, errNoUser
	}
	return id, nil
}

// parseID reads a positive numeric path parameter.
func parseID(c echo.Context, name string) (uint64, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid %s", name)
	}
	return id, nil
}

// pageFrom reads ?page= and ?size=, clamped by repository.NewPage.
func pageFrom(c echo.Context) repository.Page {
	n, _ := strconv.Atoi(c.QueryParam("page"))
	s, _ := strconv.Atoi(c.QueryParam("size"))
	return repository.NewPage(n, s)
}

type listResp struct {
	Items any   `json:"items"`
	Total int64 `json:"total"`
	Page  int   `json:"page"`
	Size  int   `json:"size"`
}

func pageOf(items any, total int64, p repository.Page) listResp {
	return listResp{Items: items, Total: total, Page: p.Number, Size: p.Size}
}

// bindValid binds the request body and runs the registered validator.  The
// returned error is a 400 *echo.HTTPError ready to be returned as is.
func bindValid(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if err := c.Validate(req); err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			return echo.NewHTTPError(http.StatusBadRequest, echo.Map{"error": "validation failed", "fields": verr.Fields})
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}

// respondError maps repository sentinels to responses.  Anything else is
// returned wrapped so the HTTP error handler logs it and answers 500.
func respondError(c echo.Context, err error, what string) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": what + " not found"})
	case errors.Is(err, repository.ErrForbidden):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	case errors.Is(err, repository.ErrEmailExists),
		errors.Is(err, repository.ErrUsernameExists):
		return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
	case errors.Is(err, repository.ErrConflict):
		return c.JSON(http.StatusConflict, echo.Map{"error": what + " conflicts with existing data"})
	case errors.Is(err, repository.ErrInvalidReference):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": what + " references a missing record"})
	}
	return fmt.Errorf("%s: %w", what, err)
}

// ErrorHandler answers unhandled errors with {"error": ...} and logs server
// faults.
func ErrorHandler(log *slog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		code := http.StatusInternalServerError
		msg := "internal server error"
		var body echo.Map
		var he *echo.HTTPError
		if errors.As(err, &he) {
			code = he.Code
			switch m := he.Message.(type) {
			case string:
				msg = m
			case echo.Map:
				body = m
			default:
				msg = http.StatusText(code)
			}
		}
		if code >= 500 {
			log.Error("request failed",
				"method", c.Request().Method,
				"path", c.Request().URL.Path,
				"request_id", middleware.RequestIDFrom(c),
				"err", err)
		}
		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(code)
			return
		}
		if body == nil {
			body = echo.Map{"error": msg}
		}
		_ = c.JSON(code, body)
	}
}
