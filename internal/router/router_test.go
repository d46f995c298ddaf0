package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"

	"github.com/iliyamo/microwire-quality/internal/handler"
)

func newTestEcho() *echo.Echo {
	e := echo.New()
	h := Handlers{
		Health:       &handler.HealthHandler{},
		Auth:         &handler.AuthHandler{},
		Users:        &handler.UserHandler{},
		Devices:      &handler.DeviceHandler{},
		Wires:        &handler.WireMaterialHandler{},
		Scenarios:    &handler.ScenarioHandler{},
		Questions:    &handler.QuestionHandler{},
		Chat:         &handler.ChatHandler{},
		Predictions:  &handler.PredictionHandler{},
		Traceability: &handler.TraceabilityHandler{},
	}
	RegisterRoutes(e, h)
	RegisterAPI(e, h, Middlewares{}, "0123456789abcdef0123")
	return e
}

func TestRoutesRegistered(t *testing.T) {
	e := newTestEcho()
	got := map[string]bool{}
	for _, r := range e.Routes() {
		got[r.Method+" "+r.Path] = true
	}
	for _, want := range []string{
		"GET /healthz",
		"POST /v1/auth/login",
		"GET /v1/traceability/statistics",
		"POST /v1/chat/sessions/:id/messages",
		"POST /v1/predictions",
		"POST /v1/admin/reports/daily",
		"POST /v1/admin/quality/detect",
		"DELETE /v1/admin/users/:id",
	} {
		assert.True(t, got[want], want)
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	e := newTestEcho()
	for _, path := range []string{"/v1/me", "/v1/admin/users", "/v1/traceability/statistics"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
	}
}
