package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/microwire-quality/internal/handler"
	"github.com/iliyamo/microwire-quality/internal/middleware"
	"github.com/iliyamo/microwire-quality/internal/model"
)

// Handlers bundles every HTTP handler the API exposes.
type Handlers struct {
	Health       *handler.HealthHandler
	Auth         *handler.AuthHandler
	Users        *handler.UserHandler
	Devices      *handler.DeviceHandler
	Wires        *handler.WireMaterialHandler
	Scenarios    *handler.ScenarioHandler
	Questions    *handler.QuestionHandler
	Chat         *handler.ChatHandler
	Predictions  *handler.PredictionHandler
	Traceability *handler.TraceabilityHandler
}

// Middlewares are the redis-backed middlewares shared by the /v1 routes.
// Either may be nil, in which case the routes run without it.
type Middlewares struct {
	RateLimit  echo.MiddlewareFunc
	StatsCache echo.MiddlewareFunc
}

// RegisterRoutes registers routes that do not require authentication.
func RegisterRoutes(e *echo.Echo, h Handlers) {
	e.GET("/healthz", h.Health.Health)
}

// RegisterAPI mounts the versioned API.  Every /v1 route passes the rate
// limiter; /v1/auth is public, the rest require a valid access token and
// /v1/admin additionally the ADMIN role.
func RegisterAPI(e *echo.Echo, h Handlers, mw Middlewares, jwtSecret string) {
	v1 := e.Group("/v1", optional(mw.RateLimit))

	// Unauthenticated operations exchange credentials or refresh tokens.
	a := v1.Group("/auth")
	a.POST("/register", h.Auth.Register)
	a.POST("/login", h.Auth.Login)
	a.POST("/refresh", h.Auth.Refresh)
	a.POST("/logout", h.Auth.Logout)

	auth := v1.Group("", middleware.JWTAuth(jwtSecret), middleware.RequireRole(model.RoleUser, model.RoleAdmin))
	registerAuthenticated(auth, h, mw)

	admin := v1.Group("/admin", middleware.JWTAuth(jwtSecret), middleware.RequireRole(model.RoleAdmin))
	registerAdmin(admin, h)
}

func registerAuthenticated(g *echo.Group, h Handlers, mw Middlewares) {
	g.GET("/me", h.Users.Me)
	g.PUT("/me", h.Users.UpdateMe)
	g.PUT("/me/password", h.Users.ChangePassword)

	g.GET("/devices", h.Devices.List)
	g.GET("/devices/:id", h.Devices.Get)
	g.POST("/devices/:id/heartbeat", h.Devices.Heartbeat)

	g.GET("/wire-materials", h.Wires.List)
	g.GET("/wire-materials/:id", h.Wires.Get)

	g.GET("/scenarios", h.Scenarios.List)
	g.GET("/scenarios/:id", h.Scenarios.Get)

	g.POST("/questions", h.Questions.Create)
	g.GET("/questions", h.Questions.ListMine)
	g.GET("/questions/:id", h.Questions.Get)
	g.PUT("/questions/:id/close", h.Questions.Close)

	g.POST("/chat/sessions", h.Chat.CreateSession)
	g.GET("/chat/sessions", h.Chat.ListSessions)
	g.GET("/chat/sessions/:id/messages", h.Chat.Messages)
	g.POST("/chat/sessions/:id/messages", h.Chat.Send)
	g.DELETE("/chat/sessions/:id", h.Chat.DeleteSession)

	g.POST("/predictions", h.Predictions.Predict)

	g.GET("/traceability/statistics", h.Traceability.Statistics, optional(mw.StatsCache))
}

func registerAdmin(g *echo.Group, h Handlers) {
	g.GET("/users", h.Users.List)
	g.POST("/users", h.Users.Create)
	g.GET("/users/:id", h.Users.Get)
	g.PUT("/users/:id", h.Users.Update)
	g.DELETE("/users/:id", h.Users.Delete)

	g.POST("/devices", h.Devices.Create)
	g.PUT("/devices/:id", h.Devices.Update)
	g.DELETE("/devices/:id", h.Devices.Delete)

	g.POST("/wire-materials", h.Wires.Create)
	g.PUT("/wire-materials/:id", h.Wires.Update)
	g.DELETE("/wire-materials/:id", h.Wires.Delete)

	g.POST("/scenarios", h.Scenarios.Create)
	g.PUT("/scenarios/:id", h.Scenarios.Update)
	g.DELETE("/scenarios/:id", h.Scenarios.Delete)

	g.GET("/questions", h.Questions.ListAll)
	g.PUT("/questions/:id/answer", h.Questions.Answer)
	g.DELETE("/questions/:id", h.Questions.Delete)

	// Manual triggers for the scheduled jobs.
	g.POST("/reports/daily", h.Traceability.TriggerDailyReport)
	g.POST("/quality/detect", h.Traceability.DetectQualityIssues)
}

func optional(mw echo.MiddlewareFunc) echo.MiddlewareFunc {
	if mw == nil {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	return mw
}
