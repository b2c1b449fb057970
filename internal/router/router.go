// Package router registers the HTTP routes on an echo instance.
package router

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/iliyamo/sports-calendar/internal/handler"
	"github.com/iliyamo/sports-calendar/internal/middleware"
	"github.com/iliyamo/sports-calendar/internal/model"
)

// RegisterRoutes registers the probes and the metrics endpoint.
func RegisterRoutes(e *echo.Echo, h *handler.HealthHandler) {
	e.GET("/healthz", h.Live)
	e.GET("/readyz", h.Ready)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
}

// RegisterAuth registers the token endpoints under /v1/auth and the
// form based sign-in pages.  csrf guards the form posts.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string, csrf echo.MiddlewareFunc) {
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	// refresh rotates the refresh token; refresh-access keeps it
	g.POST("/refresh", a.Refresh)
	g.POST("/refresh-access", a.RefreshAccess)
	// logout takes either a refresh token in the body or the caller's access token
	g.POST("/logout", a.Logout, middleware.OptionalJWT(jwtSecret))

	auth := e.Group("/v1")
	auth.Use(middleware.JWTAuth(jwtSecret))
	auth.Use(middleware.RequireRole(model.RoleAdmin, model.RoleUser))
	auth.GET("/me", a.Me)

	pages := e.Group("", middleware.OptionalJWT(jwtSecret), csrf)
	pages.GET("/login", a.LoginPage)
	pages.POST("/login", a.LoginForm)
	pages.POST("/logout", a.LogoutForm)
}

// RegisterCalendar registers the server-rendered calendar.  The viewer is
// optional; the cancel form needs a signed-in eligible user, which the
// handler checks.
func RegisterCalendar(e *echo.Echo, h *handler.SessionHandler, jwtSecret string, csrf echo.MiddlewareFunc) {
	e.GET("/", func(c echo.Context) error { return c.Redirect(http.StatusFound, "/calendar") })

	g := e.Group("/calendar", middleware.OptionalJWT(jwtSecret), csrf)
	g.GET("", h.Calendar)
	g.GET("/sessions/:id", h.SessionDetail)
	g.POST("/sessions/:id/cancel", h.CancelSubmit)
}

// RegisterAPI registers the session JSON API.  Reads are public and the
// calendar read goes through the response cache; writes require a token.
// limit is applied to every route of the group.
func RegisterAPI(e *echo.Echo, h *handler.SessionHandler, jwtSecret string, cache, limit echo.MiddlewareFunc) {
	pub := e.Group("/v1", middleware.OptionalJWT(jwtSecret), limit)
	pub.GET("/calendar", h.MonthGrid, cache)
	pub.GET("/sessions", h.ListSessions, cache)
	pub.GET("/sessions/:id", h.GetSession)
	pub.GET("/sessions/:id/participants", h.ListParticipants)

	// Detail views are owned by whoever opened them; anonymous viewers
	// can browse but never reach the confirm step.
	pub.POST("/sessions/:id/views", h.OpenView)
	pub.GET("/views/:vid", h.GetView)
	pub.POST("/views/:vid/cancel", h.RequestCancel)
	pub.PUT("/views/:vid/reason", h.SetReason)
	pub.POST("/views/:vid/nevermind", h.Nevermind)
	pub.POST("/views/:vid/confirm", h.ConfirmCancel)
	pub.DELETE("/views/:vid", h.CloseView)

	auth := e.Group("/v1", middleware.JWTAuth(jwtSecret), middleware.RequireRole(model.RoleAdmin, model.RoleUser), limit)
	auth.POST("/sessions", h.CreateSession)
	auth.POST("/sessions/:id/join", h.JoinSession)
	auth.POST("/sessions/:id/cancel", h.CancelSession)
}
