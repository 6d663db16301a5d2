package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/seat-reservation/internal/handler"
	"github.com/iliyamo/seat-reservation/internal/middleware"
	"github.com/iliyamo/seat-reservation/internal/utils"
)

// RegisterRoutes registers routes that do not require authentication and
// are not rate limited.
func RegisterRoutes(e *echo.Echo, b *handler.BookingHandler) {
	e.GET("/healthz", b.Health)
}

// RegisterPublic registers the guest booking endpoints.  limit wraps the
// mutating routes (the Redis token bucket in production); pass nil to
// register them bare.
func RegisterPublic(e *echo.Echo, b *handler.BookingHandler, limit echo.MiddlewareFunc) {
	g := e.Group("/v1")
	var mw []echo.MiddlewareFunc
	if limit != nil {
		mw = append(mw, limit)
	}

	g.GET("/seats", b.Seats)
	g.POST("/seats/check", b.CheckSeats, mw...)
	g.POST("/bookings", b.Book, mw...)
	g.DELETE("/bookings/:id", b.Cancel, mw...)
	g.GET("/tickets/:hash", b.Ticket)
}

// RegisterAdmin registers the login route and the admin group.  Everything
// except login requires a valid access token with the ADMIN role.
func RegisterAdmin(e *echo.Echo, a *handler.AuthHandler, h *handler.AdminHandler, jwtSecret string, limit echo.MiddlewareFunc) {
	if limit != nil {
		e.POST("/v1/admin/login", a.Login, limit)
	} else {
		e.POST("/v1/admin/login", a.Login)
	}

	g := e.Group(
		"/v1/admin",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(utils.RoleAdmin),
	)
	g.POST("/bookings", h.Book)
	g.GET("/transactions", h.List)
	g.GET("/transactions/:id", h.Get)
	g.POST("/transactions/:id/confirm", h.Confirm)
	g.POST("/transactions/:id/revoke", h.Revoke)
	g.GET("/stats", h.Stats)
}
