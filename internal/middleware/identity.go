package middleware

import "github.com/labstack/echo/v4"

// Subject returns the authenticated subject stored by JWTAuth, or "anon"
// for public requests.
func Subject(c echo.Context) string {
	if s, ok := c.Get(CtxUserID).(string); ok && s != "" {
		return s
	}
	return "anon"
}
