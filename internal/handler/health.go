package handler // HTTP handlers for the booking API

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Health is a simple health-check endpoint used by load balancers and
// monitoring systems to verify that the service is running.  It reports the
// number of seats in the loaded catalog next to "ok" when a registry is
// wired.
func (h *BookingHandler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"status": "ok", "seats": h.Coordinator.Registry().Size()})
}
