package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/seat-reservation/internal/model"
	"github.com/iliyamo/seat-reservation/internal/reservation"
)

// Machine-readable error codes carried in the "code" field.
const (
	CodeInvalidRequest    = "invalid_request"
	CodeUnknownSeats      = "unknown_seats"
	CodeNotFound          = "not_found"
	CodeSeatsUnavailable  = "seats_unavailable"
	CodeAlreadyTerminal   = "already_terminal"
	CodeInvalidTransition = "invalid_transition"
	CodeHoldExpired       = "hold_expired"
	CodeStoreUnavailable  = "store_unavailable"
	CodeInternal          = "internal"
)

func fail(c echo.Context, status int, code, msg string) error {
	return c.JSON(status, echo.Map{"error": msg, "code": code})
}

func badRequest(c echo.Context, msg string) error {
	return fail(c, http.StatusBadRequest, CodeInvalidRequest, msg)
}

// writeError maps a reservation error onto the JSON error body.
func writeError(c echo.Context, err error) error {
	var taken *reservation.SeatsUnavailableError
	var unknown *reservation.UnknownSeatsError
	switch {
	case errors.As(err, &taken):
		return c.JSON(http.StatusConflict, echo.Map{
			"error": err.Error(),
			"code":  CodeSeatsUnavailable,
			"seats": seatList(taken.Seats),
		})
	case errors.As(err, &unknown):
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error": err.Error(),
			"code":  CodeUnknownSeats,
			"seats": seatList(unknown.Seats),
		})
	case errors.Is(err, reservation.ErrInvalidRequest):
		return fail(c, http.StatusBadRequest, CodeInvalidRequest, err.Error())
	case errors.Is(err, reservation.ErrNotFound):
		return fail(c, http.StatusNotFound, CodeNotFound, "transaction not found")
	case errors.Is(err, reservation.ErrAlreadyTerminal):
		return fail(c, http.StatusConflict, CodeAlreadyTerminal, err.Error())
	case errors.Is(err, reservation.ErrInvalidTransition):
		return fail(c, http.StatusConflict, CodeInvalidTransition, err.Error())
	case errors.Is(err, reservation.ErrHoldExpired):
		return fail(c, http.StatusGone, CodeHoldExpired, err.Error())
	case errors.Is(err, reservation.ErrStoreUnavailable), errors.Is(err, context.DeadlineExceeded):
		c.Logger().Errorf("store: %v", err)
		return fail(c, http.StatusServiceUnavailable, CodeStoreUnavailable, "store unavailable, retry later")
	}
	c.Logger().Errorf("unhandled: %v", err)
	return fail(c, http.StatusInternalServerError, CodeInternal, "internal error")
}

func seatList(ids []model.SeatID) []model.SeatID {
	if ids == nil {
		return []model.SeatID{}
	}
	return ids
}
