package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/seat-reservation/internal/model"
	"github.com/iliyamo/seat-reservation/internal/reservation"
)

// requestTimeout bounds every store round trip made by a handler.
const requestTimeout = 5 * time.Second

// BookingHandler serves the public seat map, seat checks, holds, customer
// cancellation and ticket lookup.
type BookingHandler struct {
	Coordinator *reservation.Coordinator
}

// NewBookingHandler panics if coord is nil.
func NewBookingHandler(coord *reservation.Coordinator) *BookingHandler {
	if coord == nil {
		panic("nil coordinator passed to NewBookingHandler")
	}
	return &BookingHandler{Coordinator: coord}
}

// ----- DTOs -----

type seatsReq struct {
	Seats []model.SeatID `json:"seats"`
}

type bookReq struct {
	Name  string         `json:"name"`
	Phone string         `json:"phone"`
	Seats []model.SeatID `json:"seats"`
}

type cancelReq struct {
	Phone string `json:"phone"`
}

type holdResp struct {
	ID            int64          `json:"id"`
	Status        model.Status   `json:"status"`
	Seats         []model.SeatID `json:"seats"`
	HoldExpiresAt *time.Time     `json:"hold_expires_at,omitempty"`
	TicketHash    string         `json:"ticket_hash,omitempty"`
}

// ticketResp is the public view of a booking; it omits the phone number.
type ticketResp struct {
	ID            int64          `json:"id"`
	TicketHash    string         `json:"ticket_hash"`
	Name          string         `json:"name"`
	Status        model.Status   `json:"status"`
	Seats         []model.SeatID `json:"seats"`
	Timestamp     time.Time      `json:"timestamp"`
	BookedByAdmin bool           `json:"booked_by_admin"`
}

func toHoldResp(t model.Transaction) holdResp {
	return holdResp{ID: t.ID, Status: t.Status, Seats: t.Seats, HoldExpiresAt: t.HoldExpiresAt, TicketHash: t.TicketHash}
}

// Seats handles GET /v1/seats: every seat owned by a pending or active
// booking, with that status.
func (h *BookingHandler) Seats(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	booked, err := h.Coordinator.Registry().Booked(ctx)
	if err != nil {
		return writeError(c, err)
	}
	if booked == nil {
		booked = []model.SeatState{}
	}
	return c.JSON(http.StatusOK, booked)
}

// CheckSeats handles POST /v1/seats/check.  The answer is advisory; only a
// hold decides ownership.
func (h *BookingHandler) CheckSeats(c echo.Context) error {
	var req seatsReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	seats := model.NormalizeSeats(req.Seats)
	if len(seats) == 0 {
		return badRequest(c, "seats required")
	}
	if missing := h.Coordinator.Registry().Missing(seats); len(missing) > 0 {
		return writeError(c, &reservation.UnknownSeatsError{Seats: missing})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	taken, err := h.Coordinator.Registry().Unavailable(ctx, seats)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"available": len(taken) == 0, "unavailable": seatList(taken)})
}

// Book handles POST /v1/bookings: a customer hold.  The response carries
// the transaction id and hold deadline; the ticket hash appears once an
// admin confirms the booking.
func (h *BookingHandler) Book(c echo.Context) error {
	var req bookReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.Phone) == "" || len(req.Seats) == 0 {
		return badRequest(c, "name, phone and seats required")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	t, err := h.Coordinator.Hold(ctx, req.Seats, model.Customer{Name: req.Name, Phone: req.Phone}, 0)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, toHoldResp(t))
}

// Cancel handles DELETE /v1/bookings/:id.  The caller proves ownership
// with the phone number given at booking time.
func (h *BookingHandler) Cancel(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return badRequest(c, "invalid transaction id")
	}
	var req cancelReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	phone := strings.TrimSpace(req.Phone)
	if phone == "" {
		return badRequest(c, "phone required")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	t, err := h.Coordinator.Ledger().Get(ctx, id)
	if err != nil {
		return writeError(c, err)
	}
	// A mismatched phone reads as not found so ids cannot be enumerated.
	if t.Phone != phone {
		return writeError(c, reservation.ErrNotFound)
	}
	t, err = h.Coordinator.Cancel(ctx, id, model.ActorCustomer)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, toHoldResp(t))
}

// Ticket handles GET /v1/tickets/:hash.
func (h *BookingHandler) Ticket(c echo.Context) error {
	hash := strings.TrimSpace(c.Param("hash"))
	if hash == "" {
		return badRequest(c, "ticket hash required")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	t, err := h.Coordinator.Ledger().GetByTicket(ctx, hash)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, ticketResp{
		ID:            t.ID,
		TicketHash:    t.TicketHash,
		Name:          t.Name,
		Status:        t.Status,
		Seats:         t.Seats,
		Timestamp:     t.Timestamp,
		BookedByAdmin: t.BookedByAdmin,
	})
}

func parseID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, strconv.ErrSyntax
	}
	return id, nil
}
