package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/seat-reservation/internal/model"
	"github.com/iliyamo/seat-reservation/internal/reservation"
)

// AdminHandler serves the authenticated admin views: direct bookings,
// the transaction list, confirmation, revocation and status counts.  JWT
// and role checks are done by middleware.
type AdminHandler struct {
	Coordinator *reservation.Coordinator
}

// NewAdminHandler panics if coord is nil.
func NewAdminHandler(coord *reservation.Coordinator) *AdminHandler {
	if coord == nil {
		panic("nil coordinator passed to NewAdminHandler")
	}
	return &AdminHandler{Coordinator: coord}
}

// Book handles POST /v1/admin/bookings.  The booking starts active with a
// ticket hash and never overrides an existing hold.
func (h *AdminHandler) Book(c echo.Context) error {
	var req bookReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.Phone) == "" || len(req.Seats) == 0 {
		return badRequest(c, "name, phone and seats required")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	t, err := h.Coordinator.AdminBook(ctx, req.Seats, model.Customer{Name: req.Name, Phone: req.Phone})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, t)
}

// List handles GET /v1/admin/transactions?status=&search=&page=&per_page=.
// status "all" or empty lists every status.
func (h *AdminHandler) List(c echo.Context) error {
	f := model.TransactionFilter{Search: c.QueryParam("search")}
	if s := strings.ToLower(strings.TrimSpace(c.QueryParam("status"))); s != "" && s != "all" {
		f.Status = model.Status(s)
	}
	var err error
	if f.Page, err = intQuery(c, "page"); err != nil {
		return badRequest(c, "invalid page")
	}
	if f.PerPage, err = intQuery(c, "per_page"); err != nil {
		return badRequest(c, "invalid per_page")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	page, err := h.Coordinator.Ledger().List(ctx, f)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, page)
}

// Get handles GET /v1/admin/transactions/:id.
func (h *AdminHandler) Get(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return badRequest(c, "invalid transaction id")
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	t, err := h.Coordinator.Ledger().Get(ctx, id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, t)
}

// Confirm handles POST /v1/admin/transactions/:id/confirm.  A hold past
// its deadline is expired on the spot and reported as 410.
func (h *AdminHandler) Confirm(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return badRequest(c, "invalid transaction id")
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	t, err := h.Coordinator.Confirm(ctx, id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, t)
}

// Revoke handles POST /v1/admin/transactions/:id/revoke.  It covers both
// rejecting a pending hold and revoking an active booking.
func (h *AdminHandler) Revoke(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return badRequest(c, "invalid transaction id")
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	t, err := h.Coordinator.Cancel(ctx, id, model.ActorAdmin)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, t)
}

// Stats handles GET /v1/admin/stats.
func (h *AdminHandler) Stats(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	counts, err := h.Coordinator.Ledger().Stats(ctx)
	if err != nil {
		return writeError(c, err)
	}
	total := 0
	for _, n := range counts {
		total += n
	}
	return c.JSON(http.StatusOK, echo.Map{
		"pending": counts[model.StatusPending],
		"active":  counts[model.StatusActive],
		"expired": counts[model.StatusExpired],
		"revoked": counts[model.StatusRevoked],
		"total":   total,
		"seats":   h.Coordinator.Registry().Size(),
	})
}

// intQuery parses an optional integer query parameter; absent means 0.
func intQuery(c echo.Context, name string) (int, error) {
	v := strings.TrimSpace(c.QueryParam(name))
	if v == "" {
		return 0, nil
	}
	return strconv.Atoi(v)
}
