package router

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/seat-reservation/internal/clock"
	"github.com/iliyamo/seat-reservation/internal/handler"
	"github.com/iliyamo/seat-reservation/internal/model"
	"github.com/iliyamo/seat-reservation/internal/repository/memory"
	"github.com/iliyamo/seat-reservation/internal/reservation"
	"github.com/iliyamo/seat-reservation/internal/utils"
)

const (
	jwtSecret     = "router-test-secret"
	adminPassword = "letmein"
)

type server struct {
	t     *testing.T
	e     *echo.Echo
	clock *clock.Manual
	token string
}

func newServer(t *testing.T) *server {
	t.Helper()
	store := memory.New()
	clk := clock.NewManual(time.Date(2026, 5, 1, 18, 0, 0, 0, time.UTC))
	registry := reservation.NewRegistry(store)
	catalog, err := model.ParseCatalog("WLA:1-5,WLB:1-5")
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	if err := registry.Load(context.Background(), catalog); err != nil {
		t.Fatalf("load: %v", err)
	}
	ledger := reservation.NewLedger(store, clk)
	coord := reservation.NewCoordinator(store, registry, ledger, clk,
		reservation.WithHoldTTL(10*time.Minute),
		reservation.WithLogf(t.Logf),
	)
	hash, err := utils.HashPassword(adminPassword, 4)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}

	e := echo.New()
	bh := handler.NewBookingHandler(coord)
	RegisterRoutes(e, bh)
	RegisterPublic(e, bh, nil)
	RegisterAdmin(e, handler.NewAuthHandler(jwtSecret, hash, time.Hour), handler.NewAdminHandler(coord), jwtSecret, nil)
	return &server{t: t, e: e, clock: clk}
}

func (s *server) do(method, path string, body any, out any) int {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			s.t.Fatalf("encode: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if s.token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+s.token)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	if out != nil {
		if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
			s.t.Fatalf("%s %s: decode %q: %v", method, path, rec.Body.String(), err)
		}
	}
	return rec.Code
}

func (s *server) login() {
	s.t.Helper()
	var tok utils.AccessToken
	if code := s.do(http.MethodPost, "/v1/admin/login", echo.Map{"password": adminPassword}, &tok); code != http.StatusOK {
		s.t.Fatalf("login status = %d", code)
	}
	s.token = tok.Token
}

type errBody struct {
	Error string         `json:"error"`
	Code  string         `json:"code"`
	Seats []model.SeatID `json:"seats"`
}

type holdBody struct {
	ID            int64          `json:"id"`
	Status        model.Status   `json:"status"`
	Seats         []model.SeatID `json:"seats"`
	HoldExpiresAt *time.Time     `json:"hold_expires_at"`
	TicketHash    string         `json:"ticket_hash"`
}

func booking(name, phone string, seats ...model.SeatID) echo.Map {
	return echo.Map{"name": name, "phone": phone, "seats": seats}
}

var (
	wla1 = model.SeatID{Region: "WLA", Number: 1}
	wla2 = model.SeatID{Region: "WLA", Number: 2}
	wlb1 = model.SeatID{Region: "WLB", Number: 1}
)

func TestHealth(t *testing.T) {
	s := newServer(t)
	var body struct {
		Status string `json:"status"`
		Seats  int    `json:"seats"`
	}
	if code := s.do(http.MethodGet, "/healthz", nil, &body); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if body.Status != "ok" || body.Seats != 10 {
		t.Fatalf("body = %+v", body)
	}
}

func TestHoldConflictAndCheck(t *testing.T) {
	s := newServer(t)

	var held holdBody
	if code := s.do(http.MethodPost, "/v1/bookings", booking("Ayu", "0812", wla1, wla2), &held); code != http.StatusCreated {
		t.Fatalf("hold status = %d", code)
	}
	if held.Status != model.StatusPending || held.HoldExpiresAt == nil || held.TicketHash != "" {
		t.Fatalf("hold = %+v", held)
	}

	var conflict errBody
	if code := s.do(http.MethodPost, "/v1/bookings", booking("Budi", "0813", wla2, wlb1), &conflict); code != http.StatusConflict {
		t.Fatalf("conflict status = %d", code)
	}
	if conflict.Code != handler.CodeSeatsUnavailable || len(conflict.Seats) != 1 || conflict.Seats[0] != wla2 {
		t.Fatalf("conflict = %+v", conflict)
	}

	var check struct {
		Available   bool           `json:"available"`
		Unavailable []model.SeatID `json:"unavailable"`
	}
	if code := s.do(http.MethodPost, "/v1/seats/check", echo.Map{"seats": []model.SeatID{wla1, wlb1}}, &check); code != http.StatusOK {
		t.Fatalf("check status = %d", code)
	}
	if check.Available || len(check.Unavailable) != 1 || check.Unavailable[0] != wla1 {
		t.Fatalf("check = %+v", check)
	}

	var seats []model.SeatState
	if code := s.do(http.MethodGet, "/v1/seats", nil, &seats); code != http.StatusOK {
		t.Fatalf("seats status = %d", code)
	}
	if len(seats) != 2 || seats[0].Status != model.StatusPending {
		t.Fatalf("seats = %+v", seats)
	}
}

func TestBookingValidation(t *testing.T) {
	s := newServer(t)
	cases := []struct {
		name string
		body echo.Map
		code string
	}{
		{"no name", booking("", "0812", wla1), handler.CodeInvalidRequest},
		{"no seats", booking("Ayu", "0812"), handler.CodeInvalidRequest},
		{"unknown seat", booking("Ayu", "0812", model.SeatID{Region: "VIP", Number: 1}), handler.CodeUnknownSeats},
		{"bad seat", booking("Ayu", "0812", model.SeatID{Region: "WLA", Number: 0}), handler.CodeInvalidRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var body errBody
			if code := s.do(http.MethodPost, "/v1/bookings", tc.body, &body); code != http.StatusBadRequest {
				t.Fatalf("status = %d (%+v)", code, body)
			}
			if body.Code != tc.code {
				t.Fatalf("code = %q, want %q", body.Code, tc.code)
			}
		})
	}
}

func TestAdminRequiresToken(t *testing.T) {
	s := newServer(t)
	if code := s.do(http.MethodGet, "/v1/admin/stats", nil, nil); code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", code)
	}
	if code := s.do(http.MethodPost, "/v1/admin/login", echo.Map{"password": "wrong"}, nil); code != http.StatusUnauthorized {
		t.Fatalf("bad password status = %d, want 401", code)
	}
}

func TestConfirmIssuesTicket(t *testing.T) {
	s := newServer(t)
	var held holdBody
	s.do(http.MethodPost, "/v1/bookings", booking("Ayu", "0812", wla1), &held)

	s.login()
	var confirmed model.Transaction
	path := fmt.Sprintf("/v1/admin/transactions/%d/confirm", held.ID)
	if code := s.do(http.MethodPost, path, nil, &confirmed); code != http.StatusOK {
		t.Fatalf("confirm status = %d", code)
	}
	if confirmed.Status != model.StatusActive || confirmed.TicketHash == "" {
		t.Fatalf("confirmed = %+v", confirmed)
	}

	s.token = ""
	var ticket struct {
		ID     int64        `json:"id"`
		Status model.Status `json:"status"`
		Phone  string       `json:"phone"`
	}
	if code := s.do(http.MethodGet, "/v1/tickets/"+confirmed.TicketHash, nil, &ticket); code != http.StatusOK {
		t.Fatalf("ticket status = %d", code)
	}
	if ticket.ID != held.ID || ticket.Status != model.StatusActive || ticket.Phone != "" {
		t.Fatalf("ticket = %+v", ticket)
	}
	if code := s.do(http.MethodGet, "/v1/tickets/nope", nil, nil); code != http.StatusNotFound {
		t.Fatalf("unknown ticket status = %d", code)
	}
}

func TestConfirmAfterDeadlineIsGone(t *testing.T) {
	s := newServer(t)
	var held holdBody
	s.do(http.MethodPost, "/v1/bookings", booking("Ayu", "0812", wla1), &held)
	s.clock.Advance(11 * time.Minute)

	s.login()
	var body errBody
	path := fmt.Sprintf("/v1/admin/transactions/%d/confirm", held.ID)
	if code := s.do(http.MethodPost, path, nil, &body); code != http.StatusGone {
		t.Fatalf("confirm status = %d", code)
	}
	if body.Code != handler.CodeHoldExpired {
		t.Fatalf("code = %q", body.Code)
	}

	var seats []model.SeatState
	s.do(http.MethodGet, "/v1/seats", nil, &seats)
	if len(seats) != 0 {
		t.Fatalf("expired hold still owns seats: %+v", seats)
	}
}

func TestRevokeThenTerminal(t *testing.T) {
	s := newServer(t)
	s.login()

	var booked model.Transaction
	if code := s.do(http.MethodPost, "/v1/admin/bookings", booking("Citra", "0814", wlb1), &booked); code != http.StatusCreated {
		t.Fatalf("admin book status = %d", code)
	}
	if booked.Status != model.StatusActive || !booked.BookedByAdmin {
		t.Fatalf("booked = %+v", booked)
	}

	path := fmt.Sprintf("/v1/admin/transactions/%d/revoke", booked.ID)
	var revoked model.Transaction
	if code := s.do(http.MethodPost, path, nil, &revoked); code != http.StatusOK {
		t.Fatalf("revoke status = %d", code)
	}
	if revoked.Status != model.StatusRevoked || revoked.RevokedBy != model.ActorAdmin {
		t.Fatalf("revoked = %+v", revoked)
	}

	var body errBody
	if code := s.do(http.MethodPost, path, nil, &body); code != http.StatusConflict || body.Code != handler.CodeAlreadyTerminal {
		t.Fatalf("second revoke = %d %+v", code, body)
	}
	if code := s.do(http.MethodPost, "/v1/admin/transactions/999/revoke", nil, nil); code != http.StatusNotFound {
		t.Fatalf("unknown revoke status = %d", code)
	}
}

func TestCustomerCancelNeedsPhone(t *testing.T) {
	s := newServer(t)
	var held holdBody
	s.do(http.MethodPost, "/v1/bookings", booking("Ayu", "0812", wla1), &held)
	path := fmt.Sprintf("/v1/bookings/%d", held.ID)

	if code := s.do(http.MethodDelete, path, echo.Map{"phone": "0000"}, nil); code != http.StatusNotFound {
		t.Fatalf("wrong phone status = %d", code)
	}
	var cancelled holdBody
	if code := s.do(http.MethodDelete, path, echo.Map{"phone": "0812"}, &cancelled); code != http.StatusOK {
		t.Fatalf("cancel status = %d", code)
	}
	if cancelled.Status != model.StatusRevoked {
		t.Fatalf("cancelled = %+v", cancelled)
	}
	if code := s.do(http.MethodDelete, "/v1/bookings/abc", echo.Map{"phone": "0812"}, nil); code != http.StatusBadRequest {
		t.Fatalf("bad id status = %d", code)
	}
}

func TestListAndStats(t *testing.T) {
	s := newServer(t)
	s.do(http.MethodPost, "/v1/bookings", booking("Ayu", "0812", wla1), nil)
	s.do(http.MethodPost, "/v1/bookings", booking("Budi", "0813", wla2), nil)
	s.login()
	s.do(http.MethodPost, "/v1/admin/bookings", booking("Citra", "0814", wlb1), nil)

	var page model.TransactionPage
	if code := s.do(http.MethodGet, "/v1/admin/transactions?status=pending&per_page=1", nil, &page); code != http.StatusOK {
		t.Fatalf("list status = %d", code)
	}
	if page.Total != 2 || len(page.Items) != 1 || page.PerPage != 1 {
		t.Fatalf("page = %+v", page)
	}
	if page.Items[0].Name != "Budi" {
		t.Fatalf("newest pending first, got %s", page.Items[0].Name)
	}

	if code := s.do(http.MethodGet, "/v1/admin/transactions?search=wlb-1", nil, &page); code != http.StatusOK {
		t.Fatalf("search status = %d", code)
	}
	if page.Total != 1 || page.Items[0].Name != "Citra" {
		t.Fatalf("search page = %+v", page)
	}

	if code := s.do(http.MethodGet, "/v1/admin/transactions?status=bogus", nil, nil); code != http.StatusBadRequest {
		t.Fatalf("bogus status = %d", code)
	}

	var stats map[string]int
	if code := s.do(http.MethodGet, "/v1/admin/stats", nil, &stats); code != http.StatusOK {
		t.Fatalf("stats status = %d", code)
	}
	if stats["pending"] != 2 || stats["active"] != 1 || stats["total"] != 3 || stats["seats"] != 10 {
		t.Fatalf("stats = %+v", stats)
	}

	var one model.Transaction
	path := fmt.Sprintf("/v1/admin/transactions/%d", page.Items[0].ID)
	if code := s.do(http.MethodGet, path, nil, &one); code != http.StatusOK || one.Name != "Citra" {
		t.Fatalf("get = %d %+v", code, one)
	}
}
