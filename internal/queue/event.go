// Package queue defines the booking event payload exchanged over RabbitMQ
// and the background consumer that appends it to the booking audit log.
package queue

import (
	"fmt"
	"strings"
	"time"

	"github.com/iliyamo/seat-reservation/internal/model"
	"github.com/iliyamo/seat-reservation/internal/reservation"
)

// BookingQueue is the durable queue every booking event is routed to.
const BookingQueue = "booking.events"

// BookingEvent is published after a booking mutation commits.  It carries
// enough for downstream consumers to log or notify without querying the
// primary store.
type BookingEvent struct {
	Type          string   `json:"type"` // booking.held, booking.confirmed, ...
	TransactionID int64    `json:"transaction_id"`
	Name          string   `json:"name"`
	Phone         string   `json:"phone"`
	Status        string   `json:"status"`
	Seats         []string `json:"seats"`
	TicketHash    string   `json:"ticket_hash,omitempty"`
	BookedByAdmin bool     `json:"booked_by_admin"`
	Actor         string   `json:"actor"`
	HoldExpiresAt string   `json:"hold_expires_at,omitempty"`
	OccurredAt    string   `json:"occurred_at"`
}

// NewBookingEvent converts a committed reservation event to its wire form.
func NewBookingEvent(ev reservation.Event) BookingEvent {
	t := ev.Transaction
	out := BookingEvent{
		Type:          string(ev.Type),
		TransactionID: t.ID,
		Name:          t.Name,
		Phone:         t.Phone,
		Status:        string(t.Status),
		Seats:         model.SeatLabels(t.Seats),
		TicketHash:    t.TicketHash,
		BookedByAdmin: t.BookedByAdmin,
		Actor:         string(ev.Actor),
		OccurredAt:    ev.At.UTC().Format(time.RFC3339),
	}
	if t.HoldExpiresAt != nil {
		out.HoldExpiresAt = t.HoldExpiresAt.UTC().Format(time.RFC3339)
	}
	return out
}

// LogLine renders the event as one line of the booking audit log.
func (e BookingEvent) LogLine() string {
	seats := "[]"
	if len(e.Seats) > 0 {
		seats = fmt.Sprintf("[%s]", strings.Join(e.Seats, ","))
	}
	line := fmt.Sprintf("[%s] %s | transaction_id=%d | name=%q | phone=%q | status=%s | admin=%t | by=%s | seats=%s",
		e.OccurredAt, e.Type, e.TransactionID, e.Name, e.Phone, e.Status, e.BookedByAdmin, e.Actor, seats)
	if e.TicketHash != "" {
		line += " | hash=" + e.TicketHash
	}
	if e.HoldExpiresAt != "" {
		line += " | expires=" + e.HoldExpiresAt
	}
	return line + "\n"
}
