package model

import (
	"errors"
	"strings"
	"time"
)

// Status is the lifecycle state of a transaction.
type Status string

const (
	StatusPending Status = "pending"
	StatusActive  Status = "active"
	StatusExpired Status = "expired"
	StatusRevoked Status = "revoked"
)

// Statuses lists every status in display order: live holds first, then
// confirmed bookings, then the terminal states.
var Statuses = []Status{StatusPending, StatusActive, StatusExpired, StatusRevoked}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusActive, StatusExpired, StatusRevoked:
		return true
	}
	return false
}

// Terminal reports whether no transition may leave s.
func (s Status) Terminal() bool {
	return s == StatusExpired || s == StatusRevoked
}

// Live reports whether a transaction in s owns its seats.
func (s Status) Live() bool {
	return s == StatusPending || s == StatusActive
}

// Rank is the list ordering used by the admin views.
func (s Status) Rank() int {
	for i, st := range Statuses {
		if st == s {
			return i
		}
	}
	return len(Statuses)
}

// Event drives a status transition.
type Event string

const (
	EventConfirm Event = "confirm"
	EventExpire  Event = "expire"
	EventRevoke  Event = "revoke"
)

var (
	// ErrAlreadyTerminal is returned for any event on an expired or revoked
	// transaction.
	ErrAlreadyTerminal = errors.New("transaction already terminal")
	// ErrInvalidTransition is returned for an event the current
	// non-terminal status does not accept (e.g. expire on active).
	ErrInvalidTransition = errors.New("invalid status transition")
)

// Next returns the status reached by applying ev to s.
//
//	pending --confirm--> active
//	pending --expire---> expired
//	pending --revoke---> revoked
//	active  --revoke---> revoked
func (s Status) Next(ev Event) (Status, error) {
	if s.Terminal() {
		return s, ErrAlreadyTerminal
	}
	switch {
	case s == StatusPending && ev == EventConfirm:
		return StatusActive, nil
	case s == StatusPending && ev == EventExpire:
		return StatusExpired, nil
	case s.Live() && ev == EventRevoke:
		return StatusRevoked, nil
	}
	return s, ErrInvalidTransition
}

// Actor identifies who triggered a mutation.  It is recorded for audit
// and never changes semantics.
type Actor string

const (
	ActorCustomer Actor = "customer"
	ActorAdmin    Actor = "admin"
	ActorSystem   Actor = "system"
)

// Valid reports whether a is a known actor.
func (a Actor) Valid() bool {
	return a == ActorCustomer || a == ActorAdmin || a == ActorSystem
}

const (
	maxNameLen  = 100
	maxPhoneLen = 20
)

// Customer is the contact information attached to a booking.
type Customer struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

// Normalize trims whitespace from both fields.
func (c Customer) Normalize() Customer {
	return Customer{Name: strings.TrimSpace(c.Name), Phone: strings.TrimSpace(c.Phone)}
}

// Validate checks that both fields are present and fit their columns.
func (c Customer) Validate() error {
	switch {
	case c.Name == "":
		return errors.New("name is required")
	case c.Phone == "":
		return errors.New("phone is required")
	case len(c.Name) > maxNameLen:
		return errors.New("name is too long")
	case len(c.Phone) > maxPhoneLen:
		return errors.New("phone is too long")
	}
	return nil
}

// Transaction is a booking: a customer owning a non-empty set of seats.
//
// Fields:
//  ID            – surrogate primary key.
//  TicketHash    – opaque unique hash, set once the booking becomes active.
//  Name, Phone   – customer contact.
//  Status        – pending, active, expired or revoked.
//  Timestamp     – creation time.
//  BookedByAdmin – whether the booking was made through the admin flow.
//  HoldExpiresAt – hold deadline, set only while pending.
//  RevokedBy     – actor that revoked the booking (audit only).
//  UpdatedAt     – last status change.
//  Seats         – seats booked under the transaction, canonical order.
type Transaction struct {
	ID            int64      `json:"id"`
	TicketHash    string     `json:"ticket_hash,omitempty"`
	Name          string     `json:"name"`
	Phone         string     `json:"phone"`
	Status        Status     `json:"status"`
	Timestamp     time.Time  `json:"timestamp"`
	BookedByAdmin bool       `json:"booked_by_admin"`
	HoldExpiresAt *time.Time `json:"hold_expires_at,omitempty"`
	RevokedBy     Actor      `json:"revoked_by,omitempty"`
	UpdatedAt     time.Time  `json:"updated_at"`
	Seats         []SeatID   `json:"seats"`
}

// HoldExpired reports whether the transaction is pending and its hold
// deadline is at or before now.
func (t Transaction) HoldExpired(now time.Time) bool {
	return t.Status == StatusPending && t.HoldExpiresAt != nil && !now.Before(*t.HoldExpiresAt)
}

// TransactionFilter narrows the admin listing.
type TransactionFilter struct {
	Status  Status // empty for all statuses
	Search  string // matched against name, phone, region and REGION-NUMBER
	Page    int    // 1-based
	PerPage int
}

const (
	DefaultPerPage = 20
	MaxPerPage     = 100
)

// Normalize applies defaults and bounds to the paging fields.
func (f TransactionFilter) Normalize() TransactionFilter {
	f.Search = strings.TrimSpace(f.Search)
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PerPage < 1 {
		f.PerPage = DefaultPerPage
	}
	if f.PerPage > MaxPerPage {
		f.PerPage = MaxPerPage
	}
	return f
}

// Offset is the number of rows skipped before the current page.
func (f TransactionFilter) Offset() int {
	return (f.Page - 1) * f.PerPage
}

// Matches reports whether t satisfies the status and search criteria.
// SQL stores evaluate the same predicate in the query.
func (f TransactionFilter) Matches(t Transaction) bool {
	if f.Status != "" && t.Status != f.Status {
		return false
	}
	if f.Search == "" {
		return true
	}
	q := strings.ToLower(f.Search)
	if strings.Contains(strings.ToLower(t.Name), q) || strings.Contains(strings.ToLower(t.Phone), q) {
		return true
	}
	for _, s := range t.Seats {
		if strings.Contains(strings.ToLower(s.String()), q) {
			return true
		}
	}
	return false
}

// TransactionPage is one page of the admin listing.
type TransactionPage struct {
	Items   []Transaction `json:"items"`
	Total   int           `json:"total"`
	Page    int           `json:"page"`
	PerPage int           `json:"per_page"`
}
