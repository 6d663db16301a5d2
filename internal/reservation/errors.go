// Package reservation is the booking core: the seat registry, the
// transaction ledger, the coordinator that applies hold/confirm/cancel
// requests atomically, and the sweeper that expires stale holds.
package reservation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/iliyamo/seat-reservation/internal/model"
)

var (
	// ErrNotFound is returned for an unknown transaction id or ticket hash.
	ErrNotFound = errors.New("transaction not found")
	// ErrHoldExpired is returned when confirming a hold past its deadline.
	ErrHoldExpired = errors.New("hold expired")
	// ErrAlreadyTerminal is returned for a transition on an expired or
	// revoked transaction.
	ErrAlreadyTerminal = model.ErrAlreadyTerminal
	// ErrInvalidTransition is returned for a transition the current status
	// does not accept.
	ErrInvalidTransition = model.ErrInvalidTransition
	// ErrInvalidRequest is returned for malformed input (no seats, bad
	// customer data, unknown actor).
	ErrInvalidRequest = errors.New("invalid request")
	// ErrStoreUnavailable wraps persistence failures.  Callers may retry
	// with backoff.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrSeatsUnavailable matches every *SeatsUnavailableError.
	ErrSeatsUnavailable = errors.New("seats unavailable")
	// ErrUnknownSeats matches every *UnknownSeatsError.
	ErrUnknownSeats = errors.New("unknown seats")
)

// SeatsUnavailableError names the requested seats that another live
// transaction already owns.
type SeatsUnavailableError struct {
	Seats []model.SeatID
}

func (e *SeatsUnavailableError) Error() string {
	return "seats unavailable: " + strings.Join(model.SeatLabels(e.Seats), ", ")
}

// Is lets errors.Is(err, ErrSeatsUnavailable) match.
func (e *SeatsUnavailableError) Is(target error) bool { return target == ErrSeatsUnavailable }

// UnknownSeatsError names requested seats that are not in the catalog.
type UnknownSeatsError struct {
	Seats []model.SeatID
}

func (e *UnknownSeatsError) Error() string {
	return "unknown seats: " + strings.Join(model.SeatLabels(e.Seats), ", ")
}

// Is lets errors.Is(err, ErrUnknownSeats) match.
func (e *UnknownSeatsError) Is(target error) bool { return target == ErrUnknownSeats }

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidRequest, fmt.Sprintf(format, args...))
}

// Unavailable wraps a store failure so that it matches ErrStoreUnavailable
// while keeping the cause in the chain.
func Unavailable(op string, err error) error {
	if err == nil {
		return nil
	}
	return &storeError{op: op, err: err}
}

type storeError struct {
	op  string
	err error
}

func (e *storeError) Error() string { return e.op + ": " + ErrStoreUnavailable.Error() + ": " + e.err.Error() }

func (e *storeError) Unwrap() []error { return []error{ErrStoreUnavailable, e.err} }
