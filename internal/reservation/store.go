package reservation

import (
	"context"
	"time"

	"github.com/iliyamo/seat-reservation/internal/model"
)

// Scope names what a unit of work locks before it runs.
//
// Seats are the seats a new transaction is about to claim; they are locked
// in canonical order whether free or not.  TransactionID, when non-zero,
// is an existing transaction whose record and owned seats are locked
// (record first, then seats).  A scope may carry both.
type Scope struct {
	Seats         []model.SeatID
	TransactionID int64
}

// Store is the persistence boundary of the core.  Implementations live
// under internal/repository.
type Store interface {
	// Atomic runs fn with the scope locked.  Writes made through tx are
	// applied together when fn returns nil and discarded otherwise.  For a
	// scope with an unknown TransactionID, Atomic returns ErrNotFound
	// without calling fn.
	Atomic(ctx context.Context, scope Scope, fn func(ctx context.Context, tx Tx) error) error

	// EnsureSeats inserts the catalog seats that do not exist yet.
	EnsureSeats(ctx context.Context, ids []model.SeatID) error
	// Seats returns the whole catalog with current ownership.
	Seats(ctx context.Context) ([]model.Seat, error)
	// BookedSeats returns the seats owned by pending or active transactions.
	BookedSeats(ctx context.Context) ([]model.SeatState, error)

	// Transaction loads one transaction with its seats, or ErrNotFound.
	Transaction(ctx context.Context, id int64) (model.Transaction, error)
	// TransactionByTicket loads a transaction by ticket hash, or ErrNotFound.
	TransactionByTicket(ctx context.Context, hash string) (model.Transaction, error)
	// ListTransactions returns one page of transactions matching the
	// normalized filter and the total number of matches.
	ListTransactions(ctx context.Context, f model.TransactionFilter) ([]model.Transaction, int, error)
	// CountByStatus counts transactions per status.
	CountByStatus(ctx context.Context) (map[model.Status]int, error)
	// DuePending returns up to limit ids of pending transactions whose hold
	// deadline is at or before now, oldest deadline first.
	DuePending(ctx context.Context, now time.Time, limit int) ([]int64, error)
}

// Tx is the write side of one Atomic unit.  Every method only touches rows
// covered by the unit's scope.
type Tx interface {
	// Seats returns the locked seats with their current owner: the scope's
	// requested seats that exist in the catalog, plus the seats owned by
	// the scope's transaction.
	Seats(ctx context.Context) ([]model.Seat, error)
	// Claim sets the owner of ids to txID.
	Claim(ctx context.Context, ids []model.SeatID, txID int64) error
	// Release frees the seats in ids that are still owned by owner.
	Release(ctx context.Context, ids []model.SeatID, owner int64) error

	// Transaction returns the locked scope transaction.
	Transaction(ctx context.Context) (model.Transaction, error)
	// Insert stores a new transaction with its seat set and assigns t.ID.
	Insert(ctx context.Context, t *model.Transaction) error
	// CompareAndSetStatus moves transaction id from one status to another
	// and applies the audit fields in upd; the hold deadline is cleared.
	// It reports false, without writing, when the stored status is no
	// longer from.
	CompareAndSetStatus(ctx context.Context, id int64, from model.Status, upd StatusUpdate) (bool, error)
}

// StatusUpdate carries the columns written on a status transition.
type StatusUpdate struct {
	Status     model.Status
	TicketHash string      // written when non-empty
	RevokedBy  model.Actor // written when non-empty
	UpdatedAt  time.Time
}
