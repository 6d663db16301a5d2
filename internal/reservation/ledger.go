package reservation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/iliyamo/seat-reservation/internal/clock"
	"github.com/iliyamo/seat-reservation/internal/model"
	"github.com/iliyamo/seat-reservation/internal/utils"
)

// Ledger records transactions and their lifecycle.  It keeps a
// transaction's status and seat set consistent inside the caller's unit of
// work; seat exclusivity itself is the Registry's job.
type Ledger struct {
	store     Store
	clock     clock.Clock
	newTicket func() (string, error)
}

// LedgerOption customizes a Ledger.
type LedgerOption func(*Ledger)

// WithTicketGenerator replaces the ticket hash generator.
func WithTicketGenerator(fn func() (string, error)) LedgerOption {
	return func(l *Ledger) {
		if fn != nil {
			l.newTicket = fn
		}
	}
}

// NewLedger returns a Ledger over store.
func NewLedger(store Store, clk clock.Clock, opts ...LedgerOption) *Ledger {
	if store == nil {
		panic("nil store passed to NewLedger")
	}
	if clk == nil {
		clk = clock.NewSystem()
	}
	l := &Ledger{store: store, clock: clk, newTicket: utils.NewTicketHash}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// CreateInput describes a new transaction.
type CreateInput struct {
	Seats    []model.SeatID
	Customer model.Customer
	HoldTTL  time.Duration // used for pending transactions
	ByAdmin  bool          // admin bookings start active with a ticket hash
}

// Create inserts a transaction inside tx.  Customer bookings start
// pending with a hold deadline; admin bookings start active.
func (l *Ledger) Create(ctx context.Context, tx Tx, in CreateInput) (model.Transaction, error) {
	now := l.clock.Now()
	t := model.Transaction{
		Name:          in.Customer.Name,
		Phone:         in.Customer.Phone,
		Status:        model.StatusPending,
		Timestamp:     now,
		BookedByAdmin: in.ByAdmin,
		UpdatedAt:     now,
		Seats:         in.Seats,
	}
	if in.ByAdmin {
		hash, err := l.newTicket()
		if err != nil {
			return model.Transaction{}, fmt.Errorf("generate ticket hash: %w", err)
		}
		t.Status = model.StatusActive
		t.TicketHash = hash
	} else {
		if in.HoldTTL <= 0 {
			return model.Transaction{}, invalid("hold ttl must be positive")
		}
		deadline := now.Add(in.HoldTTL)
		t.HoldExpiresAt = &deadline
	}
	if err := tx.Insert(ctx, &t); err != nil {
		return model.Transaction{}, err
	}
	return t, nil
}

// Get loads a transaction by id.
func (l *Ledger) Get(ctx context.Context, id int64) (model.Transaction, error) {
	if id <= 0 {
		return model.Transaction{}, ErrNotFound
	}
	return l.store.Transaction(ctx, id)
}

// GetByTicket loads a transaction by its ticket hash.
func (l *Ledger) GetByTicket(ctx context.Context, hash string) (model.Transaction, error) {
	hash = strings.ToLower(strings.TrimSpace(hash))
	if hash == "" {
		return model.Transaction{}, ErrNotFound
	}
	return l.store.TransactionByTicket(ctx, hash)
}

// Transition applies ev to t inside tx with a compare-and-set on the
// stored status and updates t to the new state.  Confirming assigns the
// ticket hash; revoking records the actor.
func (l *Ledger) Transition(ctx context.Context, tx Tx, t *model.Transaction, ev model.Event, actor model.Actor) (model.Status, error) {
	next, err := t.Status.Next(ev)
	if err != nil {
		return t.Status, err
	}
	upd := StatusUpdate{Status: next, UpdatedAt: l.clock.Now()}
	if next == model.StatusActive && t.TicketHash == "" {
		hash, err := l.newTicket()
		if err != nil {
			return t.Status, fmt.Errorf("generate ticket hash: %w", err)
		}
		upd.TicketHash = hash
	}
	if next == model.StatusRevoked {
		upd.RevokedBy = actor
	}

	ok, err := tx.CompareAndSetStatus(ctx, t.ID, t.Status, upd)
	if err != nil {
		return t.Status, err
	}
	if !ok {
		current, err := tx.Transaction(ctx)
		if err != nil {
			return t.Status, err
		}
		*t = current
		if current.Status.Terminal() {
			return current.Status, ErrAlreadyTerminal
		}
		return current.Status, ErrInvalidTransition
	}

	t.Status = next
	t.UpdatedAt = upd.UpdatedAt
	t.HoldExpiresAt = nil
	if upd.TicketHash != "" {
		t.TicketHash = upd.TicketHash
	}
	if upd.RevokedBy != "" {
		t.RevokedBy = upd.RevokedBy
	}
	return next, nil
}

// List returns one page of transactions ordered pending, active, expired,
// revoked, newest first within each status.
func (l *Ledger) List(ctx context.Context, f model.TransactionFilter) (model.TransactionPage, error) {
	f = f.Normalize()
	if f.Status != "" && !f.Status.Valid() {
		return model.TransactionPage{}, invalid("unknown status %q", f.Status)
	}
	items, total, err := l.store.ListTransactions(ctx, f)
	if err != nil {
		return model.TransactionPage{}, err
	}
	if items == nil {
		items = []model.Transaction{}
	}
	return model.TransactionPage{Items: items, Total: total, Page: f.Page, PerPage: f.PerPage}, nil
}

// Stats counts transactions by status.  Every status is present.
func (l *Ledger) Stats(ctx context.Context) (map[model.Status]int, error) {
	counts, err := l.store.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[model.Status]int, len(model.Statuses))
	for _, s := range model.Statuses {
		out[s] = counts[s]
	}
	return out, nil
}
