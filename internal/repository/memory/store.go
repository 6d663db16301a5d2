// Package memory is an in-process reservation.Store.  It keeps the same
// locking contract as the SQL stores: a unit of work locks its transaction
// first and then its seats in canonical order, and its writes become
// visible together at commit.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/iliyamo/seat-reservation/internal/model"
	"github.com/iliyamo/seat-reservation/internal/reservation"
	"github.com/iliyamo/seat-reservation/internal/seatlock"
)

// Store implements reservation.Store in memory.
type Store struct {
	seatLocks seatlock.Table

	txLockMu sync.Mutex
	txLocks  map[int64]*txLock

	nextID atomic.Int64

	mu      sync.RWMutex
	owners  map[model.SeatID]int64
	txs     map[int64]model.Transaction
	tickets map[string]int64
}

var _ reservation.Store = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{
		txLocks: make(map[int64]*txLock),
		owners:  make(map[model.SeatID]int64),
		txs:     make(map[int64]model.Transaction),
		tickets: make(map[string]int64),
	}
}

// Atomic locks scope, runs fn and applies its writes when fn succeeds.
func (s *Store) Atomic(ctx context.Context, scope reservation.Scope, fn func(ctx context.Context, tx reservation.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	seats := append([]model.SeatID(nil), scope.Seats...)
	if scope.TransactionID != 0 {
		unlock := s.lockTransaction(scope.TransactionID)
		defer unlock()
		s.mu.RLock()
		t, ok := s.txs[scope.TransactionID]
		s.mu.RUnlock()
		if !ok {
			return reservation.ErrNotFound
		}
		seats = append(seats, t.Seats...)
	}
	seats = model.NormalizeSeats(seats)
	unlock := s.seatLocks.Lock(seats)
	defer unlock()

	tx := &memTx{
		store:  s,
		scope:  scope,
		locked: make(map[model.SeatID]struct{}, len(seats)),
		owners: make(map[model.SeatID]int64),
		txs:    make(map[int64]model.Transaction),
	}
	for _, id := range seats {
		tx.locked[id] = struct{}{}
	}
	tx.order = seats
	if err := fn(ctx, tx); err != nil {
		return err
	}
	s.commit(tx)
	return nil
}

// txLock is a per-transaction mutex shared by the units waiting on it.
// It is dropped from txLocks when the last holder unlocks.
type txLock struct {
	mu   sync.Mutex
	refs int // guarded by Store.txLockMu
}

func (s *Store) lockTransaction(id int64) func() {
	s.txLockMu.Lock()
	l, ok := s.txLocks[id]
	if !ok {
		l = &txLock{}
		s.txLocks[id] = l
	}
	l.refs++
	s.txLockMu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		s.txLockMu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.txLocks, id)
		}
		s.txLockMu.Unlock()
	}
}

func (s *Store) commit(tx *memTx) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, owner := range tx.owners {
		s.owners[id] = owner
	}
	for id, t := range tx.txs {
		s.txs[id] = t
		if t.TicketHash != "" {
			s.tickets[t.TicketHash] = id
		}
	}
}

// EnsureSeats adds the seats that are not in the catalog yet.
func (s *Store) EnsureSeats(ctx context.Context, ids []model.SeatID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		if _, ok := s.owners[id]; !ok {
			s.owners[id] = 0
		}
	}
	return nil
}

// Seats returns the catalog in canonical order.
func (s *Store) Seats(ctx context.Context) ([]model.Seat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Seat, 0, len(s.owners))
	for id, owner := range s.owners {
		out = append(out, model.Seat{ID: id, TransactionID: owner})
	}
	sortSeats(out)
	return out, nil
}

// BookedSeats returns the seats owned by live transactions.
func (s *Store) BookedSeats(ctx context.Context) ([]model.SeatState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var seats []model.Seat
	for id, owner := range s.owners {
		if owner != 0 {
			seats = append(seats, model.Seat{ID: id, TransactionID: owner})
		}
	}
	sortSeats(seats)
	out := make([]model.SeatState, 0, len(seats))
	for _, seat := range seats {
		t, ok := s.txs[seat.TransactionID]
		if !ok || !t.Status.Live() {
			continue
		}
		out = append(out, model.SeatState{Region: seat.ID.Region, Number: seat.ID.Number, Status: t.Status})
	}
	return out, nil
}

// Transaction returns a copy of transaction id.
func (s *Store) Transaction(ctx context.Context, id int64) (model.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.txs[id]
	if !ok {
		return model.Transaction{}, reservation.ErrNotFound
	}
	return clone(t), nil
}

// TransactionByTicket returns a copy of the transaction holding hash.
func (s *Store) TransactionByTicket(ctx context.Context, hash string) (model.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.tickets[hash]
	if !ok {
		return model.Transaction{}, reservation.ErrNotFound
	}
	return clone(s.txs[id]), nil
}

// ListTransactions filters, orders and pages the transactions.
func (s *Store) ListTransactions(ctx context.Context, f model.TransactionFilter) ([]model.Transaction, int, error) {
	s.mu.RLock()
	var matched []model.Transaction
	for _, t := range s.txs {
		if f.Matches(t) {
			matched = append(matched, clone(t))
		}
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if a.Status.Rank() != b.Status.Rank() {
			return a.Status.Rank() < b.Status.Rank()
		}
		if !a.Timestamp.Equal(b.Timestamp) {
			return a.Timestamp.After(b.Timestamp)
		}
		return a.ID > b.ID
	})
	total := len(matched)
	start := f.Offset()
	if start >= total {
		return []model.Transaction{}, total, nil
	}
	end := start + f.PerPage
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}

// CountByStatus counts transactions per status.
func (s *Store) CountByStatus(ctx context.Context) (map[model.Status]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[model.Status]int)
	for _, t := range s.txs {
		out[t.Status]++
	}
	return out, nil
}

// DuePending returns pending transactions whose deadline has passed,
// oldest deadline first.
func (s *Store) DuePending(ctx context.Context, now time.Time, limit int) ([]int64, error) {
	s.mu.RLock()
	var due []model.Transaction
	for _, t := range s.txs {
		if t.HoldExpired(now) {
			due = append(due, t)
		}
	}
	s.mu.RUnlock()
	sort.Slice(due, func(i, j int) bool {
		if !due[i].HoldExpiresAt.Equal(*due[j].HoldExpiresAt) {
			return due[i].HoldExpiresAt.Before(*due[j].HoldExpiresAt)
		}
		return due[i].ID < due[j].ID
	})
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	ids := make([]int64, len(due))
	for i, t := range due {
		ids[i] = t.ID
	}
	return ids, nil
}

// memTx buffers the writes of one unit.
type memTx struct {
	store  *Store
	scope  reservation.Scope
	order  []model.SeatID
	locked map[model.SeatID]struct{}
	owners map[model.SeatID]int64
	txs    map[int64]model.Transaction
}

func (tx *memTx) owner(id model.SeatID) (int64, bool) {
	if o, ok := tx.owners[id]; ok {
		return o, true
	}
	tx.store.mu.RLock()
	defer tx.store.mu.RUnlock()
	o, ok := tx.store.owners[id]
	return o, ok
}

func (tx *memTx) transaction(id int64) (model.Transaction, bool) {
	if t, ok := tx.txs[id]; ok {
		return t, true
	}
	tx.store.mu.RLock()
	defer tx.store.mu.RUnlock()
	t, ok := tx.store.txs[id]
	return t, ok
}

func (tx *memTx) Seats(ctx context.Context) ([]model.Seat, error) {
	out := make([]model.Seat, 0, len(tx.order))
	for _, id := range tx.order {
		owner, ok := tx.owner(id)
		if !ok {
			continue
		}
		out = append(out, model.Seat{ID: id, TransactionID: owner})
	}
	return out, nil
}

func (tx *memTx) Claim(ctx context.Context, ids []model.SeatID, txID int64) error {
	for _, id := range ids {
		if _, ok := tx.locked[id]; !ok {
			return fmt.Errorf("claim %s: seat outside unit scope", id)
		}
		if _, ok := tx.owner(id); !ok {
			return &reservation.UnknownSeatsError{Seats: []model.SeatID{id}}
		}
	}
	for _, id := range ids {
		tx.owners[id] = txID
	}
	return nil
}

func (tx *memTx) Release(ctx context.Context, ids []model.SeatID, owner int64) error {
	for _, id := range ids {
		if _, ok := tx.locked[id]; !ok {
			return fmt.Errorf("release %s: seat outside unit scope", id)
		}
		if current, ok := tx.owner(id); ok && current == owner {
			tx.owners[id] = 0
		}
	}
	return nil
}

func (tx *memTx) Transaction(ctx context.Context) (model.Transaction, error) {
	if tx.scope.TransactionID == 0 {
		return model.Transaction{}, reservation.ErrNotFound
	}
	t, ok := tx.transaction(tx.scope.TransactionID)
	if !ok {
		return model.Transaction{}, reservation.ErrNotFound
	}
	return clone(t), nil
}

func (tx *memTx) Insert(ctx context.Context, t *model.Transaction) error {
	t.ID = tx.store.nextID.Add(1)
	tx.txs[t.ID] = clone(*t)
	return nil
}

func (tx *memTx) CompareAndSetStatus(ctx context.Context, id int64, from model.Status, upd reservation.StatusUpdate) (bool, error) {
	t, ok := tx.transaction(id)
	if !ok {
		return false, reservation.ErrNotFound
	}
	if t.Status != from {
		return false, nil
	}
	t = clone(t)
	t.Status = upd.Status
	t.UpdatedAt = upd.UpdatedAt
	t.HoldExpiresAt = nil
	if upd.TicketHash != "" {
		t.TicketHash = upd.TicketHash
	}
	if upd.RevokedBy != "" {
		t.RevokedBy = upd.RevokedBy
	}
	tx.txs[id] = t
	return true, nil
}

func clone(t model.Transaction) model.Transaction {
	t.Seats = append([]model.SeatID(nil), t.Seats...)
	if t.HoldExpiresAt != nil {
		d := *t.HoldExpiresAt
		t.HoldExpiresAt = &d
	}
	return t
}

func sortSeats(seats []model.Seat) {
	sort.Slice(seats, func(i, j int) bool { return seats[i].ID.Less(seats[j].ID) })
}
