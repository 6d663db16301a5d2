package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/iliyamo/seat-reservation/internal/model"
	"github.com/iliyamo/seat-reservation/internal/reservation"
)

// Store implements reservation.Store on MySQL.  A unit of work is one
// database transaction: the scope transaction row is locked first with
// SELECT ... FOR UPDATE, then each seat row in canonical order.
type Store struct {
	db    *sql.DB
	seats *SeatRepo
	txs   *TransactionRepo
}

var _ reservation.Store = (*Store)(nil)

// NewStore returns a Store over db.  The schema must already be migrated.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db, seats: NewSeatRepo(db), txs: NewTransactionRepo(db)}
}

// Atomic runs fn inside a database transaction holding the scope's row
// locks.  The transaction is rolled back when fn or the commit fails.
func (s *Store) Atomic(ctx context.Context, scope reservation.Scope, fn func(ctx context.Context, tx reservation.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storeErr("begin", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	seats := append([]model.SeatID(nil), scope.Seats...)
	if scope.TransactionID != 0 {
		t, err := s.txs.LockTx(ctx, tx, scope.TransactionID)
		if err != nil {
			return err
		}
		seats = append(seats, t.Seats...)
	}
	seats = model.NormalizeSeats(seats)
	locked, err := s.seats.LockTx(ctx, tx, seats)
	if err != nil {
		return err
	}

	unit := &sqlTx{store: s, tx: tx, scope: scope, locked: make(map[model.SeatID]struct{}, len(locked))}
	for _, seat := range locked {
		unit.locked[seat.ID] = struct{}{}
		unit.order = append(unit.order, seat.ID)
	}
	if err := fn(ctx, unit); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return storeErr("commit", err)
	}
	committed = true
	return nil
}

func (s *Store) EnsureSeats(ctx context.Context, ids []model.SeatID) error {
	return s.seats.EnsureAll(ctx, ids)
}

func (s *Store) Seats(ctx context.Context) ([]model.Seat, error) {
	return s.seats.All(ctx)
}

func (s *Store) BookedSeats(ctx context.Context) ([]model.SeatState, error) {
	return s.seats.Booked(ctx)
}

func (s *Store) Transaction(ctx context.Context, id int64) (model.Transaction, error) {
	return s.txs.GetByID(ctx, id)
}

func (s *Store) TransactionByTicket(ctx context.Context, hash string) (model.Transaction, error) {
	return s.txs.GetByTicket(ctx, hash)
}

func (s *Store) ListTransactions(ctx context.Context, f model.TransactionFilter) ([]model.Transaction, int, error) {
	return s.txs.List(ctx, f)
}

func (s *Store) CountByStatus(ctx context.Context) (map[model.Status]int, error) {
	return s.txs.CountByStatus(ctx)
}

func (s *Store) DuePending(ctx context.Context, now time.Time, limit int) ([]int64, error) {
	return s.txs.DuePending(ctx, now, limit)
}

// sqlTx is the reservation.Tx of one MySQL unit of work.
type sqlTx struct {
	store  *Store
	tx     *sql.Tx
	scope  reservation.Scope
	order  []model.SeatID
	locked map[model.SeatID]struct{}
}

func (u *sqlTx) inScope(op string, ids []model.SeatID) error {
	for _, id := range ids {
		if _, ok := u.locked[id]; !ok {
			return fmt.Errorf("%s %s: seat outside unit scope", op, id)
		}
	}
	return nil
}

func (u *sqlTx) Seats(ctx context.Context) ([]model.Seat, error) {
	return u.store.seats.GetTx(ctx, u.tx, u.order)
}

func (u *sqlTx) Claim(ctx context.Context, ids []model.SeatID, txID int64) error {
	if err := u.inScope("claim", ids); err != nil {
		return err
	}
	return u.store.seats.ClaimTx(ctx, u.tx, ids, txID)
}

func (u *sqlTx) Release(ctx context.Context, ids []model.SeatID, owner int64) error {
	if err := u.inScope("release", ids); err != nil {
		return err
	}
	return u.store.seats.ReleaseTx(ctx, u.tx, ids, owner)
}

func (u *sqlTx) Transaction(ctx context.Context) (model.Transaction, error) {
	if u.scope.TransactionID == 0 {
		return model.Transaction{}, reservation.ErrNotFound
	}
	return u.store.txs.GetTx(ctx, u.tx, u.scope.TransactionID)
}

func (u *sqlTx) Insert(ctx context.Context, t *model.Transaction) error {
	return u.store.txs.InsertTx(ctx, u.tx, t)
}

func (u *sqlTx) CompareAndSetStatus(ctx context.Context, id int64, from model.Status, upd reservation.StatusUpdate) (bool, error) {
	return u.store.txs.CompareAndSetStatusTx(ctx, u.tx, id, from, upd)
}
