// Package postgres implements reservation.Store on PostgreSQL with pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iliyamo/seat-reservation/internal/model"
	"github.com/iliyamo/seat-reservation/internal/reservation"
)

// Store implements reservation.Store.  A unit of work is one database
// transaction that locks the scope transaction row and then each seat row
// in canonical order with SELECT ... FOR UPDATE.
type Store struct {
	pool *pgxpool.Pool
}

var _ reservation.Store = (*Store)(nil)

// NewStore returns a Store over pool.  The schema must already be migrated.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) Atomic(ctx context.Context, scope reservation.Scope, fn func(ctx context.Context, tx reservation.Tx) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return storeErr("begin", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback(context.Background())
		}
	}()

	seats := append([]model.SeatID(nil), scope.Seats...)
	if scope.TransactionID != 0 {
		t, err := getTransaction(ctx, tx, selectTransaction+` WHERE t.id = $1 FOR UPDATE`, scope.TransactionID)
		if err != nil {
			return err
		}
		seats = append(seats, t.Seats...)
	}
	seats = model.NormalizeSeats(seats)

	unit := &pgTx{tx: tx, scope: scope, locked: make(map[model.SeatID]struct{}, len(seats))}
	for _, id := range seats {
		var owner *int64
		err := tx.QueryRow(ctx,
			`SELECT transaction_id FROM seat WHERE region = $1 AND seat_number = $2 FOR UPDATE`,
			id.Region, id.Number).Scan(&owner)
		if errors.Is(err, pgx.ErrNoRows) {
			continue
		}
		if err != nil {
			return storeErr("lock seat", err)
		}
		unit.locked[id] = struct{}{}
		unit.order = append(unit.order, id)
	}

	if err := fn(ctx, unit); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return storeErr("commit", err)
	}
	committed = true
	return nil
}

func (s *Store) EnsureSeats(ctx context.Context, ids []model.SeatID) error {
	regions, numbers := seatArrays(ids)
	_, err := s.pool.Exec(ctx, `
INSERT INTO seat (region, seat_number)
SELECT * FROM unnest($1::text[], $2::int[])
ON CONFLICT DO NOTHING`, regions, numbers)
	return storeErr("seed seats", err)
}

func (s *Store) Seats(ctx context.Context) ([]model.Seat, error) {
	rows, err := s.pool.Query(ctx, `SELECT region, seat_number, transaction_id FROM seat ORDER BY region, seat_number`)
	if err != nil {
		return nil, storeErr("list seats", err)
	}
	seats, err := scanSeats(rows)
	return seats, storeErr("list seats", err)
}

func (s *Store) BookedSeats(ctx context.Context) ([]model.SeatState, error) {
	rows, err := s.pool.Query(ctx, `
SELECT s.region, s.seat_number, t.status
FROM seat s JOIN "transaction" t ON t.id = s.transaction_id
WHERE t.status IN ('pending', 'active')
ORDER BY s.region, s.seat_number`)
	if err != nil {
		return nil, storeErr("list booked seats", err)
	}
	defer rows.Close()
	out := []model.SeatState{}
	for rows.Next() {
		var (
			st     model.SeatState
			status string
		)
		if err := rows.Scan(&st.Region, &st.Number, &status); err != nil {
			return nil, storeErr("list booked seats", err)
		}
		st.Status = model.Status(status)
		out = append(out, st)
	}
	return out, storeErr("list booked seats", rows.Err())
}

func (s *Store) Transaction(ctx context.Context, id int64) (model.Transaction, error) {
	return getTransaction(ctx, s.pool, selectTransaction+` WHERE t.id = $1`, id)
}

func (s *Store) TransactionByTicket(ctx context.Context, hash string) (model.Transaction, error) {
	return getTransaction(ctx, s.pool, selectTransaction+` WHERE t.ticket_hash = $1`, hash)
}

func (s *Store) ListTransactions(ctx context.Context, f model.TransactionFilter) ([]model.Transaction, int, error) {
	return listTransactions(ctx, s.pool, f)
}

func (s *Store) CountByStatus(ctx context.Context) (map[model.Status]int, error) {
	rows, err := s.pool.Query(ctx, `SELECT status, COUNT(*) FROM "transaction" GROUP BY status`)
	if err != nil {
		return nil, storeErr("count by status", err)
	}
	defer rows.Close()
	out := make(map[model.Status]int)
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, storeErr("count by status", err)
		}
		out[model.Status(status)] = n
	}
	return out, storeErr("count by status", rows.Err())
}

func (s *Store) DuePending(ctx context.Context, now time.Time, limit int) ([]int64, error) {
	rows, err := s.pool.Query(ctx, `
SELECT id FROM "transaction"
WHERE status = 'pending' AND hold_expires_at <= $1
ORDER BY hold_expires_at, id
LIMIT $2`, now.UTC(), limit)
	if err != nil {
		return nil, storeErr("list due holds", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	return ids, storeErr("list due holds", err)
}

// pgTx is the reservation.Tx of one unit of work.
type pgTx struct {
	tx     pgx.Tx
	scope  reservation.Scope
	order  []model.SeatID
	locked map[model.SeatID]struct{}
}

func (u *pgTx) inScope(op string, ids []model.SeatID) error {
	for _, id := range ids {
		if _, ok := u.locked[id]; !ok {
			return fmt.Errorf("%s %s: seat outside unit scope", op, id)
		}
	}
	return nil
}

func (u *pgTx) Seats(ctx context.Context) ([]model.Seat, error) {
	if len(u.order) == 0 {
		return nil, nil
	}
	regions, numbers := seatArrays(u.order)
	rows, err := u.tx.Query(ctx, `
SELECT region, seat_number, transaction_id FROM seat
WHERE (region, seat_number) IN (SELECT * FROM unnest($1::text[], $2::int[]))
ORDER BY region, seat_number`, regions, numbers)
	if err != nil {
		return nil, storeErr("read seats", err)
	}
	seats, err := scanSeats(rows)
	return seats, storeErr("read seats", err)
}

func (u *pgTx) Claim(ctx context.Context, ids []model.SeatID, txID int64) error {
	if err := u.inScope("claim", ids); err != nil {
		return err
	}
	regions, numbers := seatArrays(ids)
	_, err := u.tx.Exec(ctx, `
UPDATE seat SET transaction_id = $1
WHERE (region, seat_number) IN (SELECT * FROM unnest($2::text[], $3::int[]))`, txID, regions, numbers)
	return storeErr("claim seats", err)
}

func (u *pgTx) Release(ctx context.Context, ids []model.SeatID, owner int64) error {
	if err := u.inScope("release", ids); err != nil {
		return err
	}
	regions, numbers := seatArrays(ids)
	_, err := u.tx.Exec(ctx, `
UPDATE seat SET transaction_id = NULL
WHERE transaction_id = $1
  AND (region, seat_number) IN (SELECT * FROM unnest($2::text[], $3::int[]))`, owner, regions, numbers)
	return storeErr("release seats", err)
}

func (u *pgTx) Transaction(ctx context.Context) (model.Transaction, error) {
	if u.scope.TransactionID == 0 {
		return model.Transaction{}, reservation.ErrNotFound
	}
	return getTransaction(ctx, u.tx, selectTransaction+` WHERE t.id = $1`, u.scope.TransactionID)
}

func (u *pgTx) Insert(ctx context.Context, t *model.Transaction) error {
	err := u.tx.QueryRow(ctx, `
INSERT INTO "transaction"
	(ticket_hash, name, phone, status, timestamp, booked_by_admin, hold_expires_at, revoked_by, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING id`,
		nullString(t.TicketHash), t.Name, t.Phone, string(t.Status), t.Timestamp.UTC(),
		t.BookedByAdmin, utcPtr(t.HoldExpiresAt), nullString(string(t.RevokedBy)), t.UpdatedAt.UTC(),
	).Scan(&t.ID)
	if err != nil {
		return storeErr("insert transaction", err)
	}
	regions, numbers := seatArrays(t.Seats)
	_, err = u.tx.Exec(ctx, `
INSERT INTO transaction_seat (transaction_id, region, seat_number)
SELECT $1::bigint, r, n FROM unnest($2::text[], $3::int[]) AS s(r, n)`, t.ID, regions, numbers)
	return storeErr("insert transaction seats", err)
}

func (u *pgTx) CompareAndSetStatus(ctx context.Context, id int64, from model.Status, upd reservation.StatusUpdate) (bool, error) {
	tag, err := u.tx.Exec(ctx, `
UPDATE "transaction"
SET status = $1, updated_at = $2, hold_expires_at = NULL,
    ticket_hash = COALESCE($3, ticket_hash), revoked_by = COALESCE($4, revoked_by)
WHERE id = $5 AND status = $6`,
		string(upd.Status), upd.UpdatedAt.UTC(), nullString(upd.TicketHash), nullString(string(upd.RevokedBy)), id, string(from))
	if err != nil {
		return false, storeErr("update transaction status", err)
	}
	return tag.RowsAffected() == 1, nil
}
