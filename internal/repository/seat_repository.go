package repository // repository defines data access for seats

import (
	"context"
	"database/sql"
	"strings"

	"github.com/iliyamo/seat-reservation/internal/model"
)

// seedBatch bounds the number of rows per INSERT when seeding the catalog.
const seedBatch = 500

// SeatRepo provides methods to work with the seat table.  A seat row is
// identified by (region, seat_number); transaction_id is NULL while free.
type SeatRepo struct {
	db *sql.DB
}

// NewSeatRepo constructs a SeatRepo with the given DB handle.
func NewSeatRepo(db *sql.DB) *SeatRepo {
	return &SeatRepo{db: db}
}

// EnsureAll inserts the seats that do not exist yet.  Existing rows, and
// their ownership, are left untouched.
func (r *SeatRepo) EnsureAll(ctx context.Context, ids []model.SeatID) error {
	for start := 0; start < len(ids); start += seedBatch {
		end := start + seedBatch
		if end > len(ids) {
			end = len(ids)
		}
		chunk := ids[start:end]
		query := `INSERT IGNORE INTO seat (region, seat_number) VALUES `
		args := make([]interface{}, 0, len(chunk)*2)
		for i, id := range chunk {
			if i > 0 {
				query += ","
			}
			query += "(?, ?)"
			args = append(args, id.Region, id.Number)
		}
		if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
			return storeErr("seed seats", err)
		}
	}
	return nil
}

// All retrieves every seat ordered by region then seat_number.
func (r *SeatRepo) All(ctx context.Context) ([]model.Seat, error) {
	const q = `SELECT region, seat_number, transaction_id
	           FROM seat
	           ORDER BY region, seat_number`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, storeErr("list seats", err)
	}
	seats, err := scanSeats(rows)
	return seats, storeErr("list seats", err)
}

// Booked returns the seats owned by pending or active transactions with
// the owner's status.
func (r *SeatRepo) Booked(ctx context.Context) ([]model.SeatState, error) {
	const q = "SELECT s.region, s.seat_number, t.status " +
		"FROM seat s JOIN `transaction` t ON t.id = s.transaction_id " +
		"WHERE t.status IN ('pending', 'active') " +
		"ORDER BY s.region, s.seat_number"
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, storeErr("list booked seats", err)
	}
	defer rows.Close()
	out := []model.SeatState{}
	for rows.Next() {
		var s model.SeatState
		if err := rows.Scan(&s.Region, &s.Number, &s.Status); err != nil {
			return nil, storeErr("list booked seats", err)
		}
		out = append(out, s)
	}
	return out, storeErr("list booked seats", rows.Err())
}

// LockTx locks the seat rows for ids one at a time in the given order and
// returns the rows that exist.  ids must already be in canonical order.
func (r *SeatRepo) LockTx(ctx context.Context, tx *sql.Tx, ids []model.SeatID) ([]model.Seat, error) {
	const q = `SELECT region, seat_number, transaction_id
	           FROM seat
	           WHERE region = ? AND seat_number = ?
	           FOR UPDATE`
	out := make([]model.Seat, 0, len(ids))
	for _, id := range ids {
		var (
			s     model.Seat
			owner sql.NullInt64
		)
		err := tx.QueryRowContext(ctx, q, id.Region, id.Number).Scan(&s.ID.Region, &s.ID.Number, &owner)
		if err == sql.ErrNoRows {
			continue
		}
		if err != nil {
			return nil, storeErr("lock seat", err)
		}
		s.TransactionID = owner.Int64
		out = append(out, s)
	}
	return out, nil
}

// GetTx reads the current owners of ids inside tx.
func (r *SeatRepo) GetTx(ctx context.Context, tx *sql.Tx, ids []model.SeatID) ([]model.Seat, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	tuples, args := seatTuples(ids)
	q := `SELECT region, seat_number, transaction_id FROM seat
	      WHERE (region, seat_number) IN (` + tuples + `)
	      ORDER BY region, seat_number`
	rows, err := tx.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, storeErr("read seats", err)
	}
	seats, err := scanSeats(rows)
	return seats, storeErr("read seats", err)
}

// ClaimTx sets transaction_id on every seat in ids.
func (r *SeatRepo) ClaimTx(ctx context.Context, tx *sql.Tx, ids []model.SeatID, txID int64) error {
	if len(ids) == 0 {
		return nil
	}
	tuples, args := seatTuples(ids)
	q := `UPDATE seat SET transaction_id = ? WHERE (region, seat_number) IN (` + tuples + `)`
	_, err := tx.ExecContext(ctx, q, append([]any{txID}, args...)...)
	return storeErr("claim seats", err)
}

// ReleaseTx clears transaction_id on the seats in ids that owner still
// holds.
func (r *SeatRepo) ReleaseTx(ctx context.Context, tx *sql.Tx, ids []model.SeatID, owner int64) error {
	if len(ids) == 0 {
		return nil
	}
	tuples, args := seatTuples(ids)
	q := `UPDATE seat SET transaction_id = NULL
	      WHERE transaction_id = ? AND (region, seat_number) IN (` + tuples + `)`
	_, err := tx.ExecContext(ctx, q, append([]any{owner}, args...)...)
	return storeErr("release seats", err)
}

func scanSeats(rows *sql.Rows) ([]model.Seat, error) {
	defer rows.Close()
	var out []model.Seat
	for rows.Next() {
		var (
			s     model.Seat
			owner sql.NullInt64
		)
		if err := rows.Scan(&s.ID.Region, &s.ID.Number, &owner); err != nil {
			return nil, err
		}
		s.TransactionID = owner.Int64
		out = append(out, s)
	}
	return out, rows.Err()
}

// seatKey builds a SeatID from scanned columns.
func seatKey(region string, number int) model.SeatID {
	return model.SeatID{Region: strings.ToUpper(region), Number: number}
}
