package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/iliyamo/seat-reservation/internal/model"
	"github.com/iliyamo/seat-reservation/internal/reservation"
)

const transactionColumns = `t.id, t.ticket_hash, t.name, t.phone, t.status, t.timestamp,
	t.booked_by_admin, t.hold_expires_at, t.revoked_by, t.updated_at`

// TransactionRepo provides access to the `transaction` and
// transaction_seat tables.  The seat set of a transaction is written once
// at insert and never changes.
type TransactionRepo struct {
	db *sql.DB
}

// NewTransactionRepo constructs a TransactionRepo with the given DB handle.
func NewTransactionRepo(db *sql.DB) *TransactionRepo {
	return &TransactionRepo{db: db}
}

// InsertTx stores t and its seat set inside tx and assigns t.ID.
func (r *TransactionRepo) InsertTx(ctx context.Context, tx *sql.Tx, t *model.Transaction) error {
	const q = "INSERT INTO `transaction` " +
		"(ticket_hash, name, phone, status, timestamp, booked_by_admin, hold_expires_at, revoked_by, updated_at) " +
		"VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)"
	res, err := tx.ExecContext(ctx, q,
		nullString(t.TicketHash), t.Name, t.Phone, t.Status, t.Timestamp.UTC(),
		t.BookedByAdmin, nullTime(t.HoldExpiresAt), nullString(string(t.RevokedBy)), t.UpdatedAt.UTC())
	if err != nil {
		return storeErr("insert transaction", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return storeErr("insert transaction", err)
	}
	t.ID = id

	if len(t.Seats) == 0 {
		return nil
	}
	query := `INSERT INTO transaction_seat (transaction_id, region, seat_number) VALUES `
	args := make([]interface{}, 0, len(t.Seats)*3)
	for i, s := range t.Seats {
		if i > 0 {
			query += ","
		}
		query += "(?, ?, ?)"
		args = append(args, id, s.Region, s.Number)
	}
	_, err = tx.ExecContext(ctx, query, args...)
	return storeErr("insert transaction seats", err)
}

// LockTx locks the transaction row for update and returns it with its
// seats, or reservation.ErrNotFound.
func (r *TransactionRepo) LockTx(ctx context.Context, tx *sql.Tx, id int64) (model.Transaction, error) {
	return r.get(ctx, tx, "SELECT "+transactionColumns+" FROM `transaction` t WHERE t.id = ? FOR UPDATE", id)
}

// GetTx reads transaction id inside tx without taking a new lock.
func (r *TransactionRepo) GetTx(ctx context.Context, tx *sql.Tx, id int64) (model.Transaction, error) {
	return r.get(ctx, tx, "SELECT "+transactionColumns+" FROM `transaction` t WHERE t.id = ?", id)
}

// GetByID returns one transaction with its seats.
func (r *TransactionRepo) GetByID(ctx context.Context, id int64) (model.Transaction, error) {
	return r.get(ctx, r.db, "SELECT "+transactionColumns+" FROM `transaction` t WHERE t.id = ?", id)
}

// GetByTicket returns the transaction carrying hash.
func (r *TransactionRepo) GetByTicket(ctx context.Context, hash string) (model.Transaction, error) {
	return r.get(ctx, r.db, "SELECT "+transactionColumns+" FROM `transaction` t WHERE t.ticket_hash = ?", hash)
}

func (r *TransactionRepo) get(ctx context.Context, q queryer, query string, arg any) (model.Transaction, error) {
	t, err := scanTransaction(q.QueryRowContext(ctx, query, arg))
	if err != nil {
		return model.Transaction{}, storeErr("get transaction", err)
	}
	seats, err := r.seatsOf(ctx, q, []int64{t.ID})
	if err != nil {
		return model.Transaction{}, err
	}
	t.Seats = seats[t.ID]
	return t, nil
}

// CompareAndSetStatusTx moves id from `from` to upd.Status and clears the
// hold deadline.  It reports false when the stored status differs.
func (r *TransactionRepo) CompareAndSetStatusTx(ctx context.Context, tx *sql.Tx, id int64, from model.Status, upd reservation.StatusUpdate) (bool, error) {
	const q = "UPDATE `transaction` SET status = ?, updated_at = ?, hold_expires_at = NULL, " +
		"ticket_hash = COALESCE(?, ticket_hash), revoked_by = COALESCE(?, revoked_by) " +
		"WHERE id = ? AND status = ?"
	res, err := tx.ExecContext(ctx, q, upd.Status, upd.UpdatedAt.UTC(),
		nullString(upd.TicketHash), nullString(string(upd.RevokedBy)), id, from)
	if err != nil {
		return false, storeErr("update transaction status", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, storeErr("update transaction status", err)
	}
	return n == 1, nil
}

// List returns one page of transactions matching f, ordered pending,
// active, expired, revoked and newest first within a status, plus the
// total number of matches.
func (r *TransactionRepo) List(ctx context.Context, f model.TransactionFilter) ([]model.Transaction, int, error) {
	where := []string{}
	args := []any{}
	if f.Status != "" {
		where = append(where, "t.status = ?")
		args = append(args, f.Status)
	}
	if f.Search != "" {
		p := likePattern(f.Search)
		where = append(where, `(LOWER(t.name) LIKE ? OR LOWER(t.phone) LIKE ? OR EXISTS (
			SELECT 1 FROM transaction_seat ts
			WHERE ts.transaction_id = t.id AND LOWER(CONCAT(ts.region, '-', ts.seat_number)) LIKE ?))`)
		args = append(args, p, p, p)
	}
	cond := "1=1"
	if len(where) > 0 {
		cond = strings.Join(where, " AND ")
	}

	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM `transaction` t WHERE "+cond, args...).Scan(&total); err != nil {
		return nil, 0, storeErr("count transactions", err)
	}

	query := "SELECT " + transactionColumns + " FROM `transaction` t WHERE " + cond +
		" ORDER BY FIELD(t.status, 'pending', 'active', 'expired', 'revoked'), t.timestamp DESC, t.id DESC" +
		" LIMIT ? OFFSET ?"
	rows, err := r.db.QueryContext(ctx, query, append(args, f.PerPage, f.Offset())...)
	if err != nil {
		return nil, 0, storeErr("list transactions", err)
	}
	defer rows.Close()
	var (
		items []model.Transaction
		ids   []int64
	)
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, 0, storeErr("list transactions", err)
		}
		items = append(items, t)
		ids = append(ids, t.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, storeErr("list transactions", err)
	}
	seats, err := r.seatsOf(ctx, r.db, ids)
	if err != nil {
		return nil, 0, err
	}
	for i := range items {
		items[i].Seats = seats[items[i].ID]
	}
	return items, total, nil
}

// CountByStatus counts transactions per status.
func (r *TransactionRepo) CountByStatus(ctx context.Context) (map[model.Status]int, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT status, COUNT(*) FROM `transaction` GROUP BY status")
	if err != nil {
		return nil, storeErr("count by status", err)
	}
	defer rows.Close()
	out := make(map[model.Status]int)
	for rows.Next() {
		var (
			s model.Status
			n int
		)
		if err := rows.Scan(&s, &n); err != nil {
			return nil, storeErr("count by status", err)
		}
		out[s] = n
	}
	return out, storeErr("count by status", rows.Err())
}

// DuePending returns up to limit pending transactions whose hold deadline
// is at or before now, oldest deadline first.
func (r *TransactionRepo) DuePending(ctx context.Context, now time.Time, limit int) ([]int64, error) {
	const q = "SELECT id FROM `transaction` " +
		"WHERE status = 'pending' AND hold_expires_at <= ? " +
		"ORDER BY hold_expires_at, id LIMIT ?"
	rows, err := r.db.QueryContext(ctx, q, now.UTC(), limit)
	if err != nil {
		return nil, storeErr("list due holds", err)
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, storeErr("list due holds", err)
		}
		ids = append(ids, id)
	}
	return ids, storeErr("list due holds", rows.Err())
}

func (r *TransactionRepo) seatsOf(ctx context.Context, q queryer, ids []int64) (map[int64][]model.SeatID, error) {
	out := make(map[int64][]model.SeatID, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := q.QueryContext(ctx,
		`SELECT transaction_id, region, seat_number FROM transaction_seat
		 WHERE transaction_id IN (`+placeholders+`)
		 ORDER BY transaction_id, region, seat_number`, args...)
	if err != nil {
		return nil, storeErr("list transaction seats", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			txID   int64
			region string
			number int
		)
		if err := rows.Scan(&txID, &region, &number); err != nil {
			return nil, storeErr("list transaction seats", err)
		}
		out[txID] = append(out[txID], seatKey(region, number))
	}
	return out, storeErr("list transaction seats", rows.Err())
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (model.Transaction, error) {
	var (
		t       model.Transaction
		ticket  sql.NullString
		hold    sql.NullTime
		revoked sql.NullString
	)
	err := row.Scan(&t.ID, &ticket, &t.Name, &t.Phone, &t.Status, &t.Timestamp,
		&t.BookedByAdmin, &hold, &revoked, &t.UpdatedAt)
	if err != nil {
		return model.Transaction{}, err
	}
	t.TicketHash = ticket.String
	t.RevokedBy = model.Actor(revoked.String)
	if hold.Valid {
		h := hold.Time.UTC()
		t.HoldExpiresAt = &h
	}
	t.Timestamp = t.Timestamp.UTC()
	t.UpdatedAt = t.UpdatedAt.UTC()
	return t, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
