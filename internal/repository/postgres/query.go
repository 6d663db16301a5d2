package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/iliyamo/seat-reservation/internal/model"
	"github.com/iliyamo/seat-reservation/internal/reservation"
)

// querier is satisfied by *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const selectTransaction = `
SELECT t.id, t.ticket_hash, t.name, t.phone, t.status, t.timestamp,
       t.booked_by_admin, t.hold_expires_at, t.revoked_by, t.updated_at
FROM "transaction" t`

func storeErr(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, pgx.ErrNoRows):
		return reservation.ErrNotFound
	case errors.Is(err, reservation.ErrNotFound), errors.Is(err, reservation.ErrStoreUnavailable):
		return err
	}
	return reservation.Unavailable(op, err)
}

func getTransaction(ctx context.Context, q querier, query string, arg any) (model.Transaction, error) {
	t, err := scanTransaction(q.QueryRow(ctx, query, arg))
	if err != nil {
		return model.Transaction{}, storeErr("get transaction", err)
	}
	seats, err := seatsOf(ctx, q, []int64{t.ID})
	if err != nil {
		return model.Transaction{}, err
	}
	t.Seats = seats[t.ID]
	return t, nil
}

func listTransactions(ctx context.Context, q querier, f model.TransactionFilter) ([]model.Transaction, int, error) {
	where := []string{}
	args := []any{}
	if f.Status != "" {
		args = append(args, string(f.Status))
		where = append(where, fmt.Sprintf("t.status = $%d", len(args)))
	}
	if f.Search != "" {
		args = append(args, likePattern(f.Search))
		n := len(args)
		where = append(where, fmt.Sprintf(`(LOWER(t.name) LIKE $%[1]d OR LOWER(t.phone) LIKE $%[1]d OR EXISTS (
	SELECT 1 FROM transaction_seat ts
	WHERE ts.transaction_id = t.id AND LOWER(ts.region || '-' || ts.seat_number) LIKE $%[1]d))`, n))
	}
	cond := "TRUE"
	if len(where) > 0 {
		cond = strings.Join(where, " AND ")
	}

	var total int
	if err := q.QueryRow(ctx, `SELECT COUNT(*) FROM "transaction" t WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, storeErr("count transactions", err)
	}

	args = append(args, f.PerPage, f.Offset())
	query := selectTransaction + ` WHERE ` + cond + fmt.Sprintf(`
ORDER BY CASE t.status WHEN 'pending' THEN 0 WHEN 'active' THEN 1 WHEN 'expired' THEN 2 ELSE 3 END,
         t.timestamp DESC, t.id DESC
LIMIT $%d OFFSET $%d`, len(args)-1, len(args))
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, storeErr("list transactions", err)
	}
	items, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Transaction, error) {
		return scanTransaction(row)
	})
	if err != nil {
		return nil, 0, storeErr("list transactions", err)
	}
	ids := make([]int64, len(items))
	for i, t := range items {
		ids[i] = t.ID
	}
	seats, err := seatsOf(ctx, q, ids)
	if err != nil {
		return nil, 0, err
	}
	for i := range items {
		items[i].Seats = seats[items[i].ID]
	}
	return items, total, nil
}

func seatsOf(ctx context.Context, q querier, ids []int64) (map[int64][]model.SeatID, error) {
	out := make(map[int64][]model.SeatID, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := q.Query(ctx, `
SELECT transaction_id, region, seat_number FROM transaction_seat
WHERE transaction_id = ANY($1)
ORDER BY transaction_id, region, seat_number`, ids)
	if err != nil {
		return nil, storeErr("list transaction seats", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			txID int64
			id   model.SeatID
		)
		if err := rows.Scan(&txID, &id.Region, &id.Number); err != nil {
			return nil, storeErr("list transaction seats", err)
		}
		out[txID] = append(out[txID], id)
	}
	return out, storeErr("list transaction seats", rows.Err())
}

func scanTransaction(row pgx.Row) (model.Transaction, error) {
	var (
		t       model.Transaction
		ticket  *string
		status  string
		hold    *time.Time
		revoked *string
	)
	err := row.Scan(&t.ID, &ticket, &t.Name, &t.Phone, &status, &t.Timestamp,
		&t.BookedByAdmin, &hold, &revoked, &t.UpdatedAt)
	if err != nil {
		return model.Transaction{}, err
	}
	t.Status = model.Status(status)
	if ticket != nil {
		t.TicketHash = *ticket
	}
	if revoked != nil {
		t.RevokedBy = model.Actor(*revoked)
	}
	if hold != nil {
		h := hold.UTC()
		t.HoldExpiresAt = &h
	}
	t.Timestamp = t.Timestamp.UTC()
	t.UpdatedAt = t.UpdatedAt.UTC()
	return t, nil
}

func scanSeats(rows pgx.Rows) ([]model.Seat, error) {
	defer rows.Close()
	var out []model.Seat
	for rows.Next() {
		var (
			s     model.Seat
			owner *int64
		)
		if err := rows.Scan(&s.ID.Region, &s.ID.Number, &owner); err != nil {
			return nil, err
		}
		if owner != nil {
			s.TransactionID = *owner
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func seatArrays(ids []model.SeatID) ([]string, []int32) {
	regions := make([]string, len(ids))
	numbers := make([]int32, len(ids))
	for i, id := range ids {
		regions[i] = id.Region
		numbers[i] = int32(id.Number)
	}
	return regions, numbers
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

func likePattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(strings.ToLower(s)) + "%"
}
