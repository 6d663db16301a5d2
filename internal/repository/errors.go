// Package repository is the MySQL implementation of reservation.Store.
// Failures that come from the database are wrapped with
// reservation.Unavailable so that callers can tell them apart from
// domain errors; domain errors returned by a unit of work pass through
// unchanged.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/iliyamo/seat-reservation/internal/model"
	"github.com/iliyamo/seat-reservation/internal/reservation"
)

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// storeErr classifies err from a query: no rows becomes ErrNotFound,
// anything else is a store failure.
func storeErr(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sql.ErrNoRows):
		return reservation.ErrNotFound
	case errors.Is(err, reservation.ErrNotFound), errors.Is(err, reservation.ErrStoreUnavailable):
		return err
	}
	return reservation.Unavailable(op, err)
}

// seatTuples renders "(?, ?), (?, ?)" for a row-constructor IN list and
// the matching arguments.
func seatTuples(ids []model.SeatID) (string, []any) {
	parts := make([]string, len(ids))
	args := make([]any, 0, len(ids)*2)
	for i, id := range ids {
		parts[i] = "(?, ?)"
		args = append(args, id.Region, id.Number)
	}
	return strings.Join(parts, ", "), args
}

// likePattern escapes LIKE wildcards in s and wraps it in %...%.
func likePattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(strings.ToLower(s)) + "%"
}
