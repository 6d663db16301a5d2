package reservation

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/iliyamo/seat-reservation/internal/model"
)

// Registry is the catalog of bookable seats and the only component that
// changes seat ownership.  It must be loaded before use.
type Registry struct {
	store Store

	mu      sync.RWMutex
	catalog map[model.SeatID]struct{}
}

// NewRegistry returns an empty registry over store.  Call Load before
// serving requests.
func NewRegistry(store Store) *Registry {
	if store == nil {
		panic("nil store passed to NewRegistry")
	}
	return &Registry{store: store}
}

// Load seeds the seats in seed that do not exist yet and then loads the
// full catalog from the store.  It is safe to call again; the catalog is
// replaced atomically.
func (r *Registry) Load(ctx context.Context, seed []model.SeatID) error {
	if len(seed) > 0 {
		if err := r.store.EnsureSeats(ctx, model.NormalizeSeats(seed)); err != nil {
			return fmt.Errorf("seed catalog: %w", err)
		}
	}
	seats, err := r.store.Seats(ctx)
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}
	catalog := make(map[model.SeatID]struct{}, len(seats))
	for _, s := range seats {
		catalog[s.ID] = struct{}{}
	}
	r.mu.Lock()
	r.catalog = catalog
	r.mu.Unlock()
	return nil
}

// Size is the number of seats in the catalog.
func (r *Registry) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.catalog)
}

// Missing returns the ids that are not in the catalog, in input order.
func (r *Registry) Missing(ids []model.SeatID) []model.SeatID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var missing []model.SeatID
	for _, id := range ids {
		if _, ok := r.catalog[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing
}

// TryClaim makes txID the owner of every seat in ids, or of none.  The
// seats must be part of tx's scope.  When any seat is owned by another
// transaction nothing is written and a *SeatsUnavailableError names the
// taken subset.
func (r *Registry) TryClaim(ctx context.Context, tx Tx, ids []model.SeatID, txID int64) error {
	if len(ids) == 0 {
		return invalid("no seats to claim")
	}
	locked, err := tx.Seats(ctx)
	if err != nil {
		return err
	}
	owners := make(map[model.SeatID]int64, len(locked))
	for _, s := range locked {
		owners[s.ID] = s.TransactionID
	}
	var taken, missing []model.SeatID
	for _, id := range ids {
		owner, ok := owners[id]
		switch {
		case !ok:
			missing = append(missing, id)
		case owner != 0 && owner != txID:
			taken = append(taken, id)
		}
	}
	if len(missing) > 0 {
		return &UnknownSeatsError{Seats: missing}
	}
	if len(taken) > 0 {
		return &SeatsUnavailableError{Seats: taken}
	}
	return tx.Claim(ctx, ids, txID)
}

// Release frees the seats in ids still owned by owner.  Seats that are
// already free, or owned by someone else, are left untouched, so releasing
// twice is the same as releasing once.
func (r *Registry) Release(ctx context.Context, tx Tx, ids []model.SeatID, owner int64) error {
	if len(ids) == 0 {
		return nil
	}
	return tx.Release(ctx, ids, owner)
}

// Booked returns the seats currently owned by pending or active
// transactions, with that status.
func (r *Registry) Booked(ctx context.Context) ([]model.SeatState, error) {
	return r.store.BookedSeats(ctx)
}

// Unavailable returns the subset of ids currently owned by a live
// transaction.  The answer is advisory: only Hold decides ownership.
func (r *Registry) Unavailable(ctx context.Context, ids []model.SeatID) ([]model.SeatID, error) {
	booked, err := r.store.BookedSeats(ctx)
	if err != nil {
		return nil, err
	}
	taken := make(map[model.SeatID]struct{}, len(booked))
	for _, b := range booked {
		taken[model.SeatID{Region: b.Region, Number: b.Number}] = struct{}{}
	}
	var out []model.SeatID
	for _, id := range model.NormalizeSeats(ids) {
		if _, ok := taken[id]; ok {
			out = append(out, id)
		}
	}
	return out, nil
}

// validate normalizes a seat request and checks it against the catalog.
func (r *Registry) validate(ids []model.SeatID) ([]model.SeatID, error) {
	seats := model.NormalizeSeats(ids)
	if len(seats) == 0 {
		return nil, invalid("at least one seat is required")
	}
	for _, id := range seats {
		if !id.Valid() {
			return nil, invalid("invalid seat %q", id.String())
		}
	}
	if missing := r.Missing(seats); len(missing) > 0 {
		return nil, &UnknownSeatsError{Seats: missing}
	}
	return seats, nil
}

var errCatalogNotLoaded = errors.New("seat catalog not loaded")

func (r *Registry) loaded() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.catalog == nil {
		return errCatalogNotLoaded
	}
	return nil
}
