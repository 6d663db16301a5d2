package reservation

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/iliyamo/seat-reservation/internal/clock"
	"github.com/iliyamo/seat-reservation/internal/model"
)

// DefaultHoldTTL matches the original pending timeout of 30 minutes.
const DefaultHoldTTL = 30 * time.Minute

// Coordinator applies booking requests against the Registry and Ledger.
// Each operation runs as a single Store.Atomic unit, so callers never see
// a seat claimed by a transaction whose status disagrees.
type Coordinator struct {
	store    Store
	registry *Registry
	ledger   *Ledger
	clock    clock.Clock
	holdTTL  time.Duration
	events   EventPublisher
	logf     func(format string, args ...any)
}

// Option customizes a Coordinator.
type Option func(*Coordinator)

// WithHoldTTL overrides the default hold duration.
func WithHoldTTL(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.holdTTL = d
		}
	}
}

// WithEventPublisher publishes booking events after each commit.
func WithEventPublisher(p EventPublisher) Option {
	return func(c *Coordinator) { c.events = p }
}

// WithLogf replaces log.Printf for audit lines.
func WithLogf(logf func(format string, args ...any)) Option {
	return func(c *Coordinator) {
		if logf != nil {
			c.logf = logf
		}
	}
}

// NewCoordinator wires a Coordinator.  All dependencies must be non-nil
// and the registry must share the coordinator's store.
func NewCoordinator(store Store, registry *Registry, ledger *Ledger, clk clock.Clock, opts ...Option) *Coordinator {
	if store == nil || registry == nil || ledger == nil {
		panic("nil dependency passed to NewCoordinator")
	}
	if clk == nil {
		clk = clock.NewSystem()
	}
	c := &Coordinator{
		store:    store,
		registry: registry,
		ledger:   ledger,
		clock:    clk,
		holdTTL:  DefaultHoldTTL,
		logf:     log.Printf,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// HoldTTL is the hold duration used when a request does not name one.
func (c *Coordinator) HoldTTL() time.Duration { return c.holdTTL }

// Registry exposes the seat registry for read-only views.
func (c *Coordinator) Registry() *Registry { return c.registry }

// Ledger exposes the ledger for read-only views.
func (c *Coordinator) Ledger() *Ledger { return c.ledger }

// Hold claims seats for a customer and records a pending transaction that
// expires after holdTTL (the default when holdTTL <= 0).  When any seat is
// taken nothing is created and a *SeatsUnavailableError lists the taken
// seats.
func (c *Coordinator) Hold(ctx context.Context, seats []model.SeatID, customer model.Customer, holdTTL time.Duration) (model.Transaction, error) {
	if holdTTL <= 0 {
		holdTTL = c.holdTTL
	}
	t, err := c.book(ctx, seats, customer, holdTTL, false)
	if err != nil {
		return model.Transaction{}, err
	}
	c.logf("BOOKING: id=%d, name=%s, phone=%s, seats=%v, status=%s, admin=false, expires=%s",
		t.ID, t.Name, t.Phone, model.SeatLabels(t.Seats), t.Status, t.HoldExpiresAt.Format(time.RFC3339))
	c.publish(ctx, EventHeld, t, model.ActorCustomer)
	return t, nil
}

// AdminBook is Hold without the hold window: the transaction starts
// active, marked as booked by an admin, with its ticket hash assigned.  It
// never overrides an existing hold.
func (c *Coordinator) AdminBook(ctx context.Context, seats []model.SeatID, customer model.Customer) (model.Transaction, error) {
	t, err := c.book(ctx, seats, customer, 0, true)
	if err != nil {
		return model.Transaction{}, err
	}
	c.logf("BOOKING: id=%d, name=%s, phone=%s, seats=%v, status=%s, admin=true, hash=%s",
		t.ID, t.Name, t.Phone, model.SeatLabels(t.Seats), t.Status, t.TicketHash)
	c.publish(ctx, EventConfirmed, t, model.ActorAdmin)
	return t, nil
}

func (c *Coordinator) book(ctx context.Context, seatIDs []model.SeatID, customer model.Customer, holdTTL time.Duration, byAdmin bool) (model.Transaction, error) {
	if err := c.registry.loaded(); err != nil {
		return model.Transaction{}, err
	}
	seats, err := c.registry.validate(seatIDs)
	if err != nil {
		return model.Transaction{}, err
	}
	customer = customer.Normalize()
	if err := customer.Validate(); err != nil {
		return model.Transaction{}, invalid("%v", err)
	}

	var created model.Transaction
	err = c.store.Atomic(ctx, Scope{Seats: seats}, func(ctx context.Context, tx Tx) error {
		t, err := c.ledger.Create(ctx, tx, CreateInput{
			Seats:    seats,
			Customer: customer,
			HoldTTL:  holdTTL,
			ByAdmin:  byAdmin,
		})
		if err != nil {
			return err
		}
		if err := c.registry.TryClaim(ctx, tx, seats, t.ID); err != nil {
			return err
		}
		created = t
		return nil
	})
	if err != nil {
		return model.Transaction{}, err
	}
	return created, nil
}

// Confirm activates a pending transaction and returns it with its ticket
// hash.  The deadline is re-checked here: a hold found past its deadline
// is expired and its seats released in the same unit, and the call
// reports ErrHoldExpired.  Confirming an active transaction returns it
// unchanged.
func (c *Coordinator) Confirm(ctx context.Context, id int64) (model.Transaction, error) {
	if id <= 0 {
		return model.Transaction{}, ErrNotFound
	}
	var (
		out       model.Transaction
		expired   bool
		unchanged bool
	)
	err := c.store.Atomic(ctx, Scope{TransactionID: id}, func(ctx context.Context, tx Tx) error {
		t, err := tx.Transaction(ctx)
		if err != nil {
			return err
		}
		switch {
		case t.Status == model.StatusActive:
			out, unchanged = t, true
			return nil
		case t.Status == model.StatusExpired:
			return ErrHoldExpired
		case t.HoldExpired(c.clock.Now()):
			if err := c.release(ctx, tx, &t, model.EventExpire, model.ActorSystem); err != nil {
				return err
			}
			out, expired = t, true
			return nil
		}
		if _, err := c.ledger.Transition(ctx, tx, &t, model.EventConfirm, model.ActorAdmin); err != nil {
			return err
		}
		out = t
		return nil
	})
	if err != nil {
		return model.Transaction{}, err
	}
	if expired {
		c.logExpired(out)
		c.publish(ctx, EventExpired, out, model.ActorSystem)
		return out, ErrHoldExpired
	}
	if !unchanged {
		c.logf("APPROVE: id=%d, name=%s, seats=%v, hash=%s", out.ID, out.Name, model.SeatLabels(out.Seats), out.TicketHash)
		c.publish(ctx, EventConfirmed, out, model.ActorAdmin)
	}
	return out, nil
}

// Cancel revokes a pending or active transaction and frees its seats
// immediately, whatever the deadline.  actor is recorded for audit only.
func (c *Coordinator) Cancel(ctx context.Context, id int64, actor model.Actor) (model.Transaction, error) {
	if !actor.Valid() {
		return model.Transaction{}, invalid("unknown actor %q", actor)
	}
	if id <= 0 {
		return model.Transaction{}, ErrNotFound
	}
	var out model.Transaction
	err := c.store.Atomic(ctx, Scope{TransactionID: id}, func(ctx context.Context, tx Tx) error {
		t, err := tx.Transaction(ctx)
		if err != nil {
			return err
		}
		if err := c.release(ctx, tx, &t, model.EventRevoke, actor); err != nil {
			return err
		}
		out = t
		return nil
	})
	if err != nil {
		return model.Transaction{}, err
	}
	c.logf("REVOKE: id=%d, name=%s, seats=%v, hash=%s, by=%s", out.ID, out.Name, model.SeatLabels(out.Seats), out.TicketHash, actor)
	c.publish(ctx, EventRevoked, out, actor)
	return out, nil
}

// Expire moves a pending transaction whose deadline has passed to expired
// and frees its seats.  It reports false when the transaction is no longer
// pending or its deadline has not been reached.
func (c *Coordinator) Expire(ctx context.Context, id int64) (bool, error) {
	var (
		out     model.Transaction
		expired bool
	)
	err := c.store.Atomic(ctx, Scope{TransactionID: id}, func(ctx context.Context, tx Tx) error {
		t, err := tx.Transaction(ctx)
		if err != nil {
			return err
		}
		if !t.HoldExpired(c.clock.Now()) {
			return nil
		}
		if err := c.release(ctx, tx, &t, model.EventExpire, model.ActorSystem); err != nil {
			return err
		}
		out, expired = t, true
		return nil
	})
	if err != nil {
		return false, err
	}
	if expired {
		c.logExpired(out)
		c.publish(ctx, EventExpired, out, model.ActorSystem)
	}
	return expired, nil
}

// release is the shared teardown path of cancel and expiry: transition
// first, then free the seats the transaction still owns.
func (c *Coordinator) release(ctx context.Context, tx Tx, t *model.Transaction, ev model.Event, actor model.Actor) error {
	if _, err := c.ledger.Transition(ctx, tx, t, ev, actor); err != nil {
		return err
	}
	return c.registry.Release(ctx, tx, t.Seats, t.ID)
}

func (c *Coordinator) logExpired(t model.Transaction) {
	c.logf("EXPIRE: id=%d, name=%s, seats=%v", t.ID, t.Name, model.SeatLabels(t.Seats))
}

func (c *Coordinator) publish(ctx context.Context, typ EventType, t model.Transaction, actor model.Actor) {
	if c.events == nil {
		return
	}
	ev := Event{Type: typ, Transaction: t, Actor: actor, At: c.clock.Now()}
	if err := c.events.Publish(ctx, ev); err != nil && !errors.Is(err, context.Canceled) {
		c.logf("reservation: publish %s for transaction %d: %v", typ, t.ID, err)
	}
}
