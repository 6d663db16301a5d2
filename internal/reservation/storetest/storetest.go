// Package storetest holds the behaviour every reservation.Store must
// share.  Store packages call Run from their own tests.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/iliyamo/seat-reservation/internal/clock"
	"github.com/iliyamo/seat-reservation/internal/model"
	"github.com/iliyamo/seat-reservation/internal/reservation"
)

// Factory returns an empty, migrated store.  It is called once per subtest.
type Factory func(t *testing.T) reservation.Store

var start = time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)

type env struct {
	store reservation.Store
	clock *clock.Manual
	coord *reservation.Coordinator
}

func setup(t *testing.T, newStore Factory) env {
	t.Helper()
	store := newStore(t)
	clk := clock.NewManual(start)
	registry := reservation.NewRegistry(store)
	catalog, err := model.ParseCatalog("WLA:1-6,WLB:1-6")
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	if err := registry.Load(context.Background(), catalog); err != nil {
		t.Fatalf("load registry: %v", err)
	}
	ledger := reservation.NewLedger(store, clk)
	coord := reservation.NewCoordinator(store, registry, ledger, clk,
		reservation.WithHoldTTL(time.Minute), reservation.WithLogf(t.Logf))
	return env{store: store, clock: clk, coord: coord}
}

func seats(labels ...string) []model.SeatID {
	out := make([]model.SeatID, 0, len(labels))
	for _, l := range labels {
		id, err := model.ParseSeatID(l)
		if err != nil {
			panic(err)
		}
		out = append(out, id)
	}
	return out
}

var customer = model.Customer{Name: "Sari", Phone: "0811"}

// Run exercises newStore against the reservation contract.
func Run(t *testing.T, newStore Factory) {
	t.Run("catalog seeding is idempotent", func(t *testing.T) {
		e := setup(t, newStore)
		ctx := context.Background()
		if err := e.store.EnsureSeats(ctx, seats("WLA-1", "WLC-1")); err != nil {
			t.Fatalf("ensure: %v", err)
		}
		all, err := e.store.Seats(ctx)
		if err != nil {
			t.Fatalf("seats: %v", err)
		}
		if len(all) != 13 {
			t.Fatalf("seats = %d, want 13", len(all))
		}
		for i := 1; i < len(all); i++ {
			if !all[i-1].ID.Less(all[i].ID) {
				t.Fatalf("seats not in canonical order at %d: %v", i, all[i].ID)
			}
		}
	})

	t.Run("hold confirm and cancel", func(t *testing.T) {
		e := setup(t, newStore)
		ctx := context.Background()
		held, err := e.coord.Hold(ctx, seats("WLA-2", "WLA-1"), customer, 0)
		if err != nil {
			t.Fatalf("hold: %v", err)
		}
		if held.ID == 0 || !reflect.DeepEqual(held.Seats, seats("WLA-1", "WLA-2")) {
			t.Fatalf("held = %+v", held)
		}

		stored, err := e.store.Transaction(ctx, held.ID)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if stored.Status != model.StatusPending || stored.HoldExpiresAt == nil || !stored.HoldExpiresAt.Equal(start.Add(time.Minute)) {
			t.Fatalf("stored = %+v", stored)
		}
		if !reflect.DeepEqual(stored.Seats, held.Seats) {
			t.Fatalf("stored seats = %v, want %v", stored.Seats, held.Seats)
		}

		confirmed, err := e.coord.Confirm(ctx, held.ID)
		if err != nil {
			t.Fatalf("confirm: %v", err)
		}
		byTicket, err := e.store.TransactionByTicket(ctx, confirmed.TicketHash)
		if err != nil || byTicket.ID != held.ID || byTicket.HoldExpiresAt != nil {
			t.Fatalf("by ticket = %+v, %v", byTicket, err)
		}
		booked, _ := e.store.BookedSeats(ctx)
		if len(booked) != 2 || booked[0].Status != model.StatusActive {
			t.Fatalf("booked = %v", booked)
		}

		if _, err := e.coord.Cancel(ctx, held.ID, model.ActorAdmin); err != nil {
			t.Fatalf("cancel: %v", err)
		}
		if booked, _ := e.store.BookedSeats(ctx); len(booked) != 0 {
			t.Fatalf("booked after cancel = %v", booked)
		}
		revoked, _ := e.store.Transaction(ctx, held.ID)
		if revoked.Status != model.StatusRevoked || revoked.RevokedBy != model.ActorAdmin || revoked.TicketHash != confirmed.TicketHash {
			t.Fatalf("revoked = %+v", revoked)
		}
	})

	t.Run("conflicting hold creates nothing", func(t *testing.T) {
		e := setup(t, newStore)
		ctx := context.Background()
		if _, err := e.coord.Hold(ctx, seats("WLB-1"), customer, 0); err != nil {
			t.Fatalf("hold: %v", err)
		}
		_, err := e.coord.Hold(ctx, seats("WLB-1", "WLB-2"), customer, 0)
		var unavailable *reservation.SeatsUnavailableError
		if !errors.As(err, &unavailable) || !reflect.DeepEqual(unavailable.Seats, seats("WLB-1")) {
			t.Fatalf("err = %v, want WLB-1 unavailable", err)
		}
		counts, _ := e.store.CountByStatus(ctx)
		if counts[model.StatusPending] != 1 {
			t.Fatalf("counts = %v, want one pending", counts)
		}
		if booked, _ := e.store.BookedSeats(ctx); len(booked) != 1 {
			t.Fatalf("booked = %v, want only WLB-1", booked)
		}
	})

	t.Run("unknown transaction", func(t *testing.T) {
		e := setup(t, newStore)
		ctx := context.Background()
		if _, err := e.store.Transaction(ctx, 987654); !errors.Is(err, reservation.ErrNotFound) {
			t.Fatalf("err = %v, want ErrNotFound", err)
		}
		if _, err := e.store.TransactionByTicket(ctx, "nope"); !errors.Is(err, reservation.ErrNotFound) {
			t.Fatalf("err = %v, want ErrNotFound", err)
		}
		err := e.store.Atomic(ctx, reservation.Scope{TransactionID: 987654}, func(ctx context.Context, tx reservation.Tx) error {
			t.Fatal("fn called for unknown transaction")
			return nil
		})
		if !errors.Is(err, reservation.ErrNotFound) {
			t.Fatalf("atomic err = %v, want ErrNotFound", err)
		}
	})

	t.Run("due holds and expiry", func(t *testing.T) {
		e := setup(t, newStore)
		ctx := context.Background()
		first, _ := e.coord.Hold(ctx, seats("WLA-3"), customer, 0)
		e.clock.Advance(10 * time.Second)
		second, _ := e.coord.Hold(ctx, seats("WLA-4"), customer, 0)
		if _, err := e.coord.AdminBook(ctx, seats("WLA-5"), customer); err != nil {
			t.Fatalf("admin book: %v", err)
		}

		due, err := e.store.DuePending(ctx, start.Add(time.Minute), 10)
		if err != nil {
			t.Fatalf("due: %v", err)
		}
		if !reflect.DeepEqual(due, []int64{first.ID}) {
			t.Fatalf("due = %v, want [%d]", due, first.ID)
		}
		due, _ = e.store.DuePending(ctx, start.Add(time.Hour), 10)
		if !reflect.DeepEqual(due, []int64{first.ID, second.ID}) {
			t.Fatalf("due = %v, want [%d %d]", due, first.ID, second.ID)
		}

		e.clock.Advance(time.Hour)
		sweeper := reservation.NewSweeper(e.store, e.coord, e.clock, reservation.SweeperConfig{Batch: 1})
		res, err := sweeper.Sweep(ctx)
		if err != nil || res.Expired != 1 {
			t.Fatalf("sweep = %+v, %v; want 1 expired", res, err)
		}
		res, _ = sweeper.Sweep(ctx)
		if res.Expired != 1 {
			t.Fatalf("second sweep = %+v, want 1 expired", res)
		}
		booked, _ := e.store.BookedSeats(ctx)
		if len(booked) != 1 || booked[0].Number != 5 {
			t.Fatalf("booked = %v, want only WLA-5", booked)
		}
	})

	t.Run("listing filters and pages", func(t *testing.T) {
		e := setup(t, newStore)
		ctx := context.Background()
		var ids []int64
		for i, label := range []string{"WLB-1", "WLB-2", "WLB-3"} {
			c := model.Customer{Name: fmt.Sprintf("Guest %d", i), Phone: fmt.Sprintf("08%02d", i)}
			tr, err := e.coord.Hold(ctx, seats(label), c, 0)
			if err != nil {
				t.Fatalf("hold: %v", err)
			}
			ids = append(ids, tr.ID)
			e.clock.Advance(time.Second)
		}
		if _, err := e.coord.Confirm(ctx, ids[0]); err != nil {
			t.Fatalf("confirm: %v", err)
		}

		items, total, err := e.store.ListTransactions(ctx, model.TransactionFilter{PerPage: 2}.Normalize())
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if total != 3 || len(items) != 2 || items[0].ID != ids[2] || items[1].ID != ids[1] {
			t.Fatalf("page 1 = %v (total %d)", items, total)
		}
		items, _, _ = e.store.ListTransactions(ctx, model.TransactionFilter{Page: 2, PerPage: 2}.Normalize())
		if len(items) != 1 || items[0].ID != ids[0] || items[0].Status != model.StatusActive {
			t.Fatalf("page 2 = %v", items)
		}

		for _, f := range []model.TransactionFilter{
			{Search: "wlb-2"},
			{Search: "guest 1"},
			{Search: "0801"},
		} {
			items, total, err := e.store.ListTransactions(ctx, f.Normalize())
			if err != nil || total != 1 || items[0].ID != ids[1] {
				t.Fatalf("search %q = %v (total %d), %v", f.Search, items, total, err)
			}
		}
		items, total, _ = e.store.ListTransactions(ctx, model.TransactionFilter{Status: model.StatusActive}.Normalize())
		if total != 1 || items[0].ID != ids[0] {
			t.Fatalf("active = %v", items)
		}
		if _, total, _ := e.store.ListTransactions(ctx, model.TransactionFilter{Search: "100%"}.Normalize()); total != 0 {
			t.Fatalf("wildcard search matched %d", total)
		}
	})

	t.Run("concurrent holds never double book", func(t *testing.T) {
		e := setup(t, newStore)
		ctx := context.Background()
		requests := [][]model.SeatID{
			seats("WLA-1", "WLA-2"),
			seats("WLA-2", "WLA-3"),
			seats("WLA-3", "WLA-1"),
			seats("WLA-2"),
		}
		var (
			wg  sync.WaitGroup
			mu  sync.Mutex
			won = map[model.SeatID]int{}
		)
		for r := 0; r < 5; r++ {
			for _, req := range requests {
				wg.Add(1)
				go func(req []model.SeatID) {
					defer wg.Done()
					tr, err := e.coord.Hold(ctx, req, customer, 0)
					if err != nil {
						if !errors.Is(err, reservation.ErrSeatsUnavailable) && !errors.Is(err, reservation.ErrStoreUnavailable) {
							t.Errorf("hold %v: %v", req, err)
						}
						return
					}
					mu.Lock()
					for _, s := range tr.Seats {
						won[s]++
					}
					mu.Unlock()
				}(req)
			}
		}
		wg.Wait()
		for s, n := range won {
			if n > 1 {
				t.Fatalf("seat %s held %d times", s, n)
			}
		}
		booked, _ := e.store.BookedSeats(ctx)
		if len(booked) != len(won) {
			t.Fatalf("booked = %d seats, winners hold %d", len(booked), len(won))
		}
	})
}
