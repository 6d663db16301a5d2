package reservation

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/iliyamo/seat-reservation/internal/clock"
)

// SweeperConfig controls the periodic expiry scan.
type SweeperConfig struct {
	Interval time.Duration // time between sweeps, default 5s
	Batch    int           // max transactions expired per sweep, default 100
}

func (c SweeperConfig) withDefaults() SweeperConfig {
	if c.Interval <= 0 {
		c.Interval = 5 * time.Second
	}
	if c.Batch <= 0 {
		c.Batch = 100
	}
	return c
}

// SweepResult summarizes one sweep.
type SweepResult struct {
	Scanned int
	Expired int
	Failed  int
}

// Sweeper expires pending holds whose deadline has passed and frees their
// seats.  Each transaction is expired in its own unit of work.  Ids that
// failed in an earlier pass are retried only after fresh due ids, so a
// batch of persistently failing holds cannot starve the rest.
type Sweeper struct {
	store       Store
	coordinator *Coordinator
	clock       clock.Clock
	cfg         SweeperConfig
	logf        func(format string, args ...any)

	mu     sync.Mutex
	failed map[int64]int // transaction id -> consecutive failures
}

// NewSweeper returns a sweeper that expires holds through coordinator.
func NewSweeper(store Store, coordinator *Coordinator, clk clock.Clock, cfg SweeperConfig) *Sweeper {
	if store == nil || coordinator == nil {
		panic("nil dependency passed to NewSweeper")
	}
	if clk == nil {
		clk = clock.NewSystem()
	}
	return &Sweeper{
		store:       store,
		coordinator: coordinator,
		clock:       clk,
		cfg:         cfg.withDefaults(),
		logf:        log.Printf,
		failed:      make(map[int64]int),
	}
}

// Sweep expires up to Batch due holds, trying ids that have not failed
// before ahead of ids that have.  The returned error is non-nil only when
// the due list itself could not be read.
func (s *Sweeper) Sweep(ctx context.Context) (SweepResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var res SweepResult
	limit := s.cfg.Batch + len(s.failed)
	due, err := s.store.DuePending(ctx, s.clock.Now(), limit)
	if err != nil {
		return res, err
	}
	if len(due) < limit {
		// The list is complete: anything not in it is no longer due.
		present := make(map[int64]struct{}, len(due))
		for _, id := range due {
			present[id] = struct{}{}
		}
		for id := range s.failed {
			if _, ok := present[id]; !ok {
				delete(s.failed, id)
			}
		}
	}

	fresh := make([]int64, 0, len(due))
	var retry []int64
	for _, id := range due {
		if s.failed[id] > 0 {
			retry = append(retry, id)
		} else {
			fresh = append(fresh, id)
		}
	}
	queue := append(fresh, retry...)
	if len(queue) > s.cfg.Batch {
		queue = queue[:s.cfg.Batch]
	}

	res.Scanned = len(queue)
	for _, id := range queue {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		expired, err := s.coordinator.Expire(ctx, id)
		if err != nil {
			res.Failed++
			s.failed[id]++
			s.logf("sweeper: expire transaction %d (attempt %d): %v", id, s.failed[id], err)
			continue
		}
		delete(s.failed, id)
		if expired {
			res.Expired++
		}
	}
	return res, nil
}

// Run sweeps immediately and then every Interval until ctx is cancelled,
// returning ctx.Err().
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()
	for {
		res, err := s.Sweep(ctx)
		switch {
		case err != nil && !errors.Is(err, context.Canceled):
			s.logf("sweeper: %v", err)
		case res.Expired > 0 || res.Failed > 0:
			s.logf("sweeper: scanned=%d expired=%d failed=%d", res.Scanned, res.Expired, res.Failed)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
