// Package seatlock serializes work on overlapping seat sets.  Each seat has
// its own mutex; a set is locked by acquiring the seat mutexes in canonical
// (region, seat_number) order, so two callers asking for overlapping but
// different sets can never deadlock.
package seatlock

import (
	"sync"

	"github.com/iliyamo/seat-reservation/internal/model"
)

// Table holds one mutex per seat.  The zero value is ready to use.
type Table struct {
	mu    sync.Mutex
	locks map[model.SeatID]*sync.Mutex
}

// Lock acquires every seat in ids and returns the function releasing them.
// Duplicates are ignored.  The returned function must be called exactly once.
func (t *Table) Lock(ids []model.SeatID) (unlock func()) {
	ordered := model.NormalizeSeats(ids)
	held := make([]*sync.Mutex, 0, len(ordered))
	for _, id := range ordered {
		m := t.get(id)
		m.Lock()
		held = append(held, m)
	}
	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].Unlock()
		}
	}
}

func (t *Table) get(id model.SeatID) *sync.Mutex {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.locks == nil {
		t.locks = make(map[model.SeatID]*sync.Mutex)
	}
	m, ok := t.locks[id]
	if !ok {
		m = &sync.Mutex{}
		t.locks[id] = m
	}
	return m
}
