package reservation

import (
	"context"
	"time"

	"github.com/iliyamo/seat-reservation/internal/model"
)

// EventType names a committed booking lifecycle change.
type EventType string

const (
	EventHeld      EventType = "booking.held"
	EventConfirmed EventType = "booking.confirmed"
	EventRevoked   EventType = "booking.revoked"
	EventExpired   EventType = "booking.expired"
)

// Event is emitted after a mutation has been committed.
type Event struct {
	Type        EventType
	Transaction model.Transaction
	Actor       model.Actor
	At          time.Time
}

// EventPublisher delivers booking events to downstream consumers.  A
// failed publish never undoes the committed change.
type EventPublisher interface {
	Publish(ctx context.Context, ev Event) error
}
