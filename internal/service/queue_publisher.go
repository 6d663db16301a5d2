// Package service holds adapters that connect the reservation core to
// outside systems.  Publisher delivers booking events to RabbitMQ.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/seat-reservation/internal/queue"
	"github.com/iliyamo/seat-reservation/internal/reservation"
)

const (
	defaultDialTimeout = 2 * time.Second
	defaultRetryAfter  = 5 * time.Second
)

// ErrBrokerUnavailable is returned without dialing while a recent dial
// failure is cooling down.
var ErrBrokerUnavailable = errors.New("rabbitmq: broker unavailable")

// Publisher implements reservation.EventPublisher over RabbitMQ.  The
// connection is opened on first use and reopened after the broker drops
// it.  Dialing happens outside the lock with a short timeout, and after a
// failed dial Publish fails fast for RetryAfter.  Messages are persistent
// and routed through the default exchange to queue.BookingQueue.
type Publisher struct {
	url         string
	DialTimeout time.Duration
	RetryAfter  time.Duration
	now         func() time.Time

	mu        sync.Mutex
	conn      *amqp.Connection
	ch        *amqp.Channel
	downUntil time.Time
}

var _ reservation.EventPublisher = (*Publisher)(nil)

// NewPublisher returns a publisher for the broker at url.  No connection
// is made until the first Publish.
func NewPublisher(url string) *Publisher {
	return &Publisher{
		url:         url,
		DialTimeout: defaultDialTimeout,
		RetryAfter:  defaultRetryAfter,
		now:         time.Now,
	}
}

// Publish sends ev as JSON.  Errors are returned so the caller can log
// them; the booking itself has already been committed.
func (p *Publisher) Publish(ctx context.Context, ev reservation.Event) error {
	body, err := json.Marshal(queue.NewBookingEvent(ev))
	if err != nil {
		return fmt.Errorf("rabbitmq: marshal event: %w", err)
	}

	ch, err := p.channel(ctx)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent, // store on disk
		MessageId:    uuid.NewString(),
		Type:         string(ev.Type),
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx,
		"",                 // default exchange
		queue.BookingQueue, // routing key = queue name
		false,              // mandatory
		false,              // immediate
		pub,
	); err != nil {
		p.reset()
		return fmt.Errorf("rabbitmq: publish: %w", err)
	}
	return nil
}

// Close closes the broker connection, if any.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn == nil {
		return nil
	}
	err := p.conn.Close()
	p.conn, p.ch = nil, nil
	return err
}

// channel returns an open channel, dialing when needed.  The dial runs
// without p.mu so one slow broker does not queue every caller behind it.
func (p *Publisher) channel(ctx context.Context) (*amqp.Channel, error) {
	p.mu.Lock()
	if p.ch != nil && !p.ch.IsClosed() && p.conn != nil && !p.conn.IsClosed() {
		ch := p.ch
		p.mu.Unlock()
		return ch, nil
	}
	if p.now().Before(p.downUntil) {
		p.mu.Unlock()
		return nil, ErrBrokerUnavailable
	}
	p.mu.Unlock()

	conn, ch, err := p.open(ctx)

	p.mu.Lock()
	defer p.mu.Unlock()
	if err != nil {
		if ctx.Err() == nil {
			p.downUntil = p.now().Add(p.RetryAfter)
		}
		return nil, err
	}
	if p.ch != nil && !p.ch.IsClosed() && p.conn != nil && !p.conn.IsClosed() {
		// Another caller connected first.
		_ = conn.Close()
		return p.ch, nil
	}
	p.reset()
	p.conn, p.ch, p.downUntil = conn, ch, time.Time{}
	return ch, nil
}

func (p *Publisher) open(ctx context.Context) (*amqp.Connection, *amqp.Channel, error) {
	timeout := p.DialTimeout
	conn, err := amqp.DialConfig(p.url, amqp.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
		Dial: func(network, addr string) (net.Conn, error) {
			d := net.Dialer{Timeout: timeout}
			c, err := d.DialContext(ctx, network, addr)
			if err != nil {
				return nil, err
			}
			// Bounds the AMQP handshake; the library clears it once open.
			if err := c.SetDeadline(time.Now().Add(timeout)); err != nil {
				_ = c.Close()
				return nil, err
			}
			return c, nil
		},
	})
	if err != nil {
		return nil, nil, fmt.Errorf("rabbitmq: dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("rabbitmq: channel open: %w", err)
	}
	// Durable so messages survive broker restarts.
	if _, err := ch.QueueDeclare(queue.BookingQueue, true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("rabbitmq: queue declare: %w", err)
	}
	return conn, ch, nil
}

// reset drops the current connection.  p.mu must be held.
func (p *Publisher) reset() {
	if p.conn != nil {
		_ = p.conn.Close()
	}
	p.conn, p.ch = nil, nil
}
