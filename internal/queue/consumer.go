package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v5"
	amqp "github.com/rabbitmq/amqp091-go"
)

// StartBookingConsumer connects to RabbitMQ, declares the booking queue
// (durable) and appends every event to logPath.  Dialing is retried with
// exponential backoff, reset after every successful connection, until ctx
// is cancelled; it then returns ctx.Err().  Malformed messages are rejected
// without requeue so they cannot loop.
func StartBookingConsumer(ctx context.Context, url, logPath string) error {
	for {
		sub, err := subscribe(ctx, url)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		err = sub.consume(ctx, logPath)
		sub.close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Printf("booking-consumer: consume loop ended: %v; reconnecting", err)
	}
}

// subscription is an open connection consuming the booking queue.
type subscription struct {
	conn *amqp.Connection
	ch   *amqp.Channel
	msgs <-chan amqp.Delivery
}

// subscribe dials url and starts consuming, retrying the whole setup until
// it succeeds or ctx is done.
func subscribe(ctx context.Context, url string) (*subscription, error) {
	eb := backoff.NewExponentialBackOff()
	eb.MaxInterval = 30 * time.Second
	return backoff.Retry(ctx, func() (*subscription, error) {
		conn, err := amqp.Dial(url)
		if err != nil {
			return nil, fmt.Errorf("dial: %w", err)
		}
		sub, err := openSubscription(conn)
		if err != nil {
			_ = conn.Close()
			return nil, err
		}
		return sub, nil
	},
		backoff.WithBackOff(eb),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, next time.Duration) {
			log.Printf("booking-consumer: broker not ready: %v; retrying in %s", err, next.Round(time.Millisecond))
		}),
	)
}

func openSubscription(conn *amqp.Connection) (*subscription, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("channel open: %w", err)
	}
	if err := ch.Qos(50, 0, false); err != nil {
		log.Printf("booking-consumer: set QoS failed: %v", err)
	}
	if _, err := ch.QueueDeclare(BookingQueue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.Consume(BookingQueue, "", false, false, false, false, nil)
	if err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("queue consume: %w", err)
	}
	return &subscription{conn: conn, ch: ch, msgs: msgs}, nil
}

func (s *subscription) close() {
	_ = s.ch.Close()
	_ = s.conn.Close()
}

// consume handles deliveries until ctx is done or the channel closes.
func (s *subscription) consume(ctx context.Context, logPath string) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-s.msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := HandleMessage(d.Body, logPath); err != nil {
				log.Printf("booking-consumer: handle message failed: %v", err)
				_ = d.Nack(false, false)
				continue
			}
			_ = d.Ack(false)
		}
	}
}

// HandleMessage decodes one booking event and appends it to logPath,
// creating the directory when needed.
func HandleMessage(body []byte, logPath string) error {
	var ev BookingEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if ev.Type == "" || ev.TransactionID == 0 {
		return errors.New("event without type or transaction id")
	}
	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		return fmt.Errorf("mkdir logs: %w", err)
	}
	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteString(ev.LogLine()); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}
