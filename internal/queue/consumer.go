package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/iliyamo/conference-reservation/internal/model"
)

const maxBackoff = 30 * time.Second

// Handler processes one message body.  A returned error rejects the
// message without requeueing it.
type Handler func(ctx context.Context, body []byte) error

// Consumer reads a durable queue and hands every message to a Handler.
type Consumer struct {
	url      string
	queue    string
	prefetch int
	handler  Handler
	log      *zap.Logger
}

// NewConsumer builds a consumer for one queue.
func NewConsumer(url, queue string, h Handler, log *zap.Logger) *Consumer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Consumer{url: url, queue: queue, prefetch: 50, handler: h, log: log.With(zap.String("queue", queue))}
}

// Run connects to the broker and consumes until ctx is cancelled.  Lost
// connections are re-dialled with exponential backoff.
func (c *Consumer) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		conn, err := amqp.Dial(c.url)
		if err != nil {
			c.log.Warn("consumer: dial failed", zap.Error(err), zap.Duration("retry_in", backoff))
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < maxBackoff {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = c.consume(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.log.Warn("consumer: loop ended, reconnecting", zap.Error(err))
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func (c *Consumer) consume(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		c.log.Warn("consumer: set QoS failed", zap.Error(err))
	}
	if _, err := ch.QueueDeclare(c.queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			c.handle(ctx, d.Body, d)
		}
	}
}

// acknowledger is the part of amqp.Delivery the consumer needs.
type acknowledger interface {
	Ack(multiple bool) error
	Nack(multiple, requeue bool) error
}

// Retryable reports whether err is worth redelivering.  Errors opt in by
// implementing Temporary() bool; everything else is treated as poison.
func Retryable(err error) bool {
	var t interface{ Temporary() bool }
	return errors.As(err, &t) && t.Temporary()
}

func (c *Consumer) handle(ctx context.Context, body []byte, ack acknowledger) {
	if err := c.handler(ctx, body); err != nil {
		requeue := Retryable(err)
		c.log.Warn("consumer: handle message failed", zap.Error(err), zap.Bool("requeue", requeue))
		_ = ack.Nack(false, requeue)
		return
	}
	_ = ack.Ack(false)
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// AuditLogHandler writes one structured entry per reservation event.
func AuditLogHandler(audit *zap.Logger) Handler {
	return func(_ context.Context, body []byte) error {
		var ev Event
		if err := json.Unmarshal(body, &ev); err != nil {
			return fmt.Errorf("unmarshal: %w", err)
		}
		if ev.Type == "" || ev.DelegateID == "" {
			return errors.New("event without type or delegate")
		}
		seats := make([]string, 0, len(ev.Seats))
		for _, s := range ev.Seats {
			seats = append(seats, s.String())
		}
		fields := []zap.Field{
			zap.String("event_id", ev.ID),
			zap.String("type", string(ev.Type)),
			zap.String("delegate_id", ev.DelegateID),
			zap.String("entity_id", ev.EntityID),
			zap.Time("occurred_at", ev.OccurredAt),
		}
		if len(seats) > 0 {
			fields = append(fields, zap.String("seats", strings.Join(seats, ",")))
		}
		if ev.Selections != nil {
			fields = append(fields,
				zap.String("track1", ev.Selections.Track1),
				zap.String("track2", ev.Selections.Track2),
				zap.String("panel", ev.Selections.Panel))
		}
		audit.Info("reservation event", fields...)
		return nil
	}
}

// PopulationSink applies an entity population change to the ledger.
type PopulationSink interface {
	SyncPopulation(ctx context.Context, e model.Entity) error
}

// PopulationHandler feeds population updates from the registration system
// into sink.
func PopulationHandler(sink PopulationSink) Handler {
	return func(ctx context.Context, body []byte) error {
		var u PopulationUpdate
		if err := json.Unmarshal(body, &u); err != nil {
			return fmt.Errorf("unmarshal: %w", err)
		}
		name := u.Name
		if name == "" {
			name = u.EntityID
		}
		return sink.SyncPopulation(ctx, model.Entity{ID: u.EntityID, Name: name, Population: u.Population})
	}
}
