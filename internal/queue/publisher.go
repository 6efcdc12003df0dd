package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/iliyamo/pool-booking/internal/model"
)

const (
	dialTimeout   = 2 * time.Second
	redialBackoff = 5 * time.Second
)

// Publisher sends booking confirmations to a durable queue on the default
// exchange.  One connection is kept for the life of the process and
// re-dialled when the broker drops it.  After a failed dial, publishes
// fail fast until redialBackoff has passed.
type Publisher struct {
	url   string
	queue string
	log   *zap.Logger
	now   func() time.Time
	dial  func(url string) (*amqp.Connection, error)

	mu       sync.Mutex
	conn     *amqp.Connection
	ch       *amqp.Channel
	nextDial time.Time
	dialErr  error
}

func dialWithTimeout(url string) (*amqp.Connection, error) {
	return amqp.DialConfig(url, amqp.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
		Dial:      amqp.DefaultDial(dialTimeout),
	})
}

func newPublisher(url, queue string, logger *zap.Logger) *Publisher {
	return &Publisher{url: url, queue: queue, log: logger.Named("publisher"), now: time.Now, dial: dialWithTimeout}
}

// NewPublisher dials the broker and declares queue.
func NewPublisher(url, queue string, logger *zap.Logger) (*Publisher, error) {
	p := newPublisher(url, queue, logger)
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, err := p.channelLocked(); err != nil {
		return nil, err
	}
	return p, nil
}

// channelLocked returns an open channel, dialling again if needed.
// p.mu must be held.
func (p *Publisher) channelLocked() (*amqp.Channel, error) {
	if p.ch != nil && !p.ch.IsClosed() {
		return p.ch, nil
	}
	if p.conn == nil || p.conn.IsClosed() {
		if now := p.now(); now.Before(p.nextDial) {
			return nil, fmt.Errorf("rabbitmq unavailable, next dial in %s: %w", p.nextDial.Sub(now).Round(time.Millisecond), p.dialErr)
		}
		conn, err := p.dial(p.url)
		if err != nil {
			p.nextDial = p.now().Add(redialBackoff)
			p.dialErr = err
			return nil, fmt.Errorf("dial rabbitmq: %w", err)
		}
		p.conn = conn
		p.nextDial, p.dialErr = time.Time{}, nil
	}
	ch, err := p.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if _, err := ch.QueueDeclare(p.queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("declare queue: %w", err)
	}
	p.ch = ch
	return ch, nil
}

// Publish sends ev as a persistent JSON message.
func (p *Publisher) Publish(ctx context.Context, ev BookingConfirmedEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	ch, err := p.channelLocked()
	if err != nil {
		return err
	}
	err = ch.PublishWithContext(ctx, "", p.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    ev.EventID,
		Timestamp:    p.now().UTC(),
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

// SendBookingConfirmation publishes the confirmation of a committed
// booking.
func (p *Publisher) SendBookingConfirmation(ctx context.Context, email string, info model.SessionInfo) error {
	ev := NewBookingConfirmedEvent(email, info, p.now())
	if err := p.Publish(ctx, ev); err != nil {
		return err
	}
	p.log.Debug("confirmation published", zap.String("event_id", ev.EventID), zap.String("user", email))
	return nil
}

// Close releases the channel and the connection.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}
	if p.conn != nil {
		err := p.conn.Close()
		p.conn = nil
		return err
	}
	return nil
}
