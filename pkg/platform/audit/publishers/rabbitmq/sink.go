// Package rabbitmq publishes audit events to a RabbitMQ queue.
package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	audit "passage/pkg/platform/audit"
)

// DefaultQueue receives marker audit events unless configured otherwise.
const DefaultQueue = "passage.audit"

// Config describes the broker connection.
type Config struct {
	URL     string
	Queue   string
	Durable bool
}

// Sink publishes persistent JSON messages to a declared queue.
type Sink struct {
	mu    sync.Mutex
	conn  *amqp.Connection
	ch    *amqp.Channel
	queue string
}

// New dials the broker and declares the queue.
func New(cfg Config) (*Sink, error) {
	if cfg.URL == "" {
		return nil, errors.New("rabbitmq URL is required")
	}
	queue := cfg.Queue
	if queue == "" {
		queue = DefaultQueue
	}
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open rabbitmq channel: %w", err)
	}
	if _, err := ch.QueueDeclare(queue, cfg.Durable, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare rabbitmq queue: %w", err)
	}
	return &Sink{conn: conn, ch: ch, queue: queue}, nil
}

// Append publishes event to the queue. Channels are not safe for concurrent
// publishing, so calls are serialised.
func (s *Sink) Append(ctx context.Context, event audit.Event) error {
	payload, err := audit.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ch == nil {
		return errors.New("rabbitmq sink is closed")
	}
	err = s.ch.PublishWithContext(ctx, "", s.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Type:         event.Action,
		Timestamp:    event.Timestamp,
		Body:         payload,
	})
	if err != nil {
		return fmt.Errorf("publish audit event: %w", err)
	}
	return nil
}

// Close closes the channel and then the connection.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ch != nil {
		_ = s.ch.Close()
		s.ch = nil
	}
	if s.conn != nil {
		err := s.conn.Close()
		s.conn = nil
		return err
	}
	return nil
}
