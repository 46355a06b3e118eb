// Package kafka publishes audit events to a Kafka topic.
package kafka

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	audit "passage/pkg/platform/audit"
)

// DefaultTopic receives marker audit events unless configured otherwise.
const DefaultTopic = "passage.audit"

// Config describes the broker connection.
type Config struct {
	Brokers           []string
	Topic             string
	ClientID          string
	Partitions        int32
	ReplicationFactor int16
}

// Sink produces one record per event, keyed by subject so a subject's
// events stay ordered within a partition.
type Sink struct {
	client *kgo.Client
	topic  string
	logger *slog.Logger
}

// New connects to the brokers and makes sure the topic exists.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Sink, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka brokers are required")
	}
	if cfg.Topic == "" {
		cfg.Topic = DefaultTopic
	}
	if cfg.Partitions <= 0 {
		cfg.Partitions = 1
	}
	if cfg.ReplicationFactor <= 0 {
		cfg.ReplicationFactor = 1
	}
	if logger == nil {
		logger = slog.Default()
	}

	opts := []kgo.Opt{
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.DefaultProduceTopic(cfg.Topic),
		kgo.RequiredAcks(kgo.AllISRAcks()),
	}
	if cfg.ClientID != "" {
		opts = append(opts, kgo.ClientID(cfg.ClientID))
	}
	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}

	if err := ensureTopic(ctx, client, cfg); err != nil {
		client.Close()
		return nil, err
	}
	return &Sink{client: client, topic: cfg.Topic, logger: logger}, nil
}

func ensureTopic(ctx context.Context, client *kgo.Client, cfg Config) error {
	adm := kadm.NewClient(client)
	resp, err := adm.CreateTopics(ctx, cfg.Partitions, cfg.ReplicationFactor, nil, cfg.Topic)
	if err != nil {
		return fmt.Errorf("create topic %s: %w", cfg.Topic, err)
	}
	for _, r := range resp {
		if r.Err != nil && !errors.Is(r.Err, kerr.TopicAlreadyExists) {
			return fmt.Errorf("create topic %s: %w", r.Topic, r.Err)
		}
	}
	return nil
}

// Append produces event synchronously.
func (s *Sink) Append(ctx context.Context, event audit.Event) error {
	payload, err := audit.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}
	record := &kgo.Record{
		Topic: s.topic,
		Key:   []byte(event.Subject),
		Value: payload,
		Headers: []kgo.RecordHeader{
			{Key: "action", Value: []byte(event.Action)},
		},
	}
	if err := s.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		s.logger.WarnContext(ctx, "kafka produce failed", "topic", s.topic, "action", event.Action, "error", err)
		return fmt.Errorf("produce audit event: %w", err)
	}
	return nil
}

// Close flushes pending records and closes the client.
func (s *Sink) Close() {
	s.client.Close()
}
