// Package kafka publishes audit events to a Kafka topic for downstream
// compliance consumers. The sink is fire-and-forget: a broker outage must
// never fail the business transaction that emitted the event.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	"workpermit/internal/audit"
)

// Publisher produces audit events to a single topic, keyed by entity ID so
// per-entity ordering is preserved.
type Publisher struct {
	client *kgo.Client
	topic  string
	logger *slog.Logger
}

// New connects to the brokers and ensures the audit topic exists.
func New(ctx context.Context, brokers []string, topic string, logger *slog.Logger) (*Publisher, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}

	adm := kadm.NewClient(client)
	resp, err := adm.CreateTopic(ctx, 1, 1, nil, topic)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("ensure audit topic: %w", err)
	}
	if resp.Err != nil && !errors.Is(resp.Err, kerr.TopicAlreadyExists) {
		client.Close()
		return nil, fmt.Errorf("ensure audit topic %s: %w", topic, resp.Err)
	}

	return &Publisher{client: client, topic: topic, logger: logger}, nil
}

// Append satisfies audit.Store so the publisher can sit in a fan-out chain.
// Produce errors are logged, not returned: audit delivery to Kafka is
// best-effort while the Postgres store remains the durable record.
func (p *Publisher) Append(ctx context.Context, event audit.Event) error {
	payload, err := json.Marshal(map[string]any{
		"occurred_at": event.Timestamp,
		"actor":       event.Actor,
		"action":      event.Action,
		"entity":      event.Entity,
		"entity_id":   event.EntityID,
		"request_id":  event.RequestID,
		"detail":      event.Detail,
	})
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}

	record := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(event.EntityID),
		Value: payload,
	}
	p.client.Produce(ctx, record, func(_ *kgo.Record, err error) {
		if err != nil {
			p.logger.Warn("audit kafka produce failed", "action", event.Action, "error", err)
		}
	})
	return nil
}

// ListByEntity is not supported on the Kafka sink.
func (p *Publisher) ListByEntity(context.Context, string, string) ([]audit.Event, error) {
	return nil, fmt.Errorf("kafka audit sink does not support listing")
}

// Close flushes pending records and releases the client.
func (p *Publisher) Close(ctx context.Context) error {
	if err := p.client.Flush(ctx); err != nil {
		return fmt.Errorf("flush kafka producer: %w", err)
	}
	p.client.Close()
	return nil
}
