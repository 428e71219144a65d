package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go/jetstream"
)

type streamPublisher interface {
	Publish(ctx context.Context, subject string, payload []byte, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error)
}

// Publisher provides typed methods for publishing usage events to JetStream.
type Publisher struct {
	js streamPublisher
}

func NewPublisher(js streamPublisher) *Publisher {
	return &Publisher{js: js}
}

func (p *Publisher) PublishUsage(ctx context.Context, event UsageEvent) error {
	stamp(&event.ID, &event.OccurredAt)
	return p.publish(ctx, SubjectUsageConsumed, event)
}

func (p *Publisher) PublishDenial(ctx context.Context, event DenialEvent) error {
	stamp(&event.ID, &event.OccurredAt)
	return p.publish(ctx, SubjectUsageDenied, event)
}

func (p *Publisher) PublishTierChange(ctx context.Context, event TierEvent) error {
	stamp(&event.ID, &event.OccurredAt)
	return p.publish(ctx, SubjectTierChanged, event)
}

func stamp(id *uuid.UUID, at *time.Time) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
	if at.IsZero() {
		*at = time.Now().UTC()
	}
}

func (p *Publisher) publish(ctx context.Context, subject string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshaling event for %s: %w", subject, err)
	}
	_, err = p.js.Publish(ctx, subject, payload)
	if err != nil {
		return fmt.Errorf("publishing to %s: %w", subject, err)
	}
	return nil
}
