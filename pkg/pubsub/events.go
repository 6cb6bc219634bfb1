package pubsub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
)

// Media event types.
const (
	EventMediaUploaded         = "media.uploaded"
	EventMediaMetadataRepaired = "media.metadata_repaired"
)

// Envelope wraps every published event.
type Envelope struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	OccurredAt time.Time       `json:"occurred_at"`
	Data       json.RawMessage `json:"data"`
}

// EventPublisher publishes domain events.
type EventPublisher interface {
	Publish(ctx context.Context, eventType string, data any) error
}

// NoopPublisher drops every event.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, string, any) error { return nil }

type topicPublisher interface {
	Publish(ctx context.Context, msg *pubsub.Message) *pubsub.PublishResult
}

// TopicPublisher publishes JSON envelopes to a single topic.
type TopicPublisher struct {
	topic topicPublisher
	now   func() time.Time
}

// NewTopicPublisher wraps a Pub/Sub publisher handle.
func NewTopicPublisher(topic *pubsub.Publisher) (*TopicPublisher, error) {
	if topic == nil {
		return nil, errors.New("pubsub publisher is required")
	}
	return &TopicPublisher{topic: topic, now: time.Now}, nil
}

// Publish encodes data into an envelope and waits for the server ack.
func (p *TopicPublisher) Publish(ctx context.Context, eventType string, data any) error {
	msg, err := buildMessage(eventType, data, p.now())
	if err != nil {
		return err
	}
	if _, err := p.topic.Publish(ctx, msg).Get(ctx); err != nil {
		return fmt.Errorf("publish %s: %w", eventType, err)
	}
	return nil
}

func buildMessage(eventType string, data any, now time.Time) (*pubsub.Message, error) {
	if eventType == "" {
		return nil, errors.New("event type is required")
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", eventType, err)
	}
	envelope := Envelope{
		ID:         uuid.NewString(),
		Type:       eventType,
		OccurredAt: now.UTC(),
		Data:       raw,
	}
	body, err := json.Marshal(envelope)
	if err != nil {
		return nil, fmt.Errorf("encode %s envelope: %w", eventType, err)
	}
	return &pubsub.Message{
		Data: body,
		Attributes: map[string]string{
			"event_type": eventType,
			"event_id":   envelope.ID,
		},
	}, nil
}
