package bus

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/opensource-finance/amlboard/internal/domain"
)

// New creates an event bus from configuration: "channel" for a single
// process, "nats" when several amlboard replicas share events.
func New(cfg domain.EventBusConfig) (domain.EventBus, error) {
	switch cfg.Type {
	case "channel", "":
		return NewChannelBus(cfg.ChannelBufferSize), nil

	case "nats":
		return NewNATSBus(cfg)

	default:
		return nil, fmt.Errorf("unsupported event bus type: %s", cfg.Type)
	}
}

// PublishEvent encodes event as JSON and publishes it on topic.
func PublishEvent(ctx context.Context, b domain.EventBus, topic string, event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode %s event: %w", topic, err)
	}
	return b.Publish(ctx, topic, payload)
}

// DecodeEvent decodes a message payload into v.
func DecodeEvent(msg *domain.Message, v any) error {
	if err := json.Unmarshal(msg.Payload, v); err != nil {
		return fmt.Errorf("failed to decode %s event %s: %w", msg.Topic, msg.ID, err)
	}
	return nil
}
