package distributed

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"castmux/internal/core/domain"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Envelope carries a session event between castmux instances.
type Envelope struct {
	InstanceID string           `json:"instance_id"`
	SentAt     time.Time        `json:"sent_at"`
	Type       domain.EventType `json:"type"`
	SessionID  domain.SessionID `json:"session_id"`
	Timestamp  time.Time        `json:"timestamp"`
	Payload    json.RawMessage  `json:"payload,omitempty"`
}

// Event rebuilds the local event. The payload stays raw JSON.
func (e *Envelope) Event() domain.Event {
	return domain.Event{
		Type:      e.Type,
		SessionID: e.SessionID,
		Timestamp: e.Timestamp,
		Payload:   e.Payload,
	}
}

// EventBus relays session events over Redis pub/sub so every instance's event
// stream sees every session.
type EventBus struct {
	client     *redis.Client
	instanceID string
	channel    string
	logger     *zap.SugaredLogger
}

func NewEventBus(client *redis.Client, channel string, logger *zap.SugaredLogger) *EventBus {
	return &EventBus{
		client:     client,
		instanceID: uuid.New().String(),
		channel:    channel,
		logger:     logger,
	}
}

func (eb *EventBus) InstanceID() string {
	return eb.instanceID
}

func (eb *EventBus) encode(event domain.Event) ([]byte, error) {
	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}
	return json.Marshal(Envelope{
		InstanceID: eb.instanceID,
		SentAt:     time.Now(),
		Type:       event.Type,
		SessionID:  event.SessionID,
		Timestamp:  event.Timestamp,
		Payload:    payload,
	})
}

// Publish sends one event to the other instances.
func (eb *EventBus) Publish(ctx context.Context, event domain.Event) error {
	data, err := eb.encode(event)
	if err != nil {
		return err
	}
	if err := eb.client.Publish(ctx, eb.channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	eb.logger.Debugw("published event",
		"type", event.Type,
		"session_id", event.SessionID,
	)
	return nil
}

// Forward publishes every event read from events until the channel closes or ctx is
// done. Publish failures are logged and skipped.
func (eb *EventBus) Forward(ctx context.Context, events <-chan domain.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			if err := eb.Publish(ctx, event); err != nil {
				eb.logger.Warnw("failed to forward event", "type", event.Type, "error", err)
			}
		}
	}
}

// Subscribe calls handler for every event published by another instance until ctx
// is done.
func (eb *EventBus) Subscribe(ctx context.Context, handler func(*Envelope) error) error {
	pubsub := eb.client.Subscribe(ctx, eb.channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", eb.channel, err)
	}
	ch := pubsub.Channel()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var env Envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				eb.logger.Warnw("failed to unmarshal event",
					"error", err,
					"payload", msg.Payload,
				)
				continue
			}

			if env.InstanceID == eb.instanceID {
				continue
			}

			if err := handler(&env); err != nil {
				eb.logger.Warnw("error handling event",
					"type", env.Type,
					"error", err,
				)
			}
		}
	}
}
