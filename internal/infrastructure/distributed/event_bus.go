package distributed

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"dealerhub/internal/core/domain"
	"dealerhub/internal/core/ports"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type EventType string

const (
	EventSessionClosed EventType = "session.closed"
)

const eventsChannel = "dealerhub:events"

type Event struct {
	Type       EventType        `json:"type"`
	InstanceID string           `json:"instance_id"`
	Timestamp  time.Time        `json:"timestamp"`
	SessionID  domain.SessionID `json:"session_id,omitempty"`
}

// EventBus fans session events out to the other portal instances over
// Redis pub/sub.
type EventBus struct {
	client     *redis.Client
	instanceID string
	logger     *zap.SugaredLogger
	channel    string
}

var _ ports.SessionEventPublisher = (*EventBus)(nil)

func NewEventBus(client *redis.Client, instanceID string, logger *zap.SugaredLogger) *EventBus {
	return &EventBus{
		client:     client,
		instanceID: instanceID,
		logger:     logger,
		channel:    eventsChannel,
	}
}

func (eb *EventBus) Publish(ctx context.Context, event *Event) error {
	event.InstanceID = eb.instanceID
	event.Timestamp = time.Now().UTC()

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
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

func (eb *EventBus) PublishSessionClosed(ctx context.Context, id domain.SessionID) error {
	return eb.Publish(ctx, &Event{Type: EventSessionClosed, SessionID: id})
}

// Subscribe delivers events from other instances to handler until ctx is
// done. Events published by this instance are skipped.
func (eb *EventBus) Subscribe(ctx context.Context, handler func(*Event) error) error {
	pubsub := eb.client.Subscribe(ctx, eb.channel)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return fmt.Errorf("event subscription closed")
			}
			eb.dispatch(msg.Payload, handler)
		}
	}
}

func (eb *EventBus) dispatch(payload string, handler func(*Event) error) {
	var event Event
	if err := json.Unmarshal([]byte(payload), &event); err != nil {
		eb.logger.Warnw("failed to unmarshal event",
			"error", err,
			"payload", payload,
		)
		return
	}
	if event.InstanceID == eb.instanceID {
		return
	}
	if err := handler(&event); err != nil {
		eb.logger.Warnw("error handling event",
			"type", event.Type,
			"error", err,
		)
	}
}

// ClosedSessionMarker refuses sessions closed elsewhere.
type ClosedSessionMarker interface {
	MarkClosed(id domain.SessionID)
}

// SessionClosedHandler makes closures on other instances take effect here
// immediately, even if their revocation write was lost.
func SessionClosedHandler(target ClosedSessionMarker) func(*Event) error {
	return func(event *Event) error {
		if event.Type != EventSessionClosed {
			return nil
		}
		if event.SessionID == "" {
			return fmt.Errorf("session.closed event without session id")
		}
		target.MarkClosed(event.SessionID)
		return nil
	}
}
