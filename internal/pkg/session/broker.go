// internal/pkg/session/broker.go
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const eventsChannel = "auth:session-events"

// Broker fans session-change events out to subscribers over Redis
// pub/sub, so every service instance (and every connected dashboard
// client behind one) observes sign-ins, refreshes and revocations made
// anywhere else. This is the server-side analog of a browser auth
// listener firing in every open tab.
type Broker struct {
	client *redis.Client
	logger *zap.Logger
}

func NewBroker(client *redis.Client, logger *zap.Logger) *Broker {
	return &Broker{client: client, logger: logger}
}

// Publish emits a session-change event to all subscribers. Publishing is
// best-effort: a broker outage must not fail the auth operation that
// triggered the event.
func (b *Broker) Publish(ctx context.Context, event Event) {
	if event.At.IsZero() {
		event.At = time.Now()
	}

	data, err := json.Marshal(event)
	if err != nil {
		b.logger.Error("failed to marshal session event", zap.Error(err))
		return
	}

	if err := b.client.Publish(ctx, eventsChannel, data).Err(); err != nil {
		b.logger.Warn("failed to publish session event",
			zap.String("type", string(event.Type)), zap.Error(err))
	}
}

// Subscribe returns a channel of session events plus an unsubscribe
// function. The channel closes after unsubscribe or context
// cancellation; malformed payloads are logged and skipped.
func (b *Broker) Subscribe(ctx context.Context) (<-chan Event, func(), error) {
	sub := b.client.Subscribe(ctx, eventsChannel)

	// Force the subscription to be established before returning so an
	// event published immediately after Subscribe is not lost.
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, nil, fmt.Errorf("failed to subscribe to session events: %w", err)
	}

	events := make(chan Event, 16)

	go func() {
		defer close(events)
		for msg := range sub.Channel() {
			var event Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				b.logger.Warn("dropping malformed session event", zap.Error(err))
				continue
			}

			select {
			case events <- event:
			case <-ctx.Done():
				return
			}
		}
	}()

	unsubscribe := func() {
		if err := sub.Close(); err != nil {
			b.logger.Warn("failed to close session event subscription", zap.Error(err))
		}
	}

	return events, unsubscribe, nil
}
