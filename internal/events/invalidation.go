// Package events fans out manual cache refreshes to every dashboard replica.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// Invalidator drops cached data.
type Invalidator interface {
	InvalidateAll(ctx context.Context) error
}

// InvalidationEvent is the payload published on refresh.
type InvalidationEvent struct {
	Origin   string    `json:"origin"`
	IssuedAt time.Time `json:"issued_at"`
}

// NATSInvalidationBus publishes and consumes invalidation events on a subject.
type NATSInvalidationBus struct {
	conn       *nats.Conn
	subject    string
	instanceID string
	logger     zerolog.Logger
	now        func() time.Time
}

// NewNATSInvalidationBus builds a bus for conn. Each bus gets its own
// instance id so it ignores its own broadcasts.
func NewNATSInvalidationBus(conn *nats.Conn, subject string, logger zerolog.Logger) *NATSInvalidationBus {
	return &NATSInvalidationBus{
		conn:       conn,
		subject:    subject,
		instanceID: uuid.NewString(),
		logger:     logger.With().Str("component", "invalidation_bus").Logger(),
		now:        time.Now,
	}
}

// BroadcastInvalidation tells the other replicas to drop their caches.
func (b *NATSInvalidationBus) BroadcastInvalidation(context.Context) error {
	payload, err := json.Marshal(InvalidationEvent{Origin: b.instanceID, IssuedAt: b.now().UTC()})
	if err != nil {
		return fmt.Errorf("encode invalidation event: %w", err)
	}
	if err := b.conn.Publish(b.subject, payload); err != nil {
		return fmt.Errorf("publish invalidation event: %w", err)
	}
	return nil
}

// Listen invalidates target whenever another replica broadcasts. The
// subscription is drained when ctx is done.
func (b *NATSInvalidationBus) Listen(ctx context.Context, target Invalidator) error {
	sub, err := b.conn.Subscribe(b.subject, func(msg *nats.Msg) {
		b.handle(ctx, msg.Data, target)
	})
	if err != nil {
		return fmt.Errorf("subscribe to %s: %w", b.subject, err)
	}

	go func() {
		<-ctx.Done()
		if err := sub.Drain(); err != nil {
			b.logger.Warn().Err(err).Msg("failed to drain invalidation subscription")
		}
	}()
	return nil
}

func (b *NATSInvalidationBus) handle(ctx context.Context, payload []byte, target Invalidator) bool {
	var event InvalidationEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		b.logger.Warn().Err(err).Msg("invalid invalidation event payload")
		return false
	}
	if event.Origin == b.instanceID {
		return false
	}

	if err := target.InvalidateAll(context.WithoutCancel(ctx)); err != nil {
		b.logger.Error().Err(err).Str("origin", event.Origin).Msg("failed to apply remote invalidation")
		return false
	}
	b.logger.Info().Str("origin", event.Origin).Msg("cache invalidated by remote refresh")
	return true
}
