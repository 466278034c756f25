// Package redisbus fans job changes out over Redis Pub/Sub. The server
// publishes every job write; clients subscribe per parent resource.
package redisbus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-studio/internal/events"
	"github.com/phrazzld/scry-studio/internal/realtime"
	"github.com/redis/go-redis/v9"
)

// Channel is the Pub/Sub channel carrying a parent resource's job events.
func Channel(parentID uuid.UUID) string {
	return "jobs:" + parentID.String()
}

// Bus publishes and subscribes to job events.
type Bus struct {
	client *redis.Client
	logger *slog.Logger
}

// New connects to the Redis server at redisURL.
func New(redisURL string, logger *slog.Logger) (*Bus, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	return NewWithClient(redis.NewClient(opts), logger), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client *redis.Client, logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{client: client, logger: logger.With("component", "redis_bus")}
}

var (
	_ realtime.Transport  = (*Bus)(nil)
	_ events.EventHandler = (*Bus)(nil)
)

// Ping checks connectivity.
func (b *Bus) Ping(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}

// Close releases the client.
func (b *Bus) Close() error {
	return b.client.Close()
}

// Publish sends ev to the subscribers of parentID.
func (b *Bus) Publish(ctx context.Context, parentID uuid.UUID, ev realtime.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to encode job event: %w", err)
	}
	if err := b.client.Publish(ctx, Channel(parentID), payload).Err(); err != nil {
		return fmt.Errorf("failed to publish job event: %w", err)
	}
	return nil
}

// HandleEvent implements events.EventHandler by publishing the change.
func (b *Bus) HandleEvent(ctx context.Context, event *events.JobChangeEvent) error {
	parentID := event.ParentID()
	if parentID == uuid.Nil {
		return nil
	}
	return b.Publish(ctx, parentID, realtime.Event{
		Type: realtime.EventType(event.Type),
		Old:  event.Old,
		New:  event.New,
	})
}

// Subscribe implements realtime.Transport. It returns after Redis confirms
// the subscription.
func (b *Bus) Subscribe(
	ctx context.Context,
	parentID uuid.UUID,
	handler realtime.Handler,
) (realtime.Subscription, error) {
	channel := Channel(parentID)
	ps := b.client.Subscribe(ctx, channel)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", channel, err)
	}

	streamCtx, cancel := context.WithCancel(context.Background())
	stream := realtime.NewStream(cancel)
	log := b.logger.With("channel", channel)

	go func() {
		defer func() { _ = ps.Close() }()
		for {
			msg, err := ps.ReceiveMessage(streamCtx)
			if err != nil {
				if streamCtx.Err() != nil {
					stream.Finish(nil)
					return
				}
				log.Warn("pubsub stream ended", "error", err)
				stream.Finish(fmt.Errorf("%w: %w", realtime.ErrSubscriptionLost, err))
				return
			}

			var ev realtime.Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				log.Error("dropping undecodable message", "error", err)
				continue
			}
			handler(streamCtx, ev)
		}
	}()

	return stream, nil
}
