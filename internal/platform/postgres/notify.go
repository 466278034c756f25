package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/phrazzld/scry-studio/internal/realtime"
)

// ChannelName is the NOTIFY channel the change trigger publishes a parent
// resource's job events on.
func ChannelName(parentID uuid.UUID) string {
	return "jobs_" + strings.ReplaceAll(parentID.String(), "-", "")
}

// notifyEvent is the trigger's payload.
type notifyEvent struct {
	EventType string     `json:"eventType"`
	Old       *notifyRow `json:"old"`
	New       *notifyRow `json:"new"`
}

// DecodeEvent parses a trigger payload into a realtime event.
func DecodeEvent(payload string) (realtime.Event, error) {
	var raw notifyEvent
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		return realtime.Event{}, fmt.Errorf("failed to decode job event: %w", err)
	}

	ev := realtime.Event{
		Type: realtime.EventType(raw.EventType),
		Old:  raw.Old.toDomain(),
		New:  raw.New.toDomain(),
	}
	switch ev.Type {
	case realtime.EventInsert, realtime.EventUpdate:
		if ev.New == nil {
			return realtime.Event{}, fmt.Errorf("%s event without new row", ev.Type)
		}
	case realtime.EventDelete:
		if ev.Old == nil {
			return realtime.Event{}, errors.New("delete event without old row")
		}
	default:
		return realtime.Event{}, fmt.Errorf("unknown event type %q", raw.EventType)
	}
	return ev, nil
}

// NotifyTransport subscribes to job changes with LISTEN on a dedicated
// connection per subscription.
type NotifyTransport struct {
	url    string
	logger *slog.Logger
}

// NewNotifyTransport creates a transport connecting to the database at url.
func NewNotifyTransport(url string, logger *slog.Logger) *NotifyTransport {
	if logger == nil {
		logger = slog.Default()
	}
	return &NotifyTransport{url: url, logger: logger.With("component", "pg_notify_transport")}
}

var _ realtime.Transport = (*NotifyTransport)(nil)

// Subscribe implements realtime.Transport.
func (t *NotifyTransport) Subscribe(
	ctx context.Context,
	parentID uuid.UUID,
	handler realtime.Handler,
) (realtime.Subscription, error) {
	conn, err := pgx.Connect(ctx, t.url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect for LISTEN: %w", err)
	}

	channel := ChannelName(parentID)
	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{channel}.Sanitize()); err != nil {
		_ = conn.Close(context.Background())
		return nil, fmt.Errorf("failed to LISTEN on %s: %w", channel, err)
	}

	streamCtx, cancel := context.WithCancel(context.Background())
	stream := realtime.NewStream(cancel)
	log := t.logger.With("channel", channel)

	go func() {
		defer func() { _ = conn.Close(context.Background()) }()
		for {
			n, err := conn.WaitForNotification(streamCtx)
			if err != nil {
				if streamCtx.Err() != nil {
					stream.Finish(nil)
					return
				}
				log.Warn("notification stream ended", "error", err)
				stream.Finish(fmt.Errorf("%w: %w", realtime.ErrSubscriptionLost, err))
				return
			}

			ev, err := DecodeEvent(n.Payload)
			if err != nil {
				log.Error("dropping undecodable notification", "error", err)
				continue
			}
			handler(streamCtx, ev)
		}
	}()

	log.Debug("listening for job changes")
	return stream, nil
}
