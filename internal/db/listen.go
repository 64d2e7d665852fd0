package db

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"
)

const (
	ChannelActionQueue = "realm_action_queue"
	ChannelEvents      = "realm_events"
)

// Notification is a NOTIFY payload received on one of the realm channels.
type Notification struct {
	Channel string
	Payload string
}

// Listen subscribes to the given channels and forwards notifications until
// ctx is cancelled. A nil Notification with an empty channel is sent after a
// reconnect so consumers can resynchronise.
func Listen(ctx context.Context, databaseURL string, logger *slog.Logger, channels ...string) (<-chan Notification, error) {
	if logger == nil {
		logger = slog.Default()
	}
	onEvent := func(ev pq.ListenerEventType, err error) {
		switch ev {
		case pq.ListenerEventConnectionAttemptFailed, pq.ListenerEventDisconnected:
			logger.Warn("listener connection problem", "event", int(ev), "err", err)
		case pq.ListenerEventReconnected:
			logger.Info("listener reconnected")
		}
	}
	l := pq.NewListener(databaseURL, 2*time.Second, time.Minute, onEvent)
	for _, ch := range channels {
		if err := l.Listen(ch); err != nil {
			_ = l.Close()
			return nil, fmt.Errorf("listen %s: %w", ch, err)
		}
	}

	out := make(chan Notification, 64)
	go func() {
		defer close(out)
		defer l.Close()
		ping := time.NewTicker(90 * time.Second)
		defer ping.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case n := <-l.Notify:
				msg := Notification{}
				if n != nil {
					msg = Notification{Channel: n.Channel, Payload: n.Extra}
				}
				select {
				case out <- msg:
				default:
					logger.Warn("dropping notification, consumer is behind", "channel", msg.Channel)
				}
			case <-ping.C:
				if err := l.Ping(); err != nil {
					logger.Warn("listener ping failed", "err", err)
				}
			}
		}
	}()
	return out, nil
}
