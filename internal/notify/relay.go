package notify

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dukerupert/huddle/internal/pubsub"
)

const resubscribeDelay = 5 * time.Second

// Relay feeds notifications published by any instance into the local
// dispatcher.
type Relay struct {
	pubsub     *pubsub.Manager
	channel    string
	dispatcher *Dispatcher
	logger     *slog.Logger
	ready      chan struct{}
}

func NewRelay(ps *pubsub.Manager, channel string, dispatcher *Dispatcher, logger *slog.Logger) *Relay {
	if channel == "" {
		channel = DefaultChannel
	}
	return &Relay{
		pubsub:     ps,
		channel:    channel,
		dispatcher: dispatcher,
		logger:     logger.With("component", "relay"),
		ready:      make(chan struct{}),
	}
}

// Ready is closed once the first subscription is confirmed.
func (r *Relay) Ready() <-chan struct{} {
	return r.ready
}

// Run consumes the channel until ctx is done. It returns immediately when
// Redis is not configured.
func (r *Relay) Run(ctx context.Context) {
	if !r.pubsub.Enabled() {
		r.logger.Info("redis not configured, notifications stay on this instance")
		return
	}

	first := true
	for {
		sub, err := r.pubsub.Subscribe(ctx, r.channel)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, pubsub.ErrClosed) {
				return
			}
			r.logger.Warn("subscribe failed", "channel", r.channel, "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(resubscribeDelay):
				continue
			}
		}

		r.logger.Info("subscribed", "channel", r.channel)
		if first {
			close(r.ready)
			first = false
		}
		r.consume(ctx, sub.Channel())
		sub.Close()
		if ctx.Err() != nil {
			return
		}
	}
}

func (r *Relay) consume(ctx context.Context, msgs <-chan *redis.Message) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			var n Notification
			if err := json.Unmarshal([]byte(msg.Payload), &n); err != nil {
				r.logger.Warn("discarding malformed notification", "error", err)
				continue
			}
			res := r.dispatcher.Dispatch(n)
			r.logger.Debug("notification delivered", "notification_id", n.ID, "sockets", res.Sockets, "pushed", res.Pushed)
		}
	}
}
