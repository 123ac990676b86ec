// Package notify fans notifications out to users. A Notifier publishes on
// the shared Redis channel; every instance runs a Relay that hands received
// notifications to its Dispatcher, which writes to local websocket clients
// and web-push subscriptions.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukerupert/huddle/internal/model"
	"github.com/dukerupert/huddle/internal/pubsub"
	"github.com/dukerupert/huddle/internal/push"
	"github.com/dukerupert/huddle/internal/websocket"
)

const DefaultChannel = "huddle:notifications"

// Notification is the wire form published between instances.
type Notification struct {
	ID       string    `json:"id"`
	Title    string    `json:"title"`
	Body     string    `json:"body"`
	URL      string    `json:"url,omitempty"`
	SenderID int64     `json:"sender_id"`
	UserIDs  []int64   `json:"user_ids"`
	SentAt   time.Time `json:"sent_at"`
}

// Realtime delivers messages to connected clients.
type Realtime interface {
	Send(msg websocket.Message, userIDs ...int64) int
}

// Pusher sends a web push notification to one subscription.
type Pusher interface {
	Enabled() bool
	Send(sub *model.PushSubscription, payload push.Payload) error
}

// Subscriptions looks up and prunes push subscriptions.
type Subscriptions interface {
	ListByUsers(userIDs []int64) ([]model.PushSubscription, error)
	DeleteByEndpoint(endpoint string) error
}

// Result summarizes one local delivery.
type Result struct {
	Sockets int
	Pushed  int
	Expired int
}

type Dispatcher struct {
	realtime Realtime
	pusher   Pusher
	subs     Subscriptions
	logger   *slog.Logger
}

func NewDispatcher(realtime Realtime, pusher Pusher, subs Subscriptions, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		realtime: realtime,
		pusher:   pusher,
		subs:     subs,
		logger:   logger.With("component", "notify"),
	}
}

// Dispatch delivers n to this instance's websocket clients and to every
// push subscription of the recipients. Expired subscriptions are removed.
func (d *Dispatcher) Dispatch(n Notification) Result {
	var res Result
	if len(n.UserIDs) == 0 {
		return res
	}

	msg := websocket.NewMessage("notification", "created", 0, map[string]any{
		"id":        n.ID,
		"title":     n.Title,
		"body":      n.Body,
		"url":       n.URL,
		"sender_id": n.SenderID,
		"sent_at":   n.SentAt,
	})
	res.Sockets = d.realtime.Send(msg, n.UserIDs...)

	if d.pusher == nil || !d.pusher.Enabled() {
		return res
	}
	subs, err := d.subs.ListByUsers(n.UserIDs)
	if err != nil {
		d.logger.Error("list push subscriptions", "notification_id", n.ID, "error", err)
		return res
	}
	payload := push.Payload{Title: n.Title, Body: n.Body, URL: n.URL, Tag: "notification-" + n.ID}
	for i := range subs {
		err := d.pusher.Send(&subs[i], payload)
		switch {
		case err == nil:
			res.Pushed++
		case errors.Is(err, push.ErrExpired):
			res.Expired++
			if err := d.subs.DeleteByEndpoint(subs[i].Endpoint); err != nil {
				d.logger.Error("delete expired subscription", "subscription_id", subs[i].ID, "error", err)
			}
		default:
			d.logger.Warn("push failed", "subscription_id", subs[i].ID, "error", err)
		}
	}
	return res
}

// Notifier is the entry point handlers use to send a notification.
type Notifier struct {
	pubsub     *pubsub.Manager
	channel    string
	dispatcher *Dispatcher
	logger     *slog.Logger
}

func NewNotifier(ps *pubsub.Manager, channel string, dispatcher *Dispatcher, logger *slog.Logger) *Notifier {
	if channel == "" {
		channel = DefaultChannel
	}
	return &Notifier{
		pubsub:     ps,
		channel:    channel,
		dispatcher: dispatcher,
		logger:     logger.With("component", "notify"),
	}
}

// Notify publishes n to all instances. When publishing is unavailable the
// notification is dispatched on this instance only. It reports whether n
// went through Redis.
func (nt *Notifier) Notify(ctx context.Context, n Notification) (bool, error) {
	payload, err := json.Marshal(n)
	if err != nil {
		return false, fmt.Errorf("marshal notification: %w", err)
	}
	if nt.pubsub.Publish(ctx, nt.channel, payload) {
		return true, nil
	}
	nt.logger.Debug("publish unavailable, dispatching locally", "notification_id", n.ID)
	nt.dispatcher.Dispatch(n)
	return false, nil
}
