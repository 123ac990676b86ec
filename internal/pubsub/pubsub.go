// Package pubsub owns the process-wide Redis connection used to fan
// notifications out across server instances.
//
// The connection is dialed lazily. Concurrent first callers share a single
// connection attempt, and a failed attempt is forgotten so the next caller
// dials again.
package pubsub

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

const dialTimeout = 5 * time.Second

var (
	ErrDisabled = errors.New("pubsub: redis not configured")
	ErrClosed   = errors.New("pubsub: manager closed")
)

type Manager struct {
	url    string
	logger *slog.Logger
	group  singleflight.Group

	mu     sync.Mutex
	client *redis.Client
	closed bool
}

// New returns a manager for the Redis server at url. An empty url yields a
// disabled manager whose Publish always reports false.
func New(url string, logger *slog.Logger) *Manager {
	return &Manager{
		url:    url,
		logger: logger.With("component", "pubsub"),
	}
}

func (m *Manager) Enabled() bool {
	return m.url != ""
}

func (m *Manager) cached() (*redis.Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}
	return m.client, nil
}

// Client returns the shared client, dialing it on first use.
func (m *Manager) Client(ctx context.Context) (*redis.Client, error) {
	if !m.Enabled() {
		return nil, ErrDisabled
	}
	if c, err := m.cached(); err != nil || c != nil {
		return c, err
	}

	v, err, _ := m.group.Do("connect", func() (any, error) {
		if c, err := m.cached(); err != nil || c != nil {
			return c, err
		}

		opts, err := redis.ParseURL(m.url)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		c := redis.NewClient(opts)

		// callers share this dial, so it must not die with the first caller
		dialCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), dialTimeout)
		defer cancel()
		if err := c.Ping(dialCtx).Err(); err != nil {
			c.Close()
			return nil, fmt.Errorf("ping redis: %w", err)
		}

		m.mu.Lock()
		defer m.mu.Unlock()
		if m.closed {
			c.Close()
			return nil, ErrClosed
		}
		m.client = c
		m.logger.Info("connected to redis", "addr", opts.Addr)
		return c, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*redis.Client), nil
}

// Publish sends payload on channel. It reports whether the message was
// handed to Redis; failures are logged, never returned.
func (m *Manager) Publish(ctx context.Context, channel string, payload []byte) bool {
	if !m.Enabled() {
		return false
	}
	c, err := m.Client(ctx)
	if err != nil {
		m.logger.Warn("publish skipped", "channel", channel, "error", err)
		return false
	}
	if err := c.Publish(ctx, channel, payload).Err(); err != nil {
		m.logger.Warn("publish failed", "channel", channel, "error", err)
		return false
	}
	return true
}

// Subscribe subscribes to channel and waits for the confirmation so no
// message published after it returns is missed. The caller closes the
// subscription.
func (m *Manager) Subscribe(ctx context.Context, channel string) (*redis.PubSub, error) {
	c, err := m.Client(ctx)
	if err != nil {
		return nil, err
	}
	sub := c.Subscribe(ctx, channel)
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", channel, err)
	}
	return sub, nil
}

// Close releases the connection. Later calls fail with ErrClosed.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	if m.client == nil {
		return nil
	}
	err := m.client.Close()
	m.client = nil
	return err
}
