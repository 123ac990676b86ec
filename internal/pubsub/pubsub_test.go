package pubsub

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestManager(t *testing.T) (*Manager, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	m := New("redis://"+mr.Addr(), discardLogger())
	t.Cleanup(func() { m.Close() })
	return m, mr
}

func TestDisabledManager(t *testing.T) {
	m := New("", discardLogger())

	if m.Enabled() {
		t.Error("Enabled() = true for empty url")
	}
	if m.Publish(context.Background(), "ch", []byte("x")) {
		t.Error("Publish() = true on disabled manager")
	}
	if _, err := m.Client(context.Background()); !errors.Is(err, ErrDisabled) {
		t.Errorf("Client() err = %v, want ErrDisabled", err)
	}
}

func TestClientIsShared(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	const callers = 16
	clients := make([]any, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c, err := m.Client(ctx)
			if err != nil {
				t.Errorf("Client(): %v", err)
				return
			}
			clients[i] = c
		}(i)
	}
	wg.Wait()

	for i := 1; i < callers; i++ {
		if clients[i] != clients[0] {
			t.Fatalf("caller %d got a different client", i)
		}
	}
}

func TestFailedConnectIsRetried(t *testing.T) {
	mr := miniredis.NewMiniRedis()
	if err := mr.Start(); err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	addr := mr.Addr()
	mr.Close()

	m := New("redis://"+addr, discardLogger())
	defer m.Close()

	if m.Publish(context.Background(), "ch", []byte("x")) {
		t.Fatal("Publish() = true with redis down")
	}

	mr2 := miniredis.NewMiniRedis()
	if err := mr2.StartAddr(addr); err != nil {
		t.Skipf("cannot rebind %s: %v", addr, err)
	}
	defer mr2.Close()

	if _, err := m.Client(context.Background()); err != nil {
		t.Errorf("Client() after recovery: %v", err)
	}
}

func TestInvalidURL(t *testing.T) {
	m := New("not-a-url://", discardLogger())
	if m.Publish(context.Background(), "ch", []byte("x")) {
		t.Error("Publish() = true for invalid url")
	}
}

func TestPublishSubscribe(t *testing.T) {
	m, _ := newTestManager(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	sub, err := m.Subscribe(ctx, "huddle:test")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer sub.Close()

	if !m.Publish(ctx, "huddle:test", []byte(`{"title":"hi"}`)) {
		t.Fatal("Publish() = false")
	}

	select {
	case msg := <-sub.Channel():
		if msg.Payload != `{"title":"hi"}` {
			t.Errorf("payload = %q", msg.Payload)
		}
	case <-ctx.Done():
		t.Fatal("timed out waiting for message")
	}
}

func TestClosedManager(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	if _, err := m.Client(ctx); err != nil {
		t.Fatalf("Client(): %v", err)
	}
	if err := m.Close(); err != nil {
		t.Fatalf("Close(): %v", err)
	}
	if _, err := m.Client(ctx); !errors.Is(err, ErrClosed) {
		t.Errorf("Client() after close err = %v, want ErrClosed", err)
	}
	if m.Publish(ctx, "ch", []byte("x")) {
		t.Error("Publish() = true after close")
	}
}
