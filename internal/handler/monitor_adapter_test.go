package handler

import (
	"context"
	"testing"
	"time"

	"github.com/invigo/invigo-backend/internal/broadcast"
	"github.com/redis/go-redis/v9"
)

// drainUntilClosed reads out until it closes or the deadline hits.
func drainUntilClosed(t *testing.T, out <-chan string) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-out:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("adapter did not exit after context cancellation")
		}
	}
}

func TestHubEventStringsExitsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	// An event already in flight with no reader on the far side.
	in := make(chan broadcast.Event, 1)
	in <- broadcast.Event{Type: broadcast.EventJoin}
	out := hubEventStrings(ctx, in)

	cancel()
	drainUntilClosed(t, out)
}

func TestHubEventStringsExitsOnSourceClose(t *testing.T) {
	in := make(chan broadcast.Event)
	out := hubEventStrings(context.Background(), in)

	close(in)
	drainUntilClosed(t, out)
}

func TestRedisEventStringsExitsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	in := make(chan *redis.Message, 1)
	in <- &redis.Message{Payload: `{"type":"join"}`}
	out := redisEventStrings(ctx, in)

	cancel()
	drainUntilClosed(t, out)
}
