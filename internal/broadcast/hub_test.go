package broadcast_test

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/invigo/invigo-backend/internal/broadcast"
	"github.com/rs/zerolog"
)

func newHub() *broadcast.Hub {
	return broadcast.NewHub(nil, zerolog.Nop())
}

func TestPublishFansOutPerExam(t *testing.T) {
	hub := newHub()
	examA, examB := uuid.New(), uuid.New()

	obsA1 := hub.Subscribe(examA)
	obsA2 := hub.Subscribe(examA)
	obsB := hub.Subscribe(examB)
	defer hub.Unsubscribe(obsA1)
	defer hub.Unsubscribe(obsA2)
	defer hub.Unsubscribe(obsB)

	hub.Publish(context.Background(), broadcast.Event{Type: broadcast.EventJoin, ExamID: examA})

	for i, obs := range []*broadcast.Observer{obsA1, obsA2} {
		select {
		case ev := <-obs.C:
			if ev.Type != broadcast.EventJoin {
				t.Errorf("observer %d: type = %s, want join", i, ev.Type)
			}
			if ev.At.IsZero() {
				t.Errorf("observer %d: At not stamped", i)
			}
		default:
			t.Errorf("observer %d received nothing", i)
		}
	}

	select {
	case ev := <-obsB.C:
		t.Fatalf("observer of other exam received %+v", ev)
	default:
	}
}

func TestPublishNeverBlocksOnSlowObserver(t *testing.T) {
	hub := newHub()
	examID := uuid.New()

	obs := hub.Subscribe(examID)
	defer hub.Unsubscribe(obs)

	// Well past the observer buffer; the excess is dropped, not queued.
	for i := 0; i < 200; i++ {
		hub.Publish(context.Background(), broadcast.Event{Type: broadcast.EventViolation, ExamID: examID})
	}

	received := 0
	for {
		select {
		case <-obs.C:
			received++
			continue
		default:
		}
		break
	}
	if received == 0 || received >= 200 {
		t.Fatalf("received = %d, want a full-but-bounded buffer", received)
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	hub := newHub()
	obs := hub.Subscribe(uuid.New())

	hub.Unsubscribe(obs)
	if _, open := <-obs.C; open {
		t.Fatal("channel still open after unsubscribe")
	}

	// Idempotent.
	hub.Unsubscribe(obs)
}

func TestAttachReplacesMailbox(t *testing.T) {
	hub := newHub()
	token := uuid.New()

	old := hub.Attach(token)
	replacement := hub.Attach(token)

	// The old reader unwinds on close; the new mailbox gets deliveries.
	if _, open := <-old; open {
		t.Fatal("old mailbox still open after reconnect")
	}
	if !hub.Deliver(token, broadcast.Command{Type: broadcast.CommandMessage}) {
		t.Fatal("deliver to replacement mailbox failed")
	}
	cmd := <-replacement
	if cmd.Type != broadcast.CommandMessage {
		t.Fatalf("command type = %s, want message", cmd.Type)
	}

	hub.Detach(token, replacement)
}

func TestDetachOnlyOwnChannel(t *testing.T) {
	hub := newHub()
	token := uuid.New()

	old := hub.Attach(token)
	replacement := hub.Attach(token)

	// A stale reader detaching must not tear down the live mailbox.
	hub.Detach(token, old)
	if !hub.Deliver(token, broadcast.Command{Type: broadcast.CommandWarning}) {
		t.Fatal("live mailbox was removed by stale detach")
	}

	hub.Detach(token, replacement)
	if hub.Deliver(token, broadcast.Command{Type: broadcast.CommandWarning}) {
		t.Fatal("deliver succeeded after detach")
	}
}

func TestDeliverReportsConnectivity(t *testing.T) {
	hub := newHub()
	token := uuid.New()

	if hub.Deliver(token, broadcast.Command{Type: broadcast.CommandMessage}) {
		t.Fatal("deliver to unattached session succeeded")
	}

	ch := hub.Attach(token)
	defer hub.Detach(token, ch)

	// Fill the mailbox; the overflow delivery reports false instead of
	// blocking the caller.
	filled := 0
	for hub.Deliver(token, broadcast.Command{Type: broadcast.CommandMessage}) {
		filled++
		if filled > 1000 {
			t.Fatal("mailbox never filled")
		}
	}
	if filled == 0 {
		t.Fatal("no delivery succeeded")
	}
}

func TestDeliverDuringReattachDoesNotPanic(t *testing.T) {
	hub := newHub()
	token := uuid.New()

	// Reconnects close the replaced mailbox; concurrent deliveries must
	// never hit a closed channel.
	stop := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
					hub.Deliver(token, broadcast.Command{Type: broadcast.CommandWarning})
				}
			}
		}()
	}

	var last chan broadcast.Command
	for i := 0; i < 10000; i++ {
		last = hub.Attach(token)
	}
	close(stop)
	wg.Wait()
	hub.Detach(token, last)
}

func TestDeliverAllCountsConnected(t *testing.T) {
	hub := newHub()

	connected := uuid.New()
	absent := uuid.New()
	ch := hub.Attach(connected)
	defer hub.Detach(connected, ch)

	n := hub.DeliverAll([]uuid.UUID{connected, absent}, broadcast.Command{
		Type:    broadcast.CommandMessage,
		Message: "exam hall closes in 10 minutes",
	})
	if n != 1 {
		t.Fatalf("delivered = %d, want 1", n)
	}
	cmd := <-ch
	if cmd.Message != "exam hall closes in 10 minutes" {
		t.Fatalf("message = %q", cmd.Message)
	}
}
