package progressbus

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/pgsynclabs/syncengine/internal/domain"
)

func newTestBus() *Bus {
	return New(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestSubscribeReceivesPublishedEvent(t *testing.T) {
	b := newTestBus()
	ch, unsubscribe := b.Subscribe("job-1")
	defer unsubscribe()

	b.Publish("job-1", domain.ProgressEvent{JobID: "job-1", Stage: "transfer", Percentage: 50, Terminal: true})

	select {
	case ev := <-ch:
		if ev.Percentage != 50 {
			t.Fatalf("got pct %d, want 50", ev.Percentage)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestUnsubscribeRemovesSnapshot(t *testing.T) {
	b := newTestBus()
	_, unsubscribe := b.Subscribe("job-2")
	b.Publish("job-2", domain.ProgressEvent{JobID: "job-2", Terminal: true})

	if _, ok := b.LatestSnapshot("job-2"); !ok {
		t.Fatal("expected snapshot before unsubscribe")
	}

	unsubscribe()

	if _, ok := b.LatestSnapshot("job-2"); ok {
		t.Fatal("expected snapshot to be cleared after last subscriber leaves")
	}
}

func TestPublishNeverBlocksOnFullSubscriberBuffer(t *testing.T) {
	b := newTestBus()
	_, unsubscribe := b.Subscribe("job-3")
	defer unsubscribe()

	done := make(chan struct{})
	go func() {
		for i := 0; i < subscriberBuffer+50; i++ {
			b.Publish("job-3", domain.ProgressEvent{JobID: "job-3", Terminal: true})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked despite full subscriber buffer")
	}
}

func TestTerminalEventBypassesRateLimit(t *testing.T) {
	b := newTestBus()
	ch, unsubscribe := b.Subscribe("job-4")
	defer unsubscribe()

	for i := 0; i < 30; i++ {
		b.Publish("job-4", domain.ProgressEvent{JobID: "job-4", Percentage: i})
	}
	b.Publish("job-4", domain.ProgressEvent{JobID: "job-4", Percentage: 100, Terminal: true})

	var sawTerminal bool
	timeout := time.After(time.Second)
drain:
	for {
		select {
		case ev := <-ch:
			if ev.Terminal {
				sawTerminal = true
				break drain
			}
		case <-timeout:
			break drain
		}
	}
	if !sawTerminal {
		t.Fatal("expected terminal event to be delivered despite rate limiting")
	}
}
