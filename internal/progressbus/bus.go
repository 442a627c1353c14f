// Package progressbus fans out live execution progress to subscribers —
// the in-process analogue of the Python engine's asyncio.Queue-based
// ProgressManager, extended with rate smoothing for bursty publishers.
package progressbus

import (
	"log/slog"
	"sync"

	"golang.org/x/time/rate"

	"github.com/pgsynclabs/syncengine/internal/domain"
)

const subscriberBuffer = 16

// Bus is an in-process jobID -> set-of-subscribers fan-out. A sink whose
// buffer is full drops the event and is logged; it never blocks Publish.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[string]map[*subscriber]struct{}
	snapshots   map[string]domain.ProgressEvent
	limiters    map[string]*rate.Limiter
	logger      *slog.Logger
}

type subscriber struct {
	ch chan domain.ProgressEvent
}

func New(logger *slog.Logger) *Bus {
	return &Bus{
		subscribers: make(map[string]map[*subscriber]struct{}),
		snapshots:   make(map[string]domain.ProgressEvent),
		limiters:    make(map[string]*rate.Limiter),
		logger:      logger.With("component", "progressbus"),
	}
}

// Subscribe registers a new sink for jobID and returns its channel plus an
// unsubscribe function. The channel is never closed by the bus itself —
// the caller's unsubscribe func is the only tidy way out, matching the
// explicit remove_client call in the reference progress manager.
func (b *Bus) Subscribe(jobID string) (<-chan domain.ProgressEvent, func()) {
	sub := &subscriber{ch: make(chan domain.ProgressEvent, subscriberBuffer)}

	b.mu.Lock()
	if b.subscribers[jobID] == nil {
		b.subscribers[jobID] = make(map[*subscriber]struct{})
	}
	b.subscribers[jobID][sub] = struct{}{}
	b.mu.Unlock()

	unsubscribe := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if set, ok := b.subscribers[jobID]; ok {
			delete(set, sub)
			if len(set) == 0 {
				delete(b.subscribers, jobID)
				delete(b.snapshots, jobID)
				delete(b.limiters, jobID)
			}
		}
	}
	return sub.ch, unsubscribe
}

// Publish delivers ev to every subscriber of jobID, non-blockingly. Publish
// calls for the same job are smoothed to at most ~20/sec — well above any
// real UI refresh rate — so a tight per-row progress loop cannot starve the
// fan-out. A non-terminal event the rate limiter denies is not sent to the
// current subscribers; it still replaces the stored snapshot, so a client
// that subscribes afterwards is replayed the latest call.
func (b *Bus) Publish(jobID string, ev domain.ProgressEvent) {
	b.mu.Lock()
	b.snapshots[jobID] = ev
	limiter, ok := b.limiters[jobID]
	if !ok {
		limiter = rate.NewLimiter(rate.Limit(20), 5)
		b.limiters[jobID] = limiter
	}
	subs := make([]*subscriber, 0, len(b.subscribers[jobID]))
	for s := range b.subscribers[jobID] {
		subs = append(subs, s)
	}
	b.mu.Unlock()

	// Terminal events always go out regardless of the limiter — a subscriber
	// must never miss the end of a stream.
	if !ev.Terminal && !limiter.Allow() {
		return
	}

	for _, s := range subs {
		select {
		case s.ch <- ev:
		default:
			b.logger.Warn("dropping progress event, subscriber buffer full",
				"job_id", jobID, "stage", ev.Stage)
		}
	}
}

// LatestSnapshot returns the most recent event published for jobID, used to
// replay state to a client that just attached.
func (b *Bus) LatestSnapshot(jobID string) (domain.ProgressEvent, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	ev, ok := b.snapshots[jobID]
	return ev, ok
}
