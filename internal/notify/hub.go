package notify

import (
	"context"
	"sync"
	"sync/atomic"
)

const defaultSubscriptionBuffer = 64

// Hub broadcasts events to in-process subscribers such as websocket clients.
// A subscriber that falls behind loses events rather than blocking publishers.
type Hub struct {
	mu      sync.RWMutex
	subs    map[*Subscription]struct{}
	dropped atomic.Int64
}

// Subscription receives events for one job, or all jobs when JobID is empty.
type Subscription struct {
	JobID string
	ch    chan Event
	hub   *Hub
	once  sync.Once
}

func NewHub() *Hub {
	return &Hub{subs: make(map[*Subscription]struct{})}
}

// Subscribe registers a subscription. Callers must Close it.
func (h *Hub) Subscribe(jobID string, buffer int) *Subscription {
	if buffer <= 0 {
		buffer = defaultSubscriptionBuffer
	}
	sub := &Subscription{JobID: jobID, ch: make(chan Event, buffer), hub: h}
	h.mu.Lock()
	h.subs[sub] = struct{}{}
	h.mu.Unlock()
	return sub
}

// Events returns the delivery channel. It is closed by Close.
func (s *Subscription) Events() <-chan Event { return s.ch }

// Close unregisters the subscription. Safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.hub.mu.Lock()
		delete(s.hub.subs, s)
		close(s.ch)
		s.hub.mu.Unlock()
	})
}

// Notify implements Notifier.
func (h *Hub) Notify(_ context.Context, event Event) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.subs {
		if sub.JobID != "" && sub.JobID != event.JobID {
			continue
		}
		select {
		case sub.ch <- event:
		default:
			h.dropped.Add(1)
		}
	}
	return nil
}

// Subscribers returns the number of open subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Dropped returns how many events were discarded for slow subscribers.
func (h *Hub) Dropped() int64 { return h.dropped.Load() }
