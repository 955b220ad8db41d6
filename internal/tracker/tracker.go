// Package tracker polls a position source and fans location events out to
// subscribers. A Tracker is an explicitly constructed instance owning its
// own subscriber set and last-known cache, so multiple trackers can
// coexist and be torn down deterministically.
package tracker

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"
)

// Position is one reading from the platform geolocation API.
type Position struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Altitude  float64 `json:"altitude,omitempty"`
	Speed     float64 `json:"speed,omitempty"`
	Accuracy  float64 `json:"accuracy,omitempty"`

	// Time is the reading's Unix timestamp in milliseconds.
	Time int64 `json:"time"`
}

// Source abstracts the platform geolocation API. Implementations perform
// I/O on each call.
type Source interface {
	// Current returns the device's current position.
	Current(ctx context.Context) (Position, error)
}

// Subscriber receives every position the tracker observes.
type Subscriber func(Position)

// Tracker polls a Source on a fixed interval and delivers each reading to
// every subscriber.
type Tracker struct {
	source   Source
	interval time.Duration

	mu      sync.Mutex
	subs    map[int]Subscriber
	nextSub int
	last    *Position
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// New creates a stopped tracker polling source every interval.
func New(source Source, interval time.Duration) *Tracker {
	return &Tracker{
		source:   source,
		interval: interval,
		subs:     make(map[int]Subscriber),
	}
}

// Subscribe registers a subscriber and returns its id for Unsubscribe.
func (t *Tracker) Subscribe(fn Subscriber) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	id := t.nextSub
	t.nextSub++
	t.subs[id] = fn
	return id
}

// Unsubscribe removes a subscriber. Unknown ids are ignored.
func (t *Tracker) Unsubscribe(id int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.subs, id)
}

// LastKnown returns the most recent position observed, if any.
func (t *Tracker) LastKnown() (Position, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.last == nil {
		return Position{}, false
	}
	return *t.last, true
}

// Start begins polling. It returns an error if the tracker is already
// running. The first poll happens after one interval.
func (t *Tracker) Start(ctx context.Context) error {
	t.mu.Lock()
	if t.running {
		t.mu.Unlock()
		return fmt.Errorf("tracker: already running")
	}
	t.running = true
	ctx, t.cancel = context.WithCancel(ctx)
	t.done = make(chan struct{})
	t.mu.Unlock()

	go t.loop(ctx)
	return nil
}

// Stop halts polling and waits for the poll loop to exit. Stopping a
// stopped tracker is a no-op.
func (t *Tracker) Stop() {
	t.mu.Lock()
	if !t.running {
		t.mu.Unlock()
		return
	}
	t.running = false
	cancel := t.cancel
	done := t.done
	t.mu.Unlock()

	cancel()
	<-done
}

func (t *Tracker) loop(ctx context.Context) {
	defer close(t.done)

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.poll(ctx)
		}
	}
}

// poll takes one reading and fans it out. Source failures are logged and
// skipped; the next tick retries.
func (t *Tracker) poll(ctx context.Context) {
	pos, err := t.source.Current(ctx)
	if err != nil {
		if ctx.Err() == nil {
			log.Printf("tracker: position source failed: %v", err)
		}
		return
	}
	if pos.Time == 0 {
		pos.Time = time.Now().UnixMilli()
	}

	t.mu.Lock()
	t.last = &pos
	subs := make([]Subscriber, 0, len(t.subs))
	for _, fn := range t.subs {
		subs = append(subs, fn)
	}
	t.mu.Unlock()

	// Deliver outside the lock so subscribers may call back into the
	// tracker.
	for _, fn := range subs {
		fn(pos)
	}
}
