// Package retention prunes old entries from the location log on a
// schedule.
package retention

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/waypointdb/waypoint/internal/appstate"
)

// Pruner sweeps the location log on CheckInterval and removes entries
// older than MaxAge. A zero MaxAge disables pruning entirely.
type Pruner struct {
	manager       *appstate.Manager
	maxAge        time.Duration
	checkInterval time.Duration

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// New creates a stopped pruner.
func New(manager *appstate.Manager, maxAge, checkInterval time.Duration) *Pruner {
	return &Pruner{
		manager:       manager,
		maxAge:        maxAge,
		checkInterval: checkInterval,
	}
}

// Start launches the sweep loop. With a zero MaxAge it returns
// immediately without starting anything.
func (p *Pruner) Start(ctx context.Context) error {
	if p.maxAge <= 0 {
		log.Printf("retention: disabled (no max age)")
		return nil
	}
	if p.checkInterval <= 0 {
		return fmt.Errorf("retention: check interval must be positive")
	}

	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("retention: already running")
	}
	p.running = true
	ctx, p.cancel = context.WithCancel(ctx)
	p.done = make(chan struct{})
	p.mu.Unlock()

	go p.loop(ctx)
	log.Printf("retention: pruning entries older than %s every %s", p.maxAge, p.checkInterval)
	return nil
}

// Stop halts the sweep loop and waits for it to exit. Stopping a stopped
// pruner is a no-op.
func (p *Pruner) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	cancel := p.cancel
	done := p.done
	p.mu.Unlock()

	cancel()
	<-done
}

func (p *Pruner) loop(ctx context.Context) {
	defer close(p.done)

	ticker := time.NewTicker(p.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := p.RunOnce(ctx); err != nil && ctx.Err() == nil {
				log.Printf("retention: sweep failed: %v", err)
			}
		}
	}
}

// RunOnce performs a single sweep and returns the number of entries
// removed. Usable directly for one-shot maintenance.
func (p *Pruner) RunOnce(ctx context.Context) (int, error) {
	cutoff := time.Now().Add(-p.maxAge).UnixMilli()
	removed, err := p.manager.PruneBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		log.Printf("retention: removed %d entries older than %s", removed, p.maxAge)
	}
	return removed, nil
}
