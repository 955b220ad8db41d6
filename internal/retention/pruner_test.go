package retention

import (
	"context"
	"testing"
	"time"

	"github.com/waypointdb/waypoint/internal/appstate"
	"github.com/waypointdb/waypoint/internal/kv"
	"github.com/waypointdb/waypoint/internal/table"
)

func newTestManager(t *testing.T) *appstate.Manager {
	t.Helper()
	store := table.NewStore(kv.NewMemoryStore())
	m, err := appstate.New(context.Background(), store)
	if err != nil {
		t.Fatalf("failed to create manager: %v", err)
	}
	return m
}

func TestRunOnce_RemovesOldEntries(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)

	now := time.Now().UnixMilli()
	old := now - (48 * time.Hour).Milliseconds()
	for _, ts := range []int64{old, old + 1000, now} {
		if _, err := m.LogLocation(ctx, appstate.Point{Time: ts}); err != nil {
			t.Fatalf("log failed: %v", err)
		}
	}

	p := New(m, 24*time.Hour, time.Hour)
	removed, err := p.RunOnce(ctx)
	if err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	if removed != 2 {
		t.Errorf("removed %d entries, want 2", removed)
	}

	points, _, err := m.ListLocations(ctx, 10, "")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(points) != 1 || points[0].Time != now {
		t.Errorf("unexpected survivors: %+v", points)
	}
}

func TestStart_DisabledWithoutMaxAge(t *testing.T) {
	p := New(newTestManager(t), 0, time.Hour)
	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("disabled start should be a no-op, got %v", err)
	}
	p.Stop()
}

func TestStart_RejectsBadInterval(t *testing.T) {
	p := New(newTestManager(t), time.Hour, 0)
	if err := p.Start(context.Background()); err == nil {
		t.Error("expected error for zero check interval")
	}
}

func TestPruner_SweepsOnTicker(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)

	old := time.Now().Add(-48 * time.Hour).UnixMilli()
	if _, err := m.LogLocation(ctx, appstate.Point{Time: old}); err != nil {
		t.Fatalf("log failed: %v", err)
	}

	p := New(m, 24*time.Hour, 10*time.Millisecond)
	if err := p.Start(ctx); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	defer p.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		points, _, err := m.ListLocations(ctx, 10, "")
		if err != nil {
			t.Fatalf("list failed: %v", err)
		}
		if len(points) == 0 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("pruner never swept the old entry")
}

func TestStop_IsIdempotent(t *testing.T) {
	p := New(newTestManager(t), 24*time.Hour, time.Hour)
	p.Stop()
	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	p.Stop()
	p.Stop()
}
