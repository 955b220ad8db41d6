// Package appstate wires the application's two tables, settings and the
// location log, on top of the table store. It is the single owner of both
// table handles and serializes access to each behind its own mutex, so
// callers (HTTP handlers, the tracker subscription, the retention pruner)
// never touch the store concurrently through the same handle.
package appstate

import (
	"context"
	"fmt"
	"log"
	"sync"

	werrors "github.com/waypointdb/waypoint/internal/errors"
	"github.com/waypointdb/waypoint/internal/table"
	"github.com/waypointdb/waypoint/internal/tracker"
	"github.com/waypointdb/waypoint/pkg/types"
)

const (
	settingsTable  = "settings"
	locationsTable = "locations"

	// TimeIndex orders the location log newest-first.
	TimeIndex = "time"

	// settingsItemID is the fixed id of the single settings item.
	settingsItemID = "1"
)

// Settings are the user-tunable knobs persisted in the settings table.
type Settings struct {
	TrackingEnabled   bool    `json:"trackingEnabled"`
	MinDistanceMeters float64 `json:"minDistanceMeters"`
	RetentionDays     float64 `json:"retentionDays"`
}

// DefaultSettings returns the settings used before the user saves any.
func DefaultSettings() Settings {
	return Settings{
		TrackingEnabled:   true,
		MinDistanceMeters: 20,
		RetentionDays:     28,
	}
}

// Point is one entry of the location log.
type Point struct {
	ID        string  `json:"id,omitempty"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Altitude  float64 `json:"altitude,omitempty"`
	Speed     float64 `json:"speed,omitempty"`
	Accuracy  float64 `json:"accuracy,omitempty"`

	// Time is the reading's Unix timestamp in milliseconds.
	Time int64 `json:"time"`
}

// Manager owns the settings and locations tables.
type Manager struct {
	store *table.Store

	settingsMu  sync.Mutex
	settingsDef *table.Definition

	locationsMu  sync.Mutex
	locationsDef *table.Definition

	distance tracker.DistanceFunc

	// lastLogged guards the movement dedupe for tracker events; protected
	// by locationsMu.
	lastLogged *tracker.Position
}

// Option configures a Manager.
type Option func(*Manager)

// WithDistanceFunc overrides the movement distance function (default
// Haversine).
func WithDistanceFunc(fn tracker.DistanceFunc) Option {
	return func(m *Manager) { m.distance = fn }
}

// New defines (or opens) both tables and returns the manager.
func New(ctx context.Context, store *table.Store, opts ...Option) (*Manager, error) {
	m := &Manager{
		store:    store,
		distance: tracker.Haversine,
	}
	for _, opt := range opts {
		opt(m)
	}

	if err := store.DefineTable(ctx, settingsTable, nil); err != nil {
		return nil, fmt.Errorf("failed to define settings table: %w", err)
	}
	if err := store.DefineTable(ctx, locationsTable, map[string]table.IndexSpec{
		TimeIndex: {Ascending: false, Numerical: true},
	}); err != nil {
		return nil, fmt.Errorf("failed to define locations table: %w", err)
	}

	var err error
	m.settingsDef, err = store.OpenTable(ctx, settingsTable)
	if err != nil {
		return nil, fmt.Errorf("failed to open settings table: %w", err)
	}
	m.locationsDef, err = store.OpenTable(ctx, locationsTable)
	if err != nil {
		return nil, fmt.Errorf("failed to open locations table: %w", err)
	}

	return m, nil
}

// Settings returns the stored settings, or defaults when none were saved
// yet.
func (m *Manager) Settings(ctx context.Context) (Settings, error) {
	m.settingsMu.Lock()
	defer m.settingsMu.Unlock()

	item, found, err := m.store.GetItem(ctx, m.settingsDef, settingsItemID)
	if err != nil {
		return Settings{}, fmt.Errorf("failed to read settings: %w", err)
	}
	if !found {
		return DefaultSettings(), nil
	}
	return itemToSettings(item), nil
}

// UpdateSettings persists s as the single settings item.
func (m *Manager) UpdateSettings(ctx context.Context, s Settings) error {
	m.settingsMu.Lock()
	defer m.settingsMu.Unlock()

	item := settingsToItem(s)
	item.SetID(settingsItemID)
	if _, err := m.store.SetItem(ctx, m.settingsDef, item); err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	return nil
}

// LogLocation appends p to the log with an auto-assigned id and returns
// the id.
func (m *Manager) LogLocation(ctx context.Context, p Point) (string, error) {
	m.locationsMu.Lock()
	defer m.locationsMu.Unlock()
	return m.logLocked(ctx, p)
}

// logLocked appends a point; callers must hold locationsMu.
func (m *Manager) logLocked(ctx context.Context, p Point) (string, error) {
	item := pointToItem(p)
	delete(item, types.IDField)
	id, err := m.store.SetItem(ctx, m.locationsDef, item)
	if err != nil {
		return "", fmt.Errorf("failed to log location: %w", err)
	}
	return id, nil
}

// UpsertLocation writes p under its caller-supplied id.
func (m *Manager) UpsertLocation(ctx context.Context, p Point) error {
	if p.ID == "" {
		return werrors.NewValidationError(werrors.CodeInvalidArgument, "location id is required")
	}
	m.locationsMu.Lock()
	defer m.locationsMu.Unlock()

	if _, err := m.store.SetItem(ctx, m.locationsDef, pointToItem(p)); err != nil {
		return fmt.Errorf("failed to upsert location %s: %w", p.ID, err)
	}
	return nil
}

// Location returns the log entry with the given id.
func (m *Manager) Location(ctx context.Context, id string) (Point, bool, error) {
	m.locationsMu.Lock()
	defer m.locationsMu.Unlock()

	item, found, err := m.store.GetItem(ctx, m.locationsDef, id)
	if err != nil {
		return Point{}, false, fmt.Errorf("failed to read location %s: %w", id, err)
	}
	if !found {
		return Point{}, false, nil
	}
	return itemToPoint(item), true, nil
}

// RemoveLocation deletes the log entry with the given id.
func (m *Manager) RemoveLocation(ctx context.Context, id string) error {
	m.locationsMu.Lock()
	defer m.locationsMu.Unlock()

	if err := m.store.RemoveItem(ctx, m.locationsDef, id); err != nil {
		return fmt.Errorf("failed to remove location %s: %w", id, err)
	}
	return nil
}

// ListLocations pages through the log newest-first.
func (m *Manager) ListLocations(ctx context.Context, count int, continuation string) ([]Point, string, error) {
	m.locationsMu.Lock()
	defer m.locationsMu.Unlock()

	page, err := m.store.ListItems(ctx, m.locationsDef, TimeIndex, count, continuation)
	if err != nil {
		return nil, "", err
	}
	points := make([]Point, 0, len(page.Items))
	for _, item := range page.Items {
		points = append(points, itemToPoint(item))
	}
	return points, page.Continuation, nil
}

// PruneBefore removes every log entry older than cutoff (Unix millis) and
// returns the number removed.
func (m *Manager) PruneBefore(ctx context.Context, cutoff int64) (int, error) {
	m.locationsMu.Lock()
	defer m.locationsMu.Unlock()

	// Collect victims first; removing while paging would invalidate the
	// continuation.
	var ids []string
	continuation := ""
	for {
		page, err := m.store.ListItems(ctx, m.locationsDef, TimeIndex, 100, continuation)
		if err != nil {
			return 0, fmt.Errorf("failed to scan location log: %w", err)
		}
		for _, item := range page.Items {
			if int64(item[TimeIndex].Num()) < cutoff {
				ids = append(ids, item.ID())
			}
		}
		if page.Continuation == "" {
			break
		}
		continuation = page.Continuation
	}

	for _, id := range ids {
		if err := m.store.RemoveItem(ctx, m.locationsDef, id); err != nil {
			return 0, fmt.Errorf("failed to prune location %s: %w", id, err)
		}
	}
	return len(ids), nil
}

// HandlePosition is the tracker subscription: it logs a position only
// when it moved at least the configured minimum distance from the last
// logged point. Intended to be registered via Tracker.Subscribe.
func (m *Manager) HandlePosition(pos tracker.Position) {
	ctx := context.Background()

	settings, err := m.Settings(ctx)
	if err != nil {
		log.Printf("appstate: failed to read settings, skipping position: %v", err)
		return
	}
	if !settings.TrackingEnabled {
		return
	}

	m.locationsMu.Lock()
	defer m.locationsMu.Unlock()

	if m.lastLogged != nil && m.distance(*m.lastLogged, pos) < settings.MinDistanceMeters {
		return
	}

	if _, err := m.logLocked(ctx, Point{
		Latitude:  pos.Latitude,
		Longitude: pos.Longitude,
		Altitude:  pos.Altitude,
		Speed:     pos.Speed,
		Accuracy:  pos.Accuracy,
		Time:      pos.Time,
	}); err != nil {
		log.Printf("appstate: failed to log tracked position: %v", err)
		return
	}
	last := pos
	m.lastLogged = &last
}

func settingsToItem(s Settings) types.Item {
	return types.Item{
		"trackingEnabled":   types.BoolValue(s.TrackingEnabled),
		"minDistanceMeters": types.NumberValue(s.MinDistanceMeters),
		"retentionDays":     types.NumberValue(s.RetentionDays),
	}
}

func itemToSettings(item types.Item) Settings {
	return Settings{
		TrackingEnabled:   item["trackingEnabled"].Bool(),
		MinDistanceMeters: item["minDistanceMeters"].Num(),
		RetentionDays:     item["retentionDays"].Num(),
	}
}

func pointToItem(p Point) types.Item {
	item := types.Item{
		"latitude":  types.NumberValue(p.Latitude),
		"longitude": types.NumberValue(p.Longitude),
		"altitude":  types.NumberValue(p.Altitude),
		"speed":     types.NumberValue(p.Speed),
		"accuracy":  types.NumberValue(p.Accuracy),
		TimeIndex:   types.NumberValue(float64(p.Time)),
	}
	if p.ID != "" {
		item.SetID(p.ID)
	}
	return item
}

func itemToPoint(item types.Item) Point {
	return Point{
		ID:        item.ID(),
		Latitude:  item["latitude"].Num(),
		Longitude: item["longitude"].Num(),
		Altitude:  item["altitude"].Num(),
		Speed:     item["speed"].Num(),
		Accuracy:  item["accuracy"].Num(),
		Time:      int64(item[TimeIndex].Num()),
	}
}
