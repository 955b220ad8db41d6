// Package table implements a miniature single-table database on top of the
// key/value primitive: auto-incrementing identifiers, maintained sorted
// secondary indexes, and cursor-based pagination.
//
// Persisted layout: a table definition lives under key = table name as JSON
// {"name","nextId","indexes"}; each item lives under "<name>|<id>" as the
// JSON of its record. The index entry sequences inside the definition ARE
// the indexes; there is no separate on-disk structure.
//
// A *Definition handle is shared mutable state owned by the caller: index
// maintenance mutates it in memory before persisting it, so all operations
// against one table must go through one handle, one call at a time.
// Concurrent callers holding separate handles for the same table will race
// and lose index updates.
package table

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/waypointdb/waypoint/internal/kv"
	"github.com/waypointdb/waypoint/internal/observability"
	"github.com/waypointdb/waypoint/pkg/types"
)

// Errors surfaced to callers as hard failures. Absent items are not
// errors; GetItem reports them with its found flag.
var (
	ErrTableNotFound   = errors.New("table: table not found")
	ErrIndexNotFound   = errors.New("table: index not found")
	ErrBadContinuation = errors.New("table: malformed continuation token")
)

// keySep separates the table name from the item id in item keys.
const keySep = "|"

// DefaultPageSize is the page size ListItems uses when count is not positive.
const DefaultPageSize = 10

// IndexSpec describes one secondary index at table definition time. The
// index name doubles as the projected field name. Defaults: descending,
// lexicographic.
type IndexSpec struct {
	Ascending bool
	Numerical bool
}

// Entry is one index slot: an item's id and its projected field value at
// last write. Ids keep their stored representation (numeric for
// auto-assigned ids) so the persisted layout round-trips.
type Entry struct {
	ID    types.Value `json:"id"`
	Value types.Value `json:"value"`
}

// Index is a maintained, fully sorted projection of one item field across
// all items in the table.
type Index struct {
	Ascending bool    `json:"ascending"`
	Numerical bool    `json:"numerical"`
	Values    []Entry `json:"values"`
}

// Definition is a table's persisted metadata: its name, the next
// auto-assigned id, and every secondary index. Indexes are fixed at first
// definition.
type Definition struct {
	Name    string            `json:"name"`
	NextID  int64             `json:"nextId"`
	Indexes map[string]*Index `json:"indexes"`
}

// Page is one result window of a paginated listing. Continuation, when
// non-empty, resumes the listing; it is a position in the index's current
// ordering, not a snapshot, and is invalidated by writes to that index.
type Page struct {
	Items        []types.Item `json:"items"`
	Continuation string       `json:"continuation,omitempty"`
}

// Store performs table CRUD against a key/value primitive.
type Store struct {
	kv    kv.Store
	stats *observability.OpStats

	// The collator backing locale-aware string comparison; it keeps
	// internal buffers, so sorts serialize on collMu.
	collMu sync.Mutex
	coll   *collate.Collator
}

// Option configures a Store.
type Option func(*Store)

// WithOpStats makes the store record per-operation statistics.
func WithOpStats(stats *observability.OpStats) Option {
	return func(s *Store) {
		s.stats = stats
	}
}

// NewStore creates a table store over the given primitive.
func NewStore(store kv.Store, opts ...Option) *Store {
	s := &Store{
		kv:   store,
		coll: collate.New(language.Und),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DefineTable persists a new table definition with NextID 1 and the given
// indexes. If a definition already exists under name, the call is an
// idempotent no-op: indexes cannot be added after first definition.
func (s *Store) DefineTable(ctx context.Context, name string, specs map[string]IndexSpec) (err error) {
	defer s.record("define_table", time.Now(), &err)

	if name == "" {
		return fmt.Errorf("table: name must not be empty")
	}
	if strings.Contains(name, keySep) {
		return fmt.Errorf("table: name must not contain %q", keySep)
	}

	_, found, err := s.kv.Get(ctx, name)
	if err != nil {
		return fmt.Errorf("table: read definition %q: %w", name, err)
	}
	if found {
		return nil
	}

	def := &Definition{
		Name:    name,
		NextID:  1,
		Indexes: make(map[string]*Index, len(specs)),
	}
	for indexName, spec := range specs {
		def.Indexes[indexName] = &Index{
			Ascending: spec.Ascending,
			Numerical: spec.Numerical,
			Values:    []Entry{},
		}
	}

	raw, err := json.Marshal(def)
	if err != nil {
		return fmt.Errorf("table: encode definition %q: %w", name, err)
	}
	if err := s.kv.Set(ctx, name, string(raw)); err != nil {
		return fmt.Errorf("table: persist definition %q: %w", name, err)
	}
	return nil
}

// OpenTable reads a table definition. The returned handle is live state:
// see the package comment for the single-handle contract.
func (s *Store) OpenTable(ctx context.Context, name string) (def *Definition, err error) {
	defer s.record("open_table", time.Now(), &err)

	raw, found, err := s.kv.Get(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("table: read definition %q: %w", name, err)
	}
	if !found {
		return nil, fmt.Errorf("table: open %q: %w", name, ErrTableNotFound)
	}

	def = &Definition{}
	if err := json.Unmarshal([]byte(raw), def); err != nil {
		return nil, fmt.Errorf("table: decode definition %q: %w", name, err)
	}
	if def.Indexes == nil {
		def.Indexes = map[string]*Index{}
	}
	return def, nil
}

// DeleteTable removes the table definition and every item key prefixed by
// "<name>|" in one batched operation. Deleting an undefined table is a
// no-op.
func (s *Store) DeleteTable(ctx context.Context, name string) (err error) {
	defer s.record("delete_table", time.Now(), &err)

	keys, err := s.kv.Keys(ctx)
	if err != nil {
		return fmt.Errorf("table: enumerate keys: %w", err)
	}

	prefix := name + keySep
	var doomed []string
	for _, key := range keys {
		if key == name || strings.HasPrefix(key, prefix) {
			doomed = append(doomed, key)
		}
	}
	if len(doomed) == 0 {
		return nil
	}

	if err := s.kv.MultiRemove(ctx, doomed); err != nil {
		return fmt.Errorf("table: delete %q: %w", name, err)
	}
	return nil
}

// itemKey builds the storage key for an item id.
func itemKey(table, id string) string {
	return table + keySep + id
}

// record reports one operation to the stats tracker, when configured.
func (s *Store) record(op string, start time.Time, err *error) {
	if s.stats != nil {
		s.stats.Record(op, time.Since(start), *err)
	}
}
