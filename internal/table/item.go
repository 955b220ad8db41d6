package table

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/waypointdb/waypoint/internal/kv"
	"github.com/waypointdb/waypoint/pkg/types"
)

// GetItem reads the item stored under def's table with the given id. A
// missing item is reported through the found flag, never as an error.
func (s *Store) GetItem(ctx context.Context, def *Definition, id string) (item types.Item, found bool, err error) {
	defer s.record("get_item", time.Now(), &err)

	raw, found, err := s.kv.Get(ctx, itemKey(def.Name, id))
	if err != nil {
		return nil, false, fmt.Errorf("table: read item %s%s%s: %w", def.Name, keySep, id, err)
	}
	if !found {
		return nil, false, nil
	}

	item = types.Item{}
	if err := json.Unmarshal([]byte(raw), &item); err != nil {
		return nil, false, fmt.Errorf("table: decode item %s%s%s: %w", def.Name, keySep, id, err)
	}
	return item, true, nil
}

// SetItem writes an item, assigning the table's next auto-increment id
// when the item has no usable id (absent, null, empty string, or numeric
// zero). Index maintenance runs before anything is persisted; the item and
// any dirtied definition are then written in a single batch, so an item is
// never observable with an id but without its index entries.
//
// Returns the item's id (assigned or pre-existing).
func (s *Store) SetItem(ctx context.Context, def *Definition, item types.Item) (id string, err error) {
	defer s.record("set_item", time.Now(), &err)

	dirty := false
	if unsetID(item) {
		item[types.IDField] = types.NumberValue(float64(def.NextID))
		def.NextID++
		dirty = true
	}
	id = item.ID()

	if s.maintainIndexes(def, item, id) {
		dirty = true
	}

	rawItem, err := json.Marshal(item)
	if err != nil {
		return "", fmt.Errorf("table: encode item %s%s%s: %w", def.Name, keySep, id, err)
	}
	pairs := []kv.Pair{{Key: itemKey(def.Name, id), Value: string(rawItem)}}

	if dirty {
		rawDef, err := json.Marshal(def)
		if err != nil {
			return "", fmt.Errorf("table: encode definition %q: %w", def.Name, err)
		}
		pairs = append(pairs, kv.Pair{Key: def.Name, Value: string(rawDef)})
	}

	if err := s.kv.MultiSet(ctx, pairs); err != nil {
		return "", fmt.Errorf("table: persist item %s%s%s: %w", def.Name, keySep, id, err)
	}
	return id, nil
}

// RemoveItem drops the item's entry from every index, persists the dirtied
// definition, and then deletes the item key. The two writes are
// deliberately separate: a dangling index entry for a deleted item only
// causes a skipped slot during listing.
func (s *Store) RemoveItem(ctx context.Context, def *Definition, id string) (err error) {
	defer s.record("remove_item", time.Now(), &err)

	changed := false
	for _, idx := range def.Indexes {
		for i, entry := range idx.Values {
			if entry.ID.Text() == id {
				idx.Values = append(idx.Values[:i], idx.Values[i+1:]...)
				changed = true
				break
			}
		}
	}

	if changed {
		rawDef, err := json.Marshal(def)
		if err != nil {
			return fmt.Errorf("table: encode definition %q: %w", def.Name, err)
		}
		if err := s.kv.Set(ctx, def.Name, string(rawDef)); err != nil {
			return fmt.Errorf("table: persist definition %q: %w", def.Name, err)
		}
	}

	if err := s.kv.Delete(ctx, itemKey(def.Name, id)); err != nil {
		return fmt.Errorf("table: delete item %s%s%s: %w", def.Name, keySep, id, err)
	}
	return nil
}

// unsetID reports whether the item lacks a usable id: the field is absent,
// null, an empty string, or numeric zero.
func unsetID(item types.Item) bool {
	v, ok := item[types.IDField]
	if !ok || v.IsNull() {
		return true
	}
	switch v.Kind() {
	case types.KindString:
		return v.Text() == ""
	case types.KindNumber:
		return v.Num() == 0
	}
	return false
}
