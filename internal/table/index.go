package table

import (
	"sort"

	"github.com/waypointdb/waypoint/pkg/types"
)

// maintainIndexes projects the item into every defined index and restores
// sort order where a projection changed. Reports whether any index was
// modified.
//
// Projection is always by the index's own name: an index named "age" reads
// the item field "age". Numerical indexes coerce non-numeric projections
// to 0 before they are stored, so comparisons see the coerced value.
func (s *Store) maintainIndexes(def *Definition, item types.Item, id string) bool {
	changed := false
	for name, idx := range def.Indexes {
		projected := item[name]
		if idx.Numerical {
			projected = types.NumberValue(projected.Num())
		}

		slot := -1
		for i, entry := range idx.Values {
			if entry.ID.Text() == id {
				slot = i
				break
			}
		}

		switch {
		case slot >= 0 && idx.Values[slot].Value.Equal(projected):
			continue
		case slot >= 0:
			idx.Values[slot].Value = projected
		default:
			idx.Values = append(idx.Values, Entry{
				ID:    item[types.IDField],
				Value: projected,
			})
		}

		s.sortIndex(idx)
		changed = true
	}
	return changed
}

// sortIndex re-sorts the full entry sequence by the index's
// (numerical, ascending) policy. String comparison is locale-aware. The
// sort is stable, so entries with equal keys keep their prior relative
// order. Full re-sort per changed write is O(n log n) per index; fine for
// device-local cardinality.
func (s *Store) sortIndex(idx *Index) {
	s.collMu.Lock()
	defer s.collMu.Unlock()

	values := idx.Values
	sort.SliceStable(values, func(i, j int) bool {
		a, b := values[i].Value, values[j].Value
		if idx.Numerical {
			if idx.Ascending {
				return a.Num() < b.Num()
			}
			return a.Num() > b.Num()
		}
		c := s.coll.CompareString(a.Text(), b.Text())
		if idx.Ascending {
			return c < 0
		}
		return c > 0
	})
}
