package table

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/waypointdb/waypoint/pkg/types"
)

// ListItems returns up to count items in the named index's current order,
// starting at the position encoded by continuation ("" starts from the
// top). The returned page carries a continuation token when entries
// remain; a start position at or past the end yields an empty page with no
// token. All item reads happen in one batched MultiGet.
//
// An index entry whose item key is missing (a write path bypassed
// RemoveItem, or a split multi-step failure) is skipped and logged; pages
// never contain nil items.
func (s *Store) ListItems(ctx context.Context, def *Definition, indexName string, count int, continuation string) (page *Page, err error) {
	defer s.record("list_items", time.Now(), &err)

	idx, ok := def.Indexes[indexName]
	if !ok {
		return nil, fmt.Errorf("table: list %q by %q: %w", def.Name, indexName, ErrIndexNotFound)
	}
	if count <= 0 {
		count = DefaultPageSize
	}

	start := 0
	if continuation != "" {
		n, convErr := strconv.Atoi(continuation)
		if convErr != nil || n < 0 {
			return nil, fmt.Errorf("table: continuation %q: %w", continuation, ErrBadContinuation)
		}
		start = n
	}

	if start >= len(idx.Values) {
		return &Page{Items: []types.Item{}}, nil
	}

	end := start + count
	if end > len(idx.Values) {
		end = len(idx.Values)
	}

	keys := make([]string, 0, end-start)
	for _, entry := range idx.Values[start:end] {
		keys = append(keys, itemKey(def.Name, entry.ID.Text()))
	}

	results, err := s.kv.MultiGet(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("table: list %q by %q: %w", def.Name, indexName, err)
	}

	page = &Page{Items: make([]types.Item, 0, len(results))}
	for _, res := range results {
		if !res.Found {
			log.Printf("table %s: index %q references missing item key %s", def.Name, indexName, res.Key)
			continue
		}
		item := types.Item{}
		if err := json.Unmarshal([]byte(res.Value), &item); err != nil {
			return nil, fmt.Errorf("table: decode item %s: %w", res.Key, err)
		}
		page.Items = append(page.Items, item)
	}

	if end < len(idx.Values) {
		page.Continuation = strconv.Itoa(end)
	}
	return page, nil
}
