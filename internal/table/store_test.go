package table

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/waypointdb/waypoint/internal/kv"
	"github.com/waypointdb/waypoint/pkg/types"
)

func newTestStore(t *testing.T) (*Store, *kv.MemoryStore) {
	t.Helper()
	mem := kv.NewMemoryStore()
	t.Cleanup(func() { mem.Close() })
	return NewStore(mem), mem
}

func TestDefineTable_Idempotent(t *testing.T) {
	store, mem := newTestStore(t)
	ctx := context.Background()

	err := store.DefineTable(ctx, "people", map[string]IndexSpec{
		"name": {Ascending: true},
	})
	if err != nil {
		t.Fatalf("define failed: %v", err)
	}

	// Redefinition with different indexes is a no-op.
	err = store.DefineTable(ctx, "people", map[string]IndexSpec{
		"age": {Numerical: true},
	})
	if err != nil {
		t.Fatalf("redefine failed: %v", err)
	}

	def, err := store.OpenTable(ctx, "people")
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	if def.NextID != 1 {
		t.Errorf("nextId = %d, want 1", def.NextID)
	}
	if _, ok := def.Indexes["name"]; !ok {
		t.Error("original name index missing after redefine")
	}
	if _, ok := def.Indexes["age"]; ok {
		t.Error("redefine added an index; indexes are immutable after first definition")
	}

	// The definition is stored under key = table name.
	raw, found, _ := mem.Get(ctx, "people")
	if !found {
		t.Fatal("definition key missing")
	}
	var onDisk map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &onDisk); err != nil {
		t.Fatalf("stored definition is not JSON: %v", err)
	}
	for _, field := range []string{"name", "nextId", "indexes"} {
		if _, ok := onDisk[field]; !ok {
			t.Errorf("stored definition lacks %q field", field)
		}
	}
}

func TestDefineTable_RejectsBadNames(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	if err := store.DefineTable(ctx, "", nil); err == nil {
		t.Error("expected error for empty table name")
	}
	if err := store.DefineTable(ctx, "a|b", nil); err == nil {
		t.Error("expected error for name containing the key separator")
	}
}

func TestOpenTable_NotFound(t *testing.T) {
	store, _ := newTestStore(t)

	_, err := store.OpenTable(context.Background(), "nope")
	if !errors.Is(err, ErrTableNotFound) {
		t.Errorf("got %v, want ErrTableNotFound", err)
	}
}

func TestSetItem_AutoIDMonotonicity(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	if err := store.DefineTable(ctx, "log", nil); err != nil {
		t.Fatalf("define failed: %v", err)
	}
	def, err := store.OpenTable(ctx, "log")
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}

	const n = 5
	for i := 1; i <= n; i++ {
		id, err := store.SetItem(ctx, def, types.Item{
			"seq": types.NumberValue(float64(i)),
		})
		if err != nil {
			t.Fatalf("set %d failed: %v", i, err)
		}
		if want := fmt.Sprintf("%d", i); id != want {
			t.Errorf("call %d assigned id %q, want %q", i, id, want)
		}
	}
	if def.NextID != n+1 {
		t.Errorf("nextId = %d, want %d", def.NextID, n+1)
	}

	// The advanced counter is persisted with the item.
	reopened, err := store.OpenTable(ctx, "log")
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	if reopened.NextID != n+1 {
		t.Errorf("persisted nextId = %d, want %d", reopened.NextID, n+1)
	}
}

func TestSetItem_GetItemRoundTrip(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	if err := store.DefineTable(ctx, "log", nil); err != nil {
		t.Fatalf("define failed: %v", err)
	}
	def, _ := store.OpenTable(ctx, "log")

	in := types.Item{
		"latitude":  types.NumberValue(37.7749),
		"longitude": types.NumberValue(-122.4194),
		"flagged":   types.BoolValue(true),
		"address":   types.StringValue("Market St"),
		"note":      types.NullValue(),
	}
	id, err := store.SetItem(ctx, def, in)
	if err != nil {
		t.Fatalf("set failed: %v", err)
	}

	out, found, err := store.GetItem(ctx, def, id)
	if err != nil || !found {
		t.Fatalf("get = (found=%v, err=%v), want found item", found, err)
	}
	if len(out) != len(in) {
		t.Fatalf("round trip field count = %d, want %d (got %v)", len(out), len(in), out)
	}
	for field, want := range in {
		if !out[field].Equal(want) {
			t.Errorf("field %q = %#v, want %#v", field, out[field], want)
		}
	}
	if out.ID() != id {
		t.Errorf("stored id = %q, want %q", out.ID(), id)
	}
}

func TestSetItem_CallerSuppliedID(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	if err := store.DefineTable(ctx, "settings", nil); err != nil {
		t.Fatalf("define failed: %v", err)
	}
	def, _ := store.OpenTable(ctx, "settings")

	item := types.Item{"theme": types.StringValue("dark")}
	item.SetID("prefs")
	id, err := store.SetItem(ctx, def, item)
	if err != nil {
		t.Fatalf("set failed: %v", err)
	}
	if id != "prefs" {
		t.Errorf("id = %q, want prefs", id)
	}
	if def.NextID != 1 {
		t.Errorf("nextId advanced to %d for a caller-supplied id", def.NextID)
	}

	// A second write with the same id mutates in place.
	item["theme"] = types.StringValue("light")
	if _, err := store.SetItem(ctx, def, item); err != nil {
		t.Fatalf("update failed: %v", err)
	}
	out, _, _ := store.GetItem(ctx, def, "prefs")
	if out["theme"].Text() != "light" {
		t.Errorf("theme = %q, want light", out["theme"].Text())
	}
}

func TestGetItem_AbsentIsNotAnError(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	if err := store.DefineTable(ctx, "log", nil); err != nil {
		t.Fatalf("define failed: %v", err)
	}
	def, _ := store.OpenTable(ctx, "log")

	item, found, err := store.GetItem(ctx, def, "42")
	if err != nil {
		t.Fatalf("absent read errored: %v", err)
	}
	if found || item != nil {
		t.Errorf("got (%v, %v), want absent sentinel", item, found)
	}
}

func TestRemoveItem_Cascade(t *testing.T) {
	store, mem := newTestStore(t)
	ctx := context.Background()

	err := store.DefineTable(ctx, "log", map[string]IndexSpec{
		"time": {Numerical: true},
		"tag":  {Ascending: true},
	})
	if err != nil {
		t.Fatalf("define failed: %v", err)
	}
	def, _ := store.OpenTable(ctx, "log")

	var ids []string
	for i := 0; i < 3; i++ {
		id, err := store.SetItem(ctx, def, types.Item{
			"time": types.NumberValue(float64(100 + i)),
			"tag":  types.StringValue(fmt.Sprintf("t%d", i)),
		})
		if err != nil {
			t.Fatalf("set failed: %v", err)
		}
		ids = append(ids, id)
	}

	if err := store.RemoveItem(ctx, def, ids[1]); err != nil {
		t.Fatalf("remove failed: %v", err)
	}

	if _, found, _ := store.GetItem(ctx, def, ids[1]); found {
		t.Error("item key survived RemoveItem")
	}
	for name, idx := range def.Indexes {
		if len(idx.Values) != 2 {
			t.Errorf("index %q has %d entries, want 2", name, len(idx.Values))
		}
		for _, entry := range idx.Values {
			if entry.ID.Text() == ids[1] {
				t.Errorf("index %q still references removed id %s", name, ids[1])
			}
		}
	}

	// The dirtied definition was persisted before the item delete.
	reopened, _ := store.OpenTable(ctx, "log")
	for name, idx := range reopened.Indexes {
		if len(idx.Values) != 2 {
			t.Errorf("persisted index %q has %d entries, want 2", name, len(idx.Values))
		}
	}

	// Removing an id that was never written is harmless.
	if err := store.RemoveItem(ctx, def, "999"); err != nil {
		t.Errorf("remove of unknown id: %v", err)
	}

	if err := store.DeleteTable(ctx, "log"); err != nil {
		t.Fatalf("delete table failed: %v", err)
	}
	keys, _ := mem.Keys(ctx)
	for _, key := range keys {
		t.Errorf("key %q survived DeleteTable", key)
	}

	// Deleting again is a no-op.
	if err := store.DeleteTable(ctx, "log"); err != nil {
		t.Errorf("second delete: %v", err)
	}
}

func TestDeleteTable_LeavesOtherTablesAlone(t *testing.T) {
	store, mem := newTestStore(t)
	ctx := context.Background()

	for _, name := range []string{"log", "logbook"} {
		if err := store.DefineTable(ctx, name, nil); err != nil {
			t.Fatalf("define %s failed: %v", name, err)
		}
		def, _ := store.OpenTable(ctx, name)
		if _, err := store.SetItem(ctx, def, types.Item{"v": types.NumberValue(1)}); err != nil {
			t.Fatalf("set in %s failed: %v", name, err)
		}
	}

	// "log" must not take "logbook" (or its items) with it: the prefix
	// match is on "log|", not "log".
	if err := store.DeleteTable(ctx, "log"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}

	if _, found, _ := mem.Get(ctx, "logbook"); !found {
		t.Error("logbook definition was deleted")
	}
	if _, found, _ := mem.Get(ctx, "logbook|1"); !found {
		t.Error("logbook item was deleted")
	}
	if _, found, _ := mem.Get(ctx, "log"); found {
		t.Error("log definition survived")
	}
	if _, found, _ := mem.Get(ctx, "log|1"); found {
		t.Error("log item survived")
	}
}

func TestIndexMaintenance_UpdateInPlace(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	err := store.DefineTable(ctx, "scores", map[string]IndexSpec{
		"score": {Numerical: true, Ascending: true},
	})
	if err != nil {
		t.Fatalf("define failed: %v", err)
	}
	def, _ := store.OpenTable(ctx, "scores")

	item := types.Item{"score": types.NumberValue(10)}
	id, err := store.SetItem(ctx, def, item)
	if err != nil {
		t.Fatalf("set failed: %v", err)
	}

	// Rewriting with a changed projection updates the existing entry.
	item["score"] = types.NumberValue(3)
	if _, err := store.SetItem(ctx, def, item); err != nil {
		t.Fatalf("update failed: %v", err)
	}

	idx := def.Indexes["score"]
	if len(idx.Values) != 1 {
		t.Fatalf("index has %d entries after update, want 1", len(idx.Values))
	}
	if idx.Values[0].ID.Text() != id || idx.Values[0].Value.Num() != 3 {
		t.Errorf("entry = %+v, want id %s value 3", idx.Values[0], id)
	}
}

func TestIndexMaintenance_NumericCoercion(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	err := store.DefineTable(ctx, "readings", map[string]IndexSpec{
		"value": {Numerical: true, Ascending: true},
	})
	if err != nil {
		t.Fatalf("define failed: %v", err)
	}
	def, _ := store.OpenTable(ctx, "readings")

	// A string projection on a numerical index coerces to 0 and sorts
	// before the positive readings.
	if _, err := store.SetItem(ctx, def, types.Item{"value": types.NumberValue(5)}); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	if _, err := store.SetItem(ctx, def, types.Item{"value": types.StringValue("n/a")}); err != nil {
		t.Fatalf("set failed: %v", err)
	}

	idx := def.Indexes["value"]
	if idx.Values[0].Value.Num() != 0 || idx.Values[1].Value.Num() != 5 {
		t.Errorf("coerced order = [%v %v], want [0 5]",
			idx.Values[0].Value.Num(), idx.Values[1].Value.Num())
	}
}

func TestListItems_Errors(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	err := store.DefineTable(ctx, "log", map[string]IndexSpec{
		"time": {Numerical: true},
	})
	if err != nil {
		t.Fatalf("define failed: %v", err)
	}
	def, _ := store.OpenTable(ctx, "log")

	if _, err := store.ListItems(ctx, def, "nope", 10, ""); !errors.Is(err, ErrIndexNotFound) {
		t.Errorf("unknown index: got %v, want ErrIndexNotFound", err)
	}
	if _, err := store.ListItems(ctx, def, "time", 10, "abc"); !errors.Is(err, ErrBadContinuation) {
		t.Errorf("malformed token: got %v, want ErrBadContinuation", err)
	}
	if _, err := store.ListItems(ctx, def, "time", 10, "-1"); !errors.Is(err, ErrBadContinuation) {
		t.Errorf("negative token: got %v, want ErrBadContinuation", err)
	}

	// Past-the-end is a graceful empty page, not an error.
	page, err := store.ListItems(ctx, def, "time", 10, "100")
	if err != nil {
		t.Fatalf("past-the-end errored: %v", err)
	}
	if len(page.Items) != 0 || page.Continuation != "" {
		t.Errorf("past-the-end page = %+v, want empty with no continuation", page)
	}
}

func TestListItems_SkipsStaleIndexEntries(t *testing.T) {
	store, mem := newTestStore(t)
	ctx := context.Background()

	err := store.DefineTable(ctx, "log", map[string]IndexSpec{
		"time": {Numerical: true, Ascending: true},
	})
	if err != nil {
		t.Fatalf("define failed: %v", err)
	}
	def, _ := store.OpenTable(ctx, "log")

	var ids []string
	for i := 0; i < 3; i++ {
		id, err := store.SetItem(ctx, def, types.Item{"time": types.NumberValue(float64(i))})
		if err != nil {
			t.Fatalf("set failed: %v", err)
		}
		ids = append(ids, id)
	}

	// Delete an item key behind the store's back, leaving its index entry
	// dangling.
	if err := mem.Delete(ctx, "log|"+ids[1]); err != nil {
		t.Fatalf("raw delete failed: %v", err)
	}

	page, err := store.ListItems(ctx, def, "time", 10, "")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(page.Items) != 2 {
		t.Fatalf("got %d items, want 2 (stale slot skipped)", len(page.Items))
	}
	for _, item := range page.Items {
		if item.ID() == ids[1] {
			t.Errorf("stale item %s surfaced in page", ids[1])
		}
	}
}
