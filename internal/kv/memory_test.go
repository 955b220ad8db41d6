package kv

import (
	"context"
	"sort"
	"testing"
)

func TestMemoryStore_GetSetDelete(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()
	ctx := context.Background()

	if _, found, err := store.Get(ctx, "missing"); err != nil || found {
		t.Fatalf("get missing: found=%v err=%v, want absent without error", found, err)
	}

	if err := store.Set(ctx, "a", "1"); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	value, found, err := store.Get(ctx, "a")
	if err != nil || !found || value != "1" {
		t.Fatalf("get a = (%q,%v,%v), want (1,true,nil)", value, found, err)
	}

	if err := store.Set(ctx, "a", "2"); err != nil {
		t.Fatalf("overwrite failed: %v", err)
	}
	if value, _, _ := store.Get(ctx, "a"); value != "2" {
		t.Errorf("overwrite: got %q, want 2", value)
	}

	if err := store.Delete(ctx, "a"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, found, _ := store.Get(ctx, "a"); found {
		t.Error("key still present after delete")
	}

	// Deleting a missing key is a no-op.
	if err := store.Delete(ctx, "a"); err != nil {
		t.Errorf("delete of missing key: %v", err)
	}
}

func TestMemoryStore_MultiGetPreservesOrder(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()
	ctx := context.Background()

	if err := store.MultiSet(ctx, []Pair{
		{Key: "t|1", Value: "one"},
		{Key: "t|3", Value: "three"},
	}); err != nil {
		t.Fatalf("multi-set failed: %v", err)
	}

	results, err := store.MultiGet(ctx, []string{"t|3", "t|2", "t|1"})
	if err != nil {
		t.Fatalf("multi-get failed: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}
	if results[0].Key != "t|3" || !results[0].Found || results[0].Value != "three" {
		t.Errorf("slot 0 = %+v, want found t|3=three", results[0])
	}
	if results[1].Key != "t|2" || results[1].Found {
		t.Errorf("slot 1 = %+v, want absent t|2", results[1])
	}
	if results[2].Key != "t|1" || !results[2].Found || results[2].Value != "one" {
		t.Errorf("slot 2 = %+v, want found t|1=one", results[2])
	}
}

func TestMemoryStore_MultiRemoveAndKeys(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()
	ctx := context.Background()

	pairs := []Pair{
		{Key: "log", Value: "def"},
		{Key: "log|1", Value: "a"},
		{Key: "log|2", Value: "b"},
		{Key: "other", Value: "c"},
	}
	if err := store.MultiSet(ctx, pairs); err != nil {
		t.Fatalf("multi-set failed: %v", err)
	}

	if err := store.MultiRemove(ctx, []string{"log", "log|1", "log|2"}); err != nil {
		t.Fatalf("multi-remove failed: %v", err)
	}

	keys, err := store.Keys(ctx)
	if err != nil {
		t.Fatalf("keys failed: %v", err)
	}
	sort.Strings(keys)
	if len(keys) != 1 || keys[0] != "other" {
		t.Errorf("keys = %v, want [other]", keys)
	}
}

func TestMemoryStore_ClosedOperationsFail(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	store.Close()

	if err := store.Set(ctx, "a", "1"); err != ErrClosed {
		t.Errorf("set after close: got %v, want ErrClosed", err)
	}
	if _, _, err := store.Get(ctx, "a"); err != ErrClosed {
		t.Errorf("get after close: got %v, want ErrClosed", err)
	}
	if _, err := store.Keys(ctx); err != ErrClosed {
		t.Errorf("keys after close: got %v, want ErrClosed", err)
	}
}
