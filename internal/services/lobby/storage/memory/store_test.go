package memory

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/louisbranch/lobby/internal/services/lobby/storage"
)

func TestGetEmptyStore(t *testing.T) {
	snap, err := New().Get(context.Background())
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(snap.Data) != 0 || snap.Version != "" {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
}

func TestPutCreateThenCompareAndSwap(t *testing.T) {
	ctx := context.Background()
	store := New()

	v1, err := store.Put(ctx, []byte("one"), "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := store.Put(ctx, []byte("again"), ""); !errors.Is(err, storage.ErrVersionConflict) {
		t.Fatalf("second create error = %v, want conflict", err)
	}
	v2, err := store.Put(ctx, []byte("two"), v1)
	if err != nil {
		t.Fatalf("swap: %v", err)
	}
	if _, err := store.Put(ctx, []byte("stale"), v1); !errors.Is(err, storage.ErrVersionConflict) {
		t.Fatalf("stale swap error = %v, want conflict", err)
	}

	snap, err := store.Get(ctx)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !bytes.Equal(snap.Data, []byte("two")) || snap.Version != v2 {
		t.Fatalf("snapshot = %+v, want data two version %s", snap, v2)
	}
}

func TestGetReturnsCopy(t *testing.T) {
	ctx := context.Background()
	store := New()
	if _, err := store.Put(ctx, []byte("abc"), ""); err != nil {
		t.Fatalf("put: %v", err)
	}
	snap, _ := store.Get(ctx)
	snap.Data[0] = 'x'

	again, _ := store.Get(ctx)
	if string(again.Data) != "abc" {
		t.Fatalf("stored data mutated through snapshot: %q", again.Data)
	}
}

func TestCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := New().Get(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("get error = %v, want canceled", err)
	}
}
