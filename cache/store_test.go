package cache

import (
	"context"
	"errors"
	"testing"
)

func TestMemoryGetSetClear(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(0)

	if _, ok, _ := m.Get(ctx, "volume"); ok {
		t.Fatal("Get on empty store reported a value")
	}
	if err := m.Set(ctx, "volume", "0.3"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	v, ok, err := m.Get(ctx, "volume")
	if err != nil || !ok || v != "0.3" {
		t.Fatalf("Get = %q, %v, %v; want \"0.3\", true, nil", v, ok, err)
	}
	if err := m.Clear(ctx, "volume"); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if _, ok, _ := m.Get(ctx, "volume"); ok {
		t.Error("value still present after Clear")
	}
	if m.Writes() != 1 {
		t.Errorf("Writes = %d, want 1", m.Writes())
	}
}

func TestMemoryQuota(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(10)

	if err := m.Set(ctx, "k", "12345"); err != nil {
		t.Fatalf("Set within quota: %v", err)
	}
	if err := m.Set(ctx, "k", "123456789"); err != nil {
		t.Fatalf("overwrite within quota: %v", err)
	}
	if err := m.Set(ctx, "k", "1234567890"); !errors.Is(err, ErrQuotaExceeded) {
		t.Fatalf("Set over quota = %v, want ErrQuotaExceeded", err)
	}
	if v, _, _ := m.Get(ctx, "k"); v != "123456789" {
		t.Errorf("value after refused write = %q, want previous value", v)
	}
	if err := m.Clear(ctx, "k"); err != nil {
		t.Fatal(err)
	}
	if err := m.Set(ctx, "other", "1234"); err != nil {
		t.Errorf("Set after Clear freed space: %v", err)
	}
}

func TestRedisWithoutClient(t *testing.T) {
	r := &Redis{}
	ctx := context.Background()
	if _, _, err := r.Get(ctx, "k"); !errors.Is(err, ErrStoreUnavailable) {
		t.Errorf("Get = %v, want ErrStoreUnavailable", err)
	}
	if err := r.Set(ctx, "k", "v"); !errors.Is(err, ErrStoreUnavailable) {
		t.Errorf("Set = %v, want ErrStoreUnavailable", err)
	}
	if err := r.Clear(ctx, "k"); !errors.Is(err, ErrStoreUnavailable) {
		t.Errorf("Clear = %v, want ErrStoreUnavailable", err)
	}
}
