package store

import (
	"context"
	"errors"
	"testing"
	"time"
)

type testRecord struct {
	Name     string `redis:"name"`
	Count    int    `redis:"count"`
	Verified bool   `redis:"verified"`
	Note     string
}

func TestMemoryStorage_SetGet(t *testing.T) {
	ctx := context.Background()
	st := New[testRecord](NewMemoryStorage(), "t:")

	if err := st.Set(ctx, "a", testRecord{Name: "alpha", Count: 3, Verified: true, Note: "skipped"}, time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	got, err := st.Get(ctx, "a")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Name != "alpha" || got.Count != 3 || !got.Verified {
		t.Fatalf("unexpected record: %+v", got)
	}
	if got.Note != "" {
		t.Fatalf("untagged field should not be stored, got %q", got.Note)
	}
}

func TestMemoryStorage_IncrAttr(t *testing.T) {
	ctx := context.Background()
	st := New[testRecord](NewMemoryStorage(), "t:")
	if err := st.Set(ctx, "counter", testRecord{Name: "c"}, time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	for i := 1; i <= 3; i++ {
		n, err := st.IncrAttr(ctx, "counter", "count", 1)
		if err != nil {
			t.Fatalf("IncrAttr failed: %v", err)
		}
		if n != int64(i) {
			t.Fatalf("expected %d, got %d", i, n)
		}
	}
	var count int
	if err := st.GetAttr(ctx, "counter", "count", &count); err != nil {
		t.Fatalf("GetAttr failed: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected count 3, got %d", count)
	}
}

func TestMemoryStorage_DeleteOnce(t *testing.T) {
	ctx := context.Background()
	st := New[testRecord](NewMemoryStorage(), "t:")
	if err := st.Set(ctx, "once", testRecord{Name: "x"}, time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := st.Delete(ctx, "once"); err != nil {
		t.Fatalf("first Delete failed: %v", err)
	}
	if err := st.Delete(ctx, "once"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second Delete should report ErrNotFound, got %v", err)
	}
}

func TestMemoryStorage_Expiration(t *testing.T) {
	ctx := context.Background()
	st := New[testRecord](NewMemoryStorage(), "t:")
	if err := st.Set(ctx, "short", testRecord{Name: "x"}, 20*time.Millisecond); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	time.Sleep(40 * time.Millisecond)
	if _, err := st.Get(ctx, "short"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected expired record, got %v", err)
	}
}

func TestMemoryStorage_AttrOnMissingKey(t *testing.T) {
	ctx := context.Background()
	st := New[testRecord](NewMemoryStorage(), "t:")
	if _, err := st.IncrAttr(ctx, "gone", "count", 1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("IncrAttr on missing key should report ErrNotFound, got %v", err)
	}
	if err := st.SetAttr(ctx, "gone", "count", 0); !errors.Is(err, ErrNotFound) {
		t.Fatalf("SetAttr on missing key should report ErrNotFound, got %v", err)
	}

	if err := st.Set(ctx, "short", testRecord{Name: "x"}, 20*time.Millisecond); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	time.Sleep(40 * time.Millisecond)
	if _, err := st.IncrAttr(ctx, "short", "count", 1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("IncrAttr must not resurrect an expired key, got %v", err)
	}
}

func TestStore_IsolatesPrefixes(t *testing.T) {
	ctx := context.Background()
	mem := NewMemoryStorage()
	a := New[testRecord](mem, "a:")
	b := New[testRecord](mem, "b:")
	if err := a.Set(ctx, "k", testRecord{Name: "from-a"}, 0); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if _, err := b.Get(ctx, "k"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("prefix b should not see key of prefix a, got %v", err)
	}
}
