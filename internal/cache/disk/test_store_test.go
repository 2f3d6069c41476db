package disk

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"framelabel/internal/tester"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newClock() *clock { return &clock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)} }

func TestStoreTTLExpiry(t *testing.T) {
	clk := newClock()
	store, err := Open(Config{Root: t.TempDir(), TTL: time.Minute, MaxEntries: 10, Now: clk.now})
	tester.NoErr(t, err)
	ctx := context.Background()

	tester.NoErr(t, store.Set(ctx, "k1", []byte("v1")))
	raw, ok, err := store.Get(ctx, "k1")
	tester.NoErr(t, err)
	tester.True(t, ok)
	tester.Eq(t, string(raw), "v1")

	clk.advance(2 * time.Minute)
	_, ok, err = store.Get(ctx, "k1")
	tester.NoErr(t, err)
	tester.False(t, ok, "expected miss after ttl expiry")
	tester.Eq(t, store.Len(), 0)
}

func TestStoreEvictsLeastRecentlyUsed(t *testing.T) {
	clk := newClock()
	store, err := Open(Config{Root: t.TempDir(), TTL: time.Hour, MaxEntries: 2, Now: clk.now})
	tester.NoErr(t, err)
	ctx := context.Background()

	tester.NoErr(t, store.Set(ctx, "a", []byte("aa")))
	clk.advance(time.Second)
	tester.NoErr(t, store.Set(ctx, "b", []byte("bb")))
	clk.advance(time.Second)
	_, ok, _ := store.Get(ctx, "a")
	tester.True(t, ok)
	clk.advance(time.Second)
	tester.NoErr(t, store.Set(ctx, "c", []byte("cc")))

	_, ok, _ = store.Get(ctx, "b")
	tester.False(t, ok, "b should be evicted")
	_, ok, _ = store.Get(ctx, "a")
	tester.True(t, ok)
	_, ok, _ = store.Get(ctx, "c")
	tester.True(t, ok)
}

func TestStoreEvictsByBytes(t *testing.T) {
	clk := newClock()
	store, err := Open(Config{Root: t.TempDir(), TTL: time.Hour, MaxEntries: 10, MaxBytes: 5, Now: clk.now})
	tester.NoErr(t, err)
	ctx := context.Background()
	tester.NoErr(t, store.Set(ctx, "old", []byte("1234")))
	clk.advance(time.Second)
	tester.NoErr(t, store.Set(ctx, "new", []byte("5678")))
	_, ok, _ := store.Get(ctx, "old")
	tester.False(t, ok)
	tester.Eq(t, store.Len(), 1)
}

func TestStoreRestoresFromIndex(t *testing.T) {
	root := t.TempDir()
	ctx := context.Background()
	store, err := Open(Config{Root: root, TTL: time.Hour, MaxEntries: 10})
	tester.NoErr(t, err)
	tester.NoErr(t, store.Set(ctx, "persist", []byte("value")))

	reopened, err := Open(Config{Root: root, TTL: time.Hour, MaxEntries: 10})
	tester.NoErr(t, err)
	raw, ok, err := reopened.Get(ctx, "persist")
	tester.NoErr(t, err)
	tester.True(t, ok)
	tester.Eq(t, string(raw), "value")
}

func TestStoreDropsEntriesWithMissingFiles(t *testing.T) {
	root := t.TempDir()
	ctx := context.Background()
	store, err := Open(Config{Root: root, TTL: time.Hour, MaxEntries: 10})
	tester.NoErr(t, err)
	tester.NoErr(t, store.Set(ctx, "gone", []byte("x")))
	tester.NoErr(t, os.Remove(filepath.Join(root, "data", hashedName("gone"))))

	_, ok, err := store.Get(ctx, "gone")
	tester.NoErr(t, err)
	tester.False(t, ok)
}

func TestNilStore(t *testing.T) {
	var s *Store
	_, _, err := s.Get(context.Background(), "k")
	tester.Err(t, err)
	tester.NoErr(t, s.Delete(context.Background(), "k"))
	tester.Eq(t, s.Len(), 0)
}
