package snapshot

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/vmihailenco/msgpack/v5"

	"framelabel/internal/cache/disk"
	"framelabel/internal/types"
)

type Config struct {
	// Dir enables the disk tier. Empty keeps snapshots in memory only.
	Dir         string
	MemEntries  int
	DiskEntries int
	TTL         time.Duration
}

// Cache keeps repository snapshots by Snapshot.Key: an expiring LRU in front
// of msgpack files. Returned snapshots are shared and must not be mutated.
type Cache struct {
	mem  *expirable.LRU[string, *types.Snapshot]
	disk *disk.Store
}

func New(cfg Config) (*Cache, error) {
	if cfg.MemEntries <= 0 {
		cfg.MemEntries = 256
	}
	if cfg.DiskEntries <= 0 {
		cfg.DiskEntries = 10000
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 7 * 24 * time.Hour
	}
	c := &Cache{mem: expirable.NewLRU[string, *types.Snapshot](cfg.MemEntries, nil, cfg.TTL)}
	if strings.TrimSpace(cfg.Dir) != "" {
		d, err := disk.Open(disk.Config{Root: cfg.Dir, MaxEntries: cfg.DiskEntries, TTL: cfg.TTL})
		if err != nil {
			return nil, fmt.Errorf("snapshot cache: %w", err)
		}
		c.disk = d
	}
	return c, nil
}

func normKey(key string) string {
	return strings.TrimSuffix(strings.ToLower(strings.TrimSpace(key)), "/")
}

// Get looks in memory, then on disk. Undecodable disk entries are dropped.
func (c *Cache) Get(ctx context.Context, key string) (*types.Snapshot, bool) {
	if c == nil {
		return nil, false
	}
	key = normKey(key)
	if key == "" {
		return nil, false
	}
	if s, ok := c.mem.Get(key); ok {
		return s, true
	}
	if c.disk == nil {
		return nil, false
	}
	raw, ok, err := c.disk.Get(ctx, key)
	if err != nil {
		log.Printf("snapshot cache: read %s: %v", key, err)
		return nil, false
	}
	if !ok {
		return nil, false
	}
	var snap types.Snapshot
	if err := msgpack.Unmarshal(raw, &snap); err != nil {
		log.Printf("snapshot cache: decode %s: %v", key, err)
		_ = c.disk.Delete(ctx, key)
		return nil, false
	}
	c.mem.Add(key, &snap)
	return &snap, true
}

// Put stores snap under its repository key.
func (c *Cache) Put(ctx context.Context, snap *types.Snapshot) error {
	if c == nil || snap == nil {
		return nil
	}
	key := snap.Key()
	if key == "" {
		return fmt.Errorf("snapshot cache: snapshot has no repository url")
	}
	c.mem.Add(key, snap)
	if c.disk == nil {
		return nil
	}
	raw, err := msgpack.Marshal(snap)
	if err != nil {
		return fmt.Errorf("snapshot cache: encode %s: %w", key, err)
	}
	return c.disk.Set(ctx, key, raw)
}

// GetOrLoad returns the cached snapshot for key or loads and stores it.
// A failed store is logged; the loaded snapshot is still returned.
func (c *Cache) GetOrLoad(ctx context.Context, key string, load func(context.Context) (*types.Snapshot, error)) (*types.Snapshot, error) {
	if s, ok := c.Get(ctx, key); ok {
		return s, nil
	}
	snap, err := load(ctx)
	if err != nil {
		return nil, err
	}
	if err := c.Put(ctx, snap); err != nil {
		log.Printf("snapshot cache: %v", err)
	}
	return snap, nil
}

func (c *Cache) Len() int {
	if c == nil {
		return 0
	}
	return c.mem.Len()
}
