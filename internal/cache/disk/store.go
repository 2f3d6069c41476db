package disk

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

var ErrNilStore = errors.New("disk: store is nil")

type Config struct {
	Root       string
	MaxEntries int
	MaxBytes   int64
	TTL        time.Duration
	// Now overrides the clock, for tests.
	Now func() time.Time
}

type entry struct {
	File       string    `msgpack:"file"`
	Size       int64     `msgpack:"size"`
	ExpiresAt  time.Time `msgpack:"expires_at"`
	AccessedAt time.Time `msgpack:"accessed_at"`
}

type index struct {
	Entries map[string]entry `msgpack:"entries"`
}

// Store persists byte values under root/data and keeps a msgpack index for
// TTL expiry and LRU eviction by entry count and total bytes.
type Store struct {
	mu sync.Mutex

	dataDir   string
	indexPath string

	maxEntries int
	maxBytes   int64
	ttl        time.Duration
	now        func() time.Time

	totalBytes int64
	entries    map[string]entry
}

func Open(cfg Config) (*Store, error) {
	root := strings.TrimSpace(cfg.Root)
	if root == "" {
		return nil, fmt.Errorf("disk: root is required")
	}
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = 1
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 24 * time.Hour
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	s := &Store{
		dataDir:    filepath.Join(root, "data"),
		indexPath:  filepath.Join(root, "index.msgpack"),
		maxEntries: cfg.MaxEntries,
		maxBytes:   cfg.MaxBytes,
		ttl:        cfg.TTL,
		now:        cfg.Now,
		entries:    map[string]entry{},
	}
	if err := os.MkdirAll(s.dataDir, 0o755); err != nil {
		return nil, err
	}
	if err := s.loadIndex(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.cleanupAndEvictLocked(s.now()); err != nil {
		return nil, err
	}
	return s, s.persistIndexLocked()
}

// Get returns a copy of the stored value. Expired or missing files are a miss.
func (s *Store) Get(_ context.Context, key string) ([]byte, bool, error) {
	if s == nil {
		return nil, false, ErrNilStore
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, false, fmt.Errorf("disk: key is required")
	}

	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()

	ent, ok := s.entries[key]
	if !ok {
		return nil, false, nil
	}
	if now.After(ent.ExpiresAt) {
		s.removeEntryLocked(key, ent)
		return nil, false, s.persistIndexLocked()
	}
	raw, err := os.ReadFile(filepath.Join(s.dataDir, ent.File))
	if err != nil {
		if os.IsNotExist(err) {
			s.removeEntryLocked(key, ent)
			return nil, false, s.persistIndexLocked()
		}
		return nil, false, err
	}
	ent.AccessedAt = now
	s.entries[key] = ent
	return raw, true, s.persistIndexLocked()
}

// Set writes value atomically and resets its TTL.
func (s *Store) Set(_ context.Context, key string, value []byte) error {
	if s == nil {
		return ErrNilStore
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("disk: key is required")
	}

	now := s.now()
	file := hashedName(key)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := writeAtomic(filepath.Join(s.dataDir, file), value); err != nil {
		return err
	}
	if old, ok := s.entries[key]; ok {
		s.totalBytes -= old.Size
	}
	s.entries[key] = entry{
		File:       file,
		Size:       int64(len(value)),
		ExpiresAt:  now.Add(s.ttl),
		AccessedAt: now,
	}
	s.totalBytes += int64(len(value))

	if err := s.cleanupAndEvictLocked(now); err != nil {
		return err
	}
	return s.persistIndexLocked()
}

func (s *Store) Delete(_ context.Context, key string) error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if ent, ok := s.entries[strings.TrimSpace(key)]; ok {
		s.removeEntryLocked(strings.TrimSpace(key), ent)
		return s.persistIndexLocked()
	}
	return nil
}

func (s *Store) Len() int {
	if s == nil {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *Store) loadIndex() error {
	raw, err := os.ReadFile(s.indexPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	var idx index
	if err := msgpack.Unmarshal(raw, &idx); err != nil {
		// A corrupt index only loses cached data.
		idx = index{}
	}
	if idx.Entries != nil {
		s.entries = idx.Entries
	}
	s.totalBytes = 0
	for _, ent := range s.entries {
		s.totalBytes += ent.Size
	}
	return nil
}

func (s *Store) cleanupAndEvictLocked(now time.Time) error {
	for key, ent := range s.entries {
		if now.After(ent.ExpiresAt) {
			s.removeEntryLocked(key, ent)
			continue
		}
		if _, err := os.Stat(filepath.Join(s.dataDir, ent.File)); err != nil {
			if os.IsNotExist(err) {
				s.removeEntryLocked(key, ent)
				continue
			}
			return err
		}
	}
	for s.needsEvictionLocked() {
		key, ent := s.leastRecentlyUsedLocked()
		s.removeEntryLocked(key, ent)
	}
	return nil
}

func (s *Store) needsEvictionLocked() bool {
	if len(s.entries) == 0 {
		return false
	}
	return len(s.entries) > s.maxEntries || (s.maxBytes > 0 && s.totalBytes > s.maxBytes)
}

func (s *Store) leastRecentlyUsedLocked() (string, entry) {
	keys := make([]string, 0, len(s.entries))
	for key := range s.entries {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		li, lj := s.entries[keys[i]].AccessedAt, s.entries[keys[j]].AccessedAt
		if li.Equal(lj) {
			return keys[i] < keys[j]
		}
		return li.Before(lj)
	})
	return keys[0], s.entries[keys[0]]
}

func (s *Store) removeEntryLocked(key string, ent entry) {
	delete(s.entries, key)
	s.totalBytes -= ent.Size
	if s.totalBytes < 0 {
		s.totalBytes = 0
	}
	_ = os.Remove(filepath.Join(s.dataDir, ent.File))
}

func (s *Store) persistIndexLocked() error {
	raw, err := msgpack.Marshal(index{Entries: s.entries})
	if err != nil {
		return err
	}
	return writeAtomic(s.indexPath, raw)
}

// writeAtomic writes through a temp file in the same directory and renames.
func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func hashedName(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:]) + ".bin"
}
