package store

import (
	"context"
	"sync"
)

// MemoryStore keeps records in process memory.
type MemoryStore struct {
	mu    sync.RWMutex
	byID  map[string]Record
	order []string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byID: make(map[string]Record)}
}

func (s *MemoryStore) Append(ctx context.Context, rec Record) error {
	if s == nil {
		return ErrNilStore
	}
	if err := rec.validate(); err != nil {
		return err
	}
	id := rec.ID()
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[id]; ok {
		return ErrDuplicate
	}
	s.byID[id] = rec
	s.order = append(s.order, id)
	return nil
}

func (s *MemoryStore) Has(ctx context.Context, id string) (bool, error) {
	if s == nil {
		return false, ErrNilStore
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.byID[NormalizeID(id)]
	return ok, nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (Record, error) {
	if s == nil {
		return Record{}, ErrNilStore
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.byID[NormalizeID(id)]
	if !ok {
		return Record{}, ErrNotFound
	}
	return rec, nil
}

func (s *MemoryStore) List(ctx context.Context, c Category) ([]Record, error) {
	if s == nil {
		return nil, ErrNilStore
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Record
	for _, id := range s.order {
		if rec := s.byID[id]; rec.Category == c {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (s *MemoryStore) Replace(ctx context.Context, rec Record) error {
	if s == nil {
		return ErrNilStore
	}
	if err := rec.validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[rec.ID()]; !ok {
		return ErrNotFound
	}
	s.byID[rec.ID()] = rec
	return nil
}

func (s *MemoryStore) Stats(ctx context.Context) (Stats, error) {
	if s == nil {
		return Stats{}, ErrNilStore
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var st Stats
	for _, rec := range s.byID {
		st.Add(rec.Category, 1)
	}
	return st, nil
}

// Records returns every record in insertion order.
func (s *MemoryStore) Records() []Record {
	if s == nil {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Record, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.byID[id])
	}
	return out
}

func (s *MemoryStore) Close() error { return nil }
