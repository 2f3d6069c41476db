package store

import (
	"context"
	"errors"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultDedupSize bounds the ids remembered by Dedup.
const DefaultDedupSize = 4096

// Dedup remembers recently stored ids so repeated appends and lookups skip
// the backend.
type Dedup struct {
	Store
	seen *lru.Cache[string, struct{}]
}

func NewDedup(inner Store, size int) (*Dedup, error) {
	if inner == nil {
		return nil, ErrNilStore
	}
	if size <= 0 {
		size = DefaultDedupSize
	}
	cache, err := lru.New[string, struct{}](size)
	if err != nil {
		return nil, err
	}
	return &Dedup{Store: inner, seen: cache}, nil
}

func (d *Dedup) Append(ctx context.Context, rec Record) error {
	if d == nil {
		return ErrNilStore
	}
	id := rec.ID()
	if id != "" && d.seen.Contains(id) {
		return ErrDuplicate
	}
	err := d.Store.Append(ctx, rec)
	if err == nil || errors.Is(err, ErrDuplicate) {
		d.seen.Add(id, struct{}{})
	}
	return err
}

func (d *Dedup) Has(ctx context.Context, id string) (bool, error) {
	if d == nil {
		return false, ErrNilStore
	}
	id = NormalizeID(id)
	if d.seen.Contains(id) {
		return true, nil
	}
	ok, err := d.Store.Has(ctx, id)
	if ok {
		d.seen.Add(id, struct{}{})
	}
	return ok, err
}
