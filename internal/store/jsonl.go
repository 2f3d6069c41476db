package store

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sync"

	"framelabel/internal/util/jsonutil"
)

const maxLineBytes = 16 << 20

// JSONLStore appends records to <dir>/<category>_samples.jsonl. Repository
// ids already present in any of the files are loaded at open time.
type JSONLStore struct {
	dir string

	mu     sync.Mutex
	seen   map[string]Category
	counts Stats
}

func FileName(c Category) string { return string(c) + "_samples.jsonl" }

func OpenJSONL(dir string) (*JSONLStore, error) {
	if dir == "" {
		return nil, errors.New("store: output dir is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("store: create output dir: %w", err)
	}
	s := &JSONLStore{dir: dir, seen: make(map[string]Category)}
	for _, c := range Categories {
		if err := s.load(c); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *JSONLStore) path(c Category) string { return filepath.Join(s.dir, FileName(c)) }

// load indexes one stream. Malformed lines are counted but carry no id.
func (s *JSONLStore) load(c Category) error {
	return s.scan(c, func(line []byte) bool {
		s.counts.Add(c, 1)
		id, err := lineID(line)
		if err != nil {
			log.Printf("store: %s: skipping malformed line: %v", FileName(c), err)
			return true
		}
		if id != "" {
			s.seen[id] = c
		}
		return true
	})
}

// lineID decodes only the repository url of a stored line.
func lineID(line []byte) (string, error) {
	var head struct {
		Metadata struct {
			RepositoryURL string `json:"repository_url"`
		} `json:"metadata"`
	}
	if err := json.Unmarshal(line, &head); err != nil {
		return "", err
	}
	return NormalizeID(head.Metadata.RepositoryURL), nil
}

// scan calls fn for every non-empty line until fn returns false. A missing
// file is empty.
func (s *JSONLStore) scan(c Category, fn func(line []byte) bool) error {
	f, err := os.Open(s.path(c))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("store: open %s: %w", FileName(c), err)
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64<<10), maxLineBytes)
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		if !fn(line) {
			return nil
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("store: read %s: %w", FileName(c), err)
	}
	return nil
}

func encodeLine(rec Record) ([]byte, error) {
	line, err := jsonutil.MarshalNoEscape(rec)
	if err != nil {
		return nil, fmt.Errorf("store: encode record: %w", err)
	}
	return append(bytes.TrimRight(line, "\n"), '\n'), nil
}

func (s *JSONLStore) Append(ctx context.Context, rec Record) error {
	if s == nil {
		return ErrNilStore
	}
	if err := rec.validate(); err != nil {
		return err
	}
	line, err := encodeLine(rec)
	if err != nil {
		return err
	}

	id := rec.ID()
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.seen[id]; dup {
		return ErrDuplicate
	}
	if err := s.appendLine(rec.Category, line); err != nil {
		return err
	}
	s.seen[id] = rec.Category
	s.counts.Add(rec.Category, 1)
	return nil
}

func (s *JSONLStore) appendLine(c Category, line []byte) error {
	f, err := os.OpenFile(s.path(c), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("store: open %s: %w", FileName(c), err)
	}
	if _, err := f.Write(line); err != nil {
		_ = f.Close()
		return fmt.Errorf("store: append %s: %w", FileName(c), err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("store: close %s: %w", FileName(c), err)
	}
	return nil
}

// Replace rewrites the stream holding rec. A record moving to another
// stream is appended there before it is dropped from the old one.
func (s *JSONLStore) Replace(ctx context.Context, rec Record) error {
	if s == nil {
		return ErrNilStore
	}
	if err := rec.validate(); err != nil {
		return err
	}
	line, err := encodeLine(rec)
	if err != nil {
		return err
	}

	id := rec.ID()
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.seen[id]
	if !ok {
		return ErrNotFound
	}
	if old == rec.Category {
		return s.rewrite(old, id, line)
	}
	if err := s.appendLine(rec.Category, line); err != nil {
		return err
	}
	s.seen[id] = rec.Category
	s.counts.Add(rec.Category, 1)
	if err := s.rewrite(old, id, nil); err != nil {
		return err
	}
	s.counts.Add(old, -1)
	return nil
}

// rewrite copies stream c through a temp file, swapping the line for id with
// replacement, or dropping it when replacement is nil.
func (s *JSONLStore) rewrite(c Category, id string, replacement []byte) error {
	tmp, err := os.CreateTemp(s.dir, FileName(c)+".*.tmp")
	if err != nil {
		return fmt.Errorf("store: rewrite %s: %w", FileName(c), err)
	}
	defer os.Remove(tmp.Name())

	w := bufio.NewWriter(tmp)
	var werr error
	err = s.scan(c, func(line []byte) bool {
		if lid, _ := lineID(line); lid == id {
			if replacement == nil {
				return true
			}
			line = bytes.TrimRight(replacement, "\n")
		}
		if _, werr = w.Write(line); werr == nil {
			werr = w.WriteByte('\n')
		}
		return werr == nil
	})
	if err == nil {
		err = werr
	}
	if err == nil {
		err = w.Flush()
	}
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("store: rewrite %s: %w", FileName(c), err)
	}
	if err := os.Rename(tmp.Name(), s.path(c)); err != nil {
		return fmt.Errorf("store: rewrite %s: %w", FileName(c), err)
	}
	return nil
}

func (s *JSONLStore) Has(ctx context.Context, id string) (bool, error) {
	if s == nil {
		return false, ErrNilStore
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.seen[NormalizeID(id)]
	return ok, nil
}

// Get rereads the stream that holds id.
func (s *JSONLStore) Get(ctx context.Context, id string) (Record, error) {
	if s == nil {
		return Record{}, ErrNilStore
	}
	id = NormalizeID(id)
	s.mu.Lock()
	c, ok := s.seen[id]
	s.mu.Unlock()
	if !ok {
		return Record{}, ErrNotFound
	}

	var (
		found Record
		hit   bool
	)
	err := s.scan(c, func(line []byte) bool {
		var rec Record
		if err := json.Unmarshal(line, &rec); err != nil {
			return true
		}
		if rec.ID() != id {
			return true
		}
		if rec.Category == "" {
			rec.Category = c
		}
		found, hit = rec, true
		return false
	})
	if err != nil {
		return Record{}, err
	}
	if !hit {
		return Record{}, ErrNotFound
	}
	return found, nil
}

// List decodes one stream in file order, skipping malformed lines.
func (s *JSONLStore) List(ctx context.Context, c Category) ([]Record, error) {
	if s == nil {
		return nil, ErrNilStore
	}
	if !c.Valid() {
		return nil, fmt.Errorf("store: invalid category %q", c)
	}
	var out []Record
	err := s.scan(c, func(line []byte) bool {
		var rec Record
		if err := json.Unmarshal(line, &rec); err != nil {
			return true
		}
		if rec.Category == "" {
			rec.Category = c
		}
		out = append(out, rec)
		return ctx.Err() == nil
	})
	if err == nil {
		err = ctx.Err()
	}
	return out, err
}

func (s *JSONLStore) Stats(ctx context.Context) (Stats, error) {
	if s == nil {
		return Stats{}, ErrNilStore
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts, nil
}

func (s *JSONLStore) Close() error { return nil }
