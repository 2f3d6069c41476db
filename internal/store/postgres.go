package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

const schemaTimeout = 30 * time.Second

// PostgresStore keeps one row per repository in labeled_samples.
type PostgresStore struct {
	db         *sql.DB
	schemaOnce sync.Once
	schemaErr  error
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// OpenPostgres connects through the pgx stdlib driver and pings once.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, fmt.Errorf("database url is required")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return NewPostgresStore(db), nil
}

// ensureSchema runs the DDL once. It is detached from ctx so a cancelled
// first request cannot leave the store failing; a real DDL error still sticks.
func (s *PostgresStore) ensureSchema(ctx context.Context) error {
	if s == nil || s.db == nil {
		return ErrNilStore
	}
	s.schemaOnce.Do(func() {
		ddlCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), schemaTimeout)
		defer cancel()
		_, s.schemaErr = s.db.ExecContext(ddlCtx, `
CREATE TABLE IF NOT EXISTS labeled_samples (
    repository_id TEXT PRIMARY KEY,
    repository_url TEXT NOT NULL,
    category TEXT NOT NULL,
    label TEXT NOT NULL,
    primary_framework TEXT NOT NULL DEFAULT '',
    confidence_level INTEGER NOT NULL,
    record JSONB NOT NULL,
    created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_labeled_samples_category ON labeled_samples(category);
CREATE INDEX IF NOT EXISTS idx_labeled_samples_framework ON labeled_samples(primary_framework);
`)
	})
	return s.schemaErr
}

func (s *PostgresStore) Append(ctx context.Context, rec Record) error {
	if s == nil {
		return ErrNilStore
	}
	if err := rec.validate(); err != nil {
		return err
	}
	if err := s.ensureSchema(ctx); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	body, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("store: encode record: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `
INSERT INTO labeled_samples (
  repository_id, repository_url, category, label, primary_framework, confidence_level, record
)
VALUES ($1,$2,$3,$4,$5,$6,$7)
ON CONFLICT (repository_id) DO NOTHING`,
		rec.ID(), rec.Metadata.RepositoryURL, string(rec.Category), rec.Label, rec.PrimaryFramework, rec.ConfidenceLevel, body)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrDuplicate
	}
	return nil
}

func (s *PostgresStore) Has(ctx context.Context, id string) (bool, error) {
	if s == nil {
		return false, ErrNilStore
	}
	if err := s.ensureSchema(ctx); err != nil {
		return false, fmt.Errorf("ensure schema: %w", err)
	}
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM labeled_samples WHERE repository_id = $1`, NormalizeID(id)).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (Record, error) {
	if s == nil {
		return Record{}, ErrNilStore
	}
	if err := s.ensureSchema(ctx); err != nil {
		return Record{}, fmt.Errorf("ensure schema: %w", err)
	}
	var body []byte
	err := s.db.QueryRowContext(ctx, `SELECT record FROM labeled_samples WHERE repository_id = $1`, NormalizeID(id)).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, err
	}
	var rec Record
	if err := json.Unmarshal(body, &rec); err != nil {
		return Record{}, fmt.Errorf("store: decode record: %w", err)
	}
	return rec, nil
}

func (s *PostgresStore) List(ctx context.Context, c Category) ([]Record, error) {
	if s == nil {
		return nil, ErrNilStore
	}
	if err := s.ensureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, `SELECT record FROM labeled_samples WHERE category = $1 ORDER BY created_at, repository_id`, string(c))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Record
	for rows.Next() {
		var body []byte
		if err := rows.Scan(&body); err != nil {
			return nil, err
		}
		var rec Record
		if err := json.Unmarshal(body, &rec); err != nil {
			return nil, fmt.Errorf("store: decode record: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Replace(ctx context.Context, rec Record) error {
	if s == nil {
		return ErrNilStore
	}
	if err := rec.validate(); err != nil {
		return err
	}
	if err := s.ensureSchema(ctx); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	body, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("store: encode record: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `
UPDATE labeled_samples
SET category = $2, label = $3, primary_framework = $4, confidence_level = $5, record = $6
WHERE repository_id = $1`,
		rec.ID(), string(rec.Category), rec.Label, rec.PrimaryFramework, rec.ConfidenceLevel, body)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) Stats(ctx context.Context) (Stats, error) {
	if s == nil {
		return Stats{}, ErrNilStore
	}
	if err := s.ensureSchema(ctx); err != nil {
		return Stats{}, fmt.Errorf("ensure schema: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, `SELECT category, COUNT(*) FROM labeled_samples GROUP BY category`)
	if err != nil {
		return Stats{}, err
	}
	defer rows.Close()
	var st Stats
	for rows.Next() {
		var (
			c string
			n int
		)
		if err := rows.Scan(&c, &n); err != nil {
			return Stats{}, err
		}
		st.Add(Category(c), n)
	}
	return st, rows.Err()
}

func (s *PostgresStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
