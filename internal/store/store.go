// Package store persists labeled repositories into four streams:
// accepted training samples and the uncertain, unknown and rejected
// repositories kept for later review.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"framelabel/internal/labeling"
	"framelabel/internal/scoring"
	"framelabel/internal/types"
)

var (
	ErrDuplicate = errors.New("store: repository already stored")
	ErrNotFound  = errors.New("store: record not found")
	ErrNilStore  = errors.New("store is nil")
)

type Category string

const (
	CategoryAccepted  Category = "accepted"
	CategoryUncertain Category = "uncertain"
	CategoryUnknown   Category = "unknown"
	CategoryRejected  Category = "rejected"
)

// Categories lists every stream in a stable order.
var Categories = []Category{CategoryAccepted, CategoryUncertain, CategoryUnknown, CategoryRejected}

func (c Category) Valid() bool {
	switch c {
	case CategoryAccepted, CategoryUncertain, CategoryUnknown, CategoryRejected:
		return true
	}
	return false
}

// CategoryFor picks the stream of a labeled repository. Included samples are
// accepted; the rest are routed by their sentinel label.
func CategoryFor(l labeling.Labeled, included bool) Category {
	switch {
	case included:
		return CategoryAccepted
	case l.Label == labeling.LabelUncertain:
		return CategoryUncertain
	case l.Label == labeling.LabelUnknown:
		return CategoryUnknown
	}
	return CategoryRejected
}

type EmbeddingMetadata struct {
	TokenCount int    `json:"token_count"`
	Framework  string `json:"framework"`
}

// ScoringContext keeps the full scoring details of a non-accepted record.
type ScoringContext struct {
	FrameworkScores     map[string]int   `json:"framework_scores"`
	CompetingFrameworks []scoring.Ranked `json:"competing_frameworks"`
	DominanceRatio      float64          `json:"dominance_ratio"`
	ScoreGap            int              `json:"score_gap"`
}

// NewScoringContext copies the figures out of scored; nil yields nil.
func NewScoringContext(scored *scoring.Scored) *ScoringContext {
	if scored == nil {
		return nil
	}
	scores := make(map[string]int, len(scored.Scores))
	for k, v := range scored.Scores {
		scores[k] = v
	}
	return &ScoringContext{
		FrameworkScores:     scores,
		CompetingFrameworks: append([]scoring.Ranked(nil), scored.Ranking...),
		DominanceRatio:      scored.DominanceRatio,
		ScoreGap:            scored.Gap,
	}
}

// Record is one stored line.
type Record struct {
	Category          Category           `json:"category"`
	Metadata          types.Metadata     `json:"metadata"`
	Label             string             `json:"label"`
	PrimaryFramework  string             `json:"primary_framework,omitempty"`
	ConfidenceLevel   int                `json:"confidence_level"`
	RejectionReason   string             `json:"rejection_reason,omitempty"`
	EmbeddingInput    string             `json:"embedding_input,omitempty"`
	EmbeddingMetadata *EmbeddingMetadata `json:"embedding_metadata,omitempty"`
	ScoringContext    *ScoringContext    `json:"scoring_context,omitempty"`
	Adjudicated       bool               `json:"llm_validated,omitempty"`
	Rationale         string             `json:"llm_rationale,omitempty"`
}

// ID is the repository identity used for deduplication.
func (r Record) ID() string { return NormalizeID(r.Metadata.RepositoryURL) }

// NormalizeID lower-cases and trims a repository URL.
func NormalizeID(url string) string {
	return strings.TrimSuffix(strings.ToLower(strings.TrimSpace(url)), "/")
}

func (r Record) validate() error {
	if r.ID() == "" {
		return errors.New("store: record has no repository url")
	}
	if !r.Category.Valid() {
		return errors.New("store: record has invalid category " + string(r.Category))
	}
	return nil
}

// Stats counts records per stream.
type Stats struct {
	Accepted  int `json:"accepted"`
	Uncertain int `json:"uncertain"`
	Unknown   int `json:"unknown"`
	Rejected  int `json:"rejected"`
	Total     int `json:"total"`
}

func (s *Stats) Add(c Category, n int) {
	switch c {
	case CategoryAccepted:
		s.Accepted += n
	case CategoryUncertain:
		s.Uncertain += n
	case CategoryUnknown:
		s.Unknown += n
	case CategoryRejected:
		s.Rejected += n
	default:
		return
	}
	s.Total += n
}

func (s Stats) Count(c Category) int {
	switch c {
	case CategoryAccepted:
		return s.Accepted
	case CategoryUncertain:
		return s.Uncertain
	case CategoryUnknown:
		return s.Unknown
	case CategoryRejected:
		return s.Rejected
	}
	return 0
}

// Store defines operations for persisting labeled repositories. Append
// returns ErrDuplicate when the repository is already stored in any stream.
// Replace overwrites a stored record, moving it to rec.Category, and returns
// ErrNotFound when the repository was never stored.
type Store interface {
	Append(ctx context.Context, rec Record) error
	Has(ctx context.Context, id string) (bool, error)
	Get(ctx context.Context, id string) (Record, error)
	List(ctx context.Context, c Category) ([]Record, error)
	Replace(ctx context.Context, rec Record) error
	Stats(ctx context.Context) (Stats, error)
	Close() error
}

// ParseCategories resolves a category name. "all" selects the three review
// streams: uncertain, rejected and unknown.
func ParseCategories(name string) ([]Category, error) {
	switch c := Category(strings.ToLower(strings.TrimSpace(name))); {
	case c == "all" || c == "":
		return []Category{CategoryUncertain, CategoryRejected, CategoryUnknown}, nil
	case c.Valid():
		return []Category{c}, nil
	}
	return nil, fmt.Errorf("store: unknown category %q", name)
}
