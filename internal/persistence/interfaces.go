package persistence

import (
	"context"
	"time"

	"github.com/sawpanic/allostat/internal/domain"
)

// TimeRange is an inclusive window over entry dates
type TimeRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// Contains reports whether t falls inside the range. Zero bounds are open.
func (tr TimeRange) Contains(t time.Time) bool {
	if !tr.From.IsZero() && t.Before(tr.From) {
		return false
	}
	if !tr.To.IsZero() && t.After(tr.To) {
		return false
	}
	return true
}

// EntryRepo stores the daily observations the engine reads
type EntryRepo interface {
	// List returns every entry ordered by date then capture time
	List(ctx context.Context) ([]domain.Entry, error)

	// Get returns domain.ErrEntryNotFound when id is unknown
	Get(ctx context.Context, id string) (*domain.Entry, error)

	// Upsert inserts or replaces the entry with the same ID
	Upsert(ctx context.Context, entry domain.Entry) error

	// Delete returns domain.ErrEntryNotFound when id is unknown
	Delete(ctx context.Context, id string) error
}

// ScoreRepo stores the sALI audit trail, one score per entry
type ScoreRepo interface {
	// Get returns nil, nil when the entry has no score
	Get(ctx context.Context, entryID string) (*domain.ScoreEntry, error)

	// Latest returns the score with the greatest entry date, or nil, nil
	Latest(ctx context.Context) (*domain.ScoreEntry, error)

	// Append stores a newly computed score, replacing any score for the same entry
	Append(ctx context.Context, score domain.ScoreEntry) error

	// Delete removes the score for an entry; a missing score is not an error
	Delete(ctx context.Context, entryID string) error

	// List returns scores within the range ordered by entry date
	List(ctx context.Context, tr TimeRange) ([]domain.ScoreEntry, error)

	// ReplaceAll swaps the entire trail atomically, used by backfill
	ReplaceAll(ctx context.Context, scores []domain.ScoreEntry) error
}

// ConflictRepo stores the current conflict set, which is regenerated wholesale
type ConflictRepo interface {
	Replace(ctx context.Context, patterns []domain.ConflictPattern) error
	List(ctx context.Context) ([]domain.ConflictPattern, error)
}

// WeightRepo keeps computed weight states by window hash
type WeightRepo interface {
	// Save is idempotent per window hash
	Save(ctx context.Context, state domain.WeightState) error

	// Latest returns the most recently saved state, or nil, nil
	Latest(ctx context.Context) (*domain.WeightState, error)
}

// Repository aggregates all persistence interfaces
type Repository struct {
	Entries   EntryRepo
	Scores    ScoreRepo
	Conflicts ConflictRepo
	Weights   WeightRepo
}

// HealthCheck represents repository health status
type HealthCheck struct {
	Healthy        bool           `json:"healthy"`
	Errors         []string       `json:"errors,omitempty"`
	ConnectionPool map[string]int `json:"connection_pool"`
	LastCheck      time.Time      `json:"last_check"`
	ResponseTimeMS int64          `json:"response_time_ms"`
}

// RepositoryHealth provides health monitoring for persistence layer
type RepositoryHealth interface {
	Health(ctx context.Context) HealthCheck
	Ping(ctx context.Context) error
}
