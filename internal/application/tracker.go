// Package application runs validated entry mutations through persistence and
// the scoring pipeline, and serves the read side of the stored results.
package application

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/sawpanic/allostat/internal/domain"
	"github.com/sawpanic/allostat/internal/explain"
	"github.com/sawpanic/allostat/internal/persistence"
	"github.com/sawpanic/allostat/internal/pipeline"
)

var (
	ErrEntryExists   = errors.New("entry already exists")
	ErrScoreNotFound = errors.New("score not found")
	ErrNoPriorScore  = errors.New("no earlier score to compare against")
)

// Outcome is what a caller sees after a mutation
type Outcome struct {
	Entry     *domain.Entry            `json:"entry,omitempty"`
	Status    pipeline.Status          `json:"status"`
	Progress  pipeline.Progress        `json:"progress"`
	Score     *domain.ScoreEntry       `json:"score,omitempty"`
	Weights   *domain.WeightState      `json:"weights,omitempty"`
	Conflicts []domain.ConflictPattern `json:"conflicts"`
	Rescored  int                      `json:"rescored"` // scores rewritten by a history replay
}

// StatusReport summarizes stored state
type StatusReport struct {
	Progress    pipeline.Progress  `json:"progress"`
	Entries     int                `json:"entries"`
	MinEntries  int                `json:"minEntries"`
	LatestScore *domain.ScoreEntry `json:"latestScore,omitempty"`
	Conflicts   int                `json:"conflicts"`
	Breakers    map[string]string  `json:"breakers"`
}

// Option customizes a Tracker
type Option func(*Tracker)

// WithBreakers replaces the default breaker settings and observer
func WithBreakers(config BreakerConfig, observer BreakerObserver) Option {
	return func(t *Tracker) { t.breakers = newBreakerSet(config, observer) }
}

// WithClock injects the clock used to stamp capture times
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// WithIDs injects the entry ID generator
func WithIDs(next func() string) Option {
	return func(t *Tracker) { t.newID = next }
}

// Tracker is the application service in front of the pipeline
type Tracker struct {
	repos        *persistence.Repository
	orchestrator *pipeline.Orchestrator
	validator    *domain.Validator
	breakers     *breakerSet
	now          func() time.Time
	newID        func() string

	// one mutation at a time: list, recompute and persist form a unit
	mu sync.Mutex
}

// NewTracker wires repositories, the orchestrator and the validator
func NewTracker(repos *persistence.Repository, orchestrator *pipeline.Orchestrator, validator *domain.Validator, opts ...Option) *Tracker {
	t := &Tracker{
		repos:        repos,
		orchestrator: orchestrator,
		validator:    validator,
		breakers:     newBreakerSet(DefaultBreakerConfig(), nil),
		now:          time.Now,
		newID:        uuid.NewString,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Validate checks a candidate without persisting it
func (t *Tracker) Validate(candidate domain.Entry) domain.ValidationResult {
	return t.validator.ValidateEntry(t.normalize(candidate))
}

func (t *Tracker) normalize(e domain.Entry) domain.Entry {
	if !e.Date.IsZero() {
		e.Date = domain.DateOnly(e.Date)
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = t.now().UTC()
	}
	return e
}

// AddEntry validates and stores a new entry, then recomputes derived state
func (t *Tracker) AddEntry(ctx context.Context, candidate domain.Entry) (*Outcome, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry := t.normalize(candidate)
	if entry.ID == "" {
		entry.ID = t.newID()
	}
	if err := t.validator.ValidateEntry(entry).Err(); err != nil {
		return nil, err
	}

	_, err := t.getEntry(ctx, entry.ID)
	switch {
	case err == nil:
		return nil, fmt.Errorf("%s: %w", entry.ID, ErrEntryExists)
	case !errors.Is(err, domain.ErrEntryNotFound):
		return nil, err
	}

	if err := guardErr(t.breakers, BreakerEntries, func() error {
		return t.repos.Entries.Upsert(ctx, entry)
	}); err != nil {
		return nil, fmt.Errorf("failed to store entry: %w", err)
	}

	log.Info().Str("entry_id", entry.ID).Time("date", entry.Date).Msg("Entry added")
	return t.recompute(ctx, pipeline.Mutation{Kind: pipeline.MutationAdd, EntryID: entry.ID}, &entry, false)
}

// UpdateEntry replaces an existing entry's values, then recomputes derived state
func (t *Tracker) UpdateEntry(ctx context.Context, id string, candidate domain.Entry) (*Outcome, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	existing, err := t.getEntry(ctx, id)
	if err != nil {
		return nil, err
	}

	if candidate.Timestamp.IsZero() {
		candidate.Timestamp = existing.Timestamp
	}
	entry := t.normalize(candidate)
	entry.ID = id
	moved := !entry.Date.Equal(existing.Date) || !entry.Timestamp.Equal(existing.Timestamp)
	if err := t.validator.ValidateEntry(entry).Err(); err != nil {
		return nil, err
	}

	if err := guardErr(t.breakers, BreakerEntries, func() error {
		return t.repos.Entries.Upsert(ctx, entry)
	}); err != nil {
		return nil, fmt.Errorf("failed to store entry: %w", err)
	}

	log.Info().Str("entry_id", id).Time("date", entry.Date).Msg("Entry updated")
	return t.recompute(ctx, pipeline.Mutation{Kind: pipeline.MutationUpdate, EntryID: id}, &entry, moved)
}

// DeleteEntry removes an entry, then replays the history. The replay replaces
// the whole score trail, which drops the deleted entry's score.
func (t *Tracker) DeleteEntry(ctx context.Context, id string) (*Outcome, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := guardErr(t.breakers, BreakerEntries, func() error {
		return t.repos.Entries.Delete(ctx, id)
	}); err != nil {
		return nil, err
	}

	log.Info().Str("entry_id", id).Msg("Entry deleted")
	return t.recompute(ctx, pipeline.Mutation{Kind: pipeline.MutationDelete, EntryID: id}, nil, true)
}

// recompute scores the mutated entry incrementally when it is the newest one
// and kept its place. Anything else changes the EMA chain for later entries,
// so the history is replayed.
func (t *Tracker) recompute(ctx context.Context, m pipeline.Mutation, entry *domain.Entry, moved bool) (*Outcome, error) {
	history, err := t.history(ctx)
	if err != nil {
		return nil, err
	}

	idx := domain.IndexOf(history, m.EntryID)
	if !moved && idx >= 0 && idx == len(history)-1 {
		return t.applyLatest(ctx, history, m, entry)
	}
	return t.replay(ctx, history, m, entry)
}

func (t *Tracker) applyLatest(ctx context.Context, history []domain.Entry, m pipeline.Mutation, entry *domain.Entry) (*Outcome, error) {
	idx := len(history) - 1

	var prev *domain.ScoreEntry
	if idx > 0 {
		p, err := guard(t.breakers, BreakerScores, func() (*domain.ScoreEntry, error) {
			return t.repos.Scores.Get(ctx, history[idx-1].ID)
		})
		if err != nil {
			return nil, fmt.Errorf("failed to load previous score: %w", err)
		}
		prev = p
	}

	result, err := t.orchestrator.Apply(ctx, history, m, prev)
	if err != nil {
		return nil, err
	}

	if result.Score != nil {
		if err := guardErr(t.breakers, BreakerScores, func() error {
			return t.repos.Scores.Append(ctx, *result.Score)
		}); err != nil {
			return nil, fmt.Errorf("failed to store score: %w", err)
		}
	}
	if err := t.persistDerived(ctx, result.Weights, result.Conflicts); err != nil {
		return nil, err
	}

	rescored := 0
	if result.Score != nil {
		rescored = 1
	}
	return &Outcome{
		Entry:     entry,
		Status:    result.Status,
		Progress:  result.Progress,
		Score:     result.Score,
		Weights:   result.Weights,
		Conflicts: result.Conflicts,
		Rescored:  rescored,
	}, nil
}

func (t *Tracker) replay(ctx context.Context, history []domain.Entry, m pipeline.Mutation, entry *domain.Entry) (*Outcome, error) {
	result, err := t.backfill(ctx, history)
	if err != nil {
		return nil, err
	}

	outcome := &Outcome{
		Entry:     entry,
		Status:    result.Status,
		Progress:  result.Progress,
		Weights:   result.Weights,
		Conflicts: result.Conflicts,
		Rescored:  len(result.Scores),
	}
	if result.Status == pipeline.StatusInsufficientData {
		return outcome, nil
	}

	outcome.Status = pipeline.StatusRefreshed
	for i := range result.Scores {
		if result.Scores[i].EntryID == m.EntryID && m.Kind != pipeline.MutationDelete {
			outcome.Status = pipeline.StatusScored
			outcome.Score = &result.Scores[i]
		}
	}

	log.Info().
		Str("mutation", string(m.Kind)).
		Str("entry_id", m.EntryID).
		Int("rescored", outcome.Rescored).
		Msg("History replayed after out-of-order mutation")
	return outcome, nil
}

// Backfill recomputes and replaces every stored score
func (t *Tracker) Backfill(ctx context.Context) (*pipeline.BackfillResult, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	history, err := t.history(ctx)
	if err != nil {
		return nil, err
	}
	return t.backfill(ctx, history)
}

func (t *Tracker) backfill(ctx context.Context, history []domain.Entry) (*pipeline.BackfillResult, error) {
	result, err := t.orchestrator.Backfill(ctx, history)
	if err != nil {
		return nil, err
	}

	if err := guardErr(t.breakers, BreakerScores, func() error {
		return t.repos.Scores.ReplaceAll(ctx, result.Scores)
	}); err != nil {
		return nil, fmt.Errorf("failed to replace scores: %w", err)
	}
	if err := t.persistDerived(ctx, result.Weights, result.Conflicts); err != nil {
		return nil, err
	}
	return result, nil
}

func (t *Tracker) persistDerived(ctx context.Context, ws *domain.WeightState, conflicts []domain.ConflictPattern) error {
	if ws != nil {
		if err := guardErr(t.breakers, BreakerWeights, func() error {
			return t.repos.Weights.Save(ctx, *ws)
		}); err != nil {
			return fmt.Errorf("failed to store weights: %w", err)
		}
	}
	if err := guardErr(t.breakers, BreakerConflicts, func() error {
		return t.repos.Conflicts.Replace(ctx, conflicts)
	}); err != nil {
		return fmt.Errorf("failed to store conflicts: %w", err)
	}
	return nil
}

// Status reports gate progress and stored state
func (t *Tracker) Status(ctx context.Context) (*StatusReport, error) {
	history, err := t.history(ctx)
	if err != nil {
		return nil, err
	}
	latest, err := guard(t.breakers, BreakerScores, func() (*domain.ScoreEntry, error) {
		return t.repos.Scores.Latest(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load latest score: %w", err)
	}
	conflicts, err := t.Conflicts(ctx)
	if err != nil {
		return nil, err
	}

	return &StatusReport{
		Progress:    t.orchestrator.Status(len(history)),
		Entries:     len(history),
		MinEntries:  t.orchestrator.MinEntries(),
		LatestScore: latest,
		Conflicts:   len(conflicts),
		Breakers:    t.breakers.States(),
	}, nil
}

// Explain attributes the change between an entry's score and the score before it
func (t *Tracker) Explain(ctx context.Context, entryID string) (*explain.Attribution, error) {
	history, err := t.history(ctx)
	if err != nil {
		return nil, err
	}
	idx := domain.IndexOf(history, entryID)
	if idx < 0 {
		return nil, fmt.Errorf("%s: %w", entryID, domain.ErrEntryNotFound)
	}

	curr, err := t.score(ctx, entryID)
	if err != nil {
		return nil, err
	}
	if curr == nil {
		return nil, fmt.Errorf("%s: %w", entryID, ErrScoreNotFound)
	}
	if idx == 0 {
		return nil, fmt.Errorf("%s: %w", entryID, ErrNoPriorScore)
	}

	prev, err := t.score(ctx, history[idx-1].ID)
	if err != nil {
		return nil, err
	}
	if prev == nil {
		return nil, fmt.Errorf("%s: %w", entryID, ErrNoPriorScore)
	}
	return explain.Attribute(prev, curr)
}

// Entries returns the stored history
func (t *Tracker) Entries(ctx context.Context) ([]domain.Entry, error) {
	return t.history(ctx)
}

// Scores returns stored scores within the range
func (t *Tracker) Scores(ctx context.Context, tr persistence.TimeRange) ([]domain.ScoreEntry, error) {
	scores, err := guard(t.breakers, BreakerScores, func() ([]domain.ScoreEntry, error) {
		return t.repos.Scores.List(ctx, tr)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list scores: %w", err)
	}
	return scores, nil
}

// Summary describes the stored score trail as a whole
func (t *Tracker) Summary(ctx context.Context) (*explain.TrailSummary, error) {
	scores, err := t.Scores(ctx, persistence.TimeRange{})
	if err != nil {
		return nil, err
	}
	return explain.Summarize(scores)
}

// Weights returns the most recent weight state, or nil before the gate
func (t *Tracker) Weights(ctx context.Context) (*domain.WeightState, error) {
	history, err := t.history(ctx)
	if err != nil {
		return nil, err
	}
	if !t.orchestrator.Status(len(history)).CanCalculate {
		return nil, nil
	}

	ws, err := guard(t.breakers, BreakerWeights, func() (*domain.WeightState, error) {
		return t.repos.Weights.Latest(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load weights: %w", err)
	}
	return ws, nil
}

// Conflicts returns the active conflict set
func (t *Tracker) Conflicts(ctx context.Context) ([]domain.ConflictPattern, error) {
	patterns, err := guard(t.breakers, BreakerConflicts, func() ([]domain.ConflictPattern, error) {
		return t.repos.Conflicts.List(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list conflicts: %w", err)
	}
	return patterns, nil
}

func (t *Tracker) history(ctx context.Context) ([]domain.Entry, error) {
	history, err := guard(t.breakers, BreakerEntries, func() ([]domain.Entry, error) {
		return t.repos.Entries.List(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list entries: %w", err)
	}
	return history, nil
}

func (t *Tracker) getEntry(ctx context.Context, id string) (*domain.Entry, error) {
	return guard(t.breakers, BreakerEntries, func() (*domain.Entry, error) {
		return t.repos.Entries.Get(ctx, id)
	})
}

func (t *Tracker) score(ctx context.Context, entryID string) (*domain.ScoreEntry, error) {
	s, err := guard(t.breakers, BreakerScores, func() (*domain.ScoreEntry, error) {
		return t.repos.Scores.Get(ctx, entryID)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load score: %w", err)
	}
	return s, nil
}
