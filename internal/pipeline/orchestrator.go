// Package pipeline sequences weights, scoring and conflict detection for entry
// mutations and full-history backfills.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/allostat/internal/conflict"
	"github.com/sawpanic/allostat/internal/domain"
	"github.com/sawpanic/allostat/internal/score"
	"github.com/sawpanic/allostat/internal/weights"
)

const DefaultWeightWindow = 28

// Config controls window selection
type Config struct {
	WeightWindow int `yaml:"weight_window"` // Default: 28 entries up to and including the target
}

// DefaultConfig returns the stock orchestrator configuration
func DefaultConfig() Config {
	return Config{WeightWindow: DefaultWeightWindow}
}

// Validate checks the window against the minimum-data gate
func (c Config) Validate(minEntries int) error {
	if c.WeightWindow < minEntries {
		return fmt.Errorf("weight_window %d is smaller than min_entries %d", c.WeightWindow, minEntries)
	}
	return nil
}

// MutationKind identifies the change that triggered orchestration
type MutationKind string

const (
	MutationAdd    MutationKind = "add"
	MutationUpdate MutationKind = "update"
	MutationDelete MutationKind = "delete"
)

// Mutation describes one validated change to the entry history.
// For deletes EntryID names the removed entry and is informational.
type Mutation struct {
	Kind    MutationKind `json:"kind"`
	EntryID string       `json:"entryId"`
}

// Result is the derived state produced for one mutation
type Result struct {
	Status    Status                   `json:"status"`
	Progress  Progress                 `json:"progress"`
	Weights   *domain.WeightState      `json:"weights,omitempty"`
	Score     *domain.ScoreEntry       `json:"score,omitempty"`
	Conflicts []domain.ConflictPattern `json:"conflicts"`
	CacheHit  bool                     `json:"cacheHit"`
}

// BackfillResult is the full derived state for a history
type BackfillResult struct {
	Status    Status                   `json:"status"`
	Progress  Progress                 `json:"progress"`
	Scores    []domain.ScoreEntry      `json:"scores"`
	Weights   *domain.WeightState      `json:"weights,omitempty"`
	Conflicts []domain.ConflictPattern `json:"conflicts"`
}

// Option customizes an Orchestrator
type Option func(*Orchestrator)

// WithCache replaces the default single-slot weight cache
func WithCache(cache WeightCache) Option {
	return func(o *Orchestrator) { o.cache = cache }
}

// WithRecorder attaches a metrics recorder
func WithRecorder(recorder Recorder) Option {
	return func(o *Orchestrator) { o.recorder = recorder }
}

// Orchestrator owns the WeightState cache and produces ScoreEntry and
// ConflictPattern values from ordered entry histories
type Orchestrator struct {
	config   Config
	weights  *weights.Engine
	scorer   *score.Engine
	detector *conflict.Detector
	cache    WeightCache
	recorder Recorder

	// serializes calls so a cache read and its refresh belong to one invocation
	mu chan struct{}
}

// NewOrchestrator wires the engines together
func NewOrchestrator(config Config, weightEngine *weights.Engine, scoreEngine *score.Engine, detector *conflict.Detector, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		config:   config,
		weights:  weightEngine,
		scorer:   scoreEngine,
		detector: detector,
		cache:    NewSlotCache(),
		recorder: noopRecorder{},
		mu:       make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// MinEntries is the minimum-data gate
func (o *Orchestrator) MinEntries() int {
	return o.weights.Config().MinEntries
}

// Status reports gate progress for a history of the given size
func (o *Orchestrator) Status(entryCount int) Progress {
	return CalculationStatus(entryCount, o.MinEntries())
}

func (o *Orchestrator) lock(ctx context.Context) error {
	select {
	case o.mu <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (o *Orchestrator) unlock() {
	<-o.mu
}

// Apply recomputes derived state after a mutation. history is the complete,
// date-ordered history after the mutation; prev is the most recent ScoreEntry
// before the affected entry, or nil.
func (o *Orchestrator) Apply(ctx context.Context, history []domain.Entry, m Mutation, prev *domain.ScoreEntry) (*Result, error) {
	if !domain.IsOrdered(history) {
		return nil, domain.ErrUnorderedHistory
	}
	if err := o.lock(ctx); err != nil {
		return nil, err
	}
	defer o.unlock()

	progress := o.Status(len(history))
	if !progress.CanCalculate {
		o.recorder.InsufficientData()
		log.Debug().
			Str("mutation", string(m.Kind)).
			Int("entries", len(history)).
			Int("needed", progress.EntriesNeeded).
			Msg("Skipping recompute below minimum data")
		return &Result{
			Status:    StatusInsufficientData,
			Progress:  progress,
			Conflicts: []domain.ConflictPattern{},
		}, nil
	}

	result := &Result{Status: StatusRefreshed, Progress: progress}

	switch m.Kind {
	case MutationAdd, MutationUpdate:
		idx := domain.IndexOf(history, m.EntryID)
		if idx < 0 {
			return nil, fmt.Errorf("%s %s: %w", m.Kind, m.EntryID, domain.ErrEntryNotFound)
		}
		if idx+1 < o.MinEntries() {
			// entry sits before the gate index: refresh weights for the tail, score nothing
			ws, hit, err := o.weightsFor(ctx, o.window(history, len(history)-1), o.detector.Detect(history))
			if err != nil {
				return nil, err
			}
			result.Weights, result.CacheHit = ws, hit
			break
		}

		s, ws, hit, err := o.step(ctx, history, idx, prev)
		if err != nil {
			return nil, err
		}
		result.Status = StatusScored
		result.Score, result.Weights, result.CacheHit = s, ws, hit

	case MutationDelete:
		ws, hit, err := o.weightsFor(ctx, o.window(history, len(history)-1), o.detector.Detect(history))
		if err != nil {
			return nil, err
		}
		result.Weights, result.CacheHit = ws, hit

	default:
		return nil, fmt.Errorf("unknown mutation kind %q", m.Kind)
	}

	result.Conflicts = o.detect(history)

	log.Debug().
		Str("mutation", string(m.Kind)).
		Str("entry_id", m.EntryID).
		Str("status", string(result.Status)).
		Bool("cache_hit", result.CacheHit).
		Int("conflicts", len(result.Conflicts)).
		Msg("Pipeline applied")

	return result, nil
}

// Backfill walks the history forward from the gate index, recomputing window
// weights and chained scores at every step. The series equals what Apply
// produces when entries are added one at a time.
func (o *Orchestrator) Backfill(ctx context.Context, history []domain.Entry) (*BackfillResult, error) {
	if !domain.IsOrdered(history) {
		return nil, domain.ErrUnorderedHistory
	}
	if err := o.lock(ctx); err != nil {
		return nil, err
	}
	defer o.unlock()

	start := time.Now()
	progress := o.Status(len(history))
	if !progress.CanCalculate {
		o.recorder.InsufficientData()
		return &BackfillResult{
			Status:    StatusInsufficientData,
			Progress:  progress,
			Scores:    []domain.ScoreEntry{},
			Conflicts: []domain.ConflictPattern{},
		}, nil
	}

	first := o.MinEntries() - 1
	scores := make([]domain.ScoreEntry, 0, len(history)-first)
	var (
		prev *domain.ScoreEntry
		ws   *domain.WeightState
	)
	for i := first; i < len(history); i++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("backfill interrupted at entry %d: %w", i, err)
		}

		s, w, _, err := o.step(ctx, history[:i+1], i, prev)
		if err != nil {
			return nil, err
		}
		scores = append(scores, *s)
		prev, ws = s, w
	}

	conflicts := o.detect(history)
	o.recorder.ObserveStage(StageBackfill, time.Since(start))

	log.Info().
		Int("entries", len(history)).
		Int("scored", len(scores)).
		Int("conflicts", len(conflicts)).
		Dur("elapsed", time.Since(start)).
		Msg("Backfill complete")

	return &BackfillResult{
		Status:    StatusScored,
		Progress:  progress,
		Scores:    scores,
		Weights:   ws,
		Conflicts: conflicts,
	}, nil
}

// Conflicts regenerates the full conflict set for a history
func (o *Orchestrator) Conflicts(history []domain.Entry) ([]domain.ConflictPattern, error) {
	if !domain.IsOrdered(history) {
		return nil, domain.ErrUnorderedHistory
	}
	return o.detect(history), nil
}

// step scores history[idx] using the window ending at idx and the conflicts
// active over the whole history up to idx
func (o *Orchestrator) step(ctx context.Context, history []domain.Entry, idx int, prev *domain.ScoreEntry) (*domain.ScoreEntry, *domain.WeightState, bool, error) {
	active := o.detector.Detect(history[:idx+1])
	ws, hit, err := o.weightsFor(ctx, o.window(history, idx), active)
	if err != nil {
		return nil, nil, false, err
	}

	start := time.Now()
	s, err := o.scorer.Score(history[idx], ws, prev)
	if err != nil {
		return nil, nil, false, err
	}
	o.recorder.ObserveStage(StageScore, time.Since(start))
	o.recorder.ScoreComputed(s)

	return s, ws, hit, nil
}

// window returns up to WeightWindow entries ending at idx
func (o *Orchestrator) window(history []domain.Entry, idx int) []domain.Entry {
	lo := idx + 1 - o.config.WeightWindow
	if lo < 0 {
		lo = 0
	}
	return history[lo : idx+1]
}

func (o *Orchestrator) weightsFor(ctx context.Context, window []domain.Entry, active []domain.ConflictPattern) (*domain.WeightState, bool, error) {
	hash := o.weights.Fingerprint(window, active)

	cached, ok, err := o.cache.Get(ctx, hash)
	if err != nil {
		log.Warn().Err(err).Str("hash", hash).Msg("Weight cache read failed, recomputing")
	}
	if ok {
		o.recorder.CacheLookup(true)
		log.Debug().Str("hash", hash).Msg("Weight cache hit")
		return cached, true, nil
	}
	o.recorder.CacheLookup(false)

	start := time.Now()
	ws, err := o.weights.Compute(window, active)
	if err != nil {
		return nil, false, fmt.Errorf("computing weights for window ending %s: %w",
			window[len(window)-1].Date.Format("2006-01-02"), err)
	}
	o.recorder.ObserveStage(StageWeights, time.Since(start))

	if err := o.cache.Put(ctx, ws); err != nil {
		log.Warn().Err(err).Str("hash", hash).Msg("Weight cache write failed")
	}
	log.Debug().Str("hash", hash).Int("window", len(window)).Msg("Weights recomputed")
	return ws, false, nil
}

func (o *Orchestrator) detect(history []domain.Entry) []domain.ConflictPattern {
	start := time.Now()
	patterns := o.detector.Detect(history)
	o.recorder.ObserveStage(StageConflicts, time.Since(start))
	o.recorder.ConflictsDetected(patterns)
	return patterns
}
