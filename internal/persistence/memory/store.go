// Package memory provides in-process repositories for the CLI, tests and
// deployments without PostgreSQL.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/sawpanic/allostat/internal/domain"
	"github.com/sawpanic/allostat/internal/persistence"
)

// NewRepository returns a Repository backed entirely by memory
func NewRepository() *persistence.Repository {
	return &persistence.Repository{
		Entries:   NewEntryRepo(),
		Scores:    NewScoreRepo(),
		Conflicts: NewConflictRepo(),
		Weights:   NewWeightRepo(),
	}
}

// EntryRepo keeps entries keyed by ID
type EntryRepo struct {
	mu      sync.RWMutex
	entries map[string]domain.Entry
}

func NewEntryRepo() *EntryRepo {
	return &EntryRepo{entries: make(map[string]domain.Entry)}
}

func (r *EntryRepo) List(_ context.Context) ([]domain.Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.Entry, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e)
	}
	// ID breaks full ties so listing order never depends on map iteration
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Before(out[j]) {
			return true
		}
		if out[j].Before(out[i]) {
			return false
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *EntryRepo) Get(_ context.Context, id string) (*domain.Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[id]
	if !ok {
		return nil, fmt.Errorf("entry %s: %w", id, domain.ErrEntryNotFound)
	}
	return &e, nil
}

func (r *EntryRepo) Upsert(_ context.Context, entry domain.Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[entry.ID] = entry
	return nil
}

func (r *EntryRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[id]; !ok {
		return fmt.Errorf("entry %s: %w", id, domain.ErrEntryNotFound)
	}
	delete(r.entries, id)
	return nil
}

// ScoreRepo keeps one score per entry
type ScoreRepo struct {
	mu     sync.RWMutex
	scores map[string]domain.ScoreEntry
}

func NewScoreRepo() *ScoreRepo {
	return &ScoreRepo{scores: make(map[string]domain.ScoreEntry)}
}

func (r *ScoreRepo) Get(_ context.Context, entryID string) (*domain.ScoreEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.scores[entryID]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (r *ScoreRepo) Latest(ctx context.Context) (*domain.ScoreEntry, error) {
	all, err := r.List(ctx, persistence.TimeRange{})
	if err != nil || len(all) == 0 {
		return nil, err
	}
	latest := all[len(all)-1]
	return &latest, nil
}

func (r *ScoreRepo) Append(_ context.Context, score domain.ScoreEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scores[score.EntryID] = score
	return nil
}

func (r *ScoreRepo) Delete(_ context.Context, entryID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.scores, entryID)
	return nil
}

func (r *ScoreRepo) List(_ context.Context, tr persistence.TimeRange) ([]domain.ScoreEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.ScoreEntry, 0, len(r.scores))
	for _, s := range r.scores {
		if tr.Contains(s.Date) {
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].EntryID < out[j].EntryID
	})
	return out, nil
}

func (r *ScoreRepo) ReplaceAll(_ context.Context, scores []domain.ScoreEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.scores = make(map[string]domain.ScoreEntry, len(scores))
	for _, s := range scores {
		r.scores[s.EntryID] = s
	}
	return nil
}

// ConflictRepo holds the current conflict set
type ConflictRepo struct {
	mu       sync.RWMutex
	patterns []domain.ConflictPattern
}

func NewConflictRepo() *ConflictRepo {
	return &ConflictRepo{patterns: []domain.ConflictPattern{}}
}

func (r *ConflictRepo) Replace(_ context.Context, patterns []domain.ConflictPattern) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.patterns = append([]domain.ConflictPattern{}, patterns...)
	return nil
}

func (r *ConflictRepo) List(_ context.Context) ([]domain.ConflictPattern, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]domain.ConflictPattern{}, r.patterns...), nil
}

// WeightRepo keeps saved states and remembers the last one
type WeightRepo struct {
	mu     sync.RWMutex
	states map[string]domain.WeightState
	last   string
}

func NewWeightRepo() *WeightRepo {
	return &WeightRepo{states: make(map[string]domain.WeightState)}
}

func (r *WeightRepo) Save(_ context.Context, state domain.WeightState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states[state.Window.Hash] = state
	r.last = state.Window.Hash
	return nil
}

func (r *WeightRepo) Latest(_ context.Context) (*domain.WeightState, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	state, ok := r.states[r.last]
	if !ok {
		return nil, nil
	}
	return &state, nil
}
