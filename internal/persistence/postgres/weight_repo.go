package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/sawpanic/allostat/internal/domain"
	"github.com/sawpanic/allostat/internal/persistence"
)

// weightRepo implements WeightRepo for PostgreSQL
type weightRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewWeightRepo creates a new PostgreSQL weight-state repository
func NewWeightRepo(db *sqlx.DB, timeout time.Duration) persistence.WeightRepo {
	return &weightRepo{
		db:      db,
		timeout: timeout,
	}
}

type weightRow struct {
	Hash        string    `db:"window_hash"`
	WindowStart time.Time `db:"window_start"`
	WindowEnd   time.Time `db:"window_end"`
	EntryCount  int       `db:"entry_count"`
	Metrics     []byte    `db:"metrics"`
	Normalized  []byte    `db:"normalized_weights"`
}

// Save upserts a weight state keyed by window hash
func (r *weightRepo) Save(ctx context.Context, state domain.WeightState) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if err := validateNormalized(state.NormalizedWeights); err != nil {
		return fmt.Errorf("invalid weights: %w", err)
	}

	metricsJSON, err := json.Marshal(state.Metrics)
	if err != nil {
		return fmt.Errorf("failed to marshal metric weights: %w", err)
	}
	normalizedJSON, err := json.Marshal(state.NormalizedWeights)
	if err != nil {
		return fmt.Errorf("failed to marshal normalized weights: %w", err)
	}

	query := `
		INSERT INTO weight_states
		(window_hash, window_start, window_end, entry_count, metrics, normalized_weights)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (window_hash) DO UPDATE SET
			saved_at = NOW()`

	if _, err := r.db.ExecContext(ctx, query,
		state.Window.Hash, state.Window.Start, state.Window.End, state.Window.EntryCount,
		metricsJSON, normalizedJSON); err != nil {
		return fmt.Errorf("failed to save weight state: %w", err)
	}
	return nil
}

// Latest returns the most recently saved state
func (r *weightRepo) Latest(ctx context.Context) (*domain.WeightState, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT window_hash, window_start, window_end, entry_count, metrics, normalized_weights
		FROM weight_states
		ORDER BY saved_at DESC
		LIMIT 1`

	var row weightRow
	if err := r.db.GetContext(ctx, &row, query); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get latest weights: %w", err)
	}

	state := &domain.WeightState{
		Window: domain.DataWindow{
			Start:      row.WindowStart,
			End:        row.WindowEnd,
			EntryCount: row.EntryCount,
			Hash:       row.Hash,
		},
	}
	if err := json.Unmarshal(row.Metrics, &state.Metrics); err != nil {
		return nil, fmt.Errorf("failed to unmarshal metric weights: %w", err)
	}
	if err := json.Unmarshal(row.Normalized, &state.NormalizedWeights); err != nil {
		return nil, fmt.Errorf("failed to unmarshal normalized weights: %w", err)
	}
	return state, nil
}

// validateNormalized checks every metric is present and the weights sum to 1
func validateNormalized(weights map[domain.Metric]float64) error {
	if len(weights) != domain.MetricCount {
		return fmt.Errorf("expected %d weights, got %d", domain.MetricCount, len(weights))
	}

	var total float64
	for _, m := range domain.AllMetrics {
		w, ok := weights[m]
		if !ok {
			return fmt.Errorf("missing weight for %s", m)
		}
		total += w
	}
	if math.Abs(total-1.0) > 0.001 {
		return fmt.Errorf("weights must sum to 1.0, got %.3f", total)
	}
	return nil
}
