package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/sawpanic/allostat/internal/domain"
	"github.com/sawpanic/allostat/internal/persistence"
)

type conflictRow struct {
	ID              string    `db:"id"`
	Type            string    `db:"conflict_type"`
	Pattern         string    `db:"pattern"`
	Severity        string    `db:"severity"`
	AffectedMetrics []byte    `db:"affected_metrics"`
	DetectedAt      time.Time `db:"detected_at"`
	DurationDays    int       `db:"duration_days"`
	Description     string    `db:"description"`
}

// conflictRepo implements ConflictRepo for PostgreSQL
type conflictRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewConflictRepo creates a new PostgreSQL conflict repository
func NewConflictRepo(db *sqlx.DB, timeout time.Duration) persistence.ConflictRepo {
	return &conflictRepo{
		db:      db,
		timeout: timeout,
	}
}

// Replace clears the stored set and writes patterns in detection order
func (r *conflictRepo) Replace(ctx context.Context, patterns []domain.ConflictPattern) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM conflicts`); err != nil {
		return fmt.Errorf("failed to clear conflicts: %w", err)
	}

	query := `
		INSERT INTO conflicts
		(id, position, conflict_type, pattern, severity, affected_metrics,
		 detected_at, duration_days, description)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	for i, p := range patterns {
		affected, err := json.Marshal(p.AffectedMetrics)
		if err != nil {
			return fmt.Errorf("failed to marshal affected metrics: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query,
			p.ID, i, string(p.Type), string(p.Pattern), string(p.Severity), affected,
			p.DetectedAt, p.DurationDays, p.Description); err != nil {
			return fmt.Errorf("failed to insert conflict %s: %w", p.Pattern, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit conflicts: %w", err)
	}
	return nil
}

// List returns the stored set in detection order
func (r *conflictRepo) List(ctx context.Context) ([]domain.ConflictPattern, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT id, conflict_type, pattern, severity, affected_metrics,
		       detected_at, duration_days, description
		FROM conflicts
		ORDER BY position ASC`

	var rows []conflictRow
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to list conflicts: %w", err)
	}

	patterns := make([]domain.ConflictPattern, 0, len(rows))
	for _, row := range rows {
		p := domain.ConflictPattern{
			ID:           row.ID,
			Type:         domain.ConflictType(row.Type),
			Pattern:      domain.PatternName(row.Pattern),
			Severity:     domain.Severity(row.Severity),
			DetectedAt:   row.DetectedAt,
			DurationDays: row.DurationDays,
			Description:  row.Description,
		}
		if err := json.Unmarshal(row.AffectedMetrics, &p.AffectedMetrics); err != nil {
			return nil, fmt.Errorf("failed to unmarshal affected metrics for %s: %w", row.ID, err)
		}
		patterns = append(patterns, p)
	}
	return patterns, nil
}
