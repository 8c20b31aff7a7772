package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/sawpanic/allostat/internal/domain"
	"github.com/sawpanic/allostat/internal/persistence"
	"github.com/sawpanic/allostat/internal/smoothing"
)

const scoreColumns = `entry_id, entry_date, raw_score, ema_short, ema_long,
		       components, weights_snapshot, trend, crossover`

// scoreRow is the storage shape of a ScoreEntry; maps are JSONB
type scoreRow struct {
	EntryID         string    `db:"entry_id"`
	Date            time.Time `db:"entry_date"`
	RawScore        float64   `db:"raw_score"`
	EMAShort        float64   `db:"ema_short"`
	EMALong         float64   `db:"ema_long"`
	Components      []byte    `db:"components"`
	WeightsSnapshot []byte    `db:"weights_snapshot"`
	Trend           string    `db:"trend"`
	Crossover       string    `db:"crossover"`
}

func newScoreRow(s domain.ScoreEntry) (scoreRow, error) {
	components, err := json.Marshal(s.Components)
	if err != nil {
		return scoreRow{}, fmt.Errorf("failed to marshal components: %w", err)
	}
	snapshot, err := json.Marshal(s.WeightsSnapshot)
	if err != nil {
		return scoreRow{}, fmt.Errorf("failed to marshal weights snapshot: %w", err)
	}
	return scoreRow{
		EntryID:         s.EntryID,
		Date:            s.Date,
		RawScore:        s.RawScore,
		EMAShort:        s.EMAShort,
		EMALong:         s.EMALong,
		Components:      components,
		WeightsSnapshot: snapshot,
		Trend:           string(s.Trend),
		Crossover:       string(s.Crossover),
	}, nil
}

func (row scoreRow) toDomain() (*domain.ScoreEntry, error) {
	s := &domain.ScoreEntry{
		EntryID:   row.EntryID,
		Date:      row.Date,
		RawScore:  row.RawScore,
		EMAShort:  row.EMAShort,
		EMALong:   row.EMALong,
		Trend:     smoothing.Trend(row.Trend),
		Crossover: smoothing.Crossover(row.Crossover),
	}
	if err := json.Unmarshal(row.Components, &s.Components); err != nil {
		return nil, fmt.Errorf("failed to unmarshal components for %s: %w", row.EntryID, err)
	}
	if err := json.Unmarshal(row.WeightsSnapshot, &s.WeightsSnapshot); err != nil {
		return nil, fmt.Errorf("failed to unmarshal weights snapshot for %s: %w", row.EntryID, err)
	}
	return s, nil
}

// scoreRepo implements ScoreRepo for PostgreSQL
type scoreRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewScoreRepo creates a new PostgreSQL score repository
func NewScoreRepo(db *sqlx.DB, timeout time.Duration) persistence.ScoreRepo {
	return &scoreRepo{
		db:      db,
		timeout: timeout,
	}
}

const insertScore = `
		INSERT INTO scores
		(entry_id, entry_date, raw_score, ema_short, ema_long,
		 components, weights_snapshot, trend, crossover)
		VALUES (:entry_id, :entry_date, :raw_score, :ema_short, :ema_long,
		        :components, :weights_snapshot, :trend, :crossover)
		ON CONFLICT (entry_id) DO UPDATE SET
			entry_date = EXCLUDED.entry_date,
			raw_score = EXCLUDED.raw_score,
			ema_short = EXCLUDED.ema_short,
			ema_long = EXCLUDED.ema_long,
			components = EXCLUDED.components,
			weights_snapshot = EXCLUDED.weights_snapshot,
			trend = EXCLUDED.trend,
			crossover = EXCLUDED.crossover`

// Get returns the score for an entry
func (r *scoreRepo) Get(ctx context.Context, entryID string) (*domain.ScoreEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT ` + scoreColumns + `
		FROM scores
		WHERE entry_id = $1`

	return r.getOne(ctx, query, entryID)
}

// Latest returns the most recent score by entry date
func (r *scoreRepo) Latest(ctx context.Context) (*domain.ScoreEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT ` + scoreColumns + `
		FROM scores
		ORDER BY entry_date DESC, created_at DESC, entry_id DESC
		LIMIT 1`

	return r.getOne(ctx, query)
}

func (r *scoreRepo) getOne(ctx context.Context, query string, args ...interface{}) (*domain.ScoreEntry, error) {
	var row scoreRow
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get score: %w", err)
	}
	return row.toDomain()
}

// Append stores a score
func (r *scoreRepo) Append(ctx context.Context, score domain.ScoreEntry) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	row, err := newScoreRow(score)
	if err != nil {
		return err
	}
	if _, err := r.db.NamedExecContext(ctx, insertScore, row); err != nil {
		return fmt.Errorf("failed to append score for %s: %w", score.EntryID, err)
	}
	return nil
}

// Delete removes the score for an entry
func (r *scoreRepo) Delete(ctx context.Context, entryID string) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if _, err := r.db.ExecContext(ctx, `DELETE FROM scores WHERE entry_id = $1`, entryID); err != nil {
		return fmt.Errorf("failed to delete score for %s: %w", entryID, err)
	}
	return nil
}

// List returns scores in the range ordered by entry date
func (r *scoreRepo) List(ctx context.Context, tr persistence.TimeRange) ([]domain.ScoreEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT ` + scoreColumns + `
		FROM scores
		WHERE ($1::date IS NULL OR entry_date >= $1)
		  AND ($2::date IS NULL OR entry_date <= $2)
		ORDER BY entry_date ASC, created_at ASC, entry_id ASC`

	var rows []scoreRow
	if err := r.db.SelectContext(ctx, &rows, query, nullTime(tr.From), nullTime(tr.To)); err != nil {
		return nil, fmt.Errorf("failed to list scores: %w", err)
	}

	scores := make([]domain.ScoreEntry, 0, len(rows))
	for _, row := range rows {
		s, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		scores = append(scores, *s)
	}
	return scores, nil
}

// ReplaceAll swaps the full score trail inside one transaction
func (r *scoreRepo) ReplaceAll(ctx context.Context, scores []domain.ScoreEntry) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM scores`); err != nil {
		return fmt.Errorf("failed to clear scores: %w", err)
	}
	for _, s := range scores {
		row, err := newScoreRow(s)
		if err != nil {
			return err
		}
		if _, err := tx.NamedExecContext(ctx, insertScore, row); err != nil {
			return fmt.Errorf("failed to insert score for %s: %w", s.EntryID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit score replacement: %w", err)
	}
	return nil
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}
