package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/sawpanic/allostat/internal/domain"
	"github.com/sawpanic/allostat/internal/persistence"
)

const entryColumns = `id, entry_date, captured_at, sleep_recovery, physical_load,
		       recovery_from_load, psychological_stress, energy_level, note`

// entryRepo implements EntryRepo for PostgreSQL
type entryRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewEntryRepo creates a new PostgreSQL entry repository
func NewEntryRepo(db *sqlx.DB, timeout time.Duration) persistence.EntryRepo {
	return &entryRepo{
		db:      db,
		timeout: timeout,
	}
}

// List returns every entry ordered by date then capture time
func (r *entryRepo) List(ctx context.Context) ([]domain.Entry, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT ` + entryColumns + `
		FROM entries
		ORDER BY entry_date ASC, captured_at ASC`

	var entries []domain.Entry
	if err := r.db.SelectContext(ctx, &entries, query); err != nil {
		return nil, fmt.Errorf("failed to list entries: %w", err)
	}
	if entries == nil {
		entries = []domain.Entry{}
	}
	return entries, nil
}

// Get returns a single entry
func (r *entryRepo) Get(ctx context.Context, id string) (*domain.Entry, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT ` + entryColumns + `
		FROM entries
		WHERE id = $1`

	var entry domain.Entry
	if err := r.db.GetContext(ctx, &entry, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("entry %s: %w", id, domain.ErrEntryNotFound)
		}
		return nil, fmt.Errorf("failed to get entry %s: %w", id, err)
	}
	return &entry, nil
}

// Upsert inserts or replaces an entry by ID
func (r *entryRepo) Upsert(ctx context.Context, entry domain.Entry) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		INSERT INTO entries
		(id, entry_date, captured_at, sleep_recovery, physical_load,
		 recovery_from_load, psychological_stress, energy_level, note)
		VALUES (:id, :entry_date, :captured_at, :sleep_recovery, :physical_load,
		        :recovery_from_load, :psychological_stress, :energy_level, :note)
		ON CONFLICT (id) DO UPDATE SET
			entry_date = EXCLUDED.entry_date,
			captured_at = EXCLUDED.captured_at,
			sleep_recovery = EXCLUDED.sleep_recovery,
			physical_load = EXCLUDED.physical_load,
			recovery_from_load = EXCLUDED.recovery_from_load,
			psychological_stress = EXCLUDED.psychological_stress,
			energy_level = EXCLUDED.energy_level,
			note = EXCLUDED.note`

	if _, err := r.db.NamedExecContext(ctx, query, entry); err != nil {
		return fmt.Errorf("failed to upsert entry %s: %w", entry.ID, err)
	}
	return nil
}

// Delete removes an entry
func (r *entryRepo) Delete(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `DELETE FROM entries WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete entry %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read delete result for %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("entry %s: %w", id, domain.ErrEntryNotFound)
	}
	return nil
}
