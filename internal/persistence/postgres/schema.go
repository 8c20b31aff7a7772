package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// Schema creates the tables the repositories use. Every statement is idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS entries (
	id                   TEXT PRIMARY KEY,
	entry_date           DATE NOT NULL,
	captured_at          TIMESTAMPTZ NOT NULL,
	sleep_recovery       DOUBLE PRECISION NOT NULL CHECK (sleep_recovery BETWEEN 0 AND 10),
	physical_load        DOUBLE PRECISION NOT NULL CHECK (physical_load BETWEEN 0 AND 10),
	recovery_from_load   DOUBLE PRECISION NOT NULL CHECK (recovery_from_load BETWEEN 0 AND 10),
	psychological_stress DOUBLE PRECISION NOT NULL CHECK (psychological_stress BETWEEN 0 AND 10),
	energy_level         DOUBLE PRECISION NOT NULL CHECK (energy_level BETWEEN 0 AND 10),
	note                 TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS entries_date_idx ON entries (entry_date, captured_at);

CREATE TABLE IF NOT EXISTS scores (
	entry_id         TEXT PRIMARY KEY REFERENCES entries (id) ON DELETE CASCADE,
	entry_date       DATE NOT NULL,
	raw_score        DOUBLE PRECISION NOT NULL,
	ema_short        DOUBLE PRECISION NOT NULL,
	ema_long         DOUBLE PRECISION NOT NULL,
	components       JSONB NOT NULL,
	weights_snapshot JSONB NOT NULL,
	trend            TEXT NOT NULL,
	crossover        TEXT NOT NULL,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS scores_date_idx ON scores (entry_date);

CREATE TABLE IF NOT EXISTS conflicts (
	id               TEXT PRIMARY KEY,
	position         INTEGER NOT NULL,
	conflict_type    TEXT NOT NULL,
	pattern          TEXT NOT NULL,
	severity         TEXT NOT NULL,
	affected_metrics JSONB NOT NULL,
	detected_at      DATE NOT NULL,
	duration_days    INTEGER NOT NULL DEFAULT 0,
	description      TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS weight_states (
	window_hash        TEXT PRIMARY KEY,
	window_start       DATE NOT NULL,
	window_end         DATE NOT NULL,
	entry_count        INTEGER NOT NULL,
	metrics            JSONB NOT NULL,
	normalized_weights JSONB NOT NULL,
	saved_at           TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`

// Migrate applies Schema
func Migrate(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}
