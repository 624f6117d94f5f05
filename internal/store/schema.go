package store

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS players (
		id          BIGINT PRIMARY KEY,
		name        TEXT NOT NULL DEFAULT '',
		first_seen  TIMESTAMPTZ NOT NULL DEFAULT now(),
		last_seen   TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS rating_observations (
		id          BIGSERIAL PRIMARY KEY,
		player_id   BIGINT NOT NULL REFERENCES players(id),
		observed_on DATE NOT NULL,
		rating      DOUBLE PRECISION NOT NULL,
		UNIQUE (player_id, observed_on, rating)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_observations_player_date
		ON rating_observations (player_id, observed_on)`,
	`CREATE TABLE IF NOT EXISTS forecasts (
		id             BIGSERIAL PRIMARY KEY,
		player_id      BIGINT NOT NULL REFERENCES players(id),
		model          TEXT NOT NULL,
		generated_at   TIMESTAMPTZ NOT NULL,
		horizon_months INT NOT NULL,
		target_month   DATE NOT NULL,
		point          DOUBLE PRECISION NOT NULL,
		q10            DOUBLE PRECISION NOT NULL,
		q50            DOUBLE PRECISION NOT NULL,
		q90            DOUBLE PRECISION NOT NULL,
		UNIQUE (player_id, model, target_month)
	)`,
	`CREATE TABLE IF NOT EXISTS scrape_runs (
		id          UUID PRIMARY KEY,
		player_id   BIGINT NOT NULL,
		started_at  TIMESTAMPTZ NOT NULL,
		finished_at TIMESTAMPTZ,
		row_count   INT NOT NULL DEFAULT 0,
		status      TEXT NOT NULL,
		error       TEXT NOT NULL DEFAULT ''
	)`,
}

// Migrate applies the schema. Statements are idempotent so this is safe to
// run on every startup, matching the one-shot tool workflow.
func (ps *PostgresService) Migrate(ctx context.Context) error {
	for i, stmt := range migrations {
		if _, err := ps.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d failed: %w", i, err)
		}
	}
	ps.logger.Info("Schema migrated", zap.Int("statements", len(migrations)))
	return nil
}
