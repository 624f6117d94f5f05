package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	apperrors "github.com/drewgoldman117/UTR-rating-forecast/pkg/errors"
)

const (
	ScrapeRunRunning = "running"
	ScrapeRunOK      = "ok"
	ScrapeRunFailed  = "failed"
)

type ScrapeRun struct {
	ID         uuid.UUID
	PlayerID   int64
	StartedAt  time.Time
	FinishedAt *time.Time
	RowCount   int
	Status     string
	Error      string
}

type ScrapeRunRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewScrapeRunRepository(postgres *PostgresService, logger *zap.Logger) *ScrapeRunRepository {
	return &ScrapeRunRepository{
		db:     postgres.GetDB(),
		logger: logger,
	}
}

func (r *ScrapeRunRepository) Begin(ctx context.Context, playerID int64) (*ScrapeRun, error) {
	run := &ScrapeRun{
		ID:        uuid.New(),
		PlayerID:  playerID,
		StartedAt: time.Now().UTC(),
		Status:    ScrapeRunRunning,
	}

	query := `
		INSERT INTO scrape_runs (id, player_id, started_at, status)
		VALUES ($1, $2, $3, $4)
	`
	if _, err := r.db.ExecContext(ctx, query, run.ID, run.PlayerID, run.StartedAt, run.Status); err != nil {
		return nil, apperrors.NewStoreError("failed to record scrape run", "insert", "scrape_runs", err)
	}

	return run, nil
}

func (r *ScrapeRunRepository) Finish(ctx context.Context, run *ScrapeRun, rowCount int, runErr error) error {
	now := time.Now().UTC()
	run.FinishedAt = &now
	run.RowCount = rowCount
	if runErr != nil {
		run.Status = ScrapeRunFailed
		run.Error = runErr.Error()
	} else {
		run.Status = ScrapeRunOK
	}

	query := `
		UPDATE scrape_runs
		SET finished_at = $2, row_count = $3, status = $4, error = $5
		WHERE id = $1
	`
	if _, err := r.db.ExecContext(ctx, query, run.ID, run.FinishedAt, run.RowCount, run.Status, run.Error); err != nil {
		return apperrors.NewStoreError("failed to finish scrape run", "update", "scrape_runs", err)
	}

	r.logger.Debug("Scrape run recorded",
		zap.String("run_id", run.ID.String()),
		zap.Int64("player_id", run.PlayerID),
		zap.String("status", run.Status),
		zap.Int("rows", run.RowCount),
	)

	return nil
}
