package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/drewgoldman117/UTR-rating-forecast/internal/domain"
	apperrors "github.com/drewgoldman117/UTR-rating-forecast/pkg/errors"
)

type ForecastRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewForecastRepository(postgres *PostgresService, logger *zap.Logger) *ForecastRepository {
	return &ForecastRepository{
		db:     postgres.GetDB(),
		logger: logger,
	}
}

// SaveForecast replaces any previous forecast for the same player and model.
func (r *ForecastRepository) SaveForecast(ctx context.Context, forecast *domain.Forecast) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM forecasts WHERE player_id = $1 AND model = $2`,
		forecast.PlayerID, forecast.Model.String(),
	); err != nil {
		return fmt.Errorf("failed to clear previous forecast: %w", err)
	}

	query := `
		INSERT INTO forecasts
			(player_id, model, generated_at, horizon_months, target_month, point, q10, q50, q90)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to prepare forecast insert: %w", err)
	}
	defer stmt.Close()

	for _, point := range forecast.Points {
		if _, err := stmt.ExecContext(ctx,
			forecast.PlayerID,
			forecast.Model.String(),
			forecast.GeneratedAt,
			forecast.HorizonMonths,
			point.Month,
			point.Rating,
			point.Q10,
			point.Q50,
			point.Q90,
		); err != nil {
			return fmt.Errorf("failed to insert forecast point: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return apperrors.NewStoreError("failed to commit forecast", "insert", "forecasts", err)
	}

	r.logger.Info("Forecast stored",
		zap.Int64("player_id", forecast.PlayerID),
		zap.String("model", forecast.Model.String()),
		zap.Int("points", len(forecast.Points)),
	)

	return nil
}

// LoadForecast returns the latest stored forecast for a player, preferring
// the requested model and falling back to whatever model ran last.
// (nil, nil) when the player has no forecast at all.
func (r *ForecastRepository) LoadForecast(ctx context.Context, playerID int64, model domain.ModelKind) (*domain.Forecast, error) {
	forecast, err := r.loadByModel(ctx, playerID, model)
	if err != nil || forecast != nil {
		return forecast, err
	}

	var latest string
	err = r.db.QueryRowContext(ctx,
		`SELECT model FROM forecasts WHERE player_id = $1 ORDER BY generated_at DESC LIMIT 1`,
		playerID,
	).Scan(&latest)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find latest forecast model: %w", err)
	}

	return r.loadByModel(ctx, playerID, domain.ModelKind(latest))
}

func (r *ForecastRepository) loadByModel(ctx context.Context, playerID int64, model domain.ModelKind) (*domain.Forecast, error) {
	query := `
		SELECT f.model, f.generated_at, f.horizon_months, f.target_month,
		       f.point, f.q10, f.q50, f.q90, p.name
		FROM forecasts f
		JOIN players p ON p.id = f.player_id
		WHERE f.player_id = $1 AND f.model = $2
		ORDER BY f.target_month ASC
	`

	rows, err := r.db.QueryContext(ctx, query, playerID, model.String())
	if err != nil {
		return nil, apperrors.NewStoreError("failed to query forecast", "select", "forecasts", err)
	}
	defer rows.Close()

	var forecast *domain.Forecast
	for rows.Next() {
		var (
			modelName   string
			generatedAt time.Time
			horizon     int
			targetMonth time.Time
			playerName  string
			point       domain.ForecastPoint
		)
		if err := rows.Scan(
			&modelName, &generatedAt, &horizon, &targetMonth,
			&point.Rating, &point.Q10, &point.Q50, &point.Q90, &playerName,
		); err != nil {
			return nil, fmt.Errorf("failed to scan forecast point: %w", err)
		}
		point.Month = targetMonth.UTC()

		if forecast == nil {
			forecast = &domain.Forecast{
				PlayerID:      playerID,
				PlayerName:    playerName,
				Model:         domain.ModelKind(modelName),
				GeneratedAt:   generatedAt,
				HorizonMonths: horizon,
			}
		}
		forecast.Points = append(forecast.Points, point)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if forecast != nil && len(forecast.Points) > 0 {
		first := forecast.Points[0]
		last := forecast.Points[len(forecast.Points)-1]
		forecast.Trend = domain.TrendOf(first.Rating, last.Rating)
	}

	return forecast, nil
}
