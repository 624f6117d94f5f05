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

type PlayerRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewPlayerRepository(postgres *PostgresService, logger *zap.Logger) *PlayerRepository {
	return &PlayerRepository{
		db:     postgres.GetDB(),
		logger: logger,
	}
}

// UpsertPlayer inserts or refreshes a player row. A non-empty name always
// wins over whatever is stored, the scrape is the source of truth.
func (r *PlayerRepository) UpsertPlayer(ctx context.Context, player *domain.Player) error {
	query := `
		INSERT INTO players (id, name, first_seen, last_seen)
		VALUES ($1, $2, now(), now())
		ON CONFLICT (id) DO UPDATE SET
			name = CASE WHEN EXCLUDED.name <> '' THEN EXCLUDED.name ELSE players.name END,
			last_seen = now()
	`

	if _, err := r.db.ExecContext(ctx, query, player.ID, player.Name); err != nil {
		return apperrors.NewStoreError(fmt.Sprintf("failed to upsert player %d", player.ID), "upsert", "players", err)
	}
	return nil
}

// FindPlayer retrieves a player by UTR user id, (nil, nil) when unknown.
func (r *PlayerRepository) FindPlayer(ctx context.Context, playerID int64) (*domain.Player, error) {
	query := `
		SELECT id, name, first_seen, last_seen
		FROM players
		WHERE id = $1
		LIMIT 1
	`

	var player domain.Player
	err := r.db.QueryRowContext(ctx, query, playerID).Scan(
		&player.ID, &player.Name, &player.FirstSeen, &player.LastSeen,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.NewStoreError("failed to query player", "select", "players", err)
	}

	return &player, nil
}

func (r *PlayerRepository) ListPlayers(ctx context.Context) ([]*domain.Player, error) {
	query := `
		SELECT id, name, first_seen, last_seen
		FROM players
		ORDER BY name, id
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, apperrors.NewStoreError("failed to list players", "select", "players", err)
	}
	defer rows.Close()

	players := make([]*domain.Player, 0)
	for rows.Next() {
		var player domain.Player
		if err := rows.Scan(&player.ID, &player.Name, &player.FirstSeen, &player.LastSeen); err != nil {
			return nil, fmt.Errorf("failed to scan player: %w", err)
		}
		players = append(players, &player)
	}

	return players, rows.Err()
}

// InsertObservations stores new rating observations, silently skipping
// duplicates. Returns the number of rows actually inserted.
func (r *PlayerRepository) InsertObservations(ctx context.Context, observations []domain.RatingObservation) (int, error) {
	if len(observations) == 0 {
		return 0, nil
	}

	query := `
		INSERT INTO rating_observations (player_id, observed_on, rating)
		VALUES ($1, $2, $3)
		ON CONFLICT (player_id, observed_on, rating) DO NOTHING
	`

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for _, obs := range observations {
		result, err := stmt.ExecContext(ctx, obs.PlayerID, obs.ObservedOn, obs.Rating)
		if err != nil {
			return 0, fmt.Errorf("failed to insert observation: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("failed to read rows affected: %w", err)
		}
		inserted += int(affected)
	}

	if err := tx.Commit(); err != nil {
		return 0, apperrors.NewStoreError("failed to commit observations", "insert", "rating_observations", err)
	}

	r.logger.Debug("Observations stored",
		zap.Int("received", len(observations)),
		zap.Int("inserted", inserted),
	)

	return inserted, nil
}

// LoadHistory returns all stored observations for a player, oldest first.
func (r *PlayerRepository) LoadHistory(ctx context.Context, playerID int64) (*domain.RatingHistory, error) {
	player, err := r.FindPlayer(ctx, playerID)
	if err != nil {
		return nil, err
	}
	if player == nil {
		return nil, nil
	}

	query := `
		SELECT player_id, observed_on, rating
		FROM rating_observations
		WHERE player_id = $1
		ORDER BY observed_on ASC, rating ASC
	`

	rows, err := r.db.QueryContext(ctx, query, playerID)
	if err != nil {
		return nil, apperrors.NewStoreError("failed to query observations", "select", "rating_observations", err)
	}
	defer rows.Close()

	history := &domain.RatingHistory{
		PlayerID:   player.ID,
		PlayerName: player.Name,
	}

	for rows.Next() {
		var obs domain.RatingObservation
		var observedOn time.Time
		if err := rows.Scan(&obs.PlayerID, &observedOn, &obs.Rating); err != nil {
			return nil, fmt.Errorf("failed to scan observation: %w", err)
		}
		obs.ObservedOn = observedOn.UTC()
		history.Observations = append(history.Observations, obs)
	}

	return history, rows.Err()
}
