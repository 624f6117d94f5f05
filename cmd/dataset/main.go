package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/drewgoldman117/UTR-rating-forecast/internal/app"
	"github.com/drewgoldman117/UTR-rating-forecast/internal/config"
	"github.com/drewgoldman117/UTR-rating-forecast/internal/dataset"
	"github.com/drewgoldman117/UTR-rating-forecast/internal/domain"
	"github.com/drewgoldman117/UTR-rating-forecast/internal/util"
)

func main() {
	var (
		userID  = flag.Int64("user-id", 0, "limit the export to one player")
		outPath = flag.String("out", "dataset.csv", "output CSV path")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := util.NewLogger(cfg.Logging.Level, cfg.Logging.File)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx := context.Background()

	buildCtx, buildCancel := context.WithTimeout(ctx, 30*time.Second)
	container, err := app.Build(buildCtx, cfg, logger, app.Options{NeedDatabase: true})
	buildCancel()
	if err != nil {
		logger.Fatal("Failed to assemble services", zap.Error(err))
	}
	defer container.Close()

	players, err := listPlayers(ctx, container, *userID)
	if err != nil {
		logger.Fatal("Failed to list players", zap.Error(err))
	}
	if len(players) == 0 {
		logger.Fatal("No players in store, run cmd/scrape with -db first")
	}

	var rows []domain.FeatureRow
	skipped := 0
	for _, player := range players {
		history, err := container.Players.LoadHistory(ctx, player.ID)
		if err != nil {
			logger.Error("Failed to load history", zap.Int64("player_id", player.ID), zap.Error(err))
			continue
		}
		playerRows := container.Builder.BuildRows(history)
		if len(playerRows) == 0 {
			skipped++
			continue
		}
		rows = append(rows, playerRows...)
	}

	if len(rows) == 0 {
		logger.Fatal("No player had enough history to featurize",
			zap.Int("players", len(players)),
		)
	}

	f, err := os.Create(*outPath)
	if err != nil {
		logger.Fatal("Failed to create output file", zap.Error(err))
	}
	defer f.Close()

	if err := dataset.WriteCSV(f, rows); err != nil {
		logger.Fatal("Failed to write dataset", zap.Error(err))
	}

	logger.Info("Dataset exported",
		zap.Int("players", len(players)-skipped),
		zap.Int("short_histories", skipped),
		zap.Int("rows", len(rows)),
		zap.String("out", *outPath),
	)
}

func listPlayers(ctx context.Context, container *app.Container, userID int64) ([]*domain.Player, error) {
	if userID > 0 {
		player, err := container.Players.FindPlayer(ctx, userID)
		if err != nil {
			return nil, err
		}
		if player == nil {
			return nil, fmt.Errorf("player %d not in store", userID)
		}
		return []*domain.Player{player}, nil
	}
	return container.Players.ListPlayers(ctx)
}
