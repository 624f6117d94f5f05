package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/drewgoldman117/UTR-rating-forecast/internal/app"
	"github.com/drewgoldman117/UTR-rating-forecast/internal/config"
	"github.com/drewgoldman117/UTR-rating-forecast/internal/util"
)

func main() {
	var (
		userID = flag.Int64("user-id", 0, "forecast one player instead of all")
		model  = flag.String("model", "", "model override: persistence, drift, linear, gbrt")
		store  = flag.Bool("store", false, "save forecasts to Postgres")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *model != "" {
		cfg.Forecast.Model = *model
		if err := cfg.Validate(); err != nil {
			fmt.Fprintf(os.Stderr, "Invalid -model: %v\n", err)
			os.Exit(1)
		}
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

	players, err := container.Players.ListPlayers(ctx)
	if err != nil {
		logger.Fatal("Failed to list players", zap.Error(err))
	}
	if *userID > 0 {
		filtered := players[:0]
		for _, p := range players {
			if p.ID == *userID {
				filtered = append(filtered, p)
			}
		}
		players = filtered
		if len(players) == 0 {
			logger.Fatal("Player not in store", zap.Int64("player_id", *userID))
		}
	}
	if len(players) == 0 {
		logger.Fatal("No players in store, run cmd/scrape with -db first")
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")

	forecasted, failed := 0, 0
	for _, player := range players {
		history, err := container.Players.LoadHistory(ctx, player.ID)
		if err != nil {
			logger.Error("Failed to load history", zap.Int64("player_id", player.ID), zap.Error(err))
			failed++
			continue
		}

		fc, err := container.Forecaster.Forecast(history)
		if err != nil {
			logger.Error("Forecast failed", zap.Int64("player_id", player.ID), zap.Error(err))
			failed++
			continue
		}
		forecasted++

		if target := fc.Target(); target != nil {
			logger.Info("Player forecast",
				zap.Int64("player_id", player.ID),
				zap.String("model", fc.Model.String()),
				zap.String("trend", string(fc.Trend)),
				zap.Float64("current", history.Latest().Rating),
				zap.Float64("predicted", target.Rating),
			)
		}

		if *store {
			if err := container.Forecasts.SaveForecast(ctx, fc); err != nil {
				logger.Error("Failed to save forecast", zap.Int64("player_id", player.ID), zap.Error(err))
			}
			continue
		}

		if err := encoder.Encode(fc); err != nil {
			logger.Fatal("Failed to encode forecast", zap.Error(err))
		}
	}

	logger.Info("Forecast run finished",
		zap.Int("forecasted", forecasted),
		zap.Int("failed", failed),
		zap.Bool("stored", *store),
		zap.Int("horizon_months", cfg.Forecast.HorizonMonths),
		zap.String("model", cfg.Forecast.Model),
	)
}
