package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/drewgoldman117/UTR-rating-forecast/internal/app"
	"github.com/drewgoldman117/UTR-rating-forecast/internal/backtest"
	"github.com/drewgoldman117/UTR-rating-forecast/internal/config"
	"github.com/drewgoldman117/UTR-rating-forecast/internal/dataset"
	"github.com/drewgoldman117/UTR-rating-forecast/internal/domain"
	"github.com/drewgoldman117/UTR-rating-forecast/internal/forecast"
	"github.com/drewgoldman117/UTR-rating-forecast/internal/util"
)

func main() {
	var (
		inPath   = flag.String("in", "", "dataset CSV to evaluate, empty rebuilds from Postgres")
		outPath  = flag.String("out", "", "write the metric table to a file instead of stdout")
		stride   = flag.Int("stride", 3, "months between evaluation cutoffs")
		minTrain = flag.Int("min-train", 30, "minimum training rows per cutoff")
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

	rows, err := loadRows(ctx, cfg, logger, *inPath)
	if err != nil {
		logger.Fatal("Failed to load dataset", zap.Error(err))
	}

	runner := backtest.NewRunner(backtest.Config{
		HorizonMonths: cfg.Forecast.HorizonMonths,
		StrideMonths:  *stride,
		MinTrainRows:  *minTrain,
		GBRT: forecast.GBRTConfig{
			Trees:        cfg.Forecast.Trees,
			MaxDepth:     cfg.Forecast.MaxDepth,
			LearningRate: cfg.Forecast.LearningRate,
			MinLeaf:      cfg.Forecast.MinLeaf,
			Subsample:    cfg.Forecast.Subsample,
		},
	}, logger)

	report, err := runner.Run(rows)
	if err != nil {
		logger.Fatal("Backtest failed", zap.Error(err))
	}

	out := os.Stdout
	if *outPath != "" {
		f, err := os.Create(*outPath)
		if err != nil {
			logger.Fatal("Failed to create output file", zap.Error(err))
		}
		defer f.Close()
		out = f
	}

	if err := backtest.WriteCSV(out, report); err != nil {
		logger.Fatal("Failed to write report", zap.Error(err))
	}

	logger.Info("Quantile band quality",
		zap.Float64("pinball_q10", report.PinballQ10),
		zap.Float64("pinball_q50", report.PinballQ50),
		zap.Float64("pinball_q90", report.PinballQ90),
		zap.Float64("coverage_80", report.Coverage80),
		zap.Int("band_evaluations", report.BandEvaluations),
	)
}

func loadRows(ctx context.Context, cfg *config.Config, logger *zap.Logger, inPath string) ([]domain.FeatureRow, error) {
	if inPath != "" {
		f, err := os.Open(inPath)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return dataset.ReadCSV(f)
	}

	buildCtx, buildCancel := context.WithTimeout(ctx, 30*time.Second)
	container, err := app.Build(buildCtx, cfg, logger, app.Options{NeedDatabase: true})
	buildCancel()
	if err != nil {
		return nil, err
	}
	defer container.Close()

	players, err := container.Players.ListPlayers(ctx)
	if err != nil {
		return nil, err
	}

	var rows []domain.FeatureRow
	for _, player := range players {
		history, err := container.Players.LoadHistory(ctx, player.ID)
		if err != nil {
			logger.Error("Failed to load history", zap.Int64("player_id", player.ID), zap.Error(err))
			continue
		}
		rows = append(rows, container.Builder.BuildRows(history)...)
	}
	return rows, nil
}
