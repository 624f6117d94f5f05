package main

import (
	"bufio"
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/drewgoldman117/UTR-rating-forecast/internal/app"
	"github.com/drewgoldman117/UTR-rating-forecast/internal/config"
	"github.com/drewgoldman117/UTR-rating-forecast/internal/domain"
	"github.com/drewgoldman117/UTR-rating-forecast/internal/scrape"
	"github.com/drewgoldman117/UTR-rating-forecast/internal/util"
)

func main() {
	var (
		userID      = flag.Int64("user-id", 0, "UTR profile id to scrape")
		rosterPath  = flag.String("roster", "", "file with one profile id per line")
		outPath     = flag.String("out", "utr_history.csv", "output CSV path")
		htmlPath    = flag.String("html", "", "parse a saved profile page instead of scraping")
		headed      = flag.Bool("headed", false, "run the browser with a visible window")
		useStorage  = flag.Bool("use-storage", false, "reuse the saved sign-in session")
		saveStorage = flag.Bool("save-storage", false, "persist the sign-in session after scraping")
		toDB        = flag.Bool("db", false, "persist players and observations to Postgres")
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

	if *htmlPath != "" {
		if *userID == 0 {
			logger.Fatal("-html requires -user-id to label the rows")
		}
		history, err := parseSavedPage(*htmlPath, *userID, logger)
		if err != nil {
			logger.Fatal("Failed to parse saved page", zap.String("path", *htmlPath), zap.Error(err))
		}
		if err := writeHistoryCSV(*outPath, []*domain.RatingHistory{history}); err != nil {
			logger.Fatal("Failed to write CSV", zap.Error(err))
		}
		logger.Info("Saved page parsed",
			zap.Int64("player_id", *userID),
			zap.Int("rows", history.Len()),
			zap.String("out", *outPath),
		)
		return
	}

	playerIDs, err := resolvePlayerIDs(*userID, *rosterPath)
	if err != nil {
		logger.Fatal("Failed to resolve player ids", zap.Error(err))
	}

	storageState := ""
	if *useStorage {
		storageState = cfg.Scraper.StorageState
	}
	saveStorageTo := ""
	if *saveStorage {
		saveStorageTo = cfg.Scraper.StorageState
	}

	browser := scrape.NewBrowser(scrape.BrowserOptions{
		Headless:       cfg.Scraper.Headless && !*headed,
		BaseURL:        cfg.Scraper.ProfileBaseURL,
		NavTimeout:     cfg.Scraper.NavTimeout,
		StorageState:   storageState,
		SaveStorageTo:  saveStorageTo,
		DiagnosticsDir: cfg.Scraper.DiagnosticsDir,
	}, scrape.Credentials{
		Email:    cfg.UTR.Email,
		Password: cfg.UTR.Password,
	}, logger)

	service := scrape.NewService(browser, nil, scrape.Options{
		CacheTTL:        cfg.Scraper.CacheTTL,
		RequestsPerMin:  cfg.Scraper.RequestsPerMin,
		Concurrency:     cfg.Scraper.Concurrency,
		FailureLimit:    cfg.Scraper.FailureLimit,
		BreakerCooldown: cfg.Scraper.BreakerCooldown,
	}, logger)

	var container *app.Container
	if *toDB {
		buildCtx, buildCancel := context.WithTimeout(ctx, 30*time.Second)
		container, err = app.Build(buildCtx, cfg, logger, app.Options{NeedDatabase: true, NeedCache: true})
		buildCancel()
		if err != nil {
			logger.Fatal("Failed to assemble services", zap.Error(err))
		}
		defer container.Close()
	}

	results := service.FetchRoster(ctx, playerIDs)

	histories := make([]*domain.RatingHistory, 0, len(results))
	failed := 0
	for _, result := range results {
		if result.Err != nil {
			logger.Error("Scrape failed",
				zap.Int64("player_id", result.PlayerID),
				zap.Error(result.Err),
			)
			failed++
			continue
		}
		histories = append(histories, result.History)

		if container != nil {
			if err := persistHistory(ctx, container, result.History); err != nil {
				logger.Error("Persist failed",
					zap.Int64("player_id", result.PlayerID),
					zap.Error(err),
				)
			}
		}
	}

	if len(histories) == 0 {
		logger.Fatal("All scrapes failed", zap.Int("requested", len(playerIDs)))
	}

	if err := writeHistoryCSV(*outPath, histories); err != nil {
		logger.Fatal("Failed to write CSV", zap.Error(err))
	}

	logger.Info("Scrape completed",
		zap.Int("players", len(histories)),
		zap.Int("failed", failed),
		zap.String("out", *outPath),
	)
}

func parseSavedPage(path string, playerID int64, logger *zap.Logger) (*domain.RatingHistory, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	html := string(raw)

	rows, parseErrors, err := scrape.ParseHistory(html)
	if err != nil {
		return nil, err
	}
	if parseErrors > len(rows) {
		logger.Warn("Most history items failed to parse",
			zap.String("path", path),
			zap.Int("parse_errors", parseErrors),
			zap.Int("rows", len(rows)),
		)
	}

	observations, dropped := scrape.ToObservations(playerID, rows)
	if len(observations) == 0 {
		return nil, fmt.Errorf("no parseable rows (%d dropped)", dropped)
	}

	history := &domain.RatingHistory{
		PlayerID:     playerID,
		PlayerName:   scrape.PlayerNameFromTitle(scrape.TitleFromHTML(html)),
		Observations: observations,
	}
	history.Sort()
	return history, nil
}

func resolvePlayerIDs(userID int64, rosterPath string) ([]int64, error) {
	if userID > 0 && rosterPath != "" {
		return nil, fmt.Errorf("-user-id and -roster are mutually exclusive")
	}
	if userID > 0 {
		return []int64{userID}, nil
	}
	if rosterPath == "" {
		return nil, fmt.Errorf("one of -user-id or -roster is required")
	}

	f, err := os.Open(rosterPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var ids []int64
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		id, err := strconv.ParseInt(line, 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid profile id %q in %s", line, rosterPath)
		}
		ids = append(ids, id)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("roster file %s is empty", rosterPath)
	}
	return util.Unique(ids), nil
}

// persistHistory records the scrape run alongside the data so partial
// failures stay visible in scrape_runs.
func persistHistory(ctx context.Context, container *app.Container, history *domain.RatingHistory) error {
	run, err := container.ScrapeRuns.Begin(ctx, history.PlayerID)
	if err != nil {
		return err
	}

	persistErr := func() error {
		player := &domain.Player{ID: history.PlayerID, Name: history.PlayerName}
		if err := container.Players.UpsertPlayer(ctx, player); err != nil {
			return err
		}
		inserted, err := container.Players.InsertObservations(ctx, history.Observations)
		if err != nil {
			return err
		}
		container.Logger.Info("Player persisted",
			zap.Int64("player_id", history.PlayerID),
			zap.Int("inserted", inserted),
			zap.Int("total", history.Len()),
		)
		return nil
	}()

	if err := container.ScrapeRuns.Finish(ctx, run, history.Len(), persistErr); err != nil {
		container.Logger.Warn("Failed to close scrape run", zap.Error(err))
	}

	// Cached histories are stale the moment new observations land
	if persistErr == nil && container.Cache != nil {
		if err := container.Cache.InvalidateHistory(ctx, history.PlayerID); err != nil {
			container.Logger.Warn("Failed to invalidate cached history", zap.Error(err))
		}
	}

	return persistErr
}

func writeHistoryCSV(path string, histories []*domain.RatingHistory) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"user_id", "player_name", "date", "UTR"}); err != nil {
		return err
	}

	for _, history := range histories {
		for _, obs := range history.Observations {
			record := []string{
				strconv.FormatInt(history.PlayerID, 10),
				history.PlayerName,
				obs.ObservedOn.Format("2006-01-02"),
				strconv.FormatFloat(obs.Rating, 'f', 2, 64),
			}
			if err := w.Write(record); err != nil {
				return err
			}
		}
	}

	w.Flush()
	return w.Error()
}
