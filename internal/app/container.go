package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/drewgoldman117/UTR-rating-forecast/internal/cache"
	"github.com/drewgoldman117/UTR-rating-forecast/internal/config"
	"github.com/drewgoldman117/UTR-rating-forecast/internal/dataset"
	"github.com/drewgoldman117/UTR-rating-forecast/internal/domain"
	"github.com/drewgoldman117/UTR-rating-forecast/internal/forecast"
	"github.com/drewgoldman117/UTR-rating-forecast/internal/scrape"
	"github.com/drewgoldman117/UTR-rating-forecast/internal/store"
)

// Container bundles the assembled pipeline services. All heavy-weight
// initialization (DB, cache, browser wiring) happens in Build so the cmd
// binaries stay focused on their one job.
type Container struct {
	Config *config.Config
	Logger *zap.Logger

	Postgres   *store.PostgresService
	Cache      *cache.Service // nil when Redis is unreachable and optional
	Players    *store.PlayerRepository
	Forecasts  *store.ForecastRepository
	ScrapeRuns *store.ScrapeRunRepository

	Scraper    *scrape.Service
	Builder    *dataset.Builder
	Forecaster *forecast.Forecaster
}

// Options toggles which subsystems Build wires up. The CSV-only scrape path
// runs without Postgres, the server runs without a browser.
type Options struct {
	NeedDatabase bool
	NeedCache    bool
	NeedScraper  bool
}

func Build(ctx context.Context, cfg *config.Config, logger *zap.Logger, opts Options) (container *Container, err error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var closers []func()
	defer func() {
		if err != nil {
			for i := len(closers) - 1; i >= 0; i-- {
				closers[i]()
			}
		}
	}()

	c := &Container{
		Config: cfg,
		Logger: logger,
	}

	if opts.NeedDatabase {
		postgres, err := store.NewPostgresService(store.PostgresConfig{
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			Database: cfg.Postgres.Database,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create postgres service: %w", err)
		}
		closers = append(closers, func() {
			_ = postgres.Close()
		})

		if err := postgres.Migrate(ctx); err != nil {
			return nil, fmt.Errorf("failed to migrate schema: %w", err)
		}

		c.Postgres = postgres
		c.Players = store.NewPlayerRepository(postgres, logger)
		c.Forecasts = store.NewForecastRepository(postgres, logger)
		c.ScrapeRuns = store.NewScrapeRunRepository(postgres, logger)
	}

	if opts.NeedCache {
		cacheSvc, err := cache.NewService(cache.Config{
			Host:     cfg.Redis.Host,
			Port:     cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}, logger)
		if err != nil {
			// The cache is an accelerator, not a dependency
			logger.Warn("Redis unavailable, continuing without cache", zap.Error(err))
		} else {
			closers = append(closers, func() {
				_ = cacheSvc.Close()
			})
			c.Cache = cacheSvc
		}
	}

	if opts.NeedScraper {
		browser := scrape.NewBrowser(scrape.BrowserOptions{
			Headless:       cfg.Scraper.Headless,
			BaseURL:        cfg.Scraper.ProfileBaseURL,
			NavTimeout:     cfg.Scraper.NavTimeout,
			StorageState:   cfg.Scraper.StorageState,
			SaveStorageTo:  cfg.Scraper.StorageState,
			DiagnosticsDir: cfg.Scraper.DiagnosticsDir,
		}, scrape.Credentials{
			Email:    cfg.UTR.Email,
			Password: cfg.UTR.Password,
		}, logger)

		var historyCache scrape.HistoryCache
		if c.Cache != nil {
			historyCache = c.Cache
		}

		c.Scraper = scrape.NewService(browser, historyCache, scrape.Options{
			CacheTTL:        cfg.Scraper.CacheTTL,
			RequestsPerMin:  cfg.Scraper.RequestsPerMin,
			Concurrency:     cfg.Scraper.Concurrency,
			FailureLimit:    cfg.Scraper.FailureLimit,
			BreakerCooldown: cfg.Scraper.BreakerCooldown,
		}, logger)
	}

	c.Builder = dataset.NewBuilder(cfg.Forecast.HorizonMonths, cfg.Forecast.FillLimit)
	c.Forecaster = forecast.NewForecaster(forecast.Config{
		HorizonMonths: cfg.Forecast.HorizonMonths,
		Model:         c.modelKind(),
		GBRT:          c.gbrtConfig(),
	}, c.Builder, logger)

	return c, nil
}

// Close releases the container's connections, safe on partial containers.
func (c *Container) Close() {
	if c.Cache != nil {
		_ = c.Cache.Close()
	}
	if c.Postgres != nil {
		_ = c.Postgres.Close()
	}
}

func (c *Container) modelKind() domain.ModelKind {
	return domain.ModelKind(c.Config.Forecast.Model)
}

func (c *Container) gbrtConfig() forecast.GBRTConfig {
	return forecast.GBRTConfig{
		Trees:        c.Config.Forecast.Trees,
		MaxDepth:     c.Config.Forecast.MaxDepth,
		LearningRate: c.Config.Forecast.LearningRate,
		MinLeaf:      c.Config.Forecast.MinLeaf,
		Subsample:    c.Config.Forecast.Subsample,
	}
}
