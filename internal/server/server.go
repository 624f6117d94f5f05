// Package server exposes stored histories and forecasts over a small
// read-only HTTP API.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/drewgoldman117/UTR-rating-forecast/internal/domain"
)

// PlayerStore is the read surface the API needs from the repositories.
type PlayerStore interface {
	ListPlayers(ctx context.Context) ([]*domain.Player, error)
	LoadHistory(ctx context.Context, playerID int64) (*domain.RatingHistory, error)
}

type ForecastStore interface {
	LoadForecast(ctx context.Context, playerID int64, model domain.ModelKind) (*domain.Forecast, error)
}

type Pinger interface {
	Ping(ctx context.Context) error
}

type Config struct {
	Port           int
	RateLimitRPS   float64
	RateLimitBurst int
	DefaultModel   domain.ModelKind
}

type Server struct {
	cfg       Config
	players   PlayerStore
	forecasts ForecastStore
	dbPing    Pinger
	cachePing Pinger // nil when the cache is not configured
	logger    *zap.Logger
	limiter   *ipLimiter
	http      *http.Server
}

func New(cfg Config, players PlayerStore, forecasts ForecastStore, dbPing, cachePing Pinger, logger *zap.Logger) *Server {
	if cfg.Port <= 0 {
		cfg.Port = 8080
	}
	if cfg.RateLimitRPS <= 0 {
		cfg.RateLimitRPS = 5
	}
	if cfg.RateLimitBurst <= 0 {
		cfg.RateLimitBurst = 10
	}
	if !cfg.DefaultModel.IsValid() {
		cfg.DefaultModel = domain.ModelGBRT
	}

	s := &Server{
		cfg:       cfg,
		players:   players,
		forecasts: forecasts,
		dbPing:    dbPing,
		cachePing: cachePing,
		logger:    logger,
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(cors.Default())

	// Health stays outside the rate limit so liveness probes never 429.
	engine.GET("/healthz", s.handleHealth)

	s.limiter = newIPLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)

	api := engine.Group("/api")
	api.Use(s.limiter.middleware())
	api.GET("/players", s.handleListPlayers)
	api.GET("/players/:id/history", s.handleHistory)
	api.GET("/players/:id/forecast", s.handleForecast)

	s.http = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s
}

// Start blocks serving HTTP until Shutdown or a listener error.
func (s *Server) Start() error {
	s.logger.Info("HTTP server listening", zap.Int("port", s.cfg.Port))
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.limiter.stop()
	return s.http.Shutdown(ctx)
}
