package scrape

import (
	"context"
	"sync"
	"time"

	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/drewgoldman117/UTR-rating-forecast/internal/domain"
	"github.com/drewgoldman117/UTR-rating-forecast/internal/util"
	apperrors "github.com/drewgoldman117/UTR-rating-forecast/pkg/errors"
)

// ProfileFetcher abstracts the browser so the service can be tested with a
// canned fetcher.
type ProfileFetcher interface {
	FetchProfile(ctx context.Context, playerID int64) (*FetchResult, error)
}

// HistoryCache is the slice of the cache service the scraper needs.
type HistoryCache interface {
	GetHistory(ctx context.Context, playerID int64) (*domain.RatingHistory, error)
	SetHistory(ctx context.Context, history *domain.RatingHistory, ttl time.Duration) error
}

type Options struct {
	CacheTTL        time.Duration
	RequestsPerMin  int
	Concurrency     int
	FailureLimit    int
	BreakerCooldown time.Duration
}

type Service struct {
	fetcher     ProfileFetcher
	cache       HistoryCache // nil disables caching
	limiter     *rate.Limiter
	breaker     *util.CircuitBreaker
	logger      *zap.Logger
	cacheTTL    time.Duration
	concurrency int
}

func NewService(fetcher ProfileFetcher, historyCache HistoryCache, opts Options, logger *zap.Logger) *Service {
	if opts.RequestsPerMin <= 0 {
		opts.RequestsPerMin = 10
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 3
	}
	if opts.FailureLimit <= 0 {
		opts.FailureLimit = 5
	}
	if opts.BreakerCooldown <= 0 {
		opts.BreakerCooldown = 5 * time.Minute
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 30 * time.Minute
	}

	return &Service{
		fetcher:     fetcher,
		cache:       historyCache,
		limiter:     rate.NewLimiter(rate.Limit(float64(opts.RequestsPerMin)/60.0), 1),
		breaker:     util.NewCircuitBreaker(opts.FailureLimit, opts.BreakerCooldown, opts.BreakerCooldown, nil, logger),
		logger:      logger,
		cacheTTL:    opts.CacheTTL,
		concurrency: opts.Concurrency,
	}
}

// FetchRows visits the live profile and returns the player name plus the raw
// history rows. No caching, callers that want typed data use FetchHistory.
func (s *Service) FetchRows(ctx context.Context, playerID int64) (string, []HistoryRow, error) {
	if !s.breaker.CanExecute() {
		return "", nil, apperrors.NewScrapeError("rating site circuit is open", "breaker", playerID, nil)
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return "", nil, err
	}

	result, err := s.fetcher.FetchProfile(ctx, playerID)
	if err != nil {
		s.breaker.RecordFailure(0)
		return "", nil, err
	}

	rows, parseErrors, err := ParseHistory(result.HTML)
	if err != nil {
		// An empty or unrecognizable page counts against the breaker, the
		// site changing its markup looks identical to it blocking us.
		s.breaker.RecordFailure(0)
		return "", nil, apperrors.NewScrapeError("history parse failed", "parse", playerID, err)
	}
	if parseErrors > len(rows) {
		// More items failed than parsed, the markup is probably mid-drift.
		s.logger.Warn("Most history items failed to parse",
			zap.Int64("player_id", playerID),
			zap.Int("parse_errors", parseErrors),
			zap.Int("rows", len(rows)),
		)
	}

	s.breaker.RecordSuccess()

	name := PlayerNameFromTitle(result.Title)
	s.logger.Info("Profile scraped",
		zap.Int64("player_id", playerID),
		zap.String("player_name", name),
		zap.Int("rows", len(rows)),
	)

	return name, rows, nil
}

// FetchHistory returns a typed rating history, served from cache when fresh.
func (s *Service) FetchHistory(ctx context.Context, playerID int64) (*domain.RatingHistory, error) {
	if s.cache != nil {
		cached, err := s.cache.GetHistory(ctx, playerID)
		if err != nil {
			s.logger.Warn("History cache read failed", zap.Int64("player_id", playerID), zap.Error(err))
		} else if cached != nil {
			s.logger.Debug("History cache hit", zap.Int64("player_id", playerID))
			return cached, nil
		}
	}

	name, rows, err := s.FetchRows(ctx, playerID)
	if err != nil {
		return nil, err
	}

	observations, dropped := ToObservations(playerID, rows)
	if dropped > 0 {
		s.logger.Warn("Dropped unparseable history rows",
			zap.Int64("player_id", playerID),
			zap.Int("dropped", dropped),
			zap.Int("kept", len(observations)),
		)
	}
	if dropped > len(observations) {
		return nil, apperrors.NewScrapeError("most history rows were unparseable", "convert", playerID,
			&StructureChangedError{Message: "row format may have changed", ParseErrors: dropped})
	}

	history := &domain.RatingHistory{
		PlayerID:     playerID,
		PlayerName:   name,
		Observations: observations,
	}
	history.Sort()

	if s.cache != nil {
		if err := s.cache.SetHistory(ctx, history, s.cacheTTL); err != nil {
			s.logger.Warn("History cache write failed", zap.Int64("player_id", playerID), zap.Error(err))
		}
	}

	return history, nil
}

// RosterResult is the per-player outcome of a batch scrape.
type RosterResult struct {
	PlayerID int64
	History  *domain.RatingHistory
	Err      error
}

// FetchRoster scrapes a set of players with bounded concurrency. Individual
// failures are collected, not fatal to the batch.
func (s *Service) FetchRoster(ctx context.Context, playerIDs []int64) []RosterResult {
	workers := util.Max(1, util.Min(s.concurrency, len(playerIDs)))
	p := pool.New().WithMaxGoroutines(workers)

	results := make([]RosterResult, len(playerIDs))
	resultsMu := sync.Mutex{}

	for idx, playerID := range playerIDs {
		idx, playerID := idx, playerID
		p.Go(func() {
			history, err := s.FetchHistory(ctx, playerID)
			resultsMu.Lock()
			results[idx] = RosterResult{PlayerID: playerID, History: history, Err: err}
			resultsMu.Unlock()
		})
	}

	p.Wait()

	succeeded := 0
	for _, r := range results {
		if r.Err == nil {
			succeeded++
		}
	}
	s.logger.Info("Roster scrape finished",
		zap.Int("requested", len(playerIDs)),
		zap.Int("succeeded", succeeded),
	)

	return results
}

// BreakerStatus exposes the scrape circuit for health reporting.
func (s *Service) BreakerStatus() util.CircuitBreakerStatus {
	return s.breaker.GetStatus()
}
