package forecast

import (
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/drewgoldman117/UTR-rating-forecast/internal/dataset"
	"github.com/drewgoldman117/UTR-rating-forecast/internal/domain"
	"github.com/drewgoldman117/UTR-rating-forecast/internal/util"
	apperrors "github.com/drewgoldman117/UTR-rating-forecast/pkg/errors"
)

// Row thresholds for the model fallback chain. Short histories degrade from
// gbrt to linear to drift to persistence rather than failing.
const (
	minRowsGBRT   = 40
	minRowsLinear = 30
)

// z80 spans an 80% normal interval, used for the volatility band when the
// quantile models cannot be trained.
const z80 = 1.2816

type Config struct {
	HorizonMonths int
	Model         domain.ModelKind
	GBRT          GBRTConfig
}

type Forecaster struct {
	cfg     Config
	builder *dataset.Builder
	logger  *zap.Logger
}

func NewForecaster(cfg Config, builder *dataset.Builder, logger *zap.Logger) *Forecaster {
	if cfg.HorizonMonths <= 0 {
		cfg.HorizonMonths = 18
	}
	if !cfg.Model.IsValid() {
		cfg.Model = domain.ModelGBRT
	}
	return &Forecaster{
		cfg:     cfg,
		builder: builder,
		logger:  logger,
	}
}

// NewModel builds an unfitted model of the given kind, shared with the
// backtester so both paths train identically.
func NewModel(kind domain.ModelKind, horizonMonths int, gbrtCfg GBRTConfig) Model {
	switch kind {
	case domain.ModelGBRT:
		return NewGBRT(gbrtCfg)
	case domain.ModelLinear:
		return NewLinear()
	case domain.ModelDrift:
		return NewDrift(horizonMonths)
	default:
		return NewPersistence()
	}
}

// Forecast produces the 18-month rating path for one player.
func (f *Forecaster) Forecast(history *domain.RatingHistory) (*domain.Forecast, error) {
	if history == nil || history.Len() == 0 {
		return nil, apperrors.NewValidationError("empty rating history", "history", nil)
	}

	current := history.Latest().Rating
	horizon := f.cfg.HorizonMonths

	rows := f.builder.BuildRows(history)
	labeled := Labeled(rows)
	latest := f.builder.LatestRow(history)

	model, target := f.predictTarget(history, labeled, latest, current)

	q10, q50, q90, bandModel := f.predictBand(labeled, latest, target)

	f.logger.Debug("Forecast computed",
		zap.Int64("player_id", history.PlayerID),
		zap.String("model", model.String()),
		zap.Bool("quantile_models", bandModel),
		zap.Float64("current", current),
		zap.Float64("target", target),
	)

	forecast := &domain.Forecast{
		PlayerID:      history.PlayerID,
		PlayerName:    history.PlayerName,
		Model:         model,
		GeneratedAt:   time.Now().UTC(),
		HorizonMonths: horizon,
		Trend:         domain.TrendOf(current, target),
	}

	startMonth := util.MonthStart(history.Latest().ObservedOn)
	widthLow := q50 - q10
	widthHigh := q90 - q50

	for m := 1; m <= horizon; m++ {
		frac := float64(m) / float64(horizon)
		rating := current + (target-current)*frac
		median := current + (q50-current)*frac
		// Uncertainty grows with the square root of lead time
		spread := math.Sqrt(frac)

		forecast.Points = append(forecast.Points, domain.ForecastPoint{
			Month:  util.AddMonths(startMonth, m),
			Rating: util.Clamp(rating, domain.MinRating, domain.MaxRating),
			Q10:    util.Clamp(median-widthLow*spread, domain.MinRating, domain.MaxRating),
			Q50:    util.Clamp(median, domain.MinRating, domain.MaxRating),
			Q90:    util.Clamp(median+widthHigh*spread, domain.MinRating, domain.MaxRating),
		})
	}

	return forecast, nil
}

// predictTarget walks the fallback chain until a model can be fitted.
func (f *Forecaster) predictTarget(history *domain.RatingHistory, labeled []domain.FeatureRow, latest *domain.FeatureRow, current float64) (domain.ModelKind, float64) {
	if latest == nil {
		// Too short to featurize at all
		return domain.ModelPersistence, current
	}

	for _, kind := range f.fallbackChain(len(labeled)) {
		model := NewModel(kind, f.cfg.HorizonMonths, f.cfg.GBRT)
		if err := model.Fit(labeled); err != nil {
			f.logger.Warn("Model fit failed, degrading",
				zap.Int64("player_id", history.PlayerID),
				zap.String("model", kind.String()),
				zap.Error(err))
			continue
		}
		return kind, model.Predict(latest.Features)
	}

	return domain.ModelPersistence, current
}

func (f *Forecaster) fallbackChain(labeledRows int) []domain.ModelKind {
	chain := make([]domain.ModelKind, 0, 4)
	switch f.cfg.Model {
	case domain.ModelGBRT:
		if labeledRows >= minRowsGBRT {
			chain = append(chain, domain.ModelGBRT)
		}
		fallthrough
	case domain.ModelLinear:
		if labeledRows >= minRowsLinear {
			chain = append(chain, domain.ModelLinear)
		}
		fallthrough
	case domain.ModelDrift:
		chain = append(chain, domain.ModelDrift)
	}
	return append(chain, domain.ModelPersistence)
}

// predictBand returns (q10, q50, q90) at the horizon and whether trained
// quantile models produced it (as opposed to the volatility fallback).
func (f *Forecaster) predictBand(labeled []domain.FeatureRow, latest *domain.FeatureRow, target float64) (float64, float64, float64, bool) {
	if latest != nil && len(labeled) >= minRowsGBRT {
		set := NewQuantileSet(f.cfg.GBRT)
		if err := set.Fit(labeled); err == nil {
			q10, q50, q90 := set.PredictBand(latest.Features)
			return q10, q50, q90, true
		}
		f.logger.Warn("Quantile fit failed, using volatility band")
	}

	sigma := f.monthlyVolatility(latest)
	width := z80 * sigma * math.Sqrt(float64(f.cfg.HorizonMonths))
	return target - width, target, target + width, false
}

// monthlyVolatility estimates the per-month rating standard deviation from
// the rolling-std feature, with a small floor so the band never collapses.
func (f *Forecaster) monthlyVolatility(latest *domain.FeatureRow) float64 {
	const floor = 0.05
	if latest == nil {
		return floor * 2
	}
	sigma := latest.Features[featRollStd12]
	if sigma < floor {
		return floor
	}
	return sigma
}
