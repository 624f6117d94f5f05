package forecast

import (
	"sort"

	"github.com/drewgoldman117/UTR-rating-forecast/internal/domain"
	apperrors "github.com/drewgoldman117/UTR-rating-forecast/pkg/errors"
)

// Band quantile levels: an 80% interval around the median.
const (
	QuantileLow    = 0.1
	QuantileMedian = 0.5
	QuantileHigh   = 0.9
)

// QuantileSet trains one pinball-loss booster per band quantile.
type QuantileSet struct {
	low    *GBRT
	median *GBRT
	high   *GBRT
}

func NewQuantileSet(cfg GBRTConfig) *QuantileSet {
	lowCfg, medCfg, highCfg := cfg, cfg, cfg
	lowCfg.Quantile = QuantileLow
	medCfg.Quantile = QuantileMedian
	highCfg.Quantile = QuantileHigh

	return &QuantileSet{
		low:    NewGBRT(lowCfg),
		median: NewGBRT(medCfg),
		high:   NewGBRT(highCfg),
	}
}

func (s *QuantileSet) Fit(rows []domain.FeatureRow) error {
	if err := s.low.Fit(rows); err != nil {
		return apperrors.NewModelError("q10 fit failed", "quantile", "fit", err)
	}
	if err := s.median.Fit(rows); err != nil {
		return apperrors.NewModelError("q50 fit failed", "quantile", "fit", err)
	}
	if err := s.high.Fit(rows); err != nil {
		return apperrors.NewModelError("q90 fit failed", "quantile", "fit", err)
	}
	return nil
}

// PredictBand returns (q10, q50, q90). Independently trained quantile models
// can cross on sparse data, so the triple is re-sorted before returning.
func (s *QuantileSet) PredictBand(features []float64) (float64, float64, float64) {
	band := []float64{
		s.low.Predict(features),
		s.median.Predict(features),
		s.high.Predict(features),
	}
	sort.Float64s(band)
	return band[0], band[1], band[2]
}
