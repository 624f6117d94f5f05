package forecast

import (
	"github.com/drewgoldman117/UTR-rating-forecast/internal/domain"
	"github.com/drewgoldman117/UTR-rating-forecast/internal/util"
)

// Feature vector indexes, tied to domain.FeatureNames ordering.
const (
	featRating    = 0
	featLag12     = 4
	featRollStd12 = 10
)

// Persistence predicts no change: the rating 18 months out equals today's.
// The floor every learned model has to beat in backtests.
type Persistence struct{}

func NewPersistence() *Persistence {
	return &Persistence{}
}

func (m *Persistence) Kind() domain.ModelKind {
	return domain.ModelPersistence
}

func (m *Persistence) Fit(rows []domain.FeatureRow) error {
	return nil
}

func (m *Persistence) Predict(features []float64) float64 {
	return features[featRating]
}

// Drift extrapolates the trailing 12-month slope over the horizon.
type Drift struct {
	HorizonMonths int
}

func NewDrift(horizonMonths int) *Drift {
	if horizonMonths <= 0 {
		horizonMonths = 18
	}
	return &Drift{HorizonMonths: horizonMonths}
}

func (m *Drift) Kind() domain.ModelKind {
	return domain.ModelDrift
}

func (m *Drift) Fit(rows []domain.FeatureRow) error {
	return nil
}

func (m *Drift) Predict(features []float64) float64 {
	rating := features[featRating]
	slope := (rating - features[featLag12]) / 12.0
	predicted := rating + slope*float64(m.HorizonMonths)
	return util.Clamp(predicted, domain.MinRating, domain.MaxRating)
}
