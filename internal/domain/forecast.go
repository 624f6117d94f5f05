package domain

import "time"

type ModelKind string

const (
	ModelPersistence ModelKind = "persistence"
	ModelDrift       ModelKind = "drift"
	ModelLinear      ModelKind = "linear"
	ModelGBRT        ModelKind = "gbrt"
)

func (m ModelKind) String() string {
	return string(m)
}

func (m ModelKind) IsValid() bool {
	switch m {
	case ModelPersistence, ModelDrift, ModelLinear, ModelGBRT:
		return true
	default:
		return false
	}
}

type Trend string

const (
	TrendImproving Trend = "improving"
	TrendDeclining Trend = "declining"
	TrendStable    Trend = "stable"
)

// TrendOf classifies the move from current to predicted. Swings under a
// tenth of a UTR point are reported as stable.
func TrendOf(current, predicted float64) Trend {
	switch {
	case predicted-current > 0.1:
		return TrendImproving
	case current-predicted > 0.1:
		return TrendDeclining
	default:
		return TrendStable
	}
}

// ForecastPoint is one month of the projected rating path. Q10/Q90 bound the
// 80% uncertainty band; Q50 is the median model's estimate.
type ForecastPoint struct {
	Month  time.Time `json:"month"`
	Rating float64   `json:"rating"`
	Q10    float64   `json:"q10"`
	Q50    float64   `json:"q50"`
	Q90    float64   `json:"q90"`
}

type Forecast struct {
	PlayerID      int64           `json:"player_id"`
	PlayerName    string          `json:"player_name"`
	Model         ModelKind       `json:"model"`
	GeneratedAt   time.Time       `json:"generated_at"`
	HorizonMonths int             `json:"horizon_months"`
	Trend         Trend           `json:"trend"`
	Points        []ForecastPoint `json:"points"`
}

// Target returns the point at the full horizon, nil when empty.
func (f *Forecast) Target() *ForecastPoint {
	if f == nil || len(f.Points) == 0 {
		return nil
	}
	return &f.Points[len(f.Points)-1]
}
