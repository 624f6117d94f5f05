package forecast

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/drewgoldman117/UTR-rating-forecast/internal/dataset"
	"github.com/drewgoldman117/UTR-rating-forecast/internal/domain"
)

func TestPersistencePredictsCurrentRating(t *testing.T) {
	m := NewPersistence()
	require.NoError(t, m.Fit(nil))

	features := make([]float64, len(domain.FeatureNames))
	features[featRating] = 8.75
	assert.InDelta(t, 8.75, m.Predict(features), 1e-9)
}

func TestDriftExtrapolatesTrailingSlope(t *testing.T) {
	m := NewDrift(18)

	features := make([]float64, len(domain.FeatureNames))
	features[featRating] = 8.0
	features[featLag12] = 6.8 // +0.1/month over the trailing year

	assert.InDelta(t, 9.8, m.Predict(features), 1e-9)
}

func TestDriftClampsToScale(t *testing.T) {
	m := NewDrift(18)

	features := make([]float64, len(domain.FeatureNames))
	features[featRating] = 15.0
	features[featLag12] = 10.0

	assert.InDelta(t, domain.MaxRating, m.Predict(features), 1e-9)
}

func TestLinearRecoversLinearSignal(t *testing.T) {
	rows := syntheticRows(120, 0, 19)

	m := NewLinear()
	require.NoError(t, m.Fit(rows))

	for _, row := range rows[:10] {
		assert.InDelta(t, row.Label, m.Predict(row.Features), 0.05)
	}
}

func TestLinearNeedsEnoughRows(t *testing.T) {
	m := NewLinear()
	require.Error(t, m.Fit(syntheticRows(10, 0, 1)))
	require.Error(t, m.Fit(nil))
}

func TestNewModelKinds(t *testing.T) {
	assert.Equal(t, domain.ModelGBRT, NewModel(domain.ModelGBRT, 18, GBRTConfig{}).Kind())
	assert.Equal(t, domain.ModelLinear, NewModel(domain.ModelLinear, 18, GBRTConfig{}).Kind())
	assert.Equal(t, domain.ModelDrift, NewModel(domain.ModelDrift, 18, GBRTConfig{}).Kind())
	assert.Equal(t, domain.ModelPersistence, NewModel(domain.ModelPersistence, 18, GBRTConfig{}).Kind())
}

func improvingHistory(months int) *domain.RatingHistory {
	start := time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)
	history := &domain.RatingHistory{PlayerID: 5, PlayerName: "Riser"}
	for i := 0; i < months; i++ {
		history.Observations = append(history.Observations, domain.RatingObservation{
			PlayerID:   5,
			ObservedOn: start.AddDate(0, i, 0),
			Rating:     6.0 + float64(i)*0.05,
		})
	}
	return history
}

func TestForecastEmptyHistory(t *testing.T) {
	f := NewForecaster(Config{}, dataset.NewBuilder(18, 3), zap.NewNop())
	_, err := f.Forecast(nil)
	require.Error(t, err)
	_, err = f.Forecast(&domain.RatingHistory{PlayerID: 1})
	require.Error(t, err)
}

func TestForecastShortHistoryFallsBackToPersistence(t *testing.T) {
	f := NewForecaster(Config{HorizonMonths: 18}, dataset.NewBuilder(18, 3), zap.NewNop())

	history := improvingHistory(4)
	fc, err := f.Forecast(history)
	require.NoError(t, err)

	assert.Equal(t, domain.ModelPersistence, fc.Model)
	require.Len(t, fc.Points, 18)

	current := history.Latest().Rating
	assert.InDelta(t, current, fc.Points[17].Rating, 1e-9)
}

func TestForecastImprovingPlayer(t *testing.T) {
	f := NewForecaster(Config{HorizonMonths: 18, Model: domain.ModelGBRT}, dataset.NewBuilder(18, 3), zap.NewNop())

	history := improvingHistory(36)
	fc, err := f.Forecast(history)
	require.NoError(t, err)

	assert.Equal(t, int64(5), fc.PlayerID)
	assert.Equal(t, "Riser", fc.PlayerName)
	assert.Equal(t, 18, fc.HorizonMonths)
	assert.Equal(t, domain.TrendImproving, fc.Trend)
	require.Len(t, fc.Points, 18)

	// Months advance one at a time from the last observation.
	lastObserved := history.Latest().ObservedOn
	assert.Equal(t, time.Date(lastObserved.Year(), lastObserved.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, 0), fc.Points[0].Month)

	for i, point := range fc.Points {
		assert.LessOrEqual(t, point.Q10, point.Q50, "point %d", i)
		assert.LessOrEqual(t, point.Q50, point.Q90, "point %d", i)
		assert.GreaterOrEqual(t, point.Rating, domain.MinRating)
		assert.LessOrEqual(t, point.Rating, domain.MaxRating)
	}

	// The 18-month point should sit above today's rating for a steady riser.
	assert.Greater(t, fc.Points[17].Rating, history.Latest().Rating)
}
