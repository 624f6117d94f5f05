package forecast

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drewgoldman117/UTR-rating-forecast/internal/domain"
	"github.com/drewgoldman117/UTR-rating-forecast/internal/util"
)

// syntheticRows generates labeled rows where the label is a noisy linear
// function of the first few features.
func syntheticRows(n int, noise float64, seed int64) []domain.FeatureRow {
	rng := rand.New(rand.NewSource(seed))
	rows := make([]domain.FeatureRow, n)
	for i := range rows {
		features := make([]float64, len(domain.FeatureNames))
		for j := range features {
			features[j] = rng.Float64() * 4
		}
		label := 4.0 + 0.8*features[featRating] + 0.3*features[featLag12] + noise*rng.NormFloat64()
		rows[i] = domain.FeatureRow{
			PlayerID: 1,
			Features: features,
			Label:    util.Clamp(label, domain.MinRating, domain.MaxRating),
			HasLabel: true,
		}
	}
	return rows
}

func trainMAE(m Model, rows []domain.FeatureRow) float64 {
	sum := 0.0
	for _, row := range rows {
		sum += math.Abs(row.Label - m.Predict(row.Features))
	}
	return sum / float64(len(rows))
}

func meanBaselineMAE(rows []domain.FeatureRow) float64 {
	labels := make([]float64, len(rows))
	for i, row := range rows {
		labels[i] = row.Label
	}
	mean := util.Mean(labels)
	sum := 0.0
	for _, label := range labels {
		sum += math.Abs(label - mean)
	}
	return sum / float64(len(labels))
}

func TestGBRTFitBeatsMeanBaseline(t *testing.T) {
	rows := syntheticRows(200, 0.05, 7)

	m := NewGBRT(GBRTConfig{Seed: 7})
	require.NoError(t, m.Fit(rows))
	require.Greater(t, m.NumTrees(), 0)

	assert.Less(t, trainMAE(m, rows), meanBaselineMAE(rows)/2,
		"boosting should fit the linear signal far better than a constant")
}

func TestGBRTPredictionsStayOnScale(t *testing.T) {
	rows := syntheticRows(100, 0.1, 3)
	m := NewGBRT(GBRTConfig{Seed: 3})
	require.NoError(t, m.Fit(rows))

	extreme := make([]float64, len(domain.FeatureNames))
	for i := range extreme {
		extreme[i] = 100
	}
	pred := m.Predict(extreme)
	assert.GreaterOrEqual(t, pred, domain.MinRating)
	assert.LessOrEqual(t, pred, domain.MaxRating)
}

func TestGBRTRejectsTinyDatasets(t *testing.T) {
	m := NewGBRT(GBRTConfig{})
	err := m.Fit(syntheticRows(4, 0, 1))
	require.Error(t, err)
}

func TestGBRTDeterministicForSeed(t *testing.T) {
	rows := syntheticRows(120, 0.05, 11)

	a := NewGBRT(GBRTConfig{Seed: 11})
	b := NewGBRT(GBRTConfig{Seed: 11})
	require.NoError(t, a.Fit(rows))
	require.NoError(t, b.Fit(rows))

	probe := rows[17].Features
	assert.Equal(t, a.Predict(probe), b.Predict(probe))
}

func TestPinballLoss(t *testing.T) {
	assert.InDelta(t, 0.9, PinballLoss(1, 0, 0.9), 1e-9)
	assert.InDelta(t, 0.1, PinballLoss(0, 1, 0.9), 1e-9)
	assert.InDelta(t, 0.5, PinballLoss(2, 1, 0.5), 1e-9)
	assert.InDelta(t, 0.0, PinballLoss(3, 3, 0.5), 1e-9)
}

func TestQuantileSetBandOrdering(t *testing.T) {
	rows := syntheticRows(150, 0.3, 5)

	set := NewQuantileSet(GBRTConfig{Seed: 5})
	require.NoError(t, set.Fit(rows))

	for _, row := range rows[:20] {
		q10, q50, q90 := set.PredictBand(row.Features)
		assert.LessOrEqual(t, q10, q50)
		assert.LessOrEqual(t, q50, q90)
	}
}

func TestQuantileSetBandCoversMostLabels(t *testing.T) {
	rows := syntheticRows(200, 0.3, 13)

	set := NewQuantileSet(GBRTConfig{Seed: 13})
	require.NoError(t, set.Fit(rows))

	covered := 0
	for _, row := range rows {
		q10, _, q90 := set.PredictBand(row.Features)
		if row.Label >= q10 && row.Label <= q90 {
			covered++
		}
	}
	// A trained 80% band should cover well over half the training labels.
	assert.Greater(t, float64(covered)/float64(len(rows)), 0.5)
}
