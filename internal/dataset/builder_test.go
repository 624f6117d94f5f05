package dataset

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drewgoldman117/UTR-rating-forecast/internal/domain"
)

func monthlyHistory(playerID int64, start time.Time, ratings []float64) *domain.RatingHistory {
	history := &domain.RatingHistory{PlayerID: playerID, PlayerName: "Test Player"}
	for i, rating := range ratings {
		history.Observations = append(history.Observations, domain.RatingObservation{
			PlayerID:   playerID,
			ObservedOn: start.AddDate(0, i, 0),
			Rating:     rating,
		})
	}
	return history
}

func rampRatings(n int, start, step float64) []float64 {
	ratings := make([]float64, n)
	for i := range ratings {
		ratings[i] = start + float64(i)*step
	}
	return ratings
}

func TestMonthlySegmentsLastObservationWins(t *testing.T) {
	b := NewBuilder(18, 3)
	history := &domain.RatingHistory{
		PlayerID: 1,
		Observations: []domain.RatingObservation{
			{ObservedOn: time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC), Rating: 8.0},
			{ObservedOn: time.Date(2024, 1, 28, 0, 0, 0, 0, time.UTC), Rating: 8.2},
			{ObservedOn: time.Date(2024, 2, 10, 0, 0, 0, 0, time.UTC), Rating: 8.3},
		},
	}

	segments := b.MonthlySegments(history)
	require.Len(t, segments, 1)
	require.Len(t, segments[0], 2)

	assert.InDelta(t, 8.2, segments[0][0].Rating, 1e-9)
	assert.InDelta(t, 8.3, segments[0][1].Rating, 1e-9)
	assert.True(t, segments[0][0].Observed)
}

func TestMonthlySegmentsForwardFill(t *testing.T) {
	b := NewBuilder(18, 3)
	history := &domain.RatingHistory{
		PlayerID: 1,
		Observations: []domain.RatingObservation{
			{ObservedOn: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), Rating: 8.0},
			{ObservedOn: time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC), Rating: 8.6},
		},
	}

	segments := b.MonthlySegments(history)
	require.Len(t, segments, 1)
	require.Len(t, segments[0], 4)

	// February and March carry January's rating, marked unobserved.
	assert.InDelta(t, 8.0, segments[0][1].Rating, 1e-9)
	assert.False(t, segments[0][1].Observed)
	assert.InDelta(t, 8.0, segments[0][2].Rating, 1e-9)
	assert.InDelta(t, 8.6, segments[0][3].Rating, 1e-9)
	assert.True(t, segments[0][3].Observed)
}

func TestMonthlySegmentsLongGapSplits(t *testing.T) {
	b := NewBuilder(18, 3)
	history := &domain.RatingHistory{
		PlayerID: 1,
		Observations: []domain.RatingObservation{
			{ObservedOn: time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC), Rating: 7.0},
			{ObservedOn: time.Date(2023, 2, 1, 0, 0, 0, 0, time.UTC), Rating: 7.1},
			// Eight unrated months, past the fill limit
			{ObservedOn: time.Date(2023, 10, 1, 0, 0, 0, 0, time.UTC), Rating: 7.9},
		},
	}

	segments := b.MonthlySegments(history)
	require.Len(t, segments, 2)
	assert.Len(t, segments[0], 2)
	assert.Len(t, segments[1], 1)
}

func TestBuildRowsFeaturesAndLabels(t *testing.T) {
	horizon := 6
	b := NewBuilder(horizon, 3)

	start := time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)
	// 24 months climbing 0.1/month from 6.0
	history := monthlyHistory(1, start, rampRatings(24, 6.0, 0.1))

	rows := b.BuildRows(history)
	// Rows start once 12 lag months exist: t = 12 .. 23.
	require.Len(t, rows, 12)

	first := rows[0]
	assert.Equal(t, time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC), first.Month)
	require.Len(t, first.Features, len(domain.FeatureNames))

	assert.InDelta(t, 7.2, first.Features[0], 1e-9)  // rating
	assert.InDelta(t, 7.1, first.Features[1], 1e-9)  // lag_1m
	assert.InDelta(t, 6.9, first.Features[2], 1e-9)  // lag_3m
	assert.InDelta(t, 6.6, first.Features[3], 1e-9)  // lag_6m
	assert.InDelta(t, 6.0, first.Features[4], 1e-9)  // lag_12m
	assert.InDelta(t, 0.1, first.Features[5], 1e-9)  // delta_1m
	assert.InDelta(t, 1.2, first.Features[8], 1e-9)  // delta_12m
	assert.InDelta(t, 12, first.Features[11], 1e-9)  // months_active
	assert.InDelta(t, 13, first.Features[12], 1e-9)  // obs_count
	assert.InDelta(t, 0, first.Features[13], 1e-9)   // months_since_obs

	// Label six months ahead of t=12 is the t=18 rating.
	require.True(t, first.HasLabel)
	assert.InDelta(t, 7.8, first.Label, 1e-9)

	// The final rows have no realized label yet.
	last := rows[len(rows)-1]
	assert.False(t, last.HasLabel)
}

func TestBuildRowsTooShort(t *testing.T) {
	b := NewBuilder(18, 3)
	history := monthlyHistory(1, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), rampRatings(6, 8.0, 0.1))
	assert.Empty(t, b.BuildRows(history))
	assert.Nil(t, b.LatestRow(history))
}

func TestLatestRow(t *testing.T) {
	b := NewBuilder(18, 3)
	start := time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)
	history := monthlyHistory(1, start, rampRatings(20, 6.0, 0.05))

	row := b.LatestRow(history)
	require.NotNil(t, row)
	assert.Equal(t, time.Date(2023, 8, 1, 0, 0, 0, 0, time.UTC), row.Month)
	assert.InDelta(t, 6.0+19*0.05, row.Features[0], 1e-9)
	assert.False(t, row.HasLabel)
}
