package dataset

import (
	"sort"
	"time"

	"github.com/drewgoldman117/UTR-rating-forecast/internal/domain"
	"github.com/drewgoldman117/UTR-rating-forecast/internal/util"
)

// longestLag is the deepest lag feature; rows earlier than this into a
// segment cannot be fully featurized and are skipped.
const longestLag = 12

// MonthlyPoint is one cell of the resampled series. Observed is false for
// forward-filled months.
type MonthlyPoint struct {
	Month    time.Time
	Rating   float64
	Observed bool
}

type Builder struct {
	HorizonMonths int
	// FillLimit caps forward-filling across unrated months. A gap longer
	// than this breaks the series into separate segments instead of
	// inventing flat data.
	FillLimit int
}

func NewBuilder(horizonMonths, fillLimit int) *Builder {
	if horizonMonths <= 0 {
		horizonMonths = 18
	}
	if fillLimit <= 0 {
		fillLimit = 3
	}
	return &Builder{HorizonMonths: horizonMonths, FillLimit: fillLimit}
}

// MonthlySegments resamples a history onto a monthly grid: last observation
// per calendar month, forward-filled through gaps up to FillLimit months.
// Longer gaps split the series.
func (b *Builder) MonthlySegments(history *domain.RatingHistory) [][]MonthlyPoint {
	if history == nil || len(history.Observations) == 0 {
		return nil
	}

	byMonth := make(map[time.Time]domain.RatingObservation)
	months := make([]time.Time, 0)
	for _, obs := range history.Observations {
		month := util.MonthStart(obs.ObservedOn)
		prev, exists := byMonth[month]
		if !exists {
			months = append(months, month)
			byMonth[month] = obs
			continue
		}
		if !obs.ObservedOn.Before(prev.ObservedOn) {
			byMonth[month] = obs
		}
	}
	sort.Slice(months, func(i, j int) bool { return months[i].Before(months[j]) })

	segments := make([][]MonthlyPoint, 0, 1)
	var current []MonthlyPoint

	for i, month := range months {
		point := MonthlyPoint{Month: month, Rating: byMonth[month].Rating, Observed: true}

		if i == 0 {
			current = []MonthlyPoint{point}
			continue
		}

		gap := util.MonthsBetween(months[i-1], month)
		if gap > b.FillLimit+1 {
			segments = append(segments, current)
			current = []MonthlyPoint{point}
			continue
		}

		// Forward-fill the skipped months with the previous rating
		prev := current[len(current)-1]
		for fill := 1; fill < gap; fill++ {
			current = append(current, MonthlyPoint{
				Month:    util.AddMonths(prev.Month, fill),
				Rating:   prev.Rating,
				Observed: false,
			})
		}
		current = append(current, point)
	}

	if len(current) > 0 {
		segments = append(segments, current)
	}

	return segments
}

// BuildRows turns a history into supervised feature rows. Rows whose label
// month falls past the end of the series are emitted feature-only.
func (b *Builder) BuildRows(history *domain.RatingHistory) []domain.FeatureRow {
	if history == nil || len(history.Observations) < 2 {
		return nil
	}

	segments := b.MonthlySegments(history)
	if len(segments) == 0 {
		return nil
	}

	firstMonth := segments[0][0].Month
	rows := make([]domain.FeatureRow, 0)

	for _, segment := range segments {
		for t := longestLag; t < len(segment); t++ {
			row := domain.FeatureRow{
				PlayerID:   history.PlayerID,
				PlayerName: history.PlayerName,
				Month:      segment[t].Month,
				Features:   b.featuresAt(segment, t, firstMonth),
			}

			if labelIdx := t + b.HorizonMonths; labelIdx < len(segment) {
				row.Label = segment[labelIdx].Rating
				row.HasLabel = true
			}

			rows = append(rows, row)
		}
	}

	return rows
}

// LatestRow returns the most recent feature row of a history, the input for
// a live forecast. Nil when the history is too short to featurize.
func (b *Builder) LatestRow(history *domain.RatingHistory) *domain.FeatureRow {
	segments := b.MonthlySegments(history)
	if len(segments) == 0 {
		return nil
	}

	last := segments[len(segments)-1]
	if len(last) <= longestLag {
		return nil
	}

	row := domain.FeatureRow{
		PlayerID:   history.PlayerID,
		PlayerName: history.PlayerName,
		Month:      last[len(last)-1].Month,
		Features:   b.featuresAt(last, len(last)-1, segments[0][0].Month),
	}
	return &row
}

func (b *Builder) featuresAt(segment []MonthlyPoint, t int, firstMonth time.Time) []float64 {
	rating := segment[t].Rating

	lag := func(n int) float64 { return segment[t-n].Rating }

	window := make([]float64, 0, longestLag)
	for i := t - longestLag + 1; i <= t; i++ {
		window = append(window, segment[i].Rating)
	}

	obsCount := 0
	monthsSinceObs := 0
	for i := t; i >= 0; i-- {
		if segment[i].Observed {
			if obsCount == 0 {
				monthsSinceObs = t - i
			}
			obsCount++
		}
	}

	return []float64{
		rating,
		lag(1),
		lag(3),
		lag(6),
		lag(12),
		rating - lag(1),
		rating - lag(3),
		rating - lag(6),
		rating - lag(12),
		util.Mean(window),
		util.Std(window),
		float64(util.MonthsBetween(firstMonth, segment[t].Month)),
		float64(obsCount),
		float64(monthsSinceObs),
	}
}
