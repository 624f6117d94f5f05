package domain

import (
	"sort"
	"time"
)

// UTR scale bounds. Ratings outside this range are rejected at parse time.
const (
	MinRating = 1.0
	MaxRating = 16.5
)

func IsValidRating(r float64) bool {
	return r >= MinRating && r <= MaxRating
}

type Player struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	FirstSeen time.Time `json:"first_seen"`
	LastSeen  time.Time `json:"last_seen"`
}

// RatingObservation is one dated rating from a player's Full Rating History.
type RatingObservation struct {
	PlayerID   int64     `json:"player_id"`
	ObservedOn time.Time `json:"observed_on"`
	Rating     float64   `json:"rating"`
}

type RatingHistory struct {
	PlayerID     int64               `json:"player_id"`
	PlayerName   string              `json:"player_name"`
	Observations []RatingObservation `json:"observations"`
}

// Sort orders observations by date ascending, oldest first.
func (h *RatingHistory) Sort() {
	sort.SliceStable(h.Observations, func(i, j int) bool {
		return h.Observations[i].ObservedOn.Before(h.Observations[j].ObservedOn)
	})
}

func (h *RatingHistory) Len() int {
	return len(h.Observations)
}

// Latest returns the most recent observation, nil for an empty history.
func (h *RatingHistory) Latest() *RatingObservation {
	if len(h.Observations) == 0 {
		return nil
	}
	latest := &h.Observations[0]
	for i := range h.Observations {
		if h.Observations[i].ObservedOn.After(latest.ObservedOn) {
			latest = &h.Observations[i]
		}
	}
	return latest
}

// Earliest returns the oldest observation, nil for an empty history.
func (h *RatingHistory) Earliest() *RatingObservation {
	if len(h.Observations) == 0 {
		return nil
	}
	earliest := &h.Observations[0]
	for i := range h.Observations {
		if h.Observations[i].ObservedOn.Before(earliest.ObservedOn) {
			earliest = &h.Observations[i]
		}
	}
	return earliest
}
