package util

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRatingDate(t *testing.T) {
	tests := []struct {
		input string
		want  time.Time
	}{
		{"2024-03-01", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)},
		{"3/1/2024", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)},
		{"3/1/24", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)},
		{"Mar 1, 2024", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)},
		{"March 1, 2024", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)},
		{"  2024-03-01  ", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		got, err := ParseRatingDate(tt.input)
		require.NoError(t, err, tt.input)
		assert.True(t, tt.want.Equal(got), tt.input)
	}
}

func TestParseRatingDateRejectsGarbage(t *testing.T) {
	for _, input := range []string{"", "yesterday", "13.37"} {
		_, err := ParseRatingDate(input)
		assert.Error(t, err, input)
	}
}

func TestMonthStart(t *testing.T) {
	in := time.Date(2024, 3, 17, 15, 4, 5, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), MonthStart(in))
}

func TestAddMonths(t *testing.T) {
	jan := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC), AddMonths(jan, 6))
	assert.Equal(t, time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC), AddMonths(jan, 18))
	assert.Equal(t, time.Date(2023, 12, 1, 0, 0, 0, 0, time.UTC), AddMonths(jan, -1))
}

func TestMonthsBetween(t *testing.T) {
	a := time.Date(2023, 11, 20, 0, 0, 0, 0, time.UTC)
	b := time.Date(2024, 2, 3, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, 3, MonthsBetween(a, b))
	assert.Equal(t, -3, MonthsBetween(b, a))
	assert.Equal(t, 0, MonthsBetween(a, a))
}
