package scrape

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const profileHTML = `<!DOCTYPE html>
<html>
<head><title>Jordan Reyes | UTR | Universal Tennis</title></head>
<body>
<div class="app-root">
  <div class="profileStats__card">
    <span>Full Rating History</span>
    <div class="historyList__wrap">
      <div class="historyItem__row_a1b2">
        <div class="historyItemDate__cell_a1b2">2024-03-01</div>
        <div class="historyItemRating__cell_a1b2">9.43</div>
      </div>
      <div class="historyItem__row_a1b2">
        <div class="historyItemDate__cell_a1b2">2024-02-01</div>
        <div class="historyItemRating__cell_a1b2">UTR 9.38</div>
      </div>
      <div class="historyItem__row_a1b2">
        <div class="historyItemDate__cell_a1b2">2024-02-01</div>
        <div class="historyItemRating__cell_a1b2">9.38</div>
      </div>
      <div class="historyItem__row_a1b2">
        <span>1/5/2024</span>
        <span>9.21</span>
      </div>
      <div class="historyItem__row_a1b2">
        <div class="historyItemDate__cell_a1b2"></div>
      </div>
    </div>
  </div>
</div>
</body>
</html>`

func TestParseHistory(t *testing.T) {
	rows, parseErrors, err := ParseHistory(profileHTML)
	require.NoError(t, err)

	// The duplicate 2024-02-01/9.38 pair collapses, the empty item drops.
	require.Len(t, rows, 3)
	assert.Equal(t, 1, parseErrors)
	assert.Equal(t, HistoryRow{Date: "2024-03-01", Rating: "9.43"}, rows[0])
	assert.Equal(t, HistoryRow{Date: "2024-02-01", Rating: "9.38"}, rows[1])
	assert.Equal(t, HistoryRow{Date: "1/5/2024", Rating: "9.21"}, rows[2])
}

func TestParseHistoryNormalizesRatingText(t *testing.T) {
	rows, _, err := ParseHistory(profileHTML)
	require.NoError(t, err)

	// "UTR 9.38" deduplicates against the bare "9.38" row.
	for _, row := range rows {
		assert.NotContains(t, row.Rating, "UTR")
	}
}

func TestParseHistoryStructureChanged(t *testing.T) {
	_, _, err := ParseHistory(`<html><body><div class="totally-different"></div></body></html>`)
	require.Error(t, err)
	assert.True(t, IsStructureError(err))
}

// partialDriftHTML renders three of five history items without a date or
// rating, the shape a half-finished site redesign leaves behind.
const partialDriftHTML = `<html><body>
<div><span>Full Rating History</span>
  <div class="historyItem__x">
    <div class="historyItemDate__x">2024-03-01</div>
    <div class="historyItemRating__x">9.43</div>
  </div>
  <div class="historyItem__x">
    <div class="historyItemDate__x">2024-02-01</div>
    <div class="historyItemRating__x">9.38</div>
  </div>
  <div class="historyItem__x"><div>redesigned cell</div></div>
  <div class="historyItem__x"><div>redesigned cell</div></div>
  <div class="historyItem__x"><div>redesigned cell</div></div>
</div></body></html>`

func TestParseHistoryCountsItemFailures(t *testing.T) {
	rows, parseErrors, err := ParseHistory(partialDriftHTML)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, 3, parseErrors)
}

func TestParseHistoryAlternateHeaderSpelling(t *testing.T) {
	html := `<html><body>
	<div><span>Full Ratings History</span>
	  <div class="historyItem__x">
	    <div class="historyItemDate__x">2023-11-01</div>
	    <div class="historyItemRating__x">7.05</div>
	  </div>
	</div></body></html>`

	rows, _, err := ParseHistory(html)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "7.05", rows[0].Rating)
}

func TestPlayerNameFromTitle(t *testing.T) {
	assert.Equal(t, "Jordan Reyes", PlayerNameFromTitle("Jordan Reyes | UTR | Universal Tennis"))
	assert.Equal(t, "No Pipes Here", PlayerNameFromTitle("No Pipes Here"))
	assert.Equal(t, "", PlayerNameFromTitle(""))
}

func TestTitleFromHTML(t *testing.T) {
	assert.Equal(t, "Jordan Reyes | UTR | Universal Tennis", TitleFromHTML(profileHTML))
}

func TestToObservations(t *testing.T) {
	rows := []HistoryRow{
		{Date: "2024-03-01", Rating: "9.43"},
		{Date: "1/5/2024", Rating: "9.21"},
		{Date: "not a date", Rating: "9.10"},
		{Date: "2024-01-01", Rating: "17.40"}, // off the UTR scale
		{Date: "2024-01-01", Rating: "n/a"},
	}

	observations, dropped := ToObservations(42, rows)
	require.Len(t, observations, 2)
	assert.Equal(t, 3, dropped)

	assert.Equal(t, int64(42), observations[0].PlayerID)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), observations[0].ObservedOn)
	assert.InDelta(t, 9.43, observations[0].Rating, 1e-9)
	assert.Equal(t, time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC), observations[1].ObservedOn)
}
