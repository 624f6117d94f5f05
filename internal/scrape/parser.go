package scrape

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/drewgoldman117/UTR-rating-forecast/internal/domain"
	"github.com/drewgoldman117/UTR-rating-forecast/internal/util"
)

// The profile page has shipped both header spellings.
var fullHistoryHeaders = []string{"Full Rating History", "Full Ratings History"}

var (
	dateRe   = regexp.MustCompile(`\b(\d{4}-\d{2}-\d{2}|\d{1,2}/\d{1,2}/\d{2,4})\b`)
	ratingRe = regexp.MustCompile(`\d{1,2}\.\d{1,2}`)
)

// HistoryRow is one raw (date, rating) pair as rendered on the page. Values
// stay as text so the CSV output mirrors the site exactly.
type HistoryRow struct {
	Date   string `json:"date"`
	Rating string `json:"rating"`
}

// StructureChangedError signals that the profile markup no longer matches
// the selectors this parser was written against.
type StructureChangedError struct {
	Message     string
	ParseErrors int
}

func (e *StructureChangedError) Error() string {
	return fmt.Sprintf("%s (parse errors: %d)", e.Message, e.ParseErrors)
}

func IsStructureError(err error) bool {
	_, ok := err.(*StructureChangedError)
	return ok
}

// PlayerNameFromTitle extracts the player name from a profile page title,
// which renders as "Name | UTR ...".
func PlayerNameFromTitle(title string) string {
	if title == "" {
		return ""
	}
	return strings.TrimSpace(strings.Split(title, "|")[0])
}

// TitleFromHTML reads the <title> of a saved profile page.
func TitleFromHTML(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(doc.Find("title").First().Text())
}

// ParseHistory extracts the Full Rating History rows from profile page HTML.
// Rows are deduplicated on (date, rating) preserving page order. The second
// return value counts history items that yielded no usable row, so callers
// can flag partial layout drift even when some rows still parse.
func ParseHistory(html string) ([]HistoryRow, int, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, 0, fmt.Errorf("HTML parse failed: %w", err)
	}

	container := historyContainer(doc)

	items := container.Find("div[class*='historyItem__']")
	if items.Length() == 0 {
		// Older markup kept the class on the children only
		items = container.Find("div:has(div[class*='historyItemDate__'])")
	}

	rows := make([]HistoryRow, 0, items.Length())
	parseErrors := 0

	items.Each(func(i int, item *goquery.Selection) {
		row, ok := parseHistoryItem(item)
		if !ok {
			parseErrors++
			return
		}
		rows = append(rows, row)
	})

	rows = dedupeRows(rows)

	if len(rows) == 0 {
		return nil, parseErrors, &StructureChangedError{
			Message:     "no history rows found - HTML structure may have changed",
			ParseErrors: parseErrors,
		}
	}

	return rows, parseErrors, nil
}

// historyContainer anchors on the history header and climbs until the
// subtree actually holds history items, falling back to the whole document.
func historyContainer(doc *goquery.Document) *goquery.Selection {
	var header *goquery.Selection

	doc.Find("*").EachWithBreak(func(i int, sel *goquery.Selection) bool {
		if sel.Children().Length() > 0 {
			return true
		}
		text := strings.TrimSpace(sel.Text())
		for _, candidate := range fullHistoryHeaders {
			if strings.EqualFold(text, candidate) {
				header = sel
				return false
			}
		}
		return true
	})

	if header == nil {
		return doc.Selection
	}

	container := header.Parent()
	for depth := 0; depth < 4; depth++ {
		if container.Length() == 0 {
			return doc.Selection
		}
		if container.Find("div[class*='historyItem__']").Length() > 0 ||
			container.Find("div[class*='historyItemDate__']").Length() > 0 {
			return container
		}
		container = container.Parent()
	}

	if container.Length() == 0 {
		return doc.Selection
	}
	return container
}

func parseHistoryItem(item *goquery.Selection) (HistoryRow, bool) {
	dateText := strings.TrimSpace(item.Find("div[class*='historyItemDate__']").First().Text())
	ratingText := strings.TrimSpace(item.Find("div[class*='historyItemRating__']").First().Text())

	if dateText == "" || ratingText == "" {
		// Selector miss, scan the item's text for date/rating shapes
		var parts []string
		item.Find("div, span").Each(func(i int, sel *goquery.Selection) {
			parts = append(parts, strings.TrimSpace(sel.Text()))
		})
		text := strings.Join(parts, " ")

		if dateText == "" {
			dateText = dateRe.FindString(text)
		}
		if ratingText == "" {
			ratingText = ratingRe.FindString(text)
		}
	}

	if normalized := ratingRe.FindString(ratingText); normalized != "" {
		ratingText = normalized
	}

	if dateText == "" || ratingText == "" {
		return HistoryRow{}, false
	}

	return HistoryRow{Date: dateText, Rating: ratingText}, true
}

func dedupeRows(rows []HistoryRow) []HistoryRow {
	seen := make(map[HistoryRow]struct{}, len(rows))
	uniq := make([]HistoryRow, 0, len(rows))
	for _, row := range rows {
		if _, dup := seen[row]; dup {
			continue
		}
		seen[row] = struct{}{}
		uniq = append(uniq, row)
	}
	return uniq
}

// ToObservations converts raw rows into typed observations, dropping rows
// whose date cannot be parsed or whose rating is off the UTR scale.
func ToObservations(playerID int64, rows []HistoryRow) ([]domain.RatingObservation, int) {
	observations := make([]domain.RatingObservation, 0, len(rows))
	dropped := 0

	for _, row := range rows {
		observedOn, err := util.ParseRatingDate(row.Date)
		if err != nil {
			dropped++
			continue
		}
		rating, err := strconv.ParseFloat(row.Rating, 64)
		if err != nil || !domain.IsValidRating(rating) {
			dropped++
			continue
		}
		observations = append(observations, domain.RatingObservation{
			PlayerID:   playerID,
			ObservedOn: observedOn,
			Rating:     rating,
		})
	}

	return observations, dropped
}
