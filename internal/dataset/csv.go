package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/drewgoldman117/UTR-rating-forecast/internal/domain"
)

const monthLayout = "2006-01"

// Header returns the fixed dataset CSV header: identity columns, the feature
// columns in domain.FeatureNames order, then the label columns.
func Header() []string {
	header := []string{"user_id", "player_name", "month"}
	header = append(header, domain.FeatureNames...)
	return append(header, "label", "has_label")
}

// WriteCSV streams feature rows as CSV.
func WriteCSV(w io.Writer, rows []domain.FeatureRow) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(Header()); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	record := make([]string, 0, len(Header()))
	for _, row := range rows {
		record = record[:0]
		record = append(record,
			strconv.FormatInt(row.PlayerID, 10),
			row.PlayerName,
			row.Month.Format(monthLayout),
		)
		for _, f := range row.Features {
			record = append(record, strconv.FormatFloat(f, 'f', -1, 64))
		}
		record = append(record,
			strconv.FormatFloat(row.Label, 'f', -1, 64),
			strconv.FormatBool(row.HasLabel),
		)
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// ReadCSV parses a dataset written by WriteCSV.
func ReadCSV(r io.Reader) ([]domain.FeatureRow, error) {
	cr := csv.NewReader(r)

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	if len(header) != len(Header()) {
		return nil, fmt.Errorf("unexpected column count: got %d, want %d", len(header), len(Header()))
	}

	rows := make([]domain.FeatureRow, 0)
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read record: %w", err)
		}

		playerID, err := strconv.ParseInt(record[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bad user_id %q: %w", record[0], err)
		}
		month, err := time.Parse(monthLayout, record[2])
		if err != nil {
			return nil, fmt.Errorf("bad month %q: %w", record[2], err)
		}

		features := make([]float64, len(domain.FeatureNames))
		for i := range features {
			features[i], err = strconv.ParseFloat(record[3+i], 64)
			if err != nil {
				return nil, fmt.Errorf("bad feature %s=%q: %w", domain.FeatureNames[i], record[3+i], err)
			}
		}

		label, err := strconv.ParseFloat(record[3+len(features)], 64)
		if err != nil {
			return nil, fmt.Errorf("bad label %q: %w", record[3+len(features)], err)
		}
		hasLabel, err := strconv.ParseBool(record[4+len(features)])
		if err != nil {
			return nil, fmt.Errorf("bad has_label %q: %w", record[4+len(features)], err)
		}

		rows = append(rows, domain.FeatureRow{
			PlayerID:   playerID,
			PlayerName: record[1],
			Month:      month.UTC(),
			Features:   features,
			Label:      label,
			HasLabel:   hasLabel,
		})
	}

	return rows, nil
}
