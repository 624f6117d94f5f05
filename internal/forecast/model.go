package forecast

import (
	"github.com/drewgoldman117/UTR-rating-forecast/internal/domain"
)

// Model is a direct forecaster: trained on feature rows whose label is the
// rating `horizon` months later, it predicts that label for a new row.
type Model interface {
	Kind() domain.ModelKind
	Fit(rows []domain.FeatureRow) error
	Predict(features []float64) float64
}

// Labeled filters the rows a model may train on.
func Labeled(rows []domain.FeatureRow) []domain.FeatureRow {
	out := make([]domain.FeatureRow, 0, len(rows))
	for _, row := range rows {
		if row.HasLabel {
			out = append(out, row)
		}
	}
	return out
}

func featureMatrix(rows []domain.FeatureRow) ([][]float64, []float64) {
	x := make([][]float64, len(rows))
	y := make([]float64, len(rows))
	for i, row := range rows {
		x[i] = row.Features
		y[i] = row.Label
	}
	return x, y
}
