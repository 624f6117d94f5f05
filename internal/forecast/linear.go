package forecast

import (
	"gonum.org/v1/gonum/mat"

	"github.com/drewgoldman117/UTR-rating-forecast/internal/domain"
	"github.com/drewgoldman117/UTR-rating-forecast/internal/util"
	apperrors "github.com/drewgoldman117/UTR-rating-forecast/pkg/errors"
)

// Linear is ordinary least squares over the full feature vector with an
// intercept term.
type Linear struct {
	coef []float64 // intercept first
}

func NewLinear() *Linear {
	return &Linear{}
}

func (m *Linear) Kind() domain.ModelKind {
	return domain.ModelLinear
}

func (m *Linear) Fit(rows []domain.FeatureRow) error {
	rows = Labeled(rows)
	if len(rows) == 0 {
		return apperrors.NewModelError("no labeled rows to fit", "linear", "fit", nil)
	}

	p := len(rows[0].Features)
	if len(rows) < p+1 {
		return apperrors.NewModelError("not enough rows for least squares", "linear", "fit", nil)
	}

	data := make([]float64, 0, len(rows)*(p+1))
	labels := make([]float64, 0, len(rows))
	for _, row := range rows {
		data = append(data, 1)
		data = append(data, row.Features...)
		labels = append(labels, row.Label)
	}

	x := mat.NewDense(len(rows), p+1, data)
	y := mat.NewVecDense(len(rows), labels)

	var qr mat.QR
	qr.Factorize(x)

	coef := mat.NewVecDense(p+1, nil)
	if err := qr.SolveVecTo(coef, false, y); err != nil {
		return apperrors.NewModelError("least squares solve failed", "linear", "fit", err)
	}

	m.coef = make([]float64, p+1)
	for i := range m.coef {
		m.coef[i] = coef.AtVec(i)
	}

	return nil
}

func (m *Linear) Predict(features []float64) float64 {
	if len(m.coef) != len(features)+1 {
		return 0
	}
	pred := m.coef[0]
	for i, f := range features {
		pred += m.coef[i+1] * f
	}
	return util.Clamp(pred, domain.MinRating, domain.MaxRating)
}
