package forecast

import (
	"math"
	"math/rand"

	"github.com/drewgoldman117/UTR-rating-forecast/internal/domain"
	"github.com/drewgoldman117/UTR-rating-forecast/internal/util"
	apperrors "github.com/drewgoldman117/UTR-rating-forecast/pkg/errors"
)

// GBRTConfig tunes the boosting run. Zero values fall back to the defaults
// exposed through env config.
type GBRTConfig struct {
	Trees        int
	MaxDepth     int
	LearningRate float64
	MinLeaf      int
	Subsample    float64
	Seed         int64
	// Quantile switches the loss from squared error to pinball at this
	// level when set in (0, 1).
	Quantile float64
}

func (c GBRTConfig) withDefaults() GBRTConfig {
	if c.Trees <= 0 {
		c.Trees = 300
	}
	if c.MaxDepth <= 0 {
		c.MaxDepth = 3
	}
	if c.LearningRate <= 0 {
		c.LearningRate = 0.05
	}
	if c.MinLeaf <= 0 {
		c.MinLeaf = 5
	}
	if c.Subsample <= 0 || c.Subsample > 1 {
		c.Subsample = 0.8
	}
	if c.Seed == 0 {
		c.Seed = 1
	}
	return c
}

// GBRT is gradient-boosted regression trees: shallow CART learners fit to
// loss gradients with shrinkage and row subsampling, validation early stop.
type GBRT struct {
	cfg   GBRTConfig
	base  float64
	trees []*regressionTree
}

const (
	validationFraction = 0.2
	// minValidationRows gates early stopping, tiny datasets train on
	// everything for the full tree budget.
	minValidationRows = 10
	earlyStopPatience = 30
)

func NewGBRT(cfg GBRTConfig) *GBRT {
	return &GBRT{cfg: cfg.withDefaults()}
}

func (m *GBRT) Kind() domain.ModelKind {
	return domain.ModelGBRT
}

func (m *GBRT) Fit(rows []domain.FeatureRow) error {
	rows = Labeled(rows)
	if len(rows) < 2*m.cfg.MinLeaf {
		return apperrors.NewModelError("not enough labeled rows to boost", "gbrt", "fit", nil)
	}

	x, y := featureMatrix(rows)
	rng := rand.New(rand.NewSource(m.cfg.Seed))

	// Shuffled chronology-agnostic split; backtests guard against leakage
	// at the evaluation level.
	perm := rng.Perm(len(rows))
	valSize := int(float64(len(rows)) * validationFraction)
	if valSize < minValidationRows {
		valSize = 0
	}
	trainIdx := perm[valSize:]
	valIdx := perm[:valSize]

	m.base = m.initialEstimate(y, trainIdx)
	m.trees = m.trees[:0]

	pred := make([]float64, len(rows))
	for i := range pred {
		pred[i] = m.base
	}

	gradients := make([]float64, len(rows))
	residuals := make([]float64, len(rows))

	bestValLoss := math.Inf(1)
	bestTrees := 0
	sinceBest := 0

	for iter := 0; iter < m.cfg.Trees; iter++ {
		for _, idx := range trainIdx {
			gradients[idx] = m.negGradient(y[idx], pred[idx])
			residuals[idx] = y[idx] - pred[idx]
		}

		sample := subsample(trainIdx, m.cfg.Subsample, rng)

		tree := newRegressionTree(m.cfg.MaxDepth, m.cfg.MinLeaf)
		tree.fit(x, gradients, sample)
		if m.cfg.Quantile > 0 && m.cfg.Quantile < 1 {
			tree.relabelLeaves(x, residuals, sample, quantileAgg(m.cfg.Quantile))
		}

		for i := range pred {
			pred[i] += m.cfg.LearningRate * tree.predict(x[i])
		}
		m.trees = append(m.trees, tree)

		if valSize == 0 {
			continue
		}

		valLoss := 0.0
		for _, idx := range valIdx {
			valLoss += m.loss(y[idx], pred[idx])
		}
		valLoss /= float64(valSize)

		if valLoss < bestValLoss-1e-9 {
			bestValLoss = valLoss
			bestTrees = len(m.trees)
			sinceBest = 0
		} else {
			sinceBest++
			if sinceBest >= earlyStopPatience {
				break
			}
		}
	}

	if valSize > 0 && bestTrees > 0 {
		m.trees = m.trees[:bestTrees]
	}

	return nil
}

func (m *GBRT) Predict(features []float64) float64 {
	pred := m.base
	for _, tree := range m.trees {
		pred += m.cfg.LearningRate * tree.predict(features)
	}
	return util.Clamp(pred, domain.MinRating, domain.MaxRating)
}

// NumTrees reports the fitted ensemble size after early stopping.
func (m *GBRT) NumTrees() int {
	return len(m.trees)
}

func (m *GBRT) initialEstimate(y []float64, indices []int) float64 {
	vals := make([]float64, 0, len(indices))
	for _, idx := range indices {
		vals = append(vals, y[idx])
	}
	if q := m.cfg.Quantile; q > 0 && q < 1 {
		return util.Quantile(vals, q)
	}
	return util.Mean(vals)
}

func (m *GBRT) negGradient(y, pred float64) float64 {
	if q := m.cfg.Quantile; q > 0 && q < 1 {
		// Pinball loss gradient
		if y >= pred {
			return q
		}
		return q - 1
	}
	return y - pred
}

func (m *GBRT) loss(y, pred float64) float64 {
	if q := m.cfg.Quantile; q > 0 && q < 1 {
		return PinballLoss(y, pred, q)
	}
	d := y - pred
	return d * d
}

// PinballLoss is the quantile regression loss at level q.
func PinballLoss(actual, predicted, q float64) float64 {
	diff := actual - predicted
	if diff >= 0 {
		return q * diff
	}
	return (q - 1) * diff
}

func subsample(indices []int, fraction float64, rng *rand.Rand) []int {
	if fraction >= 1 {
		return indices
	}
	size := int(math.Ceil(float64(len(indices)) * fraction))
	if size < 1 {
		size = 1
	}
	picked := make([]int, 0, size)
	for _, offset := range rng.Perm(len(indices))[:size] {
		picked = append(picked, indices[offset])
	}
	return picked
}
