// Package backtest evaluates forecast models with rolling-origin splits:
// for every cutoff month, models train only on labels realized by the
// cutoff and are scored on the ratings observed a full horizon later.
package backtest

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/drewgoldman117/UTR-rating-forecast/internal/domain"
	"github.com/drewgoldman117/UTR-rating-forecast/internal/forecast"
	"github.com/drewgoldman117/UTR-rating-forecast/internal/util"
)

type Config struct {
	HorizonMonths int
	StrideMonths  int
	MinTrainRows  int
	Models        []domain.ModelKind
	GBRT          forecast.GBRTConfig
}

func (c Config) withDefaults() Config {
	if c.HorizonMonths <= 0 {
		c.HorizonMonths = 18
	}
	if c.StrideMonths <= 0 {
		c.StrideMonths = 3
	}
	if c.MinTrainRows <= 0 {
		c.MinTrainRows = 30
	}
	if len(c.Models) == 0 {
		c.Models = []domain.ModelKind{
			domain.ModelPersistence,
			domain.ModelDrift,
			domain.ModelLinear,
			domain.ModelGBRT,
		}
	}
	return c
}

type ModelReport struct {
	Model       domain.ModelKind `json:"model"`
	Evaluations int              `json:"evaluations"`
	MAE         float64          `json:"mae"`
	RMSE        float64          `json:"rmse"`
}

type Report struct {
	Cutoffs         int           `json:"cutoffs"`
	Models          []ModelReport `json:"models"`
	PinballQ10      float64       `json:"pinball_q10"`
	PinballQ50      float64       `json:"pinball_q50"`
	PinballQ90      float64       `json:"pinball_q90"`
	Coverage80      float64       `json:"coverage_80"`
	BandEvaluations int           `json:"band_evaluations"`
}

type Runner struct {
	cfg    Config
	logger *zap.Logger
}

func NewRunner(cfg Config, logger *zap.Logger) *Runner {
	return &Runner{cfg: cfg.withDefaults(), logger: logger}
}

// Run evaluates every configured model over all rolling cutoffs in the
// dataset. Rows must carry realized labels; feature-only rows are ignored.
func (r *Runner) Run(rows []domain.FeatureRow) (*Report, error) {
	labeled := forecast.Labeled(rows)
	if len(labeled) == 0 {
		return nil, fmt.Errorf("no labeled rows to backtest")
	}

	cutoffs := r.cutoffs(labeled)
	if len(cutoffs) == 0 {
		return nil, fmt.Errorf("dataset spans less than one horizon, nothing to backtest")
	}

	pointAcc := make(map[domain.ModelKind]*accumulator, len(r.cfg.Models))
	for _, kind := range r.cfg.Models {
		pointAcc[kind] = &accumulator{}
	}

	var (
		pinball10, pinball50, pinball90 float64
		covered, bandEvals              int
		usedCutoffs                     int
	)

	for _, cutoff := range cutoffs {
		train, test := r.split(labeled, cutoff)
		if len(train) < r.cfg.MinTrainRows || len(test) == 0 {
			continue
		}
		usedCutoffs++

		for _, kind := range r.cfg.Models {
			model := forecast.NewModel(kind, r.cfg.HorizonMonths, r.cfg.GBRT)
			if err := model.Fit(train); err != nil {
				r.logger.Warn("Backtest fit failed",
					zap.String("model", kind.String()),
					zap.Time("cutoff", cutoff),
					zap.Error(err))
				continue
			}
			for _, row := range test {
				pointAcc[kind].add(row.Label, model.Predict(row.Features))
			}
		}

		set := forecast.NewQuantileSet(r.cfg.GBRT)
		if err := set.Fit(train); err != nil {
			r.logger.Debug("Backtest quantile fit skipped",
				zap.Time("cutoff", cutoff),
				zap.Error(err))
			continue
		}
		for _, row := range test {
			q10, q50, q90 := set.PredictBand(row.Features)
			pinball10 += forecast.PinballLoss(row.Label, q10, forecast.QuantileLow)
			pinball50 += forecast.PinballLoss(row.Label, q50, forecast.QuantileMedian)
			pinball90 += forecast.PinballLoss(row.Label, q90, forecast.QuantileHigh)
			if row.Label >= q10 && row.Label <= q90 {
				covered++
			}
			bandEvals++
		}
	}

	if usedCutoffs == 0 {
		return nil, fmt.Errorf("no cutoff had enough training data (min %d rows)", r.cfg.MinTrainRows)
	}

	report := &Report{
		Cutoffs:         usedCutoffs,
		BandEvaluations: bandEvals,
	}
	for _, kind := range r.cfg.Models {
		acc := pointAcc[kind]
		report.Models = append(report.Models, ModelReport{
			Model:       kind,
			Evaluations: acc.n,
			MAE:         acc.mae(),
			RMSE:        acc.rmse(),
		})
	}
	if bandEvals > 0 {
		report.PinballQ10 = pinball10 / float64(bandEvals)
		report.PinballQ50 = pinball50 / float64(bandEvals)
		report.PinballQ90 = pinball90 / float64(bandEvals)
		report.Coverage80 = float64(covered) / float64(bandEvals)
	}

	r.logger.Info("Backtest complete",
		zap.Int("cutoffs", report.Cutoffs),
		zap.Int("band_evaluations", report.BandEvaluations),
		zap.Float64("coverage_80", report.Coverage80),
	)

	return report, nil
}

// cutoffs enumerates evaluation months from the first month that can have a
// realized training label to the last month with a test label, by stride.
func (r *Runner) cutoffs(rows []domain.FeatureRow) []time.Time {
	var first, last time.Time
	for i, row := range rows {
		if i == 0 || row.Month.Before(first) {
			first = row.Month
		}
		if row.Month.After(last) {
			last = row.Month
		}
	}

	start := util.AddMonths(first, r.cfg.HorizonMonths)
	cutoffs := make([]time.Time, 0)
	for month := start; !month.After(last); month = util.AddMonths(month, r.cfg.StrideMonths) {
		cutoffs = append(cutoffs, month)
	}
	return cutoffs
}

// split partitions rows at a cutoff without lookahead: training rows must
// have their label realized on or before the cutoff, test rows sit exactly
// at the cutoff and are scored against the future the models cannot see.
func (r *Runner) split(rows []domain.FeatureRow, cutoff time.Time) (train, test []domain.FeatureRow) {
	for _, row := range rows {
		labelMonth := util.AddMonths(row.Month, r.cfg.HorizonMonths)
		if !labelMonth.After(cutoff) {
			train = append(train, row)
		}
		if row.Month.Equal(cutoff) {
			test = append(test, row)
		}
	}
	return train, test
}

// WriteCSV renders a per-model metric table.
func WriteCSV(w io.Writer, report *Report) error {
	cw := csv.NewWriter(w)

	if err := cw.Write([]string{"model", "evaluations", "mae", "rmse"}); err != nil {
		return err
	}

	models := make([]ModelReport, len(report.Models))
	copy(models, report.Models)
	sort.Slice(models, func(i, j int) bool { return models[i].MAE < models[j].MAE })

	for _, m := range models {
		record := []string{
			m.Model.String(),
			strconv.Itoa(m.Evaluations),
			strconv.FormatFloat(m.MAE, 'f', 4, 64),
			strconv.FormatFloat(m.RMSE, 'f', 4, 64),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}
