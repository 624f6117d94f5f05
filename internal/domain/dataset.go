package domain

import "time"

// FeatureNames is the fixed feature ordering shared by the dataset builder,
// the models, and the CSV codec. Index positions are load-bearing.
var FeatureNames = []string{
	"rating",
	"lag_1m",
	"lag_3m",
	"lag_6m",
	"lag_12m",
	"delta_1m",
	"delta_3m",
	"delta_6m",
	"delta_12m",
	"roll_mean_12m",
	"roll_std_12m",
	"months_active",
	"obs_count",
	"months_since_obs",
}

// FeatureRow is one supervised example: features at a month, label at
// month + horizon. Rows without a realized label are prediction-only.
type FeatureRow struct {
	PlayerID   int64     `json:"player_id"`
	PlayerName string    `json:"player_name"`
	Month      time.Time `json:"month"`
	Features   []float64 `json:"features"`
	Label      float64   `json:"label"`
	HasLabel   bool      `json:"has_label"`
}
