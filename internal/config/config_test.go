package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Scraper: ScraperConfig{
			RequestsPerMin: 10,
			Concurrency:    3,
		},
		Forecast: ForecastConfig{
			HorizonMonths: 18,
			Model:         "gbrt",
			Subsample:     0.8,
		},
	}
}

func TestValidateAcceptsDefaults(t *testing.T) {
	require.NoError(t, validConfig().Validate())
}

func TestValidateRejectsUnknownModel(t *testing.T) {
	cfg := validConfig()
	cfg.Forecast.Model = "oracle"
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsBadHorizon(t *testing.T) {
	cfg := validConfig()
	cfg.Forecast.HorizonMonths = 0
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsBadSubsample(t *testing.T) {
	cfg := validConfig()
	cfg.Forecast.Subsample = 1.5
	assert.Error(t, cfg.Validate())
}

func TestValidateRequiresCredentialPair(t *testing.T) {
	cfg := validConfig()
	cfg.UTR.Email = "coach@example.com"
	assert.Error(t, cfg.Validate())

	cfg.UTR.Password = "secret"
	require.NoError(t, cfg.Validate())
	assert.True(t, cfg.HasCredentials())
}

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("UTR_EMAIL", "coach@example.com")
	t.Setenv("UTR_PASSWORD", "secret")
	t.Setenv("FORECAST_HORIZON_MONTHS", "12")
	t.Setenv("FORECAST_MODEL", "drift")
	t.Setenv("SCRAPER_NAV_TIMEOUT_SECONDS", "45")
	t.Setenv("SERVER_RATE_LIMIT_RPS", "2.5")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "coach@example.com", cfg.UTR.Email)
	assert.Equal(t, 12, cfg.Forecast.HorizonMonths)
	assert.Equal(t, "drift", cfg.Forecast.Model)
	assert.Equal(t, 45*time.Second, cfg.Scraper.NavTimeout)
	assert.InDelta(t, 2.5, cfg.Server.RateLimitRPS, 1e-9)
	assert.True(t, cfg.HasCredentials())
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 18, cfg.Forecast.HorizonMonths)
	assert.Equal(t, "gbrt", cfg.Forecast.Model)
	assert.Equal(t, 300, cfg.Forecast.Trees)
	assert.Equal(t, 3, cfg.Forecast.FillLimit)
	assert.Equal(t, "https://app.utrsports.net", cfg.Scraper.ProfileBaseURL)
	assert.True(t, cfg.Scraper.Headless)
	assert.Equal(t, 8080, cfg.Server.Port)
}
