package config

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := load(viper.New())

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)
	assert.False(t, cfg.Cache.Enabled)
	assert.Equal(t, 3600, cfg.Cache.ForecastTTLSeconds)
	assert.Equal(t, "forecast-models", cfg.Storage.Bucket)
	assert.Empty(t, cfg.Storage.Prefix)

	f := cfg.Forecast
	assert.Equal(t, 90, f.HistoryDays)
	assert.Equal(t, 7, f.DefaultHorizonDays)
	assert.Equal(t, 7, f.MinSaleEvents)
	assert.Equal(t, 14, f.MinPopulatedDays)
	assert.Equal(t, 10, f.MinTrainingRows)
	assert.InDelta(t, 0.2, f.TestRatio, 1e-12)
	assert.True(t, f.RefitFullWindow)
	assert.True(t, f.TrainOnMiss)
	assert.Equal(t, 4, f.RetrainWorkers)
	assert.Zero(t, f.RetrainIntervalMinutes)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("FORECAST_HISTORY_DAYS", "120")
	t.Setenv("FORECAST_TRAIN_ON_MISS", "false")
	t.Setenv("CACHE_ENABLED", "true")
	t.Setenv("STORAGE_BUCKET", "archive")

	cfg := load(viper.New())

	assert.Equal(t, 120, cfg.Forecast.HistoryDays)
	assert.False(t, cfg.Forecast.TrainOnMiss)
	assert.True(t, cfg.Cache.Enabled)
	assert.Equal(t, "archive", cfg.Storage.Bucket)
}

func TestForecastConfig_Engine(t *testing.T) {
	engine := load(viper.New()).Forecast.Engine()

	assert.Equal(t, 90, engine.WindowDays)
	assert.InDelta(t, 0.2, engine.Policy.SafetyBufferRatio, 1e-12)
	assert.InDelta(t, 0.5, engine.Policy.CycleStockRatio, 1e-12)
	assert.Equal(t, 10, engine.Policy.FallbackOrderPadding)
	assert.InDelta(t, 70, engine.Policy.HighConfidenceAccuracy, 1e-12)
}
