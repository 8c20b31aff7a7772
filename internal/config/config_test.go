package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	config, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, Default(), config)
	assert.Equal(t, 7, config.Engine.Weights.MinEntries)
	assert.Equal(t, 28, config.Engine.Pipeline.WeightWindow)
	assert.Equal(t, 7, config.Engine.Smoothing.ShortPeriod)
	assert.Equal(t, 28, config.Engine.Smoothing.LongPeriod)
	assert.Equal(t, 0.02, config.Engine.Smoothing.TrendThreshold)
	assert.Equal(t, 7.0, config.Conflicts.HighLoad)
}

func TestLoad_ShippedConfigMatchesDefaults(t *testing.T) {
	config, err := Load(filepath.Join("..", "..", DefaultPath))
	require.NoError(t, err)
	assert.Equal(t, Default(), config)
}

func TestLoad_YAMLOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "allostat.yaml")
	yaml := `
engine:
  min_entries: 10
  weight_window: 42
  short_period: 5
conflicts:
  high_load: 8
database:
  query_timeout: 5s
http:
  addr: ":9090"
log:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0644))

	config, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 10, config.Engine.Weights.MinEntries)
	assert.Equal(t, 42, config.Engine.Pipeline.WeightWindow)
	assert.Equal(t, 5, config.Engine.Smoothing.ShortPeriod)
	assert.Equal(t, 28, config.Engine.Smoothing.LongPeriod)
	assert.Equal(t, 3.0, config.Engine.Weights.VolatilityDivisor)
	assert.Equal(t, 8.0, config.Conflicts.HighLoad)
	assert.Equal(t, 4.0, config.Conflicts.LowRecovery)
	assert.Equal(t, 5*time.Second, config.Database.QueryTimeout)
	assert.Equal(t, ":9090", config.HTTP.Addr)
	assert.Equal(t, "debug", config.Log.Level)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("ALLOSTAT_HTTP_ADDR", ":7000")
	t.Setenv("ALLOSTAT_LOG_LEVEL", "warn")
	t.Setenv("ALLOSTAT_PG_DSN", "postgres://localhost/allostat")
	t.Setenv("ALLOSTAT_REDIS_ADDR", "redis:6379")

	config, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, ":7000", config.HTTP.Addr)
	assert.Equal(t, "warn", config.Log.Level)
	assert.True(t, config.Database.Enabled)
	assert.Equal(t, "postgres://localhost/allostat", config.Database.DSN)
	assert.True(t, config.Redis.Enabled)
	assert.Equal(t, "redis:6379", config.Redis.Addr)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{"window below gate", "engine:\n  weight_window: 3\n", "weight_window"},
		{"periods inverted", "engine:\n  short_period: 30\n", "long_period"},
		{"bad log level", "log:\n  level: loud\n", "log"},
		{"zero burst", "http:\n  burst: 0\n", "burst"},
		{"malformed", "engine: [", "failed to parse"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "allostat.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.yaml), 0644))

			_, err := Load(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "allostat.yaml")

	original := Default()
	original.Engine.Weights.MinEntries = 9
	original.Redis.TTL = 2 * time.Hour
	require.NoError(t, Save(original, path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, original, loaded)
}
