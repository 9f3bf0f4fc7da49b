package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "Tunisia", cfg.Extraction.DefaultSite)
	assert.Equal(t, []string{"PL", "SP"}, cfg.Extraction.SuffixTokens)
	assert.Equal(t, 24*time.Hour, cfg.Storage.StagingTTL)
	assert.Equal(t, "0 * * * *", cfg.Scheduler.SweepSchedule)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("POSTGRES_HOST", "db")
	t.Setenv("POSTGRES_PORT", "6543")
	t.Setenv("SUFFIX_TOKENS", " PL , SP,, X ")
	t.Setenv("STAGING_TTL", "90m")
	t.Setenv("TABLE_Y_TOLERANCE", "4.5")
	t.Setenv("METRICS_ENABLED", "false")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"PL", "SP", "X"}, cfg.Extraction.SuffixTokens)
	assert.Equal(t, 90*time.Minute, cfg.Storage.StagingTTL)
	assert.Equal(t, 4.5, cfg.Extraction.TableYTolerance)
	assert.False(t, cfg.Observability.MetricsEnabled)
	assert.Equal(t,
		"host=db port=6543 user=postgres password=postgres dbname=delivery-ledger sslmode=disable",
		cfg.Database.DSN())
}

func TestLoad_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("POSTGRES_PORT", "not-a-port")
	t.Setenv("STAGING_TTL", "soon")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, 24*time.Hour, cfg.Storage.StagingTTL)
}

func TestLoad_RejectsNonPositiveTTL(t *testing.T) {
	t.Setenv("STAGING_TTL", "-1h")

	_, err := Load()
	assert.ErrorContains(t, err, "STAGING_TTL")
}

func TestLogConfig_Logger(t *testing.T) {
	logger := LogConfig{Level: "debug", Format: "json"}.Logger()
	assert.True(t, logger.Enabled(t.Context(), slog.LevelDebug))

	logger = LogConfig{Level: "bogus"}.Logger()
	assert.False(t, logger.Enabled(t.Context(), slog.LevelDebug))
}
