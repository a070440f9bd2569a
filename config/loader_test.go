package config_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/incentive-engine/config"
	"github.com/warp/incentive-engine/incentive"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("INCENTIVE_CONFIG", "")

	cfg, err := config.Load(context.Background(), "")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, []string{"_A", "_B"}, cfg.AliasSuffixes)
	assert.Equal(t, incentive.ExcludeTiered, cfg.Policy())
	assert.Equal(t, int64(100000), cfg.DefaultForwardRequirement)
	assert.Equal(t, time.Hour, cfg.CleanupInterval)
}

func TestLoad_FileThenEnv(t *testing.T) {
	// GIVEN: A YAML file and an env override for one of its keys
	// WHEN: Loading
	// THEN: File values apply, env wins where both are set

	path := filepath.Join(t.TempDir(), "incentive.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
addr: ":9090"
db_path: /tmp/x.db
total_policy: include_tiered
batch_workers: 4
cleanup_interval: 30m
aliases:
  실적: [실적합계]
`), 0o644))

	t.Setenv("INCENTIVE_BATCH_WORKERS", "16")
	t.Setenv("INCENTIVE_LOG_FORMAT", "json")

	cfg, err := config.Load(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Addr)
	assert.Equal(t, incentive.IncludeTiered, cfg.Policy())
	assert.Equal(t, 16, cfg.BatchWorkers)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 30*time.Minute, cfg.CleanupInterval)
	assert.Equal(t, []string{"실적합계"}, cfg.Aliases["실적"])

	r := cfg.Resolver()
	assert.Equal(t, []string{"실적", "실적합계", "실적_A", "실적_B"}, r.Candidates("실적"))
}

func TestLoad_Invalid(t *testing.T) {
	t.Setenv("INCENTIVE_CONFIG", "")
	t.Setenv("INCENTIVE_TOTAL_POLICY", "everything")

	_, err := config.Load(context.Background(), "")
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := config.Load(context.Background(), filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, config.ErrLoadConfig)
}

func TestConfigureLogger(t *testing.T) {
	cfg := config.New(context.Background())
	cfg.LogLevel = "debug"
	cfg.LogFormat = "json"

	logger := logrus.New()
	require.NoError(t, cfg.ConfigureLogger(logger))
	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, logger.Formatter)
}
