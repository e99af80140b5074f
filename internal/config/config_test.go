package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{})
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Addr())
	assert.Equal(t, StorageMemory, cfg.StorageType)
	assert.Equal(t, 720*time.Hour, cfg.SessionTTL)
	assert.Equal(t, time.Hour, cfg.PruneInterval)
	assert.Equal(t, []int{1, 3, 7, 15, 31}, cfg.BanDurationsDays)
	assert.Equal(t, 12, cfg.MaxStamina)
	assert.InDelta(t, 0.025, cfg.RatingWeightBest, 1e-12)
}

func TestLoadOverrides(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{
		"HTTP_HOST":             "127.0.0.1",
		"HTTP_PORT":             "9000",
		"STORAGE_TYPE":          "postgres",
		"DATABASE_URL":          "postgres://arc@localhost/arc",
		"LOGIN_DEVICE_LIMIT":    "2",
		"AUTO_BAN_MULTI_DEVICE": "true",
		"BAN_DURATIONS_DAYS":    "2,4",
		"STAMINA_RECOVER_TICK":  "10m",
	})
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9000", cfg.Addr())
	assert.Equal(t, StoragePostgres, cfg.StorageType)

	authCfg := cfg.Auth()
	assert.Equal(t, 2, authCfg.LoginDeviceLimit)
	assert.True(t, authCfg.AutoBanMultiDevice)
	assert.Equal(t, []time.Duration{48 * time.Hour, 96 * time.Hour}, authCfg.BanDurations)

	assert.Equal(t, 10*time.Minute, cfg.Stamina().RecoverTick)
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]map[string]string{
		"unknown storage":          {"STORAGE_TYPE": "sqlite"},
		"postgres without url":     {"STORAGE_TYPE": "postgres"},
		"bad port":                 {"HTTP_PORT": "0"},
		"zero stamina":             {"MAX_STAMINA": "0"},
		"recent considered > ring": {"RECENT_CONSIDERED": "40"},
		"non-positive ban":         {"BAN_DURATIONS_DAYS": "1,0"},
		"unknown log level":        {"LOG_LEVEL": "chatty"},
	}
	for name, environ := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadFrom(environ)
			assert.Error(t, err)
		})
	}
}

func TestLoadRejectsMalformedDuration(t *testing.T) {
	_, err := LoadFrom(map[string]string{"SESSION_TTL": "forever"})
	assert.Error(t, err)
}

func TestLimiterRetentionCoversWidestWindow(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{"REGISTER_WINDOW": "48h"})
	require.NoError(t, err)
	assert.Equal(t, 48*time.Hour, cfg.Limiter().Retention)
}

func TestRatingMapping(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{})
	require.NoError(t, err)

	r := cfg.Rating()
	assert.Equal(t, 30, r.BestCount)
	assert.Equal(t, 10, r.RecentCount)
	assert.Equal(t, 30, cfg.Scoring().RecentCapacity)
}

func TestSlogLevel(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{"LOG_LEVEL": "debug"})
	require.NoError(t, err)

	level, err := cfg.SlogLevel()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)
}

func TestServicesMapping(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{"LOGIN_DEVICE_LIMIT": "2", "MAX_STAMINA": "20"})
	require.NoError(t, err)

	svc := cfg.Services()
	assert.Equal(t, 2, svc.Auth.LoginDeviceLimit)
	assert.Equal(t, 20, svc.Stamina.Max)
	assert.Equal(t, 24*time.Hour, svc.Limiter.Retention)
}
