package config_test

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/attendance-engine/config"
	"github.com/warp/attendance-engine/generic"
)

func TestFromEnv_Defaults(t *testing.T) {
	t.Setenv("DAY_BOUNDARY", "midnight")
	t.Setenv("APP_ENV", "")
	t.Setenv("DATABASE_URL", "")

	cfg, err := config.FromEnv()
	require.NoError(t, err)

	assert.Equal(t, generic.BoundaryMidnight, cfg.DayBoundary)
	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, "attendance.db", cfg.SQLitePath)
	assert.Equal(t, generic.DefaultCutoffHour, cfg.DayCutoffHour)
	assert.Equal(t, 2*time.Minute, cfg.FutureTolerance)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.True(t, cfg.EnableScenarios, "scenarios are on outside production")
	assert.False(t, cfg.IsProduction())
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("DAY_BOUNDARY", "early_morning")
	t.Setenv("DAY_CUTOFF_HOUR", "5")
	t.Setenv("APP_ENV", "production")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("STALE_SHIFT_AFTER", "12h")
	t.Setenv("PAYROLL_CONCURRENCY", "4")

	cfg, err := config.FromEnv()
	require.NoError(t, err)

	assert.True(t, cfg.IsProduction())
	assert.False(t, cfg.EnableScenarios)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
	assert.Equal(t, 12*time.Hour, cfg.StaleShiftAfter)
	assert.Equal(t, 4, cfg.PayrollConcurrency)

	// 04:30 JST is before the 05:00 cutoff.
	day := cfg.Resolver().WorkDay(time.Date(2025, 3, 10, 4, 30, 0, 0, generic.JST))
	assert.Equal(t, generic.NewDate(2025, 3, 9), day)
}

func TestFromEnv_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		message string
	}{
		{"missing boundary", map[string]string{"DAY_BOUNDARY": ""}, "DAY_BOUNDARY"},
		{"unknown boundary", map[string]string{"DAY_BOUNDARY": "noon"}, "DAY_BOUNDARY"},
		{"cutoff out of range", map[string]string{"DAY_BOUNDARY": "early_morning", "DAY_CUTOFF_HOUR": "13"}, "DAY_CUTOFF_HOUR"},
		{"negative tolerance", map[string]string{"DAY_BOUNDARY": "midnight", "FUTURE_TOLERANCE": "-1m"}, "FUTURE_TOLERANCE"},
		{"zero concurrency", map[string]string{"DAY_BOUNDARY": "midnight", "PAYROLL_CONCURRENCY": "0"}, "PAYROLL_CONCURRENCY"},
		{"bad log level", map[string]string{"DAY_BOUNDARY": "midnight", "LOG_LEVEL": "loud"}, "LOG_LEVEL"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := config.FromEnv()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.message)
		})
	}
}
