// Package config loads runtime settings from the environment (and an
// optional .env file).
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/generic"
	"github.com/warp/attendance-engine/payroll"
)

type Config struct {
	AppEnv   string
	Addr     string
	LogLevel slog.Level

	// DatabaseURL selects PostgreSQL when set; otherwise SQLitePath is used.
	DatabaseURL string
	SQLitePath  string

	// DayBoundary has no default: deployments must choose one.
	DayBoundary     generic.DayBoundary
	DayCutoffHour   int
	FutureTolerance time.Duration

	PayrollConcurrency int
	AllowedOrigins     []string

	StaleShiftAfter    time.Duration
	StaleShiftInterval time.Duration

	EnableScenarios bool
}

// Load reads .env (if present) and then the process environment.
func Load() (Config, error) {
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv builds a Config from the process environment and validates it.
func FromEnv() (Config, error) {
	cfg := Config{
		AppEnv:             getEnv("APP_ENV", "local"),
		Addr:               getEnv("APP_ADDR", ":8080"),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		SQLitePath:         getEnv("SQLITE_PATH", "attendance.db"),
		DayCutoffHour:      getEnvInt("DAY_CUTOFF_HOUR", generic.DefaultCutoffHour),
		FutureTolerance:    getEnvDuration("FUTURE_TOLERANCE", attendance.DefaultFutureTolerance),
		PayrollConcurrency: getEnvInt("PAYROLL_CONCURRENCY", payroll.DefaultConcurrency),
		AllowedOrigins:     splitList(os.Getenv("CORS_ALLOWED_ORIGINS")),
		StaleShiftAfter:    getEnvDuration("STALE_SHIFT_AFTER", 16*time.Hour),
		StaleShiftInterval: getEnvDuration("STALE_SHIFT_INTERVAL", time.Hour),
	}
	cfg.EnableScenarios = getEnvBool("ENABLE_SCENARIOS", !cfg.IsProduction())

	var problems []string

	level, err := parseLevel(getEnv("LOG_LEVEL", "info"))
	if err != nil {
		problems = append(problems, err.Error())
	}
	cfg.LogLevel = level

	if raw := os.Getenv("DAY_BOUNDARY"); raw == "" {
		problems = append(problems, "missing env: DAY_BOUNDARY (midnight or early_morning)")
	} else if b, err := generic.ParseDayBoundary(raw); err != nil {
		problems = append(problems, "DAY_BOUNDARY: "+err.Error())
	} else {
		cfg.DayBoundary = b
	}

	if cfg.DayCutoffHour < 1 || cfg.DayCutoffHour > 12 {
		problems = append(problems, fmt.Sprintf("DAY_CUTOFF_HOUR must be between 1 and 12, got %d", cfg.DayCutoffHour))
	}
	if cfg.FutureTolerance < 0 {
		problems = append(problems, "FUTURE_TOLERANCE must not be negative")
	}
	if cfg.PayrollConcurrency < 1 {
		problems = append(problems, "PAYROLL_CONCURRENCY must be at least 1")
	}

	if len(problems) > 0 {
		return cfg, errors.New(strings.Join(problems, "; "))
	}
	return cfg, nil
}

func (c Config) IsProduction() bool {
	return c.AppEnv == "production" || c.AppEnv == "prod"
}

// Resolver returns the day resolver for the configured boundary.
func (c Config) Resolver() generic.DayResolver {
	return generic.NewDayResolver(c.DayBoundary, c.DayCutoffHour)
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	return level, nil
}

func getEnv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
