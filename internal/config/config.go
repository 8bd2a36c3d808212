package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the full environment-driven configuration of the service.
// Every field has a development default; only secrets are required
// outside the dev profile.
type Config struct {
	Profile  string
	HTTPAddr string

	DatabaseURL string

	RedisEnabled bool
	RedisAddr    string
	RedisDB      int

	SessionTokenSecret string
	SessionDuration    time.Duration
	IdleThreshold      time.Duration
	SweepInterval      time.Duration

	APIRateLimitRPM  int
	AuthRateLimitRPM int
	CORSOrigins      []string

	LogLevelName string

	OTELServiceName           string
	OTELEnvironment           string
	OTELExporterOTLPEndpoint  string
	OTELExporterOTLPInsecure  bool
	OTELMetricsEnabled        bool
	OTELTracesEnabled         bool
	OTELLogsEnabled           bool
	OTELMetricsExportInterval time.Duration
	OTELTracesSampleRatio     float64
}

func Load(ctx context.Context) (*Config, error) {
	cfg := &Config{
		Profile:  getEnv("APP_PROFILE", "dev"),
		HTTPAddr: getEnv("HTTP_ADDR", ":8080"),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		RedisAddr: getEnv("REDIS_ADDR", "localhost:6379"),

		SessionTokenSecret: getEnv("SESSION_TOKEN_SECRET", ""),

		APIRateLimitRPM:  0,
		AuthRateLimitRPM: 0,

		LogLevelName: getEnv("LOG_LEVEL", "info"),

		OTELServiceName:          getEnv("OTEL_SERVICE_NAME", "pos-device-access"),
		OTELEnvironment:          getEnv("OTEL_ENVIRONMENT", "dev"),
		OTELExporterOTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
	}

	var err error
	if cfg.RedisEnabled, err = getBool("REDIS_ENABLED", false); err != nil {
		return nil, loadErr(ctx, cfg, err)
	}
	if cfg.RedisDB, err = getInt("REDIS_DB", 0); err != nil {
		return nil, loadErr(ctx, cfg, err)
	}
	if cfg.SessionDuration, err = getDuration("SESSION_DURATION", 8*time.Hour); err != nil {
		return nil, loadErr(ctx, cfg, err)
	}
	if cfg.IdleThreshold, err = getDuration("SESSION_IDLE_THRESHOLD", 30*time.Minute); err != nil {
		return nil, loadErr(ctx, cfg, err)
	}
	if cfg.SweepInterval, err = getDuration("SESSION_SWEEP_INTERVAL", 5*time.Minute); err != nil {
		return nil, loadErr(ctx, cfg, err)
	}
	if cfg.APIRateLimitRPM, err = getInt("API_RATE_LIMIT_RPM", 600); err != nil {
		return nil, loadErr(ctx, cfg, err)
	}
	if cfg.AuthRateLimitRPM, err = getInt("AUTH_RATE_LIMIT_RPM", 120); err != nil {
		return nil, loadErr(ctx, cfg, err)
	}
	if cfg.OTELExporterOTLPInsecure, err = getBool("OTEL_EXPORTER_OTLP_INSECURE", true); err != nil {
		return nil, loadErr(ctx, cfg, err)
	}
	if cfg.OTELMetricsEnabled, err = getBool("OTEL_METRICS_ENABLED", false); err != nil {
		return nil, loadErr(ctx, cfg, err)
	}
	if cfg.OTELTracesEnabled, err = getBool("OTEL_TRACES_ENABLED", false); err != nil {
		return nil, loadErr(ctx, cfg, err)
	}
	if cfg.OTELLogsEnabled, err = getBool("OTEL_LOGS_ENABLED", false); err != nil {
		return nil, loadErr(ctx, cfg, err)
	}
	if cfg.OTELMetricsExportInterval, err = getDuration("OTEL_METRICS_EXPORT_INTERVAL", 15*time.Second); err != nil {
		return nil, loadErr(ctx, cfg, err)
	}
	if cfg.OTELTracesSampleRatio, err = getFloat("OTEL_TRACES_SAMPLE_RATIO", 1.0); err != nil {
		return nil, loadErr(ctx, cfg, err)
	}
	if raw := strings.TrimSpace(os.Getenv("CORS_ORIGINS")); raw != "" {
		for _, origin := range strings.Split(raw, ",") {
			if o := strings.TrimSpace(origin); o != "" {
				cfg.CORSOrigins = append(cfg.CORSOrigins, o)
			}
		}
	}

	if err := cfg.validate(); err != nil {
		err = fmt.Errorf("validate config: %w", err)
		return nil, loadErr(ctx, cfg, err)
	}
	recordConfigValidationEvent(ctx, cfg.Profile, "success", "none")
	return cfg, nil
}

func loadErr(ctx context.Context, cfg *Config, err error) error {
	recordConfigValidationEvent(ctx, cfg.Profile, "failure", classifyConfigLoadError(err))
	return err
}

func (c *Config) validate() error {
	if c.Profile != "dev" {
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required")
		}
		if c.SessionTokenSecret == "" {
			return fmt.Errorf("SESSION_TOKEN_SECRET is required")
		}
	}
	if c.SessionTokenSecret == "" {
		c.SessionTokenSecret = "dev-insecure-session-secret"
	}
	if c.SessionDuration <= 0 {
		return fmt.Errorf("SESSION_DURATION must be positive")
	}
	if c.IdleThreshold <= 0 || c.IdleThreshold >= c.SessionDuration {
		return fmt.Errorf("SESSION_IDLE_THRESHOLD must be positive and below SESSION_DURATION")
	}
	if c.OTELTracesSampleRatio < 0 || c.OTELTracesSampleRatio > 1 {
		return fmt.Errorf("OTEL_TRACES_SAMPLE_RATIO must be within [0,1]")
	}
	return nil
}

func (c *Config) LogLevel() slog.Level {
	switch strings.ToLower(strings.TrimSpace(c.LogLevelName)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getBool(key string, fallback bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("parse %s: %w", key, err)
	}
	return v, nil
}

func getInt(key string, fallback int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return v, nil
}

func getFloat(key string, fallback float64) (float64, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return v, nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return v, nil
}
