package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Env      string
	HTTPPort string

	DatabaseDriver string
	DatabaseURL    string

	SessionSecret  string
	SessionTTL     time.Duration
	CookieDomain   string
	CookieSecure   bool
	CookieSameSite string

	CORSAllowedOrigins []string

	RPID          string
	RPDisplayName string
	RPOrigins     []string

	ChallengeTTL          time.Duration
	ChallengeStoreBackend string

	RedisAddr     string
	RedisUsername string
	RedisPassword string
	RedisDB       int

	RateLimitRedisEnabled bool
	RateLimitRedisPrefix  string
	AuthRateLimitPerMin   int
	APIRateLimitPerMin    int

	ReadinessProbeTimeout  time.Duration
	ServerStartGracePeriod time.Duration
	ShutdownTimeout        time.Duration

	OTELServiceName           string
	OTELEnvironment           string
	OTELExporterOTLPEndpoint  string
	OTELExporterOTLPInsecure  bool
	OTELMetricsExportInterval time.Duration
	OTELTraceSamplingRatio    float64
	OTELMetricsEnabled        bool
	OTELTracingEnabled        bool
	OTELLogsEnabled           bool
	OTELLogLevel              string
}

func Load() (*Config, error) {
	env := getEnv("APP_ENV", "development")
	driver := strings.ToLower(getEnv("DATABASE_DRIVER", "sqlite"))

	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" && driver == "sqlite" {
		databaseURL = "file:credlock.db"
	}

	cfg := &Config{
		Env:            env,
		HTTPPort:       getEnv("HTTP_PORT", "8080"),
		DatabaseDriver: driver,
		DatabaseURL:    databaseURL,

		SessionSecret:  os.Getenv("SESSION_SECRET"),
		CookieDomain:   os.Getenv("COOKIE_DOMAIN"),
		CookieSecure:   getEnvBool("COOKIE_SECURE", true),
		CookieSameSite: strings.ToLower(getEnv("COOKIE_SAMESITE", "lax")),

		CORSAllowedOrigins: splitCSV(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000")),

		RPID:          getEnv("WEBAUTHN_RP_ID", "localhost"),
		RPDisplayName: getEnv("WEBAUTHN_RP_DISPLAY_NAME", "Credlock"),
		RPOrigins:     splitCSV(getEnv("WEBAUTHN_RP_ORIGINS", "http://localhost:3000")),

		ChallengeStoreBackend: strings.ToLower(getEnv("CHALLENGE_STORE", "memory")),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisUsername: os.Getenv("REDIS_USERNAME"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		RateLimitRedisEnabled: getEnvBool("RATE_LIMIT_REDIS_ENABLED", false),
		RateLimitRedisPrefix:  getEnv("RATE_LIMIT_REDIS_PREFIX", "credlock:ratelimit"),
		AuthRateLimitPerMin:   getEnvInt("AUTH_RATE_LIMIT_PER_MIN", 30),
		APIRateLimitPerMin:    getEnvInt("API_RATE_LIMIT_PER_MIN", 120),

		OTELServiceName:          getEnv("OTEL_SERVICE_NAME", "credlock"),
		OTELEnvironment:          getEnv("OTEL_ENVIRONMENT", env),
		OTELExporterOTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		OTELExporterOTLPInsecure: getEnvBool("OTEL_EXPORTER_OTLP_INSECURE", true),
		OTELTraceSamplingRatio:   getEnvFloat("OTEL_TRACE_SAMPLING_RATIO", 1.0),
		OTELMetricsEnabled:       getEnvBool("OTEL_METRICS_ENABLED", true),
		OTELTracingEnabled:       getEnvBool("OTEL_TRACING_ENABLED", true),
		OTELLogsEnabled:          getEnvBool("OTEL_LOGS_ENABLED", true),
		OTELLogLevel:             strings.ToLower(getEnv("OTEL_LOG_LEVEL", "info")),
	}

	for _, d := range []struct {
		dst *time.Duration
		key string
		def string
	}{
		{&cfg.SessionTTL, "SESSION_TTL", "24h"},
		{&cfg.ChallengeTTL, "CHALLENGE_TTL", "5m"},
		{&cfg.ReadinessProbeTimeout, "READINESS_PROBE_TIMEOUT", "2s"},
		{&cfg.ServerStartGracePeriod, "SERVER_START_GRACE_PERIOD", "10s"},
		{&cfg.ShutdownTimeout, "SHUTDOWN_TIMEOUT", "15s"},
		{&cfg.OTELMetricsExportInterval, "OTEL_METRICS_EXPORT_INTERVAL", "10s"},
	} {
		v, err := time.ParseDuration(getEnv(d.key, d.def))
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", d.key, err)
		}
		*d.dst = v
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []string
	switch c.DatabaseDriver {
	case "sqlite", "postgres":
	default:
		errs = append(errs, "DATABASE_DRIVER must be sqlite or postgres")
	}
	if c.DatabaseURL == "" {
		errs = append(errs, "DATABASE_URL is required")
	}
	if len(c.SessionSecret) < 32 {
		errs = append(errs, "SESSION_SECRET must be at least 32 chars")
	}
	if c.SessionTTL < time.Minute || c.SessionTTL > (30*24*time.Hour) {
		errs = append(errs, "SESSION_TTL must be between 1m and 30d")
	}
	switch c.CookieSameSite {
	case "lax", "strict", "none":
	default:
		errs = append(errs, "COOKIE_SAMESITE must be one of lax, strict, none")
	}
	if c.CookieSameSite == "none" && !c.CookieSecure {
		errs = append(errs, "COOKIE_SAMESITE=none requires COOKIE_SECURE=true")
	}
	if c.RPID == "" {
		errs = append(errs, "WEBAUTHN_RP_ID is required")
	}
	if len(c.RPOrigins) == 0 {
		errs = append(errs, "WEBAUTHN_RP_ORIGINS must list at least one origin")
	}
	if c.ChallengeTTL < 10*time.Second || c.ChallengeTTL > (30*time.Minute) {
		errs = append(errs, "CHALLENGE_TTL must be between 10s and 30m")
	}
	switch c.ChallengeStoreBackend {
	case "memory", "redis":
	default:
		errs = append(errs, "CHALLENGE_STORE must be memory or redis")
	}
	if (c.ChallengeStoreBackend == "redis" || c.RateLimitRedisEnabled) && c.RedisAddr == "" {
		errs = append(errs, "REDIS_ADDR is required when redis is used")
	}
	if c.AuthRateLimitPerMin <= 0 {
		errs = append(errs, "AUTH_RATE_LIMIT_PER_MIN must be > 0")
	}
	if c.APIRateLimitPerMin <= 0 {
		errs = append(errs, "API_RATE_LIMIT_PER_MIN must be > 0")
	}
	if c.ReadinessProbeTimeout <= 0 {
		errs = append(errs, "READINESS_PROBE_TIMEOUT must be > 0")
	}
	if c.ShutdownTimeout <= 0 {
		errs = append(errs, "SHUTDOWN_TIMEOUT must be > 0")
	}
	if (c.OTELMetricsEnabled || c.OTELTracingEnabled || c.OTELLogsEnabled) && c.OTELExporterOTLPEndpoint == "" {
		errs = append(errs, "OTEL_EXPORTER_OTLP_ENDPOINT is required when OTel is enabled")
	}
	if c.OTELTraceSamplingRatio < 0 || c.OTELTraceSamplingRatio > 1 {
		errs = append(errs, "OTEL_TRACE_SAMPLING_RATIO must be between 0 and 1")
	}
	if c.OTELMetricsExportInterval <= 0 {
		errs = append(errs, "OTEL_METRICS_EXPORT_INTERVAL must be > 0")
	}
	if !isValidLogLevel(c.OTELLogLevel) {
		errs = append(errs, "OTEL_LOG_LEVEL must be one of debug, info, warn, error")
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

func isValidLogLevel(v string) bool {
	switch strings.ToLower(v) {
	case "debug", "info", "warn", "error":
		return true
	default:
		return false
	}
}

func getEnv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func getEnvBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getEnvFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func splitCSV(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		trim := strings.TrimSpace(p)
		if trim != "" {
			out = append(out, trim)
		}
	}
	return out
}
