// Package config loads the engine's settings from environment variables.
//
// Unset or unparsable variables fall back to defaults; Validate then
// rejects values that parse but make no sense (negative cutoffs, unknown
// drivers, malformed locales) and reports all of them at once.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/language"
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "discussion-engine")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// EngagementConfig defines ranking and reward settings.
type EngagementConfig struct {
	TopCutoff     int    // TOP_CUTOFF: ranked positions that earn a reward
	KarmaBonus    int    // KARMA_BONUS: karma granted when premium is already banked
	PremiumMonths int    // PREMIUM_MONTHS: length of a granted premium period
	TopTierBadge  string // TOP_TIER_BADGE: badge attached when premium is activated
	MaxPostRunes  int    // MAX_POST_RUNES: upper bound on post content length
	NotifyLocale  string // NOTIFY_LOCALE: BCP 47 tag used for notification text
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // e.g. 20s
	IdleTimeout       time.Duration // e.g. 60s
	MaxHeaderBytes    int           // bytes
	GinMode           string        // debug|release|test

	// Logging / Docs
	LogLevel       string // debug|info|warn|error|fatal|panic
	LogPretty      bool   // pretty console logs in dev
	SwaggerEnabled bool   // enable Swagger UI route
	APIBasePath    string // base path for API routes

	// Database
	DBDriver    string // sqlite|postgres
	DBPath      string // SQLite path
	DatabaseURL string // Postgres DSN

	// Engagement
	Engagement EngagementConfig

	// Rate limiting
	RateRPS   float64 // tokens per second (>= 0)
	RateBurst int     // bucket size (>= 1)

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Idempotency
	IdempotencyTTL time.Duration // how long a given Idempotency-Key is valid

	// Observability
	OTEL OTELConfig
}

// Load reads the environment, normalizes a few values and validates the
// result. The returned Config is usable only when err is nil.
func Load() (Config, error) {
	cfg := Config{
		Port:              env("PORT", "8080", parseString),
		ReadTimeout:       env("READ_TIMEOUT", 15*time.Second, time.ParseDuration),
		ReadHeaderTimeout: env("READ_HEADER_TIMEOUT", 10*time.Second, time.ParseDuration),
		WriteTimeout:      env("WRITE_TIMEOUT", 20*time.Second, time.ParseDuration),
		IdleTimeout:       env("IDLE_TIMEOUT", 60*time.Second, time.ParseDuration),
		MaxHeaderBytes:    env("MAX_HEADER_BYTES", 1<<20, strconv.Atoi),
		GinMode:           oneOf(strings.ToLower(env("GIN_MODE", "release", parseString)), "release", "debug", "test"),

		LogLevel:       normalizeLevel(env("LOG_LEVEL", "info", parseString)),
		LogPretty:      env("LOG_PRETTY", false, parseBool),
		SwaggerEnabled: env("SWAGGER_ENABLED", false, parseBool),
		APIBasePath:    normalizeBasePath(env("API_BASE_PATH", "/api/v1", parseString)),

		DBDriver:    strings.ToLower(env("DB_DRIVER", "sqlite", parseString)),
		DBPath:      env("DB_PATH", "app.db", parseString),
		DatabaseURL: env("DATABASE_URL", "", parseString),

		Engagement: EngagementConfig{
			TopCutoff:     env("TOP_CUTOFF", 5, strconv.Atoi),
			KarmaBonus:    env("KARMA_BONUS", 100, strconv.Atoi),
			PremiumMonths: env("PREMIUM_MONTHS", 1, strconv.Atoi),
			TopTierBadge:  env("TOP_TIER_BADGE", "top_tier", parseString),
			MaxPostRunes:  env("MAX_POST_RUNES", 10000, strconv.Atoi),
			NotifyLocale:  env("NOTIFY_LOCALE", "en", parseString),
		},

		RateRPS:   env("RATE_RPS", 5.0, parseFloat),
		RateBurst: env("RATE_BURST", 10, strconv.Atoi),

		CORS: CORSConfig{
			AllowedOrigins: splitCSV(env("CORS_ALLOWED_ORIGINS", "", parseString)),
		},
		Security: SecurityConfig{
			EnableHSTS: env("ENABLE_HSTS", false, parseBool),
			HSTSMaxAge: env("HSTS_MAX_AGE", 180*24*time.Hour, time.ParseDuration),
		},

		IdempotencyTTL: env("IDEMPOTENCY_TTL", 24*time.Hour, time.ParseDuration),

		OTEL: OTELConfig{
			Enabled:     env("OTEL_ENABLED", false, parseBool),
			Endpoint:    env("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317", parseString),
			Insecure:    env("OTEL_EXPORTER_OTLP_INSECURE", true, parseBool),
			ServiceName: env("OTEL_SERVICE_NAME", "discussion-engine", parseString),
			SampleRatio: env("OTEL_TRACES_SAMPLER_ARG", 1.0, parseFloat),
		},
	}
	return cfg, cfg.Validate()
}

// Validate reports every invalid setting joined into one error.
func (c Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		check(false, "LOG_LEVEL %q is not one of debug, info, warn, error, fatal, panic", c.LogLevel)
	}
	check(strings.TrimSpace(c.Port) != "", "PORT must not be empty")
	check(c.ReadTimeout > 0 && c.ReadHeaderTimeout > 0 && c.WriteTimeout > 0 && c.IdleTimeout > 0,
		"server timeouts must be positive")
	check(c.MaxHeaderBytes > 0, "MAX_HEADER_BYTES must be > 0")

	switch c.DBDriver {
	case "sqlite":
		check(strings.TrimSpace(c.DBPath) != "", "DB_PATH must not be empty")
	case "postgres":
		check(strings.TrimSpace(c.DatabaseURL) != "", "DATABASE_URL must be set when DB_DRIVER=postgres")
	default:
		check(false, "DB_DRIVER %q is not one of sqlite, postgres", c.DBDriver)
	}

	e := c.Engagement
	check(e.TopCutoff >= 1, "TOP_CUTOFF must be >= 1")
	check(e.KarmaBonus >= 0, "KARMA_BONUS must be >= 0")
	check(e.PremiumMonths >= 1, "PREMIUM_MONTHS must be >= 1")
	check(e.MaxPostRunes >= 1, "MAX_POST_RUNES must be >= 1")
	if _, err := language.Parse(e.NotifyLocale); err != nil {
		check(false, "NOTIFY_LOCALE %q: %w", e.NotifyLocale, err)
	}

	check(c.RateRPS >= 0, "RATE_RPS must be >= 0")
	check(c.RateBurst >= 1, "RATE_BURST must be >= 1")
	check(c.Security.HSTSMaxAge >= 0, "HSTS_MAX_AGE must be >= 0")
	check(c.IdempotencyTTL > 0, "IDEMPOTENCY_TTL must be > 0")
	check(c.OTEL.SampleRatio >= 0 && c.OTEL.SampleRatio <= 1, "OTEL_TRACES_SAMPLER_ARG must be in [0,1]")

	return errors.Join(errs...)
}

// env returns parse(os.Getenv(key)), or def when the variable is unset,
// empty or unparsable.
func env[T any](key string, def T, parse func(string) (T, error)) T {
	raw, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return def
	}
	v, err := parse(strings.TrimSpace(raw))
	if err != nil {
		return def
	}
	return v
}

func parseString(s string) (string, error) { return s, nil }

func parseFloat(s string) (float64, error) { return strconv.ParseFloat(s, 64) }

func parseBool(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "1", "true", "yes", "y", "on":
		return true, nil
	case "0", "false", "no", "n", "off":
		return false, nil
	}
	return false, fmt.Errorf("invalid bool %q", s)
}

// oneOf returns v when it is among allowed, else allowed[0].
func oneOf(v string, allowed ...string) string {
	for _, a := range allowed {
		if v == a {
			return v
		}
	}
	return allowed[0]
}

func normalizeLevel(l string) string {
	l = strings.ToLower(l)
	if l == "warning" {
		return "warn"
	}
	return l
}

func splitCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// normalizeBasePath forces a leading slash and drops trailing ones; blank
// means root.
func normalizeBasePath(p string) string {
	p = strings.Trim(strings.TrimSpace(p), "/")
	return "/" + p
}
