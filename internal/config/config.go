// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes settings such as
// server timeouts, logging, the database DSN, session tokens, the AI webhook,
// rate limiting, and observability.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// DefaultWebhookURL is the AI endpoint used when WEBHOOK_URL is unset.
const DefaultWebhookURL = "https://webhooks.mllancamentos.com.br/webhook/demo-tributaria"

// SimulatedWebhook selects the offline keyword responder instead of HTTP.
const SimulatedWebhook = "simulated"

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// AuthConfig groups session token and cookie settings.
type AuthConfig struct {
	Secret       string        // AUTH_SECRET (HS256 signing key)
	TokenTTL     time.Duration // AUTH_TOKEN_TTL
	CookieName   string        // COOKIE_NAME
	CookieSecure bool          // COOKIE_SECURE
}

// WebhookConfig describes the outbound AI reply endpoint.
type WebhookConfig struct {
	URL     string        // WEBHOOK_URL, or "simulated"
	Timeout time.Duration // WEBHOOK_TIMEOUT
}

// Simulated reports whether the offline responder should be used.
func (w WebhookConfig) Simulated() bool {
	return strings.EqualFold(strings.TrimSpace(w.URL), SimulatedWebhook)
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "tributaria")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // e.g. 45s, must outlast the webhook
	IdleTimeout       time.Duration // e.g. 60s
	MaxHeaderBytes    int           // bytes
	GinMode           string        // debug|release|test

	// Logging / Docs
	LogLevel       string // debug|info|warn|error|fatal|panic
	LogPretty      bool   // pretty console logs in dev
	SwaggerEnabled bool   // enable Swagger UI route
	APIBasePath    string // base path for API routes

	// App
	DatabaseURL     string // sqlite path or postgres:// DSN
	MaxMessageRunes int    // cap on a single chat message
	TitleMaxLen     int    // cap on conversation titles
	Timezone        string // IANA zone for placeholder titles

	Auth    AuthConfig
	Webhook WebhookConfig

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

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadDotenv reads variables from the given .env files (default ".env")
// without overriding values already present in the environment. A missing
// file is not an error.
func LoadDotenv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	var existing []string
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			existing = append(existing, f)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	return godotenv.Load(existing...)
}

// Load reads configuration from environment variables,
// applies defaults, normalizes values, and validates the result.
func Load() (Config, error) {
	cfg := Config{
		// Server
		Port:              getenv("PORT", "8080"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 45*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		// Logging / Docs
		LogLevel:       strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty:      getbool("LOG_PRETTY", false),
		SwaggerEnabled: getbool("SWAGGER_ENABLED", false),
		APIBasePath:    normalizeBasePath(getenv("API_BASE_PATH", "/api/v1")),

		// App
		DatabaseURL:     strings.TrimSpace(getenv("DATABASE_URL", "")),
		MaxMessageRunes: getint("MAX_MESSAGE_RUNES", 5000),
		TitleMaxLen:     getint("TITLE_MAX_LEN", 80),
		Timezone:        getenv("TIMEZONE", "America/Sao_Paulo"),

		Auth: AuthConfig{
			Secret:       getenv("AUTH_SECRET", ""),
			TokenTTL:     getdur("AUTH_TOKEN_TTL", 24*time.Hour),
			CookieName:   getenv("COOKIE_NAME", "tributaria_session"),
			CookieSecure: getbool("COOKIE_SECURE", false),
		},
		Webhook: WebhookConfig{
			URL:     getenv("WEBHOOK_URL", DefaultWebhookURL),
			Timeout: getdur("WEBHOOK_TIMEOUT", 30*time.Second),
		},

		// Rate limiting
		RateRPS:   getfloat("RATE_RPS", 5.0),
		RateBurst: getint("RATE_BURST", 10),

		// Web protection
		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},
		Security: SecurityConfig{
			EnableHSTS: getbool("ENABLE_HSTS", false),
			HSTSMaxAge: getdur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		// Idempotency
		IdempotencyTTL: getdur("IDEMPOTENCY_TTL", 24*time.Hour),

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "tributaria"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}

	// --- validation ---
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return cfg, errors.New("PORT must not be empty")
	}
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.WriteTimeout <= 0 || cfg.IdleTimeout <= 0 {
		return cfg, errors.New("timeouts must be positive durations")
	}
	if cfg.MaxHeaderBytes <= 0 {
		return cfg, errors.New("MAX_HEADER_BYTES must be > 0")
	}
	if cfg.DatabaseURL == "" {
		return cfg, errors.New("DATABASE_URL must be set")
	}
	if strings.TrimSpace(cfg.Auth.Secret) == "" {
		return cfg, errors.New("AUTH_SECRET must be set")
	}
	if len(cfg.Auth.Secret) < 16 {
		return cfg, errors.New("AUTH_SECRET must be at least 16 bytes")
	}
	if cfg.Auth.TokenTTL <= 0 {
		return cfg, errors.New("AUTH_TOKEN_TTL must be > 0")
	}
	if strings.TrimSpace(cfg.Auth.CookieName) == "" {
		return cfg, errors.New("COOKIE_NAME must not be empty")
	}
	if strings.TrimSpace(cfg.Webhook.URL) == "" {
		return cfg, errors.New("WEBHOOK_URL must not be empty")
	}
	if !cfg.Webhook.Simulated() &&
		!strings.HasPrefix(cfg.Webhook.URL, "http://") && !strings.HasPrefix(cfg.Webhook.URL, "https://") {
		return cfg, errors.New("WEBHOOK_URL must be an http(s) URL or \"simulated\"")
	}
	if cfg.Webhook.Timeout <= 0 {
		return cfg, errors.New("WEBHOOK_TIMEOUT must be > 0")
	}
	if cfg.MaxMessageRunes < 1 {
		return cfg, errors.New("MAX_MESSAGE_RUNES must be >= 1")
	}
	if cfg.TitleMaxLen < 1 {
		return cfg, errors.New("TITLE_MAX_LEN must be >= 1")
	}
	if _, err := time.LoadLocation(cfg.Timezone); err != nil {
		return cfg, errors.New("TIMEZONE must be a valid IANA zone")
	}
	if cfg.RateRPS < 0 {
		return cfg, errors.New("RATE_RPS must be >= 0")
	}
	if cfg.RateBurst < 1 {
		return cfg, errors.New("RATE_BURST must be >= 1")
	}
	if cfg.Security.HSTSMaxAge < 0 {
		return cfg, errors.New("HSTS_MAX_AGE must be >= 0")
	}
	if cfg.IdempotencyTTL <= 0 {
		return cfg, errors.New("IDEMPOTENCY_TTL must be > 0")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}

	return cfg, nil
}

// Location returns the configured time zone, or UTC if it cannot be loaded.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// ---- helpers ----

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

// lookup parses k with parse, returning def when k is unset, empty or
// malformed.
func lookup[T any](k string, def T, parse func(string) (T, error)) T {
	v, ok := os.LookupEnv(k)
	if !ok || v == "" {
		return def
	}
	if out, err := parse(v); err == nil {
		return out
	}
	return def
}

func getfloat(k string, def float64) float64 {
	return lookup(k, def, func(s string) (float64, error) { return strconv.ParseFloat(s, 64) })
}

func getint(k string, def int) int { return lookup(k, def, strconv.Atoi) }

func getdur(k string, def time.Duration) time.Duration { return lookup(k, def, time.ParseDuration) }

func getbool(k string, def bool) bool {
	return lookup(k, def, func(s string) (bool, error) {
		switch strings.ToLower(strings.TrimSpace(s)) {
		case "1", "true", "yes", "y", "on":
			return true, nil
		case "0", "false", "no", "n", "off":
			return false, nil
		}
		return false, strconv.ErrSyntax
	})
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// normalizeBasePath ensures leading '/' and strips trailing '/' (except root).
func normalizeBasePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimRight(p, "/")
	}
	return p
}
