package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"partykit/internal/domain"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv             string
	LogLevel           string
	Port               string
	GeminiAPIKey       string
	GeminiModel        string
	GeminiBaseURL      string
	ImageProvider      string
	MaxInFlight        int
	HTTPClientTimeout  time.Duration
	HTTPReadTimeout    time.Duration
	HTTPWriteTimeout   time.Duration
	HTTPIdleTimeout    time.Duration
	RateLimitPerMin    int
	MaxUploadBytes     int64
	SessionTTL         time.Duration
	DefaultLocale      string
	GeoIPDBPath        string
	CORSAllowedOrigins []string
	OutputDir          string
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:             getEnv("APP_ENV", "development"),
		LogLevel:           os.Getenv("LOG_LEVEL"),
		Port:               getEnv("PORT", "8080"),
		GeminiAPIKey:       strings.TrimSpace(os.Getenv("GEMINI_API_KEY")),
		GeminiModel:        getEnv("GEMINI_MODEL", "gemini-2.5-flash-image"),
		GeminiBaseURL:      getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta"),
		ImageProvider:      getEnv("IMAGE_PROVIDER", domain.ProviderGemini),
		MaxInFlight:        getEnvInt("MAX_IN_FLIGHT_REQUESTS", 1),
		HTTPClientTimeout:  time.Second * time.Duration(getEnvInt("HTTP_CLIENT_TIMEOUT_SECONDS", 120)),
		HTTPReadTimeout:    time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 30)),
		HTTPWriteTimeout:   time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 60)),
		HTTPIdleTimeout:    time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:    getEnvInt("RATE_LIMIT_PER_MINUTE", 30),
		MaxUploadBytes:     int64(getEnvInt("MAX_UPLOAD_MB", 10)) << 20,
		SessionTTL:         time.Minute * time.Duration(getEnvInt("SESSION_TTL_MINUTES", 60)),
		DefaultLocale:      getEnv("DEFAULT_LOCALE", "pt-BR"),
		GeoIPDBPath:        os.Getenv("GEOIP_DB_PATH"),
		CORSAllowedOrigins: splitList(os.Getenv("CORS_ALLOWED_ORIGINS")),
		OutputDir:          getEnv("OUTPUT_DIR", "./out"),
	}

	provider, err := domain.NormalizeProvider(cfg.ImageProvider)
	if err != nil {
		return nil, fmt.Errorf("IMAGE_PROVIDER: %w", err)
	}
	cfg.ImageProvider = provider

	if cfg.MaxInFlight < 1 {
		cfg.MaxInFlight = 1
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 10 << 20
	}
	if cfg.RateLimitPerMin < 0 {
		cfg.RateLimitPerMin = 0
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return i
		}
	}
	return fallback
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
