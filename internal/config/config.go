package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config contains all runtime settings for the capacity planner agent service.
type Config struct {
	BindAddr         string
	ShutdownTimeout  time.Duration
	MetricsNamespace string

	AllowAnyOrigin bool

	DatabaseURL string

	// Conversation contexts.
	ContextRetention    time.Duration
	SessionInactivity   time.Duration
	MaintenanceInterval time.Duration

	// Embedding provider.
	EmbeddingURL        string
	EmbeddingAPIKey     string
	EmbeddingModel      string
	EmbeddingDim        int
	EmbeddingMaxRetries int
	EmbeddingCacheTTL   time.Duration
	EmbeddingCacheSize  int
	EmbeddingMaxChars   int

	// Generator used for AI-assisted extraction and response enhancement.
	GeneratorMode   string
	GeneratorURL    string
	GeneratorAPIKey string

	// Pending operation confirmation.
	OperationTTL           time.Duration
	OperationSweepEvery    time.Duration
	LowConfidenceThreshold float64

	// Feedback learning.
	LearningRate float64

	// Legacy behavior: route unknown intents to capacity.query at confidence 0.5
	// instead of asking for clarification.
	LegacyIntentFallback bool
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:               envOrDefault("APP_BIND_ADDR", ":8080"),
		MetricsNamespace:       envOrDefault("APP_METRICS_NAMESPACE", "capacity_agent"),
		AllowAnyOrigin:         false,
		DatabaseURL:            stringsTrimSpace("DATABASE_URL"),
		ContextRetention:       30 * 24 * time.Hour,
		SessionInactivity:      30 * time.Minute,
		MaintenanceInterval:    time.Hour,
		EmbeddingURL:           stringsTrimSpace("EMBEDDING_URL"),
		EmbeddingAPIKey:        stringsTrimSpace("EMBEDDING_API_KEY"),
		EmbeddingModel:         envOrDefault("EMBEDDING_MODEL", "text-embedding-3-small"),
		EmbeddingDim:           1536,
		EmbeddingMaxRetries:    3,
		EmbeddingCacheTTL:      time.Hour,
		EmbeddingCacheSize:     1000,
		EmbeddingMaxChars:      8000,
		GeneratorMode:          envOrDefault("GENERATOR_MODE", "off"),
		GeneratorURL:           stringsTrimSpace("GENERATOR_URL"),
		GeneratorAPIKey:        stringsTrimSpace("GENERATOR_API_KEY"),
		OperationTTL:           10 * time.Minute,
		OperationSweepEvery:    time.Minute,
		LowConfidenceThreshold: 0.6,
		LearningRate:           0.05,
		LegacyIntentFallback:   false,
		ShutdownTimeout:        15 * time.Second,
	}

	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.ContextRetention, err = durationFromEnv("AGENT_CONTEXT_RETENTION", cfg.ContextRetention)
	if err != nil {
		return Config{}, err
	}
	cfg.SessionInactivity, err = durationFromEnv("AGENT_SESSION_INACTIVITY", cfg.SessionInactivity)
	if err != nil {
		return Config{}, err
	}
	cfg.MaintenanceInterval, err = durationFromEnv("AGENT_MAINTENANCE_INTERVAL", cfg.MaintenanceInterval)
	if err != nil {
		return Config{}, err
	}
	cfg.OperationTTL, err = durationFromEnv("AGENT_OPERATION_TTL", cfg.OperationTTL)
	if err != nil {
		return Config{}, err
	}
	cfg.OperationSweepEvery, err = durationFromEnv("AGENT_OPERATION_SWEEP_EVERY", cfg.OperationSweepEvery)
	if err != nil {
		return Config{}, err
	}
	cfg.EmbeddingCacheTTL, err = durationFromEnv("EMBEDDING_CACHE_TTL", cfg.EmbeddingCacheTTL)
	if err != nil {
		return Config{}, err
	}
	cfg.EmbeddingDim, err = intFromEnv("EMBEDDING_DIM", cfg.EmbeddingDim)
	if err != nil {
		return Config{}, err
	}
	cfg.EmbeddingMaxRetries, err = intFromEnv("EMBEDDING_MAX_RETRIES", cfg.EmbeddingMaxRetries)
	if err != nil {
		return Config{}, err
	}
	cfg.EmbeddingCacheSize, err = intFromEnv("EMBEDDING_CACHE_SIZE", cfg.EmbeddingCacheSize)
	if err != nil {
		return Config{}, err
	}
	cfg.EmbeddingMaxChars, err = intFromEnv("EMBEDDING_MAX_CHARS", cfg.EmbeddingMaxChars)
	if err != nil {
		return Config{}, err
	}
	cfg.AllowAnyOrigin, err = boolFromEnv("APP_ALLOW_ANY_ORIGIN", cfg.AllowAnyOrigin)
	if err != nil {
		return Config{}, err
	}
	cfg.LegacyIntentFallback, err = boolFromEnv("AGENT_LEGACY_INTENT_FALLBACK", cfg.LegacyIntentFallback)
	if err != nil {
		return Config{}, err
	}
	cfg.LowConfidenceThreshold, err = floatFromEnv("AGENT_LOW_CONFIDENCE_THRESHOLD", cfg.LowConfidenceThreshold)
	if err != nil {
		return Config{}, err
	}
	cfg.LearningRate, err = floatFromEnv("AGENT_LEARNING_RATE", cfg.LearningRate)
	if err != nil {
		return Config{}, err
	}

	if cfg.EmbeddingDim <= 0 {
		return Config{}, fmt.Errorf("EMBEDDING_DIM must be positive")
	}
	if cfg.EmbeddingMaxRetries < 0 {
		return Config{}, fmt.Errorf("EMBEDDING_MAX_RETRIES must be >= 0")
	}
	if cfg.EmbeddingCacheSize <= 0 {
		return Config{}, fmt.Errorf("EMBEDDING_CACHE_SIZE must be positive")
	}
	if cfg.EmbeddingMaxChars <= 0 {
		return Config{}, fmt.Errorf("EMBEDDING_MAX_CHARS must be positive")
	}
	if cfg.OperationTTL < time.Second {
		return Config{}, fmt.Errorf("AGENT_OPERATION_TTL must be at least 1s")
	}
	if cfg.SessionInactivity < 5*time.Second {
		return Config{}, fmt.Errorf("AGENT_SESSION_INACTIVITY must be at least 5s")
	}
	if cfg.LowConfidenceThreshold < 0 || cfg.LowConfidenceThreshold > 1 {
		return Config{}, fmt.Errorf("AGENT_LOW_CONFIDENCE_THRESHOLD must be in [0,1]")
	}
	if cfg.LearningRate <= 0 || cfg.LearningRate > 1 {
		return Config{}, fmt.Errorf("AGENT_LEARNING_RATE must be in (0,1]")
	}

	switch strings.ToLower(strings.TrimSpace(cfg.GeneratorMode)) {
	case "", "off", "http", "mock":
	default:
		return Config{}, fmt.Errorf("GENERATOR_MODE must be one of off, http, mock")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func stringsTrimSpace(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func floatFromEnv(key string, fallback float64) (float64, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return f, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(stringsTrimSpace(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}
