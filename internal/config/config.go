// ABOUTME: Centralized configuration for the narra knowledge engine
// ABOUTME: Loads from environment variables with validation and defaults
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Config holds all configuration for the narra system
type Config struct {
	// Storage settings
	DataPath    string
	SessionPath string

	// OpenAI settings
	OpenAIKey      string
	EmbeddingModel string
	Timeout        time.Duration
	MaxRetries     int
	RetryDelay     time.Duration

	// Embedding lifecycle settings
	EmbeddingDimension int
	BackfillBatchSize  int
	SnapshotThreshold  float64

	// Retrieval settings
	TokenBudget       int
	SearchDefaultK    int
	RecentAccessLimit int
}

// MaxTokenBudget caps any requested token budget.
const MaxTokenBudget = 8000

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		// Defaults
		DataPath:           getEnv("NARRA_DATA_PATH", defaultDataPath()),
		OpenAIKey:          os.Getenv("OPENAI_API_KEY"),
		EmbeddingModel:     getEnv("NARRA_EMBEDDING_MODEL", "text-embedding-3-small"),
		Timeout:            getEnvDuration("OPENAI_TIMEOUT", 30*time.Second),
		MaxRetries:         getEnvInt("OPENAI_MAX_RETRIES", 3),
		RetryDelay:         getEnvDuration("OPENAI_RETRY_DELAY", 2*time.Second),
		EmbeddingDimension: getEnvInt("NARRA_EMBEDDING_DIMENSION", 384),
		BackfillBatchSize:  getEnvInt("NARRA_BACKFILL_BATCH_SIZE", 16),
		SnapshotThreshold:  getEnvFloat("NARRA_SNAPSHOT_THRESHOLD", 0.15),
		TokenBudget:        getEnvInt("NARRA_TOKEN_BUDGET", 0),
		SearchDefaultK:     getEnvInt("NARRA_SEARCH_DEFAULT_K", 10),
		RecentAccessLimit:  getEnvInt("NARRA_RECENT_ACCESS_LIMIT", 100),
	}
	cfg.SessionPath = getEnv("NARRA_SESSION_PATH", filepath.Join(filepath.Dir(cfg.DataPath), "session.json"))

	return cfg, cfg.Validate()
}

func (c *Config) Validate() error {
	if c.DataPath == "" {
		return fmt.Errorf("NARRA_DATA_PATH must not be empty")
	}
	if c.EmbeddingDimension <= 0 {
		return fmt.Errorf("NARRA_EMBEDDING_DIMENSION must be positive, got %d", c.EmbeddingDimension)
	}
	if c.BackfillBatchSize <= 0 {
		return fmt.Errorf("NARRA_BACKFILL_BATCH_SIZE must be positive, got %d", c.BackfillBatchSize)
	}
	if c.SnapshotThreshold < 0 || c.SnapshotThreshold > 1 {
		return fmt.Errorf("NARRA_SNAPSHOT_THRESHOLD must be 0-1, got %f", c.SnapshotThreshold)
	}
	if c.MaxRetries < 0 || c.MaxRetries > 10 {
		return fmt.Errorf("OPENAI_MAX_RETRIES must be 0-10, got %d", c.MaxRetries)
	}
	if c.TokenBudget < 0 || c.TokenBudget > MaxTokenBudget {
		return fmt.Errorf("NARRA_TOKEN_BUDGET must be 0-%d, got %d", MaxTokenBudget, c.TokenBudget)
	}
	return nil
}

func defaultDataPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "narra.db"
	}
	return filepath.Join(home, ".narra", "narra.db")
}

// Helper functions
func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
