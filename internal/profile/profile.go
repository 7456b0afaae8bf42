package profile

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Version is the current engine version.
const Version = "0.1.0"

// Profile is the configuration for the memory engine.
type Profile struct {
	// Mode can be "prod" or "dev" or "demo"
	Mode string
	// Data is the data directory
	Data string
	// DSN points to where axismem stores its own data
	DSN string
	// Driver is the database driver (sqlite or postgres)
	Driver string
	// Version is the current version of the engine
	Version string

	// Vector index configuration
	Dimension int    // AXISMEM_DIMENSION (default: 384)
	Metric    string // AXISMEM_METRIC: cosine or dot (default: cosine)

	// Retrieval scoring weights. SimilarityWeight applies to the raw vector
	// similarity; the remaining three follow the reference defaults.
	SimilarityWeight float64 // AXISMEM_WEIGHT_SIMILARITY (default: 1.0)
	RecencyWeight    float64 // AXISMEM_WEIGHT_RECENCY (default: 0.4)
	FrequencyWeight  float64 // AXISMEM_WEIGHT_FREQUENCY (default: 0.3)
	ImportanceWeight float64 // AXISMEM_WEIGHT_IMPORTANCE (default: 0.3)
	PinScoreFloor    float64 // AXISMEM_PIN_SCORE_FLOOR (default: 1.0)

	// Retrieval behavior
	RetrieveTimeout time.Duration // AXISMEM_RETRIEVE_TIMEOUT (default: 2s)

	// Decay configuration
	DecayInterval    time.Duration // AXISMEM_DECAY_INTERVAL (default: 1h)
	DecayRate        float64       // AXISMEM_DECAY_RATE per interval (default: 0.98)
	EvictionFloor    float64       // AXISMEM_EVICTION_FLOOR (default: 0.05)
	RebuildThreshold int           // AXISMEM_REBUILD_THRESHOLD evictions per pass (default: 64)

	// Lineage configuration
	TraceIdleTimeout time.Duration // AXISMEM_TRACE_IDLE_TIMEOUT (default: 30m)

	// Embedding provider configuration
	EmbeddingEnabled bool   // AXISMEM_EMBEDDING_ENABLED
	EmbeddingBaseURL string // AXISMEM_EMBEDDING_BASE_URL (default: https://api.openai.com/v1)
	EmbeddingAPIKey  string // AXISMEM_EMBEDDING_API_KEY
	EmbeddingModel   string // AXISMEM_EMBEDDING_MODEL (default: text-embedding-3-small)
}

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// IsEmbeddingEnabled returns true if the embedding provider is configured.
func (p *Profile) IsEmbeddingEnabled() bool {
	return p.EmbeddingEnabled && p.EmbeddingAPIKey != ""
}

// getEnvOrDefault returns the environment variable value or the default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// GetProfile builds and validates the process configuration from
// AXISMEM_* environment variables.
func GetProfile() (*Profile, error) {
	p := &Profile{
		Mode:    getEnvOrDefault("AXISMEM_MODE", "demo"),
		Data:    getEnvOrDefault("AXISMEM_DATA", "."),
		DSN:     os.Getenv("AXISMEM_DSN"),
		Driver:  getEnvOrDefault("AXISMEM_DRIVER", "sqlite"),
		Version: Version,
	}
	p.FromEnv()
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// FromEnv loads configuration from AXISMEM_* environment variables.
func (p *Profile) FromEnv() {
	p.Dimension = getIntEnv("AXISMEM_DIMENSION", 384)
	p.Metric = getEnvOrDefault("AXISMEM_METRIC", "cosine")

	p.SimilarityWeight = getFloatEnv("AXISMEM_WEIGHT_SIMILARITY", 1.0)
	p.RecencyWeight = getFloatEnv("AXISMEM_WEIGHT_RECENCY", 0.4)
	p.FrequencyWeight = getFloatEnv("AXISMEM_WEIGHT_FREQUENCY", 0.3)
	p.ImportanceWeight = getFloatEnv("AXISMEM_WEIGHT_IMPORTANCE", 0.3)
	p.PinScoreFloor = getFloatEnv("AXISMEM_PIN_SCORE_FLOOR", 1.0)

	p.RetrieveTimeout = getDurationEnv("AXISMEM_RETRIEVE_TIMEOUT", 2*time.Second)

	p.DecayInterval = getDurationEnv("AXISMEM_DECAY_INTERVAL", time.Hour)
	p.DecayRate = getFloatEnv("AXISMEM_DECAY_RATE", 0.98)
	p.EvictionFloor = getFloatEnv("AXISMEM_EVICTION_FLOOR", 0.05)
	p.RebuildThreshold = getIntEnv("AXISMEM_REBUILD_THRESHOLD", 64)

	p.TraceIdleTimeout = getDurationEnv("AXISMEM_TRACE_IDLE_TIMEOUT", 30*time.Minute)

	p.EmbeddingEnabled = os.Getenv("AXISMEM_EMBEDDING_ENABLED") == "true"
	p.EmbeddingBaseURL = getEnvOrDefault("AXISMEM_EMBEDDING_BASE_URL", "https://api.openai.com/v1")
	p.EmbeddingAPIKey = os.Getenv("AXISMEM_EMBEDDING_API_KEY")
	p.EmbeddingModel = getEnvOrDefault("AXISMEM_EMBEDDING_MODEL", "text-embedding-3-small")
}

func checkDataDir(dataDir string) (string, error) {
	// Convert to absolute path if relative path is supplied.
	if !filepath.IsAbs(dataDir) {
		relativeDir := filepath.Join(filepath.Dir(os.Args[0]), dataDir)
		absDir, err := filepath.Abs(relativeDir)
		if err != nil {
			return "", err
		}
		dataDir = absDir
	}

	// Trim trailing \ or / in case user supplies
	dataDir = strings.TrimRight(dataDir, "\\/")
	if _, err := os.Stat(dataDir); err != nil {
		return "", errors.Wrapf(err, "unable to access data folder %s", dataDir)
	}
	return dataDir, nil
}

func (p *Profile) Validate() error {
	if p.Mode != "demo" && p.Mode != "dev" && p.Mode != "prod" {
		p.Mode = "demo"
	}

	if p.Dimension <= 0 {
		return errors.Errorf("invalid index dimension: %d", p.Dimension)
	}
	if p.Metric != "cosine" && p.Metric != "dot" {
		return errors.Errorf("unknown similarity metric: %q (supported: cosine, dot)", p.Metric)
	}
	if p.DecayRate <= 0 || p.DecayRate > 1 {
		return errors.Errorf("decay rate must be in (0,1]: %f", p.DecayRate)
	}
	if p.EvictionFloor < 0 || p.EvictionFloor >= 1 {
		return errors.Errorf("eviction floor must be in [0,1): %f", p.EvictionFloor)
	}

	dataDir, err := checkDataDir(p.Data)
	if err != nil {
		slog.Error("failed to check data dir", slog.String("data", p.Data), slog.String("error", err.Error()))
		return err
	}

	p.Data = dataDir
	if p.Driver == "sqlite" && p.DSN == "" {
		dbFile := fmt.Sprintf("axismem_%s.db", p.Mode)
		p.DSN = filepath.Join(dataDir, dbFile)
	}

	return nil
}
