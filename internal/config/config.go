package config

import (
	"errors"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Mode string

const (
	ModeLocal Mode = "local"
	ModeGCP   Mode = "gcp"
)

const (
	BackendMemory    = "memory"
	BackendRedis     = "redis"
	BackendFirestore = "firestore"
)

type Config struct {
	Mode Mode

	Port     string
	LogLevel string

	StorageBackend string // "memory", "redis" or "firestore"
	GCPProjectID   string
	RedisURL       string
	RedisPrefix    string
	RedisTTL       time.Duration

	AssistantName string
	ChunkDelay    time.Duration
	ThinkDelay    time.Duration

	AllowedOrigins []string

	OTLPEndpoint   string
	TraceStdout    bool
	MetricsEnabled bool
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getBoolEnv(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if v == "1" || v == "true" || v == "TRUE" {
		return true
	}
	return false
}

func getDurationEnv(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		log.Printf("invalid duration for %s=%q, using default %s", key, v, def)
		return def
	}
	return d
}

func getListEnv(key string) []string {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return nil
	}

	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Load reads a .env file (if present) and all env vars, and builds the config.
// Variables already set in the environment win over the .env file.
func Load(envFiles ...string) (*Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("could not read .env: %v", err)
	}

	var mode Mode
	switch getEnv("GRAPHCHAT_MODE", "local") {
	case "gcp":
		mode = ModeGCP
	default:
		mode = ModeLocal
	}

	cfg := &Config{
		Mode: mode,

		Port:     getEnv("GRAPHCHAT_PORT", "8188"),
		LogLevel: getEnv("GRAPHCHAT_LOG_LEVEL", "info"),

		StorageBackend: strings.ToLower(getEnv("GRAPHCHAT_STORAGE_BACKEND", BackendMemory)),
		GCPProjectID:   getEnv("GRAPHCHAT_GCP_PROJECT", ""),
		RedisURL:       getEnv("GRAPHCHAT_REDIS_URL", "redis://localhost:6379/0"),
		RedisPrefix:    getEnv("GRAPHCHAT_REDIS_PREFIX", "graphchat"),
		RedisTTL:       getDurationEnv("GRAPHCHAT_REDIS_TTL", 0),

		AssistantName: getEnv("GRAPHCHAT_ASSISTANT_NAME", "Assistant"),
		ChunkDelay:    getDurationEnv("GRAPHCHAT_CHUNK_DELAY", 10*time.Millisecond),
		ThinkDelay:    getDurationEnv("GRAPHCHAT_THINK_DELAY", 2*time.Second),

		AllowedOrigins: getListEnv("GRAPHCHAT_ALLOWED_ORIGINS"),

		OTLPEndpoint:   getEnv("GRAPHCHAT_OTLP_ENDPOINT", ""),
		TraceStdout:    getBoolEnv("GRAPHCHAT_TRACE_STDOUT", false),
		MetricsEnabled: getBoolEnv("GRAPHCHAT_METRICS_ENABLED", true),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.StorageBackend {
	case BackendMemory, BackendRedis:
	case BackendFirestore:
		if c.GCPProjectID == "" {
			return errors.New("GRAPHCHAT_GCP_PROJECT is required for the firestore storage backend")
		}
	default:
		return errors.New("GRAPHCHAT_STORAGE_BACKEND must be one of memory, redis, firestore")
	}

	// Minimal validation in GCP mode
	if c.Mode == ModeGCP && c.GCPProjectID == "" {
		return errors.New("GRAPHCHAT_GCP_PROJECT must be set in gcp mode")
	}
	return nil
}
