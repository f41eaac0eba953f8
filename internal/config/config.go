package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Mode string

const (
	ModeLocal Mode = "local"
	ModeGCP   Mode = "gcp"
)

type Config struct {
	Mode Mode

	Port string

	GCPProjectID string
	GCPLocation  string
	ModelName    string

	StorageBackend string // "memory" or "sqlite"
	SQLitePath     string
	UseMockLLM     bool // true = use mock even on GCP

	// Retrieval layer
	SearchUserAgent  string        // client identification sent to both providers
	WikiMinInterval  time.Duration // minimum gap between Wikipedia requests
	ArxivMinInterval time.Duration // minimum gap between arXiv requests
	SearchLimit      int           // results fetched per provider per turn

	MaxAgentSteps int // tool-call loop ceiling
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

func getIntEnv(key string, def int) int {
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

func getDurationEnv(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

// Load reads the optional .env file plus env vars and builds the config.
func Load() *Config {
	// Missing .env is fine; env vars alone are enough.
	_ = godotenv.Load()

	modeStr := getEnv("SCIQUERY_MODE", "local")
	var mode Mode
	switch modeStr {
	case "gcp":
		mode = ModeGCP
	default:
		mode = ModeLocal
	}

	cfg := &Config{
		Mode: mode,

		Port: getEnv("SCIQUERY_PORT", "8000"),

		GCPProjectID: getEnv("SCIQUERY_GCP_PROJECT", ""),
		GCPLocation:  getEnv("SCIQUERY_GCP_LOCATION", "us-central1"),
		ModelName:    getEnv("SCIQUERY_MODEL_NAME", "gemini-2.5-flash"),

		StorageBackend: getEnv("SCIQUERY_STORAGE_BACKEND", "memory"),
		SQLitePath:     getEnv("SCIQUERY_SQLITE_PATH", "./conversations.db"),
		UseMockLLM:     getBoolEnv("SCIQUERY_USE_MOCK_LLM", mode == ModeLocal),

		SearchUserAgent: getEnv("SCIQUERY_SEARCH_USER_AGENT",
			"sciquery-agent/1.0 (github.com/jperalta/sciquery-agent)"),
		WikiMinInterval:  getDurationEnv("SCIQUERY_WIKI_MIN_INTERVAL", 200*time.Millisecond),
		ArxivMinInterval: getDurationEnv("SCIQUERY_ARXIV_MIN_INTERVAL", 3*time.Second),
		SearchLimit:      getIntEnv("SCIQUERY_SEARCH_LIMIT", 2),

		MaxAgentSteps: getIntEnv("SCIQUERY_MAX_AGENT_STEPS", 5),
	}

	// Minimal validation in GCP mode
	if cfg.Mode == ModeGCP && cfg.GCPProjectID == "" {
		log.Fatal("SCIQUERY_GCP_PROJECT must be set in gcp mode")
	}

	return cfg
}
