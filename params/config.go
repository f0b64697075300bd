package params

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type API struct {
	Addr            string
	CORSOrigins     []string
	ShutdownTimeout time.Duration
	// MaxBodyBytes caps a single submission body
	MaxBodyBytes int64
}

type Store struct {
	// Backend is one of "pebble", "sqlite", "postgres", "memory"
	Backend     string
	PebblePath  string
	SQLitePath  string
	PostgresDSN string
	// JournalFile receives one JSON line per submission outcome; empty disables it
	JournalFile string
}

type Log struct {
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
	Verbose    bool
}

type Config struct {
	API   API
	Store Store
	Log   Log
}

func Default() Config {
	return Config{
		API: API{
			Addr:            ":5002",
			CORSOrigins:     []string{"http://localhost:3000"},
			ShutdownTimeout: 10 * time.Second,
			MaxBodyBytes:    64 << 10,
		},
		Store: Store{
			Backend:     "pebble",
			PebblePath:  "data/orderbook",
			SQLitePath:  "data/orders.db",
			JournalFile: "data/submissions.log",
		},
		Log: Log{
			File:       "data/node.log",
			MaxSizeMB:  100,
			MaxBackups: 5,
			MaxAgeDays: 30,
		},
	}
}

// LoadFromEnv loads configuration from .env file (if exists) and environment variables
// Priority: ENV > .env file > defaults
func LoadFromEnv(envPath string) Config {
	cfg := Default()

	// Try to load .env file (optional - won't fail if not exists)
	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load() // loads .env from current directory
	}

	cfg.API.Addr = getEnv("API_ADDR", cfg.API.Addr)
	if origins := os.Getenv("CORS_ORIGINS"); origins != "" {
		cfg.API.CORSOrigins = splitList(origins)
	}
	if ms := getEnvInt("SHUTDOWN_TIMEOUT_MS", -1); ms >= 0 {
		cfg.API.ShutdownTimeout = time.Duration(ms) * time.Millisecond
	}
	if n := getEnvInt("MAX_BODY_BYTES", -1); n > 0 {
		cfg.API.MaxBodyBytes = int64(n)
	}

	cfg.Store.Backend = getEnv("STORE_BACKEND", cfg.Store.Backend)
	cfg.Store.PebblePath = getEnv("PEBBLE_PATH", cfg.Store.PebblePath)
	cfg.Store.SQLitePath = getEnv("SQLITE_PATH", cfg.Store.SQLitePath)
	cfg.Store.PostgresDSN = getEnv("DATABASE_URL", cfg.Store.PostgresDSN)
	if journal, ok := os.LookupEnv("TX_LOG_FILE"); ok {
		cfg.Store.JournalFile = journal // empty disables
	}

	cfg.Log.File = getEnv("LOG_FILE", cfg.Log.File)
	cfg.Log.MaxSizeMB = getEnvInt("LOG_MAX_SIZE_MB", cfg.Log.MaxSizeMB)
	cfg.Log.MaxBackups = getEnvInt("LOG_MAX_BACKUPS", cfg.Log.MaxBackups)
	cfg.Log.MaxAgeDays = getEnvInt("LOG_MAX_AGE_DAYS", cfg.Log.MaxAgeDays)
	cfg.Log.Compress = os.Getenv("LOG_COMPRESS") == "true"
	cfg.Log.Verbose = os.Getenv("VERBOSE") == "true"

	return cfg
}

// getEnv returns environment variable value or default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns the integer value of key, or defaultValue if unset or not a number
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
