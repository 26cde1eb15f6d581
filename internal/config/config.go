package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the daemon configuration.
type Config struct {
	// Browser connection
	CDPAddress     string
	CDPPort        int
	PollIntervalMS int

	// Optional browser launch
	LaunchBrowser bool
	BrowserPath   string
	ProfileDir    string
	Headless      bool

	// HTTP API
	BindAddr       string
	BindCandidates []string
	BindFallback   bool

	// Persistence
	StoreBackend string
	StorePath    string
	RedisAddr    string
	RedisDB      int
	RedisKey     string

	CycleGated bool

	// Activity journal; empty JournalDir disables it
	JournalDir    string
	JournalBuffer int
	JournalSizeMB int

	LogLevel string
	LogFile  string
}

// Load reads daemon configuration from environment variables and an
// optional .env file.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	}

	cfg := &Config{
		CDPAddress:     getEnvOrDefault("CHROMIUM_CDP_ADDRESS", "127.0.0.1"),
		CDPPort:        getEnvIntOrDefault("CHROMIUM_CDP_PORT", 9222),
		PollIntervalMS: getEnvIntOrDefault("CDP_POLL_INTERVAL_MS", 500),
		LaunchBrowser:  getEnvBoolOrDefault("TABCYCLE_LAUNCH_BROWSER", false),
		BrowserPath:    getEnvOrDefault("TABCYCLE_BROWSER_PATH", ""),
		ProfileDir:     getEnvOrDefault("TABCYCLE_PROFILE_DIR", "./browser_profile"),
		Headless:       getEnvBoolOrDefault("TABCYCLE_HEADLESS", false),
		BindAddr:       getEnvOrDefault("TABCYCLE_BIND_ADDR", "127.0.0.1:8190"),
		BindCandidates: getEnvListOrDefault("TABCYCLE_BIND_CANDIDATES", []string{"127.0.0.1:8191", "127.0.0.1:8192"}),
		BindFallback:   getEnvBoolOrDefault("TABCYCLE_BIND_FALLBACK", true),
		StoreBackend:   strings.ToLower(getEnvOrDefault("TABCYCLE_STORE", "file")),
		StorePath:      getEnvOrDefault("TABCYCLE_STORE_PATH", "./data/tabcycle.json"),
		RedisAddr:      getEnvOrDefault("TABCYCLE_REDIS_ADDR", "127.0.0.1:6379"),
		RedisDB:        getEnvIntOrDefault("TABCYCLE_REDIS_DB", 0),
		RedisKey:       getEnvOrDefault("TABCYCLE_REDIS_KEY", "tabcycle:storage"),
		CycleGated:     getEnvBoolOrDefault("CYCLE_GATED", false),
		JournalDir:     getEnvOrDefault("TABCYCLE_JOURNAL_DIR", ""),
		JournalBuffer:  getEnvIntOrDefault("TABCYCLE_JOURNAL_BUFFER", 256),
		JournalSizeMB:  getEnvIntOrDefault("TABCYCLE_JOURNAL_MAX_SIZE_MB", 10),
		LogLevel:       strings.ToLower(getEnvOrDefault("TABCYCLE_LOG_LEVEL", "info")),
		LogFile:        getEnvOrDefault("TABCYCLE_LOG_FILE", "logs/tabcycled.log"),
	}

	if cfg.PollIntervalMS < 100 {
		cfg.PollIntervalMS = 100
	}
	switch cfg.StoreBackend {
	case "memory", "file", "sqlite", "redis":
	default:
		return nil, fmt.Errorf("TABCYCLE_STORE: unknown backend %q", cfg.StoreBackend)
	}
	return cfg, nil
}

// CDPURL returns the DevTools HTTP endpoint.
func (c *Config) CDPURL() string {
	return "http://" + c.CDPAddress + ":" + strconv.Itoa(c.CDPPort)
}

func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMS) * time.Millisecond
}

// CLIConfig holds the tabcycle CLI configuration.
type CLIConfig struct {
	Addr      string
	TimeoutMS int
}

// LoadCLI reads the CLI configuration. Flags override these values.
func LoadCLI() *CLIConfig {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	}
	return &CLIConfig{
		Addr:      getEnvOrDefault("TABCYCLE_ADDR", "http://127.0.0.1:8190"),
		TimeoutMS: getEnvIntOrDefault("TABCYCLE_TIMEOUT_MS", 5000),
	}
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvIntOrDefault(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvBoolOrDefault(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

func getEnvListOrDefault(key string, defaultVal []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
