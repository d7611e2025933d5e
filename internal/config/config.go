// Package config loads daemon configuration from environment variables and
// an optional .env file.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Engine backends.
const (
	EngineSim = "sim"
	EngineCDP = "cdp"
)

// Local store backends.
const (
	StoreFile   = "file"
	StoreSQLite = "sqlite"
)

// Cloud providers.
const (
	CloudNone = "none"
	CloudHTTP = "http"
	CloudS3   = "s3"
)

// Config holds all configuration for the overlay persistence daemon.
type Config struct {
	// HTTP bind settings
	BindAddr     string
	BindFallback bool

	// Engine selection and CDP connection settings
	Engine        string
	CDPAddress    string
	CDPPort       int
	TabURLFilter  string
	EvalTimeoutMS int

	// Local persistence
	DataDir      string
	StoreBackend string
	SQLitePath   string

	// Session
	Symbol     string
	GroupID    string
	AutoSaveMS int

	// Cloud sync
	CloudProvider string
	CloudEndpoint string
	CloudBucket   string
	CloudPrefix   string

	// Logging
	LogLevel string
	LogFile  string
}

// Load reads configuration from environment variables and an optional .env
// file.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	}

	cfg := &Config{
		BindAddr:      getEnvOrDefault("OVERLAYD_BIND_ADDR", "127.0.0.1:8288"),
		BindFallback:  getEnvBoolOrDefault("OVERLAYD_BIND_FALLBACK", true),
		Engine:        strings.ToLower(getEnvOrDefault("OVERLAYD_ENGINE", EngineSim)),
		CDPAddress:    getEnvOrDefault("CHROMIUM_CDP_ADDRESS", "127.0.0.1"),
		CDPPort:       getEnvIntOrDefault("CHROMIUM_CDP_PORT", 9222),
		TabURLFilter:  getEnvOrDefault("OVERLAYD_TAB_URL_FILTER", "klinecharts"),
		EvalTimeoutMS: getEnvIntOrDefault("OVERLAYD_EVAL_TIMEOUT_MS", 5000),
		DataDir:       getEnvOrDefault("OVERLAYD_DATA_DIR", "./overlay_data"),
		StoreBackend:  strings.ToLower(getEnvOrDefault("OVERLAYD_STORE_BACKEND", StoreFile)),
		SQLitePath:    getEnvOrDefault("OVERLAYD_SQLITE_PATH", ""),
		Symbol:        getEnvOrDefault("OVERLAYD_SYMBOL", "AAPL"),
		GroupID:       getEnvOrDefault("OVERLAYD_GROUP_ID", "drawing_tools"),
		AutoSaveMS:    getEnvIntOrDefault("OVERLAYD_AUTOSAVE_MS", 2000),
		CloudProvider: strings.ToLower(getEnvOrDefault("OVERLAYD_CLOUD_PROVIDER", CloudNone)),
		CloudEndpoint: getEnvOrDefault("OVERLAYD_CLOUD_ENDPOINT", ""),
		CloudBucket:   getEnvOrDefault("OVERLAYD_CLOUD_BUCKET", ""),
		CloudPrefix:   getEnvOrDefault("OVERLAYD_CLOUD_PREFIX", "overlays"),
		LogLevel:      strings.ToLower(getEnvOrDefault("OVERLAYD_LOG_LEVEL", "info")),
		LogFile:       getEnvOrDefault("OVERLAYD_LOG_FILE", "logs/overlayd.log"),
	}

	if cfg.EvalTimeoutMS < 1000 {
		cfg.EvalTimeoutMS = 1000
	}
	if cfg.AutoSaveMS < 100 {
		cfg.AutoSaveMS = 100
	}
	if cfg.SQLitePath == "" {
		cfg.SQLitePath = filepath.Join(cfg.DataDir, "overlays.db")
	}

	switch cfg.Engine {
	case EngineSim, EngineCDP:
	default:
		return nil, fmt.Errorf("unknown engine backend: %s", cfg.Engine)
	}
	switch cfg.StoreBackend {
	case StoreFile, StoreSQLite:
	default:
		return nil, fmt.Errorf("unknown store backend: %s", cfg.StoreBackend)
	}
	switch cfg.CloudProvider {
	case CloudNone, CloudS3:
	case CloudHTTP:
		if cfg.CloudEndpoint == "" {
			return nil, fmt.Errorf("OVERLAYD_CLOUD_ENDPOINT is required for the http provider")
		}
	default:
		return nil, fmt.Errorf("unknown cloud provider: %s", cfg.CloudProvider)
	}
	if cfg.CloudProvider == CloudS3 && cfg.CloudBucket == "" {
		return nil, fmt.Errorf("OVERLAYD_CLOUD_BUCKET is required for the s3 provider")
	}

	return cfg, nil
}

// CDPURL returns the CDP HTTP endpoint.
func (c *Config) CDPURL() string {
	return fmt.Sprintf("http://%s:%d", c.CDPAddress, c.CDPPort)
}

// BindCandidates returns fallback bind addresses derived from the preferred
// one, used when the preferred port is taken.
func (c *Config) BindCandidates() []string {
	host, portStr, err := splitHostPort(c.BindAddr)
	if err != nil {
		return nil
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil
	}
	out := make([]string, 0, 4)
	for i := 1; i <= 4; i++ {
		out = append(out, fmt.Sprintf("%s:%d", host, port+i))
	}
	return out
}

func splitHostPort(addr string) (string, string, error) {
	i := strings.LastIndex(addr, ":")
	if i < 0 {
		return "", "", fmt.Errorf("invalid bind address: %s", addr)
	}
	return addr[:i], addr[i+1:], nil
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
