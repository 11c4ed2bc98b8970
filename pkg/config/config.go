package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// DefaultAPIBase matches the development backend the web client talks to.
const DefaultAPIBase = "http://localhost:8000"

type Config struct {
	// APIBase is resolved in order: VALIKOO_API_BASE env, the "api_base"
	// override in the session store (applied by the caller), DefaultAPIBase.
	APIBase string `validate:"required,url"`
	// WSBase overrides the realtime endpoint; empty means derive from APIBase.
	WSBase      string `validate:"omitempty,url"`
	Environment string
	SessionFile string
	HTTPTimeout int64 // seconds
}

func Load() (*Config, error) {
	godotenv.Load()

	config := &Config{
		APIBase:     getEnv("VALIKOO_API_BASE", ""),
		WSBase:      getEnv("VALIKOO_WS_BASE", ""),
		Environment: getEnv("ENVIRONMENT", "development"),
		SessionFile: getEnv("VALIKOO_SESSION_FILE", ""),
		HTTPTimeout: getEnvAsInt64("VALIKOO_HTTP_TIMEOUT", 15),
	}

	return config, nil
}

// Finalize fills remaining defaults and validates. Callers apply session-store
// overrides between Load and Finalize.
func (c *Config) Finalize() error {
	if c.APIBase == "" {
		c.APIBase = DefaultAPIBase
	}
	c.APIBase = strings.TrimRight(c.APIBase, "/")
	if c.WSBase != "" {
		c.WSBase = strings.TrimRight(c.WSBase, "/")
	}
	return validator.New().Struct(c)
}

// WebSocketURL derives the realtime endpoint from the configured bases:
// http becomes ws, https becomes wss, path is /ws.
func (c *Config) WebSocketURL() string {
	base := c.WSBase
	if base == "" {
		base = c.APIBase
	}
	switch {
	case strings.HasPrefix(base, "https://"):
		base = "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	return base + "/ws"
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value, exists := os.LookupEnv(key); exists {
		intValue, err := strconv.ParseInt(value, 10, 64)
		if err == nil {
			return intValue
		}
	}
	return defaultValue
}
