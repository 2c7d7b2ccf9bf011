package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// FileEnv names the optional TOML file read before the environment.
const FileEnv = "SPENDIGO_CONFIG"

var validBackends = []string{"memory", "sqlite"}

type Config struct {
	// HTTP Server
	Port          string `toml:"port"`
	HTTPRateLimit int    `toml:"http_rate_limit"`
	AuthJWTSecret string `toml:"auth_jwt_secret"`

	// Storage. The memory backend keeps snapshots in DataDirectory when set.
	DataBackend   string `toml:"data_backend"`
	DataDirectory string `toml:"data_directory"`
	SQLiteDBPath  string `toml:"sqlite_db_path"`

	// AMQP change notifications; disabled when AMQPURL is empty.
	AMQPURL      string `toml:"amqp_url"`
	AMQPExchange string `toml:"amqp_exchange"`
	AMQPQueue    string `toml:"amqp_queue"`

	// Google Sheets mirror
	GoogleSpreadsheetID      string `toml:"google_spreadsheet_id"`
	GoogleSheetName          string `toml:"google_sheet_name"`
	GoogleServiceAccountJSON string `toml:"google_service_account_json"`
	GoogleServiceAccountFile string `toml:"google_service_account_file"`

	// LLM extraction; disabled when LLMAPIKey is empty.
	LLMAPIKey     string        `toml:"llm_api_key"`
	LLMEndpoint   string        `toml:"llm_endpoint"`
	LLMModel      string        `toml:"llm_model"`
	LLMMaxRetries int           `toml:"llm_max_retries"`
	LLMBaseDelay  time.Duration `toml:"llm_base_delay"`
	LLMTimeout    time.Duration `toml:"llm_timeout"`

	VoiceRateLimit  int           `toml:"voice_rate_limit"`
	VoiceRateWindow time.Duration `toml:"voice_rate_window"`

	ExtraCategories []string `toml:"extra_categories"`

	// Worker
	SyncInterval time.Duration `toml:"sync_interval"`

	LogLevel string `toml:"log_level"`

	fileErr error
}

func defaults() *Config {
	return &Config{
		Port:          "8081",
		HTTPRateLimit: 60,

		DataBackend:  "memory",
		SQLiteDBPath: "./data/spendigo.db",

		AMQPExchange: "spendigo",
		AMQPQueue:    "ledger_changes",

		GoogleSheetName: "Spendigo",

		LLMEndpoint:   "https://api.perplexity.ai/chat/completions",
		LLMModel:      "sonar-pro",
		LLMMaxRetries: 3,
		LLMBaseDelay:  time.Second,
		LLMTimeout:    30 * time.Second,

		VoiceRateLimit:  15,
		VoiceRateWindow: time.Minute,

		SyncInterval: 30 * time.Second,

		LogLevel: "info",
	}
}

// Load builds the configuration from defaults, then the TOML file named by
// SPENDIGO_CONFIG, then environment variables. A file that cannot be read
// is reported by Validate.
func Load() *Config {
	cfg := defaults()
	if path := os.Getenv(FileEnv); path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			cfg.fileErr = fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	cfg.Port = getEnv("PORT", cfg.Port)
	cfg.HTTPRateLimit = getEnvInt("HTTP_RATE_LIMIT", cfg.HTTPRateLimit)
	cfg.AuthJWTSecret = getEnv("AUTH_JWT_SECRET", cfg.AuthJWTSecret)

	cfg.DataBackend = getEnv("DATA_BACKEND", cfg.DataBackend)
	cfg.DataDirectory = getEnv("DATA_DIRECTORY", cfg.DataDirectory)
	cfg.SQLiteDBPath = getEnv("SQLITE_DB_PATH", cfg.SQLiteDBPath)

	cfg.AMQPURL = getEnv("AMQP_URL", cfg.AMQPURL)
	cfg.AMQPExchange = getEnv("AMQP_EXCHANGE", cfg.AMQPExchange)
	cfg.AMQPQueue = getEnv("AMQP_QUEUE", cfg.AMQPQueue)

	cfg.GoogleSpreadsheetID = getEnv("GOOGLE_SPREADSHEET_ID", cfg.GoogleSpreadsheetID)
	cfg.GoogleSheetName = getEnv("GOOGLE_SHEET_NAME", cfg.GoogleSheetName)
	cfg.GoogleServiceAccountJSON = getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", cfg.GoogleServiceAccountJSON)
	cfg.GoogleServiceAccountFile = getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", cfg.GoogleServiceAccountFile)

	cfg.LLMAPIKey = getEnv("LLM_API_KEY", cfg.LLMAPIKey)
	cfg.LLMEndpoint = getEnv("LLM_ENDPOINT", cfg.LLMEndpoint)
	cfg.LLMModel = getEnv("LLM_MODEL", cfg.LLMModel)
	cfg.LLMMaxRetries = getEnvInt("LLM_MAX_RETRIES", cfg.LLMMaxRetries)
	cfg.LLMBaseDelay = getEnvDuration("LLM_BASE_DELAY", cfg.LLMBaseDelay)
	cfg.LLMTimeout = getEnvDuration("LLM_TIMEOUT", cfg.LLMTimeout)

	cfg.VoiceRateLimit = getEnvInt("VOICE_RATE_LIMIT", cfg.VoiceRateLimit)
	cfg.VoiceRateWindow = getEnvDuration("VOICE_RATE_WINDOW", cfg.VoiceRateWindow)

	cfg.ExtraCategories = getEnvList("EXTRA_CATEGORIES", cfg.ExtraCategories)
	cfg.SyncInterval = getEnvDuration("SYNC_INTERVAL", cfg.SyncInterval)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)

	return cfg
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errs []string

	if c.fileErr != nil {
		errs = append(errs, c.fileErr.Error())
	}

	if port, err := strconv.Atoi(c.Port); err != nil {
		errs = append(errs, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errs = append(errs, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if !slices.Contains(validBackends, c.DataBackend) {
		errs = append(errs, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	if c.DataBackend == "sqlite" {
		if c.SQLiteDBPath == "" {
			errs = append(errs, "SQLite database path cannot be empty when using sqlite backend")
		} else if msg := ensureDir(filepath.Dir(c.SQLiteDBPath)); msg != "" {
			errs = append(errs, msg)
		}
	}
	if c.DataBackend == "memory" && c.DataDirectory != "" {
		if msg := ensureDir(c.DataDirectory); msg != "" {
			errs = append(errs, msg)
		}
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errs = append(errs, fmt.Sprintf("invalid AMQP URL: %v", err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errs = append(errs, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errs = append(errs, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errs = append(errs, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.LLMAPIKey != "" {
		if u, err := url.Parse(c.LLMEndpoint); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			errs = append(errs, fmt.Sprintf("invalid LLM endpoint '%s': must be an http(s) URL", c.LLMEndpoint))
		}
	}
	if c.LLMMaxRetries < 0 || c.LLMMaxRetries > 10 {
		errs = append(errs, fmt.Sprintf("invalid LLM max retries %d: must be between 0 and 10", c.LLMMaxRetries))
	}
	if c.LLMBaseDelay <= 0 {
		errs = append(errs, fmt.Sprintf("invalid LLM base delay %v: must be positive", c.LLMBaseDelay))
	}
	if c.LLMTimeout <= 0 {
		errs = append(errs, fmt.Sprintf("invalid LLM timeout %v: must be positive", c.LLMTimeout))
	}

	if c.VoiceRateLimit < 1 {
		errs = append(errs, fmt.Sprintf("invalid voice rate limit %d: must be at least 1", c.VoiceRateLimit))
	}
	if c.VoiceRateWindow < time.Second {
		errs = append(errs, fmt.Sprintf("invalid voice rate window %v: must be at least 1 second", c.VoiceRateWindow))
	}
	if c.HTTPRateLimit < 1 {
		errs = append(errs, fmt.Sprintf("invalid HTTP rate limit %d: must be at least 1", c.HTTPRateLimit))
	}

	if c.SyncInterval < time.Second {
		errs = append(errs, fmt.Sprintf("invalid sync interval %v: must be at least 1 second", c.SyncInterval))
	} else if c.SyncInterval > 24*time.Hour {
		errs = append(errs, fmt.Sprintf("invalid sync interval %v: must be at most 24 hours", c.SyncInterval))
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Sprintf("invalid log level '%s': must be debug, info, warn or error", c.LogLevel))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errs, "\n- "))
	}

	return nil
}

// ValidateWorker checks what the mirror worker needs on top of Validate.
func (c *Config) ValidateWorker() error {
	var errs []string
	if err := c.Validate(); err != nil {
		errs = append(errs, strings.TrimPrefix(err.Error(), "configuration validation failed:\n- "))
	}
	if c.DataBackend != "sqlite" {
		errs = append(errs, "worker requires the sqlite backend")
	}
	if c.AMQPURL == "" {
		errs = append(errs, "AMQP URL is required for the worker")
	}
	if c.GoogleSpreadsheetID == "" {
		errs = append(errs, "Google Spreadsheet ID is required for the worker")
	}
	if c.GoogleServiceAccountJSON == "" && c.GoogleServiceAccountFile == "" && os.Getenv("GOOGLE_APPLICATION_CREDENTIALS") == "" {
		errs = append(errs, "either GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE or GOOGLE_APPLICATION_CREDENTIALS must be provided for the worker")
	}
	if c.GoogleServiceAccountFile != "" {
		if _, err := os.Stat(c.GoogleServiceAccountFile); errors.Is(err, os.ErrNotExist) {
			errs = append(errs, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errs, "\n- "))
	}
	return nil
}

// LLMEnabled reports whether voice extraction may call the LLM.
func (c *Config) LLMEnabled() bool { return c.LLMAPIKey != "" }

// AuthEnabled reports whether bearer tokens are verified.
func (c *Config) AuthEnabled() bool { return c.AuthJWTSecret != "" }

func ensureDir(dir string) string {
	if dir == "." || dir == "" {
		return ""
	}
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Sprintf("cannot create directory '%s': %v", dir, err)
		}
	}
	return ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getEnvList splits a comma separated variable, dropping empty items.
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
