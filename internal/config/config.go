package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"faqbot/internal/faq"
	"faqbot/internal/similarity"
	"faqbot/internal/store"
	"faqbot/internal/tfidf"

	"github.com/robfig/cron/v3"
)

// Environment variables that override config file values.
const (
	EnvArtifactDir = "MODEL_DIR"
	EnvReloadToken = "RELOAD_TOKEN"
	EnvCorpusPath  = "FAQ_PATH"
	EnvPort        = "FAQBOT_PORT"
)

// Config represents the faqbot configuration
type Config struct {
	Port            int                `json:"port"`
	LogLevel        string             `json:"log_level,omitempty"`
	LogFormat       string             `json:"log_format,omitempty"`
	CorpusPath      string             `json:"corpus_path"`
	ArtifactDir     string             `json:"artifact_dir"`
	ReloadToken     string             `json:"reload_token,omitempty"`      // Supports ${ENV_VAR} expansion
	ReloadTokenHash string             `json:"reload_token_hash,omitempty"` // bcrypt, see `faqbot hash-token`
	Matching        MatchingConfig     `json:"matching"`
	Store           StoreConfig        `json:"store"`
	CORS            CORSConfig         `json:"cors"`
	RateLimiting    RateLimitingConfig `json:"rate_limiting"`
	Watch           WatchConfig        `json:"watch"`
	Telegram        TelegramConfig     `json:"telegram"`
}

// MatchingConfig holds the retrieval knobs.
type MatchingConfig struct {
	Threshold float64      `json:"threshold"`
	NGramMin  int          `json:"ngram_min"`
	NGramMax  int          `json:"ngram_max"`
	Greetings []string     `json:"greetings"`
	Messages  faq.Messages `json:"messages"`
}

// StoreConfig selects the artifact backend.
type StoreConfig struct {
	Backend string `json:"backend"` // "file" (default) or "sqlite"
}

// CORSConfig lists the origins allowed to call the API.
type CORSConfig struct {
	AllowedOrigins []string `json:"allowed_origins"`
}

// RateLimitingConfig holds per-IP limits for public and admin routes.
type RateLimitingConfig struct {
	Enabled                bool                `json:"enabled"`
	Query                  RateLimitTierConfig `json:"query"`
	Admin                  RateLimitTierConfig `json:"admin"`
	CleanupIntervalSeconds int                 `json:"cleanup_interval_seconds"`
}

// RateLimitTierConfig defines one rate limiting tier
type RateLimitTierConfig struct {
	WindowSeconds int `json:"window_seconds"`
	MaxRequests   int `json:"max_requests"`
}

// WatchConfig controls the corpus change watcher.
type WatchConfig struct {
	Enabled  bool   `json:"enabled"`
	Schedule string `json:"schedule"` // cron spec, e.g. "@every 30s"
}

// TelegramConfig controls the Telegram channel.
type TelegramConfig struct {
	Enabled      bool    `json:"enabled"`
	BotToken     string  `json:"bot_token,omitempty"` // Supports ${ENV_VAR} expansion
	AllowedChats []int64 `json:"allowed_chats,omitempty"`
}

// Default returns a default configuration
func Default() *Config {
	return &Config{
		Port:        8000,
		LogLevel:    "info",
		LogFormat:   "text",
		CorpusPath:  "faq_malakatech.json",
		ArtifactDir: "artifacts",
		ReloadToken: "${" + EnvReloadToken + "}",
		Matching: MatchingConfig{
			Threshold: similarity.DefaultThreshold,
			NGramMin:  tfidf.DefaultNGramMin,
			NGramMax:  tfidf.DefaultNGramMax,
			Greetings: append([]string(nil), faq.DefaultGreetings...),
			Messages:  faq.DefaultMessages(),
		},
		Store: StoreConfig{Backend: store.BackendFile},
		CORS:  CORSConfig{AllowedOrigins: []string{"*"}},
		RateLimiting: RateLimitingConfig{
			Enabled: true,
			Query: RateLimitTierConfig{
				WindowSeconds: 60,  // 1 minute window
				MaxRequests:   120, // per IP
			},
			Admin: RateLimitTierConfig{
				WindowSeconds: 60,
				MaxRequests:   10,
			},
			CleanupIntervalSeconds: 300, // Clean up expired buckets every 5 minutes
		},
		Watch: WatchConfig{
			Enabled:  false,
			Schedule: "@every 30s",
		},
		Telegram: TelegramConfig{
			Enabled:  false,
			BotToken: "${TELEGRAM_BOT_TOKEN}",
		},
	}
}

// Load loads configuration from a file. A missing file is created with the
// defaults. Fields absent from the file keep their default values.
func Load(path string) (*Config, error) {
	cfg := Default()

	// Check if file exists, create default if not
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := cfg.Save(path); err != nil {
			return nil, fmt.Errorf("failed to save default config: %w", err)
		}
	} else {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.expandTilde()

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}

	cfg.expandEnvVars()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// applyEnvOverrides lets the deployment environment win over the file for
// the settings the service has always read from the environment.
func (c *Config) applyEnvOverrides() error {
	if v := os.Getenv(EnvArtifactDir); v != "" {
		c.ArtifactDir = v
	}
	if v := os.Getenv(EnvCorpusPath); v != "" {
		c.CorpusPath = v
	}
	if v := os.Getenv(EnvPort); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvPort, v, err)
		}
		c.Port = port
	}
	return nil
}

// expandEnvVars expands ${ENV_VAR} references in configuration values
func (c *Config) expandEnvVars() {
	c.CorpusPath = os.ExpandEnv(c.CorpusPath)
	c.ArtifactDir = os.ExpandEnv(c.ArtifactDir)
	c.ReloadToken = os.ExpandEnv(c.ReloadToken)
	c.ReloadTokenHash = os.ExpandEnv(c.ReloadTokenHash)
	c.Telegram.BotToken = os.ExpandEnv(c.Telegram.BotToken)
}

// expandTilde replaces a leading "~/" with the user's home directory in
// path-valued config fields.
func (c *Config) expandTilde() {
	home, err := os.UserHomeDir()
	if err != nil {
		return // can't expand, leave as-is
	}
	expand := func(p string) string {
		if p == "~" {
			return home
		}
		if strings.HasPrefix(p, "~/") {
			return filepath.Join(home, p[2:])
		}
		return p
	}

	c.CorpusPath = expand(c.CorpusPath)
	c.ArtifactDir = expand(c.ArtifactDir)
}

// Validate validates the entire configuration
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if c.CorpusPath == "" {
		return fmt.Errorf("corpus_path is required")
	}
	if c.ArtifactDir == "" {
		return fmt.Errorf("artifact_dir is required")
	}

	m := c.Matching
	if m.Threshold < 0 || m.Threshold >= 1 {
		return fmt.Errorf("matching.threshold must be in [0, 1), got %v", m.Threshold)
	}
	if m.NGramMin < 1 || m.NGramMax < m.NGramMin {
		return fmt.Errorf("invalid n-gram range (%d, %d)", m.NGramMin, m.NGramMax)
	}
	if len(m.Greetings) == 0 {
		return fmt.Errorf("matching.greetings must not be empty")
	}

	switch c.Store.Backend {
	case store.BackendFile, store.BackendSQLite:
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}

	if c.RateLimiting.Enabled {
		if c.RateLimiting.Query.WindowSeconds <= 0 || c.RateLimiting.Query.MaxRequests <= 0 {
			return fmt.Errorf("invalid query rate limiting configuration")
		}
		if c.RateLimiting.Admin.WindowSeconds <= 0 || c.RateLimiting.Admin.MaxRequests <= 0 {
			return fmt.Errorf("invalid admin rate limiting configuration")
		}
	}

	if c.Watch.Enabled {
		if _, err := cron.ParseStandard(c.Watch.Schedule); err != nil {
			return fmt.Errorf("invalid watch schedule %q: %w", c.Watch.Schedule, err)
		}
	}

	if c.Telegram.Enabled && c.Telegram.BotToken == "" {
		return fmt.Errorf("telegram is enabled but bot_token is empty")
	}

	return nil
}

// ReloadEnabled reports whether a reload secret is configured.
func (c *Config) ReloadEnabled() bool {
	return c.ReloadToken != "" || c.ReloadTokenHash != ""
}
