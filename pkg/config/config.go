package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"coralrelay/pkg/relay"
)

const (
	envPrefix     = "coral"
	envConfigPath = "CORAL_CONFIG"

	UpstreamModeHTTP   = "http"
	UpstreamModeMemory = "memory"

	defaultRequestTimeoutSeconds = 10
)

// Config is the root runtime configuration shared by both tiers.
type Config struct {
	Facade   FacadeConfig   `json:"facade" yaml:"facade"`
	Mediator MediatorConfig `json:"mediator" yaml:"mediator"`
	Upstream UpstreamConfig `json:"upstream" yaml:"upstream"`
	Logging  LoggingConfig  `json:"logging,omitempty" yaml:"logging,omitempty"`
	Channels ChannelsConfig `json:"channels" yaml:"channels"`
}

// LoggingConfig controls structured log output format and verbosity.
type LoggingConfig struct {
	Format    string `json:"format,omitempty" yaml:"format,omitempty" validate:"omitempty,oneof=text json"`
	Level     string `json:"level,omitempty" yaml:"level,omitempty" validate:"omitempty,oneof=debug info warn warning error"`
	AddSource bool   `json:"add_source,omitempty" yaml:"add_source,omitempty" split_words:"true"`
}

// FacadeConfig configures the application-facing tier.
type FacadeConfig struct {
	Host                  string `json:"host" yaml:"host"`
	Port                  int    `json:"port" yaml:"port" validate:"min=1,max=65535"`
	MediatorURL           string `json:"mediator_url" yaml:"mediator_url" split_words:"true" validate:"required,url"`
	RequestTimeoutSeconds int    `json:"request_timeout_seconds" yaml:"request_timeout_seconds" split_words:"true" validate:"min=0"`
}

// MediatorConfig configures the protocol-mediating tier.
type MediatorConfig struct {
	Host                  string `json:"host" yaml:"host"`
	Port                  int    `json:"port" yaml:"port" validate:"min=1,max=65535"`
	RequestTimeoutSeconds int    `json:"request_timeout_seconds" yaml:"request_timeout_seconds" split_words:"true" validate:"min=0"`
}

// UpstreamConfig selects and configures the coral network binding.
type UpstreamConfig struct {
	Mode                  string `json:"mode" yaml:"mode" validate:"oneof=http memory"`
	ServerURL             string `json:"server_url" yaml:"server_url" split_words:"true" validate:"omitempty,url"`
	APIKeyEnv             string `json:"api_key_env,omitempty" yaml:"api_key_env,omitempty" envconfig:"API_KEY_ENV"`
	RequestTimeoutSeconds int    `json:"request_timeout_seconds" yaml:"request_timeout_seconds" split_words:"true" validate:"min=0"`
}

// ChannelsConfig stores transport adapter settings.
type ChannelsConfig struct {
	Telegram TelegramConfig `json:"telegram" yaml:"telegram"`
}

// TelegramConfig configures Telegram channel integration.
type TelegramConfig struct {
	Enabled   bool     `json:"enabled" yaml:"enabled"`
	Token     string   `json:"token" yaml:"token" validate:"required_if=Enabled true"`
	AllowFrom []string `json:"allow_from" yaml:"allow_from" split_words:"true"`
}

// legacyEnv holds the unprefixed variable names the services have always read.
// Prefixed CORAL_* variables take precedence over these.
type legacyEnv struct {
	Port              int      `envconfig:"PORT"`
	CoralServiceURL   string   `envconfig:"CORAL_SERVICE_URL"`
	CoralServerURL    string   `envconfig:"CORAL_SERVER_URL"`
	TelegramBotToken  string   `envconfig:"TELEGRAM_BOT_TOKEN"`
	TelegramAllowFrom []string `envconfig:"TELEGRAM_ALLOW_FROM"`
}

// DefaultConfig returns the configuration used when nothing overrides it.
func DefaultConfig() Config {
	return Config{
		Facade: FacadeConfig{
			Host:                  "0.0.0.0",
			Port:                  8000,
			MediatorURL:           "http://localhost:8001",
			RequestTimeoutSeconds: defaultRequestTimeoutSeconds,
		},
		Mediator: MediatorConfig{
			Host:                  "0.0.0.0",
			Port:                  8001,
			RequestTimeoutSeconds: defaultRequestTimeoutSeconds,
		},
		Upstream: UpstreamConfig{
			Mode:                  UpstreamModeMemory,
			ServerURL:             "http://coral.pushcollective.club",
			RequestTimeoutSeconds: defaultRequestTimeoutSeconds,
		},
		Logging: LoggingConfig{
			Format: "text",
			Level:  "info",
		},
	}
}

// Timeout returns the per-request bound for calls into the mediator.
func (c FacadeConfig) Timeout() time.Duration {
	return seconds(c.RequestTimeoutSeconds)
}

// Timeout returns the per-request bound for calls into the upstream.
func (c MediatorConfig) Timeout() time.Duration {
	return seconds(c.RequestTimeoutSeconds)
}

func (c UpstreamConfig) Timeout() time.Duration {
	return seconds(c.RequestTimeoutSeconds)
}

// APIKey resolves the bearer token from the environment variable named by APIKeyEnv.
func (c UpstreamConfig) APIKey() string {
	name := strings.TrimSpace(c.APIKeyEnv)
	if name == "" {
		return ""
	}

	return strings.TrimSpace(os.Getenv(name))
}

func seconds(value int) time.Duration {
	if value <= 0 {
		value = defaultRequestTimeoutSeconds
	}

	return time.Duration(value) * time.Second
}

// LoadConfig layers defaults, an optional config file, .env and environment
// overrides, then validates the result.
//
// An empty path falls back to CORAL_CONFIG, then to config.{json,yaml,yml}
// in the working directory. Running without any file is allowed.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	configPath, err := findConfigPath(path)
	if err != nil {
		return nil, err
	}
	if configPath != "" {
		if err := readFile(configPath, &cfg); err != nil {
			return nil, err
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks field rules and the cross-field constraints.
func (c *Config) Validate() error {
	if err := relay.NewValidator("validate", relay.CategoryInvalidInput).Struct(c); err != nil {
		return fmt.Errorf("invalid config: %s", relay.MessageFromError(err))
	}
	if c.Upstream.Mode == UpstreamModeHTTP && strings.TrimSpace(c.Upstream.ServerURL) == "" {
		return errors.New("invalid config: upstream.server_url is required in http mode")
	}

	return nil
}

func readFile(path string, cfg *Config) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(content, cfg)
	default:
		err = json.Unmarshal(content, cfg)
	}
	if err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}

	return nil
}

// applyEnvOverrides injects env-driven settings on top of file config.
func applyEnvOverrides(cfg *Config) error {
	var legacy legacyEnv
	if err := envconfig.Process("", &legacy); err != nil {
		return fmt.Errorf("read environment: %w", err)
	}

	if legacy.Port != 0 {
		cfg.Facade.Port = legacy.Port
		cfg.Mediator.Port = legacy.Port
	}
	if value := strings.TrimSpace(legacy.CoralServiceURL); value != "" {
		cfg.Facade.MediatorURL = value
	}
	if value := strings.TrimSpace(legacy.CoralServerURL); value != "" {
		cfg.Upstream.ServerURL = value
	}
	if value := strings.TrimSpace(legacy.TelegramBotToken); value != "" {
		cfg.Channels.Telegram.Token = value
	}
	if len(legacy.TelegramAllowFrom) > 0 {
		cfg.Channels.Telegram.AllowFrom = legacy.TelegramAllowFrom
	}

	if err := envconfig.Process(envPrefix, cfg); err != nil {
		return fmt.Errorf("read environment: %w", err)
	}

	return nil
}

// findConfigPath resolves the active config file location.
//
// Precedence is the explicit path, CORAL_CONFIG, then cwd-local candidates.
func findConfigPath(path string) (string, error) {
	if value := strings.TrimSpace(path); value != "" {
		return requireFile(value, "config path")
	}

	if value := strings.TrimSpace(os.Getenv(envConfigPath)); value != "" {
		return requireFile(value, envConfigPath)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("get current working directory: %w", err)
	}

	for _, name := range []string{"config.json", "config.yaml", "config.yml"} {
		candidate := filepath.Join(cwd, name)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
	}

	return "", nil
}

func requireFile(path, source string) (string, error) {
	if info, err := os.Stat(path); err == nil && !info.IsDir() {
		return path, nil
	}

	return "", fmt.Errorf("%s does not point to a file: %s", source, path)
}
