// Package config loads process configuration: API keys, the model
// catalogue path, classifier settings, and the log level. Environment
// variables take precedence over file configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/zen-systems/agentgate/pkg/registry"
)

// Config holds the application configuration.
type Config struct {
	AnthropicAPIKey string
	OpenAIAPIKey    string
	GoogleAPIKey    string

	LogLevel      string
	ModelsPath    string
	VerifierModel string
	VerifyTimeout time.Duration
	IdleTimeout   time.Duration

	ConfigDir string
}

// FileConfig represents the structure of ~/.agentgate/config.yaml.
type FileConfig struct {
	APIKeys  APIKeysConfig  `yaml:"api_keys"`
	LogLevel string         `yaml:"log_level"`
	Models   string         `yaml:"models"`
	Classify ClassifyConfig `yaml:"classify"`
	Stream   StreamConfig   `yaml:"stream"`
}

// APIKeysConfig holds API key configuration from file.
type APIKeysConfig struct {
	Anthropic string `yaml:"anthropic"`
	OpenAI    string `yaml:"openai"`
	Google    string `yaml:"google"`
}

// ClassifyConfig tunes the LLM verification step.
type ClassifyConfig struct {
	VerifierModel   string `yaml:"verifier_model"`
	VerifyTimeoutMs int    `yaml:"verify_timeout_ms"`
}

// StreamConfig tunes stream normalization.
type StreamConfig struct {
	IdleTimeoutMs int `yaml:"idle_timeout_ms"`
}

// Load reads configuration from .env, the config file, and environment
// variables, in increasing order of precedence.
func Load() (*Config, error) {
	_ = godotenv.Load()

	configDir, err := getConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get config directory: %w", err)
	}

	fileConfig := loadFileConfig(filepath.Join(configDir, "config.yaml"))

	cfg := &Config{
		AnthropicAPIKey: getEnvOrDefault("ANTHROPIC_API_KEY", fileConfig.APIKeys.Anthropic),
		OpenAIAPIKey:    getEnvOrDefault("OPENAI_API_KEY", fileConfig.APIKeys.OpenAI),
		GoogleAPIKey:    getEnvOrDefault("GOOGLE_API_KEY", fileConfig.APIKeys.Google),
		LogLevel:        getEnvOrDefault("AGENTGATE_LOG_LEVEL", fileConfig.LogLevel),
		ModelsPath:      getEnvOrDefault("AGENTGATE_MODELS", fileConfig.Models),
		VerifierModel:   fileConfig.Classify.VerifierModel,
		ConfigDir:       configDir,
	}
	if fileConfig.Classify.VerifyTimeoutMs > 0 {
		cfg.VerifyTimeout = time.Duration(fileConfig.Classify.VerifyTimeoutMs) * time.Millisecond
	}
	if fileConfig.Stream.IdleTimeoutMs > 0 {
		cfg.IdleTimeout = time.Duration(fileConfig.Stream.IdleTimeoutMs) * time.Millisecond
	}

	return cfg, nil
}

// HasProvider reports whether the API key for the given provider is
// configured.
func (c *Config) HasProvider(name string) bool {
	switch name {
	case "anthropic":
		return c.AnthropicAPIKey != ""
	case "openai":
		return c.OpenAIAPIKey != ""
	case "google":
		return c.GoogleAPIKey != ""
	default:
		return false
	}
}

// Registry loads the model catalogue from ModelsPath, or the built-in
// catalogue when no path is configured.
func (c *Config) Registry() (*registry.Registry, error) {
	if c.ModelsPath != "" {
		return registry.LoadFile(c.ModelsPath)
	}
	return registry.Default(), nil
}

// Logger builds the root logger at the configured level. Unknown or
// empty levels fall back to info.
func (c *Config) Logger(console bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if parsed, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel)); err == nil && c.LogLevel != "" {
		level = parsed
	}
	var logger zerolog.Logger
	if console {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr})
	} else {
		logger = zerolog.New(os.Stderr)
	}
	return logger.Level(level).With().Timestamp().Logger()
}

// loadFileConfig reads the config file, returning an empty config if
// the file does not exist or does not parse.
func loadFileConfig(path string) *FileConfig {
	cfg := &FileConfig{}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg
	}

	_ = yaml.Unmarshal(data, cfg)
	return cfg
}

// getEnvOrDefault returns the environment variable value if set,
// otherwise returns the default value.
func getEnvOrDefault(envVar, defaultValue string) string {
	if val := os.Getenv(envVar); val != "" {
		return val
	}
	return defaultValue
}

func getConfigDir() (string, error) {
	if dir := os.Getenv("AGENTGATE_CONFIG_DIR"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	configDir := filepath.Join(home, ".agentgate")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return "", err
	}
	return configDir, nil
}
