// Package config loads distill configuration from defaults, an optional YAML
// file and DISTILL_-prefixed environment variables, with hot reload on file
// change.
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	yaml "gopkg.in/yaml.v2"

	"github.com/jackzampolin/distill/internal/providers"
)

// Manager handles loading and hot-reloading configuration.
type Manager struct {
	mu        sync.RWMutex
	config    *Config
	callbacks []func(*Config)
}

// NewManager creates a new config manager and loads initial config.
func NewManager(cfgFile string) (*Manager, error) {
	cm := &Manager{
		callbacks: make([]func(*Config), 0),
	}

	if err := cm.initViper(cfgFile); err != nil {
		return nil, err
	}

	cfg, err := cm.load()
	if err != nil {
		return nil, err
	}
	cm.config = cfg

	return cm, nil
}

// initViper sets up viper with defaults and config file.
func (cm *Manager) initViper(cfgFile string) error {
	defaults := DefaultConfig()
	viper.SetDefault("max_tokens_per_request", defaults.MaxTokensPerRequest)
	viper.SetDefault("document_chunk_threshold", defaults.DocumentChunkThreshold)
	viper.SetDefault("schema_chunk_threshold", defaults.SchemaChunkThreshold)
	viper.SetDefault("overlap_tokens", defaults.OverlapTokens)
	viper.SetDefault("confidence_threshold", defaults.ConfidenceThreshold)
	viper.SetDefault("single_pass_depth_threshold", defaults.SinglePassDepthThreshold)
	viper.SetDefault("single_pass_object_threshold", defaults.SinglePassObjectThreshold)
	viper.SetDefault("max_concurrent_calls", defaults.MaxConcurrentCalls)
	viper.SetDefault("request_timeout_seconds", defaults.RequestTimeoutSeconds)
	viper.SetDefault("llm", defaults.LLM)
	viper.SetDefault("scoring", defaults.Scoring)
	viper.SetDefault("server", defaults.Server)

	// Environment variables with DISTILL_ prefix
	viper.SetEnvPrefix("DISTILL")
	viper.AutomaticEnv()

	// Config file
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.distill")
	}

	// Try to read config file (not required)
	if err := viper.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	return nil
}

// load parses the current viper state into a Config struct.
func (cm *Manager) load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Get returns the current configuration (thread-safe).
func (cm *Manager) Get() *Config {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.config
}

// OnChange registers a callback for config changes.
func (cm *Manager) OnChange(fn func(*Config)) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.callbacks = append(cm.callbacks, fn)
}

// WatchConfig enables hot-reloading of configuration.
func (cm *Manager) WatchConfig() {
	viper.OnConfigChange(func(e fsnotify.Event) {
		cfg, err := cm.load()
		if err != nil {
			return
		}

		cm.mu.Lock()
		cm.config = cfg
		callbacks := make([]func(*Config), len(cm.callbacks))
		copy(callbacks, cm.callbacks)
		cm.mu.Unlock()

		for _, fn := range callbacks {
			fn(cfg)
		}
	})
	viper.WatchConfig()
}

// ResolveEnvVars expands ${ENV_VAR} references in a string.
func ResolveEnvVars(value string) string {
	if value == "" {
		return value
	}
	pattern := regexp.MustCompile(`\$\{([^}]+)\}`)
	return pattern.ReplaceAllStringFunc(value, func(match string) string {
		varName := match[2 : len(match)-1]
		return os.Getenv(varName)
	})
}

// ToProviderRegistryConfig converts the config to a format suitable for
// providers.Registry. It resolves ${ENV_VAR} references in the API key.
func (c *Config) ToProviderRegistryConfig() providers.RegistryConfig {
	return providers.RegistryConfig{
		Providers: map[string]providers.ProviderConfig{
			c.LLM.Provider: {
				Type:    c.LLM.Provider,
				Model:   c.LLM.Model,
				APIKey:  ResolveEnvVars(c.LLM.APIKey),
				RPM:     c.LLM.RateLimitRPM,
				Timeout: time.Duration(c.RequestTimeoutSeconds) * time.Second,
				Enabled: true,
			},
		},
	}
}

// RequestTimeout returns the request deadline as a duration.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

// RetryDelay returns the base backoff delay between call retries.
func (c *Config) RetryDelay() time.Duration {
	return time.Duration(c.LLM.RetryDelayMS) * time.Millisecond
}

// WriteDefault writes the default configuration to the specified path.
// Existing files are left alone.
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists: %s", path)
	}

	cfg := DefaultConfig()
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# Distill configuration
# API keys use ${ENV_VAR} syntax to reference environment variables
# Set these in your shell: export OPENAI_API_KEY=xxx OPENROUTER_API_KEY=xxx

`)
	return os.WriteFile(path, append(header, data...), 0o644)
}
