package providers

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Registry holds LLM clients and their rate limiters. It supports
// config-driven instantiation, hot reload, and thread-safe access.
type Registry struct {
	mu       sync.RWMutex
	clients  map[string]LLMClient
	limiters map[string]*RateLimiter
	logger   *slog.Logger
}

// NewRegistry creates a new empty provider registry.
func NewRegistry() *Registry {
	return &Registry{
		clients:  make(map[string]LLMClient),
		limiters: make(map[string]*RateLimiter),
		logger:   slog.Default(),
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger *slog.Logger) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logger = logger
}

// Register registers an LLM client by name.
func (r *Registry) Register(name string, client LLMClient, rpm int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[name] = client
	r.limiters[name] = NewRateLimiter(rpm)
	if r.logger != nil {
		r.logger.Info("registered LLM client", "name", name)
	}
}

// Unregister removes an LLM client by name.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.clients, name)
	delete(r.limiters, name)
	if r.logger != nil {
		r.logger.Info("unregistered LLM client", "name", name)
	}
}

// Get returns an LLM client by name.
func (r *Registry) Get(name string) (LLMClient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	client, ok := r.clients[name]
	if !ok {
		return nil, fmt.Errorf("LLM client not found: %s", name)
	}
	return client, nil
}

// Limiter returns the rate limiter for a registered client, or nil.
func (r *Registry) Limiter(name string) *RateLimiter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.limiters[name]
}

// List returns all registered client names.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.clients))
	for name := range r.clients {
		names = append(names, name)
	}
	return names
}

// Has checks if an LLM client is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.clients[name]
	return ok
}

// ProviderConfig defines one provider to instantiate from config.
type ProviderConfig struct {
	Type    string // "openai", "openrouter", "mock"
	Model   string
	APIKey  string
	RPM     int
	Timeout time.Duration
	Enabled bool
}

// RegistryConfig maps provider names to their configuration.
type RegistryConfig struct {
	Providers map[string]ProviderConfig
}

// NewRegistryFromConfig creates a registry with providers based on
// configuration. Only enabled providers with valid API keys are registered
// (the mock type needs no key).
func NewRegistryFromConfig(cfg RegistryConfig) *Registry {
	r := NewRegistry()
	for name, provCfg := range cfg.Providers {
		client := createClient(provCfg)
		if client != nil {
			r.clients[name] = client
			r.limiters[name] = NewRateLimiter(provCfg.RPM)
		}
	}
	return r
}

// Reload updates the registry from new configuration. Providers that are no
// longer configured are unregistered; changed providers are recreated.
func (r *Registry) Reload(cfg RegistryConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()

	want := make(map[string]bool)
	for name, provCfg := range cfg.Providers {
		client := createClient(provCfg)
		if client == nil {
			continue
		}
		want[name] = true

		_, hasExisting := r.clients[name]
		r.clients[name] = client
		r.limiters[name] = NewRateLimiter(provCfg.RPM)
		if r.logger != nil {
			if hasExisting {
				r.logger.Info("updated LLM client", "name", name, "type", provCfg.Type)
			} else {
				r.logger.Info("registered LLM client", "name", name, "type", provCfg.Type)
			}
		}
	}

	for name := range r.clients {
		if !want[name] {
			delete(r.clients, name)
			delete(r.limiters, name)
			if r.logger != nil {
				r.logger.Info("unregistered LLM client", "name", name)
			}
		}
	}
}

// createClient creates an LLM client based on provider type.
func createClient(cfg ProviderConfig) LLMClient {
	if !cfg.Enabled {
		return nil
	}
	switch cfg.Type {
	case "openai":
		if cfg.APIKey == "" {
			return nil
		}
		return NewOpenAIClient(OpenAIConfig{
			APIKey:       cfg.APIKey,
			DefaultModel: cfg.Model,
			Timeout:      cfg.Timeout,
			RPM:          cfg.RPM,
		})
	case "openrouter":
		if cfg.APIKey == "" {
			return nil
		}
		return NewOpenRouterClient(OpenRouterConfig{
			APIKey:       cfg.APIKey,
			DefaultModel: cfg.Model,
			Timeout:      cfg.Timeout,
			RPM:          cfg.RPM,
		})
	case "mock":
		return NewMockClient()
	default:
		return nil
	}
}
