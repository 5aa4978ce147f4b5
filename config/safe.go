package config

import (
	"fmt"
	"strings"
	"sync"

	"github.com/extreme-creations/formie/integration"
)

// SafeConfig provides thread-safe access to configuration so the worker can
// pick up reloads while jobs are in flight.
type SafeConfig struct {
	mu     sync.RWMutex
	config *Config
}

// NewSafeConfig creates a new thread-safe config wrapper.
func NewSafeConfig(cfg *Config) *SafeConfig {
	if cfg == nil {
		cfg = &Config{}
	}
	return &SafeConfig{config: cfg}
}

// Get returns a deep copy of the current configuration.
func (sc *SafeConfig) Get() *Config {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.config.Clone()
}

// Update atomically replaces the configuration after validation.
func (sc *SafeConfig) Update(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config cannot be nil")
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.config = cfg
	return nil
}

// Integration returns the current configuration for handle. Satisfies
// queue.ConfigSource without copying the whole config per lookup.
func (sc *SafeConfig) Integration(handle string) (integration.Config, bool) {
	sc.mu.RLock()
	defer sc.mu.RUnlock()

	handle = strings.ToLower(handle)
	for _, ic := range sc.config.Integrations {
		if ic.Handle == handle {
			return ic, true
		}
	}
	return integration.Config{}, false
}
