// Package config loads and validates the delivery worker's configuration:
// NATS connection settings, queue tuning, the timezone used for date
// projection, and the set of configured integrations.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"
	"unicode"

	"github.com/extreme-creations/formie/errors"
	"github.com/extreme-creations/formie/integration"
	"github.com/extreme-creations/formie/queue"
)

// NATSConfig defines NATS connection settings.
type NATSConfig struct {
	URL           string        `json:"url,omitempty"`
	MaxReconnects int           `json:"max_reconnects,omitempty"`
	ReconnectWait time.Duration `json:"reconnect_wait,omitempty"`
	Username      string        `json:"username,omitempty"`
	Password      string        `json:"password,omitempty"`
	Token         string        `json:"token,omitempty"`
}

// HTTPConfig defines the operational HTTP listener (metrics, health).
type HTTPConfig struct {
	ListenAddr string `json:"listen_addr,omitempty"`
}

// Config is the complete worker configuration.
type Config struct {
	AppName      string               `json:"app_name,omitempty"`
	Environment  string               `json:"environment,omitempty"` // "prod", "dev", "test"
	Timezone     string               `json:"timezone,omitempty"`    // IANA name, default UTC
	NATS         NATSConfig           `json:"nats"`
	HTTP         HTTPConfig           `json:"http,omitempty"`
	Queue        queue.Config         `json:"queue,omitempty"`
	LogBucket    string               `json:"log_bucket,omitempty"` // delivery log KV bucket
	Integrations []integration.Config `json:"integrations"`
}

// Validate checks the config and applies defaults. Integration handles must
// be unique and NATS-subject compatible because they become subject tokens.
func (c *Config) Validate() error {
	if c.AppName == "" {
		c.AppName = "formie"
	}
	if c.NATS.URL == "" {
		return fmt.Errorf("nats.url is required")
	}
	if c.NATS.MaxReconnects == 0 {
		c.NATS.MaxReconnects = 10
	}
	if c.NATS.ReconnectWait == 0 {
		c.NATS.ReconnectWait = 2 * time.Second
	}
	if c.HTTP.ListenAddr == "" {
		c.HTTP.ListenAddr = ":9090"
	}
	if c.LogBucket == "" {
		c.LogBucket = "formie-delivery-log"
	}

	if c.Timezone != "" {
		if _, err := time.LoadLocation(c.Timezone); err != nil {
			return fmt.Errorf("timezone %q: %w", c.Timezone, err)
		}
	}

	if err := c.Queue.Validate(); err != nil {
		return fmt.Errorf("queue: %w", err)
	}

	seen := make(map[string]bool, len(c.Integrations))
	for i := range c.Integrations {
		ic := &c.Integrations[i]
		ic.Handle = strings.ToLower(ic.Handle)
		if !isValidSubjectToken(ic.Handle) {
			return fmt.Errorf(
				"integration handle %q is not valid for NATS subjects (must be alphanumeric with dashes, underscores)",
				ic.Handle)
		}
		if seen[ic.Handle] {
			return fmt.Errorf("duplicate integration handle %q", ic.Handle)
		}
		seen[ic.Handle] = true
		if err := ic.Validate(); err != nil {
			return fmt.Errorf("integration %s: %w", ic.Handle, err)
		}
	}

	return nil
}

// Location returns the configured timezone, defaulting to UTC. Call after
// Validate; an unparseable zone falls back to UTC.
func (c *Config) Location() *time.Location {
	if c.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Integration returns the configuration for handle. Satisfies
// queue.ConfigSource.
func (c *Config) Integration(handle string) (integration.Config, bool) {
	handle = strings.ToLower(handle)
	for _, ic := range c.Integrations {
		if ic.Handle == handle {
			return ic, true
		}
	}
	return integration.Config{}, false
}

// Clone creates a deep copy of the configuration.
func (c *Config) Clone() *Config {
	if c == nil {
		return &Config{}
	}

	data, err := json.Marshal(c)
	if err != nil {
		copied := *c
		return &copied
	}

	var clone Config
	if err := json.Unmarshal(data, &clone); err != nil {
		copied := *c
		return &copied
	}
	return &clone
}

// Load reads a JSON config file, applies environment overrides, and
// validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapInvalid(err, "Config", "Load", "read file")
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, errors.WrapInvalid(err, "Config", "Load", "parse json")
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, errors.WrapInvalid(err, "Config", "Load", "validate")
	}
	return &cfg, nil
}

// applyEnv lets deployment environments override connection settings without
// editing the config file.
func (c *Config) applyEnv() {
	if v := os.Getenv("FORMIE_NATS_URL"); v != "" {
		c.NATS.URL = v
	}
	if v := os.Getenv("FORMIE_NATS_USERNAME"); v != "" {
		c.NATS.Username = v
	}
	if v := os.Getenv("FORMIE_NATS_PASSWORD"); v != "" {
		c.NATS.Password = v
	}
	if v := os.Getenv("FORMIE_NATS_TOKEN"); v != "" {
		c.NATS.Token = v
	}
	if v := os.Getenv("FORMIE_HTTP_LISTEN_ADDR"); v != "" {
		c.HTTP.ListenAddr = v
	}
	if v := os.Getenv("FORMIE_TIMEZONE"); v != "" {
		c.Timezone = v
	}
}

// isValidSubjectToken checks if a string is valid as one NATS subject token.
func isValidSubjectToken(s string) bool {
	if len(s) == 0 {
		return false
	}
	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-' && r != '_' {
			return false
		}
	}
	return true
}
