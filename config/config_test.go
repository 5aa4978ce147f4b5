package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/extreme-creations/formie/integration"
)

func validConfig() *Config {
	return &Config{
		NATS: NATSConfig{URL: "nats://localhost:4222"},
		Integrations: []integration.Config{
			{
				Handle:   "mailchimp",
				Category: integration.CategoryEmailMarketing,
				Enabled:  true,
				Endpoint: "https://api.example.com/members",
				ListID:   "abc",
			},
			{
				Handle:   "salesforce",
				Category: integration.CategoryCRM,
				Enabled:  true,
				Endpoint: "https://example.my.salesforce.com/services/data",
			},
		},
	}
}

func TestConfig_Validate_AppliesDefaults(t *testing.T) {
	cfg := validConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "formie", cfg.AppName)
	assert.Equal(t, 10, cfg.NATS.MaxReconnects)
	assert.Equal(t, 2*time.Second, cfg.NATS.ReconnectWait)
	assert.Equal(t, ":9090", cfg.HTTP.ListenAddr)
	assert.Equal(t, "formie-delivery-log", cfg.LogBucket)
	assert.Equal(t, "FORMIE_SENDS", cfg.Queue.StreamName)
}

func TestConfig_Validate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing nats url", func(c *Config) { c.NATS.URL = "" }},
		{"bad timezone", func(c *Config) { c.Timezone = "Mars/Olympus" }},
		{"duplicate handle", func(c *Config) {
			c.Integrations = append(c.Integrations, c.Integrations[0])
		}},
		{"handle with subject wildcard", func(c *Config) {
			c.Integrations[0].Handle = "mail.chimp"
		}},
		{"invalid integration", func(c *Config) {
			c.Integrations[0].Endpoint = ""
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestConfig_Validate_NormalizesHandles(t *testing.T) {
	cfg := validConfig()
	cfg.Integrations[0].Handle = "MailChimp"
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "mailchimp", cfg.Integrations[0].Handle)
}

func TestConfig_Location(t *testing.T) {
	cfg := validConfig()
	assert.Equal(t, time.UTC, cfg.Location())

	cfg.Timezone = "Australia/Sydney"
	loc := cfg.Location()
	assert.Equal(t, "Australia/Sydney", loc.String())
}

func TestConfig_Integration(t *testing.T) {
	cfg := validConfig()
	require.NoError(t, cfg.Validate())

	ic, ok := cfg.Integration("mailchimp")
	require.True(t, ok)
	assert.Equal(t, "abc", ic.ListID)

	// Case-insensitive lookup
	_, ok = cfg.Integration("SALESFORCE")
	assert.True(t, ok)

	_, ok = cfg.Integration("ghost")
	assert.False(t, ok)
}

func TestLoad_FromFile(t *testing.T) {
	raw := `{
		"timezone": "UTC",
		"nats": {"url": "nats://localhost:4222"},
		"integrations": [
			{
				"handle": "webhook-main",
				"category": "webhook",
				"enabled": true,
				"endpoint": "https://hooks.example.com/submissions"
			}
		]
	}`

	path := filepath.Join(t.TempDir(), "formie.json")
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, cfg.Integrations, 1)
	assert.Equal(t, "webhook-main", cfg.Integrations[0].Handle)
}

func TestLoad_EnvOverrides(t *testing.T) {
	raw := `{"nats": {"url": "nats://file:4222"}, "integrations": []}`
	path := filepath.Join(t.TempDir(), "formie.json")
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o600))

	t.Setenv("FORMIE_NATS_URL", "nats://env:4222")
	t.Setenv("FORMIE_HTTP_LISTEN_ADDR", ":8181")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "nats://env:4222", cfg.NATS.URL)
	assert.Equal(t, ":8181", cfg.HTTP.ListenAddr)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/formie.json")
	assert.Error(t, err)
}

func TestSafeConfig_GetReturnsCopy(t *testing.T) {
	cfg := validConfig()
	require.NoError(t, cfg.Validate())

	sc := NewSafeConfig(cfg)

	got := sc.Get()
	got.Integrations[0].ListID = "mutated"

	again := sc.Get()
	assert.Equal(t, "abc", again.Integrations[0].ListID)
}

func TestSafeConfig_UpdateValidates(t *testing.T) {
	sc := NewSafeConfig(validConfig())

	bad := validConfig()
	bad.NATS.URL = ""
	assert.Error(t, sc.Update(bad))

	good := validConfig()
	good.AppName = "formie-staging"
	require.NoError(t, sc.Update(good))
	assert.Equal(t, "formie-staging", sc.Get().AppName)
}

func TestSafeConfig_Integration(t *testing.T) {
	cfg := validConfig()
	require.NoError(t, cfg.Validate())
	sc := NewSafeConfig(cfg)

	ic, ok := sc.Integration("Mailchimp")
	require.True(t, ok)
	assert.Equal(t, "mailchimp", ic.Handle)

	_, ok = sc.Integration("ghost")
	assert.False(t, ok)
}
