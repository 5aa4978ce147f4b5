package integration

import (
	"net/url"
	"strings"

	"github.com/extreme-creations/formie/errors"
)

// Category groups integrations by how they receive mapped submission data.
type Category string

const (
	// CategoryCRM integrations map submissions onto CRM objects
	// (contacts, leads, opportunities).
	CategoryCRM Category = "crm"
	// CategoryEmailMarketing integrations subscribe submissions to a list
	// and are always subject to opt-in gating.
	CategoryEmailMarketing Category = "emailMarketing"
	// CategoryWebhook integrations receive the resolved payload as-is.
	CategoryWebhook Category = "webhook"
)

// MappingEntry maps one external field handle to a source expression. The
// source is a form field handle, a dotted path into a composite field
// ("address.city"), or a literal/template string ("{firstName} {lastName}").
type MappingEntry struct {
	Target string `json:"target"`
	Source string `json:"source"`
}

// Mapping is the ordered correspondence between an integration's declared
// fields and a form's fields, stored per form+integration pair.
type Mapping []MappingEntry

// Config holds the configuration of one integration instance for one form.
type Config struct {
	Handle   string   `json:"handle"`
	Name     string   `json:"name"`
	Category Category `json:"category"`
	Enabled  bool     `json:"enabled"`

	Endpoint string            `json:"endpoint"`
	Method   string            `json:"method,omitempty"`
	Headers  map[string]string `json:"headers,omitempty"`
	Timeout  int               `json:"timeout,omitempty"` // seconds

	// ListID selects the target list for email-marketing integrations.
	ListID string `json:"listId,omitempty"`

	// OptInField names an agree-kind form field that must be checked
	// before this integration may receive data. Empty disables gating.
	OptInField string `json:"optInField,omitempty"`

	Mapping Mapping `json:"mapping,omitempty"`

	// Fields is the external schema fetched from the integration,
	// read-only input to mapping resolution.
	Fields []Field `json:"fields,omitempty"`
}

// Validate checks the configuration for errors
func (c *Config) Validate() error {
	if c.Handle == "" {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate", "handle is required")
	}

	switch c.Category {
	case CategoryCRM, CategoryEmailMarketing, CategoryWebhook:
	default:
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			"category must be one of crm, emailMarketing, webhook")
	}

	if c.Endpoint == "" {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate", "endpoint is required")
	}

	if _, err := url.Parse(c.Endpoint); err != nil {
		return errors.WrapInvalid(err, "Config", "Validate", "invalid endpoint URL")
	}

	if c.Method != "" {
		switch strings.ToUpper(c.Method) {
		case "GET", "POST", "PUT", "PATCH", "DELETE":
		default:
			return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
				"method must be a standard HTTP verb")
		}
	}

	if c.Timeout < 0 || c.Timeout > 300 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			"timeout must be between 0 and 300 seconds")
	}

	if c.Category == CategoryEmailMarketing && c.ListID == "" {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			"listId is required for email marketing integrations")
	}

	for _, entry := range c.Mapping {
		if entry.Target == "" {
			return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
				"mapping entries require a target handle")
		}
	}

	return nil
}

// RequestMethod returns the configured HTTP method, defaulting to POST.
func (c *Config) RequestMethod() string {
	if c.Method == "" {
		return "POST"
	}
	return strings.ToUpper(c.Method)
}
