// Package mapping resolves a configured field mapping against a submission,
// producing the ordered key/value map an integration's payload is assembled
// from. Resolution is deliberately forgiving: stale mappings, removed fields
// and failed coercions degrade to dropped keys, never to a failed send.
package mapping

import (
	"context"
	"log/slog"
	"strings"

	"github.com/extreme-creations/formie/errors"
	"github.com/extreme-creations/formie/integration"
	"github.com/extreme-creations/formie/projector"
	"github.com/extreme-creations/formie/submission"
)

// Resolver resolves mappings into outbound key/value maps.
type Resolver struct {
	projector *projector.Projector
	renderer  TemplateRenderer
	logger    *slog.Logger
}

// NewResolver creates a resolver. A nil renderer falls back to the built-in
// variable renderer; a nil logger falls back to slog.Default().
func NewResolver(p *projector.Projector, renderer TemplateRenderer, logger *slog.Logger) *Resolver {
	if renderer == nil {
		renderer = &VariableRenderer{Projector: p}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{projector: p, renderer: renderer, logger: logger}
}

// Resolve produces the concrete outbound key/value map for one mapping.
// Every target key resolves through the projector against the declared
// integration field type; unknown targets default to string behavior and
// null results are stripped recursively. Only a nil submission is an error,
// and that is the caller's precondition to avoid.
func (r *Resolver) Resolve(ctx context.Context, sub *submission.Submission, m integration.Mapping, targets []integration.Field) (*OrderedMap, error) {
	if sub == nil {
		return nil, errors.WrapFatal(errors.ErrSubmissionNotFound, "Resolver", "Resolve", "load submission")
	}

	out := NewOrderedMap()

	for _, entry := range m {
		if entry.Target == "" {
			continue
		}

		target, ok := integration.FindField(targets, entry.Target)
		if !ok {
			// Unknown target handle: default to string behavior.
			target = integration.Field{Handle: entry.Target, Type: integration.FieldTypeString}
		}

		out.Set(entry.Target, r.resolveSource(ctx, sub, entry.Source, target))
	}

	StripNulls(out)

	return out, nil
}

// resolveSource resolves one source expression: a literal/template string, a
// dotted path into a composite field, or a plain field handle.
func (r *Resolver) resolveSource(_ context.Context, sub *submission.Submission, source string, target integration.Field) any {
	if source == "" {
		return nil
	}

	// Literal/template expression
	if strings.Contains(source, "{") {
		rendered, err := r.renderer.Render(source, sub)
		if err != nil {
			r.logger.Warn("template render failed, using empty value",
				"source", source,
				"error", err)
			rendered = ""
		}
		if rendered == "" {
			return nil
		}
		if target.Type == integration.FieldTypeArray {
			return []any{rendered}
		}
		return rendered
	}

	handle, childKey := source, ""
	if i := strings.IndexByte(source, '.'); i > 0 {
		handle, childKey = source[:i], source[i+1:]
	}

	desc, ok := sub.Descriptor(handle)
	if !ok {
		// Mapping points at a deleted field. Resolve to null and let the
		// strip pass drop it, so stale configuration never breaks sends.
		return nil
	}

	value, _ := sub.FieldValue(handle)

	return r.projector.IntegrationValue(desc, value, target, childKey)
}

// StripNulls removes nil entries from a resolved map, recursing into nested
// maps and slices. Integrations never receive explicit null placeholders.
func StripNulls(m *OrderedMap) {
	for _, key := range m.Keys() {
		v, _ := m.Get(key)
		cleaned, keep := stripValue(v)
		if !keep {
			m.Delete(key)
			continue
		}
		m.Set(key, cleaned)
	}
}

func stripValue(v any) (any, bool) {
	switch val := v.(type) {
	case nil:
		return nil, false

	case *OrderedMap:
		StripNulls(val)
		return val, true

	case map[string]any:
		for k, nested := range val {
			cleaned, keep := stripValue(nested)
			if !keep {
				delete(val, k)
				continue
			}
			val[k] = cleaned
		}
		return val, true

	case []any:
		out := make([]any, 0, len(val))
		for _, item := range val {
			cleaned, keep := stripValue(item)
			if keep {
				out = append(out, cleaned)
			}
		}
		return out, true

	default:
		return v, true
	}
}
