package mapping

import (
	"regexp"
	"strings"

	"github.com/extreme-creations/formie/projector"
	"github.com/extreme-creations/formie/submission"
)

// TemplateRenderer substitutes variables in literal mapping sources. A
// failure must be recoverable: the resolver catches it, logs, and degrades
// to an empty string.
type TemplateRenderer interface {
	Render(template string, sub *submission.Submission) (string, error)
}

var variablePattern = regexp.MustCompile(`\{([a-zA-Z0-9_.]+)\}`)

// VariableRenderer is the default TemplateRenderer: it replaces {handle} and
// {parent.child} tokens with the submission's display-projected values.
// Unknown handles render empty rather than leaving the token in place.
type VariableRenderer struct {
	Projector *projector.Projector
}

// Render implements TemplateRenderer.
func (r *VariableRenderer) Render(template string, sub *submission.Submission) (string, error) {
	out := variablePattern.ReplaceAllStringFunc(template, func(token string) string {
		expr := strings.Trim(token, "{}")

		handle, childKey := expr, ""
		if i := strings.IndexByte(expr, '.'); i > 0 {
			handle, childKey = expr[:i], expr[i+1:]
		}

		desc, ok := sub.Descriptor(handle)
		if !ok {
			return ""
		}
		value, _ := sub.FieldValue(handle)

		if childKey != "" {
			var subfield projector.SubfieldProjection
			value = subfield.ResolveChild(value, childKey)
		}

		return r.Projector.DisplayString(desc, value)
	})

	return out, nil
}
