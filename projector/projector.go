// Package projector converts normalized field values into the shapes the
// rest of the system needs: display strings, human-facing summaries, export
// values, and integration-typed values. All projections are total over
// well-formed values: a parse failure degrades to an empty result, never an
// error.
package projector

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/extreme-creations/formie/field"
)

// MaskedPlaceholder replaces sensitive values in summaries and exports.
// Fixed length so the placeholder gives no indication of the stored value.
const MaskedPlaceholder = "•••••••••••••••••••••"

// Projector projects field values. Location is the system's configured zone,
// used to normalize date objects handed to integrations; it is never the
// submitting user's browser zone.
type Projector struct {
	Location *time.Location

	subfield SubfieldProjection
	relation RelationProjection
}

// New creates a projector. A nil location defaults to UTC.
func New(loc *time.Location) *Projector {
	if loc == nil {
		loc = time.UTC
	}
	return &Projector{Location: loc}
}

// DisplayString renders a value for machine-facing display: option values
// (not labels), dates in the field's configured layout, multi-values joined
// with ", ", composite and nested shapes flattened depth-first.
func (p *Projector) DisplayString(desc field.Descriptor, v field.Value) string {
	switch v.Shape() {
	case field.ShapeEmpty:
		return ""

	case field.ShapeScalar:
		return scalarString(v.Scalar())

	case field.ShapeOptionSingle:
		return v.Option().Value

	case field.ShapeOptionMulti:
		parts := make([]string, 0, len(v.Options()))
		for _, opt := range v.Options() {
			parts = append(parts, opt.Value)
		}
		return strings.Join(parts, ", ")

	case field.ShapeDateTime:
		return v.DateTime().Instant.Format(desc.DateLayout())

	case field.ShapeRelationIDs:
		return p.relation.IDString(v.RelationIDs())

	case field.ShapeSubfieldMap:
		parts := make([]string, 0, len(v.Subfields()))
		for _, sub := range v.Subfields() {
			if s := scalarString(sub.Value); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ", ")

	case field.ShapeNestedRows:
		rows := make([]string, 0, len(v.Rows()))
		for _, row := range v.Rows() {
			parts := make([]string, 0, len(row.Children))
			for _, child := range row.Children {
				childDesc, _ := desc.Child(child.Handle)
				if s := p.DisplayString(childDesc, child.Value); s != "" {
					parts = append(parts, s)
				}
			}
			rows = append(rows, strings.Join(parts, ", "))
		}
		return strings.Join(rows, "\n")

	default:
		return ""
	}
}

// SummaryString renders a value for human-facing summaries: option labels
// instead of values, sensitive kinds masked.
func (p *Projector) SummaryString(desc field.Descriptor, v field.Value) string {
	if desc.Kind.IsSensitive() {
		if v.IsEmpty() || scalarString(v.Scalar()) == "" {
			return ""
		}
		return MaskedPlaceholder
	}

	switch v.Shape() {
	case field.ShapeOptionSingle:
		return v.Option().Label

	case field.ShapeOptionMulti:
		parts := make([]string, 0, len(v.Options()))
		for _, opt := range v.Options() {
			parts = append(parts, opt.Label)
		}
		return strings.Join(parts, ", ")

	default:
		return p.DisplayString(desc, v)
	}
}

// ExportValue renders a value for tabular export. Composite values export as
// a handle-keyed map so each subfield lands in its own column; sensitive
// kinds export the masked placeholder, never the raw or hashed value.
func (p *Projector) ExportValue(desc field.Descriptor, v field.Value) any {
	if desc.Kind.IsSensitive() {
		if v.IsEmpty() || scalarString(v.Scalar()) == "" {
			return ""
		}
		return MaskedPlaceholder
	}

	switch v.Shape() {
	case field.ShapeSubfieldMap:
		out := make(map[string]any, len(v.Subfields()))
		for _, sub := range v.Subfields() {
			out[sub.Handle] = sub.Value
		}
		return out

	case field.ShapeNestedRows:
		rows := make([]map[string]any, 0, len(v.Rows()))
		for _, row := range v.Rows() {
			rowOut := make(map[string]any, len(row.Children))
			for _, child := range row.Children {
				childDesc, _ := desc.Child(child.Handle)
				rowOut[child.Handle] = p.ExportValue(childDesc, child.Value)
			}
			rows = append(rows, rowOut)
		}
		return rows

	default:
		return p.DisplayString(desc, v)
	}
}

// scalarString renders a scalar for display. Nil renders empty, never "null".
func scalarString(s any) string {
	switch val := s.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case time.Time:
		return val.Format(time.RFC3339)
	default:
		return fmt.Sprintf("%v", val)
	}
}
