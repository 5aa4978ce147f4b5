package projector

import (
	"strconv"
	"strings"
	"time"

	"github.com/extreme-creations/formie/field"
	"github.com/extreme-creations/formie/integration"
)

// Wire-format layouts for date-typed integration fields.
const (
	dateLayout     = "2006-01-02"
	dateTimeLayout = "2006-01-02 15:04:05"
)

// scalarParseLayouts are tried in order when coercing a stored string into a
// date for date-typed targets.
var scalarParseLayouts = []string{
	time.RFC3339,
	dateTimeLayout,
	dateLayout,
	"15:04:05",
	"15:04",
}

// IntegrationValue projects a value into the shape a target integration
// field declares. fieldKey names a child when the mapping references a
// dotted path ("address.city"); the child is resolved before projection.
//
// The projection is total: a value that cannot be coerced to the target type
// returns nil and the mapping layer drops the key, so one bad value never
// fails a whole send.
func (p *Projector) IntegrationValue(desc field.Descriptor, v field.Value, target integration.Field, fieldKey string) any {
	if fieldKey != "" {
		v = p.subfield.ResolveChild(v, fieldKey)
	}

	if v.IsEmpty() {
		return nil
	}

	switch target.Type {
	case integration.FieldTypeArray:
		return p.arrayValue(desc, v)

	case integration.FieldTypeDate:
		if t, ok := p.coerceTime(v); ok {
			return t.Format(dateLayout)
		}
		return nil

	case integration.FieldTypeDateTime:
		if t, ok := p.coerceTime(v); ok {
			return t.Format(dateTimeLayout)
		}
		return nil

	case integration.FieldTypeDateObject:
		// The one extension point where a downstream integration needs a
		// real date value. Normalized to the system zone so every date
		// path shares one offset.
		if t, ok := p.coerceTime(v); ok {
			return t.In(p.Location)
		}
		return nil

	case integration.FieldTypeBoolean:
		return coerceBool(p.rawScalar(desc, v))

	case integration.FieldTypeFloat:
		if f, ok := coerceFloat(p.rawScalar(desc, v)); ok {
			return f
		}
		return nil

	case integration.FieldTypeNumber:
		if f, ok := coerceFloat(p.rawScalar(desc, v)); ok {
			return int64(f)
		}
		return nil

	default: // FieldTypeString and unknown types
		return p.stringValue(desc, v)
	}
}

// arrayValue always returns a slice, never a bare scalar.
func (p *Projector) arrayValue(desc field.Descriptor, v field.Value) []any {
	switch v.Shape() {
	case field.ShapeOptionMulti:
		out := make([]any, 0, len(v.Options()))
		for _, opt := range v.Options() {
			out = append(out, opt.Value)
		}
		return out

	case field.ShapeOptionSingle:
		return []any{v.Option().Value}

	case field.ShapeRelationIDs:
		return p.relation.IDList(v.RelationIDs())

	case field.ShapeSubfieldMap:
		out := make([]any, 0, len(v.Subfields()))
		for _, sub := range v.Subfields() {
			out = append(out, sub.Value)
		}
		return out

	case field.ShapeNestedRows:
		out := make([]any, 0, len(v.Rows()))
		for _, row := range v.Rows() {
			rowOut := make(map[string]any, len(row.Children))
			for _, child := range row.Children {
				childDesc, _ := desc.Child(child.Handle)
				if cv := p.stringValue(childDesc, child.Value); cv != "" {
					rowOut[child.Handle] = cv
				}
			}
			out = append(out, rowOut)
		}
		return out

	default:
		return []any{p.stringValue(desc, v)}
	}
}

// stringValue renders the value per the field's own string rule. Date values
// on fields that capture a date render as ISO-8601 so receivers can parse
// them unambiguously.
func (p *Projector) stringValue(desc field.Descriptor, v field.Value) string {
	if v.Shape() == field.ShapeDateTime {
		dt := v.DateTime()
		if dt.HasDate {
			return dt.Instant.Format(time.RFC3339)
		}
	}
	return p.DisplayString(desc, v)
}

// rawScalar narrows a value to the scalar used for boolean/numeric coercion.
func (p *Projector) rawScalar(desc field.Descriptor, v field.Value) any {
	switch v.Shape() {
	case field.ShapeScalar:
		return v.Scalar()
	case field.ShapeOptionSingle:
		return v.Option().Value
	default:
		return p.DisplayString(desc, v)
	}
}

// coerceTime extracts a time from a date value or any parseable scalar
// representation.
func (p *Projector) coerceTime(v field.Value) (time.Time, bool) {
	switch v.Shape() {
	case field.ShapeDateTime:
		return v.DateTime().Instant, true

	case field.ShapeScalar:
		switch s := v.Scalar().(type) {
		case time.Time:
			return s, true
		case string:
			return parseTimeString(s)
		}
	}
	return time.Time{}, false
}

func parseTimeString(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range scalarParseLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// coerceBool applies standard boolean casting. Non-coercible input returns
// nil so the mapping layer drops the key rather than sending a literal
// "null".
func coerceBool(s any) any {
	switch val := s.(type) {
	case bool:
		return val
	case float64:
		return val != 0
	case int:
		return val != 0
	case int64:
		return val != 0
	case string:
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "1", "true", "yes", "on", "y":
			return true
		case "0", "false", "no", "off", "n", "":
			return false
		}
		return nil
	default:
		return nil
	}
}

func coerceFloat(s any) (float64, bool) {
	switch val := s.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int64:
		return float64(val), true
	case bool:
		if val {
			return 1, true
		}
		return 0, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}
