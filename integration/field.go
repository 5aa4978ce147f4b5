// Package integration defines the external side of a field mapping: the
// fields an external system (CRM, email-marketing list, webhook receiver)
// declares, their types, and the configuration of one integration instance.
package integration

// FieldType is the closed set of types an external integration field may
// declare. Every form field kind projects into one of these.
type FieldType string

const (
	FieldTypeString     FieldType = "string"
	FieldTypeArray      FieldType = "array"
	FieldTypeBoolean    FieldType = "boolean"
	FieldTypeFloat      FieldType = "float"
	FieldTypeNumber     FieldType = "number"
	FieldTypeDate       FieldType = "date"
	FieldTypeDateTime   FieldType = "datetime"
	FieldTypeDateObject FieldType = "dateobject"
)

// FieldOption is one option declared on an external field's option tree.
type FieldOption struct {
	Label   string        `json:"label"`
	Value   string        `json:"value"`
	Options []FieldOption `json:"options,omitempty"`
}

// Field describes one field on the external integration side, reflecting the
// external system's schema. Instances are created by an integration's
// settings-fetch step and are immutable once fetched; they are re-fetched on
// demand, never diffed or merged.
type Field struct {
	Handle   string        `json:"handle"`
	Name     string        `json:"name"`
	Type     FieldType     `json:"type"`
	Required bool          `json:"required,omitempty"`
	Options  []FieldOption `json:"options,omitempty"`
}

// FindField returns the field with the given handle from a declared field
// list. When the handle is unknown the zero Field is returned with ok=false;
// callers fall back to string behavior.
func FindField(fields []Field, handle string) (Field, bool) {
	for _, f := range fields {
		if f.Handle == handle {
			return f, true
		}
	}
	return Field{}, false
}
