// Package field defines the typed, normalized in-memory representation of a
// submitted form value. Value is a tagged union over the supported field
// shapes: exactly one variant is populated per instance and callers must
// switch on Shape() rather than assume a shape from the field kind.
package field

import "time"

// Shape discriminates the populated variant of a Value.
type Shape int

const (
	// ShapeEmpty marks a value that was never submitted. It projects to
	// nil/empty everywhere, never to the string "null".
	ShapeEmpty Shape = iota
	// ShapeScalar holds a plain string, number, boolean or nil.
	ShapeScalar
	// ShapeOptionSingle holds one selected option.
	ShapeOptionSingle
	// ShapeOptionMulti holds an ordered list of selected options.
	ShapeOptionMulti
	// ShapeDateTime holds an instant with date/time component flags.
	ShapeDateTime
	// ShapeRelationIDs holds ids of referenced content elements.
	ShapeRelationIDs
	// ShapeSubfieldMap holds ordered subfield-handle to scalar pairs.
	ShapeSubfieldMap
	// ShapeNestedRows holds repeating rows of child values.
	ShapeNestedRows
)

// String returns the string representation of Shape
func (s Shape) String() string {
	switch s {
	case ShapeEmpty:
		return "empty"
	case ShapeScalar:
		return "scalar"
	case ShapeOptionSingle:
		return "optionSingle"
	case ShapeOptionMulti:
		return "optionMulti"
	case ShapeDateTime:
		return "dateTime"
	case ShapeRelationIDs:
		return "relationIds"
	case ShapeSubfieldMap:
		return "subfieldMap"
	case ShapeNestedRows:
		return "nestedRows"
	default:
		return "unknown"
	}
}

// Option is one selected option. Valid is false when the stored value no
// longer matches a defined option; stale options still project their stored
// Value and Label so mappings stay deterministic for auditing.
type Option struct {
	Label string
	Value string
	Valid bool
}

// DateTime is an instant plus flags for which components the field captured.
// It carries no timezone conversion logic; conversion is the caller's
// responsibility.
type DateTime struct {
	Instant time.Time
	HasDate bool
	HasTime bool
}

// Subfield is one ordered entry of a composite field's value, e.g. the
// "firstName" part of a structured name. The value is a plain scalar.
type Subfield struct {
	Handle string
	Value  any
}

// Child is one ordered child value inside a nested row.
type Child struct {
	Handle string
	Value  Value
}

// Row is one repeating row of a group/repeater field.
type Row struct {
	ID       string
	Children []Child
}

// Child returns the child value for handle, if present.
func (r Row) Child(handle string) (Value, bool) {
	for _, c := range r.Children {
		if c.Handle == handle {
			return c.Value, true
		}
	}
	return Value{}, false
}

// Value is the tagged union over all supported field shapes.
type Value struct {
	shape     Shape
	scalar    any
	option    Option
	options   []Option
	dateTime  DateTime
	relations []int64
	subfields []Subfield
	rows      []Row
}

// Empty returns the absent value.
func Empty() Value {
	return Value{shape: ShapeEmpty}
}

// NewScalar creates a scalar value. A nil scalar is normalized to Empty so
// that absence is represented exactly one way.
func NewScalar(v any) Value {
	if v == nil {
		return Empty()
	}
	return Value{shape: ShapeScalar, scalar: v}
}

// NewOption creates a single-option value.
func NewOption(opt Option) Value {
	return Value{shape: ShapeOptionSingle, option: opt}
}

// NewOptions creates a multi-option value.
func NewOptions(opts []Option) Value {
	return Value{shape: ShapeOptionMulti, options: opts}
}

// NewDateTime creates a date/time value.
func NewDateTime(dt DateTime) Value {
	return Value{shape: ShapeDateTime, dateTime: dt}
}

// NewRelationIDs creates a relation value holding element ids.
func NewRelationIDs(ids []int64) Value {
	return Value{shape: ShapeRelationIDs, relations: ids}
}

// NewSubfieldMap creates a composite value from ordered subfield entries.
func NewSubfieldMap(subs []Subfield) Value {
	return Value{shape: ShapeSubfieldMap, subfields: subs}
}

// NewNestedRows creates a repeating-rows value.
func NewNestedRows(rows []Row) Value {
	return Value{shape: ShapeNestedRows, rows: rows}
}

// Shape returns the populated variant discriminator.
func (v Value) Shape() Shape {
	return v.shape
}

// IsEmpty reports whether the value was never submitted.
func (v Value) IsEmpty() bool {
	return v.shape == ShapeEmpty
}

// Scalar returns the scalar payload. Only meaningful for ShapeScalar.
func (v Value) Scalar() any {
	return v.scalar
}

// Option returns the selected option. Only meaningful for ShapeOptionSingle.
func (v Value) Option() Option {
	return v.option
}

// Options returns the selected options. Only meaningful for ShapeOptionMulti.
func (v Value) Options() []Option {
	return v.options
}

// DateTime returns the date/time payload. Only meaningful for ShapeDateTime.
func (v Value) DateTime() DateTime {
	return v.dateTime
}

// RelationIDs returns referenced element ids. Only meaningful for ShapeRelationIDs.
func (v Value) RelationIDs() []int64 {
	return v.relations
}

// Subfields returns ordered subfield entries. Only meaningful for ShapeSubfieldMap.
func (v Value) Subfields() []Subfield {
	return v.subfields
}

// Subfield returns the scalar for a subfield handle, if present.
func (v Value) Subfield(handle string) (any, bool) {
	for _, s := range v.subfields {
		if s.Handle == handle {
			return s.Value, true
		}
	}
	return nil, false
}

// Rows returns repeating rows. Only meaningful for ShapeNestedRows.
func (v Value) Rows() []Row {
	return v.rows
}
