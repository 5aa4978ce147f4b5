package projector

import (
	"strconv"
	"strings"
	"time"

	"github.com/extreme-creations/formie/field"
)

// SubfieldProjection resolves dotted-path lookups into composite and nested
// values. Projectors hold one and delegate to it, so any field kind gains
// subfield awareness without sharing implementation through embedding.
type SubfieldProjection struct{}

// ResolveChild narrows a composite or nested value to the child named by key.
// Composite values yield the child scalar; nested rows yield the child value
// from every row, preserving row order. Unknown keys yield field.Empty().
func (SubfieldProjection) ResolveChild(v field.Value, key string) field.Value {
	switch v.Shape() {
	case field.ShapeSubfieldMap:
		if child, ok := v.Subfield(key); ok {
			return field.NewScalar(child)
		}
		return field.Empty()

	case field.ShapeNestedRows:
		var children []field.Value
		for _, row := range v.Rows() {
			if child, ok := row.Child(key); ok && !child.IsEmpty() {
				children = append(children, child)
			}
		}
		if len(children) == 0 {
			return field.Empty()
		}
		if len(children) == 1 {
			return children[0]
		}
		// Collapse multi-row children into a multi-option so downstream
		// projection keeps list semantics. Each child renders per its own
		// shape; children that render empty are dropped, never emitted as
		// empty strings.
		opts := make([]field.Option, 0, len(children))
		for _, c := range children {
			for _, s := range collapsedStrings(c) {
				if s == "" {
					continue
				}
				opts = append(opts, field.Option{Value: s, Valid: true})
			}
		}
		if len(opts) == 0 {
			return field.Empty()
		}
		return field.NewOptions(opts)

	default:
		return v
	}
}

// collapsedStrings renders one collapsed row child as its list entries.
// Multi-valued shapes contribute one entry per value.
func collapsedStrings(v field.Value) []string {
	switch v.Shape() {
	case field.ShapeScalar:
		return []string{scalarString(v.Scalar())}

	case field.ShapeOptionSingle:
		return []string{v.Option().Value}

	case field.ShapeOptionMulti:
		out := make([]string, 0, len(v.Options()))
		for _, opt := range v.Options() {
			out = append(out, opt.Value)
		}
		return out

	case field.ShapeDateTime:
		return []string{v.DateTime().Instant.Format(time.RFC3339)}

	case field.ShapeRelationIDs:
		out := make([]string, 0, len(v.RelationIDs()))
		for _, id := range v.RelationIDs() {
			out = append(out, strconv.FormatInt(id, 10))
		}
		return out

	case field.ShapeSubfieldMap:
		out := make([]string, 0, len(v.Subfields()))
		for _, sub := range v.Subfields() {
			if s := scalarString(sub.Value); s != "" {
				out = append(out, s)
			}
		}
		return out

	default:
		return nil
	}
}

// RelationProjection converts relation id lists into the representations the
// projections need.
type RelationProjection struct{}

// IDList returns the ids as a generic slice for array-typed targets.
func (RelationProjection) IDList(ids []int64) []any {
	out := make([]any, 0, len(ids))
	for _, id := range ids {
		out = append(out, id)
	}
	return out
}

// IDString joins the ids with ", " for string-typed targets.
func (RelationProjection) IDString(ids []int64) string {
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, strconv.FormatInt(id, 10))
	}
	return strings.Join(parts, ", ")
}
