package field

// Kind identifies a built-in form field kind. The set is closed: behavior is
// dispatched through lookup tables keyed by Kind, so adding a kind means
// adding table entries, not threading type switches through every projector.
// Unregistered third-party kinds degrade to single-line text semantics.
type Kind string

const (
	// Freeform text kinds
	KindSingleLineText Kind = "singleLineText"
	KindMultiLineText  Kind = "multiLineText"
	KindEmail          Kind = "email"
	KindHidden         Kind = "hidden"
	KindPassword       Kind = "password"

	// Option-set kinds
	KindDropdown   Kind = "dropdown"
	KindRadio      Kind = "radio"
	KindCheckboxes Kind = "checkboxes"
	KindRecipients Kind = "recipients"

	// Typed scalar kinds
	KindNumber Kind = "number"
	KindAgree  Kind = "agree"
	KindDate   Kind = "date"

	// Composite kinds with named subfields
	KindName    Kind = "name"
	KindPhone   Kind = "phone"
	KindAddress Kind = "address"

	// Relation kinds referencing other content elements
	KindTags       Kind = "tags"
	KindEntries    Kind = "entries"
	KindFileUpload Kind = "fileUpload"

	// Repeating/group kinds holding nested child fields
	KindGroup    Kind = "group"
	KindRepeater Kind = "repeater"
)

// IsOptions reports whether the kind stores an option-set value.
func (k Kind) IsOptions() bool {
	switch k {
	case KindDropdown, KindRadio, KindCheckboxes, KindRecipients:
		return true
	}
	return false
}

// IsComposite reports whether the kind stores named subfield values.
func (k Kind) IsComposite() bool {
	switch k {
	case KindName, KindPhone, KindAddress:
		return true
	}
	return false
}

// IsRelation reports whether the kind stores references to other elements.
func (k Kind) IsRelation() bool {
	switch k {
	case KindTags, KindEntries, KindFileUpload:
		return true
	}
	return false
}

// IsNested reports whether the kind stores repeating rows of child fields.
func (k Kind) IsNested() bool {
	return k == KindGroup || k == KindRepeater
}

// IsSensitive reports whether values of this kind must be masked in
// summaries and exports.
func (k Kind) IsSensitive() bool {
	return k == KindPassword
}
