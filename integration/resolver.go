package integration

import "github.com/extreme-creations/formie/field"

// fieldTypeTable maps every built-in field kind to the integration field type
// its values naturally satisfy. The table must stay total over field.Kind.
var fieldTypeTable = map[field.Kind]FieldType{
	field.KindSingleLineText: FieldTypeString,
	field.KindMultiLineText:  FieldTypeString,
	field.KindEmail:          FieldTypeString,
	field.KindHidden:         FieldTypeString,
	field.KindPassword:       FieldTypeString,

	field.KindDropdown:   FieldTypeString,
	field.KindRadio:      FieldTypeString,
	field.KindCheckboxes: FieldTypeArray,
	field.KindRecipients: FieldTypeString,

	field.KindNumber: FieldTypeNumber,
	field.KindAgree:  FieldTypeBoolean,
	field.KindDate:   FieldTypeDateTime,

	field.KindName:    FieldTypeString,
	field.KindPhone:   FieldTypeString,
	field.KindAddress: FieldTypeString,

	field.KindTags:       FieldTypeArray,
	field.KindEntries:    FieldTypeArray,
	field.KindFileUpload: FieldTypeArray,

	field.KindGroup:    FieldTypeString,
	field.KindRepeater: FieldTypeArray,
}

// ResolveFieldType maps a form field kind to its natural integration field
// type. Unknown kinds resolve to string so third-party field kinds degrade
// gracefully rather than erroring.
func ResolveFieldType(kind field.Kind) FieldType {
	if t, ok := fieldTypeTable[kind]; ok {
		return t
	}
	return FieldTypeString
}
