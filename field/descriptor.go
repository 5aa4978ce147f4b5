package field

// Default date/time layouts used when a field does not configure its own.
const (
	DefaultDateLayout = "2006-01-02"
	DefaultTimeLayout = "15:04"
)

// OptionDef is one configured option on an option-set field.
type OptionDef struct {
	Label     string `json:"label"`
	Value     string `json:"value"`
	IsDefault bool   `json:"isDefault,omitempty"`
}

// SubfieldDef is one configured subfield on a composite field.
type SubfieldDef struct {
	Handle   string `json:"handle"`
	Label    string `json:"label"`
	Enabled  bool   `json:"enabled"`
	Required bool   `json:"required,omitempty"`
}

// Descriptor describes one configured field on a form layout: its handle,
// kind, and the settings that affect how its value is projected.
type Descriptor struct {
	Handle   string `json:"handle"`
	Label    string `json:"label"`
	Kind     Kind   `json:"kind"`
	Required bool   `json:"required,omitempty"`

	// Date field settings (Go time layouts)
	DateFormat  string `json:"dateFormat,omitempty"`
	TimeFormat  string `json:"timeFormat,omitempty"`
	IncludeDate bool   `json:"includeDate,omitempty"`
	IncludeTime bool   `json:"includeTime,omitempty"`

	Options   []OptionDef   `json:"options,omitempty"`
	Subfields []SubfieldDef `json:"subfields,omitempty"`

	// Child descriptors for group/repeater kinds
	Children []Descriptor `json:"children,omitempty"`
}

// DateLayout returns the display layout for a date field's value, combining
// the configured date and time formats per the include flags.
func (d Descriptor) DateLayout() string {
	dateFormat := d.DateFormat
	if dateFormat == "" {
		dateFormat = DefaultDateLayout
	}
	timeFormat := d.TimeFormat
	if timeFormat == "" {
		timeFormat = DefaultTimeLayout
	}

	switch {
	case d.IncludeDate && d.IncludeTime:
		return dateFormat + " " + timeFormat
	case d.IncludeTime:
		return timeFormat
	default:
		return dateFormat
	}
}

// Child returns the child descriptor for handle, if present.
func (d Descriptor) Child(handle string) (Descriptor, bool) {
	for _, c := range d.Children {
		if c.Handle == handle {
			return c, true
		}
	}
	return Descriptor{}, false
}

// FindOption returns the configured option matching value, if any.
func (d Descriptor) FindOption(value string) (OptionDef, bool) {
	for _, o := range d.Options {
		if o.Value == value {
			return o, true
		}
	}
	return OptionDef{}, false
}
