// Package fields holds the static per-field contracts that drive record repair.
package fields

import (
	"strings"
)

// Kind names the expected JSON type of a field value
type Kind string

const (
	KindString     Kind = "string"
	KindStringList Kind = "string_list"
	KindSteps      Kind = "steps"
	KindPriority   Kind = "priority"
)

// FieldSpec is the contract for one output field.
//
// Convert may return a usable value together with an error; the repairer keeps
// the value and records the error. A nil value with an error means the
// conversion failed and Default is used instead.
type FieldSpec struct {
	Name         string
	Required     bool
	ExpectedType Kind
	Default      func() any
	Validate     func(any) bool
	Convert      func(any) (any, error)
	// Aliases are alternative input keys read when Name is absent
	Aliases []string
}

// Schema is an ordered FieldSpec table for one record type. Output records
// carry exactly the listed fields, in order.
type Schema struct {
	Name string
	// IDField names the field used as ProcessingLog.RecordID
	IDField string
	// RemarksField receives the repair audit note; empty disables the note
	RemarksField string
	Fields       []FieldSpec
	// Placeholder builds a stand-in object for a non-object array element
	Placeholder func(element any, index int) map[string]any
}

// Field looks up a spec by name
func (s Schema) Field(name string) (FieldSpec, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldSpec{}, false
}

// Names lists the output field names in order
func (s Schema) Names() []string {
	names := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		names[i] = f.Name
	}
	return names
}

// IsEmpty reports whether v counts as absent: nil, a blank string, or an
// empty list or object
func IsEmpty(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(x) == ""
	case []any:
		return len(x) == 0
	case []string:
		return len(x) == 0
	case map[string]any:
		return len(x) == 0
	}
	return false
}
