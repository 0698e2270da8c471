// Package playbook implements the automation layer: trigger predicates,
// the playbook registry, the builtin rule set, and the event router that
// matches incoming events against registered playbooks and executes their
// actions in order.
package playbook

import (
	"strings"

	"github.com/vigilstack/vigil-rca/internal/models"
)

// TriggerKind discriminates the trigger variants.
type TriggerKind string

const (
	// TriggerFieldIn matches when any of Fields holds one of Values.
	TriggerFieldIn TriggerKind = "field_in"
	// TriggerFieldContains matches when Field's value contains Substring,
	// case-insensitively.
	TriggerFieldContains TriggerKind = "field_contains"
	// TriggerThreshold matches when the numeric ValueField exceeds Above,
	// optionally gated on GateField containing GateSubstring.
	TriggerThreshold TriggerKind = "threshold"
	// TriggerAnyOf matches when any nested trigger matches.
	TriggerAnyOf TriggerKind = "any_of"
	// TriggerCustom delegates to an arbitrary predicate.
	TriggerCustom TriggerKind = "custom"
)

// Trigger is a tagged-variant predicate over events. Only the fields relevant
// to Kind are populated; Matches dispatches on Kind. Keeping triggers as data
// rather than closures lets the registry report them and the YAML loader
// construct them.
type Trigger struct {
	Name string      `json:"name" yaml:"name"`
	Kind TriggerKind `json:"kind" yaml:"kind"`

	Fields    []string `json:"fields,omitempty" yaml:"fields,omitempty"`
	Values    []string `json:"values,omitempty" yaml:"values,omitempty"`
	Field     string   `json:"field,omitempty" yaml:"field,omitempty"`
	Substring string   `json:"substring,omitempty" yaml:"substring,omitempty"`

	ValueField    string  `json:"value_field,omitempty" yaml:"value_field,omitempty"`
	Above         float64 `json:"above,omitempty" yaml:"above,omitempty"`
	GateField     string  `json:"gate_field,omitempty" yaml:"gate_field,omitempty"`
	GateSubstring string  `json:"gate_substring,omitempty" yaml:"gate_substring,omitempty"`

	AnyOf []Trigger `json:"any_of,omitempty" yaml:"any_of,omitempty"`

	Predicate func(models.Event) bool `json:"-" yaml:"-"`
}

// FieldIn builds a trigger matching when any named field equals one of values.
func FieldIn(name string, fields []string, values ...string) Trigger {
	return Trigger{Name: name, Kind: TriggerFieldIn, Fields: fields, Values: values}
}

// FieldContains builds a trigger matching a case-insensitive substring of a
// single field.
func FieldContains(name, field, substring string) Trigger {
	return Trigger{Name: name, Kind: TriggerFieldContains, Field: field, Substring: substring}
}

// Threshold builds a trigger matching when valueField exceeds above; when
// gateField is non-empty the trigger additionally requires gateField to
// contain gateSubstring.
func Threshold(name, valueField string, above float64, gateField, gateSubstring string) Trigger {
	return Trigger{
		Name: name, Kind: TriggerThreshold,
		ValueField: valueField, Above: above,
		GateField: gateField, GateSubstring: gateSubstring,
	}
}

// AnyOf builds a trigger matching when any nested trigger matches.
func AnyOf(name string, triggers ...Trigger) Trigger {
	return Trigger{Name: name, Kind: TriggerAnyOf, AnyOf: triggers}
}

// Custom builds a trigger from an arbitrary predicate. A panicking predicate
// counts as a non-match.
func Custom(name string, predicate func(models.Event) bool) Trigger {
	return Trigger{Name: name, Kind: TriggerCustom, Predicate: predicate}
}

// Matches evaluates the trigger against an event. It never panics: custom
// predicate panics are swallowed and reported as non-matches so a broken
// playbook cannot take down event processing.
func (t Trigger) Matches(e models.Event) (matched bool) {
	defer func() {
		if recover() != nil {
			matched = false
		}
	}()

	switch t.Kind {
	case TriggerFieldIn:
		for _, field := range t.Fields {
			value := e.String(field)
			if value == "" {
				continue
			}
			for _, want := range t.Values {
				if value == want {
					return true
				}
			}
		}
		return false

	case TriggerFieldContains:
		value := strings.ToLower(e.String(t.Field))
		return value != "" && strings.Contains(value, strings.ToLower(t.Substring))

	case TriggerThreshold:
		if t.GateField != "" {
			gate := strings.ToLower(e.String(t.GateField))
			if !strings.Contains(gate, strings.ToLower(t.GateSubstring)) {
				return false
			}
		}
		value, ok := e.Float(t.ValueField)
		return ok && value > t.Above

	case TriggerAnyOf:
		for _, nested := range t.AnyOf {
			if nested.Matches(e) {
				return true
			}
		}
		return false

	case TriggerCustom:
		return t.Predicate != nil && t.Predicate(e)

	default:
		return false
	}
}
