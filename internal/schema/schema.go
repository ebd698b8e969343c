// Package schema describes and validates plugin options.
//
// A Schema is a small subset of JSON Schema: types, required and additional
// properties, items, enums, numeric bounds, string lengths and patterns.
// Schemas are built in Go with the constructor helpers or parsed from YAML.
package schema

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// JSON Schema type names.
const (
	TypeString  = "string"
	TypeNumber  = "number"
	TypeInteger = "integer"
	TypeBoolean = "boolean"
	TypeArray   = "array"
	TypeObject  = "object"
	TypeNull    = "null"
)

// Schema constrains one value.
type Schema struct {
	Description string `yaml:"description,omitempty"`

	// Type is empty when any type is accepted.
	Type string `yaml:"type,omitempty"`

	Properties map[string]*Schema `yaml:"properties,omitempty"`
	Required   []string           `yaml:"required,omitempty"`

	// AdditionalProperties rejects unknown object keys when set to false.
	AdditionalProperties *bool `yaml:"additionalProperties,omitempty"`

	Items *Schema `yaml:"items,omitempty"`
	Enum  []any   `yaml:"enum,omitempty"`

	Minimum   *float64 `yaml:"minimum,omitempty"`
	Maximum   *float64 `yaml:"maximum,omitempty"`
	MinLength *int     `yaml:"minLength,omitempty"`
	MaxLength *int     `yaml:"maxLength,omitempty"`
	Pattern   string   `yaml:"pattern,omitempty"`
	MinItems  *int     `yaml:"minItems,omitempty"`

	// AnyOf passes when at least one alternative passes.
	AnyOf []*Schema `yaml:"anyOf,omitempty"`
}

// Parse reads a schema from YAML (JSON is valid YAML).
func Parse(data []byte) (*Schema, error) {
	s := &Schema{}
	if err := yaml.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("parse schema: %w", err)
	}
	return s, nil
}

// AllowsAdditional reports whether unknown object keys are accepted.
func (s *Schema) AllowsAdditional() bool {
	return s.AdditionalProperties == nil || *s.AdditionalProperties
}

// Object returns an object schema with the given properties.
func Object(props map[string]*Schema) *Schema {
	return &Schema{Type: TypeObject, Properties: props}
}

// String returns a string schema.
func String() *Schema { return &Schema{Type: TypeString} }

// Number returns a number schema.
func Number() *Schema { return &Schema{Type: TypeNumber} }

// Integer returns an integer schema.
func Integer() *Schema { return &Schema{Type: TypeInteger} }

// Boolean returns a boolean schema.
func Boolean() *Schema { return &Schema{Type: TypeBoolean} }

// Array returns an array schema whose elements match items.
func Array(items *Schema) *Schema { return &Schema{Type: TypeArray, Items: items} }

// Any returns a schema accepting every value.
func Any() *Schema { return &Schema{} }

// Require marks keys as required and returns s.
func (s *Schema) Require(keys ...string) *Schema {
	s.Required = append(s.Required, keys...)
	return s
}

// Strict rejects unknown object keys and returns s.
func (s *Schema) Strict() *Schema {
	no := false
	s.AdditionalProperties = &no
	return s
}

// OneOf restricts the value to the given alternatives and returns s.
func (s *Schema) OneOf(values ...any) *Schema {
	s.Enum = append(s.Enum, values...)
	return s
}

// Range sets inclusive numeric bounds and returns s.
func (s *Schema) Range(lo, hi float64) *Schema {
	s.Minimum, s.Maximum = &lo, &hi
	return s
}

// Min sets the inclusive lower bound and returns s.
func (s *Schema) Min(lo float64) *Schema {
	s.Minimum = &lo
	return s
}

// Length sets string length bounds and returns s. A negative hi means no
// upper bound.
func (s *Schema) Length(lo, hi int) *Schema {
	s.MinLength = &lo
	if hi >= 0 {
		s.MaxLength = &hi
	}
	return s
}

// Matches sets a regular expression strings must match and returns s.
func (s *Schema) Matches(pattern string) *Schema {
	s.Pattern = pattern
	return s
}

// Describe sets the description and returns s.
func (s *Schema) Describe(text string) *Schema {
	s.Description = text
	return s
}
