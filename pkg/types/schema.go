// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"encoding/json"
	"fmt"
	"strings"

	"go.yaml.in/yaml/v3"
)

// FieldKind is the closed set of field type tags.
type FieldKind string

const (
	KindString      FieldKind = "string"
	KindInteger     FieldKind = "integer"
	KindEnumeration FieldKind = "enumeration"
	KindDynamicList FieldKind = "dynamic_list"
	KindCustom      FieldKind = "custom"
)

const (
	customPrefix  = "CUSTOM_"
	dynamicPrefix = "DYNAMIC_"
	listPrefix    = "LIST_"
)

// FieldType is a schema field type resolved once from its wire form.
//
// On the wire a type is either a scalar ("string", "integer", "CUSTOM_DATE")
// or an array. Arrays naming a DYNAMIC_* or LIST_* source are dynamic lists
// whose values come from outside and are trusted; other arrays are static
// enumerations of allowed values.
type FieldType struct {
	Kind FieldKind

	// Options holds enumeration values in order, or the list references of
	// a dynamic list.
	Options []string

	// Ref is the custom type id for KindCustom (e.g. "CUSTOM_DATE").
	Ref string

	// scalar is the scalar as it was read; empty when the wire form was an array.
	scalar string
}

// ScalarType resolves a scalar wire type.
func ScalarType(name string) FieldType {
	switch {
	case name == string(KindInteger):
		return FieldType{Kind: KindInteger, scalar: name}
	case strings.HasPrefix(name, customPrefix):
		return FieldType{Kind: KindCustom, Ref: name, scalar: name}
	default:
		return FieldType{Kind: KindString, scalar: name}
	}
}

// ListType resolves an array wire type.
func ListType(options []string) FieldType {
	opts := append([]string{}, options...)
	for _, o := range opts {
		if strings.HasPrefix(o, dynamicPrefix) || strings.HasPrefix(o, listPrefix) {
			return FieldType{Kind: KindDynamicList, Options: opts}
		}
	}
	return FieldType{Kind: KindEnumeration, Options: opts}
}

// IsList reports whether the wire form is an array.
func (t FieldType) IsList() bool {
	return t.Kind == KindEnumeration || t.Kind == KindDynamicList
}

// Allows reports whether v is one of the enumeration options.
func (t FieldType) Allows(v string) bool {
	for _, o := range t.Options {
		if o == v {
			return true
		}
	}
	return false
}

// String returns the wire spelling, used in log lines and CLI output.
func (t FieldType) String() string {
	if t.IsList() {
		return "[" + strings.Join(t.Options, ", ") + "]"
	}
	return t.wireScalar()
}

func (t FieldType) wireScalar() string {
	if t.scalar != "" {
		return t.scalar
	}
	if t.Kind == KindCustom {
		return t.Ref
	}
	return string(t.Kind)
}

func (t FieldType) wire() any {
	if t.IsList() {
		return t.Options
	}
	return t.wireScalar()
}

// MarshalJSON writes the type back in the form it was read from.
func (t FieldType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.wire())
}

// UnmarshalJSON accepts a string or an array of strings.
func (t *FieldType) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		*t = ScalarType(name)
		return nil
	}
	var options []string
	if err := json.Unmarshal(data, &options); err != nil {
		return fmt.Errorf("field type must be a string or a list of strings: %w", err)
	}
	*t = ListType(options)
	return nil
}

// MarshalYAML writes the type back in the form it was read from.
func (t FieldType) MarshalYAML() (any, error) {
	return t.wire(), nil
}

// UnmarshalYAML accepts a scalar or a sequence of scalars.
func (t *FieldType) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		*t = ScalarType(node.Value)
		return nil
	case yaml.SequenceNode:
		var options []string
		if err := node.Decode(&options); err != nil {
			return fmt.Errorf("decoding field type options: %w", err)
		}
		*t = ListType(options)
		return nil
	default:
		return fmt.Errorf("line %d: field type must be a string or a list of strings", node.Line)
	}
}

// SchemaField defines one field of a knowledge unit schema.
type SchemaField struct {
	ID       string    `json:"id" yaml:"id"`
	Name     string    `json:"name" yaml:"name"`
	Type     FieldType `json:"type" yaml:"type"`
	Required bool      `json:"required" yaml:"required"`
	Multiple bool      `json:"multiple" yaml:"multiple"`
}

// KnowledgeUnitSchema is the frame a knowledge unit is instantiated from.
type KnowledgeUnitSchema struct {
	FrameID    string        `json:"frameId" yaml:"frame_id"`
	FrameLabel string        `json:"frameLabel" yaml:"frame_label"`
	Fields     []SchemaField `json:"fields" yaml:"fields"`
}

// Field returns the schema definition for fieldID.
func (s KnowledgeUnitSchema) Field(fieldID string) (SchemaField, bool) {
	for _, f := range s.Fields {
		if f.ID == fieldID {
			return f, true
		}
	}
	return SchemaField{}, false
}

// CustomSubField is one entry of a custom composite type.
type CustomSubField struct {
	ID       string    `json:"id" yaml:"id"`
	Name     string    `json:"name" yaml:"name"`
	Type     FieldType `json:"type" yaml:"type"`
	Required bool      `json:"required" yaml:"required"`
}

// CustomFieldType describes the nested form behind a CUSTOM_* field type,
// for example a date made of month, day, and year.
type CustomFieldType struct {
	TypeID    string           `json:"typeId" yaml:"type_id"`
	TypeLabel string           `json:"typeLabel" yaml:"type_label"`
	Fields    []CustomSubField `json:"fields" yaml:"fields"`
}

// Catalog bundles the reference data loaded once per session.
type Catalog struct {
	Schemas          []KnowledgeUnitSchema `json:"schemas" yaml:"schemas"`
	CustomFieldTypes []CustomFieldType     `json:"customFieldTypes" yaml:"custom_field_types"`
}
