// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "reflect"

// Highlight is a span of document text recorded as evidence for one field.
// Offsets are UTF-16 code unit indices with 0 <= StartOffset < EndOffset.
type Highlight struct {
	ID          string `json:"id" yaml:"id"`
	StartOffset int    `json:"startOffset" yaml:"start_offset"`
	EndOffset   int    `json:"endOffset" yaml:"end_offset"`

	// Text is the content between the offsets at creation time. It is a
	// denormalized copy and is not re-validated later.
	Text string `json:"text" yaml:"text"`

	FieldID string `json:"fieldId" yaml:"field_id"`
	KUID    string `json:"kuId" yaml:"ku_id"`
}

// Len returns the span length in UTF-16 code units.
func (h Highlight) Len() int {
	return h.EndOffset - h.StartOffset
}

// Field is a field instance inside a knowledge unit.
type Field struct {
	// ID matches the schema field id within the knowledge unit.
	ID       string    `json:"id" yaml:"id"`
	Name     string    `json:"name" yaml:"name"`
	Type     FieldType `json:"type" yaml:"type"`
	Required bool      `json:"required" yaml:"required"`
	Multiple bool      `json:"multiple" yaml:"multiple"`

	// Value is a scalar (string or number) for single-valued fields, a slice
	// for multiple fields, or a map for custom composite types.
	Value any `json:"value,omitempty" yaml:"value,omitempty"`

	Highlights []Highlight `json:"highlights" yaml:"highlights"`
}

// KnowledgeUnit is one schema instance attached to a document.
type KnowledgeUnit struct {
	ID         string  `json:"id" yaml:"id"`
	SchemaID   string  `json:"schemaId" yaml:"schema_id"`
	DocumentID string  `json:"documentId" yaml:"document_id"`
	Fields     []Field `json:"fields" yaml:"fields"`
}

// Field returns the field with the given id.
func (ku KnowledgeUnit) Field(fieldID string) (Field, bool) {
	for _, f := range ku.Fields {
		if f.ID == fieldID {
			return f, true
		}
	}
	return Field{}, false
}

// NewField instantiates a schema field with an empty value: an empty list
// when the field is multiple, otherwise an empty string.
func NewField(def SchemaField) Field {
	return Field{
		ID:         def.ID,
		Name:       def.Name,
		Type:       def.Type,
		Required:   def.Required,
		Multiple:   def.Multiple,
		Value:      EmptyValue(def.Multiple),
		Highlights: []Highlight{},
	}
}

// EmptyValue returns the unset value for a field.
func EmptyValue(multiple bool) any {
	if multiple {
		return []any{}
	}
	return ""
}

// IsEmptyValue reports whether v holds nothing that needs evidence: nil, the
// empty string, or a zero-length list. Numbers and maps are never empty.
func IsEmptyValue(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return x == ""
	case []any:
		return len(x) == 0
	case []string:
		return len(x) == 0
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		return rv.Len() == 0
	case reflect.Pointer, reflect.Interface:
		return rv.IsNil()
	}
	return false
}
