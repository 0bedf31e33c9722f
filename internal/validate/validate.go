// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package validate checks knowledge units against their schemas, including
// the evidence rule: every field with a value must be backed by at least
// one highlight.
//
// Failures are returned as lists of user-facing messages and are never
// fatal; the user fixes them by editing the form.
package validate

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"regexp"
	"sort"
	"strings"

	"github.com/pdiddy/evidence-annotator/pkg/types"
)

// Messages surfaced to the annotator.
const (
	MsgEvidenceRequired = "Evidence highlighting required"
	MsgNotInSchema      = "Field not found in schema"
	MsgInvalidText      = "Must be a valid text"
	MsgInvalidInteger   = "Must be a valid integer"
	MsgInvalidOption    = "Not a valid option"
	MsgInvalidOptions   = "Contains invalid selection options"
	MsgInvalidCustom    = "Invalid custom field value"
	MsgCustomEmpty      = "At least one field must have a value"
	MsgSchemaNotFound   = "Schema not found"
)

// SchemaErrorKey holds unit-level errors in a UnitReport when the unit's
// schema is unknown.
const SchemaErrorKey = "_schema"

var integerPattern = regexp.MustCompile(`^-?\d+$`)

// MissingRequired is the unit-level error for a required field absent from
// the knowledge unit.
func MissingRequired(name string) string {
	return "Missing required field: " + name
}

// Required is the error for a required field present with an empty value.
func Required(name string) string {
	return name + " is required"
}

// Field validates a field instance against its schema definition. The
// evidence error is reported exactly when the value is non-empty and the
// field has no highlights.
func Field(field types.Field, def types.SchemaField) []string {
	var errs []string
	empty := types.IsEmptyValue(field.Value)

	if def.Required && empty {
		errs = append(errs, Required(def.Name))
	}
	if msg := Value(field.Value, def.Type); msg != "" {
		errs = append(errs, msg)
	}
	if !empty && len(field.Highlights) == 0 {
		errs = append(errs, MsgEvidenceRequired)
	}
	return errs
}

// Value checks that v conforms to t and returns a message, or "" when v is
// acceptable. Empty values always conform. Dynamic lists are trusted as-is
// because their values come from external sources.
func Value(v any, t types.FieldType) string {
	if types.IsEmptyValue(v) {
		return ""
	}

	switch t.Kind {
	case types.KindString:
		return eachElement(v, MsgInvalidText, func(x any) bool {
			_, ok := x.(string)
			return ok
		})
	case types.KindInteger:
		return eachElement(v, MsgInvalidInteger, isInteger)
	case types.KindEnumeration:
		if items, ok := asList(v); ok {
			for _, x := range items {
				s, ok := x.(string)
				if !ok || !t.Allows(s) {
					return MsgInvalidOptions
				}
			}
			return ""
		}
		if s, ok := v.(string); ok && t.Allows(s) {
			return ""
		}
		return MsgInvalidOption
	case types.KindDynamicList:
		return ""
	case types.KindCustom:
		if reflect.ValueOf(v).Kind() != reflect.Map {
			return MsgInvalidCustom
		}
		return ""
	}
	return ""
}

// eachElement applies ok to v, or to each element when v is a list.
func eachElement(v any, msg string, ok func(any) bool) string {
	if items, isList := asList(v); isList {
		for _, x := range items {
			if !ok(x) {
				return msg
			}
		}
		return ""
	}
	if !ok(v) {
		return msg
	}
	return ""
}

func asList(v any) ([]any, bool) {
	switch x := v.(type) {
	case []any:
		return x, true
	case []string:
		out := make([]any, len(x))
		for i, s := range x {
			out[i] = s
		}
		return out, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

func isInteger(v any) bool {
	switch x := v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return true
	case float64:
		return !math.IsInf(x, 0) && x == math.Trunc(x)
	case float32:
		f := float64(x)
		return !math.IsInf(f, 0) && f == math.Trunc(f)
	case string:
		return integerPattern.MatchString(x)
	case fmt.Stringer:
		return integerPattern.MatchString(x.String())
	}
	return false
}

// Result is the outcome of validating one knowledge unit.
type Result struct {
	IsValid bool                `json:"isValid" yaml:"is_valid"`
	Errors  map[string][]string `json:"errors" yaml:"errors"`
}

// KnowledgeUnit validates every field present in ku plus every required
// schema field that ku lacks. Errors are keyed by field id.
func KnowledgeUnit(ku types.KnowledgeUnit, schema types.KnowledgeUnitSchema) Result {
	errs := make(map[string][]string)

	for _, f := range ku.Fields {
		def, ok := schema.Field(f.ID)
		if !ok {
			errs[f.ID] = []string{MsgNotInSchema}
			continue
		}
		if fe := Field(f, def); len(fe) > 0 {
			errs[f.ID] = fe
		}
	}

	for _, def := range schema.Fields {
		if !def.Required {
			continue
		}
		if _, ok := ku.Field(def.ID); !ok {
			errs[def.ID] = []string{MissingRequired(def.Name)}
		}
	}

	return Result{IsValid: len(errs) == 0, Errors: errs}
}

// ErrEmptyCustomField rejects a custom field submission where every
// sub-field is empty.
var ErrEmptyCustomField = errors.New(MsgCustomEmpty)

// SubmissionError lists per-sub-field problems in a custom field submission.
type SubmissionError struct {
	Fields map[string][]string
}

func (e *SubmissionError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, strings.Join(e.Fields[k], "; ")))
	}
	return "invalid custom field: " + strings.Join(parts, ", ")
}

// CustomSubmission checks the values submitted from a custom field editor.
// At least one sub-field must be non-empty; required sub-fields must be set
// and each value must conform to its sub-field type.
func CustomSubmission(ct types.CustomFieldType, values map[string]any) error {
	hasValue := false
	for _, v := range values {
		if !types.IsEmptyValue(v) {
			hasValue = true
			break
		}
	}
	if !hasValue {
		return ErrEmptyCustomField
	}

	fieldErrs := make(map[string][]string)
	for _, sub := range ct.Fields {
		v := values[sub.ID]
		if sub.Required && types.IsEmptyValue(v) {
			fieldErrs[sub.ID] = append(fieldErrs[sub.ID], Required(sub.Name))
		}
		if msg := Value(v, sub.Type); msg != "" {
			fieldErrs[sub.ID] = append(fieldErrs[sub.ID], msg)
		}
	}
	if len(fieldErrs) > 0 {
		return &SubmissionError{Fields: fieldErrs}
	}
	return nil
}
