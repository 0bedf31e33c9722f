// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package validate

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/evidence-annotator/pkg/types"
)

var (
	personDef   = types.SchemaField{ID: "person", Name: "Person", Type: types.ListType([]string{"LIST_PERSON"}), Required: true, Multiple: true}
	titleDef    = types.SchemaField{ID: "title", Name: "Title", Type: types.ScalarType("string")}
	budgetDef   = types.SchemaField{ID: "budget", Name: "Budget", Type: types.ScalarType("integer")}
	polarityDef = types.SchemaField{ID: "polarity", Name: "Polarity", Type: types.ListType([]string{"positive", "negative", "neutral"}), Required: true}
	timeDef     = types.SchemaField{ID: "time", Name: "Time", Type: types.ListType([]string{"email-date", "past", "future"}), Multiple: true}
	whenDef     = types.SchemaField{ID: "when", Name: "When", Type: types.ScalarType("CUSTOM_DATE")}
)

func withValue(def types.SchemaField, v any, highlights int) types.Field {
	f := types.NewField(def)
	f.Value = v
	for i := 0; i < highlights; i++ {
		f.Highlights = append(f.Highlights, types.Highlight{ID: "h", StartOffset: i, EndOffset: i + 1})
	}
	return f
}

func TestFieldEvidenceRule(t *testing.T) {
	tests := []struct {
		name         string
		def          types.SchemaField
		value        any
		highlights   int
		wantEvidence bool
	}{
		{"value without highlight", titleDef, "Sarah Chen", 0, true},
		{"value with highlight", titleDef, "Sarah Chen", 1, false},
		{"empty optional without highlight", titleDef, "", 0, false},
		{"nil optional without highlight", titleDef, nil, 0, false},
		{"empty required without highlight", personDef, []any{}, 0, false},
		{"list value without highlight", personDef, []any{"Jameson Li"}, 0, true},
		{"list value with highlights", personDef, []any{"Jameson Li"}, 2, false},
		{"number without highlight", budgetDef, float64(450000), 0, true},
		{"custom value without highlight", whenDef, map[string]any{"year": "2025"}, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := Field(withValue(tt.def, tt.value, tt.highlights), tt.def)
			if tt.wantEvidence {
				assert.Contains(t, errs, MsgEvidenceRequired)
			} else {
				assert.NotContains(t, errs, MsgEvidenceRequired)
			}
		})
	}
}

func TestFieldRequiredEmpty(t *testing.T) {
	errs := Field(withValue(personDef, []any{}, 0), personDef)
	assert.Equal(t, []string{"Person is required"}, errs)
}

func TestValueTypeConformance(t *testing.T) {
	tests := []struct {
		name  string
		value any
		typ   types.FieldType
		want  string
	}{
		{"string ok", "CFO", titleDef.Type, ""},
		{"string rejects number", 12.0, titleDef.Type, MsgInvalidText},
		{"integer string", "-42", budgetDef.Type, ""},
		{"integer float", float64(450000), budgetDef.Type, ""},
		{"integer int", 7, budgetDef.Type, ""},
		{"integer json number", json.Number("12"), budgetDef.Type, ""},
		{"integer rejects fraction", 4.5, budgetDef.Type, MsgInvalidInteger},
		{"integer rejects text", "12a", budgetDef.Type, MsgInvalidInteger},
		{"enum member", "positive", polarityDef.Type, ""},
		{"enum non-member", "angry", polarityDef.Type, MsgInvalidOption},
		{"enum multiple ok", []any{"past", "future"}, timeDef.Type, ""},
		{"enum multiple bad", []any{"past", "never"}, timeDef.Type, MsgInvalidOptions},
		{"enum multiple string slice", []string{"past"}, timeDef.Type, ""},
		{"dynamic trusted", "Anyone", personDef.Type, ""},
		{"dynamic list trusted", []any{"Anyone", 3}, personDef.Type, ""},
		{"custom map", map[string]any{"month": "4"}, whenDef.Type, ""},
		{"custom rejects scalar", "April", whenDef.Type, MsgInvalidCustom},
		{"empty skips check", "", budgetDef.Type, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Value(tt.value, tt.typ))
		})
	}
}

func sentimentSchema() types.KnowledgeUnitSchema {
	return types.KnowledgeUnitSchema{
		FrameID:    "sentiment",
		FrameLabel: "Sentiment",
		Fields:     []types.SchemaField{polarityDef, personDef, whenDef},
	}
}

func TestKnowledgeUnit(t *testing.T) {
	schema := sentimentSchema()

	t.Run("valid", func(t *testing.T) {
		ku := types.KnowledgeUnit{ID: "ku1", SchemaID: "sentiment", Fields: []types.Field{
			withValue(polarityDef, "positive", 1),
			withValue(personDef, []any{"Jameson Li"}, 1),
		}}
		res := KnowledgeUnit(ku, schema)
		assert.True(t, res.IsValid)
		assert.Empty(t, res.Errors)
	})

	t.Run("missing required and evidence", func(t *testing.T) {
		ku := types.KnowledgeUnit{ID: "ku1", SchemaID: "sentiment", Fields: []types.Field{
			withValue(polarityDef, "positive", 0),
		}}
		res := KnowledgeUnit(ku, schema)
		assert.False(t, res.IsValid)
		assert.Equal(t, []string{MsgEvidenceRequired}, res.Errors["polarity"])
		assert.Equal(t, []string{"Missing required field: Person"}, res.Errors["person"])
		assert.NotContains(t, res.Errors, "when")
	})

	t.Run("field not in schema", func(t *testing.T) {
		stray := types.Field{ID: "stray", Name: "Stray", Value: "x"}
		ku := types.KnowledgeUnit{ID: "ku1", Fields: []types.Field{
			withValue(polarityDef, "neutral", 1),
			withValue(personDef, []any{"A"}, 1),
			stray,
		}}
		res := KnowledgeUnit(ku, schema)
		assert.Equal(t, []string{MsgNotInSchema}, res.Errors["stray"])
	})
}

func dateType() types.CustomFieldType {
	return types.CustomFieldType{
		TypeID:    "CUSTOM_DATE",
		TypeLabel: "Date",
		Fields: []types.CustomSubField{
			{ID: "month", Name: "Month", Type: types.ScalarType("integer")},
			{ID: "day", Name: "Day", Type: types.ScalarType("integer")},
			{ID: "year", Name: "Year", Type: types.ScalarType("integer"), Required: true},
		},
	}
}

func TestCustomSubmission(t *testing.T) {
	ct := dateType()

	err := CustomSubmission(ct, map[string]any{"month": "", "day": nil})
	assert.ErrorIs(t, err, ErrEmptyCustomField)

	err = CustomSubmission(ct, nil)
	assert.ErrorIs(t, err, ErrEmptyCustomField)

	err = CustomSubmission(ct, map[string]any{"month": "April"})
	var subErr *SubmissionError
	require.True(t, errors.As(err, &subErr))
	assert.Equal(t, []string{MsgInvalidInteger}, subErr.Fields["month"])
	assert.Equal(t, []string{"Year is required"}, subErr.Fields["year"])
	assert.Contains(t, err.Error(), "month: "+MsgInvalidInteger)

	assert.NoError(t, CustomSubmission(ct, map[string]any{"month": "4", "year": "2025"}))
}

func TestDocumentReport(t *testing.T) {
	schemas := map[string]types.KnowledgeUnitSchema{"sentiment": sentimentSchema()}
	units := []types.KnowledgeUnit{
		{ID: "good", SchemaID: "sentiment", Fields: []types.Field{
			withValue(polarityDef, "neutral", 1),
			withValue(personDef, []any{"A"}, 1),
		}},
		{ID: "bad", SchemaID: "sentiment", Fields: []types.Field{withValue(polarityDef, "neutral", 0)}},
		{ID: "orphan", SchemaID: "gone"},
	}

	rep := Document(units, schemas)
	assert.False(t, rep.IsValid)
	assert.NotContains(t, rep.Errors, "good")
	assert.Equal(t, "Sentiment", rep.Errors["bad"].KUType)
	assert.Equal(t, "Unknown", rep.Errors["orphan"].KUType)
	assert.Equal(t, []string{MsgSchemaNotFound}, rep.Errors["orphan"].FieldErrors[SchemaErrorKey])

	assert.True(t, Document(nil, schemas).IsValid)
}
