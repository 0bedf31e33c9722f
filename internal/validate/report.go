// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package validate

import "github.com/pdiddy/evidence-annotator/pkg/types"

// UnitReport holds the errors of one invalid knowledge unit.
type UnitReport struct {
	KUID        string              `json:"kuId" yaml:"ku_id"`
	KUType      string              `json:"kuType" yaml:"ku_type"`
	FieldErrors map[string][]string `json:"fieldErrors" yaml:"field_errors"`
}

// Report summarizes validation of every knowledge unit of a document, run
// before export.
type Report struct {
	IsValid bool                  `json:"isValid" yaml:"is_valid"`
	Errors  map[string]UnitReport `json:"errors" yaml:"errors"`
}

// Document validates units against the schemas keyed by frame id. Units
// whose schema is unknown are reported under SchemaErrorKey.
func Document(units []types.KnowledgeUnit, schemas map[string]types.KnowledgeUnitSchema) Report {
	errs := make(map[string]UnitReport)
	for _, ku := range units {
		schema, ok := schemas[ku.SchemaID]
		if !ok {
			errs[ku.ID] = UnitReport{
				KUID:        ku.ID,
				KUType:      "Unknown",
				FieldErrors: map[string][]string{SchemaErrorKey: {MsgSchemaNotFound}},
			}
			continue
		}
		res := KnowledgeUnit(ku, schema)
		if !res.IsValid {
			errs[ku.ID] = UnitReport{KUID: ku.ID, KUType: schema.FrameLabel, FieldErrors: res.Errors}
		}
	}
	return Report{IsValid: len(errs) == 0, Errors: errs}
}
