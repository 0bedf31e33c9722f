// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package annotation

import (
	"github.com/pdiddy/evidence-annotator/internal/validate"
	"github.com/pdiddy/evidence-annotator/pkg/types"
)

// snapshot materializes u with its field highlights. Callers hold e.mu.
func (e *Engine) snapshot(u *unit) types.KnowledgeUnit {
	ku := types.KnowledgeUnit{
		ID:         u.id,
		SchemaID:   u.schemaID,
		DocumentID: u.documentID,
		Fields:     make([]types.Field, 0, len(u.fields)),
	}
	for _, f := range u.fields {
		ku.Fields = append(ku.Fields, types.Field{
			ID:         f.def.ID,
			Name:       f.def.Name,
			Type:       f.def.Type,
			Required:   f.def.Required,
			Multiple:   f.def.Multiple,
			Value:      f.value,
			Highlights: e.highlights.ForField(u.id, f.def.ID),
		})
	}
	return ku
}

// KnowledgeUnit returns a snapshot of one knowledge unit.
func (e *Engine) KnowledgeUnit(kuID string) (types.KnowledgeUnit, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	u, ok := e.units[kuID]
	if !ok {
		return types.KnowledgeUnit{}, false
	}
	return e.snapshot(u), true
}

// KnowledgeUnits returns snapshots of the units of a document in creation
// order.
func (e *Engine) KnowledgeUnits(documentID string) []types.KnowledgeUnit {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.unitsOf(documentID)
}

func (e *Engine) unitsOf(documentID string) []types.KnowledgeUnit {
	out := []types.KnowledgeUnit{}
	for _, id := range e.unitOrder {
		if u := e.units[id]; u.documentID == documentID {
			out = append(out, e.snapshot(u))
		}
	}
	return out
}

// DocumentHighlights returns every highlight of every field of every unit
// on the document.
func (e *Engine) DocumentHighlights(documentID string) []types.Highlight {
	e.mu.RLock()
	defer e.mu.RUnlock()
	var out []types.Highlight
	for _, id := range e.unitOrder {
		u := e.units[id]
		if u.documentID != documentID {
			continue
		}
		out = append(out, e.highlights.ForUnit(u.id, u.fieldIDs())...)
	}
	return out
}

// UnitForField returns the first unit on the document that has a field with
// the given id.
func (e *Engine) UnitForField(documentID, fieldID string) (string, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	for _, id := range e.unitOrder {
		u := e.units[id]
		if u.documentID != documentID {
			continue
		}
		if f, _ := u.field(fieldID); f != nil {
			return u.id, true
		}
	}
	return "", false
}

// Export builds the export artifact for a document.
func (e *Engine) Export(documentID string) (types.DocumentExport, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	doc, ok := e.documents[documentID]
	if !ok {
		return types.DocumentExport{}, false
	}
	return types.NewDocumentExport(*doc, e.unitsOf(documentID)), true
}

// ExportAll exports every registered document in registration order.
// Documents without knowledge units export with an empty unit list.
func (e *Engine) ExportAll() []types.DocumentExport {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]types.DocumentExport, 0, len(e.docOrder))
	for _, id := range e.docOrder {
		out = append(out, types.NewDocumentExport(*e.documents[id], e.unitsOf(id)))
	}
	return out
}

// Validate checks one knowledge unit against its schema.
func (e *Engine) Validate(kuID string) (validate.Result, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	u, ok := e.units[kuID]
	if !ok {
		return validate.Result{}, false
	}
	schema, ok := e.schemas[u.schemaID]
	if !ok {
		return validate.Result{
			Errors: map[string][]string{validate.SchemaErrorKey: {validate.MsgSchemaNotFound}},
		}, true
	}
	return validate.KnowledgeUnit(e.snapshot(u), schema), true
}

// ValidateDocument checks every unit of a document, as run before export.
func (e *Engine) ValidateDocument(documentID string) validate.Report {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return validate.Document(e.unitsOf(documentID), e.schemas)
}
