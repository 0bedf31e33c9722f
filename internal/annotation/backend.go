// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package annotation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/pdiddy/evidence-annotator/pkg/types"
)

// ErrNoBackend is returned by operations that need a Backend when none is
// configured.
var ErrNoBackend = errors.New("no backend configured")

// Backend is the document, schema, and annotation API the engine persists
// through. Implementations: the local SQLite store and the HTTP API client.
type Backend interface {
	GetDocument(ctx context.Context, id string) (types.Document, error)
	GetDocuments(ctx context.Context, page, limit int) (types.DocumentPage, error)
	GetSchemas(ctx context.Context) ([]types.KnowledgeUnitSchema, error)
	GetCustomFieldTypes(ctx context.Context) ([]types.CustomFieldType, error)
	GetAnnotationsForDocument(ctx context.Context, documentID string) ([]types.KnowledgeUnit, error)
	SaveOrUpdateKU(ctx context.Context, ku types.KnowledgeUnit) (types.KnowledgeUnit, error)
	DeleteKU(ctx context.Context, id string) error
	ExportAnnotations(ctx context.Context, documentID string) (json.RawMessage, error)
}

// LoadCatalog fetches schemas and custom field types. They are treated as
// static for the rest of the session.
func (e *Engine) LoadCatalog(ctx context.Context) error {
	if e.backend == nil {
		return ErrNoBackend
	}
	schemas, err := e.backend.GetSchemas(ctx)
	if err != nil {
		return fmt.Errorf("loading schemas: %w", err)
	}
	customTypes, err := e.backend.GetCustomFieldTypes(ctx)
	if err != nil {
		return fmt.Errorf("loading custom field types: %w", err)
	}
	e.SetCatalog(schemas, customTypes)
	e.log.Debug().Int("schemas", len(schemas)).Int("custom_types", len(customTypes)).Msg("catalog loaded")
	return nil
}

// LoadDocuments fetches one page of documents and registers them. It
// reports whether more pages exist.
func (e *Engine) LoadDocuments(ctx context.Context, page, limit int) (bool, error) {
	if e.backend == nil {
		return false, ErrNoBackend
	}
	p, err := e.backend.GetDocuments(ctx, page, limit)
	if err != nil {
		return false, fmt.Errorf("loading documents page %d: %w", page, err)
	}
	e.AddDocuments(p.Documents...)
	return p.Metadata.HasMore, nil
}

// OpenDocument fetches a document with its annotations, installs them, and
// selects the document.
func (e *Engine) OpenDocument(ctx context.Context, id string) error {
	if e.backend == nil {
		return ErrNoBackend
	}
	doc, err := e.backend.GetDocument(ctx, id)
	if err != nil {
		return fmt.Errorf("loading document %s: %w", id, err)
	}
	units, err := e.backend.GetAnnotationsForDocument(ctx, id)
	if err != nil {
		return fmt.Errorf("loading annotations for %s: %w", id, err)
	}
	e.Load(doc, units)
	e.SelectDocument(id)
	return nil
}

// Load installs doc and replaces the knowledge units held for it with
// units. Persisted highlight ids are kept.
func (e *Engine) Load(doc types.Document, units []types.KnowledgeUnit) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(units) > 0 {
		doc.HasAnnotations = true
	}
	e.putDocument(doc)

	kept := e.unitOrder[:0]
	for _, id := range e.unitOrder {
		if e.units[id].documentID == doc.ID {
			e.highlights.RemoveUnit(id)
			delete(e.units, id)
			continue
		}
		kept = append(kept, id)
	}
	e.unitOrder = kept

	for _, ku := range units {
		e.install(doc.ID, ku)
	}
	e.log.Debug().Str("document", doc.ID).Int("units", len(units)).Msg("document loaded")
}

func (e *Engine) install(documentID string, ku types.KnowledgeUnit) {
	if ku.ID == "" {
		ku.ID = e.newID()
	}
	if _, ok := e.units[ku.ID]; ok {
		e.highlights.RemoveUnit(ku.ID)
	}
	u := &unit{id: ku.ID, schemaID: ku.SchemaID, documentID: documentID}
	for _, f := range ku.Fields {
		def := types.SchemaField{ID: f.ID, Name: f.Name, Type: f.Type, Required: f.Required, Multiple: f.Multiple}
		if sdef, ok := e.schemas[ku.SchemaID].Field(f.ID); ok {
			def = sdef
		}
		u.fields = append(u.fields, &field{def: def, value: f.Value})
		for _, h := range f.Highlights {
			h.KUID, h.FieldID = ku.ID, f.ID
			e.highlights.Restore(h)
		}
	}
	if _, ok := e.units[u.id]; !ok {
		e.unitOrder = append(e.unitOrder, u.id)
	}
	e.units[u.id] = u
}

// Sync persists the current state of a knowledge unit. On failure the
// local state is kept so the user can retry.
func (e *Engine) Sync(ctx context.Context, kuID string) error {
	if e.backend == nil {
		return ErrNoBackend
	}
	ku, ok := e.KnowledgeUnit(kuID)
	if !ok {
		return nil
	}
	if _, err := e.backend.SaveOrUpdateKU(ctx, ku); err != nil {
		e.log.Warn().Err(err).Str("ku", kuID).Msg("saving knowledge unit failed; local changes kept")
		return fmt.Errorf("saving knowledge unit %s: %w", kuID, err)
	}
	return nil
}

// DeleteKU removes a knowledge unit with all its highlights, then deletes
// it from the backend when one is configured. A backend failure is returned
// but the local deletion stands.
func (e *Engine) DeleteKU(ctx context.Context, kuID string) error {
	e.mu.Lock()
	_, ok := e.units[kuID]
	if ok {
		delete(e.units, kuID)
		for i, id := range e.unitOrder {
			if id == kuID {
				e.unitOrder = append(e.unitOrder[:i:i], e.unitOrder[i+1:]...)
				break
			}
		}
		n := e.highlights.RemoveUnit(kuID)
		if e.pendingEdit != nil && e.pendingEdit.KUID == kuID {
			e.pendingEdit = nil
		}
		e.log.Debug().Str("ku", kuID).Int("highlights", n).Msg("knowledge unit deleted")
	}
	e.mu.Unlock()

	if !ok || e.backend == nil {
		return nil
	}
	if err := e.backend.DeleteKU(ctx, kuID); err != nil {
		e.log.Warn().Err(err).Str("ku", kuID).Msg("deleting knowledge unit from backend failed")
		return fmt.Errorf("deleting knowledge unit %s: %w", kuID, err)
	}
	return nil
}
