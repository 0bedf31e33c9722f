// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package annotation owns knowledge units, their fields, and the evidence
// highlights attached to them.
//
// Structural lookup misses (unknown knowledge unit, field, or highlight) are
// no-ops that report false rather than errors: in an interactive session
// they come from stale references, not from faults. All methods are safe for
// concurrent use.
package annotation

import (
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/pdiddy/evidence-annotator/internal/highlight"
	"github.com/pdiddy/evidence-annotator/internal/offset"
	"github.com/pdiddy/evidence-annotator/pkg/types"
)

var (
	// ErrNoDocument is returned by CreateKU when no document is selected.
	ErrNoDocument = errors.New("no document selected")

	// ErrUnknownSchema is returned by CreateKU for a schema id not in the catalog.
	ErrUnknownSchema = errors.New("unknown schema")
)

// Engine is the single source of truth for an annotation session.
type Engine struct {
	mu      sync.RWMutex
	log     zerolog.Logger
	backend Backend
	newID   func() string

	documents   map[string]*types.Document
	docOrder    []string
	schemas     map[string]types.KnowledgeUnitSchema
	schemaOrder []string
	customTypes map[string]types.CustomFieldType

	units      map[string]*unit
	unitOrder  []string
	highlights *highlight.Store

	selectedDocumentID string
	activeFieldID      string
	hoveredFieldID     string
	pendingEdit        *CustomFieldEdit
}

type unit struct {
	id         string
	schemaID   string
	documentID string
	fields     []*field
}

type field struct {
	def   types.SchemaField
	value any
}

func (u *unit) field(fieldID string) (*field, int) {
	for i, f := range u.fields {
		if f.def.ID == fieldID {
			return f, i
		}
	}
	return nil, -1
}

func (u *unit) fieldIDs() []string {
	ids := make([]string, len(u.fields))
	for i, f := range u.fields {
		ids[i] = f.def.ID
	}
	return ids
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger. The default discards output.
func WithLogger(log zerolog.Logger) Option {
	return func(e *Engine) { e.log = log }
}

// WithBackend sets the persistence backend used by Sync, DeleteKU,
// LoadCatalog, and OpenDocument.
func WithBackend(b Backend) Option {
	return func(e *Engine) { e.backend = b }
}

// WithIDGenerator replaces the uuid generator for knowledge unit and
// highlight ids.
func WithIDGenerator(fn func() string) Option {
	return func(e *Engine) { e.newID = fn }
}

// New returns an empty engine.
func New(opts ...Option) *Engine {
	e := &Engine{
		log:         zerolog.Nop(),
		newID:       uuid.NewString,
		documents:   make(map[string]*types.Document),
		schemas:     make(map[string]types.KnowledgeUnitSchema),
		customTypes: make(map[string]types.CustomFieldType),
		units:       make(map[string]*unit),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.highlights = highlight.NewStore(highlight.WithIDGenerator(e.newID))
	return e
}

// AddDocuments registers documents, replacing any with the same id.
func (e *Engine) AddDocuments(docs ...types.Document) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, d := range docs {
		e.putDocument(d)
	}
}

func (e *Engine) putDocument(d types.Document) {
	if _, ok := e.documents[d.ID]; !ok {
		e.docOrder = append(e.docOrder, d.ID)
	}
	doc := d
	e.documents[d.ID] = &doc
}

// SetCatalog installs the schemas and custom field types for the session.
func (e *Engine) SetCatalog(schemas []types.KnowledgeUnitSchema, customTypes []types.CustomFieldType) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, s := range schemas {
		if _, ok := e.schemas[s.FrameID]; !ok {
			e.schemaOrder = append(e.schemaOrder, s.FrameID)
		}
		e.schemas[s.FrameID] = s
	}
	for _, ct := range customTypes {
		e.customTypes[ct.TypeID] = ct
	}
}

// Documents returns the registered documents in registration order.
func (e *Engine) Documents() []types.Document {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]types.Document, 0, len(e.docOrder))
	for _, id := range e.docOrder {
		out = append(out, *e.documents[id])
	}
	return out
}

// Document returns the document with the given id.
func (e *Engine) Document(id string) (types.Document, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	d, ok := e.documents[id]
	if !ok {
		return types.Document{}, false
	}
	return *d, true
}

// Schemas returns the catalog schemas in load order.
func (e *Engine) Schemas() []types.KnowledgeUnitSchema {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]types.KnowledgeUnitSchema, 0, len(e.schemaOrder))
	for _, id := range e.schemaOrder {
		out = append(out, e.schemas[id])
	}
	return out
}

// Schema returns the schema with the given frame id.
func (e *Engine) Schema(frameID string) (types.KnowledgeUnitSchema, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	s, ok := e.schemas[frameID]
	return s, ok
}

// SelectDocument makes id the active document. Unknown ids are ignored.
func (e *Engine) SelectDocument(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.documents[id]; !ok {
		e.log.Debug().Str("document", id).Msg("select: unknown document")
		return false
	}
	e.selectedDocumentID = id
	return true
}

// SelectedDocumentID returns the active document id, or "".
func (e *Engine) SelectedDocumentID() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.selectedDocumentID
}

// SetActiveHighlightField arms fieldID to receive new highlights. An empty
// id disarms.
func (e *Engine) SetActiveHighlightField(fieldID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.activeFieldID = fieldID
}

// ActiveHighlightFieldID returns the armed field id, or "".
func (e *Engine) ActiveHighlightFieldID() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.activeFieldID
}

// SetHoveredField records the field under the pointer, for display only.
func (e *Engine) SetHoveredField(fieldID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.hoveredFieldID = fieldID
}

// HoveredFieldID returns the hovered field id, or "".
func (e *Engine) HoveredFieldID() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.hoveredFieldID
}

// CreateKU instantiates schemaID on the selected document. The new unit
// holds exactly the schema's required fields with empty values, and the
// document is marked as annotated.
func (e *Engine) CreateKU(schemaID string) (types.KnowledgeUnit, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	doc, ok := e.documents[e.selectedDocumentID]
	if !ok {
		return types.KnowledgeUnit{}, ErrNoDocument
	}
	schema, ok := e.schemas[schemaID]
	if !ok {
		return types.KnowledgeUnit{}, ErrUnknownSchema
	}

	u := &unit{id: e.newID(), schemaID: schemaID, documentID: doc.ID}
	for _, def := range schema.Fields {
		if def.Required {
			u.fields = append(u.fields, &field{def: def, value: types.EmptyValue(def.Multiple)})
		}
	}
	e.units[u.id] = u
	e.unitOrder = append(e.unitOrder, u.id)
	doc.HasAnnotations = true

	e.log.Debug().Str("ku", u.id).Str("schema", schemaID).Str("document", doc.ID).Msg("knowledge unit created")
	return e.snapshot(u), nil
}

// UpdateFieldValue replaces a field value in place. Highlights are not
// touched. Unknown ids are a no-op.
func (e *Engine) UpdateFieldValue(kuID, fieldID string, value any) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	f := e.lookupField(kuID, fieldID)
	if f == nil {
		return false
	}
	f.value = value
	return true
}

func (e *Engine) lookupField(kuID, fieldID string) *field {
	u, ok := e.units[kuID]
	if !ok {
		e.log.Debug().Str("ku", kuID).Msg("unknown knowledge unit")
		return nil
	}
	f, _ := u.field(fieldID)
	if f == nil {
		e.log.Debug().Str("ku", kuID).Str("field", fieldID).Msg("unknown field")
	}
	return f
}

// AddOptionalField adds a schema field to a knowledge unit.
//
// Custom composite fields are not added directly: the returned edit opens
// the custom field editor and the field is materialized only when
// SubmitCustomField succeeds. Other fields are appended immediately with an
// empty value and added reports true. Fields already present, and unknown
// ids, are a no-op.
func (e *Engine) AddOptionalField(kuID, fieldID string) (edit *CustomFieldEdit, added bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	u, ok := e.units[kuID]
	if !ok {
		return nil, false
	}
	def, ok := e.schemas[u.schemaID].Field(fieldID)
	if !ok {
		e.log.Debug().Str("ku", kuID).Str("field", fieldID).Msg("field not in schema")
		return nil, false
	}
	if f, _ := u.field(fieldID); f != nil {
		return nil, false
	}

	if def.Type.Kind == types.KindCustom {
		return e.openEdit(u.id, def, true, nil), false
	}

	u.fields = append(u.fields, &field{def: def, value: types.EmptyValue(def.Multiple)})
	e.log.Debug().Str("ku", kuID).Str("field", fieldID).Msg("optional field added")
	return nil, true
}

// AvailableOptionalFields lists schema fields not yet present in the unit.
func (e *Engine) AvailableOptionalFields(kuID string) []types.SchemaField {
	e.mu.RLock()
	defer e.mu.RUnlock()
	u, ok := e.units[kuID]
	if !ok {
		return nil
	}
	var out []types.SchemaField
	for _, def := range e.schemas[u.schemaID].Fields {
		if f, _ := u.field(def.ID); f == nil {
			out = append(out, def)
		}
	}
	return out
}

// RemoveField removes a field and every highlight it owns.
func (e *Engine) RemoveField(kuID, fieldID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	u, ok := e.units[kuID]
	if !ok {
		return false
	}
	_, i := u.field(fieldID)
	if i < 0 {
		return false
	}
	u.fields = append(u.fields[:i:i], u.fields[i+1:]...)
	n := e.highlights.RemoveField(kuID, fieldID)
	e.log.Debug().Str("ku", kuID).Str("field", fieldID).Int("highlights", n).Msg("field removed")
	return true
}

// AddHighlight assigns an id to h and appends it to its owning field.
//
// Overlap with other highlights is not checked here; callers check it
// against the whole document first. An empty Text is filled from the
// document content. Highlights for unknown units or fields, or with
// offsets outside the document, are dropped.
func (e *Engine) AddHighlight(h types.Highlight) (types.Highlight, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	u, ok := e.units[h.KUID]
	if !ok {
		return types.Highlight{}, false
	}
	if f, _ := u.field(h.FieldID); f == nil {
		return types.Highlight{}, false
	}
	if doc, ok := e.documents[u.documentID]; ok {
		if h.StartOffset < 0 || h.EndOffset <= h.StartOffset || h.EndOffset > offset.UTF16Len(doc.Content) {
			e.log.Debug().Int("start", h.StartOffset).Int("end", h.EndOffset).Msg("highlight outside document")
			return types.Highlight{}, false
		}
		if h.Text == "" {
			h.Text = offset.Substring(doc.Content, h.StartOffset, h.EndOffset)
		}
	}

	h = e.highlights.Add(h)
	e.log.Debug().Str("highlight", h.ID).Str("ku", h.KUID).Str("field", h.FieldID).
		Int("start", h.StartOffset).Int("end", h.EndOffset).Msg("highlight added")
	return h, true
}

// RemoveHighlight removes a highlight given only its id. Removing an
// unknown or already removed id is a no-op.
func (e *Engine) RemoveHighlight(highlightID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.highlights.Remove(highlightID)
	if ok {
		e.log.Debug().Str("highlight", highlightID).Msg("highlight removed")
	}
	return ok
}

// FindFieldByHighlightID resolves the knowledge unit and field that own a
// highlight.
func (e *Engine) FindFieldByHighlightID(highlightID string) (highlight.Location, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.highlights.Find(highlightID)
}
