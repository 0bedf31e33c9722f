// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package annotation

import (
	"errors"
	"maps"

	"github.com/pdiddy/evidence-annotator/internal/validate"
	"github.com/pdiddy/evidence-annotator/pkg/types"
)

// ErrNoPendingEdit is returned by SubmitCustomField when no custom field
// editor is open.
var ErrNoPendingEdit = errors.New("no custom field edit in progress")

// CustomFieldEdit is an open custom field editor. At most one is open at a
// time; opening another replaces it.
type CustomFieldEdit struct {
	KUID    string
	FieldID string

	// Field is the schema definition of the field being edited.
	Field types.SchemaField

	// Type is the sub-schema the editor renders. It is zero when the
	// catalog has no entry for Field.Type.Ref.
	Type types.CustomFieldType

	// IsNew marks a field that does not exist in the unit yet.
	IsNew bool

	// Values pre-fills the editor from the current field value.
	Values map[string]any
}

func (e *Engine) openEdit(kuID string, def types.SchemaField, isNew bool, current map[string]any) *CustomFieldEdit {
	edit := &CustomFieldEdit{
		KUID:    kuID,
		FieldID: def.ID,
		Field:   def,
		Type:    e.customTypes[def.Type.Ref],
		IsNew:   isNew,
		Values:  maps.Clone(current),
	}
	if edit.Values == nil {
		edit.Values = map[string]any{}
	}
	e.pendingEdit = edit
	e.log.Debug().Str("ku", kuID).Str("field", def.ID).Str("type", def.Type.Ref).Bool("new", isNew).
		Msg("custom field editor opened")
	return edit
}

// OpenCustomFieldEditor opens the editor for an existing custom field.
func (e *Engine) OpenCustomFieldEditor(kuID, fieldID string) (*CustomFieldEdit, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	f := e.lookupField(kuID, fieldID)
	if f == nil || f.def.Type.Kind != types.KindCustom {
		return nil, false
	}
	current, _ := f.value.(map[string]any)
	return e.openEdit(kuID, f.def, false, current), true
}

// PendingCustomField returns the open editor, if any.
func (e *Engine) PendingCustomField() (*CustomFieldEdit, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.pendingEdit, e.pendingEdit != nil
}

// SubmitCustomField applies the open editor's values.
//
// The submission is validated first; on failure the error is returned, the
// editor stays open, and the unit is unchanged. A new field is appended with
// the submitted value and no highlights; an existing field only has its
// value replaced.
func (e *Engine) SubmitCustomField(values map[string]any) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	edit := e.pendingEdit
	if edit == nil {
		return ErrNoPendingEdit
	}
	if err := validate.CustomSubmission(edit.Type, values); err != nil {
		return err
	}
	e.pendingEdit = nil

	u, ok := e.units[edit.KUID]
	if !ok {
		e.log.Debug().Str("ku", edit.KUID).Msg("custom field target disappeared")
		return nil
	}
	value := maps.Clone(values)
	if f, _ := u.field(edit.FieldID); f != nil {
		f.value = value
	} else if edit.IsNew {
		u.fields = append(u.fields, &field{def: edit.Field, value: value})
	}
	e.log.Debug().Str("ku", edit.KUID).Str("field", edit.FieldID).Msg("custom field submitted")
	return nil
}

// CancelCustomField closes the open editor without changing anything.
func (e *Engine) CancelCustomField() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pendingEdit = nil
}
