// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/pdiddy/evidence-annotator/pkg/types"
)

// SaveOrUpdateKU replaces the stored state of a knowledge unit with ku and
// marks its document as annotated. The document must exist.
func (s *Store) SaveOrUpdateKU(ctx context.Context, ku types.KnowledgeUnit) (types.KnowledgeUnit, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return types.KnowledgeUnit{}, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE documents SET has_annotations = 1 WHERE id = ?`, ku.DocumentID)
	if err != nil {
		return types.KnowledgeUnit{}, fmt.Errorf("marking document annotated: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return types.KnowledgeUnit{}, fmt.Errorf("document %s: %w", ku.DocumentID, ErrNotFound)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO knowledge_units (id, schema_id, document_id) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET schema_id=excluded.schema_id, document_id=excluded.document_id`,
		ku.ID, ku.SchemaID, ku.DocumentID,
	)
	if err != nil {
		return types.KnowledgeUnit{}, fmt.Errorf("upserting knowledge unit: %w", err)
	}

	// Fields are rewritten wholesale; highlights cascade.
	if _, err := tx.ExecContext(ctx, `DELETE FROM fields WHERE ku_id = ?`, ku.ID); err != nil {
		return types.KnowledgeUnit{}, fmt.Errorf("deleting old fields: %w", err)
	}

	fieldStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO fields (ku_id, id, position, name, type, required, multiple, value)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return types.KnowledgeUnit{}, fmt.Errorf("preparing field insert: %w", err)
	}
	defer fieldStmt.Close()

	hlStmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO highlights (id, ku_id, field_id, start_offset, end_offset, text)
		 VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return types.KnowledgeUnit{}, fmt.Errorf("preparing highlight insert: %w", err)
	}
	defer hlStmt.Close()

	for i, f := range ku.Fields {
		typeJSON, err := json.Marshal(f.Type)
		if err != nil {
			return types.KnowledgeUnit{}, fmt.Errorf("marshaling type of field %s: %w", f.ID, err)
		}
		var value sql.NullString
		if f.Value != nil {
			data, err := json.Marshal(f.Value)
			if err != nil {
				return types.KnowledgeUnit{}, fmt.Errorf("marshaling value of field %s: %w", f.ID, err)
			}
			value = sql.NullString{String: string(data), Valid: true}
		}
		if _, err := fieldStmt.ExecContext(ctx,
			ku.ID, f.ID, i, f.Name, string(typeJSON), f.Required, f.Multiple, value,
		); err != nil {
			return types.KnowledgeUnit{}, fmt.Errorf("inserting field %s: %w", f.ID, err)
		}
		for _, h := range f.Highlights {
			if _, err := hlStmt.ExecContext(ctx,
				h.ID, ku.ID, f.ID, h.StartOffset, h.EndOffset, h.Text,
			); err != nil {
				return types.KnowledgeUnit{}, fmt.Errorf("inserting highlight %s: %w", h.ID, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return types.KnowledgeUnit{}, fmt.Errorf("committing knowledge unit: %w", err)
	}
	s.log.Debug().Str("ku", ku.ID).Int("fields", len(ku.Fields)).Msg("knowledge unit saved")
	return ku, nil
}

// DeleteKU removes a knowledge unit with its fields and highlights.
// Deleting an unknown id is not an error.
func (s *Store) DeleteKU(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM knowledge_units WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting knowledge unit %s: %w", id, err)
	}
	return nil
}

// GetAnnotationsForDocument returns the knowledge units of a document in
// save order, with fields and highlights.
func (s *Store) GetAnnotationsForDocument(ctx context.Context, documentID string) ([]types.KnowledgeUnit, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, schema_id, document_id FROM knowledge_units WHERE document_id = ? ORDER BY rowid`,
		documentID)
	if err != nil {
		return nil, fmt.Errorf("querying knowledge units: %w", err)
	}
	units := []types.KnowledgeUnit{}
	for rows.Next() {
		var ku types.KnowledgeUnit
		if err := rows.Scan(&ku.ID, &ku.SchemaID, &ku.DocumentID); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		units = append(units, ku)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range units {
		fields, err := s.loadFields(ctx, units[i].ID)
		if err != nil {
			return nil, err
		}
		units[i].Fields = fields
	}
	return units, nil
}

func (s *Store) loadFields(ctx context.Context, kuID string) ([]types.Field, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, type, required, multiple, value FROM fields WHERE ku_id = ? ORDER BY position`,
		kuID)
	if err != nil {
		return nil, fmt.Errorf("querying fields: %w", err)
	}
	defer rows.Close()

	fields := []types.Field{}
	for rows.Next() {
		var (
			f        types.Field
			name     sql.NullString
			typeJSON sql.NullString
			value    sql.NullString
		)
		if err := rows.Scan(&f.ID, &name, &typeJSON, &f.Required, &f.Multiple, &value); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		f.Name = name.String
		if typeJSON.Valid {
			if err := json.Unmarshal([]byte(typeJSON.String), &f.Type); err != nil {
				return nil, fmt.Errorf("decoding type of field %s: %w", f.ID, err)
			}
		}
		if value.Valid {
			if err := json.Unmarshal([]byte(value.String), &f.Value); err != nil {
				return nil, fmt.Errorf("decoding value of field %s: %w", f.ID, err)
			}
		}
		f.Highlights = []types.Highlight{}
		fields = append(fields, f)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	hlRows, err := s.db.QueryContext(ctx,
		`SELECT id, field_id, start_offset, end_offset, text FROM highlights
		 WHERE ku_id = ? ORDER BY start_offset, id`, kuID)
	if err != nil {
		return nil, fmt.Errorf("querying highlights: %w", err)
	}
	defer hlRows.Close()

	for hlRows.Next() {
		var (
			h    types.Highlight
			text sql.NullString
		)
		if err := hlRows.Scan(&h.ID, &h.FieldID, &h.StartOffset, &h.EndOffset, &text); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		h.Text = text.String
		h.KUID = kuID
		for i := range fields {
			if fields[i].ID == h.FieldID {
				fields[i].Highlights = append(fields[i].Highlights, h)
				break
			}
		}
	}
	return fields, hlRows.Err()
}

// ExportAnnotations returns the export artifact of a document as JSON.
func (s *Store) ExportAnnotations(ctx context.Context, documentID string) (json.RawMessage, error) {
	out, err := s.Export(ctx, documentID)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("marshaling export: %w", err)
	}
	return data, nil
}
