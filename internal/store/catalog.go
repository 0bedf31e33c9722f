// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/evidence-annotator/pkg/types"
)

// ImportCatalog reads a schema catalog from path and stores it. Files
// ending in .json use the API's camelCase keys; anything else is YAML.
// Schemas and custom field types with existing ids are replaced.
func (s *Store) ImportCatalog(ctx context.Context, path string) (types.Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return types.Catalog{}, fmt.Errorf("reading catalog %s: %w", path, err)
	}
	var cat types.Catalog
	if strings.EqualFold(filepath.Ext(path), ".json") {
		err = json.Unmarshal(data, &cat)
	} else {
		err = yaml.Unmarshal(data, &cat)
	}
	if err != nil {
		return types.Catalog{}, fmt.Errorf("parsing catalog %s: %w", path, err)
	}
	if err := s.PutCatalog(ctx, cat); err != nil {
		return types.Catalog{}, err
	}
	s.log.Info().Str("path", path).Int("schemas", len(cat.Schemas)).
		Int("custom_types", len(cat.CustomFieldTypes)).Msg("catalog imported")
	return cat, nil
}

// PutCatalog stores schemas and custom field types in one transaction.
func (s *Store) PutCatalog(ctx context.Context, cat types.Catalog) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var next int
	if err := tx.QueryRowContext(ctx, `SELECT coalesce(max(position), -1) + 1 FROM schemas`).Scan(&next); err != nil {
		return fmt.Errorf("reading schema positions: %w", err)
	}

	for _, schema := range cat.Schemas {
		fieldsJSON, err := json.Marshal(schema.Fields)
		if err != nil {
			return fmt.Errorf("marshaling fields of %s: %w", schema.FrameID, err)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO schemas (frame_id, frame_label, fields, position) VALUES (?, ?, ?, ?)
			 ON CONFLICT(frame_id) DO UPDATE SET frame_label=excluded.frame_label, fields=excluded.fields`,
			schema.FrameID, schema.FrameLabel, string(fieldsJSON), next,
		)
		if err != nil {
			return fmt.Errorf("upserting schema %s: %w", schema.FrameID, err)
		}
		next++
	}

	for _, ct := range cat.CustomFieldTypes {
		fieldsJSON, err := json.Marshal(ct.Fields)
		if err != nil {
			return fmt.Errorf("marshaling fields of %s: %w", ct.TypeID, err)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO custom_field_types (type_id, type_label, fields) VALUES (?, ?, ?)
			 ON CONFLICT(type_id) DO UPDATE SET type_label=excluded.type_label, fields=excluded.fields`,
			ct.TypeID, ct.TypeLabel, string(fieldsJSON),
		)
		if err != nil {
			return fmt.Errorf("upserting custom field type %s: %w", ct.TypeID, err)
		}
	}

	return tx.Commit()
}

// GetSchemas returns all schemas in import order.
func (s *Store) GetSchemas(ctx context.Context) ([]types.KnowledgeUnitSchema, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT frame_id, frame_label, fields FROM schemas ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("querying schemas: %w", err)
	}
	defer rows.Close()

	schemas := []types.KnowledgeUnitSchema{}
	for rows.Next() {
		var (
			schema     types.KnowledgeUnitSchema
			fieldsJSON string
		)
		if err := rows.Scan(&schema.FrameID, &schema.FrameLabel, &fieldsJSON); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		if err := json.Unmarshal([]byte(fieldsJSON), &schema.Fields); err != nil {
			return nil, fmt.Errorf("decoding fields of %s: %w", schema.FrameID, err)
		}
		schemas = append(schemas, schema)
	}
	return schemas, rows.Err()
}

// GetCustomFieldTypes returns all custom field types ordered by id.
func (s *Store) GetCustomFieldTypes(ctx context.Context) ([]types.CustomFieldType, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT type_id, type_label, fields FROM custom_field_types ORDER BY type_id`)
	if err != nil {
		return nil, fmt.Errorf("querying custom field types: %w", err)
	}
	defer rows.Close()

	out := []types.CustomFieldType{}
	for rows.Next() {
		var (
			ct         types.CustomFieldType
			fieldsJSON string
		)
		if err := rows.Scan(&ct.TypeID, &ct.TypeLabel, &fieldsJSON); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		if err := json.Unmarshal([]byte(fieldsJSON), &ct.Fields); err != nil {
			return nil, fmt.Errorf("decoding fields of %s: %w", ct.TypeID, err)
		}
		out = append(out, ct)
	}
	return out, rows.Err()
}
