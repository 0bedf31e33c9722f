// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/evidence-annotator/pkg/types"
)

// Export builds the export artifact of one document from stored state.
func (s *Store) Export(ctx context.Context, documentID string) (types.DocumentExport, error) {
	doc, err := s.GetDocument(ctx, documentID)
	if err != nil {
		return types.DocumentExport{}, err
	}
	units, err := s.GetAnnotationsForDocument(ctx, documentID)
	if err != nil {
		return types.DocumentExport{}, fmt.Errorf("querying for export: %w", err)
	}
	return types.NewDocumentExport(doc, units), nil
}

// ExportAll builds export artifacts for every annotated document.
func (s *Store) ExportAll(ctx context.Context) ([]types.DocumentExport, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT d.id FROM documents d
		 JOIN knowledge_units k ON k.document_id = d.id
		 ORDER BY d.rowid`)
	if err != nil {
		return nil, fmt.Errorf("querying annotated documents: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]types.DocumentExport, 0, len(ids))
	for _, id := range ids {
		x, err := s.Export(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, x)
	}
	return out, nil
}

// ExportYAML writes every annotated document to export/export.yaml under
// the store directory and returns the path.
func (s *Store) ExportYAML(ctx context.Context) (string, error) {
	entries, err := s.ExportAll(ctx)
	if err != nil {
		return "", err
	}
	data, err := yaml.Marshal(entries)
	if err != nil {
		return "", fmt.Errorf("marshaling YAML: %w", err)
	}
	return s.writeExport("export.yaml", data)
}

// ExportJSON writes every annotated document to export/export.json under
// the store directory and returns the path.
func (s *Store) ExportJSON(ctx context.Context) (string, error) {
	entries, err := s.ExportAll(ctx)
	if err != nil {
		return "", err
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshaling JSON: %w", err)
	}
	return s.writeExport("export.json", data)
}

func (s *Store) writeExport(name string, data []byte) (string, error) {
	dir := filepath.Join(s.dir, exportDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating export directory: %w", err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("writing %s: %w", path, err)
	}
	s.log.Info().Str("path", path).Msg("export written")
	return path, nil
}
