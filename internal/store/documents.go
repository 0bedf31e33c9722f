// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/pdiddy/evidence-annotator/pkg/types"
)

// PutDocument inserts or replaces a document. The annotated flag is kept
// across replacements.
func (s *Store) PutDocument(ctx context.Context, doc types.Document) error {
	return putDocument(ctx, s.db, doc)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func putDocument(ctx context.Context, db execer, doc types.Document) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO documents (id, title, content, file_name, has_annotations)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			title=excluded.title, content=excluded.content, file_name=excluded.file_name,
			has_annotations=max(documents.has_annotations, excluded.has_annotations)`,
		doc.ID, doc.Title, doc.Content, doc.FileName, doc.HasAnnotations,
	)
	if err != nil {
		return fmt.Errorf("upserting document %s: %w", doc.ID, err)
	}
	return nil
}

// GetDocument returns one document or ErrNotFound.
func (s *Store) GetDocument(ctx context.Context, id string) (types.Document, error) {
	var (
		doc      types.Document
		fileName sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, title, content, file_name, has_annotations FROM documents WHERE id = ?`, id,
	).Scan(&doc.ID, &doc.Title, &doc.Content, &fileName, &doc.HasAnnotations)
	if errors.Is(err, sql.ErrNoRows) {
		return types.Document{}, fmt.Errorf("document %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return types.Document{}, fmt.Errorf("looking up document: %w", err)
	}
	doc.FileName = fileName.String
	return doc, nil
}

// GetDocuments returns one page of documents in import order. Pages are
// numbered from 1; a non-positive limit uses the configured page size.
func (s *Store) GetDocuments(ctx context.Context, page, limit int) (types.DocumentPage, error) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = s.pageSize
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM documents`).Scan(&total); err != nil {
		return types.DocumentPage{}, fmt.Errorf("counting documents: %w", err)
	}

	docs, err := s.queryDocuments(ctx,
		`SELECT id, title, content, file_name, has_annotations FROM documents
		 ORDER BY rowid LIMIT ? OFFSET ?`,
		limit, (page-1)*limit,
	)
	if err != nil {
		return types.DocumentPage{}, err
	}

	return types.DocumentPage{
		Documents: docs,
		Metadata: types.PageMetadata{
			Total:   total,
			Page:    page,
			Limit:   limit,
			HasMore: page*limit < total,
		},
	}, nil
}

// Search runs an FTS5 query over document titles and content, best match
// first.
func (s *Store) Search(ctx context.Context, query string, limit int) ([]types.Document, error) {
	if limit <= 0 {
		limit = s.pageSize
	}
	return s.queryDocuments(ctx,
		`SELECT d.id, d.title, d.content, d.file_name, d.has_annotations
		 FROM documents_fts
		 JOIN documents d ON d.rowid = documents_fts.rowid
		 WHERE documents_fts MATCH ?
		 ORDER BY documents_fts.rank
		 LIMIT ?`,
		query, limit,
	)
}

func (s *Store) queryDocuments(ctx context.Context, query string, args ...any) ([]types.Document, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	docs := []types.Document{}
	for rows.Next() {
		var (
			doc      types.Document
			fileName sql.NullString
		)
		if err := rows.Scan(&doc.ID, &doc.Title, &doc.Content, &fileName, &doc.HasAnnotations); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		doc.FileName = fileName.String
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}
