// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"go.yaml.in/yaml/v3"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/pdiddy/evidence-annotator/internal/offset"
	"github.com/pdiddy/evidence-annotator/pkg/types"
)

// errUnsupported marks files the importer does not understand.
var errUnsupported = errors.New("unsupported file type")

// IngestSummary holds counts from a document import run.
type IngestSummary struct {
	Indexed int
	Updated int
	Skipped int
	Failed  int
}

// Total returns the number of files processed.
func (s IngestSummary) Total() int {
	return s.Indexed + s.Updated + s.Skipped + s.Failed
}

// Ingest imports every file under the documents directory matching the
// include pattern. Files unchanged since the last run are skipped.
func (s *Store) Ingest(ctx context.Context, w io.Writer) (IngestSummary, error) {
	if s.documentsDir == "" {
		return IngestSummary{}, errors.New("no documents directory configured")
	}
	matches, err := doublestar.Glob(os.DirFS(s.documentsDir), s.include, doublestar.WithFilesOnly())
	if err != nil {
		return IngestSummary{}, fmt.Errorf("matching %q in %s: %w", s.include, s.documentsDir, err)
	}

	var summary IngestSummary
	for _, rel := range matches {
		select {
		case <-ctx.Done():
			return summary, ctx.Err()
		default:
		}
		if !supported(rel) {
			continue
		}

		state, id, err := s.ingestFile(ctx, rel)
		switch {
		case err != nil:
			fmt.Fprintf(w, "failed  %s: %v\n", rel, err)
			summary.Failed++
		case state == stateSkipped:
			fmt.Fprintf(w, "skipped %s\n", rel)
			summary.Skipped++
		case state == stateUpdated:
			fmt.Fprintf(w, "updated %s (%s)\n", rel, id)
			summary.Updated++
		default:
			fmt.Fprintf(w, "indexing %s (%s)\n", rel, id)
			summary.Indexed++
		}
	}

	fmt.Fprintf(w, "\nindexed: %d, updated: %d, skipped: %d, failed: %d\n",
		summary.Indexed, summary.Updated, summary.Skipped, summary.Failed)
	return summary, nil
}

type ingestState int

const (
	stateIndexed ingestState = iota
	stateUpdated
	stateSkipped
)

// IngestFile imports one file given its path relative to the documents
// directory, regardless of its modification time.
func (s *Store) IngestFile(ctx context.Context, rel string) (types.Document, error) {
	path := filepath.Join(s.documentsDir, filepath.FromSlash(rel))
	doc, err := parseDocument(path, rel)
	if err != nil {
		return types.Document{}, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return types.Document{}, fmt.Errorf("stat %s: %w", path, err)
	}
	if err := s.storeFile(ctx, rel, doc, modTime(info)); err != nil {
		return types.Document{}, err
	}
	return doc, nil
}

func (s *Store) ingestFile(ctx context.Context, rel string) (ingestState, string, error) {
	path := filepath.Join(s.documentsDir, filepath.FromSlash(rel))
	info, err := os.Stat(path)
	if err != nil {
		return 0, "", fmt.Errorf("stat %s: %w", path, err)
	}
	mt := modTime(info)

	var storedModTime string
	err = s.db.QueryRowContext(ctx,
		`SELECT file_mod_time FROM indexing_status WHERE path = ?`, rel,
	).Scan(&storedModTime)
	if err == nil && storedModTime == mt {
		return stateSkipped, "", nil
	}
	isUpdate := err == nil

	doc, err := parseDocument(path, rel)
	if err != nil {
		return 0, "", err
	}
	if err := s.storeFile(ctx, rel, doc, mt); err != nil {
		return 0, "", err
	}
	if isUpdate {
		return stateUpdated, doc.ID, nil
	}
	return stateIndexed, doc.ID, nil
}

func (s *Store) storeFile(ctx context.Context, rel string, doc types.Document, mt string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := putDocument(ctx, tx, doc); err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO indexing_status (path, document_id, file_mod_time) VALUES (?, ?, ?)
		 ON CONFLICT(path) DO UPDATE SET document_id=excluded.document_id, file_mod_time=excluded.file_mod_time`,
		rel, doc.ID, mt,
	)
	if err != nil {
		return fmt.Errorf("updating indexing status: %w", err)
	}
	return tx.Commit()
}

func modTime(info fs.FileInfo) string {
	return info.ModTime().UTC().Format(time.RFC3339Nano)
}

func supported(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".txt", ".text", ".md", ".yaml", ".yml", ".json", ".html", ".htm":
		return true
	}
	return false
}

// parseDocument reads a document file. YAML and JSON files hold a Document;
// HTML files contribute their <title> and body text; anything else is
// plain text titled after the file name. Ids default to the relative path
// without extension.
func parseDocument(path, rel string) (types.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return types.Document{}, fmt.Errorf("reading %s: %w", path, err)
	}

	ext := strings.ToLower(filepath.Ext(rel))
	stem := strings.TrimSuffix(filepath.ToSlash(rel), filepath.Ext(rel))
	doc := types.Document{
		ID:       strings.ReplaceAll(stem, "/", "-"),
		Title:    filepath.Base(stem),
		FileName: filepath.Base(rel),
	}

	switch ext {
	case ".yaml", ".yml", ".json":
		var parsed types.Document
		if ext == ".json" {
			err = json.Unmarshal(data, &parsed)
		} else {
			err = yaml.Unmarshal(data, &parsed)
		}
		if err != nil {
			return types.Document{}, fmt.Errorf("parse error: %w", err)
		}
		if parsed.Content == "" {
			return types.Document{}, fmt.Errorf("%s: document has no content", rel)
		}
		if parsed.ID == "" {
			parsed.ID = doc.ID
		}
		if parsed.Title == "" {
			parsed.Title = doc.Title
		}
		if parsed.FileName == "" {
			parsed.FileName = doc.FileName
		}
		parsed.HasAnnotations = false
		return parsed, nil
	case ".html", ".htm":
		root, err := html.Parse(bytes.NewReader(data))
		if err != nil {
			return types.Document{}, fmt.Errorf("parse error: %w", err)
		}
		if title := strings.TrimSpace(offset.TextContent(findElement(root, atom.Title))); title != "" {
			doc.Title = title
		}
		doc.Content = offset.TextContent(findElement(root, atom.Body))
		return doc, nil
	case ".txt", ".text", ".md":
		doc.Content = string(data)
		return doc, nil
	}
	return types.Document{}, fmt.Errorf("%s: %w", rel, errUnsupported)
}

func findElement(n *html.Node, a atom.Atom) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == a {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, a); found != nil {
			return found
		}
	}
	return nil
}
