// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package store persists documents, schema catalogs, and knowledge units in
// SQLite and serves them as an annotation backend.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	"github.com/pdiddy/evidence-annotator/pkg/types"
)

const (
	indexDir  = "index"
	exportDir = "export"
	dbFile    = "annotations.db"

	defaultInclude  = "**/*"
	defaultPageSize = 10
)

// ErrNotFound is returned when a requested document does not exist.
var ErrNotFound = errors.New("not found")

// Store manages the annotation SQLite database.
type Store struct {
	db           *sql.DB
	log          zerolog.Logger
	dir          string
	documentsDir string
	include      string
	pageSize     int
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the store logger.
func WithLogger(log zerolog.Logger) Option {
	return func(s *Store) { s.log = log }
}

// NewStore opens or creates the database at cfg.Dir/index/annotations.db
// and creates the schema if it does not exist.
func NewStore(cfg types.StoreConfig, opts ...Option) (*Store, error) {
	dbDir := filepath.Join(cfg.Dir, indexDir)
	if err := os.MkdirAll(dbDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating index directory: %w", err)
	}

	dbPath := filepath.Join(dbDir, dbFile)
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{
		db:           db,
		log:          zerolog.Nop(),
		dir:          cfg.Dir,
		documentsDir: cfg.DocumentsDir,
		include:      cfg.Include,
		pageSize:     cfg.PageSize,
	}
	if s.include == "" {
		s.include = defaultInclude
	}
	if s.pageSize <= 0 {
		s.pageSize = defaultPageSize
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS documents (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			title TEXT NOT NULL,
			content TEXT NOT NULL,
			file_name TEXT,
			has_annotations INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS schemas (
			frame_id TEXT PRIMARY KEY,
			frame_label TEXT,
			fields TEXT NOT NULL,
			position INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS custom_field_types (
			type_id TEXT PRIMARY KEY,
			type_label TEXT,
			fields TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS knowledge_units (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			schema_id TEXT NOT NULL,
			document_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_ku_document_id ON knowledge_units(document_id)`,
		`CREATE TABLE IF NOT EXISTS fields (
			ku_id TEXT NOT NULL REFERENCES knowledge_units(id) ON DELETE CASCADE,
			id TEXT NOT NULL,
			position INTEGER NOT NULL,
			name TEXT,
			type TEXT,
			required INTEGER NOT NULL DEFAULT 0,
			multiple INTEGER NOT NULL DEFAULT 0,
			value TEXT,
			PRIMARY KEY (ku_id, id)
		)`,
		`CREATE TABLE IF NOT EXISTS highlights (
			id TEXT PRIMARY KEY,
			ku_id TEXT NOT NULL,
			field_id TEXT NOT NULL,
			start_offset INTEGER NOT NULL,
			end_offset INTEGER NOT NULL,
			text TEXT,
			FOREIGN KEY (ku_id, field_id) REFERENCES fields(ku_id, id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_highlights_ku ON highlights(ku_id, field_id)`,
		`CREATE TABLE IF NOT EXISTS indexing_status (
			path TEXT PRIMARY KEY,
			document_id TEXT NOT NULL,
			file_mod_time TEXT
		)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}

	// FTS5 virtual table with triggers for sync.
	var ftsExists int
	if err := s.db.QueryRow(
		`SELECT count(*) FROM sqlite_master WHERE type='table' AND name='documents_fts'`,
	).Scan(&ftsExists); err != nil {
		return fmt.Errorf("checking FTS table: %w", err)
	}

	if ftsExists == 0 {
		ftsStatements := []string{
			`CREATE VIRTUAL TABLE documents_fts USING fts5(title, content, content=documents, content_rowid=rowid)`,
			`CREATE TRIGGER documents_ai AFTER INSERT ON documents BEGIN
				INSERT INTO documents_fts(rowid, title, content) VALUES (new.rowid, new.title, new.content);
			END`,
			`CREATE TRIGGER documents_ad AFTER DELETE ON documents BEGIN
				INSERT INTO documents_fts(documents_fts, rowid, title, content) VALUES('delete', old.rowid, old.title, old.content);
			END`,
			`CREATE TRIGGER documents_au AFTER UPDATE ON documents BEGIN
				INSERT INTO documents_fts(documents_fts, rowid, title, content) VALUES('delete', old.rowid, old.title, old.content);
				INSERT INTO documents_fts(rowid, title, content) VALUES (new.rowid, new.title, new.content);
			END`,
		}
		for _, stmt := range ftsStatements {
			if _, err := s.db.Exec(stmt); err != nil {
				return fmt.Errorf("creating FTS infrastructure: %w", err)
			}
		}
	}

	return nil
}
