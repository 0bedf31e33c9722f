package types

import "time"

// HTTPConfig holds shared HTTP settings for backends that make network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "evidence-annotator/1.0").
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// StoreConfig holds settings for the local SQLite annotation store.
type StoreConfig struct {
	// Dir is the base directory for the store (contains index/, export/).
	Dir string `json:"dir" yaml:"dir"`

	// DocumentsDir is the directory scanned by document import.
	DocumentsDir string `json:"documents_dir" yaml:"documents_dir"`

	// Include is the doublestar pattern selecting files to import (default "**/*").
	Include string `json:"include" yaml:"include"`

	// PageSize is the default document listing page size (default 10).
	PageSize int `json:"page_size" yaml:"page_size"`
}

// APIConfig holds settings for the remote annotation API backend.
type APIConfig struct {
	HTTPConfig `yaml:",inline"`

	// URL is the API base URL (e.g. "http://localhost:3001/api"). Empty
	// selects the local SQLite store.
	URL string `json:"url" yaml:"url"`

	// Token is sent as a bearer token when set.
	Token string `json:"-" yaml:"-"`

	// MaxRetries bounds retries on HTTP 429 and 503 (default 5).
	MaxRetries int `json:"max_retries" yaml:"max_retries"`
}

// SelectionConfig holds settings for turning text selections into highlights.
type SelectionConfig struct {
	// Debounce is the quiet window before a selection is committed (default 300ms).
	Debounce time.Duration `json:"debounce" yaml:"debounce"`
}

// AnnotatorConfig groups all annotator settings.
type AnnotatorConfig struct {
	Store     StoreConfig     `json:"store" yaml:"store"`
	API       APIConfig       `json:"api" yaml:"api"`
	Selection SelectionConfig `json:"selection" yaml:"selection"`

	// LogLevel is a zerolog level name (default "info").
	LogLevel string `json:"log_level" yaml:"log_level"`
}
