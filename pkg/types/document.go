// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// Document is a source text that knowledge units are attached to.
// Content is immutable plain text; every highlight offset indexes into it
// in UTF-16 code units, the unit a browser selection reports.
type Document struct {
	// ID is the stable document identifier (e.g. "doc-1").
	ID string `json:"id" yaml:"id"`

	// Title is the display title.
	Title string `json:"title" yaml:"title"`

	// Content is the plain text shown to the annotator.
	Content string `json:"content" yaml:"content"`

	// FileName is the source file the document was imported from.
	FileName string `json:"fileName,omitempty" yaml:"file_name,omitempty"`

	// HasAnnotations is set once the first knowledge unit is created.
	HasAnnotations bool `json:"hasAnnotations" yaml:"has_annotations"`
}

// PageMetadata describes one page of a paginated document listing.
type PageMetadata struct {
	Total   int  `json:"total" yaml:"total"`
	Page    int  `json:"page" yaml:"page"`
	Limit   int  `json:"limit" yaml:"limit"`
	HasMore bool `json:"hasMore" yaml:"has_more"`
}

// DocumentPage is one page of documents. Callers fetch the next page while
// Metadata.HasMore is true.
type DocumentPage struct {
	Documents []Document   `json:"documents" yaml:"documents"`
	Metadata  PageMetadata `json:"metadata" yaml:"metadata"`
}
