// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package render turns document content and its highlights into display
// segments, and segments into an HTML tree.
package render

import (
	"fmt"
	"unicode/utf16"

	"github.com/rs/zerolog"

	"github.com/pdiddy/evidence-annotator/internal/highlight"
	"github.com/pdiddy/evidence-annotator/internal/offset"
	"github.com/pdiddy/evidence-annotator/pkg/types"
)

// VisualState is how a highlighted segment is drawn.
type VisualState string

const (
	StateNormal  VisualState = "normal"
	StateActive  VisualState = "active"
	StateHovered VisualState = "hovered"
)

// Segment is a run of content, either plain or covered by one highlight.
// Start and End are UTF-16 offsets into the content.
type Segment struct {
	Text        string      `json:"text"`
	Start       int         `json:"start"`
	End         int         `json:"end"`
	IsHighlight bool        `json:"isHighlight"`
	HighlightID string      `json:"highlightId,omitempty"`
	FieldID     string      `json:"fieldId,omitempty"`
	State       VisualState `json:"visualState,omitempty"`
	Color       string      `json:"color,omitempty"`
}

// Renderer builds segments. The zero value is not usable; call New.
type Renderer struct {
	log zerolog.Logger
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithLogger sets the logger used for data-consistency warnings.
func WithLogger(log zerolog.Logger) Option {
	return func(r *Renderer) { r.log = log }
}

// New returns a Renderer.
func New(opts ...Option) *Renderer {
	r := &Renderer{log: zerolog.Nop()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Segments splits content around highlights, ordered by start offset.
//
// Overlapping highlights are logged and rendered in sort order; the text
// they share then appears in more than one segment.
func (r *Renderer) Segments(content string, highlights []types.Highlight, activeFieldID, hoveredFieldID string) []Segment {
	n := offset.UTF16Len(content)
	if len(highlights) == 0 {
		return []Segment{{Text: content, Start: 0, End: n}}
	}

	sorted := highlight.SortByStart(highlights)
	for _, p := range highlight.OverlappingPairs(sorted) {
		r.log.Warn().
			Str("first", p[0].ID).Int("first_end", p[0].EndOffset).
			Str("second", p[1].ID).Int("second_start", p[1].StartOffset).
			Msg("overlapping highlights")
	}

	var out []Segment
	last := 0
	for _, h := range sorted {
		if h.StartOffset > last {
			out = append(out, Segment{
				Text:  offset.Substring(content, last, h.StartOffset),
				Start: last,
				End:   h.StartOffset,
			})
		}
		out = append(out, Segment{
			Text:        offset.Substring(content, h.StartOffset, h.EndOffset),
			Start:       h.StartOffset,
			End:         h.EndOffset,
			IsHighlight: true,
			HighlightID: h.ID,
			FieldID:     h.FieldID,
			State:       stateOf(h.FieldID, activeFieldID, hoveredFieldID),
			Color:       FieldColor(h.FieldID),
		})
		last = h.EndOffset
	}
	if last < n {
		out = append(out, Segment{Text: offset.Substring(content, last, n), Start: last, End: n})
	}
	return out
}

func stateOf(fieldID, active, hovered string) VisualState {
	switch {
	case active != "" && fieldID == active:
		return StateActive
	case hovered != "" && fieldID == hovered:
		return StateHovered
	}
	return StateNormal
}

// FieldColor returns a stable pastel color for a field id. Only the shifted
// term wraps to 32 bits; the running hash does not.
func FieldColor(fieldID string) string {
	var hash int64
	for _, u := range utf16.Encode([]rune(fieldID)) {
		hash = int64(u) + (int64(int32(hash)<<5) - hash)
	}
	if hash < 0 {
		hash = -hash
	}
	return fmt.Sprintf("hsl(%d, 70%%, 80%%)", hash%360)
}
