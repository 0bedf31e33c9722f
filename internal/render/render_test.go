// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package render

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/evidence-annotator/internal/offset"
	"github.com/pdiddy/evidence-annotator/pkg/types"
)

const sample = "0123456789abcdefghij"

func hl(id, field string, start, end int) types.Highlight {
	return types.Highlight{ID: id, FieldID: field, StartOffset: start, EndOffset: end}
}

func TestSegmentsNoHighlights(t *testing.T) {
	segs := New().Segments(sample, nil, "", "")
	require.Len(t, segs, 1)
	assert.Equal(t, Segment{Text: sample, Start: 0, End: 20}, segs[0])
}

func TestSegmentsTwoHighlights(t *testing.T) {
	segs := New().Segments(sample, []types.Highlight{hl("h2", "f", 10, 15), hl("h1", "f", 0, 5)}, "", "")
	require.Len(t, segs, 4)

	assert.True(t, segs[0].IsHighlight)
	assert.Equal(t, "h1", segs[0].HighlightID)
	assert.Equal(t, "01234", segs[0].Text)

	assert.False(t, segs[1].IsHighlight)
	assert.Equal(t, "56789", segs[1].Text)
	assert.Equal(t, [2]int{5, 10}, [2]int{segs[1].Start, segs[1].End})

	assert.True(t, segs[2].IsHighlight)
	assert.Equal(t, "abcde", segs[2].Text)

	assert.False(t, segs[3].IsHighlight)
	assert.Equal(t, "fghij", segs[3].Text)
}

func TestSegmentsConcatenateToContent(t *testing.T) {
	tests := []struct {
		name       string
		highlights []types.Highlight
	}{
		{"none", nil},
		{"leading", []types.Highlight{hl("a", "f", 0, 3)}},
		{"trailing", []types.Highlight{hl("a", "f", 17, 20)}},
		{"adjacent", []types.Highlight{hl("a", "f", 2, 4), hl("b", "g", 4, 9)}},
		{"whole", []types.Highlight{hl("a", "f", 0, 20)}},
		{"scattered", []types.Highlight{hl("c", "f", 15, 16), hl("a", "f", 1, 2), hl("b", "g", 7, 11)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var sb strings.Builder
			for _, s := range New().Segments(sample, tt.highlights, "", "") {
				sb.WriteString(s.Text)
			}
			assert.Equal(t, sample, sb.String())
		})
	}
}

func TestSegmentsVisualState(t *testing.T) {
	hs := []types.Highlight{hl("a", "person", 0, 2), hl("b", "title", 3, 5), hl("c", "other", 6, 8)}
	segs := New().Segments(sample, hs, "person", "title")

	states := map[string]VisualState{}
	for _, s := range segs {
		if s.IsHighlight {
			states[s.HighlightID] = s.State
		}
	}
	assert.Equal(t, map[string]VisualState{"a": StateActive, "b": StateHovered, "c": StateNormal}, states)
}

func TestSegmentsOverlapWarns(t *testing.T) {
	var buf bytes.Buffer
	r := New(WithLogger(zerolog.New(&buf)))

	segs := r.Segments(sample, []types.Highlight{hl("a", "f", 0, 6), hl("b", "f", 4, 8)}, "", "")
	require.NotEmpty(t, segs)
	assert.Contains(t, buf.String(), "overlapping highlights")
	assert.Equal(t, "012345", segs[0].Text)
	assert.Equal(t, "4567", segs[1].Text)
}

func TestSegmentsStableTies(t *testing.T) {
	segs := New().Segments(sample, []types.Highlight{hl("first", "f", 2, 4), hl("second", "g", 2, 4)}, "", "")
	var ids []string
	for _, s := range segs {
		if s.IsHighlight {
			ids = append(ids, s.HighlightID)
		}
	}
	assert.Equal(t, []string{"first", "second"}, ids)
}

func TestFieldColor(t *testing.T) {
	tests := []struct {
		fieldID string
		hue     int
	}{
		{"", 0},
		{"A", 65},
		{"f1", 331},
		{"title", 96},
		{"person", 43},
		{"sentiment", 7},
		{"occupation", 133},
		{"organization", 205},
		{"date_of_birth", 104},
		{"a_very_long_field_identifier_name", 276},
	}
	for _, tt := range tests {
		t.Run(tt.fieldID, func(t *testing.T) {
			assert.Equal(t, fmt.Sprintf("hsl(%d, 70%%, 80%%)", tt.hue), FieldColor(tt.fieldID))
		})
	}
}

func TestHTMLOffsetsRoundTrip(t *testing.T) {
	content := "Jameson Li is the CFO of Acme 🚀 Corp."
	hs := []types.Highlight{hl("h1", "person", 0, 10), hl("h2", "org", 25, 29), hl("h3", "org", 30, 32)}
	segs := New().Segments(content, hs, "person", "")
	root := HTML(segs)

	assert.Equal(t, content, offset.TextContent(root))
	for _, h := range hs {
		r, ok := offset.NewRange(root, h.StartOffset, h.EndOffset)
		require.True(t, ok)
		start, end := offset.Offsets(root, r)
		assert.Equal(t, h.StartOffset, start)
		assert.Equal(t, h.EndOffset, end)

		id, ok := HighlightAt(r.StartContainer)
		require.True(t, ok)
		assert.Equal(t, h.ID, id)
	}

	_, ok := HighlightAt(root.FirstChild.NextSibling)
	assert.False(t, ok, "plain text between highlights")
}

func TestWriteHTML(t *testing.T) {
	segs := New().Segments("a <b> c", []types.Highlight{hl("h1", "f", 2, 5)}, "f", "")
	var buf bytes.Buffer
	require.NoError(t, WriteHTML(&buf, segs))

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "<pre>a "))
	assert.Contains(t, out, `data-highlight-id="h1"`)
	assert.Contains(t, out, `data-state="active"`)
	assert.Contains(t, out, "&lt;b&gt;")
}
