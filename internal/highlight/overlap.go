// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package highlight

import (
	"sort"

	"github.com/pdiddy/evidence-annotator/pkg/types"
)

// Span is a half-open [Start, End) range of UTF-16 offsets.
type Span struct {
	Start int
	End   int
}

// SpanOf returns the span covered by h.
func SpanOf(h types.Highlight) Span {
	return Span{Start: h.StartOffset, End: h.EndOffset}
}

// Empty reports whether the span covers no characters.
func (s Span) Empty() bool {
	return s.End <= s.Start
}

// Overlaps reports whether two half-open spans share at least one offset.
// Spans that only touch at an endpoint do not overlap.
func (s Span) Overlaps(o Span) bool {
	return s.Start < o.End && o.Start < s.End
}

// FindOverlap returns the first highlight whose span overlaps candidate.
func FindOverlap(candidate Span, highlights []types.Highlight) (types.Highlight, bool) {
	for _, h := range highlights {
		if candidate.Overlaps(SpanOf(h)) {
			return h, true
		}
	}
	return types.Highlight{}, false
}

// SortByStart returns a copy of highlights ordered by StartOffset. The sort
// is stable, so ties keep their input order.
func SortByStart(highlights []types.Highlight) []types.Highlight {
	out := append([]types.Highlight(nil), highlights...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].StartOffset < out[j].StartOffset
	})
	return out
}

// OverlappingPairs returns each adjacent pair in start order where the
// earlier highlight ends after the later one starts.
func OverlappingPairs(sorted []types.Highlight) [][2]types.Highlight {
	var out [][2]types.Highlight
	for i := 0; i+1 < len(sorted); i++ {
		if sorted[i].EndOffset > sorted[i+1].StartOffset {
			out = append(out, [2]types.Highlight{sorted[i], sorted[i+1]})
		}
	}
	return out
}
