// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package highlight

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/evidence-annotator/pkg/types"
)

func sequentialIDs() Option {
	n := 0
	return WithIDGenerator(func() string {
		n++
		return fmt.Sprintf("h%d", n)
	})
}

func span(ku, field string, start, end int) types.Highlight {
	return types.Highlight{KUID: ku, FieldID: field, StartOffset: start, EndOffset: end}
}

func TestStoreAddAssignsIDsAndIndexes(t *testing.T) {
	s := NewStore(sequentialIDs())

	a := s.Add(span("ku1", "person", 0, 10))
	b := s.Add(span("ku1", "person", 20, 25))
	c := s.Add(span("ku1", "title", 30, 33))

	assert.Equal(t, "h1", a.ID)
	assert.Equal(t, "h2", b.ID)
	assert.Equal(t, "h3", c.ID)
	assert.Equal(t, 3, s.Len())

	got := s.ForField("ku1", "person")
	require.Len(t, got, 2)
	assert.Equal(t, []string{"h1", "h2"}, []string{got[0].ID, got[1].ID})

	loc, ok := s.Find("h3")
	require.True(t, ok)
	assert.Equal(t, "ku1", loc.KUID)
	assert.Equal(t, "title", loc.FieldID)
	assert.Equal(t, 30, loc.Highlight.StartOffset)
}

func TestStoreAddUsesUUIDByDefault(t *testing.T) {
	s := NewStore()
	a := s.Add(span("ku1", "f", 0, 1))
	b := s.Add(span("ku1", "f", 1, 2))
	assert.Len(t, a.ID, 36)
	assert.NotEqual(t, a.ID, b.ID)
}

func TestStoreRemoveByIDOnlyIsIdempotent(t *testing.T) {
	s := NewStore(sequentialIDs())
	s.Add(span("ku1", "person", 0, 10))
	s.Add(span("ku2", "person", 12, 15))

	removed, ok := s.Remove("h1")
	require.True(t, ok)
	assert.Equal(t, "ku1", removed.KUID)
	assert.Equal(t, 1, s.Len())
	assert.Empty(t, s.ForField("ku1", "person"))

	_, ok = s.Remove("h1")
	assert.False(t, ok)
	assert.Equal(t, 1, s.Len())

	_, ok = s.Find("h1")
	assert.False(t, ok)
}

func TestStoreRemoveKeepsSiblingOrder(t *testing.T) {
	s := NewStore(sequentialIDs())
	for i := 0; i < 4; i++ {
		s.Add(span("ku1", "f", i*10, i*10+5))
	}
	s.Remove("h2")

	var ids []string
	for _, h := range s.ForField("ku1", "f") {
		ids = append(ids, h.ID)
	}
	assert.Equal(t, []string{"h1", "h3", "h4"}, ids)
}

func TestStoreRemoveFieldAndUnit(t *testing.T) {
	s := NewStore(sequentialIDs())
	s.Add(span("ku1", "a", 0, 1))
	s.Add(span("ku1", "a", 2, 3))
	s.Add(span("ku1", "b", 4, 5))
	s.Add(span("ku2", "a", 6, 7))

	assert.Equal(t, 2, s.RemoveField("ku1", "a"))
	assert.Equal(t, 0, s.RemoveField("ku1", "a"))
	assert.Equal(t, 2, s.Len())

	assert.Equal(t, 1, s.RemoveUnit("ku1"))
	assert.Equal(t, 1, s.Len())
	_, ok := s.Get("h4")
	assert.True(t, ok)
}

func TestStoreRestoreKeepsID(t *testing.T) {
	s := NewStore(sequentialIDs())
	h := span("ku1", "a", 0, 3)
	h.ID = "persisted"
	s.Restore(h)

	got, ok := s.Get("persisted")
	require.True(t, ok)
	assert.Equal(t, 3, got.EndOffset)

	h.EndOffset = 4
	s.Restore(h)
	assert.Equal(t, 1, s.Len())
	assert.Len(t, s.ForField("ku1", "a"), 1)
	got, _ = s.Get("persisted")
	assert.Equal(t, 4, got.EndOffset)
}

func TestStoreForUnitFollowsFieldOrder(t *testing.T) {
	s := NewStore(sequentialIDs())
	s.Add(span("ku1", "b", 5, 6))
	s.Add(span("ku1", "a", 0, 1))

	got := s.ForUnit("ku1", []string{"a", "b"})
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].FieldID)
	assert.Equal(t, "b", got[1].FieldID)
}

func TestSpanOverlaps(t *testing.T) {
	tests := []struct {
		name string
		a, b Span
		want bool
	}{
		{"contained", Span{3, 8}, Span{5, 10}, true},
		{"identical", Span{0, 5}, Span{0, 5}, true},
		{"touching end", Span{0, 5}, Span{5, 10}, false},
		{"disjoint", Span{0, 5}, Span{10, 15}, false},
		{"enclosing", Span{0, 20}, Span{5, 6}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.a.Overlaps(tt.b))
			assert.Equal(t, tt.want, tt.b.Overlaps(tt.a))
		})
	}
}

func TestFindOverlap(t *testing.T) {
	existing := []types.Highlight{
		{ID: "x", StartOffset: 0, EndOffset: 2},
		{ID: "y", StartOffset: 5, EndOffset: 10},
	}
	h, ok := FindOverlap(Span{3, 8}, existing)
	require.True(t, ok)
	assert.Equal(t, "y", h.ID)

	_, ok = FindOverlap(Span{2, 5}, existing)
	assert.False(t, ok)
}

func TestSortByStartIsStable(t *testing.T) {
	in := []types.Highlight{
		{ID: "c", StartOffset: 10},
		{ID: "a", StartOffset: 0},
		{ID: "b1", StartOffset: 5},
		{ID: "b2", StartOffset: 5},
	}
	out := SortByStart(in)
	var ids []string
	for _, h := range out {
		ids = append(ids, h.ID)
	}
	assert.Equal(t, []string{"a", "b1", "b2", "c"}, ids)
	assert.Equal(t, "c", in[0].ID, "input must not be reordered")
}

func TestOverlappingPairs(t *testing.T) {
	sorted := []types.Highlight{
		{ID: "a", StartOffset: 0, EndOffset: 6},
		{ID: "b", StartOffset: 5, EndOffset: 8},
		{ID: "c", StartOffset: 8, EndOffset: 9},
	}
	pairs := OverlappingPairs(sorted)
	require.Len(t, pairs, 1)
	assert.Equal(t, "a", pairs[0][0].ID)
	assert.Equal(t, "b", pairs[0][1].ID)
}
