// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package selection

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"

	"github.com/pdiddy/evidence-annotator/internal/annotation"
	"github.com/pdiddy/evidence-annotator/internal/offset"
	"github.com/pdiddy/evidence-annotator/internal/render"
	"github.com/pdiddy/evidence-annotator/pkg/types"
)

const content = "Jameson Li is the CFO of Acme Corp."

func setup(t *testing.T) (*annotation.Engine, string) {
	t.Helper()
	e := annotation.New()
	e.AddDocuments(types.Document{ID: "doc1", Title: "Memo", Content: content})
	e.SetCatalog([]types.KnowledgeUnitSchema{{
		FrameID:    "person-role",
		FrameLabel: "Person Role",
		Fields: []types.SchemaField{
			{ID: "person", Name: "Person", Type: types.ListType([]string{"LIST_PERSON"}), Required: true, Multiple: true},
			{ID: "role", Name: "Role", Type: types.ScalarType("string"), Required: true},
			{ID: "org", Name: "Organization", Type: types.ScalarType("string")},
		},
	}}, nil)
	require.True(t, e.SelectDocument("doc1"))
	ku, err := e.CreateKU("person-role")
	require.NoError(t, err)
	return e, ku.ID
}

// view renders the current document state the way a viewer would show it.
func view(e *annotation.Engine) *html.Node {
	doc, _ := e.Document(e.SelectedDocumentID())
	segs := render.New().Segments(doc.Content, e.DocumentHighlights(doc.ID), e.ActiveHighlightFieldID(), "")
	return render.HTML(segs)
}

func selectRange(t *testing.T, root *html.Node, start, end int) *TextSelection {
	t.Helper()
	r, ok := offset.NewRange(root, start, end)
	require.True(t, ok)
	return &TextSelection{Doc: root, Sel: r}
}

func TestCommitPersonHighlight(t *testing.T) {
	e, kuID := setup(t)
	c := New(e)
	e.SetActiveHighlightField("person")

	sel := selectRange(t, view(e), 0, 10)
	res := c.Commit(sel)

	require.Equal(t, Committed, res.Outcome)
	assert.Equal(t, "Jameson Li", res.Highlight.Text)
	assert.Equal(t, kuID, res.Highlight.KUID)
	assert.True(t, sel.Cleared)

	ku, _ := e.KnowledgeUnit(kuID)
	f, _ := ku.Field("person")
	require.Len(t, f.Highlights, 1)
	assert.Equal(t, "Jameson Li", f.Highlights[0].Text)
}

func TestCommitRejectsOverlap(t *testing.T) {
	e, kuID := setup(t)
	c := New(e)
	_, ok := e.AddHighlight(types.Highlight{KUID: kuID, FieldID: "role", StartOffset: 5, EndOffset: 10})
	require.True(t, ok)
	e.SetActiveHighlightField("person")

	sel := selectRange(t, view(e), 3, 8)
	res := c.Commit(sel)

	assert.Equal(t, Overlap, res.Outcome)
	assert.True(t, sel.Cleared)
	assert.Len(t, e.DocumentHighlights("doc1"), 1)
}

func TestCommitOutcomes(t *testing.T) {
	t.Run("not armed", func(t *testing.T) {
		e, _ := setup(t)
		res := New(e).Commit(selectRange(t, view(e), 0, 3))
		assert.Equal(t, NotArmed, res.Outcome)
	})

	t.Run("collapsed", func(t *testing.T) {
		e, _ := setup(t)
		e.SetActiveHighlightField("person")
		res := New(e).Commit(selectRange(t, view(e), 4, 4))
		assert.Equal(t, Collapsed, res.Outcome)
	})

	t.Run("stale field", func(t *testing.T) {
		e, _ := setup(t)
		e.SetActiveHighlightField("org")
		sel := selectRange(t, view(e), 25, 29)
		res := New(e).Commit(sel)
		assert.Equal(t, StaleField, res.Outcome)
		assert.False(t, sel.Cleared)
		assert.Empty(t, e.DocumentHighlights("doc1"))
	})

	t.Run("touching spans are not overlap", func(t *testing.T) {
		e, kuID := setup(t)
		_, ok := e.AddHighlight(types.Highlight{KUID: kuID, FieldID: "person", StartOffset: 0, EndOffset: 10})
		require.True(t, ok)
		e.SetActiveHighlightField("role")
		res := New(e).Commit(selectRange(t, view(e), 10, 21))
		require.Equal(t, Committed, res.Outcome)
		assert.Equal(t, " is the CFO", res.Highlight.Text)
	})

	t.Run("backwards selection", func(t *testing.T) {
		e, _ := setup(t)
		e.SetActiveHighlightField("role")
		root := view(e)
		fwd := selectRange(t, root, 18, 21)
		back := &TextSelection{Doc: root, Sel: offset.Range{
			StartContainer: fwd.Sel.EndContainer, StartOffset: fwd.Sel.EndOffset,
			EndContainer: fwd.Sel.StartContainer, EndOffset: fwd.Sel.StartOffset,
		}}
		res := New(e).Commit(back)
		require.Equal(t, Committed, res.Outcome)
		assert.Equal(t, "CFO", res.Highlight.Text)
	})
}

func TestDebounceLastSelectionWins(t *testing.T) {
	e, _ := setup(t)
	results := make(chan Result, 4)
	c := New(e, WithDebounce(20*time.Millisecond), WithResultHandler(func(r Result) { results <- r }))
	e.SetActiveHighlightField("role")
	root := view(e)

	assert.True(t, c.SelectionEnd(selectRange(t, root, 18, 19)))
	assert.True(t, c.SelectionEnd(selectRange(t, root, 18, 20)))
	assert.True(t, c.SelectionEnd(selectRange(t, root, 18, 21)))

	select {
	case res := <-results:
		require.Equal(t, Committed, res.Outcome)
		assert.Equal(t, "CFO", res.Highlight.Text)
	case <-time.After(2 * time.Second):
		t.Fatal("debounced selection was not committed")
	}

	select {
	case res := <-results:
		t.Fatalf("unexpected second commit: %v", res.Outcome)
	case <-time.After(100 * time.Millisecond):
	}
	assert.Len(t, e.DocumentHighlights("doc1"), 1)
}

func TestFlushAndStop(t *testing.T) {
	e, _ := setup(t)
	c := New(e, WithDebounce(time.Hour))

	assert.False(t, c.SelectionEnd(selectRange(t, view(e), 0, 3)), "idle controller ignores selections")

	e.SetActiveHighlightField("person")
	require.True(t, c.SelectionEnd(selectRange(t, view(e), 0, 7)))
	res, ok := c.Flush()
	require.True(t, ok)
	assert.Equal(t, Committed, res.Outcome)
	assert.Equal(t, "Jameson", res.Highlight.Text)

	_, ok = c.Flush()
	assert.False(t, ok)

	require.True(t, c.SelectionEnd(selectRange(t, view(e), 25, 29)))
	c.Stop()
	_, ok = c.Flush()
	assert.False(t, ok)
	assert.Len(t, e.DocumentHighlights("doc1"), 1)
}

func TestClickHighlightAndDoubleClick(t *testing.T) {
	e, kuID := setup(t)
	c := New(e)
	h, ok := e.AddHighlight(types.Highlight{KUID: kuID, FieldID: "role", StartOffset: 18, EndOffset: 21})
	require.True(t, ok)

	root := view(e)
	inHighlight, _, ok := offset.Locate(root, 19)
	require.True(t, ok)
	plain, _, ok := offset.Locate(root, 2)
	require.True(t, ok)

	assert.False(t, c.SuppressDoubleClick(inHighlight), "idle")

	loc, ok := c.ClickHighlight(h.ID)
	require.True(t, ok)
	assert.Equal(t, kuID, loc.KUID)
	assert.Equal(t, "role", e.ActiveHighlightFieldID())

	assert.True(t, c.SuppressDoubleClick(inHighlight))
	assert.False(t, c.SuppressDoubleClick(plain))

	_, ok = c.ClickHighlight("missing")
	assert.False(t, ok)
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "overlap", Overlap.String())
	assert.Equal(t, "unknown", Outcome(99).String())
}
