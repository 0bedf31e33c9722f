// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package selection turns text selections on a rendered document into
// highlights on the active field.
//
// The controller is idle while no field is armed and armed while the engine
// has an active highlight field. Selection-end events are debounced: only
// the last selection of a quiet window is committed.
package selection

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/net/html"

	"github.com/pdiddy/evidence-annotator/internal/highlight"
	"github.com/pdiddy/evidence-annotator/internal/offset"
	"github.com/pdiddy/evidence-annotator/internal/render"
	"github.com/pdiddy/evidence-annotator/pkg/types"
)

// DefaultDebounce is the quiet window applied when none is configured.
const DefaultDebounce = 300 * time.Millisecond

// Engine is the part of the annotation engine the controller drives.
type Engine interface {
	SelectedDocumentID() string
	ActiveHighlightFieldID() string
	SetActiveHighlightField(fieldID string)
	Document(id string) (types.Document, bool)
	DocumentHighlights(documentID string) []types.Highlight
	UnitForField(documentID, fieldID string) (string, bool)
	AddHighlight(h types.Highlight) (types.Highlight, bool)
	FindFieldByHighlightID(highlightID string) (highlight.Location, bool)
}

// Selection is a user text selection over a rendered document.
type Selection interface {
	// Root is the rendered document the selection was made in.
	Root() *html.Node
	// Range returns the selected range.
	Range() offset.Range
	// Clear removes the visual selection.
	Clear()
}

// TextSelection is a Selection held in memory.
type TextSelection struct {
	Doc     *html.Node
	Sel     offset.Range
	Cleared bool
}

func (s *TextSelection) Root() *html.Node    { return s.Doc }
func (s *TextSelection) Range() offset.Range { return s.Sel }
func (s *TextSelection) Clear()              { s.Cleared = true }

// Outcome reports what a committed selection did.
type Outcome int

const (
	Committed Outcome = iota
	NotArmed
	NoDocument
	Collapsed
	Overlap
	StaleField
	OutOfRange
)

func (o Outcome) String() string {
	switch o {
	case Committed:
		return "committed"
	case NotArmed:
		return "not armed"
	case NoDocument:
		return "no document"
	case Collapsed:
		return "collapsed"
	case Overlap:
		return "overlap"
	case StaleField:
		return "stale field"
	case OutOfRange:
		return "out of range"
	}
	return "unknown"
}

// Result is the outcome of one commit. Highlight is set only when Outcome
// is Committed.
type Result struct {
	Outcome   Outcome
	Highlight types.Highlight
}

// Controller debounces selection-end events and commits highlights.
type Controller struct {
	engine   Engine
	log      zerolog.Logger
	debounce time.Duration
	onResult func(Result)

	mu      sync.Mutex
	pending Selection
	timer   *time.Timer
	gen     uint64
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the controller logger.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Controller) { c.log = log }
}

// WithDebounce sets the quiet window. Zero or negative values fall back to
// DefaultDebounce.
func WithDebounce(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.debounce = d
		}
	}
}

// WithResultHandler registers fn to receive the result of every debounced
// commit.
func WithResultHandler(fn func(Result)) Option {
	return func(c *Controller) { c.onResult = fn }
}

// New returns a controller driving engine.
func New(engine Engine, opts ...Option) *Controller {
	c := &Controller{
		engine:   engine,
		log:      zerolog.Nop(),
		debounce: DefaultDebounce,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Armed reports whether a field is active to receive highlights.
func (c *Controller) Armed() bool {
	return c.engine.ActiveHighlightFieldID() != ""
}

// SelectionEnd records sel as the latest selection and restarts the quiet
// window. Any earlier pending selection is dropped. Events while idle are
// ignored and reported as false.
func (c *Controller) SelectionEnd(sel Selection) bool {
	if !c.Armed() {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending = sel
	if c.timer != nil {
		c.timer.Stop()
	}
	c.gen++
	gen := c.gen
	c.timer = time.AfterFunc(c.debounce, func() { c.fire(gen) })
	return true
}

// fire commits the pending selection unless a newer event restarted the
// window after this timer expired.
func (c *Controller) fire(gen uint64) {
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	sel := c.pending
	c.pending, c.timer = nil, nil
	c.mu.Unlock()
	if sel == nil {
		return
	}
	res := c.Commit(sel)
	if c.onResult != nil {
		c.onResult(res)
	}
}

func (c *Controller) take() Selection {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	sel := c.pending
	c.pending = nil
	return sel
}

// Flush commits the pending selection now, skipping the rest of the quiet
// window. It reports false when nothing was pending.
func (c *Controller) Flush() (Result, bool) {
	sel := c.take()
	if sel == nil {
		return Result{}, false
	}
	return c.Commit(sel), true
}

// Stop drops any pending selection.
func (c *Controller) Stop() {
	c.take()
}

// Commit turns sel into a highlight on the active field without waiting.
//
// A selection overlapping any highlight of the document is cleared and
// dropped. When no unit of the document owns the active field the selection
// is dropped silently. On success the selection is cleared.
func (c *Controller) Commit(sel Selection) Result {
	fieldID := c.engine.ActiveHighlightFieldID()
	if fieldID == "" {
		return Result{Outcome: NotArmed}
	}
	docID := c.engine.SelectedDocumentID()
	if _, ok := c.engine.Document(docID); !ok {
		return Result{Outcome: NoDocument}
	}

	start, end := offset.Offsets(sel.Root(), sel.Range())
	if end < start {
		start, end = end, start
	}
	span := highlight.Span{Start: start, End: end}
	if span.Empty() {
		return Result{Outcome: Collapsed}
	}

	if h, ok := highlight.FindOverlap(span, c.engine.DocumentHighlights(docID)); ok {
		c.log.Debug().Int("start", start).Int("end", end).Str("existing", h.ID).Msg("selection overlaps highlight")
		sel.Clear()
		return Result{Outcome: Overlap}
	}

	kuID, ok := c.engine.UnitForField(docID, fieldID)
	if !ok {
		c.log.Debug().Str("field", fieldID).Str("document", docID).Msg("active field has no unit")
		return Result{Outcome: StaleField}
	}

	h, ok := c.engine.AddHighlight(types.Highlight{
		StartOffset: start,
		EndOffset:   end,
		FieldID:     fieldID,
		KUID:        kuID,
	})
	if !ok {
		return Result{Outcome: OutOfRange}
	}
	sel.Clear()
	c.log.Debug().Str("highlight", h.ID).Str("field", fieldID).Int("start", start).Int("end", end).
		Msg("selection committed")
	return Result{Outcome: Committed, Highlight: h}
}

// ClickHighlight activates the field that owns the clicked highlight.
func (c *Controller) ClickHighlight(highlightID string) (highlight.Location, bool) {
	loc, ok := c.engine.FindFieldByHighlightID(highlightID)
	if !ok {
		return highlight.Location{}, false
	}
	c.engine.SetActiveHighlightField(loc.FieldID)
	return loc, true
}

// SuppressDoubleClick reports whether a double click on target should be
// swallowed: the controller is armed and target lies in a highlight span.
func (c *Controller) SuppressDoubleClick(target *html.Node) bool {
	if !c.Armed() {
		return false
	}
	_, ok := render.HighlightAt(target)
	return ok
}
