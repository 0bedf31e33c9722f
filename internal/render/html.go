// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package render

import (
	"fmt"
	"io"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Attribute names carried by highlight spans.
const (
	AttrHighlightID = "data-highlight-id"
	AttrFieldID     = "data-field-id"
	AttrState       = "data-state"
)

// HTML builds a <pre> element holding the segments in order: plain
// segments become text nodes, highlighted ones become spans. The text under
// the returned node is the concatenation of the segment texts, so offsets
// computed over it match the segment offsets.
func HTML(segments []Segment) *html.Node {
	pre := &html.Node{Type: html.ElementNode, Data: atom.Pre.String(), DataAtom: atom.Pre}
	for _, s := range segments {
		text := &html.Node{Type: html.TextNode, Data: s.Text}
		if !s.IsHighlight {
			pre.AppendChild(text)
			continue
		}
		span := &html.Node{
			Type:     html.ElementNode,
			Data:     atom.Span.String(),
			DataAtom: atom.Span,
			Attr: []html.Attribute{
				{Key: AttrHighlightID, Val: s.HighlightID},
				{Key: AttrFieldID, Val: s.FieldID},
				{Key: AttrState, Val: string(s.State)},
				{Key: "style", Val: style(s)},
			},
		}
		span.AppendChild(text)
		pre.AppendChild(span)
	}
	return pre
}

func style(s Segment) string {
	switch s.State {
	case StateActive:
		return fmt.Sprintf("background-color: %s; opacity: 0.8", s.Color)
	case StateHovered:
		return fmt.Sprintf("background-color: %s; opacity: 0.5", s.Color)
	}
	return "background-color: rgba(200, 200, 200, 0.3); opacity: 0.7"
}

// WriteHTML renders the segments as HTML to w.
func WriteHTML(w io.Writer, segments []Segment) error {
	if err := html.Render(w, HTML(segments)); err != nil {
		return fmt.Errorf("rendering html: %w", err)
	}
	return nil
}

// HighlightAt returns the highlight id of the span that contains n, if any.
func HighlightAt(n *html.Node) (string, bool) {
	for ; n != nil; n = n.Parent {
		if n.Type != html.ElementNode || n.DataAtom != atom.Span {
			continue
		}
		for _, a := range n.Attr {
			if a.Key == AttrHighlightID {
				return a.Val, true
			}
		}
	}
	return "", false
}
