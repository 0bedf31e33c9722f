// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package offset maps between points in a rendered document tree and
// absolute character offsets into the document's plain text.
//
// Every function walks text nodes depth-first in document order. The
// renderer builds its tree in the same order, so offsets computed here agree
// with the substrings it renders.
package offset

import (
	"golang.org/x/net/html"
)

// Range is a selection between two points of a rendered tree. Offsets
// within a container are UTF-16 code units.
type Range struct {
	StartContainer *html.Node
	StartOffset    int
	EndContainer   *html.Node
	EndOffset      int
}

// Collapsed reports whether the range selects nothing.
func (r Range) Collapsed() bool {
	return r.StartContainer == r.EndContainer && r.StartOffset == r.EndOffset
}

// walkText calls fn for each text node under root (root excluded) in
// document order until fn returns false.
func walkText(root *html.Node, fn func(*html.Node) bool) bool {
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			if !fn(c) {
				return false
			}
			continue
		}
		if !walkText(c, fn) {
			return false
		}
	}
	return true
}

// TextOffset returns the absolute offset of the point offsetInNode within
// target, counted over all text under root.
//
// A root without children yields 0. When target is not a text node under
// root the walk falls through and the total text length is returned, which
// callers treat as the end of content.
// TODO: decide whether an unmatched target should be reported to the caller
// instead of mapping to the end of content.
func TextOffset(root, target *html.Node, offsetInNode int) int {
	if root == nil || root.FirstChild == nil {
		return 0
	}
	total := 0
	walkText(root, func(n *html.Node) bool {
		if n == target {
			total += offsetInNode
			return false
		}
		total += UTF16Len(n.Data)
		return true
	})
	return total
}

// Offsets maps r to absolute [start, end) offsets within root.
func Offsets(root *html.Node, r Range) (start, end int) {
	start = TextOffset(root, r.StartContainer, r.StartOffset)
	end = TextOffset(root, r.EndContainer, r.EndOffset)
	return start, end
}

// TextContent concatenates all text under root in walk order.
func TextContent(root *html.Node) string {
	if root == nil {
		return ""
	}
	var buf []byte
	walkText(root, func(n *html.Node) bool {
		buf = append(buf, n.Data...)
		return true
	})
	return string(buf)
}

// Locate finds the text node and in-node offset for an absolute offset. A
// boundary between two nodes resolves to the start of the later node; the
// end of content resolves to the end of the last text node.
func Locate(root *html.Node, abs int) (*html.Node, int, bool) {
	if root == nil || abs < 0 {
		return nil, 0, false
	}
	var (
		last     *html.Node
		lastLen  int
		pos      int
		found    *html.Node
		foundOff int
	)
	walkText(root, func(n *html.Node) bool {
		l := UTF16Len(n.Data)
		if abs < pos+l {
			found, foundOff = n, abs-pos
			return false
		}
		pos += l
		last, lastLen = n, l
		return true
	})
	if found != nil {
		return found, foundOff, true
	}
	if last != nil && abs == pos {
		return last, lastLen, true
	}
	return nil, 0, false
}

// NewRange builds a Range covering [start, end) of the text under root.
func NewRange(root *html.Node, start, end int) (Range, bool) {
	sn, so, ok := Locate(root, start)
	if !ok {
		return Range{}, false
	}
	en, eo, ok := Locate(root, end)
	if !ok {
		return Range{}, false
	}
	return Range{StartContainer: sn, StartOffset: so, EndContainer: en, EndOffset: eo}, true
}
