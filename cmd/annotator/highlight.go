// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/evidence-annotator/internal/offset"
	"github.com/pdiddy/evidence-annotator/internal/render"
	"github.com/pdiddy/evidence-annotator/internal/selection"
)

var highlightCmd = &cobra.Command{
	Use:   "highlight",
	Short: "Record, remove, and look up evidence highlights",
}

var highlightAddCmd = &cobra.Command{
	Use:   "add <document-id> <field-id> (<start> <end> | --text <text>)",
	Short: "Highlight a span of document text as evidence for a field",
	Long: `Add selects [start, end) of the document text, counted in UTF-16 code
units, and records it on the first knowledge unit of the document that has
the field. With --text the first occurrence of the text is selected
instead (use --occurrence for later ones).

The selection is rejected when it overlaps any existing highlight of the
document.`,
	Args: cobra.RangeArgs(2, 4),
	RunE: runHighlightAdd,
}

func runHighlightAdd(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	docID, fieldID := args[0], args[1]
	s, err := openSession(ctx, docID)
	if err != nil {
		return err
	}
	defer s.close()

	doc, _ := s.engine.Document(docID)
	start, end, err := selectionBounds(cmd, doc.Content, args[2:])
	if err != nil {
		return err
	}

	// Select over the rendered view, the way an interactive client does.
	view := render.HTML(render.New(render.WithLogger(logger)).
		Segments(doc.Content, s.engine.DocumentHighlights(docID), "", ""))
	rng, ok := offset.NewRange(view, start, end)
	if !ok {
		return fmt.Errorf("offsets [%d,%d) are outside the document (length %d)", start, end, offset.UTF16Len(doc.Content))
	}

	fired := make(chan selection.Result, 1)
	ctrl := selection.New(s.engine,
		selection.WithLogger(logger),
		selection.WithDebounce(s.cfg.Selection.Debounce),
		selection.WithResultHandler(func(r selection.Result) { fired <- r }))
	defer ctrl.Stop()

	s.engine.SetActiveHighlightField(fieldID)
	ctrl.SelectionEnd(&selection.TextSelection{Doc: view, Sel: rng})
	res, flushed := ctrl.Flush()
	if !flushed {
		res = <-fired
	}

	switch res.Outcome {
	case selection.Committed:
	case selection.Overlap:
		return errors.New("selection overlaps an existing highlight")
	case selection.StaleField:
		return fmt.Errorf("no knowledge unit of %s has field %s", docID, fieldID)
	default:
		return fmt.Errorf("selection not recorded: %s", res.Outcome)
	}

	h := res.Highlight
	if err := s.engine.Sync(ctx, h.KUID); err != nil {
		return err
	}
	fmt.Printf("%s  %s/%s  [%d,%d)  %q\n", h.ID, h.KUID, h.FieldID, h.StartOffset, h.EndOffset, h.Text)
	return nil
}

// selectionBounds reads [start, end) from positional offsets or locates
// --text in content.
func selectionBounds(cmd *cobra.Command, content string, args []string) (int, int, error) {
	text, _ := cmd.Flags().GetString("text")
	switch {
	case text != "" && len(args) == 0:
		occurrence, _ := cmd.Flags().GetInt("occurrence")
		return findText(content, text, occurrence)
	case text == "" && len(args) == 2:
		start, err := strconv.Atoi(args[0])
		if err != nil {
			return 0, 0, fmt.Errorf("start offset: %w", err)
		}
		end, err := strconv.Atoi(args[1])
		if err != nil {
			return 0, 0, fmt.Errorf("end offset: %w", err)
		}
		return start, end, nil
	}
	return 0, 0, errors.New("give either <start> <end> or --text")
}

// findText returns the UTF-16 span of the n-th (1-based) occurrence of
// text in content.
func findText(content, text string, n int) (int, int, error) {
	if n < 1 {
		n = 1
	}
	from := 0
	for i := 1; ; i++ {
		idx := strings.Index(content[from:], text)
		if idx < 0 {
			return 0, 0, fmt.Errorf("occurrence %d of %q not found", n, text)
		}
		byteStart := from + idx
		if i == n {
			start := offset.UTF16Len(content[:byteStart])
			return start, start + offset.UTF16Len(text), nil
		}
		from = byteStart + len(text)
	}
}

var highlightRemoveCmd = &cobra.Command{
	Use:   "remove <highlight-id>",
	Short: "Remove a highlight",
	Args:  cobra.ExactArgs(1),
	RunE:  runHighlightRemove,
}

func runHighlightRemove(cmd *cobra.Command, args []string) error {
	s, err := openHighlightSession(cmd, args[0])
	if err != nil {
		return err
	}
	defer s.close()

	loc, _ := s.engine.FindFieldByHighlightID(args[0])
	s.engine.RemoveHighlight(args[0])
	return s.engine.Sync(cmd.Context(), loc.KUID)
}

var highlightFindCmd = &cobra.Command{
	Use:   "find <highlight-id>",
	Short: "Show the knowledge unit and field that own a highlight",
	Args:  cobra.ExactArgs(1),
	RunE:  runHighlightFind,
}

func runHighlightFind(cmd *cobra.Command, args []string) error {
	s, err := openHighlightSession(cmd, args[0])
	if err != nil {
		return err
	}
	defer s.close()

	ctrl := selection.New(s.engine, selection.WithLogger(logger))
	loc, _ := ctrl.ClickHighlight(args[0])
	if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
		return writeJSON(loc)
	}
	h := loc.Highlight
	fmt.Printf("%s  %s/%s  [%d,%d)  %q\n", h.ID, loc.KUID, loc.FieldID, h.StartOffset, h.EndOffset, h.Text)
	fmt.Printf("active field: %s\n", s.engine.ActiveHighlightFieldID())
	return nil
}

func init() {
	highlightAddCmd.Flags().String("text", "", "highlight an occurrence of this text instead of offsets")
	highlightAddCmd.Flags().Int("occurrence", 1, "which occurrence of --text to highlight")

	for _, c := range []*cobra.Command{highlightRemoveCmd, highlightFindCmd} {
		c.Flags().String("document", "", "document holding the highlight (skips the lookup)")
	}
	highlightFindCmd.Flags().Bool("json", false, "output as JSON")

	highlightCmd.AddCommand(highlightAddCmd)
	highlightCmd.AddCommand(highlightRemoveCmd)
	highlightCmd.AddCommand(highlightFindCmd)

	rootCmd.AddCommand(highlightCmd)
}
