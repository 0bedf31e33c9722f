// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/evidence-annotator/internal/render"
	"github.com/pdiddy/evidence-annotator/internal/validate"
)

// --- render subcommand ---

var renderCmd = &cobra.Command{
	Use:   "render <document-id>",
	Short: "Render a document with its highlights",
	Long: `Render splits the document text into plain and highlighted segments.
The html format emits a <pre> element with one span per highlight, colored
by field; text marks highlights inline as [[text]]{field}; json prints the
segments.`,
	Args: cobra.ExactArgs(1),
	RunE: runRender,
}

func runRender(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	defer s.close()

	active, _ := cmd.Flags().GetString("active")
	hovered, _ := cmd.Flags().GetString("hovered")
	doc, _ := s.engine.Document(args[0])
	segs := render.New(render.WithLogger(logger)).
		Segments(doc.Content, s.engine.DocumentHighlights(doc.ID), active, hovered)

	format, _ := cmd.Flags().GetString("format")
	switch format {
	case "html", "":
		if err := render.WriteHTML(os.Stdout, segs); err != nil {
			return err
		}
		fmt.Println()
	case "text":
		var b strings.Builder
		for _, seg := range segs {
			if seg.IsHighlight {
				fmt.Fprintf(&b, "[[%s]]{%s}", seg.Text, seg.FieldID)
				continue
			}
			b.WriteString(seg.Text)
		}
		fmt.Println(b.String())
	case "json":
		return writeJSON(segs)
	default:
		return fmt.Errorf("unsupported format %q: use html, text, or json", format)
	}
	return nil
}

// --- validate subcommand ---

var validateCmd = &cobra.Command{
	Use:   "validate <document-id>",
	Short: "Validate every knowledge unit of a document",
	Long: `Validate checks each knowledge unit against its schema: required fields
must have a value, values must match their field type, and a field with a
value must have at least one evidence highlight. Exits non-zero when any
unit is invalid.`,
	Args: cobra.ExactArgs(1),
	RunE: runValidate,
}

var errInvalid = errors.New("document has invalid knowledge units")

func runValidate(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	defer s.close()

	report := s.engine.ValidateDocument(args[0])
	if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
		if err := writeJSON(report); err != nil {
			return err
		}
	} else {
		printReport(report)
	}
	if !report.IsValid {
		return errInvalid
	}
	return nil
}

func printReport(r validate.Report) {
	if r.IsValid {
		fmt.Println("All knowledge units are valid.")
		return
	}
	ids := make([]string, 0, len(r.Errors))
	for id := range r.Errors {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		u := r.Errors[id]
		fmt.Printf("%s  %s\n", u.KUID, u.KUType)
		fields := make([]string, 0, len(u.FieldErrors))
		for f := range u.FieldErrors {
			fields = append(fields, f)
		}
		sort.Strings(fields)
		for _, f := range fields {
			for _, msg := range u.FieldErrors[f] {
				fmt.Printf("  %-16s  %s\n", f, msg)
			}
		}
	}
	fmt.Printf("\n%d invalid knowledge unit(s)\n", len(ids))
}

// --- export subcommand ---

var exportCmd = &cobra.Command{
	Use:   "export [document-id]",
	Short: "Export annotations as JSON or YAML",
	Long: `With a document id, export validates the document's knowledge units and
prints its export artifact. Invalid units block the export unless --force
is given. With --remote the artifact is fetched from the backend as is.

Without a document id, every annotated document in the local store is
written to <store.dir>/export/export.yaml or export.json.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runExport,
}

func runExport(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")
	if format != "json" && format != "yaml" {
		return fmt.Errorf("unsupported format %q: use yaml or json", format)
	}
	if len(args) == 0 {
		return exportStore(cmd, format)
	}

	ctx := cmd.Context()
	docID := args[0]
	s, err := openSession(ctx, docID)
	if err != nil {
		return err
	}
	defer s.close()

	if remote, _ := cmd.Flags().GetBool("remote"); remote {
		raw, err := s.backend.ExportAnnotations(ctx, docID)
		if err != nil {
			return err
		}
		fmt.Println(string(raw))
		return nil
	}

	report := s.engine.ValidateDocument(docID)
	if force, _ := cmd.Flags().GetBool("force"); !report.IsValid && !force {
		printReport(report)
		return fmt.Errorf("%w: fix them or pass --force", errInvalid)
	}

	x, _ := s.engine.Export(docID)
	if format == "yaml" {
		data, err := yaml.Marshal(x)
		if err != nil {
			return fmt.Errorf("marshaling YAML: %w", err)
		}
		_, err = os.Stdout.Write(data)
		return err
	}
	return writeJSON(x)
}

func exportStore(cmd *cobra.Command, format string) error {
	cfg := annotatorConfig()
	if cfg.API.URL != "" {
		return errors.New("exporting every document needs the local store; give a document id")
	}
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	var path string
	if format == "json" {
		path, err = st.ExportJSON(cmd.Context())
	} else {
		path, err = st.ExportYAML(cmd.Context())
	}
	if err != nil {
		return err
	}
	fmt.Printf("Exported to %s\n", path)
	return nil
}

func init() {
	renderCmd.Flags().String("format", "html", "output format: html, text, or json")
	renderCmd.Flags().String("active", "", "field id to show as active")
	renderCmd.Flags().String("hovered", "", "field id to show as hovered")

	validateCmd.Flags().Bool("json", false, "output the report as JSON")

	exportCmd.Flags().String("format", "json", "export format: json or yaml")
	exportCmd.Flags().Bool("force", false, "export even when knowledge units are invalid")
	exportCmd.Flags().Bool("remote", false, "fetch the export produced by the backend")

	rootCmd.AddCommand(renderCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(exportCmd)
}
