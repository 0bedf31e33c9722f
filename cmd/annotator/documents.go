// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/evidence-annotator/internal/offset"
	"github.com/pdiddy/evidence-annotator/pkg/types"
)

var documentsCmd = &cobra.Command{
	Use:     "documents",
	Aliases: []string{"docs"},
	Short:   "Import, list, search, and show documents",
}

// --- import subcommand ---

var documentsImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Import document files into the local store",
	Long: `Import reads files under store.documents_dir that match store.include
(a doublestar pattern such as "cases/**/*.html") and stores them as
documents. Plain text, Markdown, HTML, and YAML or JSON document records are
understood. Unchanged files are skipped on subsequent runs.

With --watch, import keeps running and re-imports files as they are
created or written.`,
	RunE: runDocumentsImport,
}

func runDocumentsImport(cmd *cobra.Command, args []string) error {
	cfg := annotatorConfig()
	s, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	summary, err := s.Ingest(cmd.Context(), os.Stdout)
	if err != nil {
		return err
	}

	if watch, _ := cmd.Flags().GetBool("watch"); watch {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return s.Watch(ctx, os.Stdout)
	}
	if summary.Failed > 0 {
		return fmt.Errorf("%d document(s) failed import", summary.Failed)
	}
	return nil
}

// --- list subcommand ---

var documentsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List one page of documents",
	RunE:  runDocumentsList,
}

func runDocumentsList(cmd *cobra.Command, args []string) error {
	cfg := annotatorConfig()
	backend, closeFn, err := openBackend(cfg)
	if err != nil {
		return err
	}
	defer closeFn()

	page, _ := cmd.Flags().GetInt("page")
	if !cmd.Flags().Changed("page") {
		page = firstPage(cfg)
	}
	limit, _ := cmd.Flags().GetInt("limit")
	if limit <= 0 {
		limit = cfg.Store.PageSize
	}

	p, err := backend.GetDocuments(cmd.Context(), page, limit)
	if err != nil {
		return err
	}
	if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
		return writeJSON(p)
	}
	printDocuments(p.Documents)
	more := ""
	if p.Metadata.HasMore {
		more = fmt.Sprintf(" (more: --page %d)", p.Metadata.Page+1)
	}
	fmt.Printf("\n%d of %d documents%s\n", len(p.Documents), p.Metadata.Total, more)
	return nil
}

// --- search subcommand ---

var documentsSearchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Full-text search over imported documents",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runDocumentsSearch,
}

func runDocumentsSearch(cmd *cobra.Command, args []string) error {
	s, err := openStore(annotatorConfig())
	if err != nil {
		return err
	}
	defer s.Close()

	limit, _ := cmd.Flags().GetInt("limit")
	docs, err := s.Search(cmd.Context(), strings.Join(args, " "), limit)
	if err != nil {
		return err
	}
	if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
		return writeJSON(docs)
	}
	if len(docs) == 0 {
		fmt.Println("No results found.")
		return nil
	}
	printDocuments(docs)
	fmt.Printf("\n%d results\n", len(docs))
	return nil
}

// --- show subcommand ---

var documentsShowCmd = &cobra.Command{
	Use:   "show <document-id>",
	Short: "Print a document with its knowledge units",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentsShow,
}

func runDocumentsShow(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	defer s.close()

	doc, _ := s.engine.Document(args[0])
	units := s.engine.KnowledgeUnits(doc.ID)
	if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
		return writeJSON(struct {
			types.Document
			KnowledgeUnits []types.KnowledgeUnit `json:"knowledgeUnits"`
		}{doc, units})
	}

	fmt.Printf("%s  %s  (%d chars)\n\n%s\n\n", doc.ID, doc.Title, offset.UTF16Len(doc.Content), doc.Content)
	for _, ku := range units {
		printUnit(s, ku)
	}
	return nil
}

func printDocuments(docs []types.Document) {
	fmt.Fprintf(os.Stdout, "%-24s  %-40s  %s\n", "ID", "Title", "Annotated")
	fmt.Fprintln(os.Stdout, strings.Repeat("-", 76))
	for _, d := range docs {
		fmt.Fprintf(os.Stdout, "%-24s  %-40s  %t\n", clip(d.ID, 24), clip(d.Title, 40), d.HasAnnotations)
	}
}

func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

func writeJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	documentsImportCmd.Flags().String("documents-dir", "", "directory to import documents from (default documents)")
	documentsImportCmd.Flags().String("include", "", `doublestar pattern of files to import (default "**/*")`)
	documentsImportCmd.Flags().Bool("watch", false, "keep running and import files as they change")
	viper.BindPFlag("store.documents_dir", documentsImportCmd.Flags().Lookup("documents-dir"))
	viper.BindPFlag("store.include", documentsImportCmd.Flags().Lookup("include"))

	documentsListCmd.Flags().Int("page", 0, "page to list (first page: 1 for the store, 0 for the API)")
	documentsListCmd.Flags().Int("limit", 0, "documents per page (default store.page_size)")
	documentsListCmd.Flags().Bool("json", false, "output as JSON")

	documentsSearchCmd.Flags().Int("limit", 20, "maximum results")
	documentsSearchCmd.Flags().Bool("json", false, "output as JSON")

	documentsShowCmd.Flags().Bool("json", false, "output as JSON")

	documentsCmd.AddCommand(documentsImportCmd)
	documentsCmd.AddCommand(documentsListCmd)
	documentsCmd.AddCommand(documentsSearchCmd)
	documentsCmd.AddCommand(documentsShowCmd)

	rootCmd.AddCommand(documentsCmd)
}
