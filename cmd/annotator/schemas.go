// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/evidence-annotator/pkg/types"
)

var schemasCmd = &cobra.Command{
	Use:   "schemas",
	Short: "Import and list knowledge unit schemas",
}

var schemasImportCmd = &cobra.Command{
	Use:   "import <catalog-file>",
	Short: "Import schemas and custom field types into the local store",
	Long: `Import reads a catalog file holding "schemas" and "custom_field_types"
(YAML) or "schemas" and "customFieldTypes" (JSON, as served by the API)
and stores them. Entries with existing ids are replaced.`,
	Args: cobra.ExactArgs(1),
	RunE: runSchemasImport,
}

func runSchemasImport(cmd *cobra.Command, args []string) error {
	s, err := openStore(annotatorConfig())
	if err != nil {
		return err
	}
	defer s.Close()

	cat, err := s.ImportCatalog(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	fmt.Printf("Imported %d schema(s) and %d custom field type(s)\n", len(cat.Schemas), len(cat.CustomFieldTypes))
	return nil
}

var schemasListCmd = &cobra.Command{
	Use:   "list",
	Short: "List schemas with their fields",
	RunE:  runSchemasList,
}

func runSchemasList(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd.Context(), "")
	if err != nil {
		return err
	}
	defer s.close()

	schemas := s.engine.Schemas()
	if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
		return writeJSON(schemas)
	}
	if len(schemas) == 0 {
		fmt.Println("No schemas. Import a catalog with: annotator schemas import <file>")
		return nil
	}
	for _, sc := range schemas {
		fmt.Printf("%s  %s\n", sc.FrameID, sc.FrameLabel)
		printSchemaFields(sc.Fields)
		fmt.Println()
	}
	return nil
}

func printSchemaFields(fields []types.SchemaField) {
	for _, f := range fields {
		var flags []string
		if f.Required {
			flags = append(flags, "required")
		}
		if f.Multiple {
			flags = append(flags, "multiple")
		}
		fmt.Fprintf(os.Stdout, "  %-16s  %-24s  %-20s  %s\n", f.ID, clip(f.Name, 24), clip(f.Type.String(), 20), strings.Join(flags, ","))
	}
}

func init() {
	schemasListCmd.Flags().Bool("json", false, "output as JSON")

	schemasCmd.AddCommand(schemasImportCmd)
	schemasCmd.AddCommand(schemasListCmd)

	rootCmd.AddCommand(schemasCmd)
}
