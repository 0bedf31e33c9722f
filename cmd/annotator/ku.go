// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/evidence-annotator/internal/validate"
	"github.com/pdiddy/evidence-annotator/pkg/types"
)

var kuCmd = &cobra.Command{
	Use:   "ku",
	Short: "Create, show, and delete knowledge units",
	Long: `A knowledge unit is one instance of a schema attached to a document.
It starts with the schema's required fields; optional fields are added
with "annotator field add".`,
}

var kuCreateCmd = &cobra.Command{
	Use:   "create <document-id> <schema-id>",
	Short: "Create a knowledge unit from a schema",
	Args:  cobra.ExactArgs(2),
	RunE:  runKUCreate,
}

func runKUCreate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	s, err := openSession(ctx, args[0])
	if err != nil {
		return err
	}
	defer s.close()

	ku, err := s.engine.CreateKU(args[1])
	if err != nil {
		return fmt.Errorf("creating knowledge unit: %w", err)
	}
	if err := s.engine.Sync(ctx, ku.ID); err != nil {
		return err
	}
	fmt.Println(ku.ID)
	return nil
}

var kuDeleteCmd = &cobra.Command{
	Use:   "delete <ku-id>",
	Short: "Delete a knowledge unit and all of its highlights",
	Args:  cobra.ExactArgs(1),
	RunE:  runKUDelete,
}

func runKUDelete(cmd *cobra.Command, args []string) error {
	s, err := openUnitSession(cmd, args[0])
	if err != nil {
		return err
	}
	defer s.close()
	if err := s.engine.DeleteKU(cmd.Context(), args[0]); err != nil {
		return err
	}
	fmt.Printf("Deleted %s\n", args[0])
	return nil
}

var kuShowCmd = &cobra.Command{
	Use:   "show <ku-id>",
	Short: "Print a knowledge unit with its fields, highlights, and validation",
	Args:  cobra.ExactArgs(1),
	RunE:  runKUShow,
}

func runKUShow(cmd *cobra.Command, args []string) error {
	s, err := openUnitSession(cmd, args[0])
	if err != nil {
		return err
	}
	defer s.close()

	ku, _ := s.engine.KnowledgeUnit(args[0])
	if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
		return writeJSON(ku)
	}
	printUnit(s, ku)
	return nil
}

var kuFieldsCmd = &cobra.Command{
	Use:   "fields <ku-id>",
	Short: "List schema fields that can still be added to a knowledge unit",
	Args:  cobra.ExactArgs(1),
	RunE:  runKUFields,
}

func runKUFields(cmd *cobra.Command, args []string) error {
	s, err := openUnitSession(cmd, args[0])
	if err != nil {
		return err
	}
	defer s.close()

	fields := s.engine.AvailableOptionalFields(args[0])
	if len(fields) == 0 {
		fmt.Println("All schema fields are present.")
		return nil
	}
	printSchemaFields(fields)
	return nil
}

func printUnit(s *session, ku types.KnowledgeUnit) {
	label := ku.SchemaID
	if schema, ok := s.engine.Schema(ku.SchemaID); ok {
		label = schema.FrameLabel
	}
	res, _ := s.engine.Validate(ku.ID)
	status := "valid"
	if !res.IsValid {
		status = "invalid"
	}
	fmt.Printf("%s  %s  [%s]\n", ku.ID, label, status)
	for _, f := range ku.Fields {
		value, _ := json.Marshal(f.Value)
		fmt.Printf("  %-16s  %s\n", f.ID, value)
		for _, h := range f.Highlights {
			fmt.Printf("    %s  [%d,%d)  %q\n", h.ID, h.StartOffset, h.EndOffset, h.Text)
		}
		for _, msg := range res.Errors[f.ID] {
			fmt.Printf("    ! %s\n", msg)
		}
	}
	for _, msg := range res.Errors[validate.SchemaErrorKey] {
		fmt.Printf("  ! %s\n", msg)
	}
	fmt.Println()
}

// --- field commands ---

var fieldCmd = &cobra.Command{
	Use:   "field",
	Short: "Set, add, and remove knowledge unit fields",
}

var fieldSetCmd = &cobra.Command{
	Use:   "set <ku-id> <field-id> <value>...",
	Short: "Set a field value",
	Long: `Set replaces a field value. Integer fields parse their value as a
number. Multiple fields take each argument as one list entry. Use --json to
pass the value as a JSON literal. Highlights are left untouched.`,
	Args: cobra.MinimumNArgs(2),
	RunE: runFieldSet,
}

func runFieldSet(cmd *cobra.Command, args []string) error {
	kuID, fieldID := args[0], args[1]
	s, err := openUnitSession(cmd, kuID)
	if err != nil {
		return err
	}
	defer s.close()

	ku, _ := s.engine.KnowledgeUnit(kuID)
	f, ok := ku.Field(fieldID)
	if !ok {
		return fmt.Errorf("field %s is not present in %s", fieldID, kuID)
	}
	asJSON, _ := cmd.Flags().GetBool("json")
	value, err := parseFieldValue(f, args[2:], asJSON)
	if err != nil {
		return err
	}
	if msg := validate.Value(value, f.Type); msg != "" {
		fmt.Fprintf(os.Stderr, "warning: %s: %s\n", f.Name, msg)
	}
	s.engine.UpdateFieldValue(kuID, fieldID, value)
	return s.engine.Sync(cmd.Context(), kuID)
}

func parseFieldValue(f types.Field, args []string, asJSON bool) (any, error) {
	if asJSON {
		var v any
		if err := json.Unmarshal([]byte(strings.Join(args, " ")), &v); err != nil {
			return nil, fmt.Errorf("parsing JSON value: %w", err)
		}
		return v, nil
	}
	scalar := func(s string) (any, error) {
		if f.Type.Kind != types.KindInteger || s == "" {
			return s, nil
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return nil, fmt.Errorf("field %s expects an integer, got %q", f.ID, s)
		}
		return n, nil
	}
	if f.Multiple {
		out := make([]any, 0, len(args))
		for _, a := range args {
			v, err := scalar(a)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	}
	return scalar(strings.Join(args, " "))
}

var fieldAddCmd = &cobra.Command{
	Use:   "add <ku-id> <field-id> [key=value...]",
	Short: "Add an optional schema field",
	Long: `Add appends an optional schema field with an empty value. Custom
composite fields are created from key=value pairs for their sub-fields and
are only added when every required sub-field is given.`,
	Args: cobra.MinimumNArgs(2),
	RunE: runFieldAdd,
}

func runFieldAdd(cmd *cobra.Command, args []string) error {
	kuID, fieldID := args[0], args[1]
	s, err := openUnitSession(cmd, kuID)
	if err != nil {
		return err
	}
	defer s.close()

	edit, added := s.engine.AddOptionalField(kuID, fieldID)
	switch {
	case edit != nil:
		if err := submitCustom(s, edit.Type, args[2:]); err != nil {
			return err
		}
	case !added:
		return fmt.Errorf("field %s cannot be added to %s: %w", fieldID, kuID, errNotChanged)
	}
	return s.engine.Sync(cmd.Context(), kuID)
}

var fieldCustomCmd = &cobra.Command{
	Use:   "custom <ku-id> <field-id> key=value...",
	Short: "Edit the sub-fields of an existing custom field",
	Args:  cobra.MinimumNArgs(3),
	RunE:  runFieldCustom,
}

func runFieldCustom(cmd *cobra.Command, args []string) error {
	kuID, fieldID := args[0], args[1]
	s, err := openUnitSession(cmd, kuID)
	if err != nil {
		return err
	}
	defer s.close()

	edit, ok := s.engine.OpenCustomFieldEditor(kuID, fieldID)
	if !ok {
		return fmt.Errorf("%s is not a custom field of %s", fieldID, kuID)
	}
	values := edit.Values
	parsed, err := parseSubFields(edit.Type, args[2:])
	if err != nil {
		return err
	}
	for k, v := range parsed {
		values[k] = v
	}
	if err := s.engine.SubmitCustomField(values); err != nil {
		return reportSubmission(err)
	}
	return s.engine.Sync(cmd.Context(), kuID)
}

func submitCustom(s *session, ct types.CustomFieldType, pairs []string) error {
	values, err := parseSubFields(ct, pairs)
	if err != nil {
		s.engine.CancelCustomField()
		return err
	}
	if err := s.engine.SubmitCustomField(values); err != nil {
		s.engine.CancelCustomField()
		return reportSubmission(err)
	}
	return nil
}

func reportSubmission(err error) error {
	var se *validate.SubmissionError
	if errors.As(err, &se) {
		for sub, msgs := range se.Fields {
			fmt.Fprintf(os.Stderr, "  %s: %s\n", sub, strings.Join(msgs, "; "))
		}
	}
	return err
}

func parseSubFields(ct types.CustomFieldType, pairs []string) (map[string]any, error) {
	kinds := make(map[string]types.FieldKind, len(ct.Fields))
	for _, sf := range ct.Fields {
		kinds[sf.ID] = sf.Type.Kind
	}
	values := make(map[string]any, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("expected key=value, got %q", p)
		}
		if kinds[k] == types.KindInteger && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return nil, fmt.Errorf("sub-field %s expects an integer, got %q", k, v)
			}
			values[k] = n
			continue
		}
		values[k] = v
	}
	return values, nil
}

var fieldRemoveCmd = &cobra.Command{
	Use:   "remove <ku-id> <field-id>",
	Short: "Remove a field and all of its highlights",
	Args:  cobra.ExactArgs(2),
	RunE:  runFieldRemove,
}

func runFieldRemove(cmd *cobra.Command, args []string) error {
	s, err := openUnitSession(cmd, args[0])
	if err != nil {
		return err
	}
	defer s.close()
	if !s.engine.RemoveField(args[0], args[1]) {
		return fmt.Errorf("field %s is not present in %s: %w", args[1], args[0], errNotChanged)
	}
	return s.engine.Sync(cmd.Context(), args[0])
}

func init() {
	for _, c := range []*cobra.Command{kuDeleteCmd, kuShowCmd, kuFieldsCmd, fieldSetCmd, fieldAddCmd, fieldCustomCmd, fieldRemoveCmd} {
		c.Flags().String("document", "", "document holding the knowledge unit (skips the lookup)")
	}
	kuShowCmd.Flags().Bool("json", false, "output as JSON")
	fieldSetCmd.Flags().Bool("json", false, "parse the value as a JSON literal")

	kuCmd.AddCommand(kuCreateCmd)
	kuCmd.AddCommand(kuDeleteCmd)
	kuCmd.AddCommand(kuShowCmd)
	kuCmd.AddCommand(kuFieldsCmd)

	fieldCmd.AddCommand(fieldSetCmd)
	fieldCmd.AddCommand(fieldAddCmd)
	fieldCmd.AddCommand(fieldCustomCmd)
	fieldCmd.AddCommand(fieldRemoveCmd)

	rootCmd.AddCommand(kuCmd)
	rootCmd.AddCommand(fieldCmd)
}
