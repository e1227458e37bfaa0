package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"dvmap-service/internal/standardize/loader"
	"dvmap-service/internal/standardize/service"
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Schema maintenance",
}

var mergeFlags struct {
	suggestions string
	out         string
}

var schemaMergeCmd = &cobra.Command{
	Use:   "merge",
	Short: "Merge alias suggestions ({standard_name: [aliases]}) into the schema",
	Long: "merge adds suggested aliases to existing DVs and appends unknown ids as new\n" +
		"DVs, then validates the result. The schema is written in the current format\n" +
		"(a legacy flat schema is upgraded).",
	Args: cobra.NoArgs,
	RunE: runSchemaMerge,
}

func init() {
	f := schemaMergeCmd.Flags()
	f.StringVar(&mergeFlags.suggestions, "suggestions", "", "YAML with suggested aliases (required)")
	f.StringVarP(&mergeFlags.out, "output", "o", "", "Write the merged schema here (default: stdout)")
	_ = schemaMergeCmd.MarkFlagRequired("suggestions")

	schemaCmd.AddCommand(schemaMergeCmd)
}

func runSchemaMerge(cmd *cobra.Command, _ []string) error {
	doc, err := loader.LoadSchema(cfg.SchemaPath)
	if err != nil {
		return err
	}
	b, err := os.ReadFile(mergeFlags.suggestions)
	if err != nil {
		return fmt.Errorf("read suggestions: %w", err)
	}
	sugg, err := loader.ParseSuggestions(b)
	if err != nil {
		return err
	}

	merged := loader.MergeSuggestions(doc, sugg)
	if _, err := service.Compile(merged); err != nil {
		if printProblems(cmd.ErrOrStderr(), err) {
			return fmt.Errorf("merged schema is invalid, nothing written")
		}
		return err
	}

	if mergeFlags.out == "" {
		return loader.SaveSchema(cmd.OutOrStdout(), merged)
	}
	f, err := os.Create(mergeFlags.out)
	if err != nil {
		return fmt.Errorf("create %s: %w", mergeFlags.out, err)
	}
	if err := loader.SaveSchema(f, merged); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	logger.Info().
		Str("schema", cfg.SchemaPath).
		Str("output", mergeFlags.out).
		Int("dvs_before", len(doc.DVs)).
		Int("dvs_after", len(merged.DVs)).
		Msg("schema merged")
	return nil
}
