package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"dvmap-service/internal/fileio"
	"dvmap-service/internal/standardize/service"
	"dvmap-service/internal/store"
)

var convertFlags struct {
	input        string
	output       string
	withMetadata bool
	headerRow    int
	mapping      string
	archive      string
	match        matchFlags
}

var convertCmd = &cobra.Command{
	Use:   "convert",
	Short: "Rename dataset columns to canonical DV ids",
	Example: `  dvconvert convert --input data.csv --output standardized.csv
  dvconvert convert --input data.xlsx --output standardized.xlsx --with-metadata
  dvconvert convert --input data.csv --output out.csv --schema custom_schema.yaml --threshold 0.85`,
	RunE: runConvert,
}

func init() {
	f := convertCmd.Flags()
	f.StringVarP(&convertFlags.input, "input", "i", "", "Input dataset (.csv, .tsv, .xlsx, .xls) (required)")
	f.StringVarP(&convertFlags.output, "output", "o", "", "Standardized dataset to write (.csv or .xlsx) (required)")
	f.BoolVar(&convertFlags.withMetadata, "with-metadata", false, "Infer measurement metadata and write <output>_metadata.json")
	f.IntVar(&convertFlags.headerRow, "header-row", 1, "1-based row holding the column headers")
	f.StringVar(&convertFlags.mapping, "mapping", "", "Also write the full conversion report JSON here")
	f.StringVar(&convertFlags.archive, "archive", "", "Record the run in this SQLite archive (default: archive_path)")
	convertFlags.match.register(convertCmd)

	_ = convertCmd.MarkFlagRequired("input")
	_ = convertCmd.MarkFlagRequired("output")
}

func runConvert(cmd *cobra.Command, _ []string) error {
	start := time.Now()
	out := cmd.OutOrStdout()

	opt, err := convertFlags.match.options(cmd)
	if err != nil {
		return err
	}
	opt.InferMetadata = convertFlags.withMetadata

	sc, rules, err := openSchema()
	if err != nil {
		if printProblems(cmd.ErrOrStderr(), err) {
			return fmt.Errorf("schema %s is invalid", cfg.SchemaPath)
		}
		return err
	}

	in, err := os.Open(convertFlags.input)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	table, err := fileio.ReadTable(in, convertFlags.input, convertFlags.headerRow)
	_ = in.Close()
	if err != nil {
		return fmt.Errorf("read %s: %w", convertFlags.input, err)
	}
	if len(table.Headers) == 0 {
		return fmt.Errorf("read %s: no header row", convertFlags.input)
	}
	fmt.Fprintf(out, "Loaded %s: %d rows, %d columns\n", convertFlags.input, len(table.Rows), len(table.Headers))

	rep := service.Convert(table.Headers, sc, rules, opt)
	renamed := fileio.Table{Headers: service.RenameHeaders(table.Headers, rep), Rows: table.Rows}

	if err := writeTable(convertFlags.output, renamed); err != nil {
		return err
	}
	fmt.Fprintf(out, "Standardized file saved to: %s\n", convertFlags.output)

	if convertFlags.withMetadata {
		meta := sidecarPath(convertFlags.output)
		if err := writeJSONFile(meta, service.BuildSidecar(rep, time.Now().UTC())); err != nil {
			return fmt.Errorf("write metadata: %w", err)
		}
		fmt.Fprintf(out, "Metadata JSON saved to: %s\n", meta)
	}
	if convertFlags.mapping != "" {
		if err := writeJSONFile(convertFlags.mapping, rep); err != nil {
			return fmt.Errorf("write mapping: %w", err)
		}
	}

	s := rep.Summary
	fmt.Fprintf(out, "Columns: %d, resolved: %d, unresolved: %d (ambiguous: %d), renamed: %.0f%%\n",
		s.TotalColumns, s.Resolved, s.Unresolved, s.Ambiguous, s.ChangeRate*100)
	for _, c := range rep.Columns {
		if c.Resolution.Ambiguous {
			fmt.Fprintf(out, "  ambiguous: %q -> %s\n", c.Resolution.InputName, candidatesString(c.Resolution.Candidates))
		}
	}
	for _, id := range s.Conflicts {
		fmt.Fprintf(out, "  conflict: more than one column maps to %q\n", id)
	}
	if s.NeedsReview > 0 {
		fmt.Fprintf(out, "Warning: %d column(s) flagged for manual review (low confidence)\n", s.NeedsReview)
	}

	if convertFlags.archive != "" || cfg.ArchivePath != "" {
		st, err := openArchive(cmd.Context(), convertFlags.archive)
		if err != nil {
			return err
		}
		defer st.Close()
		id, err := st.SaveRun(cmd.Context(), store.Run{Source: "cli", FileName: filepath.Base(convertFlags.input), Report: rep})
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Run archived as %s\n", id)
	}

	logger.Info().
		Str("input", convertFlags.input).
		Str("output", convertFlags.output).
		Int("columns", s.TotalColumns).
		Int("resolved", s.Resolved).
		Int("needs_review", s.NeedsReview).
		Dur("elapsed", time.Since(start)).
		Msg("convert done")
	return nil
}

func writeTable(path string, t fileio.Table) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	if err := fileio.WriteTable(f, path, t); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
