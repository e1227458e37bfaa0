package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"dvmap-service/internal/standardize/loader"
	"dvmap-service/internal/standardize/model"
	"dvmap-service/internal/standardize/service"
	"dvmap-service/internal/store"
)

// matchFlags: общие флаги сопоставления для convert/resolve/infer.
type matchFlags struct {
	threshold  float64
	margin     float64
	confidence float64
	noFuzzy    bool
	workers    int
}

func (m *matchFlags) register(cmd *cobra.Command) {
	f := cmd.Flags()
	f.Float64Var(&m.threshold, "threshold", model.DefaultThreshold, "Fuzzy similarity threshold (0..1)")
	f.Float64Var(&m.margin, "margin", model.DefaultMargin, "Minimum lead of the best fuzzy candidate over the runner-up")
	f.Float64Var(&m.confidence, "confidence-threshold", model.DefaultReviewThreshold, "Inference confidence below this is flagged for review")
	f.BoolVar(&m.noFuzzy, "no-fuzzy", false, "Exact and alias matches only")
	f.IntVar(&m.workers, "workers", 0, "Parallel column workers (default: config workers)")
}

// options: конфиг, поверх него явно заданные флаги.
func (m *matchFlags) options(cmd *cobra.Command) (model.Options, error) {
	opt := model.Options{
		Match: model.MatchOptions{
			EnableFuzzy: cfg.EnableFuzzy,
			Threshold:   cfg.FuzzyThreshold,
			Margin:      cfg.MinSeparation,
		},
		InferMetadata:   true,
		ReviewThreshold: cfg.ReviewThreshold,
		Workers:         cfg.Workers,
	}
	f := cmd.Flags()
	if f.Changed("threshold") {
		opt.Match.Threshold = m.threshold
	}
	if f.Changed("margin") {
		opt.Match.Margin = m.margin
	}
	if f.Changed("confidence-threshold") {
		opt.ReviewThreshold = m.confidence
	}
	if m.noFuzzy {
		opt.Match.EnableFuzzy = false
	}
	if m.workers > 0 {
		opt.Workers = m.workers
	}
	for name, v := range map[string]float64{
		"threshold":            opt.Match.Threshold,
		"margin":               opt.Match.Margin,
		"confidence-threshold": opt.ReviewThreshold,
	} {
		if v < 0 || v > 1 {
			return opt, fmt.Errorf("--%s must be in [0,1], got %g", name, v)
		}
	}
	return opt, nil
}

func openSchema() (*service.Schema, *service.RuleSet, error) {
	sc, rules, err := loader.Open(loader.Paths{
		Schema:   cfg.SchemaPath,
		Clusters: cfg.ClustersPath,
		Rules:    cfg.RulesPath,
	})
	if err != nil {
		return nil, nil, err
	}
	logger.Debug().
		Str("schema", cfg.SchemaPath).
		Str("schema_version", sc.Version()).
		Int("dvs", sc.Len()).
		Int("rules", rules.Len()).
		Msg("schema loaded")
	return sc, rules, nil
}

func openArchive(ctx context.Context, path string) (*store.Store, error) {
	if path == "" {
		path = cfg.ArchivePath
	}
	if path == "" {
		return nil, errors.New("no run archive: pass --archive or set archive_path")
	}
	return store.Open(ctx, path)
}

// printProblems печатает список проблем валидации по строке.
func printProblems(w io.Writer, err error) bool {
	var (
		se *model.SchemaValidationError
		re *model.RuleTableValidationError
	)
	switch {
	case errors.As(err, &se):
		fmt.Fprintf(w, "Schema is invalid (%d problems):\n", len(se.Problems))
		for _, p := range se.Problems {
			fmt.Fprintf(w, "  - %s\n", p)
		}
		return true
	case errors.As(err, &re):
		fmt.Fprintf(w, "Rule table is invalid (%d problems):\n", len(re.Problems))
		for _, p := range re.Problems {
			fmt.Fprintf(w, "  - %s\n", p)
		}
		return true
	}
	return false
}

func writeJSONFile(path string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(b, '\n'), 0o644)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// sidecarPath: out.csv -> out_metadata.json
func sidecarPath(output string) string {
	return strings.TrimSuffix(output, filepath.Ext(output)) + "_metadata.json"
}

func candidatesString(cs []model.Candidate) string {
	parts := make([]string, 0, len(cs))
	for _, c := range cs {
		parts = append(parts, fmt.Sprintf("%s=%.4f", c.ID, c.Score))
	}
	return strings.Join(parts, ", ")
}
