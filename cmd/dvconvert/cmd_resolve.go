package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"dvmap-service/internal/standardize/service"
)

var resolveFlags struct {
	json  bool
	match matchFlags
}

var resolveCmd = &cobra.Command{
	Use:   "resolve NAME...",
	Short: "Resolve column names against the schema and show how each matched",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runResolve,
}

func init() {
	resolveCmd.Flags().BoolVar(&resolveFlags.json, "json", false, "Print the full report as JSON")
	resolveFlags.match.register(resolveCmd)
}

func runResolve(cmd *cobra.Command, args []string) error {
	opt, err := resolveFlags.match.options(cmd)
	if err != nil {
		return err
	}
	opt.InferMetadata = false

	sc, rules, err := openSchema()
	if err != nil {
		return err
	}
	rep := service.Convert(args, sc, rules, opt)
	if resolveFlags.json {
		return printJSON(cmd.OutOrStdout(), rep)
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "INPUT\tRESOLVED\tTIER\tSCORE\tCANDIDATES")
	for _, c := range rep.Columns {
		r := c.Resolution
		id := r.ID()
		if id == "" {
			id = "-"
			if r.Ambiguous {
				id = "(ambiguous)"
			}
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%.4f\t%s\n", r.InputName, id, r.MatchTier, r.Similarity, candidatesString(r.Candidates))
	}
	return tw.Flush()
}
