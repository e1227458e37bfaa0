package main

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"dvmap-service/internal/standardize/service"
)

var inferFlags struct {
	json  bool
	match matchFlags
}

var inferCmd = &cobra.Command{
	Use:   "infer NAME...",
	Short: "Show inferred measurement metadata for column names",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runInfer,
}

func init() {
	inferCmd.Flags().BoolVar(&inferFlags.json, "json", false, "Print the metadata document as JSON")
	inferFlags.match.register(inferCmd)
}

func runInfer(cmd *cobra.Command, args []string) error {
	opt, err := inferFlags.match.options(cmd)
	if err != nil {
		return err
	}
	opt.InferMetadata = true

	sc, rules, err := openSchema()
	if err != nil {
		return err
	}
	rep := service.Convert(args, sc, rules, opt)
	if inferFlags.json {
		return printJSON(cmd.OutOrStdout(), service.BuildSidecar(rep, time.Now().UTC()))
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "COLUMN\tCATEGORY\tUNIT\tSCALE\tDIRECTION\tCONFIDENCE\tREVIEW\tRULES")
	for _, c := range rep.Columns {
		inf := c.Inference
		review := ""
		if inf.NeedsReview {
			review = "yes"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%.2f\t%s\t%s\n",
			c.OutputName(), inf.Category, inf.PrimaryUnit, inf.ScaleType, inf.Direction,
			inf.Confidence, review, strings.Join(inf.MatchedRules, ","))
	}
	return tw.Flush()
}
