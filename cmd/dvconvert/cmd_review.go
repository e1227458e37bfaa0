package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var reviewFlags struct {
	archive string
	limit   int
}

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "List the most frequent unresolved column names from archived runs",
	Long: "review groups unresolved columns of all archived runs by normalized name.\n" +
		"Frequent entries are good candidates for new aliases (see 'schema merge').",
	Args: cobra.NoArgs,
	RunE: runReview,
}

func init() {
	f := reviewCmd.Flags()
	f.StringVar(&reviewFlags.archive, "archive", "", "SQLite run archive (default: archive_path)")
	f.IntVar(&reviewFlags.limit, "limit", 30, "Max entries")
}

func runReview(cmd *cobra.Command, _ []string) error {
	st, err := openArchive(cmd.Context(), reviewFlags.archive)
	if err != nil {
		return err
	}
	defer st.Close()

	items, err := st.UnresolvedBacklog(cmd.Context(), reviewFlags.limit)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(items) == 0 {
		fmt.Fprintln(out, "No unresolved columns recorded.")
		return nil
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NORMALIZED\tEXAMPLE\tSEEN\tAMBIGUOUS\tBEST SCORE\tLAST SEEN")
	for _, it := range items {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%.4f\t%s\n",
			it.NormalizedName, it.Example, it.Occurrences, it.Ambiguous, it.BestScore, it.LastSeen.Format("2006-01-02 15:04"))
	}
	return tw.Flush()
}
