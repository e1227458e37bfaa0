package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var historyFlags struct {
	archive string
	limit   int
}

var historyCmd = &cobra.Command{
	Use:   "history [RUN_ID]",
	Short: "List archived runs, or print the report of one run",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runHistory,
}

func init() {
	f := historyCmd.Flags()
	f.StringVar(&historyFlags.archive, "archive", "", "SQLite run archive (default: archive_path)")
	f.IntVar(&historyFlags.limit, "limit", 20, "Max runs to list")
}

func runHistory(cmd *cobra.Command, args []string) error {
	st, err := openArchive(cmd.Context(), historyFlags.archive)
	if err != nil {
		return err
	}
	defer st.Close()
	out := cmd.OutOrStdout()

	if len(args) == 1 {
		rep, err := st.GetRun(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printJSON(out, rep)
	}

	runs, err := st.ListRuns(cmd.Context(), historyFlags.limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(out, "No runs archived.")
		return nil
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tWHEN\tSOURCE\tFILE\tSCHEMA\tCOLUMNS\tRESOLVED\tAMBIGUOUS\tREVIEW")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\t%d\t%d\t%d\n",
			r.ID, r.CreatedAt.Format("2006-01-02 15:04"), r.Source, r.FileName, r.SchemaVersion,
			r.Total, r.Resolved, r.Ambiguous, r.NeedsReview)
	}
	return tw.Flush()
}
