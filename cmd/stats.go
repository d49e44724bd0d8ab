package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"slices"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/herbarium-review/internal/model"
	"github.com/sells-group/herbarium-review/internal/query"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarize the record population",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		e, err := initEnv(ctx, "cli")
		if err != nil {
			return err
		}
		defer e.Close()

		stats, err := e.Service.Statistics(ctx)
		if err != nil {
			return eris.Wrap(err, "statistics")
		}
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(stats)
		}
		formatStats(os.Stdout, stats)
		return nil
	},
}

func formatStats(out io.Writer, s query.Stats) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Total\t%d\n", s.Total)
	_, _ = fmt.Fprintf(w, "Mean quality\t%.2f\n", s.MeanQualityScore)
	_, _ = fmt.Fprintf(w, "Mean completeness\t%.2f\n", s.MeanCompleteness)
	_, _ = fmt.Fprintf(w, "Exported\t%d\n", s.Exported)
	_, _ = fmt.Fprintf(w, "Modified since export\t%d\n", s.ModifiedSinceExport)
	_, _ = fmt.Fprintf(w, "Flagged\t%d\n", s.Flagged)

	_, _ = fmt.Fprintln(w, "\nSTATE\tCOUNT")
	for _, st := range model.States {
		_, _ = fmt.Fprintf(w, "%s\t%d\n", st, s.ByState[st])
	}
	_, _ = fmt.Fprintln(w, "\nPRIORITY\tCOUNT")
	for _, p := range model.Priorities {
		_, _ = fmt.Fprintf(w, "%s\t%d\n", p, s.ByPriority[p])
	}
	if len(s.AssignedPerEntrant) > 0 {
		_, _ = fmt.Fprintln(w, "\nENTRANT\tASSIGNED")
		ids := make([]string, 0, len(s.AssignedPerEntrant))
		for id := range s.AssignedPerEntrant {
			ids = append(ids, id)
		}
		slices.Sort(ids)
		for _, id := range ids {
			_, _ = fmt.Fprintf(w, "%s\t%d\n", id, s.AssignedPerEntrant[id])
		}
	}
	_ = w.Flush()
}

func init() {
	statsCmd.Flags().Bool("json", false, "print statistics as JSON")
	rootCmd.AddCommand(statsCmd)
}
