package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/herbarium-review/internal/model"
	"github.com/sells-group/herbarium-review/internal/query"
	"github.com/sells-group/herbarium-review/internal/report"
)

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "List the review queue, most urgent first",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		e, err := initEnv(ctx, "cli")
		if err != nil {
			return err
		}
		defer e.Close()

		f, err := queueFilter(cmd)
		if err != nil {
			return err
		}
		page, err := e.Service.Queue(ctx, f)
		if err != nil {
			return eris.Wrap(err, "queue")
		}

		if path, _ := cmd.Flags().GetString("xlsx"); path != "" {
			stats, err := e.Service.Statistics(ctx)
			if err != nil {
				return eris.Wrap(err, "statistics")
			}
			return writeReport(path, page, stats)
		}
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(page)
		}
		if page.Total == 0 {
			fmt.Fprintln(os.Stderr, "Queue is empty.")
			return nil
		}
		formatQueue(os.Stdout, page)
		return nil
	},
}

func queueFilter(cmd *cobra.Command) (query.Filter, error) {
	state, _ := cmd.Flags().GetString("state")
	priority, _ := cmd.Flags().GetString("priority")
	assigned, _ := cmd.Flags().GetString("assigned-to")
	limit, _ := cmd.Flags().GetInt("limit")
	offset, _ := cmd.Flags().GetInt("offset")

	f := query.Filter{
		State:      model.State(state),
		Priority:   model.Priority(priority),
		AssignedTo: assigned,
		Limit:      limit,
		Offset:     offset,
	}
	if f.State != "" && !f.State.Valid() {
		return f, eris.Errorf("unknown state %q", state)
	}
	if f.Priority != "" && !f.Priority.Valid() {
		return f, eris.Errorf("unknown priority %q", priority)
	}
	if cmd.Flags().Changed("flagged") {
		flagged, _ := cmd.Flags().GetBool("flagged")
		f.Flagged = &flagged
	}
	return f, nil
}

func formatQueue(out io.Writer, page query.Page) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "SPECIMEN\tSTATE\tPRIORITY\tQUALITY\tASSIGNED\tFLAG\tEXPORT\tVERSION")
	for _, rec := range page.Items {
		flag := ""
		if rec.Flagged {
			flag = "*"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%.2f\t%s\t%s\t%s\t%d\n",
			shortID(rec.ID), rec.State, rec.Quality.Priority, rec.Quality.QualityScore,
			rec.AssignedTo, flag, rec.Export.Status, rec.Version)
	}
	_ = w.Flush()
	_, _ = fmt.Fprintf(out, "\n%d of %d (offset %d)\n", len(page.Items), page.Total, page.Offset)
}

func writeReport(path string, page query.Page, stats query.Stats) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "create %s", path)
	}
	if err := report.Write(f, page, stats); err != nil {
		f.Close() //nolint:errcheck
		return err
	}
	return eris.Wrapf(f.Close(), "close %s", path)
}

// shortID trims content-hash ids for table output.
func shortID(id string) string {
	if len(id) > 16 {
		return id[:16]
	}
	return id
}

func init() {
	queueCmd.Flags().String("state", "", "filter by workflow state")
	queueCmd.Flags().String("priority", "", "filter by priority tier")
	queueCmd.Flags().Bool("flagged", false, "filter by curator flag")
	queueCmd.Flags().String("assigned-to", "", "filter by assigned entrant")
	queueCmd.Flags().Int("limit", query.DefaultLimit, "page size")
	queueCmd.Flags().Int("offset", 0, "page offset")
	queueCmd.Flags().Bool("json", false, "print the page as JSON")
	queueCmd.Flags().String("xlsx", "", "write the page and statistics to an XLSX workbook")
	rootCmd.AddCommand(queueCmd)
}
