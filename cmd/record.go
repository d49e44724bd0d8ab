package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/herbarium-review/internal/export"
	"github.com/sells-group/herbarium-review/internal/ledger"
	"github.com/sells-group/herbarium-review/internal/model"
	"github.com/sells-group/herbarium-review/internal/review"
	"github.com/sells-group/herbarium-review/internal/workflow"
)

// Commands acting on one record. Each takes --actor and an optional
// --expected-version; zero means the version currently stored.

var showCmd = &cobra.Command{
	Use:   "show <specimen-id>",
	Short: "Print a record as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		e, err := initEnv(ctx, "cli")
		if err != nil {
			return err
		}
		defer e.Close()

		rec, err := e.Service.GetRecord(ctx, args[0])
		if err != nil {
			return err
		}
		return printJSON(rec)
	},
}

var transitionCmd = &cobra.Command{
	Use:   "transition <specimen-id> <action>",
	Short: "Apply a workflow action to a record",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		e, err := initEnv(ctx, "cli")
		if err != nil {
			return err
		}
		defer e.Close()

		actor, _ := cmd.Flags().GetString("actor")
		entrant, _ := cmd.Flags().GetString("entrant")
		notes, _ := cmd.Flags().GetString("notes")
		expected, _ := cmd.Flags().GetInt64("expected-version")

		action := model.Action(args[1])
		var rec *model.Specimen
		if action == model.ActionAssignToEntrant {
			rec, err = e.Service.AssignToEntrant(ctx, args[0], expected, entrant, actor)
		} else {
			rec, err = e.Service.Transition(ctx, review.TransitionRequest{
				SpecimenID:      args[0],
				ExpectedVersion: expected,
				Actor:           actor,
				Action:          action,
				Params:          workflow.Params{Entrant: entrant, Notes: notes},
			})
		}
		if err != nil {
			return err
		}
		zap.L().Info("transition applied",
			zap.String("specimen_id", rec.ID),
			zap.String("state", string(rec.State)),
			zap.Int64("version", rec.Version),
		)
		return nil
	},
}

var correctCmd = &cobra.Command{
	Use:   "correct <specimen-id> <field> <value>",
	Short: "Record a field correction",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		e, err := initEnv(ctx, "cli")
		if err != nil {
			return err
		}
		defer e.Close()

		actor, _ := cmd.Flags().GetString("actor")
		reason, _ := cmd.Flags().GetString("reason")
		expected, _ := cmd.Flags().GetInt64("expected-version")

		rec, entry, err := e.Service.ApplyCorrection(ctx, args[0], expected, ledger.Request{
			Field:  args[1],
			Value:  args[2],
			Actor:  actor,
			Reason: reason,
		})
		if err != nil {
			return err
		}
		zap.L().Info("correction recorded",
			zap.String("specimen_id", rec.ID),
			zap.String("correction_id", entry.ID),
			zap.String("export_status", string(rec.Export.Status)),
			zap.Float64("quality_score", rec.Quality.QualityScore),
			zap.String("priority", string(rec.Quality.Priority)),
			zap.Int64("version", rec.Version),
		)
		return nil
	},
}

var exportCmd = &cobra.Command{
	Use:   "export <specimen-id>",
	Short: "Record a successful export and print the snapshot",
	Long:  "Marks a READY_FOR_EXPORT record as exported and prints the export event. The archive itself is written by a downstream process.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		e, err := initEnv(ctx, "cli")
		if err != nil {
			return err
		}
		defer e.Close()

		actor, _ := cmd.Flags().GetString("actor")
		format, _ := cmd.Flags().GetString("format")
		dest, _ := cmd.Flags().GetString("destination")
		expected, _ := cmd.Flags().GetInt64("expected-version")

		_, event, err := e.Service.MarkExported(ctx, args[0], expected, actor, export.Request{
			Format:      format,
			Destination: dest,
		})
		if err != nil {
			return err
		}
		return printJSON(event)
	},
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return eris.Wrap(enc.Encode(v), "encode output")
}

func init() {
	for _, c := range []*cobra.Command{transitionCmd, correctCmd, exportCmd} {
		c.Flags().String("actor", "", "acting user id (required)")
		_ = c.MarkFlagRequired("actor")
		c.Flags().Int64("expected-version", 0, "version last read (0 = current)")
	}
	transitionCmd.Flags().String("entrant", "", "entrant to assign (assign_to_entrant)")
	transitionCmd.Flags().String("notes", "", "decision notes")
	correctCmd.Flags().String("reason", "", "why the value changed")
	exportCmd.Flags().String("format", export.FormatDwCA, "export format: dwc-a, csv or json")
	exportCmd.Flags().String("destination", "", "where the archive was published")

	rootCmd.AddCommand(showCmd, transitionCmd, correctCmd, exportCmd)
}
