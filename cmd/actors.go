package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/herbarium-review/internal/roster"
)

var actorsCmd = &cobra.Command{
	Use:   "actors",
	Short: "Validate the actor roster and print it normalized",
	RunE: func(cmd *cobra.Command, _ []string) error {
		r, err := roster.Load(cfg.Roster.Path)
		if err != nil {
			return err
		}
		out, err := r.Marshal()
		if err != nil {
			return err
		}
		_, err = os.Stdout.Write(out)
		return eris.Wrap(err, "write roster")
	},
}

func init() {
	rootCmd.AddCommand(actorsCmd)
}
