package cli

import (
	"hush-cli/internal/clock"
	"hush-cli/internal/store"

	"github.com/spf13/cobra"
)

func newDoctorCmd(app *App) *cobra.Command {
	var (
		fix  bool
		fail bool
	)

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check the stored document for duplicates, ordering and stale undo records",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := engineFor(cmd, app)
			if err != nil {
				return writeErr(cmd, err)
			}
			c := app.clock
			if c == nil {
				c = clock.Real()
			}
			report, err := e.Store().Doctor(cmd.Context(), clock.UnixMilli(c), fix)
			if err != nil {
				return writeErr(cmd, err)
			}

			var hints []string
			if len(report.Issues) > 0 && !fix {
				hints = append(hints, "hush doctor --fix")
			}
			if err := writeOut(cmd, app, map[string]any{
				"data":   report,
				"meta":   map[string]any{"issues": len(report.Issues), "hasErrors": report.HasErrors()},
				"_hints": hints,
			}); err != nil {
				return err
			}
			if fail && report.HasErrors() {
				return store.ErrDoctorIssuesFound
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&fix, "fix", false, "Rewrite the document compacted and drop expired undo records")
	cmd.Flags().BoolVar(&fail, "fail", false, "Exit with non-zero status if errors are found")
	return cmd
}
