package cli

import (
	"hush-cli/internal/store"

	"github.com/spf13/cobra"
)

func newEventsCmd(app *App) *cobra.Command {
	var (
		limit int
		peer  string
		out   string
	)

	cmd := &cobra.Command{
		Use:   "events",
		Short: "Inspect the local activity log",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List events (oldest-first)",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := engineFor(cmd, app)
			if err != nil {
				return writeErr(cmd, err)
			}
			convID := ""
			if peer != "" {
				if convID, err = resolveConversation(e, peer); err != nil {
					return writeErr(cmd, err)
				}
			}
			evs, err := e.Events(cmd.Context(), convID, limit)
			if err != nil {
				return writeErr(cmd, err)
			}
			if out != "" {
				if err := store.WriteEventsJSONLFile(out, evs); err != nil {
					return writeErr(cmd, err)
				}
				return writeOut(cmd, app, map[string]any{"data": map[string]any{"path": out, "count": len(evs)}})
			}
			return writeOut(cmd, app, map[string]any{"data": evs})
		},
	}
	listCmd.Flags().IntVar(&limit, "limit", 200, "Max events to return (0 = all)")
	listCmd.Flags().StringVar(&peer, "peer", "", "Only events for this conversation")
	listCmd.Flags().StringVar(&out, "out", "", "Write events as JSONL to this file instead of stdout")

	importCmd := &cobra.Command{
		Use:   "import <file.jsonl>",
		Short: "Append events from a JSONL file to the activity log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := engineFor(cmd, app)
			if err != nil {
				return writeErr(cmd, err)
			}
			evs, err := store.ReadEventsJSONL(args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			if err := e.Store().AppendEvents(cmd.Context(), evs...); err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{
				"data":   map[string]any{"path": args[0], "count": len(evs)},
				"_hints": []string{"hush events list"},
			})
		},
	}

	cmd.AddCommand(listCmd, importCmd)
	return cmd
}
