package cli

import (
	"strings"

	"github.com/spf13/cobra"
)

func newSendCmd(app *App) *cobra.Command {
	var noWait bool

	cmd := &cobra.Command{
		Use:   "send <peer> <text...>",
		Short: "Send an encrypted message (waits for the receipt and reply unless --no-wait)",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := engineFor(cmd, app)
			if err != nil {
				return writeErr(cmd, err)
			}
			convID, err := resolveConversation(e, args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			text := strings.Join(args[1:], " ")

			res, err := e.Send(cmd.Context(), convID, text)
			if err != nil {
				return writeErr(cmd, err)
			}
			if !res.Accepted {
				return writeOut(cmd, app, map[string]any{
					"data": nil,
					"meta": map[string]any{"accepted": false, "reason": "duplicate"},
				})
			}
			if !noWait {
				if err := drain(cmd.Context(), app, e); err != nil {
					return writeErr(cmd, err)
				}
			}

			// Re-read so the output reflects the receipt that landed while draining.
			snap, err := e.Snapshot(cmd.Context())
			if err != nil {
				return writeErr(cmd, err)
			}
			m := *res.Message
			if cur, ok := snap.FindMessage(m.ID); ok {
				m = *cur
			}
			return writeOut(cmd, app, map[string]any{
				"data":   toMessageView(e, m),
				"meta":   map[string]any{"accepted": true},
				"_hints": []string{"hush messages " + args[0]},
			})
		},
	}
	cmd.Flags().BoolVar(&noWait, "no-wait", false, "Return immediately without waiting for the simulated receipt and reply")
	return cmd
}
