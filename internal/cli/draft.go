package cli

import (
	"strings"

	"github.com/spf13/cobra"
)

func newDraftCmd(app *App) *cobra.Command {
	var clearDraft bool

	cmd := &cobra.Command{
		Use:   "draft <peer> [text...]",
		Short: "Show or set the unsent draft for a conversation",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := engineFor(cmd, app)
			if err != nil {
				return writeErr(cmd, err)
			}
			convID, err := resolveConversation(e, args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			ctx := cmd.Context()
			if clearDraft || len(args) > 1 {
				text := ""
				if !clearDraft {
					text = strings.Join(args[1:], " ")
				}
				if err := e.Store().SetDraft(ctx, convID, text); err != nil {
					return writeErr(cmd, err)
				}
			}
			draft, err := e.Draft(ctx, convID)
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{
				"data": map[string]any{"convId": convID, "draft": draft},
			})
		},
	}
	cmd.Flags().BoolVar(&clearDraft, "clear", false, "Clear the draft")
	return cmd
}
