package cli

import (
	"github.com/spf13/cobra"
)

func newConversationsCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:     "conversations",
		Aliases: []string{"convs", "ls"},
		Short:   "List conversations with unread counts and previews",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := engineFor(cmd, app)
			if err != nil {
				return writeErr(cmd, err)
			}
			rows, err := e.Conversations(cmd.Context())
			if err != nil {
				return writeErr(cmd, err)
			}
			unread := 0
			for _, r := range rows {
				unread += r.Unread
			}
			return writeOut(cmd, app, map[string]any{
				"data": toConversationList(rows),
				"meta": map[string]any{"count": len(rows), "unread": unread},
			})
		},
	}
}
