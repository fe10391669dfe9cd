package cli

import (
	"strings"

	"github.com/spf13/cobra"
)

func newEditCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "edit <message-id> <text...>",
		Short: "Replace the text of one of your messages",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := engineFor(cmd, app)
			if err != nil {
				return writeErr(cmd, err)
			}
			res, err := e.Edit(cmd.Context(), args[0], strings.Join(args[1:], " "))
			if err != nil {
				return writeErr(cmd, err)
			}
			if res.Message == nil {
				return writeErr(cmd, errNotFound("message", args[0]))
			}
			return writeOut(cmd, app, map[string]any{
				"data": toMessageView(e, *res.Message),
				"meta": map[string]any{"changed": res.Changed},
			})
		},
	}
}

func newDeleteCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <message-id>",
		Short: "Delete a message (undoable for a few seconds with `hush undo`)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := engineFor(cmd, app)
			if err != nil {
				return writeErr(cmd, err)
			}
			p, err := e.Delete(cmd.Context(), args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			if p == nil {
				return writeOut(cmd, app, map[string]any{
					"data": map[string]any{"id": args[0], "deleted": false},
				})
			}
			// The undo window outlives this process through the persisted undo record.
			return writeOut(cmd, app, map[string]any{
				"data":   map[string]any{"id": p.MessageID(), "deleted": true, "undoUntil": p.ExpiresAt().UnixMilli()},
				"_hints": []string{"hush undo " + p.MessageID()},
			})
		},
	}
}

func newUndoCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "undo <message-id>",
		Short: "Restore a message deleted within the undo window",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := engineFor(cmd, app)
			if err != nil {
				return writeErr(cmd, err)
			}
			ok, err := e.UndoByID(cmd.Context(), args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{
				"data": map[string]any{"id": args[0], "restored": ok},
			})
		},
	}
}
