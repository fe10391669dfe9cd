package cli

import (
	"errors"
	"time"

	"hush-cli/internal/publish"

	"github.com/spf13/cobra"
)

func newPublishCmd(app *App) *cobra.Command {
	var (
		to        string
		all       bool
		overwrite bool
	)

	cmd := &cobra.Command{
		Use:   "publish [peer...]",
		Short: "Write decrypted Markdown transcripts (one file per conversation)",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := engineFor(cmd, app)
			if err != nil {
				return writeErr(cmd, err)
			}
			snap, err := e.Snapshot(cmd.Context())
			if err != nil {
				return writeErr(cmd, err)
			}

			var ids []string
			if all {
				for _, c := range snap.Conversations {
					ids = append(ids, c.ID)
				}
			}
			for _, peer := range args {
				id, err := resolveConversation(e, peer)
				if err != nil {
					return writeErr(cmd, err)
				}
				ids = append(ids, id)
			}
			if len(ids) == 0 {
				return writeErr(cmd, errors.New("nothing to publish: pass a peer or --all"))
			}

			res, err := publish.WriteConversations(snap, e.Contact, ids, to, publish.WriteOptions{
				Overwrite: overwrite,
				Render: publish.RenderOptions{
					Me:   e.Me(),
					Loc:  time.Local,
					Text: e.Text,
				},
			})
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": res})
		},
	}
	cmd.Flags().StringVar(&to, "to", "", "Output directory")
	cmd.Flags().BoolVar(&all, "all", false, "Publish every conversation")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Replace existing files")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}
