package cli

import (
	"fmt"
	"time"

	"hush-cli/internal/clock"
	"hush-cli/internal/model"
	"hush-cli/internal/statusutil"

	"github.com/spf13/cobra"
)

func now(app *App) time.Time {
	if app.clock != nil {
		return app.clock.Now()
	}
	return clock.Real().Now()
}

func newMessagesCmd(app *App) *cobra.Command {
	var (
		page   int
		status string
	)

	cmd := &cobra.Command{
		Use:   "messages <peer>",
		Short: "Show the visible window of a conversation (decrypted)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := engineFor(cmd, app)
			if err != nil {
				return writeErr(cmd, err)
			}
			convID, err := resolveConversation(e, args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			want, err := statusutil.ParseStatus(status)
			if err != nil {
				return writeErr(cmd, err)
			}
			slice, err := e.Page(cmd.Context(), convID, page)
			if err != nil {
				return writeErr(cmd, err)
			}
			if want != "" {
				slice.Messages = filterStatus(slice.Messages, want)
			}
			var hints []string
			if slice.HasMore {
				hints = append(hints, fmt.Sprintf("hush messages %s --page %d", args[0], page+1))
			}
			return writeOut(cmd, app, map[string]any{
				"data":   toThreadView(e, convID, slice, now(app)),
				"meta":   map[string]any{"total": slice.Total, "page": slice.Page, "hasMore": slice.HasMore},
				"_hints": hints,
			})
		},
	}
	cmd.Flags().IntVar(&page, "page", 0, "Page index (0 = newest page; each page reaches further back)")
	cmd.Flags().StringVar(&status, "status", "", "Only messages with this status within the page (sent|delivered|seen)")
	return cmd
}

func filterStatus(ms []model.Message, want model.Status) []model.Message {
	out := []model.Message{}
	for _, m := range ms {
		if m.Status == want {
			out = append(out, m)
		}
	}
	return out
}

type unreadView struct {
	Count    int           `json:"count"`
	FirstID  string        `json:"firstId,omitempty"`
	Messages []messageView `json:"messages"`
}

func (v unreadView) Text() string {
	if v.Count == 0 {
		return "no unread messages"
	}
	s := fmt.Sprintf("%d unread\n", v.Count)
	for _, m := range v.Messages {
		s += m.line() + "\n"
	}
	return s
}

func newUnreadCmd(app *App) *cobra.Command {
	var page int

	cmd := &cobra.Command{
		Use:   "unread <peer>",
		Short: "Show unread messages in the visible window",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := engineFor(cmd, app)
			if err != nil {
				return writeErr(cmd, err)
			}
			convID, err := resolveConversation(e, args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			sum, err := e.Unread(cmd.Context(), convID, page)
			if err != nil {
				return writeErr(cmd, err)
			}
			out := unreadView{Count: sum.Count, FirstID: sum.FirstID, Messages: []messageView{}}
			for _, m := range sum.Messages {
				out.Messages = append(out.Messages, toMessageView(e, m))
			}
			var hints []string
			if sum.Count > 0 {
				hints = append(hints, "hush seen "+args[0])
			}
			return writeOut(cmd, app, map[string]any{"data": out, "_hints": hints})
		},
	}
	cmd.Flags().IntVar(&page, "page", 0, "Page index the unread set is computed over")
	return cmd
}

func newSeenCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "seen <peer>",
		Short: "Mark every peer message in the conversation as seen",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := engineFor(cmd, app)
			if err != nil {
				return writeErr(cmd, err)
			}
			convID, err := resolveConversation(e, args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			n, err := e.BulkMarkSeen(cmd.Context(), convID)
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{
				"data": map[string]any{"convId": convID, "changed": n, "status": model.StatusSeen},
			})
		},
	}
}
