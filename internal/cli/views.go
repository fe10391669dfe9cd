package cli

import (
	"fmt"
	"strings"
	"time"

	"hush-cli/internal/lifecycle"
	"hush-cli/internal/model"
	"hush-cli/internal/statusutil"
	"hush-cli/internal/thread"

	"github.com/dustin/go-humanize"
)

type messageView struct {
	ID        string       `json:"id"`
	ConvID    string       `json:"convId"`
	From      string       `json:"from"`
	To        string       `json:"to"`
	Body      string       `json:"text"`
	Status    model.Status `json:"status"`
	Mine      bool         `json:"mine"`
	CreatedAt int64        `json:"createdAt"`
	EditedAt  *int64       `json:"editedAt,omitempty"`
	SeenAt    *int64       `json:"seenAt,omitempty"`
}

func toMessageView(e *lifecycle.Engine, m model.Message) messageView {
	return messageView{
		ID:        m.ID,
		ConvID:    m.ConvID,
		From:      m.From,
		To:        m.To,
		Body:      e.Text(m),
		Status:    m.Status,
		Mine:      m.From == e.Me(),
		CreatedAt: m.CreatedAt,
		EditedAt:  m.EditedAt,
		SeenAt:    m.SeenAt,
	}
}

func (v messageView) line() string {
	at := time.UnixMilli(v.CreatedAt).Local().Format("15:04")
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s: %s", at, v.From, v.Body)
	if v.EditedAt != nil {
		b.WriteString(" (edited)")
	}
	if v.Mine {
		b.WriteString("  " + statusutil.Glyph(v.Status))
	}
	fmt.Fprintf(&b, "  %s", v.ID)
	return b.String()
}

func (v messageView) Text() string { return v.line() }

type threadView struct {
	ConvID   string        `json:"convId"`
	Messages []messageView `json:"messages"`
	Total    int           `json:"total"`
	Page     int           `json:"page"`
	HasMore  bool          `json:"hasMore"`

	src []model.Message
	now time.Time
}

func toThreadView(e *lifecycle.Engine, convID string, s thread.Slice, now time.Time) threadView {
	out := threadView{ConvID: convID, Messages: []messageView{}, Total: s.Total, Page: s.Page, HasMore: s.HasMore, src: s.Messages, now: now}
	for _, m := range s.Messages {
		out.Messages = append(out.Messages, toMessageView(e, m))
	}
	return out
}

// Text renders the window grouped by calendar day.
func (v threadView) Text() string {
	if len(v.Messages) == 0 {
		return "(no messages)"
	}
	byID := make(map[string]messageView, len(v.Messages))
	for _, m := range v.Messages {
		byID[m.ID] = m
	}
	var b strings.Builder
	if v.HasMore {
		fmt.Fprintf(&b, "… %d older (use --page %d)\n", v.Total-len(v.Messages), v.Page+1)
	}
	for _, g := range thread.GroupByDay(v.src, v.now, time.Local) {
		fmt.Fprintf(&b, "── %s ──\n", g.Label)
		for _, m := range g.Messages {
			b.WriteString(byID[m.ID].line())
			b.WriteByte('\n')
		}
	}
	return b.String()
}

type conversationRow struct {
	ID       string `json:"id"`
	PeerID   string `json:"peerId"`
	Name     string `json:"name"`
	Unread   int    `json:"unread"`
	Typing   bool   `json:"typing"`
	LastText string `json:"lastText,omitempty"`
	LastAt   int64  `json:"lastAt,omitempty"`
	Draft    string `json:"draft,omitempty"`
}

type conversationList []conversationRow

func toConversationList(rows []lifecycle.Overview) conversationList {
	out := conversationList{}
	for _, r := range rows {
		out = append(out, conversationRow{
			ID:       r.Conversation.ID,
			PeerID:   r.Conversation.PeerID,
			Name:     r.Contact.Name,
			Unread:   r.Unread,
			Typing:   r.Typing,
			LastText: r.LastText,
			LastAt:   r.LastAt,
			Draft:    r.Draft,
		})
	}
	return out
}

func (l conversationList) Text() string {
	var b strings.Builder
	for _, r := range l {
		name := r.Name
		if name == "" {
			name = r.PeerID
		}
		fmt.Fprintf(&b, "%-10s", name)
		if r.Unread > 0 {
			fmt.Fprintf(&b, " (%d)", r.Unread)
		}
		switch {
		case r.Draft != "":
			fmt.Fprintf(&b, "  draft: %s", r.Draft)
		case r.LastText != "":
			fmt.Fprintf(&b, "  %s · %s", r.LastText, humanize.Time(time.UnixMilli(r.LastAt)))
		}
		b.WriteByte('\n')
	}
	return b.String()
}
