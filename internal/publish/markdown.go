package publish

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"hush-cli/internal/model"
	"hush-cli/internal/thread"
)

type RenderOptions struct {
	Me string
	// Loc is the zone day headings and times are rendered in; nil means UTC.
	Loc *time.Location
	// Text decrypts a message body.
	Text func(model.Message) string
}

// RenderTranscriptMarkdown renders the visible messages of one conversation as a
// Markdown transcript with one section per calendar day.
func RenderTranscriptMarkdown(conv model.Conversation, peer model.Contact, messages []model.Message, opt RenderOptions) (string, error) {
	if opt.Text == nil {
		return "", fmt.Errorf("missing text decoder")
	}
	loc := opt.Loc
	if loc == nil {
		loc = time.UTC
	}

	var buf bytes.Buffer
	writeLn := func(s string) {
		buf.WriteString(s)
		buf.WriteString("\n")
	}

	name := displayName(peer)
	writeLn("# Conversation with " + name)
	writeLn("")
	writeLn("## Meta")
	writeLn("")
	writeLn("- Conversation: " + conv.ID)
	writeLn("- Peer: " + peer.ID)

	visible := thread.Visible(messages, conv.ID)
	writeLn(fmt.Sprintf("- Messages: %d", len(visible)))
	if len(visible) == 0 {
		return buf.String(), nil
	}
	first := time.UnixMilli(visible[0].CreatedAt).In(loc)
	last := time.UnixMilli(visible[len(visible)-1].CreatedAt).In(loc)
	writeLn("- From: " + first.Format(time.RFC3339))
	writeLn("- To: " + last.Format(time.RFC3339))

	day := ""
	for _, m := range visible {
		at := time.UnixMilli(m.CreatedAt).In(loc)
		if d := at.Format("2006-01-02 (Mon)"); d != day {
			day = d
			writeLn("")
			writeLn("## " + d)
		}
		who := name
		if m.From == opt.Me {
			who = "Me"
		}
		writeLn("")
		head := fmt.Sprintf("**%s** · %s", who, at.Format("15:04"))
		if m.EditedAt != nil {
			head += " · edited"
		}
		if m.From == opt.Me {
			head += " · " + string(m.Status)
		}
		writeLn(head)
		writeLn("")
		writeLn(quote(opt.Text(m)))
	}
	return buf.String(), nil
}

func displayName(c model.Contact) string {
	if n := strings.TrimSpace(c.Name); n != "" {
		return n
	}
	return c.ID
}

// quote renders a body as a blockquote so multi-line text stays one block.
func quote(s string) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	for i, ln := range lines {
		if ln == "" {
			lines[i] = ">"
			continue
		}
		lines[i] = "> " + ln
	}
	return strings.Join(lines, "\n")
}
