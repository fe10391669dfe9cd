package tui

import (
	"fmt"
	"io"
	"strings"
	"time"

	"hush-cli/internal/lifecycle"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	xansi "github.com/charmbracelet/x/ansi"
	"github.com/dustin/go-humanize"
)

// convItem is one sidebar row.
type convItem struct {
	ov lifecycle.Overview
}

func (i convItem) FilterValue() string { return i.Title() }

func (i convItem) Title() string {
	if name := strings.TrimSpace(i.ov.Contact.Name); name != "" {
		return name
	}
	return i.ov.Contact.ID
}

// Preview is the second row: typing beats draft beats the last message.
func (i convItem) Preview() string {
	switch {
	case i.ov.Typing:
		return "typing…"
	case strings.TrimSpace(i.ov.Draft) != "":
		return "Draft: " + oneLine(i.ov.Draft)
	case i.ov.Last != nil:
		return oneLine(i.ov.LastText)
	}
	return "No messages yet"
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

type convDelegate struct {
	now func() time.Time
}

func (d convDelegate) Height() int  { return 2 }
func (d convDelegate) Spacing() int { return 1 }
func (d convDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd {
	return nil
}

func (d convDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	it, ok := item.(convItem)
	width := m.Width()
	if !ok || width < 4 {
		return
	}

	title := it.Title()
	right := ""
	if it.ov.LastAt > 0 {
		right = humanize.RelTime(time.UnixMilli(it.ov.LastAt), d.now(), "ago", "from now")
	}
	if it.ov.Unread > 0 {
		badge := styleBadge().Render(fmt.Sprintf("%d", it.ov.Unread))
		if right != "" {
			right += " "
		}
		right += badge
		title = lipgloss.NewStyle().Bold(true).Render(title)
	}
	top := fitLine(title, right, width)

	preview := it.Preview()
	previewStyle := styleMuted()
	if it.ov.Typing {
		previewStyle = previewStyle.Italic(true)
	}
	bottom := previewStyle.Render(xansi.Truncate(preview, width, "…"))

	rowStyle := lipgloss.NewStyle().Width(width)
	if index == m.Index() {
		rowStyle = rowStyle.Background(colorSelectedBg).Foreground(colorSelectedFg)
	}
	fmt.Fprint(w, rowStyle.Render(top)+"\n"+rowStyle.Render(bottom))
}

// fitLine places left and right on one line of the given width, truncating left.
func fitLine(left, right string, width int) string {
	rw := xansi.StringWidth(right)
	lw := width - rw - 1
	if right == "" {
		lw = width
	}
	if lw < 1 {
		return xansi.Truncate(right, width, "")
	}
	left = xansi.Truncate(left, lw, "…")
	gap := width - xansi.StringWidth(left) - rw
	if gap < 0 {
		gap = 0
	}
	return left + strings.Repeat(" ", gap) + right
}

func newSidebar(now func() time.Time) list.Model {
	l := list.New(nil, convDelegate{now: now}, 0, 0)
	l.SetShowTitle(false)
	l.SetShowStatusBar(false)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)
	l.SetShowPagination(false)
	l.DisableQuitKeybindings()
	return l
}

func sidebarItems(rows []lifecycle.Overview) []list.Item {
	items := make([]list.Item, 0, len(rows))
	for _, ov := range rows {
		items = append(items, convItem{ov: ov})
	}
	return items
}
