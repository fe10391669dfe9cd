package tui

import (
	"fmt"
	"strings"
	"time"

	"hush-cli/internal/cipher"
	"hush-cli/internal/model"
	"hush-cli/internal/statusutil"
	"hush-cli/internal/thread"

	"github.com/charmbracelet/lipgloss"
)

func (m *appModel) layout() {
	sw := sidebarWidth
	if m.width < 2*sidebarWidth {
		sw = m.width / 3
	}
	mainW := m.width - sw - 1
	if mainW < 10 {
		mainW = 10
	}
	m.sidebar.SetSize(sw, max(1, m.height-2))
	m.vp.Width = mainW
	m.vp.Height = max(1, m.height-4)
	m.input.Width = max(1, mainW-lipgloss.Width(m.input.Prompt)-1)
}

func (m *appModel) sidebarW() int { return m.sidebar.Width() }

// renderThread rebuilds the viewport content and records where each message starts.
func (m *appModel) renderThread() {
	m.msgLines = map[string]int{}
	w := max(20, m.vp.Width)
	if m.activeID == "" {
		m.vp.SetContent(lipgloss.PlaceHorizontal(w, lipgloss.Center, styleMuted().Render("Pick a conversation")))
		return
	}

	var lines []string
	emit := func(s string) { lines = append(lines, strings.Split(s, "\n")...) }

	if m.slice.HasMore {
		emit(center(styleMuted().Render("↑ older messages (o)"), w))
	}
	if len(m.slice.Messages) == 0 {
		emit(center(styleMuted().Render("No messages yet"), w))
	}

	idx := 0
	for _, g := range thread.GroupByDay(m.slice.Messages, m.now(), time.Local) {
		emit(center(styleChrome().Render("─ "+g.Label+" ─"), w))
		for _, msg := range g.Messages {
			if msg.ID == m.unread.FirstID {
				emit(center(styleDivider().Render(fmt.Sprintf("── %d new ──", m.unread.Count)), w))
			}
			m.msgLines[msg.ID] = len(lines)
			emit(m.renderMessage(msg, idx == m.selected, w))
			idx++
		}
	}
	m.vp.SetContent(strings.Join(lines, "\n"))
}

func center(s string, w int) string {
	return lipgloss.PlaceHorizontal(w, lipgloss.Center, s)
}

func (m *appModel) renderMessage(msg model.Message, selected bool, width int) string {
	mine := msg.From == m.eng.Me()
	maxW := width * 3 / 4
	if maxW < 16 {
		maxW = width
	}

	text := m.eng.Text(msg)
	var body string
	if text == cipher.Undecryptable {
		body = styleMuted().Italic(true).Render(text)
	} else {
		body = renderBody(text, maxW-4)
	}

	meta := time.UnixMilli(msg.CreatedAt).In(time.Local).Format("15:04")
	if msg.EditedAt != nil {
		meta += " · edited"
	}
	if mine {
		meta += " " + statusutil.Glyph(msg.Status)
	}
	if msg.ID == m.editingID {
		meta += " · editing"
	}

	bubble := styleBubble(mine, selected).MaxWidth(maxW).Render(body + "\n" + styleMuted().Render(meta))
	pos := lipgloss.Left
	if mine {
		pos = lipgloss.Right
	}
	return lipgloss.PlaceHorizontal(width, pos, bubble)
}

// scrollToSelected keeps the selected message inside the viewport.
func (m *appModel) scrollToSelected() {
	msg, ok := m.selectedMessage()
	if !ok {
		return
	}
	line, ok := m.msgLines[msg.ID]
	if !ok {
		return
	}
	switch {
	case line < m.vp.YOffset:
		m.vp.SetYOffset(line)
	case line >= m.vp.YOffset+m.vp.Height:
		m.vp.SetYOffset(line - m.vp.Height + 3)
	}
}

func (m appModel) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}
	side := stylePane(m.focus == paneSidebar).
		Width(m.sidebarW()).
		Height(m.height - 1).
		Render(styleHeader().Render("Chats") + "\n" + m.sidebar.View())

	main := lipgloss.JoinVertical(lipgloss.Left,
		m.headerView(),
		m.vp.View(),
		m.typingView(),
		m.input.View(),
	)
	return lipgloss.JoinVertical(lipgloss.Left,
		lipgloss.JoinHorizontal(lipgloss.Top, side, main),
		m.statusView(),
	)
}

func (m appModel) headerView() string {
	if m.activeID == "" {
		return styleHeader().Render("hush")
	}
	name := m.activeID
	for _, r := range m.rows {
		if r.Conversation.ID == m.activeID {
			name = convItem{ov: r}.Title()
		}
	}
	h := styleHeader().Render(name)
	if m.unread.Count > 0 {
		h += " " + styleBadge().Render(fmt.Sprintf("%d new", m.unread.Count))
	}
	if m.slice.Total > 0 {
		h += styleMuted().Render(fmt.Sprintf("  %d/%d", len(m.slice.Messages), m.slice.Total))
	}
	return h
}

func (m appModel) typingView() string {
	if !m.typing {
		return ""
	}
	return styleMuted().Italic(true).Render("typing…")
}

func (m appModel) statusView() string {
	switch {
	case m.err != "":
		return styleError().Render(m.err)
	case m.undo != nil:
		return styleToast().Render("Message deleted") + styleMuted().Render("  u undo · esc dismiss")
	case m.flash != "":
		return styleToast().Render(m.flash)
	}
	switch m.focus {
	case paneSidebar:
		return styleMuted().Render("↑/↓ choose · enter open · tab compose · q quit")
	case paneThread:
		return styleMuted().Render("↑/↓ select · e edit · d delete · n first new · o older · esc back")
	}
	if m.editingID != "" {
		return styleMuted().Render("enter save edit · esc cancel")
	}
	return styleMuted().Render("enter send · ↑ select · tab messages · esc chats")
}
