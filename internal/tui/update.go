package tui

import (
	"strings"
	"time"

	"hush-cli/internal/perm"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
)

func (m appModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.layout()
		m.loadThread(true)
		m.markSeenIfAtBottom()
		return m, nil

	case eventMsg:
		m.drainEvents()
		m.refresh()
		return m, waitEvent(m.events)

	case storeChangedMsg:
		m.refresh()
		return m, waitStoreChange(m.changes)

	case undoExpiredMsg:
		if m.undo != nil && m.undo.MessageID() == msg.id {
			m.undo = nil
		}
		return m, nil

	case tea.KeyMsg:
		return m.updateKey(msg)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m appModel) updateKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	m.err = ""
	m.flash = ""

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.NextPane):
		m.cycleFocus(1)
		return m, nil
	case key.Matches(msg, m.keys.PrevPane):
		m.cycleFocus(-1)
		return m, nil
	case key.Matches(msg, m.keys.Cancel):
		m.cancel()
		return m, nil
	}

	switch m.focus {
	case paneSidebar:
		return m.updateSidebarKey(msg)
	case paneThread:
		return m.updateThreadKey(msg)
	}
	return m.updateInputKey(msg)
}

func (m *appModel) cycleFocus(dir int) {
	if m.activeID == "" {
		m.setFocus(paneSidebar)
		return
	}
	order := []pane{paneSidebar, paneInput, paneThread}
	i := 0
	for j, p := range order {
		if p == m.focus {
			i = j
		}
	}
	m.setFocus(order[(i+dir+len(order))%len(order)])
}

// cancel backs out of the innermost state: edit, then the undo toast, then panes.
func (m *appModel) cancel() {
	switch {
	case m.editingID != "":
		m.editingID = ""
		m.restoreDraft()
		m.renderThread()
	case m.undo != nil:
		m.undo.Dismiss(m.ctx)
		m.undo = nil
	case m.focus == paneThread:
		m.setFocus(paneInput)
	case m.focus == paneInput:
		m.setFocus(paneSidebar)
	}
}

func (m *appModel) restoreDraft() {
	draft, err := m.eng.Draft(m.ctx, m.activeID)
	if err != nil {
		m.setErr(err)
	}
	m.input.SetValue(draft)
	m.input.CursorEnd()
	m.lastInput = draft
}

func (m appModel) updateSidebarKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Open):
		if it, ok := m.sidebar.SelectedItem().(convItem); ok {
			m.openConversation(it.ov.Conversation.ID)
		}
		return m, nil
	case key.Matches(msg, m.keys.Undo):
		m.undoDelete()
		return m, nil
	case msg.String() == "q":
		return m, tea.Quit
	}
	var cmd tea.Cmd
	m.sidebar, cmd = m.sidebar.Update(msg)
	return m, cmd
}

func (m appModel) updateInputKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.activeID == "" {
		return m, nil
	}
	switch {
	case key.Matches(msg, m.keys.Send):
		m.submit()
		return m, nil
	case key.Matches(msg, m.keys.ScrollUp), key.Matches(msg, m.keys.ScrollDn):
		m.scroll(msg)
		return m, nil
	case key.Matches(msg, m.keys.SelectMsg), msg.Type == tea.KeyUp && m.input.Value() == "":
		m.setFocus(paneThread)
		m.scrollToSelected()
		return m, nil
	case msg.String() == "ctrl+z":
		m.undoDelete()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	if v := m.input.Value(); v != m.lastInput && m.editingID == "" {
		m.lastInput = v
		if err := m.eng.Input(m.ctx, m.activeID, v); err != nil {
			m.setErr(err)
		}
	}
	return m, cmd
}

// submit sends the composer text, or saves it as the edit of the message being edited.
func (m *appModel) submit() {
	text := m.input.Value()
	if m.editingID != "" {
		id := m.editingID
		m.editingID = ""
		res, err := m.eng.Edit(m.ctx, id, text)
		if err != nil {
			m.setErr(err)
		} else if res.Changed {
			m.flash = "Edited"
		}
		m.restoreDraft()
		m.loadThread(false)
		return
	}
	if strings.TrimSpace(text) == "" {
		return
	}

	res, err := m.eng.Send(m.ctx, m.activeID, text)
	if err != nil {
		m.setErr(err)
		return
	}
	m.input.Reset()
	m.lastInput = ""
	if !res.Accepted {
		m.flash = "Already sent"
	}
	m.page = 0
	m.loadRows()
	m.loadThread(true)
}

func (m appModel) updateThreadKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	n := len(m.slice.Messages)
	switch {
	case key.Matches(msg, m.keys.Up):
		if m.selected <= 0 && m.slice.HasMore {
			m.loadOlder()
		}
		if m.selected > 0 {
			m.selected--
		}
		m.renderThread()
		m.scrollToSelected()

	case key.Matches(msg, m.keys.Down):
		if m.selected >= n-1 {
			m.setFocus(paneInput)
			m.vp.GotoBottom()
			m.markSeenIfAtBottom()
			return m, nil
		}
		m.selected++
		m.renderThread()
		m.scrollToSelected()
		m.markSeenIfAtBottom()

	case key.Matches(msg, m.keys.Edit):
		m.startEdit()

	case key.Matches(msg, m.keys.Delete):
		cmd := m.deleteSelected()
		return m, cmd

	case key.Matches(msg, m.keys.Undo):
		m.undoDelete()

	case key.Matches(msg, m.keys.JumpNew):
		if line, ok := m.msgLines[m.unread.FirstID]; ok {
			m.vp.SetYOffset(line)
		}

	case key.Matches(msg, m.keys.Bottom):
		m.vp.GotoBottom()
		m.selected = n - 1
		m.renderThread()
		m.markSeenIfAtBottom()

	case key.Matches(msg, m.keys.Older):
		m.loadOlder()

	case key.Matches(msg, m.keys.ScrollUp), key.Matches(msg, m.keys.ScrollDn):
		m.scroll(msg)
	}
	return m, nil
}

// scroll pages the viewport; reaching the top pulls in the next older page and
// reaching the bottom marks the thread seen.
func (m *appModel) scroll(msg tea.KeyMsg) {
	m.vp, _ = m.vp.Update(msg)
	if m.vp.AtTop() {
		m.loadOlder()
	}
	m.markSeenIfAtBottom()
}

func (m *appModel) startEdit() {
	msg, ok := m.selectedMessage()
	if !ok {
		return
	}
	if !perm.CanEdit(m.eng.Me(), &msg) {
		m.flash = "Only your own messages can be edited"
		return
	}
	m.editingID = msg.ID
	m.setFocus(paneInput)
	m.input.SetValue(m.eng.Text(msg))
	m.input.CursorEnd()
	m.lastInput = m.input.Value()
}

func (m *appModel) deleteSelected() tea.Cmd {
	msg, ok := m.selectedMessage()
	if !ok {
		return nil
	}
	p, err := m.eng.Delete(m.ctx, msg.ID)
	if err != nil {
		m.setErr(err)
		return nil
	}
	m.loadRows()
	m.loadThread(false)
	if p == nil {
		return nil
	}
	m.undo = p
	id := p.MessageID()
	return tea.Tick(time.Until(p.ExpiresAt()), func(time.Time) tea.Msg {
		return undoExpiredMsg{id: id}
	})
}

func (m *appModel) undoDelete() {
	if m.undo == nil {
		return
	}
	p := m.undo
	m.undo = nil
	ok, err := p.Undo(m.ctx)
	switch {
	case err != nil:
		m.setErr(err)
	case ok:
		m.flash = "Restored"
	default:
		m.flash = "Too late to undo"
	}
	m.loadRows()
	m.loadThread(false)
}
