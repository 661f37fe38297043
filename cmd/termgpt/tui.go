package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/termgpt/termgpt/pkg/runner"
	"github.com/termgpt/termgpt/pkg/session"
	"github.com/termgpt/termgpt/pkg/store"
)

var (
	activeTabStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5")).
			Background(lipgloss.Color("#25A065")).
			Padding(0, 1)

	inactiveTabStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("244")).
				Padding(0, 1)

	userStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("2")).
			Bold(true)

	assistantStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("5")).
			Bold(true)

	systemStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Italic(true)

	noticeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("11")).
			Padding(0, 1)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))
)

type settleMsg session.Settle
type warnMsg string

type appModel struct {
	ctx   context.Context
	reg   *session.Registry
	coord *runner.Coordinator

	viewport viewport.Model
	textarea textarea.Model
	renderer *glamour.TermRenderer

	width    int
	height   int
	notice   string
	copyMode bool
}

func initialModel(ctx context.Context, reg *session.Registry, coord *runner.Coordinator) appModel {
	ta := textarea.New()
	ta.Placeholder = "Send a message..."
	ta.Focus()
	ta.Prompt = "┃ "
	ta.SetWidth(80)
	ta.SetHeight(3)
	ta.FocusedStyle.CursorLine = lipgloss.NewStyle()
	ta.ShowLineNumbers = false

	vp := viewport.New(80, 20)

	// Standard style avoids terminal queries that leak into input.
	r, _ := glamour.NewTermRenderer(
		glamour.WithStandardStyle("light"),
		glamour.WithWordWrap(80),
	)

	m := appModel{
		ctx:      ctx,
		reg:      reg,
		coord:    coord,
		viewport: vp,
		textarea: ta,
		renderer: r,
	}
	m.refreshTranscript()
	return m
}

func (m appModel) Init() tea.Cmd {
	return tea.Batch(
		textarea.Blink,
		waitForSettle(m.coord.Results()),
		waitForWarning(m.reg.Warnings()),
	)
}

func waitForSettle(ch <-chan session.Settle) tea.Cmd {
	return func() tea.Msg {
		res, ok := <-ch
		if !ok {
			return nil
		}
		return settleMsg(res)
	}
}

func waitForWarning(ch <-chan string) tea.Cmd {
	return func() tea.Msg {
		w, ok := <-ch
		if !ok {
			return nil
		}
		return warnMsg(w)
	}
}

func (m appModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.viewport.Width = msg.Width
		m.textarea.SetWidth(msg.Width)
		m.viewport.Height = msg.Height - m.textarea.Height() - 4
		if m.viewport.Height < 0 {
			m.viewport.Height = 0
		}
		m.renderer, _ = glamour.NewTermRenderer(
			glamour.WithStandardStyle("light"),
			glamour.WithWordWrap(m.width-4),
		)
		m.refreshTranscript()

	case tea.KeyMsg:
		m.notice = ""
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit
		case "esc":
			if m.copyMode {
				m.copyMode = false
				m.refreshTranscript()
				return m, nil
			}
			return m, tea.Quit
		case "ctrl+n":
			return m.newChat()
		case "ctrl+w":
			return m.deleteChat(m.reg.ActiveID())
		case "ctrl+o":
			return m.cycleTab(1)
		case "ctrl+p":
			return m.cycleTab(-1)
		case "ctrl+y":
			m.copyMode = !m.copyMode
			m.refreshTranscript()
			return m, nil
		case "enter":
			if m.copyMode {
				return m, nil
			}
			return m.send()
		default:
			if !m.copyMode {
				var taCmd tea.Cmd
				m.textarea, taCmd = m.textarea.Update(msg)
				cmds = append(cmds, taCmd)
			}
		}

	case settleMsg:
		if m.reg.Settle(session.Settle(msg)) {
			m.refreshTranscript()
		}
		cmds = append(cmds, waitForSettle(m.coord.Results()))

	case warnMsg:
		m.notice = string(msg)
		cmds = append(cmds, waitForWarning(m.reg.Warnings()))
	}

	var vpCmd tea.Cmd
	m.viewport, vpCmd = m.viewport.Update(msg)
	cmds = append(cmds, vpCmd)

	return m, tea.Batch(cmds...)
}

func (m appModel) View() string {
	tabBar := m.renderTabs()

	var footer string
	if m.copyMode {
		footer = helpStyle.Render("copy mode — select text with the mouse, esc to return")
	} else {
		footer = m.textarea.View()
	}

	var noticeView string
	if m.notice != "" {
		noticeView = noticeStyle.Width(m.width).Render(m.notice)
	}

	return lipgloss.JoinVertical(
		lipgloss.Left,
		tabBar,
		"",
		m.viewport.View(),
		noticeView,
		footer,
		helpStyle.Render("enter: send  ctrl+n: new  ctrl+w: close  ctrl+o/p: tabs  ctrl+y: copy  ctrl+c: quit"),
	)
}

func (m *appModel) renderTabs() string {
	var cells []string
	active := m.reg.ActiveID()
	for _, tab := range m.reg.Tabs() {
		label := tab.Title
		if tab.Pending {
			label += " …"
		}
		if tab.ID == active {
			cells = append(cells, activeTabStyle.Render(label))
		} else {
			cells = append(cells, inactiveTabStyle.Render(label))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, cells...)
}

// Actions

func (m appModel) newChat() (appModel, tea.Cmd) {
	if _, err := m.reg.Create(); err != nil {
		m.notice = fmt.Sprintf("Couldn't create chat: %v", err)
		return m, nil
	}
	m.refreshTranscript()
	return m, nil
}

func (m appModel) deleteChat(id string) (appModel, tea.Cmd) {
	if err := m.reg.DeleteSession(id); err != nil {
		m.notice = fmt.Sprintf("Couldn't delete chat: %v", err)
		return m, nil
	}
	m.refreshTranscript()
	return m, nil
}

func (m appModel) cycleTab(dir int) (appModel, tea.Cmd) {
	tabs := m.reg.Tabs()
	if len(tabs) < 2 {
		return m, nil
	}
	active := m.reg.ActiveID()
	for i, tab := range tabs {
		if tab.ID == active {
			next := (i + dir + len(tabs)) % len(tabs)
			m.reg.SwitchActive(tabs[next].ID)
			break
		}
	}
	m.refreshTranscript()
	return m, nil
}

func (m appModel) send() (appModel, tea.Cmd) {
	text := strings.TrimSpace(m.textarea.Value())
	if text == "" {
		return m, nil
	}
	m.textarea.Reset()

	switch {
	case text == "/new":
		return m.newChat()
	case text == "/close" || text == "/delete":
		return m.deleteChat(m.reg.ActiveID())
	case text == "/copy":
		m.copyMode = true
		m.refreshTranscript()
		return m, nil
	case strings.HasPrefix(text, "/rename"):
		title := strings.TrimSpace(strings.TrimPrefix(text, "/rename"))
		m.reg.Rename(m.reg.ActiveID(), title)
		return m, nil
	}

	err := m.coord.Send(m.ctx, m.reg.ActiveID(), text)
	switch {
	case errors.Is(err, session.ErrBusy):
		m.notice = "Still waiting on a reply in this chat."
	case errors.Is(err, session.ErrNotFound):
		m.notice = "That chat no longer exists."
	case err != nil:
		m.notice = fmt.Sprintf("Couldn't send: %v", err)
	}

	m.refreshTranscript()
	return m, nil
}

// Rendering

func (m *appModel) refreshTranscript() {
	snap, ok := m.reg.Snapshot(m.reg.ActiveID())
	if !ok {
		m.viewport.SetContent("")
		return
	}

	if m.copyMode {
		m.viewport.SetContent(plainTranscript(snap))
		m.viewport.GotoTop()
		return
	}

	var sb strings.Builder
	if len(snap.Messages) == 0 {
		sb.WriteString(systemStyle.Render("New chat started. Press Enter to send."))
		sb.WriteString("\n")
	}
	for _, msg := range snap.Messages {
		switch msg.Role {
		case store.RoleUser:
			sb.WriteString(userStyle.Render("You:"))
			sb.WriteString("\n")
			sb.WriteString(m.renderMarkdown(msg.Content))
		case store.RoleAssistant:
			sb.WriteString(assistantStyle.Render("AI:"))
			sb.WriteString("\n")
			sb.WriteString(m.renderMarkdown(msg.Content))
		default:
			sb.WriteString(systemStyle.Render(msg.Content))
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}
	if snap.Pending {
		sb.WriteString(systemStyle.Render("Thinking…"))
		sb.WriteString("\n")
	}

	m.viewport.SetContent(sb.String())
	m.viewport.GotoBottom()
}

func (m *appModel) renderMarkdown(raw string) string {
	if m.renderer == nil {
		return raw
	}
	rendered, err := m.renderer.Render(raw)
	if err != nil {
		return raw
	}
	return rendered
}

// plainTranscript builds the unstyled ROLE: content view used by copy mode.
func plainTranscript(snap session.Snapshot) string {
	if len(snap.Messages) == 0 {
		return "(empty)"
	}
	var lines []string
	for _, msg := range snap.Messages {
		lines = append(lines, fmt.Sprintf("%s: %s", strings.ToUpper(string(msg.Role)), msg.Content))
	}
	return strings.Join(lines, "\n\n")
}
