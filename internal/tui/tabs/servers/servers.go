package servers

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/kevensen/conductor-chat/internal/feed"
	"github.com/kevensen/conductor-chat/internal/logging"
	"github.com/kevensen/conductor-chat/internal/settings"
	"github.com/kevensen/conductor-chat/internal/toolservers"
	"github.com/kevensen/conductor-chat/internal/tui/connection"
)

// Form fields of the add form
const (
	urlField = iota
	nameField
	formFields
)

// Model represents the tool servers tab
type Model struct {
	session       *settings.Session
	selectedIndex int
	statuses      map[string]connection.Status
	lastErrors    map[string]error

	// Tool names the conductor reported, keyed by toolURLKey; nil until the first report
	tools    map[string][]string
	reported []feed.ToolList

	showAddForm  bool
	editingField int
	urlInput     textinput.Model
	nameInput    textinput.Model

	width     int
	height    int
	lastError error
	ctx       context.Context
	logger    *logging.Logger
}

// NewModel creates the tool servers tab over the shared settings session
func NewModel(session *settings.Session) Model {
	urlInput := textinput.New()
	urlInput.Placeholder = "http://localhost:8080/mcp"
	urlInput.Prompt = ""
	urlInput.CharLimit = 512

	nameInput := textinput.New()
	nameInput.Placeholder = "optional"
	nameInput.Prompt = ""
	nameInput.CharLimit = 128

	return Model{
		session:    session,
		statuses:   make(map[string]connection.Status),
		lastErrors: make(map[string]error),
		urlInput:   urlInput,
		nameInput:  nameInput,
		ctx:        context.Background(),
		logger:     logging.WithComponent("servers_tab"),
	}
}

// WithContext bounds tool server checks by ctx
func (m Model) WithContext(ctx context.Context) Model {
	m.ctx = ctx
	return m
}

// SetTools replaces the tool lists with the conductor's latest report
func (m Model) SetTools(lists []feed.ToolList) Model {
	m.tools = make(map[string][]string, len(lists))
	m.reported = lists
	for _, l := range lists {
		key := toolURLKey(l.Server)
		m.tools[key] = append(m.tools[key], l.Names...)
	}
	return m
}

// Tools returns the tool names the conductor reported for a server URL. ok is false
// when the conductor has not listed that server.
func (m Model) Tools(url string) (names []string, ok bool) {
	names, ok = m.tools[toolURLKey(url)]
	return names, ok
}

// toolURLKey matches configured URLs against the ones the conductor reports, which may
// differ in surrounding space or a trailing slash
func toolURLKey(url string) string {
	return strings.TrimRight(strings.TrimSpace(url), "/")
}

// Init probes every configured server
func (m Model) Init() tea.Cmd {
	return m.probeAll()
}

// Servers returns the configured tool servers in order
func (m Model) Servers() []toolservers.ToolServer {
	return m.session.Current().ToolServers
}

// Status returns the last probe result for a server id
func (m Model) Status(id string) connection.Status {
	return m.statuses[id]
}

// SelectedIndex returns the highlighted row
func (m Model) SelectedIndex() int {
	return m.selectedIndex
}

// LastError returns the error shown above the list
func (m Model) LastError() error {
	return m.lastError
}

// IsInFormMode returns true while the add form has focus
func (m Model) IsInFormMode() bool {
	return m.showAddForm
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		inputWidth := max(m.width-20, 20)
		m.urlInput.Width = inputWidth
		m.nameInput.Width = inputWidth
		return m, nil

	case connection.CheckMsg:
		if toolservers.Index(m.Servers(), msg.Server) < 0 {
			return m, nil
		}
		m.statuses[msg.Server] = msg.Status
		if msg.Error != nil {
			m.lastErrors[msg.Server] = msg.Error
			m.logger.Debug("Tool server probe failed", "id", msg.Server, "error", msg.Error)
		} else {
			delete(m.lastErrors, msg.Server)
		}
		return m, nil

	case tea.KeyMsg:
		if m.showAddForm {
			return m.handleAddFormKeys(msg)
		}
		return m.handleNormalKeys(msg)
	}

	return m, nil
}

// handleNormalKeys handles keyboard input in list mode
func (m Model) handleNormalKeys(msg tea.KeyMsg) (Model, tea.Cmd) {
	list := m.Servers()

	switch msg.String() {
	case "up", "k":
		if m.selectedIndex > 0 {
			m.selectedIndex--
		}

	case "down", "j":
		if m.selectedIndex < len(list)-1 {
			m.selectedIndex++
		}

	case "a":
		return m.openAddForm()

	case "d", "delete":
		if m.selectedIndex < len(list) {
			return m.removeServer(list[m.selectedIndex])
		}

	case "r":
		return m, m.probeAll()

	case "c":
		m.lastError = nil
	}

	return m, nil
}

func (m Model) openAddForm() (Model, tea.Cmd) {
	m.showAddForm = true
	m.lastError = nil
	m.urlInput.SetValue("")
	m.nameInput.SetValue("")
	return m.focusField(urlField)
}

func (m Model) closeAddForm() Model {
	m.showAddForm = false
	m.urlInput.Blur()
	m.nameInput.Blur()
	return m
}

func (m Model) focusField(field int) (Model, tea.Cmd) {
	m.editingField = field
	if field == urlField {
		m.nameInput.Blur()
		cmd := m.urlInput.Focus()
		return m, cmd
	}
	m.urlInput.Blur()
	cmd := m.nameInput.Focus()
	return m, cmd
}

// handleAddFormKeys handles keyboard input while adding a server
func (m Model) handleAddFormKeys(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.logger.Debug("Add tool server cancelled")
		return m.closeAddForm(), nil

	case "tab", "down":
		return m.focusField((m.editingField + 1) % formFields)

	case "shift+tab", "up":
		return m.focusField((m.editingField - 1 + formFields) % formFields)

	case "enter":
		if m.editingField == urlField {
			return m.focusField(nameField)
		}
		return m.addServer()
	}

	var cmd tea.Cmd
	if m.editingField == urlField {
		m.urlInput, cmd = m.urlInput.Update(msg)
	} else {
		m.nameInput, cmd = m.nameInput.Update(msg)
	}
	return m, cmd
}

func (m Model) addServer() (Model, tea.Cmd) {
	server, err := m.session.AddToolServer(m.urlInput.Value(), m.nameInput.Value())
	if err != nil {
		m.lastError = err
		m.logger.Debug("Rejected tool server", "error", err)
		// Back to the URL, the only field that can be rejected
		return m.focusField(urlField)
	}

	m = m.closeAddForm()
	m.lastError = nil
	m.selectedIndex = len(m.Servers()) - 1
	m.statuses[server.ID] = connection.StatusChecking
	return m, connection.ToolServerStatus(m.ctx, server.ID, server.URL)
}

func (m Model) removeServer(server toolservers.ToolServer) (Model, tea.Cmd) {
	removed, err := m.session.RemoveToolServer(server.ID)
	if err != nil {
		m.lastError = err
		return m, nil
	}
	if removed {
		delete(m.statuses, server.ID)
		delete(m.lastErrors, server.ID)
	}
	if n := len(m.Servers()); m.selectedIndex >= n {
		m.selectedIndex = max(n-1, 0)
	}
	return m, nil
}

func (m Model) probeAll() tea.Cmd {
	list := m.Servers()
	if len(list) == 0 {
		return nil
	}
	cmds := make([]tea.Cmd, 0, len(list))
	for _, s := range list {
		m.statuses[s.ID] = connection.StatusChecking
		cmds = append(cmds, connection.ToolServerStatus(m.ctx, s.ID, s.URL))
	}
	return tea.Batch(cmds...)
}

// View renders the tool servers tab
func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	var s strings.Builder

	s.WriteString(lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("205")).
		Render("Tool Servers"))
	s.WriteString("\n")

	helpStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	if m.showAddForm {
		s.WriteString(helpStyle.Render("Tab: next field, Enter: next/save, Esc: cancel"))
	} else {
		s.WriteString(helpStyle.Render("a: add, d: delete, r: re-check, c: clear error"))
	}
	s.WriteString("\n")

	if m.lastError != nil {
		s.WriteString(lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true).
			Render("Error: " + m.lastError.Error()))
		s.WriteString("\n")
	}

	list := m.Servers()
	if len(list) == 0 {
		s.WriteString(helpStyle.Render("No tool servers configured. Press 'a' to add one."))
	} else {
		for i, server := range list {
			s.WriteString(m.renderServer(i, server))
			s.WriteString("\n")
			if line := m.renderTools(server.URL); line != "" {
				s.WriteString(line)
				s.WriteString("\n")
			}
		}
	}
	if extra := m.unconfiguredTools(list); len(extra) > 0 {
		s.WriteString("\n")
		s.WriteString(helpStyle.Render("Also reported by the conductor:"))
		s.WriteString("\n")
		for _, l := range extra {
			s.WriteString(fmt.Sprintf("  %s | %s\n", l.Server, toolSummary(l.Names)))
		}
	}

	if !m.showAddForm {
		return lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#8A7FD8")).
			Padding(1, 2).
			Width(max(m.width-2, 10)).
			Height(max(m.height-2, 1)).
			Render(s.String())
	}

	// Two bordered boxes share the height
	listHeight := max((m.height-4)*2/3, 1)
	formHeight := max(m.height-4-listHeight, 1)

	listContent := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#8A7FD8")).
		Padding(1, 2).
		Width(max(m.width-2, 10)).
		Height(listHeight).
		Render(s.String())

	formContent := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#FFA500")).
		Padding(1, 2).
		Width(max(m.width-2, 10)).
		Height(formHeight).
		Render(m.renderAddForm())

	return lipgloss.JoinVertical(lipgloss.Left, listContent, formContent)
}

// renderServer renders a single server row
func (m Model) renderServer(index int, server toolservers.ToolServer) string {
	style := lipgloss.NewStyle().Padding(0, 1)
	if index == m.selectedIndex {
		style = style.
			Background(lipgloss.Color("62")).
			Foreground(lipgloss.Color("15"))
	}

	statusColor := "241"
	switch m.statuses[server.ID] {
	case connection.StatusConnected:
		statusColor = "46"
	case connection.StatusChecking:
		statusColor = "226"
	case connection.StatusDisconnected:
		statusColor = "196"
	}
	indicator := lipgloss.NewStyle().Foreground(lipgloss.Color(statusColor)).Render("●")

	content := fmt.Sprintf("%s %s | %s", indicator, server.DisplayName(), server.URL)
	if err := m.lastErrors[server.ID]; err != nil {
		content += " | " + err.Error()
	}

	return style.Render(content)
}

// renderTools renders the conductor's tool list for a configured server, or nothing
// before the conductor has answered
func (m Model) renderTools(url string) string {
	if m.tools == nil {
		return ""
	}
	style := lipgloss.NewStyle().Foreground(lipgloss.Color("241")).PaddingLeft(3)
	names, ok := m.Tools(url)
	if !ok {
		return style.Render("not listed by the conductor")
	}
	return style.Render(toolSummary(names))
}

// unconfiguredTools returns the reported servers missing from list
func (m Model) unconfiguredTools(list []toolservers.ToolServer) []feed.ToolList {
	configured := make(map[string]bool, len(list))
	for _, s := range list {
		configured[toolURLKey(s.URL)] = true
	}
	var extra []feed.ToolList
	for _, l := range m.reported {
		if !configured[toolURLKey(l.Server)] {
			extra = append(extra, l)
		}
	}
	return extra
}

func toolSummary(names []string) string {
	if len(names) == 0 {
		return "no tools"
	}
	return "tools: " + strings.Join(names, ", ")
}

// renderAddForm renders the add form content
func (m Model) renderAddForm() string {
	var s strings.Builder

	s.WriteString(lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("205")).
		Render("Add Tool Server"))
	s.WriteString("\n\n")

	fields := []struct {
		label string
		input textinput.Model
	}{
		{"URL", m.urlInput},
		{"Name", m.nameInput},
	}

	for i, field := range fields {
		labelStyle := lipgloss.NewStyle()
		if i == m.editingField {
			labelStyle = labelStyle.Background(lipgloss.Color("220")).Foreground(lipgloss.Color("0"))
		}
		s.WriteString(fmt.Sprintf("%s: %s\n", labelStyle.Render(field.label), field.input.View()))
	}

	return s.String()
}
