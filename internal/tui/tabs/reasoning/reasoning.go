// Package reasoning is the tab that shows the conductor's reasoning steps as they
// arrive, with a panel to hide steps by source.
package reasoning

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/kevensen/conductor-chat/internal/logging"
	"github.com/kevensen/conductor-chat/internal/markdown"
	"github.com/kevensen/conductor-chat/internal/sidebar"
)

const filterPanelWidth = 32

// Model represents the reasoning tab
type Model struct {
	sidebar  *sidebar.State
	renderer *markdown.Renderer
	cache    *renderCache
	styles   Styles

	viewport viewport.Model
	// Stick to the newest step
	follow bool

	filterCursor int
	width        int
	height       int
	logger       *logging.Logger
}

// NewModel creates the reasoning tab over a sidebar state. A nil renderer shows the
// raw message text.
func NewModel(state *sidebar.State, renderer *markdown.Renderer) Model {
	if state == nil {
		state = sidebar.New()
	}
	return Model{
		sidebar:  state,
		renderer: renderer,
		cache:    newRenderCache(),
		viewport: viewport.New(0, 0),
		styles:   DefaultStyles(),
		follow:   true,
		logger:   logging.WithComponent("reasoning_tab"),
	}
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return nil
}

// Sidebar returns the underlying state
func (m Model) Sidebar() *sidebar.State {
	return m.sidebar
}

// FilterOpen reports whether the source filter panel has focus
func (m Model) FilterOpen() bool {
	return m.sidebar.SourceFilterOpen()
}

// Following reports whether the view sticks to the newest step
func (m Model) Following() bool {
	return m.follow
}

// Append logs a reasoning step
func (m Model) Append(msg sidebar.Message) Model {
	m.sidebar.AppendMessage(msg)
	return m
}

// Clear empties the log
func (m Model) Clear() Model {
	m.sidebar.Clear()
	m.cache.invalidate()
	m.viewport.GotoTop()
	m.follow = true
	m.filterCursor = 0
	return m
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		if m.sidebar.SourceFilterOpen() {
			return m.handleFilterKeys(msg), nil
		}
		return m.handleNormalKeys(msg), nil
	}

	return m, nil
}

func (m Model) handleNormalKeys(msg tea.KeyMsg) Model {
	switch msg.String() {
	case "up", "k":
		return m.scroll(-1)
	case "down", "j":
		return m.scroll(1)
	case "pgup":
		return m.scroll(-m.availableHeight())
	case "pgdown":
		return m.scroll(m.availableHeight())
	case "home", "g":
		m = m.syncViewport()
		m.viewport.GotoTop()
		m.follow = m.viewport.AtBottom()
	case "end", "G":
		m.follow = true
	case "f":
		m.sidebar.ToggleSourceFilterPanel()
		m.filterCursor = min(m.filterCursor, max(len(m.sidebar.DistinctSources())-1, 0))
	case "b":
		m.sidebar.Toggle()
	case "c":
		m.logger.Info("Clearing reasoning log", "messages", m.sidebar.Len())
		return m.Clear()
	}
	return m
}

func (m Model) handleFilterKeys(msg tea.KeyMsg) Model {
	sources := m.sidebar.DistinctSources()

	switch msg.String() {
	case "up", "k":
		if m.filterCursor > 0 {
			m.filterCursor--
		}
	case "down", "j":
		if m.filterCursor < len(sources)-1 {
			m.filterCursor++
		}
	case " ", "enter":
		if m.filterCursor < len(sources) {
			source := sources[m.filterCursor]
			visible := !m.sidebar.IsSourceVisible(source)
			m.sidebar.SetSourceVisibility(source, visible)
			m.logger.Debug("Source visibility changed", "source", source, "visible", visible)
		}
	case "a":
		m.sidebar.ResetSourceFilter()
	case "esc", "f":
		m.sidebar.ToggleSourceFilterPanel()
	}
	return m
}

// scroll moves the view by delta lines. Reaching the bottom resumes following.
func (m Model) scroll(delta int) Model {
	m = m.syncViewport()
	m.viewport.SetYOffset(m.viewport.YOffset + delta)
	m.follow = m.viewport.AtBottom()
	return m
}

// syncViewport loads the visible steps into the viewport at the current size
func (m Model) syncViewport() Model {
	m.viewport.Width = m.contentWidth()
	m.viewport.Height = m.availableHeight()
	m.viewport.SetContent(strings.Join(m.allLines(), "\n"))
	if m.follow {
		m.viewport.GotoBottom()
	}
	return m
}

// availableHeight is the number of log lines inside the border
func (m Model) availableHeight() int {
	return max(m.height-3, 1)
}

func (m Model) contentWidth() int {
	w := m.width - 4
	if m.sidebar.SourceFilterOpen() {
		w -= filterPanelWidth
	}
	return max(w, 10)
}

func (m Model) allLines() []string {
	width := m.contentWidth()
	var lines []string
	for msg := range m.sidebar.VisibleMessages() {
		lines = append(lines, m.cache.lines(&m, msg, width)...)
	}
	return lines
}

// formatMessage renders one step as header, body and optional molecule line
func (m *Model) formatMessage(msg sidebar.Message, width int) []string {
	lines := make([]string, 0, 8)

	source := msg.Source
	if source == "" {
		source = "System"
	}
	lines = append(lines, m.styles.header.Render(fmt.Sprintf("%s [%s]", source, formatTimestamp(msg.Timestamp))))

	if m.renderer != nil {
		m.renderer.SetWidth(width)
	}
	body := m.renderer.Render(msg.Message)
	lines = append(lines, strings.Split(body, "\n")...)

	if msg.HasSMILES() {
		lines = append(lines, m.styles.smiles.Render("SMILES: "+*msg.SMILES))
	}

	return append(lines, "")
}

func formatTimestamp(ts string) string {
	t, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return ts
	}
	return t.Local().Format("15:04:05")
}

// View renders the reasoning tab
func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	if !m.sidebar.IsOpen() {
		return m.styles.statusBar.Width(m.width - 2).
			Render(fmt.Sprintf("Reasoning hidden (%d steps) • b: show", m.sidebar.Len()))
	}

	messages := m.renderMessages()
	if m.sidebar.SourceFilterOpen() {
		messages = lipgloss.JoinHorizontal(lipgloss.Top, messages, m.renderFilterPanel())
	}

	return lipgloss.JoinVertical(lipgloss.Left, messages, m.renderStatusBar())
}

func (m Model) renderMessages() string {
	availableHeight := m.availableHeight()
	outerWidth := m.width - 2
	if m.sidebar.SourceFilterOpen() {
		outerWidth -= filterPanelWidth
	}
	style := m.styles.messages.
		Width(max(outerWidth, 10)).
		Height(availableHeight)

	if m.sidebar.Len() == 0 || m.visibleCount() == 0 {
		empty := m.styles.emptyMessages.Width(max(outerWidth-2, 1))
		text := "Waiting for the conductor's reasoning..."
		if m.sidebar.Len() > 0 {
			text = "Every source is hidden. Press f to change the filter."
		}
		return style.Render(empty.Render(text))
	}

	m = m.syncViewport()
	return style.Render(m.viewport.View())
}

func (m Model) visibleCount() int {
	n := 0
	for range m.sidebar.VisibleMessages() {
		n++
	}
	return n
}

func (m Model) renderFilterPanel() string {
	sources := m.sidebar.DistinctSources()

	content := []string{m.styles.filterTitle.Render("Sources"), ""}
	if len(sources) == 0 {
		content = append(content, m.styles.hiddenMark.Render("No sources yet"))
	}
	for i, source := range sources {
		mark := "[x]"
		if !m.sidebar.IsSourceVisible(source) {
			mark = "[ ]"
		}
		style := m.styles.filterItem
		if i == m.filterCursor {
			style = m.styles.filterHover
		}
		content = append(content, style.Render(mark+" "+source))
	}
	content = append(content, "", m.styles.hiddenMark.Render("Space: toggle • a: show all • f: close"))

	return m.styles.filterPanel.
		Width(filterPanelWidth - 2).
		Height(m.availableHeight()).
		Render(strings.Join(content, "\n"))
}

func (m Model) renderStatusBar() string {
	status := fmt.Sprintf("Steps: %d/%d", m.visibleCount(), m.sidebar.Len())
	if !m.follow {
		status += " • scrolled (G: follow)"
	}
	status += " • f: filter sources • b: hide • c: clear"
	return m.styles.statusBar.Width(max(m.width-2, 1)).Render(status)
}
