package core

import (
	"context"
	"fmt"
	"strings"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/kevensen/conductor-chat/internal/backends"
	"github.com/kevensen/conductor-chat/internal/configuration"
	"github.com/kevensen/conductor-chat/internal/feed"
	"github.com/kevensen/conductor-chat/internal/logging"
	"github.com/kevensen/conductor-chat/internal/markdown"
	"github.com/kevensen/conductor-chat/internal/settings"
	"github.com/kevensen/conductor-chat/internal/sidebar"
	"github.com/kevensen/conductor-chat/internal/tui/connection"
	"github.com/kevensen/conductor-chat/internal/tui/tabs/orchestrator"
	"github.com/kevensen/conductor-chat/internal/tui/tabs/orchestrator/models"
	"github.com/kevensen/conductor-chat/internal/tui/tabs/reasoning"
	"github.com/kevensen/conductor-chat/internal/tui/tabs/servers"
)

// Tab represents the different tabs in the application
type Tab int

const (
	ReasoningTab Tab = iota
	SettingsTab
	ServersTab
)

// Feed is the live connection to the conductor backend
type Feed interface {
	Run(ctx context.Context, handle feed.Handler) error
	Send(action string, data any) error
	SendSettings(s settings.OrchestratorSettings) error
}

// Messages produced by the feed
type (
	feedFrameMsg struct {
		frame feed.Frame
	}
	feedClosedMsg struct {
		err error
	}
	feedSentMsg struct {
		action string
		err    error
	}
)

// eventBuffer collects session events raised during Update so they can be handled
// once the tab that caused them has returned
type eventBuffer struct {
	mu     sync.Mutex
	events []settings.Event
}

func (b *eventBuffer) push(ev settings.Event) {
	b.mu.Lock()
	b.events = append(b.events, ev)
	b.mu.Unlock()
}

func (b *eventBuffer) drain() []settings.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	events := b.events
	b.events = nil
	return events
}

// Model represents the main TUI model
type Model struct {
	ctx     context.Context
	config  *configuration.Config
	session *settings.Session
	events  *eventBuffer

	feed       Feed
	frames     chan tea.Msg
	feedStatus string

	conductorStatus connection.Status
	status          string
	username        string

	activeTab      Tab
	tabs           []string
	reasoningModel reasoning.Model
	settingsModel  orchestrator.Model
	serversModel   servers.Model
	width          int
	height         int
	logger         *logging.Logger
}

// NewModel creates the TUI over an initialized settings session. f may be nil when the
// feed is disabled or the backend could not be reached.
func NewModel(ctx context.Context, config *configuration.Config, session *settings.Session, f Feed) *Model {
	logger := logging.WithComponent("tui-core")
	logger.Debug("Creating new TUI model")

	events := &eventBuffer{}
	session.Subscribe(events.push)

	feedStatus := "disabled"
	if f != nil {
		feedStatus = "connected"
	}

	model := &Model{
		ctx:             ctx,
		config:          config,
		session:         session,
		events:          events,
		feed:            f,
		frames:          make(chan tea.Msg, 64),
		feedStatus:      feedStatus,
		conductorStatus: connection.StatusUnknown,
		activeTab:       ReasoningTab,
		tabs:            []string{"Reasoning", "Settings", "Tool Servers"},
		reasoningModel:  reasoning.NewModel(sidebar.New(), markdown.NewRenderer(markdown.DefaultWidth)),
		settingsModel:   orchestrator.NewModel(session, config.OllamaURL).WithContext(ctx),
		serversModel:    servers.NewModel(session).WithContext(ctx),
		logger:          logger,
	}

	logger.Info("TUI model created successfully", "feed", feedStatus)
	return model
}

// Init initializes the TUI model
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		m.reasoningModel.Init(),
		m.settingsModel.Init(),
		m.serversModel.Init(),
		connection.ConductorStatus(m.ctx, m.config.HTTPServerURL),
	}
	if m.feed != nil {
		cmds = append(cmds,
			m.runFeed(),
			m.waitForFeed(),
			m.send(feed.ActionListTools, nil),
			m.send(feed.ActionGetUsername, nil),
		)
	}
	return tea.Batch(cmds...)
}

// runFeed reads the feed until it ends, handing frames to waitForFeed
func (m Model) runFeed() tea.Cmd {
	f, frames, ctx := m.feed, m.frames, m.ctx
	return func() tea.Msg {
		err := f.Run(ctx, func(frame feed.Frame) {
			select {
			case frames <- feedFrameMsg{frame: frame}:
			case <-ctx.Done():
			}
		})
		close(frames)
		return feedClosedMsg{err: err}
	}
}

// waitForFeed delivers the next frame as a tea message
func (m Model) waitForFeed() tea.Cmd {
	frames := m.frames
	return func() tea.Msg {
		msg, ok := <-frames
		if !ok {
			return nil
		}
		return msg
	}
}

func (m Model) send(action string, data any) tea.Cmd {
	f := m.feed
	if f == nil {
		return nil
	}
	return func() tea.Msg {
		return feedSentMsg{action: action, err: f.Send(action, data)}
	}
}

func (m Model) sendSettings(s settings.OrchestratorSettings) tea.Cmd {
	f := m.feed
	if f == nil {
		return nil
	}
	return func() tea.Msg {
		if err := f.SendSettings(s); err != nil {
			return feedSentMsg{action: feed.ActionSettingsUpdate, err: err}
		}
		// The conductor's tool lists follow the servers just applied
		if err := f.Send(feed.ActionListTools, nil); err != nil {
			return feedSentMsg{action: feed.ActionListTools, err: err}
		}
		return feedSentMsg{action: feed.ActionSettingsUpdate}
	}
}

// Update handles messages and updates the model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	m, cmd := m.update(msg)
	if cmd != nil {
		cmds = append(cmds, cmd)
	}

	for _, ev := range m.events.drain() {
		var evCmd tea.Cmd
		m, evCmd = m.handleEvent(ev)
		if evCmd != nil {
			cmds = append(cmds, evCmd)
		}
	}

	return m, tea.Batch(cmds...)
}

func (m Model) update(msg tea.Msg) (Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		// Use 90% of terminal dimensions for better visibility
		m.width = int(float64(msg.Width) * 0.90)
		m.height = int(float64(msg.Height) * 0.90)
		return m.resizeTabs()

	case tea.KeyMsg:
		return m.handleKey(msg)

	case feedFrameMsg:
		m = m.handleFrame(msg.frame)
		return m, m.waitForFeed()

	case feedClosedMsg:
		if msg.err != nil {
			m.logger.Warn("Conductor feed stopped", "error", msg.err)
			m.feedStatus = "disconnected"
			m.status = "Feed error: " + msg.err.Error()
		} else {
			m.logger.Info("Conductor feed closed")
			m.feedStatus = "closed"
		}
		return m, nil

	case feedSentMsg:
		if msg.err != nil {
			m.logger.Warn("Failed to send to conductor", "action", msg.action, "error", msg.err)
			m.status = "Could not reach the conductor: " + msg.err.Error()
		} else if msg.action == feed.ActionSettingsUpdate {
			m.status = "Settings sent to the conductor"
		}
		return m, nil

	case connection.CheckMsg:
		switch msg.Server {
		case connection.ServerConductor:
			m.conductorStatus = msg.Status
			if msg.Error != nil {
				m.logger.Warn("Conductor unreachable", "url", m.config.HTTPServerURL, "error", msg.Error)
			}
		case connection.ServerOllama:
			m.settingsModel, cmd = m.settingsModel.Update(msg)
		default:
			m.serversModel, cmd = m.serversModel.Update(msg)
		}
		return m, cmd

	case models.FetchModelsMsg, models.ModelSelectedMsg:
		m.settingsModel, cmd = m.settingsModel.Update(msg)
		return m, cmd
	}

	return m.updateActiveTab(msg)
}

func (m Model) resizeTabs() (Model, tea.Cmd) {
	// Tab bar and footer take one line each
	size := tea.WindowSizeMsg{Width: m.width, Height: max(m.height-2, 1)}

	var cmds []tea.Cmd
	var cmd tea.Cmd

	m.reasoningModel, cmd = m.reasoningModel.Update(size)
	cmds = append(cmds, cmd)
	m.settingsModel, cmd = m.settingsModel.Update(size)
	cmds = append(cmds, cmd)
	m.serversModel, cmd = m.serversModel.Update(size)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

// capturesKeys reports whether the active tab is taking text input, in which case
// tab switching and global shortcuts are suspended
func (m Model) capturesKeys() bool {
	switch m.activeTab {
	case SettingsTab:
		return m.settingsModel.IsEditing()
	case ServersTab:
		return m.serversModel.IsInFormMode()
	}
	return false
}

func (m Model) handleKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		m.logger.Info("User requested quit")
		return m, tea.Quit
	}

	if m.capturesKeys() {
		return m.updateActiveTab(msg)
	}

	switch msg.String() {
	case "tab":
		return m.switchTab(1)
	case "shift+tab":
		return m.switchTab(-1)
	case "ctrl+x":
		if m.feed == nil {
			return m, nil
		}
		m.logger.Info("Stopping current task")
		m.status = "Stop requested"
		return m, m.send(feed.ActionStop, nil)
	case "ctrl+r":
		m.logger.Info("Resetting conductor session")
		m.reasoningModel = m.reasoningModel.Clear()
		m.status = "Session reset"
		return m, m.send(feed.ActionReset, nil)
	}

	return m.updateActiveTab(msg)
}

func (m Model) switchTab(step int) (Model, tea.Cmd) {
	oldTab := m.activeTab
	n := Tab(len(m.tabs))
	m.activeTab = (m.activeTab + Tab(step) + n) % n
	m.logger.Debug("Tab switch", "from", oldTab, "to", m.activeTab)

	// Re-check tool servers when entering their tab
	if m.activeTab == ServersTab && oldTab != ServersTab {
		return m, m.serversModel.Init()
	}
	return m, nil
}

func (m Model) updateActiveTab(msg tea.Msg) (Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.activeTab {
	case ReasoningTab:
		m.reasoningModel, cmd = m.reasoningModel.Update(msg)
	case SettingsTab:
		m.settingsModel, cmd = m.settingsModel.Update(msg)
	case ServersTab:
		m.serversModel, cmd = m.serversModel.Update(msg)
	}
	return m, cmd
}

// handleFrame applies one frame from the conductor
func (m Model) handleFrame(frame feed.Frame) Model {
	switch f := frame.(type) {
	case feed.MessageFrame:
		m.reasoningModel = m.reasoningModel.Append(f.Message)
		m.status = "Working..."

	case feed.SettingsFrame:
		edited := m.session.State() == settings.Editing
		s := m.session.Initialize(mergeServerSettings(m.session.Catalog(), m.session.Current(), f.Settings))
		m.logger.Info("Settings synced from conductor", "settings", s, "replaced_edits", edited)
		m.status = fmt.Sprintf("Conductor is using %s / %s", s.BackendLabel, s.Model)
		if edited {
			m.settingsModel = m.settingsModel.Overwritten(s)
			m.status += ", unapplied changes were replaced"
		} else {
			m.settingsModel = m.settingsModel.Committed(s)
		}

	case feed.ToolsFrame:
		m.serversModel = m.serversModel.SetTools(f.Tools)
		m.logger.Debug("Tool lists from conductor", "servers", len(f.Tools))

	case feed.UsernameFrame:
		m.username = f.Username
		m.settingsModel = m.settingsModel.SetUsername(f.Username)

	case feed.StatusFrame:
		switch f.Status {
		case feed.TypeComplete:
			m.status = "Task complete"
		case feed.TypeStopped:
			m.status = "Task stopped"
		}
	}
	return m
}

// mergeServerSettings overlays settings reported by the conductor onto the local ones.
// The conductor never echoes the API key, so an empty key keeps the local one. It
// always reports useCustomModel false, so a model the catalog does not list for the
// backend is marked custom rather than replaced by the default.
func mergeServerSettings(catalog *backends.Catalog, current settings.OrchestratorSettings, reported settings.Partial) settings.Partial {
	if reported.APIKey != nil && *reported.APIKey == "" {
		reported.APIKey = nil
	}
	p := settings.PartialOf(current).Merge(reported)

	if reported.Model == nil || strings.TrimSpace(*reported.Model) == "" {
		return p
	}
	opt, _ := catalog.Resolve(strings.TrimSpace(*p.Backend))
	if !opt.RequiresFreeText() && !opt.HasModel(strings.TrimSpace(*reported.Model)) {
		p.UseCustomModel = settings.Bool(true)
	}
	return p
}

// handleEvent reacts to a session event
func (m Model) handleEvent(ev settings.Event) (Model, tea.Cmd) {
	switch ev := ev.(type) {
	case settings.SettingsChanged:
		m.logger.Info("Settings committed", "settings", ev.Settings)
		if m.feed == nil {
			m.status = "Settings applied locally, no conductor feed"
			return m, nil
		}
		return m, m.sendSettings(ev.Settings)

	case settings.ServerAdded:
		m.status = "Tool server added: " + ev.Server.DisplayName()
		return m, m.send(feed.ActionListTools, nil)

	case settings.ServerRemoved:
		m.status = "Tool server removed"
		return m, tea.Batch(m.serversModel.Init(), m.send(feed.ActionListTools, nil))
	}
	return m, nil
}

// View renders the TUI
func (m Model) View() string {
	// Tab bar and footer always get their line
	tabBar := m.renderTabBar()
	footer := m.renderFooter()

	if m.height <= 2 {
		if m.height == 1 {
			return tabBar
		}
		return lipgloss.JoinVertical(lipgloss.Left, tabBar, footer)
	}

	contentHeight := m.height - 2
	if contentHeight < 1 {
		return lipgloss.JoinVertical(lipgloss.Left, tabBar, footer)
	}

	var content string
	switch m.activeTab {
	case ReasoningTab:
		content = m.reasoningModel.View()
	case SettingsTab:
		content = m.settingsModel.View()
	case ServersTab:
		content = m.serversModel.View()
	}

	return lipgloss.JoinVertical(
		lipgloss.Left,
		tabBar,
		content,
		footer,
	)
}

// renderTabBar renders the tab bar
func (m Model) renderTabBar() string {
	var tabs []string

	activeTabStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("15")).
		Background(lipgloss.Color("#8A7FD8"))

	inactiveTabStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("7")).
		Background(lipgloss.Color("0"))

	// Compact names for narrow terminals
	var tabNames []string
	switch {
	case m.width >= 40:
		tabNames = m.tabs
	case m.width >= 20:
		tabNames = []string{"Reason", "Config", "Tools"}
	case m.width >= 8:
		tabNames = []string{"R", "S", "T"}
	default:
		tabNames = []string{"R"}
	}

	for i, tab := range tabNames {
		tabText := tab
		if m.width >= 10 {
			tabText = " " + tab + " "
		}

		if Tab(i) == m.activeTab {
			tabs = append(tabs, activeTabStyle.Render(tabText))
		} else {
			tabs = append(tabs, inactiveTabStyle.Render(tabText))
		}
	}

	tabBarStyle := lipgloss.NewStyle().
		Background(lipgloss.Color("0")).
		Width(m.width)

	return tabBarStyle.Render(lipgloss.JoinHorizontal(lipgloss.Top, tabs...))
}

// renderFooter renders the footer with help text and connection state
func (m Model) renderFooter() string {
	footerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("240")).
		Background(lipgloss.Color("235")).
		Width(m.width)

	var helpText string
	switch {
	case m.width >= 80:
		helpText = "Tab/Shift+Tab: Switch tabs • Ctrl+C: Quit"
		switch m.activeTab {
		case ReasoningTab:
			helpText += " • Ctrl+X: Stop • Ctrl+R: Reset"
		case SettingsTab:
			helpText += " • Ctrl+S: Apply"
		case ServersTab:
			helpText += " • a: Add • d: Delete"
		}
		helpText += fmt.Sprintf(" | Conductor: %s • Feed: %s", m.conductorStatus, m.feedStatus)
		if m.username != "" {
			helpText += " • User: " + m.username
		}
		if m.status != "" {
			helpText += " | " + m.status
		}
	case m.width >= 50:
		helpText = "Tab/Shift+Tab: Switch tabs • Ctrl+C: Quit"
	case m.width >= 25:
		helpText = "Tab: Switch • Ctrl+C: Quit"
	case m.width >= 15:
		helpText = "Tab:Switch Ctrl+C:Quit"
	case m.width >= 8:
		helpText = "Tab Q"
	default:
		helpText = "Tab"
	}

	return footerStyle.Render(helpText)
}
