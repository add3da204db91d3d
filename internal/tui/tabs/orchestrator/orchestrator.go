package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/kevensen/conductor-chat/internal/backends"
	"github.com/kevensen/conductor-chat/internal/logging"
	"github.com/kevensen/conductor-chat/internal/settings"
	"github.com/kevensen/conductor-chat/internal/tui/connection"
	"github.com/kevensen/conductor-chat/internal/tui/tabs/orchestrator/models"
)

// Field represents a settings field
type Field int

const (
	BackendField Field = iota
	UseCustomURLField
	CustomURLField
	UseCustomModelField
	ModelField
	APIKeyField
	MoleculeNameField
)

const lastField = MoleculeNameField

// moleculeCycle is the order Enter steps through, starting from "not set"
var moleculeCycle = []settings.MoleculeNameFormat{
	"",
	settings.MoleculeBrand,
	settings.MoleculeIUPAC,
	settings.MoleculeFormula,
	settings.MoleculeSMILES,
}

var (
	okColor   = lipgloss.Color("10")
	warnColor = lipgloss.Color("11")
	errColor  = lipgloss.Color("9")
)

// Model represents the settings tab
type Model struct {
	session     *settings.Session
	ollamaURL   string
	activeField Field
	editing     bool
	input       textinput.Model
	width       int
	height      int

	message      string
	messageStyle lipgloss.Style

	// Last committed configuration, restored by R
	committed *settings.OrchestratorSettings

	endpointStatus connection.Status
	modelPanel     models.Model
	username       string
	ctx            context.Context
	logger         *logging.Logger
}

// NewModel creates the settings tab over an initialized session. ollamaURL is where
// installed models are discovered when the Ollama backend has no custom URL.
func NewModel(session *settings.Session, ollamaURL string) Model {
	input := textinput.New()
	input.Prompt = ""
	input.CharLimit = 512

	return Model{
		session:        session,
		ollamaURL:      ollamaURL,
		activeField:    BackendField,
		input:          input,
		endpointStatus: connection.StatusUnknown,
		modelPanel:     models.NewModel(),
		messageStyle:   lipgloss.NewStyle().Foreground(okColor).Bold(true),
		ctx:            context.Background(),
		logger:         logging.WithComponent("settings_tab"),
	}
}

// WithContext bounds endpoint checks and model discovery by ctx
func (m Model) WithContext(ctx context.Context) Model {
	m.ctx = ctx
	m.modelPanel = m.modelPanel.WithContext(ctx)
	return m
}

// Init probes the endpoint when the backend can be probed
func (m Model) Init() tea.Cmd {
	return m.probeEndpoint()
}

// IsEditing reports whether a text field or the model panel has focus
func (m Model) IsEditing() bool {
	return m.editing || m.modelPanel.IsVisible()
}

// ActiveField returns the highlighted field
func (m Model) ActiveField() Field {
	return m.activeField
}

// Message returns the last status line
func (m Model) Message() string {
	return m.message
}

// Update handles messages and updates the settings model
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.modelPanel = m.modelPanel.SetSize(m.width/3, max(m.height-2, 1))
		m.input.Width = max(m.width/2, 20)

	case connection.CheckMsg:
		if msg.Server == connection.ServerOllama {
			m.endpointStatus = msg.Status
			if msg.Error != nil {
				m.logger.Warn("Ollama endpoint unreachable", "url", m.discoveryURL(), "error", msg.Error)
			}
		}

	case models.FetchModelsMsg:
		var cmd tea.Cmd
		m.modelPanel, cmd = m.modelPanel.Update(msg)
		return m, cmd

	case models.ModelSelectedMsg:
		m.modelPanel = m.modelPanel.Close()
		return m.selectModel(msg), nil

	case tea.KeyMsg:
		if m.modelPanel.IsVisible() {
			if msg.String() == "esc" {
				m.modelPanel = m.modelPanel.Close()
				return m, nil
			}
			var cmd tea.Cmd
			m.modelPanel, cmd = m.modelPanel.Update(msg)
			return m, cmd
		}
		if m.editing {
			return m.handleEditingKeys(msg)
		}
		return m.handleNavigationKeys(msg)
	}

	return m, nil
}

// handleNavigationKeys handles keys when not editing a field
func (m Model) handleNavigationKeys(msg tea.KeyMsg) (Model, tea.Cmd) {
	current := m.session.Current()

	switch msg.String() {
	case "up", "k":
		if m.activeField > 0 {
			m.activeField--
		}
		if m.activeField == CustomURLField && !current.UseCustomURL {
			m.activeField--
		}

	case "down", "j":
		if m.activeField < lastField {
			m.activeField++
		}
		if m.activeField == CustomURLField && !current.UseCustomURL {
			m.activeField++
		}

	case "home":
		m.activeField = BackendField

	case "end":
		m.activeField = lastField

	case "left", "h":
		return m.cycle(-1)

	case "right", "l":
		return m.cycle(1)

	case "enter", " ":
		return m.activate(current)

	case "ctrl+s":
		return m.commit()

	case "r", "R":
		return m.revert()
	}

	return m, nil
}

// activate runs the Enter action of the highlighted field
func (m Model) activate(current settings.OrchestratorSettings) (Model, tea.Cmd) {
	switch m.activeField {
	case BackendField, MoleculeNameField:
		return m.cycle(1)

	case UseCustomURLField:
		if current.UseCustomURL {
			if _, err := m.session.ClearCustomURL(); err != nil {
				return m.fail(err), nil
			}
			m.flash("Using the backend's default URL", okColor)
			return m, m.probeEndpoint()
		}
		// Turning the override on means typing a URL; the session only stores it once
		// it is non-empty
		m.activeField = CustomURLField
		return m.startEditing(m.session.EffectiveURL(), false)

	case CustomURLField:
		return m.startEditing(current.CustomURL, false)

	case UseCustomModelField:
		if _, err := m.session.SetUseCustomModel(!current.UseCustomModel); err != nil {
			return m.fail(err), nil
		}
		if current.UseCustomModel {
			m.flash("Custom model off, using a listed model", okColor)
		} else {
			m.flash("Custom model on, any model name is accepted", okColor)
		}

	case ModelField:
		opt, _ := m.session.Catalog().Resolve(current.Backend)
		if current.UseCustomModel || opt.RequiresFreeText() {
			return m.startEditing(current.Model, false)
		}
		var cmd tea.Cmd
		m.modelPanel, cmd = m.modelPanel.Open(opt, current.Model, m.discoveryURL())
		return m, cmd

	case APIKeyField:
		return m.startEditing(current.APIKey, true)
	}

	return m, nil
}

// cycle steps an enumerated field forwards or backwards
func (m Model) cycle(step int) (Model, tea.Cmd) {
	current := m.session.Current()

	switch m.activeField {
	case BackendField:
		next := m.session.Catalog().Next(current.Backend, step)
		s, err := m.session.SelectBackend(next.Value)
		if err != nil {
			return m.fail(err), nil
		}
		m.logger.Info("Backend selected", "backend", s.Backend, "model", s.Model)
		m.flash(fmt.Sprintf("Backend: %s (model reset to %s)", s.BackendLabel, displayModel(s.Model)), okColor)
		m.endpointStatus = connection.StatusUnknown
		return m, m.probeEndpoint()

	case MoleculeNameField:
		i := 0
		for j, f := range moleculeCycle {
			if f == current.MoleculeName {
				i = j
				break
			}
		}
		next := moleculeCycle[(i+step+len(moleculeCycle))%len(moleculeCycle)]
		if _, err := m.session.SetMoleculeName(next); err != nil {
			return m.fail(err), nil
		}
		m.flash("Molecule names: "+next.Label(), okColor)
	}

	return m, nil
}

func (m Model) startEditing(value string, secret bool) (Model, tea.Cmd) {
	m.editing = true
	m.input.SetValue(value)
	m.input.CursorEnd()
	if secret {
		m.input.EchoMode = textinput.EchoPassword
	} else {
		m.input.EchoMode = textinput.EchoNormal
	}
	m.logger.Debug("Starting field edit", "field", m.activeField.String())
	cmd := m.input.Focus()
	return m, cmd
}

func (m Model) stopEditing() Model {
	m.editing = false
	m.input.Blur()
	m.input.SetValue("")
	return m
}

// handleEditingKeys handles keys when editing a field
func (m Model) handleEditingKeys(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		value := m.input.Value()
		var err error
		var cmd tea.Cmd

		switch m.activeField {
		case CustomURLField:
			_, err = m.session.SetCustomURL(value)
			cmd = m.probeEndpoint()
		case ModelField:
			_, err = m.session.SetModel(value)
		case APIKeyField:
			_, err = m.session.SetAPIKey(value)
		}

		if err != nil {
			// Keep the input open so the value can be fixed
			return m.fail(err), nil
		}
		m.flash(m.activeField.String()+" updated", okColor)
		return m.stopEditing(), cmd

	case "esc":
		m.logger.Debug("Cancelled field edit", "field", m.activeField.String())
		m = m.stopEditing()
		if m.activeField == CustomURLField && !m.session.Current().UseCustomURL {
			m.activeField = UseCustomURLField
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// selectModel applies a pick from the model panel. Installed models the catalog
// doesn't list are only accepted as custom models.
func (m Model) selectModel(msg models.ModelSelectedMsg) Model {
	set := m.session.SetModel
	if !msg.Listed {
		set = m.session.SetCustomModel
	}
	if _, err := set(msg.ModelName); err != nil {
		return m.fail(err)
	}
	m.flash("Selected model: "+msg.ModelName, okColor)
	return m
}

func (m Model) commit() (Model, tea.Cmd) {
	s, err := m.session.Commit()
	if err != nil {
		return m.fail(err), nil
	}
	m.committed = &s
	m.flash(fmt.Sprintf("Settings applied: %s / %s", s.BackendLabel, displayModel(s.Model)), okColor)
	return m, nil
}

func (m Model) revert() (Model, tea.Cmd) {
	if m.committed == nil {
		m.flash("Nothing applied yet", warnColor)
		return m, nil
	}
	m.session.Initialize(settings.PartialOf(*m.committed))
	m.flash("Reverted to the last applied settings", warnColor)
	return m, m.probeEndpoint()
}

// Committed records a snapshot applied outside the tab, such as a settings report from
// the backend
func (m Model) Committed(s settings.OrchestratorSettings) Model {
	m.committed = &s
	return m
}

// Overwritten is Committed for a backend report that replaced edits the user had not
// applied yet. The tab says so instead of dropping them silently.
func (m Model) Overwritten(s settings.OrchestratorSettings) Model {
	m = m.Committed(s)
	m.flash("Conductor settings replaced your unapplied changes", warnColor)
	return m
}

// SetUsername records the user name the conductor reported
func (m Model) SetUsername(name string) Model {
	m.username = name
	return m
}

func (m Model) fail(err error) Model {
	var verr *settings.ValidationError
	if errors.As(err, &verr) {
		m.logger.Debug("Rejected settings value", "kind", verr.Kind.String(), "error", err)
	} else {
		m.logger.Warn("Settings change failed", "error", err)
	}
	m.flash("Error: "+err.Error(), errColor)
	return m
}

func (m *Model) flash(text string, color lipgloss.Color) {
	m.message = text
	m.messageStyle = m.messageStyle.Foreground(color)
}

// discoveryURL is where the Ollama backend is probed and asked for models
func (m Model) discoveryURL() string {
	if u := m.session.EffectiveURL(); u != "" {
		return u
	}
	if m.ollamaURL != "" {
		return m.ollamaURL
	}
	return backends.DefaultOllamaURL
}

func (m Model) probeEndpoint() tea.Cmd {
	if m.session.Current().Backend != backends.Ollama {
		return nil
	}
	return connection.OllamaStatus(m.ctx, strings.TrimSuffix(strings.TrimSuffix(m.discoveryURL(), "/"), "/v1"))
}

func (f Field) String() string {
	switch f {
	case BackendField:
		return "Backend"
	case UseCustomURLField:
		return "Use custom URL"
	case CustomURLField:
		return "Custom URL"
	case UseCustomModelField:
		return "Use custom model"
	case ModelField:
		return "Model"
	case APIKeyField:
		return "API key"
	case MoleculeNameField:
		return "Molecule names"
	default:
		return "Unknown"
	}
}

func displayModel(model string) string {
	if model == "" {
		return "(enter a model name)"
	}
	return model
}
