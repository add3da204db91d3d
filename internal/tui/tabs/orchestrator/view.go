package orchestrator

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/kevensen/conductor-chat/internal/backends"
	"github.com/kevensen/conductor-chat/internal/settings"
	"github.com/kevensen/conductor-chat/internal/tui/connection"
)

// View renders the settings tab
func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	if m.modelPanel.IsVisible() {
		settingsWidth := (m.width * 2) / 3
		return lipgloss.JoinHorizontal(lipgloss.Top,
			m.renderSettingsWithWidth(settingsWidth),
			m.modelPanel.View(),
		)
	}

	return m.renderSettingsWithWidth(m.width)
}

type fieldRow struct {
	field Field
	label string
	value string
	help  string
}

func (m Model) rows(s settings.OrchestratorSettings) []fieldRow {
	opt, _ := m.session.Catalog().Resolve(s.Backend)

	modelHelp := "Enter: Select from list"
	if s.UseCustomModel || opt.RequiresFreeText() {
		modelHelp = "Enter: Type a model name"
	}

	rows := []fieldRow{
		{BackendField, "Backend", s.BackendLabel, "←/→ or Enter: Cycle backends (resets model and URL)"},
		{UseCustomURLField, "Use Custom URL", fmt.Sprintf("%t", s.UseCustomURL), "Enter/Space: Toggle"},
	}
	if s.UseCustomURL || (m.editing && m.activeField == CustomURLField) {
		rows = append(rows, fieldRow{CustomURLField, "Custom URL", s.CustomURL, "Endpoint used instead of the backend default"})
	}
	rows = append(rows,
		fieldRow{UseCustomModelField, "Use Custom Model", fmt.Sprintf("%t", s.UseCustomModel), "Enter/Space: Toggle free-text model entry"},
		fieldRow{ModelField, "Model", displayModel(s.Model), modelHelp},
		fieldRow{APIKeyField, "API Key", maskKey(s.APIKey), "Enter: Edit (stored as typed, may be empty)"},
		fieldRow{MoleculeNameField, "Molecule Names", s.MoleculeName.Label(), "←/→ or Enter: Cycle display formats"},
	)
	return rows
}

// renderSettingsWithWidth renders the field list with the specified width
func (m Model) renderSettingsWithWidth(width int) string {
	s := m.session.Current()
	var content []string

	titleStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("12")).
		Bold(true).
		Align(lipgloss.Center).
		Width(width - 2)
	content = append(content, titleStyle.Render("Orchestrator Settings"))
	content = append(content, "")

	endpointStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	endpoint := m.session.EffectiveURL()
	if endpoint == "" {
		endpoint = "(server default)"
	}
	endpointLine := "Endpoint: " + endpoint
	if s.Backend == backends.Ollama {
		endpointLine += " " + formatInlineConnectionStatus(m.endpointStatus)
	}
	content = append(content, endpointStyle.Render(endpointLine))
	if m.username != "" {
		content = append(content, endpointStyle.Render("Signed in as "+m.username))
	}
	content = append(content, "")

	for _, row := range m.rows(s) {
		content = append(content, m.renderField(row))
		content = append(content, "")
	}

	helpStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("240")).
		Width(width - 2)
	if m.editing {
		content = append(content, helpStyle.Render("Enter: Apply • Esc: Cancel"))
	} else {
		content = append(content, helpStyle.Render("↑/↓: Navigate • Enter: Edit/Toggle • Ctrl+S: Apply • R: Revert to last applied"))
	}
	if s.ToolServers != nil {
		content = append(content, helpStyle.Render(fmt.Sprintf("%d tool server(s) configured in the Tool Servers tab", len(s.ToolServers))))
	}

	if m.message != "" {
		content = append(content, "")
		content = append(content, m.messageStyle.Render(m.message))
	}

	containerStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#8A7FD8")).
		Padding(1, 2).
		Width(max(width-2, 10)).
		Height(max(m.height-2, 1))

	return containerStyle.Render(strings.Join(content, "\n"))
}

// renderField renders a settings field
func (m Model) renderField(row fieldRow) string {
	isActive := row.field == m.activeField
	isEditing := m.editing && isActive

	labelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("7"))
	valueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("15"))
	if isActive {
		labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("12")).
			Bold(true)
		valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("62"))
	}

	displayValue := valueStyle.Render(row.value)
	if isEditing {
		displayValue = m.input.View()
	} else if row.field == UseCustomURLField || row.field == UseCustomModelField {
		toggleSymbol, toggleColor := "○", "240"
		if row.value == "true" {
			toggleSymbol, toggleColor = "●", "10"
		}
		toggleStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(toggleColor))
		displayValue = fmt.Sprintf("%s %s", toggleStyle.Render(toggleSymbol), valueStyle.Render(row.value))
	}

	fieldLine := fmt.Sprintf("%s: %s", labelStyle.Render(row.label), displayValue)

	if isActive {
		helpStyle := lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Italic(true)
		return fieldLine + "\n" + helpStyle.Render("  "+row.help)
	}

	return fieldLine
}

// formatInlineConnectionStatus formats a connection status for inline display
func formatInlineConnectionStatus(status connection.Status) string {
	var statusText, statusColor string

	switch status {
	case connection.StatusConnected:
		statusText = "✓"
		statusColor = "10"
	case connection.StatusDisconnected:
		statusText = "✗"
		statusColor = "9"
	case connection.StatusChecking:
		statusText = "⟳"
		statusColor = "11"
	default:
		statusText = "?"
		statusColor = "240"
	}

	return lipgloss.NewStyle().Foreground(lipgloss.Color(statusColor)).Render(statusText)
}

// maskKey hides all but the last four characters of an API key
func maskKey(key string) string {
	if key == "" {
		return "(not set)"
	}
	if len(key) <= 4 {
		return strings.Repeat("•", len(key))
	}
	return strings.Repeat("•", 8) + key[len(key)-4:]
}
