package reasoning

import (
	"github.com/charmbracelet/lipgloss"
)

// Styles holds precomputed styles for the reasoning view
type Styles struct {
	// Source and time above each step
	header lipgloss.Style

	// Molecule line under a step
	smiles lipgloss.Style

	// Container around the log
	messages lipgloss.Style

	emptyMessages lipgloss.Style

	// Source filter panel
	filterPanel lipgloss.Style
	filterTitle lipgloss.Style
	filterItem  lipgloss.Style
	filterHover lipgloss.Style
	hiddenMark  lipgloss.Style

	statusBar lipgloss.Style
}

// DefaultStyles creates default styles for the reasoning view
func DefaultStyles() Styles {
	return Styles{
		header: lipgloss.NewStyle().
			Foreground(lipgloss.Color("10")).
			Bold(true),

		smiles: lipgloss.NewStyle().
			Foreground(lipgloss.Color("14")).
			Italic(true),

		messages: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#8A7FD8")).
			Padding(0, 1),

		emptyMessages: lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Align(lipgloss.Center),

		filterPanel: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#FFA500")).
			Padding(0, 1),

		filterTitle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true),

		filterItem: lipgloss.NewStyle(),

		filterHover: lipgloss.NewStyle().
			Background(lipgloss.Color("62")).
			Foreground(lipgloss.Color("15")),

		hiddenMark: lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")),

		statusBar: lipgloss.NewStyle().
			Align(lipgloss.Left).
			Foreground(lipgloss.Color("240")).
			PaddingLeft(1),
	}
}
