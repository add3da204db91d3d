package models

import (
	"context"
	"fmt"
	"slices"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/kevensen/conductor-chat/internal/backends"
)

// Entry is one selectable model
type Entry struct {
	Name string
	// Discovered entries came from the backend itself rather than the catalog
	Discovered bool
}

// FetchModelsMsg represents the result of asking an Ollama server for its models
type FetchModelsMsg struct {
	Backend string
	Models  []string
	Error   error
}

// ModelSelectedMsg represents a model selection event. Listed is false for discovered
// models the catalog doesn't know, which the settings must accept as a custom model.
type ModelSelectedMsg struct {
	ModelName string
	Listed    bool
}

// Model represents the model selection panel
type Model struct {
	backend  backends.BackendOption
	entries  []Entry
	cursor   int
	viewport int
	height   int
	width    int
	loading  bool
	error    error
	visible  bool
	ctx      context.Context
}

// NewModel creates a hidden model selection panel
func NewModel() Model {
	return Model{height: 10, ctx: context.Background()}
}

// WithContext bounds model discovery by ctx
func (m Model) WithContext(ctx context.Context) Model {
	m.ctx = ctx
	return m
}

// Open shows the panel for a backend with its catalog models, placing the cursor on
// current. For the Ollama backend it also returns a command that lists the models
// installed at discoverURL.
func (m Model) Open(opt backends.BackendOption, current, discoverURL string) (Model, tea.Cmd) {
	m.visible = true
	m.backend = opt
	m.error = nil
	m.loading = false
	m.cursor = 0
	m.viewport = 0

	m.entries = nil
	for _, name := range opt.Models {
		if name != "" {
			m.entries = append(m.entries, Entry{Name: name})
		}
	}
	m = m.placeCursor(current)

	if opt.Value != backends.Ollama {
		return m, nil
	}
	m.loading = true
	return m, FetchModels(m.ctx, opt.Value, discoverURL)
}

// Close hides the panel
func (m Model) Close() Model {
	m.visible = false
	m.loading = false
	return m
}

// SetSize sets the dimensions of the model selection panel
func (m Model) SetSize(width, height int) Model {
	m.width = width
	m.height = height
	return m
}

// IsVisible reports whether the panel is showing
func (m Model) IsVisible() bool {
	return m.visible
}

// Entries returns the selectable models in display order
func (m Model) Entries() []Entry {
	return slices.Clone(m.entries)
}

// Selected returns the entry under the cursor
func (m Model) Selected() (Entry, bool) {
	if m.cursor < 0 || m.cursor >= len(m.entries) {
		return Entry{}, false
	}
	return m.entries[m.cursor], true
}

// FetchModels lists the models installed on an Ollama server
func FetchModels(ctx context.Context, backend, ollamaURL string) tea.Cmd {
	return tea.Cmd(func() tea.Msg {
		names, err := backends.DiscoverOllamaModels(ctx, ollamaURL)
		return FetchModelsMsg{
			Backend: backend,
			Models:  names,
			Error:   err,
		}
	})
}

// Update handles messages for the model selection panel
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if !m.visible {
		return m, nil
	}

	switch msg := msg.(type) {
	case FetchModelsMsg:
		if msg.Backend != m.backend.Value {
			// The user moved on to another backend
			return m, nil
		}
		m.loading = false
		if msg.Error != nil {
			m.error = msg.Error
			return m, nil
		}
		m.error = nil
		current, _ := m.Selected()
		for _, name := range msg.Models {
			if isEmbeddingModel(name) || m.indexOf(name) >= 0 {
				continue
			}
			m.entries = append(m.entries, Entry{Name: name, Discovered: true})
		}
		m = m.placeCursor(current.Name)

	case tea.KeyMsg:
		switch msg.String() {
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
				if m.cursor < m.viewport {
					m.viewport = m.cursor
				}
			}

		case "down", "j":
			if m.cursor < len(m.entries)-1 {
				m.cursor++
				if m.cursor >= m.viewport+m.listHeight() {
					m.viewport = m.cursor - m.listHeight() + 1
				}
			}

		case "enter":
			if selected, ok := m.Selected(); ok {
				listed := m.backend.HasModel(selected.Name)
				return m, tea.Cmd(func() tea.Msg {
					return ModelSelectedMsg{
						ModelName: selected.Name,
						Listed:    listed,
					}
				})
			}
		}
	}

	return m, nil
}

func (m Model) indexOf(name string) int {
	return slices.IndexFunc(m.entries, func(e Entry) bool { return e.Name == name })
}

func (m Model) placeCursor(name string) Model {
	if i := m.indexOf(name); i >= 0 {
		m.cursor = i
	}
	if m.cursor >= m.viewport+m.listHeight() {
		m.viewport = m.cursor - m.listHeight() + 1
	}
	return m
}

func (m Model) listHeight() int {
	return max(m.height-6, 1)
}

// isEmbeddingModel checks if a model is an embedding model based on name patterns.
// Ollama lists them alongside chat models but they cannot drive an orchestrator.
func isEmbeddingModel(modelName string) bool {
	modelNameLower := strings.ToLower(modelName)

	embeddingPatterns := []string{
		"embed",
		"embedding",
		"nomic",
		"bge",
		"e5",
		"sentence",
		"mpnet",
		"minilm",
	}

	for _, pattern := range embeddingPatterns {
		if strings.Contains(modelNameLower, pattern) {
			// "embedded-llama-instruct" and the like are chat models
			if strings.Contains(modelNameLower, "chat") ||
				strings.Contains(modelNameLower, "instruct") ||
				strings.Contains(modelNameLower, "tool") {
				continue
			}
			return true
		}
	}

	return false
}

// View renders the model selection panel
func (m Model) View() string {
	if !m.visible {
		return ""
	}

	var content []string

	titleStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("12")).
		Bold(true).
		Align(lipgloss.Center)

	content = append(content, titleStyle.Render("Select "+m.backend.Label+" Model"))
	content = append(content, "")

	if len(m.entries) == 0 && !m.loading {
		noModelsStyle := lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Italic(true)
		content = append(content, noModelsStyle.Render("No models available"))
	}

	start := m.viewport
	end := min(start+m.listHeight(), len(m.entries))
	for i := start; i < end; i++ {
		entry := m.entries[i]
		style := lipgloss.NewStyle().Foreground(lipgloss.Color("7"))
		if i == m.cursor {
			style = lipgloss.NewStyle().
				Foreground(lipgloss.Color("15")).
				Background(lipgloss.Color("62")).
				Bold(true)
		}

		line := "  " + entry.Name
		if entry.Discovered {
			line += " (installed)"
		}
		content = append(content, style.Render(line))
	}

	if len(m.entries) > m.listHeight() {
		scrollStyle := lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Align(lipgloss.Right)
		content = append(content, scrollStyle.Render(fmt.Sprintf("(%d/%d)", m.cursor+1, len(m.entries))))
	}

	if m.loading {
		loadingStyle := lipgloss.NewStyle().
			Foreground(lipgloss.Color("11")).
			Italic(true)
		content = append(content, "", loadingStyle.Render("⟳ Asking Ollama for installed models..."))
	} else if m.error != nil {
		errorStyle := lipgloss.NewStyle().
			Foreground(lipgloss.Color("9"))
		content = append(content, "", errorStyle.Render("✗ Could not list installed models"))
	}

	content = append(content, "")
	helpStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("240")).
		Italic(true)
	content = append(content, helpStyle.Render("↑/↓: Navigate • Enter: Select • Esc: Cancel"))

	panelStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("62")).
		Padding(1, 1).
		Width(max(m.width-2, 10)).
		Height(m.height)

	return panelStyle.Render(strings.Join(content, "\n"))
}
