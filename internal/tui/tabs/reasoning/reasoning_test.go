package reasoning

import (
	"fmt"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/kevensen/conductor-chat/internal/markdown"
	"github.com/kevensen/conductor-chat/internal/sidebar"
)

func newTab(width, height int) Model {
	m := NewModel(sidebar.New(), markdown.NewStyledRenderer(markdown.StyleNoTTY, width))
	m, _ = m.Update(tea.WindowSizeMsg{Width: width, Height: height})
	return m
}

func step(id int, source, text string) sidebar.Message {
	return sidebar.Message{
		ID:        id,
		Timestamp: "2025-01-02T10:11:12Z",
		Message:   text,
		Source:    source,
	}
}

func press(m Model, keys ...string) Model {
	for _, k := range keys {
		var msg tea.KeyMsg
		switch k {
		case "esc":
			msg = tea.KeyMsg{Type: tea.KeyEsc}
		case "space":
			msg = tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
		case "down":
			msg = tea.KeyMsg{Type: tea.KeyDown}
		case "up":
			msg = tea.KeyMsg{Type: tea.KeyUp}
		default:
			msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
		}
		m, _ = m.Update(msg)
	}
	return m
}

func TestViewShowsSteps(t *testing.T) {
	m := newTab(100, 30)
	smiles := "CC(=O)OC1=CC=CC=C1C(=O)O"
	m = m.Append(step(1, "Planner", "Looking up aspirin"))
	msg := step(2, "Chemist", "Found the structure")
	msg.SMILES = &smiles
	m = m.Append(msg)

	view := m.View()
	for _, want := range []string{"Planner [", "Looking up aspirin", "Chemist [", "Found the structure", "SMILES: " + smiles, "Steps: 2/2"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}
}

func TestEmptyStates(t *testing.T) {
	m := newTab(80, 20)
	if !strings.Contains(m.View(), "Waiting for the conductor") {
		t.Error("missing empty log message")
	}

	m = m.Append(step(1, "Planner", "hidden step"))
	m.Sidebar().SetSourceVisibility("Planner", false)
	view := m.View()
	if !strings.Contains(view, "Every source is hidden") {
		t.Error("missing all-hidden message")
	}
	if strings.Contains(view, "hidden step") {
		t.Error("hidden step rendered")
	}
}

func TestSourceFilterPanel(t *testing.T) {
	m := newTab(100, 30)
	m = m.Append(step(1, "a", "first from a"))
	m = m.Append(step(2, "b", "only from b"))
	m = m.Append(step(3, "a", "second from a"))

	m = press(m, "f")
	if !m.FilterOpen() {
		t.Fatal("filter panel not open")
	}

	// Cursor starts on "a"
	m = press(m, "space")
	if m.Sidebar().IsSourceVisible("a") {
		t.Fatal("source a still visible")
	}

	var ids []int
	for msg := range m.Sidebar().VisibleMessages() {
		ids = append(ids, msg.ID)
	}
	if len(ids) != 1 || ids[0] != 2 {
		t.Errorf("visible ids = %v, want [2]", ids)
	}

	view := m.View()
	if strings.Contains(view, "first from a") || !strings.Contains(view, "only from b") {
		t.Error("view does not match the filter")
	}
	if !strings.Contains(view, "[ ] a") || !strings.Contains(view, "[x] b") {
		t.Error("filter panel does not show visibility")
	}

	m = press(m, "down", "space")
	if m.Sidebar().IsSourceVisible("b") {
		t.Error("source b still visible")
	}

	m = press(m, "a")
	if !m.Sidebar().IsSourceVisible("a") || !m.Sidebar().IsSourceVisible("b") {
		t.Error("reset did not show every source")
	}

	m = press(m, "esc")
	if m.FilterOpen() {
		t.Error("filter panel still open")
	}
}

func TestCollapse(t *testing.T) {
	m := newTab(80, 20)
	m = m.Append(step(1, "Planner", "secret plan"))

	m = press(m, "b")
	view := m.View()
	if strings.Contains(view, "secret plan") {
		t.Error("collapsed view shows steps")
	}
	if !strings.Contains(view, "1 steps") {
		t.Errorf("collapsed view = %q", view)
	}

	m = press(m, "b")
	if !strings.Contains(m.View(), "secret plan") {
		t.Error("expanded view missing steps")
	}
}

func TestClear(t *testing.T) {
	m := newTab(80, 20)
	m = m.Append(step(1, "a", "one"))
	m.Sidebar().SetSourceVisibility("a", false)

	m = press(m, "c")
	if m.Sidebar().Len() != 0 || len(m.Sidebar().DistinctSources()) != 0 {
		t.Error("log not cleared")
	}
	if m.Sidebar().IsSourceVisible("a") {
		t.Error("clear should keep visibility choices")
	}
}

func TestScrollAndFollow(t *testing.T) {
	m := newTab(80, 12)
	for i := 1; i <= 20; i++ {
		m = m.Append(step(i, "Planner", fmt.Sprintf("step number %d", i)))
	}

	if !strings.Contains(m.View(), "step number 20") {
		t.Error("following view should show the newest step")
	}

	m = press(m, "g")
	if m.Following() {
		t.Error("g should stop following")
	}
	view := m.View()
	if !strings.Contains(view, "step number 1\n") && !strings.Contains(view, "step number 1 ") {
		t.Error("top of log not shown")
	}
	if strings.Contains(view, "step number 20") {
		t.Error("bottom still shown after scrolling to the top")
	}

	m = press(m, "G")
	if !m.Following() {
		t.Error("G should resume following")
	}

	m = press(m, "up")
	if m.Following() {
		t.Error("scrolling up should stop following")
	}
	for range 200 {
		m = press(m, "down")
	}
	if !m.Following() {
		t.Error("reaching the bottom should resume following")
	}
}

func TestFormatTimestamp(t *testing.T) {
	if got := formatTimestamp("not a time"); got != "not a time" {
		t.Errorf("formatTimestamp() = %q", got)
	}
	if got := formatTimestamp("2025-01-02T10:11:12Z"); len(got) != len("15:04:05") {
		t.Errorf("formatTimestamp() = %q", got)
	}
}

func TestNilRenderer(t *testing.T) {
	m := NewModel(nil, nil)
	m, _ = m.Update(tea.WindowSizeMsg{Width: 80, Height: 20})
	m = m.Append(step(1, "", "**raw**"))

	view := m.View()
	if !strings.Contains(view, "**raw**") {
		t.Error("raw text not shown without a renderer")
	}
	if !strings.Contains(view, "System [") {
		t.Error("empty source should display as System")
	}
}
