package orchestrator

import (
	"context"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/kevensen/conductor-chat/internal/settings"
	"github.com/kevensen/conductor-chat/internal/tui/connection"
	"github.com/kevensen/conductor-chat/internal/tui/tabs/orchestrator/models"
)

func keyMsg(s string) tea.KeyMsg {
	switch s {
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "left":
		return tea.KeyMsg{Type: tea.KeyLeft}
	case "right":
		return tea.KeyMsg{Type: tea.KeyRight}
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "home":
		return tea.KeyMsg{Type: tea.KeyHome}
	case "ctrl+s":
		return tea.KeyMsg{Type: tea.KeyCtrlS}
	case "ctrl+u":
		return tea.KeyMsg{Type: tea.KeyCtrlU}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func newTab(t *testing.T, p settings.Partial) (Model, *settings.Session) {
	t.Helper()
	session := settings.NewSession(nil)
	session.Initialize(p)
	m := NewModel(session, "http://localhost:11434")
	m, _ = m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	return m, session
}

func press(m Model, keys ...string) Model {
	for _, k := range keys {
		m, _ = m.Update(keyMsg(k))
	}
	return m
}

func gotoField(m Model, f Field) Model {
	m = press(m, "home")
	for m.ActiveField() != f {
		before := m.ActiveField()
		m = press(m, "down")
		if m.ActiveField() == before {
			break
		}
	}
	return m
}

func TestBackendCycling(t *testing.T) {
	m, session := newTab(t, settings.Partial{})

	m = press(m, "right")
	if s := session.Current(); s.Backend != "livai" || s.Model != "gpt-5.2" {
		t.Errorf("after right: %s/%s, want livai/gpt-5.2", s.Backend, s.Model)
	}

	m = press(m, "left", "left")
	if s := session.Current(); s.Backend != "custom" || s.Model != "" {
		t.Errorf("after wrapping left: %s/%q, want custom with empty model", s.Backend, s.Model)
	}

	if !strings.Contains(m.Message(), "Custom URL") {
		t.Errorf("Message() = %q", m.Message())
	}
	if session.State() != settings.Editing {
		t.Errorf("State() = %v, want editing", session.State())
	}
}

func TestCustomURLEditing(t *testing.T) {
	m, session := newTab(t, settings.Partial{Backend: settings.String("livai")})

	m = gotoField(m, UseCustomURLField)
	m = press(m, "enter")
	if !m.IsEditing() || m.ActiveField() != CustomURLField {
		t.Fatalf("expected to be editing the custom URL, field %v", m.ActiveField())
	}

	// Empty URL is rejected and the input stays open
	m = press(m, "ctrl+u", "enter")
	if !m.IsEditing() {
		t.Error("input closed after a rejected value")
	}
	if !strings.Contains(m.Message(), "URL cannot be empty") {
		t.Errorf("Message() = %q", m.Message())
	}
	if session.Current().UseCustomURL {
		t.Error("rejected URL changed the session")
	}

	m = press(m, "https://livai.example/v1", "enter")
	if m.IsEditing() {
		t.Error("input still open after a valid value")
	}
	s := session.Current()
	if !s.UseCustomURL || s.CustomURL != "https://livai.example/v1" {
		t.Errorf("custom url = %v %q", s.UseCustomURL, s.CustomURL)
	}
	if session.EffectiveURL() != "https://livai.example/v1" {
		t.Errorf("EffectiveURL() = %q", session.EffectiveURL())
	}

	// Toggling off clears the override
	m = gotoField(m, UseCustomURLField)
	press(m, "enter")
	if s := session.Current(); s.UseCustomURL || s.CustomURL != "" {
		t.Errorf("override not cleared: %+v", s)
	}
}

func TestCancelCustomURLReturnsToToggle(t *testing.T) {
	m, session := newTab(t, settings.Partial{})
	m = gotoField(m, UseCustomURLField)
	m = press(m, "enter", "esc")

	if m.IsEditing() {
		t.Error("still editing after esc")
	}
	if m.ActiveField() != UseCustomURLField {
		t.Errorf("ActiveField() = %v", m.ActiveField())
	}
	if session.Current().UseCustomURL {
		t.Error("cancelled edit enabled the override")
	}
}

func TestModelPanelSelection(t *testing.T) {
	m, session := newTab(t, settings.Partial{Backend: settings.String("vllm")})
	m = gotoField(m, ModelField)

	m, cmd := m.Update(keyMsg("enter"))
	if cmd != nil {
		t.Error("vLLM should not trigger model discovery")
	}
	if !m.IsEditing() {
		t.Fatal("model panel not open")
	}

	m, _ = m.Update(keyMsg("down"))
	m, cmd = m.Update(keyMsg("enter"))
	if cmd == nil {
		t.Fatal("selection produced no command")
	}
	m, _ = m.Update(cmd())

	if m.IsEditing() {
		t.Error("panel still open after selection")
	}
	if got := session.Current().Model; got != "gpt-oss-20b" {
		t.Errorf("Model = %q, want gpt-oss-20b", got)
	}
}

func TestDiscoveredModelBecomesCustom(t *testing.T) {
	m, session := newTab(t, settings.Partial{Backend: settings.String("ollama")})

	m, _ = m.Update(models.ModelSelectedMsg{ModelName: "llama3.3:latest", Listed: false})

	s := session.Current()
	if !s.UseCustomModel || s.Model != "llama3.3:latest" {
		t.Errorf("settings = %+v, want custom llama3.3", s)
	}
	if !strings.Contains(m.Message(), "llama3.3:latest") {
		t.Errorf("Message() = %q", m.Message())
	}
}

func TestRejectedDiscoveredModelKeepsCustomFlagOff(t *testing.T) {
	m, session := newTab(t, settings.Partial{Backend: settings.String("ollama")})
	before := session.Current()

	m, _ = m.Update(models.ModelSelectedMsg{ModelName: "", Listed: false})

	s := session.Current()
	if s.UseCustomModel || s.Model != before.Model {
		t.Errorf("settings = %+v after a rejected pick, want %+v", s, before)
	}
	if !strings.HasPrefix(m.Message(), "Error:") {
		t.Errorf("Message() = %q", m.Message())
	}
}

func TestFreeTextModel(t *testing.T) {
	m, session := newTab(t, settings.Partial{Backend: settings.String("huggingface")})
	m = gotoField(m, ModelField)

	m = press(m, "enter")
	if !m.IsEditing() {
		t.Fatal("free-text backend should open the text input")
	}
	m = press(m, "mistral-7b", "enter")

	if got := session.Current().Model; got != "mistral-7b" {
		t.Errorf("Model = %q", got)
	}
}

func TestUnlistedModelRejectedWithoutCustomFlag(t *testing.T) {
	_, session := newTab(t, settings.Partial{})
	if _, err := session.SetModel("my-finetune"); err == nil {
		t.Fatal("expected InvalidModel")
	}

	m, session := newTab(t, settings.Partial{})
	m = gotoField(m, UseCustomModelField)
	m = press(m, "enter")
	if !session.Current().UseCustomModel {
		t.Fatal("custom model toggle did not turn on")
	}

	m = gotoField(m, ModelField)
	m = press(m, "enter", "ctrl+u", "my-finetune", "enter")
	if got := session.Current().Model; got != "my-finetune" {
		t.Errorf("Model = %q", got)
	}
}

func TestAPIKeyIsMasked(t *testing.T) {
	m, session := newTab(t, settings.Partial{})
	m = gotoField(m, APIKeyField)
	m = press(m, "enter", "sk-supersecret1234", "enter")

	if got := session.Current().APIKey; got != "sk-supersecret1234" {
		t.Fatalf("APIKey = %q", got)
	}

	view := m.View()
	if strings.Contains(view, "supersecret") {
		t.Error("API key rendered in clear text")
	}
	if !strings.Contains(view, "1234") {
		t.Error("masked key should keep its last four characters")
	}
}

func TestMoleculeNameCycle(t *testing.T) {
	m, session := newTab(t, settings.Partial{})
	m = gotoField(m, MoleculeNameField)

	m = press(m, "enter")
	if got := session.Current().MoleculeName; got != settings.MoleculeBrand {
		t.Errorf("MoleculeName = %q, want brand", got)
	}
	m = press(m, "left", "left")
	if got := session.Current().MoleculeName; got != settings.MoleculeSMILES {
		t.Errorf("MoleculeName = %q, want smiles", got)
	}
}

func TestCommitAndRevert(t *testing.T) {
	var committed []settings.OrchestratorSettings
	session := settings.NewSession(nil, settings.WithCallbacks(settings.Callbacks{
		OnSettingsChange: func(s settings.OrchestratorSettings) { committed = append(committed, s) },
	}))
	session.Initialize(settings.Partial{Backend: settings.String("gemini")})
	m := NewModel(session, "")
	m, _ = m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})

	m = press(m, "r")
	if !strings.Contains(m.Message(), "Nothing applied") {
		t.Errorf("Message() = %q", m.Message())
	}

	m = press(m, "ctrl+s")
	if len(committed) != 1 || committed[0].Backend != "gemini" {
		t.Fatalf("committed = %+v", committed)
	}
	if session.State() != settings.Committed {
		t.Errorf("State() = %v", session.State())
	}

	m = press(m, "right")
	if session.Current().Backend == "gemini" {
		t.Fatal("backend did not change")
	}

	press(m, "r")
	if got := session.Current().Backend; got != "gemini" {
		t.Errorf("after revert Backend = %q, want gemini", got)
	}
	if len(committed) != 1 {
		t.Errorf("revert emitted a commit")
	}
}

func TestNavigationSkipsHiddenCustomURL(t *testing.T) {
	m, _ := newTab(t, settings.Partial{})
	m = gotoField(m, UseCustomURLField)
	m = press(m, "down")
	if m.ActiveField() != UseCustomModelField {
		t.Errorf("ActiveField() = %v, want the custom model toggle", m.ActiveField())
	}
	m = press(m, "up")
	if m.ActiveField() != UseCustomURLField {
		t.Errorf("ActiveField() = %v, want the custom URL toggle", m.ActiveField())
	}
}

func TestViewBeforeSize(t *testing.T) {
	session := settings.NewSession(nil)
	session.Initialize(settings.Partial{})
	if got := NewModel(session, "").View(); got != "Loading..." {
		t.Errorf("View() = %q", got)
	}
}

func TestOverwrittenAnnouncesReplacedEdits(t *testing.T) {
	m, session := newTab(t, settings.Partial{Backend: settings.String("ollama")})
	m = gotoField(m, APIKeyField)
	m = press(m, "enter", "k", "enter")
	if session.State() != settings.Editing {
		t.Fatalf("state = %v, want Editing", session.State())
	}

	reported := session.Initialize(settings.Partial{Backend: settings.String("openai")})
	m = m.Overwritten(reported)
	if !strings.Contains(m.Message(), "replaced your unapplied changes") {
		t.Errorf("Message() = %q", m.Message())
	}

	// R now restores the reported settings
	m = press(m, "R")
	if got := session.Current().Backend; got != "openai" {
		t.Errorf("backend after revert = %q, want openai", got)
	}
}

func TestUsernameInHeader(t *testing.T) {
	m, _ := newTab(t, settings.Partial{})
	if strings.Contains(m.View(), "Signed in as") {
		t.Error("header names a user before the conductor reported one")
	}
	m = m.SetUsername("ada")
	if !strings.Contains(m.View(), "Signed in as ada") {
		t.Errorf("header misses the user:\n%s", m.View())
	}
}

func TestEndpointCheckFollowsContext(t *testing.T) {
	session := settings.NewSession(nil)
	session.Initialize(settings.Partial{Backend: settings.String("ollama")})

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	// Port 1 would refuse anyway; the canceled context must win first
	cmd := NewModel(session, "http://127.0.0.1:1").WithContext(ctx).Init()
	if cmd == nil {
		t.Fatal("Init() = nil for the Ollama backend")
	}
	raw := cmd()
	msg, ok := raw.(connection.CheckMsg)
	if !ok {
		t.Fatalf("Init() produced %T", raw)
	}
	if !errors.Is(msg.Error, context.Canceled) {
		t.Errorf("Error = %v, want context.Canceled", msg.Error)
	}
}
