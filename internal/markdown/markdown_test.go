package markdown

import (
	"strings"
	"testing"
)

func TestRenderKeepsText(t *testing.T) {
	r := NewStyledRenderer(StyleNoTTY, 60)

	out := r.Render("# Aspirin\n\nAcetylsalicylic acid is **common**.")
	for _, want := range []string{"Aspirin", "Acetylsalicylic acid", "common"} {
		if !strings.Contains(out, want) {
			t.Errorf("Render() output missing %q:\n%s", want, out)
		}
	}
}

func TestRenderWraps(t *testing.T) {
	r := NewStyledRenderer(StyleNoTTY, 20)
	out := r.Render(strings.Repeat("benzene ", 12))

	for _, line := range strings.Split(out, "\n") {
		if len(strings.TrimRight(line, " ")) > 20 {
			t.Errorf("line wider than 20 columns: %q", line)
		}
	}
}

func TestSetWidth(t *testing.T) {
	tests := []struct {
		name  string
		width int
		want  int
	}{
		{"positive", 42, 42},
		{"zero uses default", 0, DefaultWidth},
		{"negative uses default", -5, DefaultWidth},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRenderer(10)
			r.SetWidth(tt.width)
			if r.Width() != tt.want {
				t.Errorf("Width() = %d, want %d", r.Width(), tt.want)
			}
		})
	}
}

func TestRenderFallsBackToRawText(t *testing.T) {
	var r *Renderer
	if got := r.Render("plain"); got != "plain" {
		t.Errorf("nil renderer Render() = %q", got)
	}

	broken := &Renderer{}
	if got := broken.Render("**raw**"); got != "**raw**" {
		t.Errorf("unbuilt renderer Render() = %q", got)
	}
}
