package settings

import (
	"errors"
	"fmt"
	"reflect"
	"testing"

	"github.com/kevensen/conductor-chat/internal/backends"
	"github.com/kevensen/conductor-chat/internal/toolservers"
)

func TestInitializeEmptyPartial(t *testing.T) {
	s := Initialize(backends.Default(), Partial{})

	if s.Backend != "openai" {
		t.Errorf("Backend = %q, want openai", s.Backend)
	}
	if s.Model != "gpt-5.2" {
		t.Errorf("Model = %q, want gpt-5.2", s.Model)
	}
	if s.BackendLabel != "OpenAI" {
		t.Errorf("BackendLabel = %q, want OpenAI", s.BackendLabel)
	}
	if s.UseCustomURL {
		t.Error("UseCustomURL should be false")
	}
	if s.APIKey != "" {
		t.Errorf("APIKey = %q, want empty", s.APIKey)
	}
	if s.MoleculeName != "" {
		t.Errorf("MoleculeName = %q, want unset", s.MoleculeName)
	}
}

func TestInitializeFillsDefaults(t *testing.T) {
	tests := []struct {
		name    string
		partial Partial
		want    OrchestratorSettings
	}{
		{
			name:    "known backend without model",
			partial: Partial{Backend: String("gemini")},
			want:    OrchestratorSettings{Backend: "gemini", BackendLabel: "Google Gemini", Model: "gemini-2.0-flash-exp"},
		},
		{
			name:    "unknown backend falls back to first entry",
			partial: Partial{Backend: String("anthropic"), Model: String("claude-opus")},
			want:    OrchestratorSettings{Backend: "openai", BackendLabel: "OpenAI", Model: "gpt-5.2"},
		},
		{
			name:    "listed model kept",
			partial: Partial{Backend: String("livai"), Model: String("claude-sonnet-4.5")},
			want:    OrchestratorSettings{Backend: "livai", BackendLabel: "LivAI", Model: "claude-sonnet-4.5"},
		},
		{
			name:    "unlisted model replaced",
			partial: Partial{Backend: String("vllm"), Model: String("gpt-5")},
			want:    OrchestratorSettings{Backend: "vllm", BackendLabel: "vLLM", Model: "gpt-oss-120b"},
		},
		{
			name:    "free text backend keeps its model",
			partial: Partial{Backend: String("huggingface"), Model: String("mistral-7b")},
			want:    OrchestratorSettings{Backend: "huggingface", BackendLabel: "HuggingFace Local", Model: "mistral-7b"},
		},
		{
			name:    "free text backend without model",
			partial: Partial{Backend: String("custom")},
			want:    OrchestratorSettings{Backend: "custom", BackendLabel: "Custom URL", Model: ""},
		},
		{
			name:    "custom model honored",
			partial: Partial{Backend: String("openai"), Model: String("ft:gpt-5:lab"), UseCustomModel: Bool(true)},
			want:    OrchestratorSettings{Backend: "openai", BackendLabel: "OpenAI", Model: "ft:gpt-5:lab", UseCustomModel: true},
		},
		{
			name:    "empty custom model falls back",
			partial: Partial{Backend: String("openai"), UseCustomModel: Bool(true)},
			want:    OrchestratorSettings{Backend: "openai", BackendLabel: "OpenAI", Model: "gpt-5.2"},
		},
		{
			name:    "custom url kept with flag",
			partial: Partial{Backend: String("livai"), UseCustomURL: Bool(true), CustomURL: String(" https://livai.example/v1 ")},
			want:    OrchestratorSettings{Backend: "livai", BackendLabel: "LivAI", Model: "gpt-5.2", UseCustomURL: true, CustomURL: "https://livai.example/v1"},
		},
		{
			name:    "custom url dropped without flag",
			partial: Partial{CustomURL: String("https://ignored.example")},
			want:    OrchestratorSettings{Backend: "openai", BackendLabel: "OpenAI", Model: "gpt-5.2"},
		},
		{
			name:    "flag dropped without url",
			partial: Partial{UseCustomURL: Bool(true), CustomURL: String("  ")},
			want:    OrchestratorSettings{Backend: "openai", BackendLabel: "OpenAI", Model: "gpt-5.2"},
		},
		{
			name:    "stale label is re-derived",
			partial: Partial{Backend: String("alcf"), BackendLabel: String("Something Else")},
			want:    OrchestratorSettings{Backend: "alcf", BackendLabel: "ALCF Sophia", Model: "openai/gpt-oss-120b"},
		},
		{
			name:    "api key and molecule name copied",
			partial: Partial{APIKey: String("sk-test"), MoleculeName: Molecule(MoleculeIUPAC)},
			want:    OrchestratorSettings{Backend: "openai", BackendLabel: "OpenAI", Model: "gpt-5.2", APIKey: "sk-test", MoleculeName: MoleculeIUPAC},
		},
		{
			name:    "unknown molecule name dropped",
			partial: Partial{MoleculeName: Molecule("trivial")},
			want:    OrchestratorSettings{Backend: "openai", BackendLabel: "OpenAI", Model: "gpt-5.2"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Initialize(backends.Default(), tt.partial)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Initialize() =\n %+v\nwant\n %+v", got, tt.want)
			}
		})
	}
}

func TestInitializeModelIsAlwaysListed(t *testing.T) {
	catalog := backends.Default()
	models := []string{"", "gpt-5", "gemini-1.5-pro", "gpt-oss-20b", "nonsense"}

	for _, opt := range catalog.Options() {
		for _, model := range models {
			p := Partial{Backend: String(opt.Value), Model: String(model)}
			t.Run(fmt.Sprintf("%s/%s", opt.Value, model), func(t *testing.T) {
				s := Initialize(catalog, p)
				resolved, ok := catalog.Lookup(s.Backend)
				if !ok {
					t.Fatalf("backend %q not in catalog", s.Backend)
				}
				if resolved.RequiresFreeText() {
					return
				}
				if !resolved.HasModel(s.Model) {
					t.Errorf("model %q not listed for %s", s.Model, s.Backend)
				}
			})
		}
	}
}

func TestInitializeToolServers(t *testing.T) {
	p := Partial{ToolServers: []toolservers.ToolServer{
		{ID: "a", URL: "http://a"},
		{ID: "a", URL: "http://b"},
		{ID: "c", URL: ""},
	}}

	s := Initialize(backends.Default(), p)
	if len(s.ToolServers) != 2 {
		t.Fatalf("ToolServers = %+v, want 2 entries", s.ToolServers)
	}
	if s.ToolServers[0].ID == s.ToolServers[1].ID {
		t.Errorf("duplicate ids survived: %+v", s.ToolServers)
	}

	p.ToolServers[0].URL = "http://mutated"
	if s.ToolServers[0].URL != "http://a" {
		t.Error("Initialize aliased the partial's tool server slice")
	}
}

func TestSelectBackend(t *testing.T) {
	catalog := backends.Default()
	start := Initialize(catalog, Partial{
		Backend:        String("openai"),
		Model:          String("my-model"),
		UseCustomModel: Bool(true),
		UseCustomURL:   Bool(true),
		CustomURL:      String("https://proxy.example/v1"),
		APIKey:         String("sk-keep"),
		MoleculeName:   Molecule(MoleculeSMILES),
	})

	got := SelectBackend(catalog, start, "ollama")

	want := OrchestratorSettings{
		Backend:      "ollama",
		BackendLabel: "Ollama",
		Model:        "gpt-oss:latest",
		APIKey:       "sk-keep",
		MoleculeName: MoleculeSMILES,
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("SelectBackend() =\n %+v\nwant\n %+v", got, want)
	}

	if start.Backend != "openai" || !start.UseCustomURL {
		t.Error("SelectBackend modified its input")
	}
}

func TestSelectBackendFreeTextClearsModel(t *testing.T) {
	s := SelectBackend(backends.Default(), Initialize(backends.Default(), Partial{}), "huggingface")
	if s.Model != "" {
		t.Errorf("Model = %q, want empty for free-text backend", s.Model)
	}
	if s.BackendLabel != "HuggingFace Local" {
		t.Errorf("BackendLabel = %q", s.BackendLabel)
	}
}

func TestSelectBackendUnknownFallsBack(t *testing.T) {
	start := Initialize(backends.Default(), Partial{Backend: String("gemini")})
	s := SelectBackend(backends.Default(), start, "does-not-exist")
	if s.Backend != "openai" || s.Model != "gpt-5.2" {
		t.Errorf("fallback = %s/%s, want openai/gpt-5.2", s.Backend, s.Model)
	}
}

func TestSelectBackendIsIdempotent(t *testing.T) {
	catalog := backends.Default()
	start := Initialize(catalog, Partial{Backend: String("livai"), Model: String("gpt-5")})

	for _, opt := range catalog.Options() {
		once := SelectBackend(catalog, start, opt.Value)
		twice := SelectBackend(catalog, once, opt.Value)
		if !reflect.DeepEqual(once, twice) {
			t.Errorf("SelectBackend(%s) not idempotent:\n %+v\n %+v", opt.Value, once, twice)
		}
	}
}

func TestSetCustomURL(t *testing.T) {
	start := Initialize(backends.Default(), Partial{Backend: String("vllm")})

	s, err := SetCustomURL(start, "not even a url")
	if err != nil {
		t.Fatalf("SetCustomURL() error = %v", err)
	}
	if !s.UseCustomURL || s.CustomURL != "not even a url" {
		t.Errorf("custom url not stored: %+v", s)
	}
	if got := EffectiveURL(backends.Default(), s); got != "not even a url" {
		t.Errorf("EffectiveURL = %q", got)
	}

	_, err = SetCustomURL(start, "   ")
	if !errors.Is(err, ErrEmptyURL) {
		t.Errorf("SetCustomURL(blank) error = %v, want ErrEmptyURL", err)
	}

	cleared := ClearCustomURL(s)
	if cleared.UseCustomURL || cleared.CustomURL != "" {
		t.Errorf("ClearCustomURL left %+v", cleared)
	}
}

func TestEffectiveURL(t *testing.T) {
	catalog := backends.Default()

	openai := Initialize(catalog, Partial{})
	if got := EffectiveURL(catalog, openai); got != "https://api.openai.com/v1" {
		t.Errorf("EffectiveURL(openai) = %q", got)
	}

	livai := Initialize(catalog, Partial{Backend: String("livai")})
	if got := EffectiveURL(catalog, livai); got != "" {
		t.Errorf("EffectiveURL(livai) = %q, want empty default", got)
	}
}

func TestSetModel(t *testing.T) {
	catalog := backends.Default()
	openai := Initialize(catalog, Partial{})
	custom := SetUseCustomModel(catalog, openai, true)
	hf := SelectBackend(catalog, openai, "huggingface")

	tests := []struct {
		name      string
		current   OrchestratorSettings
		model     string
		wantErr   error
		wantModel string
	}{
		{"listed", openai, "gpt-5-mini", nil, "gpt-5-mini"},
		{"unlisted", openai, "not-a-real-model", ErrInvalidModel, "gpt-5.2"},
		{"empty", openai, "", ErrInvalidModel, "gpt-5.2"},
		{"custom accepts anything", custom, "not-a-real-model", nil, "not-a-real-model"},
		{"custom rejects empty", custom, "  ", ErrInvalidModel, "gpt-5.2"},
		{"free text backend", hf, "bigscience/bloom", nil, "bigscience/bloom"},
		{"free text backend empty", hf, "", ErrInvalidModel, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SetModel(catalog, tt.current, tt.model)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("error = %v, want %v", err, tt.wantErr)
				}
				if KindOf(err) != InvalidModel {
					t.Errorf("KindOf = %v, want InvalidModel", KindOf(err))
				}
				if !reflect.DeepEqual(got, tt.current) {
					t.Errorf("rejected SetModel changed state: %+v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.Model != tt.wantModel {
				t.Errorf("Model = %q, want %q", got.Model, tt.wantModel)
			}
		})
	}
}

func TestSetUseCustomModelOffSnapsBack(t *testing.T) {
	catalog := backends.Default()
	s := SetUseCustomModel(catalog, Initialize(catalog, Partial{Backend: String("gemini")}), true)
	s, err := SetModel(catalog, s, "gemini-exp-9000")
	if err != nil {
		t.Fatalf("SetModel() error = %v", err)
	}

	off := SetUseCustomModel(catalog, s, false)
	if off.UseCustomModel || off.Model != "gemini-2.0-flash-exp" {
		t.Errorf("SetUseCustomModel(false) = %+v", off)
	}

	s, _ = SetModel(catalog, s, "gemini-1.5-pro")
	off = SetUseCustomModel(catalog, s, false)
	if off.Model != "gemini-1.5-pro" {
		t.Errorf("listed model was replaced: %q", off.Model)
	}
}

func TestSetCustomModel(t *testing.T) {
	catalog := backends.Default()
	base := Initialize(catalog, Partial{Backend: String("vllm")})

	tests := []struct {
		name       string
		model      string
		wantErr    bool
		wantModel  string
		wantCustom bool
	}{
		{"unlisted name", "my-finetune", false, "my-finetune", true},
		{"listed name", "gpt-oss-20b", false, "gpt-oss-20b", true},
		{"empty name", "", true, "gpt-oss-120b", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SetCustomModel(catalog, base, tt.model)
			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr %v", err, tt.wantErr)
			}
			if got.Model != tt.wantModel || got.UseCustomModel != tt.wantCustom {
				t.Errorf("SetCustomModel() = %s custom=%v", got.Model, got.UseCustomModel)
			}
		})
	}
}

func TestSetMoleculeName(t *testing.T) {
	s := Initialize(backends.Default(), Partial{})

	for _, opt := range MoleculeNameOptions {
		got, err := SetMoleculeName(s, opt.Value)
		if err != nil || got.MoleculeName != opt.Value {
			t.Errorf("SetMoleculeName(%s) = %q, %v", opt.Value, got.MoleculeName, err)
		}
	}

	if _, err := SetMoleculeName(s, "common"); !errors.Is(err, ErrInvalidMoleculeName) {
		t.Errorf("error = %v, want ErrInvalidMoleculeName", err)
	}

	set, _ := SetMoleculeName(s, MoleculeFormula)
	cleared, err := SetMoleculeName(set, "")
	if err != nil || cleared.MoleculeName != "" {
		t.Errorf("clearing molecule name = %q, %v", cleared.MoleculeName, err)
	}
}

func TestAddToolServer(t *testing.T) {
	s := Initialize(backends.Default(), Partial{})

	next, server, err := AddToolServer(s, "http://localhost:8126/mcp", "Retro")
	if err != nil {
		t.Fatalf("AddToolServer() error = %v", err)
	}
	if len(next.ToolServers) != 1 || next.ToolServers[0] != server {
		t.Errorf("ToolServers = %+v", next.ToolServers)
	}
	if len(s.ToolServers) != 0 {
		t.Error("AddToolServer modified its input")
	}

	same, _, err := AddToolServer(next, "", "nothing")
	if !errors.Is(err, ErrEmptyURL) {
		t.Errorf("error = %v, want ErrEmptyURL", err)
	}
	if !errors.Is(err, toolservers.ErrEmptyURL) {
		t.Errorf("error does not wrap toolservers.ErrEmptyURL: %v", err)
	}
	if !reflect.DeepEqual(same, next) {
		t.Errorf("rejected add changed state: %+v", same)
	}
}

func TestAddThenRemoveToolServerRestores(t *testing.T) {
	s := Initialize(backends.Default(), Partial{ToolServers: []toolservers.ToolServer{
		{ID: "x", URL: "http://x", Name: "X"},
		{ID: "y", URL: "http://y"},
	}})

	added, server, err := AddToolServer(s, "http://z", "")
	if err != nil {
		t.Fatalf("AddToolServer() error = %v", err)
	}
	restored, removed := RemoveToolServer(added, server.ID)
	if !removed {
		t.Fatal("expected removal")
	}
	if !reflect.DeepEqual(restored.ToolServers, s.ToolServers) {
		t.Errorf("restored = %+v, want %+v", restored.ToolServers, s.ToolServers)
	}
}

func TestRemoveToolServerMissingIsNoop(t *testing.T) {
	s := Initialize(backends.Default(), Partial{ToolServers: []toolservers.ToolServer{{ID: "x", URL: "http://x"}}})
	got, removed := RemoveToolServer(s, "nope")
	if removed {
		t.Error("removed reported true for a missing id")
	}
	if !reflect.DeepEqual(got, s) {
		t.Errorf("state changed: %+v", got)
	}
}

func TestCommitIsDeepCopy(t *testing.T) {
	s := Initialize(backends.Default(), Partial{ToolServers: []toolservers.ToolServer{{ID: "x", URL: "http://x"}}})
	s.BackendLabel = "stale"

	committed := Commit(backends.Default(), s)
	if committed.BackendLabel != "OpenAI" {
		t.Errorf("BackendLabel = %q, want re-synced OpenAI", committed.BackendLabel)
	}

	committed.ToolServers[0].URL = "http://changed"
	if s.ToolServers[0].URL != "http://x" {
		t.Error("Commit shares tool servers with its input")
	}
}

func TestCommitOfInitializedIsStable(t *testing.T) {
	catalog := backends.Default()
	s := Initialize(catalog, Partial{
		Backend:      String("livai"),
		Model:        String("claude-sonnet-3.7"),
		UseCustomURL: Bool(true),
		CustomURL:    String("https://livai.example"),
		MoleculeName: Molecule(MoleculeBrand),
	})
	if got := Commit(catalog, s); !reflect.DeepEqual(got, s) {
		t.Errorf("Commit() =\n %+v\nwant\n %+v", got, s)
	}
}

func TestPartialMerge(t *testing.T) {
	base := Partial{Backend: String("openai"), APIKey: String("a")}
	over := Partial{Backend: String("gemini"), Model: String("gemini-1.5-pro")}

	merged := base.Merge(over)
	if *merged.Backend != "gemini" || *merged.Model != "gemini-1.5-pro" || *merged.APIKey != "a" {
		t.Errorf("Merge() = backend %s model %s key %s", *merged.Backend, *merged.Model, *merged.APIKey)
	}
}
