// Package backends holds the static registry of inference backends offered in the
// settings panel.
package backends

import "slices"

// Custom is the backend whose endpoint is always supplied by the user
const Custom = "custom"

// BackendOption describes one selectable inference backend
type BackendOption struct {
	Value      string   `json:"value"`
	Label      string   `json:"label"`
	DefaultURL string   `json:"defaultUrl"` // Empty means the URL must be supplied
	Models     []string `json:"models"`     // A single "" entry means free-text model entry
}

// RequiresFreeText reports whether the backend has no fixed model list
func (o BackendOption) RequiresFreeText() bool {
	return len(o.Models) == 0 || (len(o.Models) == 1 && o.Models[0] == "")
}

// HasModel reports whether id is one of the backend's enumerated models
func (o BackendOption) HasModel(id string) bool {
	if id == "" || o.RequiresFreeText() {
		return false
	}
	return slices.Contains(o.Models, id)
}

// DefaultModel returns the first enumerated model, or "" for free-text backends
func (o BackendOption) DefaultModel() string {
	if o.RequiresFreeText() {
		return ""
	}
	return o.Models[0]
}

// Catalog is an ordered, immutable set of backend options
type Catalog struct {
	options []BackendOption
	index   map[string]int
}

// NewCatalog builds a catalog preserving declaration order. Later duplicates of a
// value are ignored so every value maps to exactly one option.
func NewCatalog(options ...BackendOption) *Catalog {
	c := &Catalog{
		options: make([]BackendOption, 0, len(options)),
		index:   make(map[string]int, len(options)),
	}
	for _, opt := range options {
		if _, dup := c.index[opt.Value]; dup {
			continue
		}
		opt.Models = slices.Clone(opt.Models)
		c.index[opt.Value] = len(c.options)
		c.options = append(c.options, opt)
	}
	return c
}

var defaultCatalog = NewCatalog(
	BackendOption{
		Value:      "openai",
		Label:      "OpenAI",
		DefaultURL: "https://api.openai.com/v1",
		Models:     []string{"gpt-5.2", "gpt-5.1", "gpt-5", "gpt-5-mini", "gpt-5-nano"},
	},
	BackendOption{
		Value:  "livai",
		Label:  "LivAI",
		Models: []string{"gpt-5.2", "gpt-5.1", "gpt-5", "gpt-5-mini", "gpt-5-nano", "claude-sonnet-4.5", "claude-sonnet-3.7"},
	},
	BackendOption{
		Value:  "llamame",
		Label:  "LLamaMe",
		Models: []string{"openai/gpt-oss-120b", "meta-llama/Llama-3.3-70B-Instruct"},
	},
	BackendOption{
		Value:  "alcf",
		Label:  "ALCF Sophia",
		Models: []string{"openai/gpt-oss-120b", "openai/gpt-oss-20b", "meta-llama/Llama-4-Scout-17B-16E-Instruct"},
	},
	BackendOption{
		Value:      "gemini",
		Label:      "Google Gemini",
		DefaultURL: "https://generativelanguage.googleapis.com/v1",
		Models:     []string{"gemini-2.0-flash-exp", "gemini-1.5-pro", "gemini-1.5-flash", "gemini-1.0-pro"},
	},
	BackendOption{
		Value:  "ollama",
		Label:  "Ollama",
		Models: []string{"gpt-oss:latest", "gpt-oss-120b", "gpt-oss-20b"},
	},
	BackendOption{
		Value:  "vllm",
		Label:  "vLLM",
		Models: []string{"gpt-oss-120b", "gpt-oss-20b"},
	},
	BackendOption{
		Value:  "huggingface",
		Label:  "HuggingFace Local",
		Models: []string{""},
	},
	BackendOption{
		Value:      Custom,
		Label:      "Custom URL",
		DefaultURL: "http://localhost:8000",
		Models:     []string{""},
	},
)

// Default returns the built-in backend catalog
func Default() *Catalog {
	return defaultCatalog
}

// Lookup returns the option registered under value
func (c *Catalog) Lookup(value string) (BackendOption, bool) {
	i, ok := c.index[value]
	if !ok {
		return BackendOption{}, false
	}
	return c.clone(i), true
}

// ListModels returns the ordered model ids for value. Free-text backends yield the
// single empty-string sentinel; unknown values yield nil.
func (c *Catalog) ListModels(value string) []string {
	i, ok := c.index[value]
	if !ok {
		return nil
	}
	return slices.Clone(c.options[i].Models)
}

// First returns the first declared option, the fallback for unknown values
func (c *Catalog) First() BackendOption {
	if len(c.options) == 0 {
		return BackendOption{}
	}
	return c.clone(0)
}

// Resolve returns the option for value, falling back to First when value is unknown.
// The boolean reports whether value matched.
func (c *Catalog) Resolve(value string) (BackendOption, bool) {
	if opt, ok := c.Lookup(value); ok {
		return opt, true
	}
	return c.First(), false
}

// Options returns every option in declaration order
func (c *Catalog) Options() []BackendOption {
	out := make([]BackendOption, len(c.options))
	for i := range c.options {
		out[i] = c.clone(i)
	}
	return out
}

// Labels maps backend values to their display labels
func (c *Catalog) Labels() map[string]string {
	labels := make(map[string]string, len(c.options))
	for _, opt := range c.options {
		labels[opt.Value] = opt.Label
	}
	return labels
}

// Len returns the number of options
func (c *Catalog) Len() int {
	return len(c.options)
}

// Next returns the option declared after value, wrapping around. Used to cycle the
// backend field in the settings panel.
func (c *Catalog) Next(value string, step int) BackendOption {
	if len(c.options) == 0 {
		return BackendOption{}
	}
	i, ok := c.index[value]
	if !ok {
		return c.First()
	}
	n := len(c.options)
	return c.clone(((i+step)%n + n) % n)
}

func (c *Catalog) clone(i int) BackendOption {
	opt := c.options[i]
	opt.Models = slices.Clone(opt.Models)
	return opt
}
