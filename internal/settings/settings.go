// Package settings implements the orchestrator settings model behind the settings
// panel: defaults-merge from the backend catalog, validated field setters, tool server
// management and commit notification.
package settings

import (
	"log/slog"

	"github.com/kevensen/conductor-chat/internal/toolservers"
)

// MoleculeNameFormat controls how chemical entity names are displayed
type MoleculeNameFormat string

const (
	MoleculeBrand   MoleculeNameFormat = "brand"
	MoleculeIUPAC   MoleculeNameFormat = "iupac"
	MoleculeFormula MoleculeNameFormat = "formula"
	MoleculeSMILES  MoleculeNameFormat = "smiles"
)

// MoleculeNameOption pairs a format with its display label
type MoleculeNameOption struct {
	Value MoleculeNameFormat `json:"value"`
	Label string             `json:"label"`
}

// MoleculeNameOptions lists the formats in display order
var MoleculeNameOptions = []MoleculeNameOption{
	{Value: MoleculeBrand, Label: "Brand/Common Name"},
	{Value: MoleculeIUPAC, Label: "IUPAC Name"},
	{Value: MoleculeFormula, Label: "Chemical Formula"},
	{Value: MoleculeSMILES, Label: "SMILES"},
}

// Valid reports whether f is one of the known formats
func (f MoleculeNameFormat) Valid() bool {
	switch f {
	case MoleculeBrand, MoleculeIUPAC, MoleculeFormula, MoleculeSMILES:
		return true
	}
	return false
}

// Label returns the display label, or "Not set" for the empty format
func (f MoleculeNameFormat) Label() string {
	for _, opt := range MoleculeNameOptions {
		if opt.Value == f {
			return opt.Label
		}
	}
	if f == "" {
		return "Not set"
	}
	return string(f)
}

// OrchestratorSettings is a fully resolved settings configuration. Field names match
// the JSON exchanged with the conductor backend.
type OrchestratorSettings struct {
	Backend        string                   `json:"backend"`
	UseCustomURL   bool                     `json:"useCustomUrl"`
	CustomURL      string                   `json:"customUrl"`
	Model          string                   `json:"model"`
	UseCustomModel bool                     `json:"useCustomModel"`
	APIKey         string                   `json:"apiKey"`
	BackendLabel   string                   `json:"backendLabel"`
	MoleculeName   MoleculeNameFormat       `json:"moleculeName,omitempty"`
	ToolServers    []toolservers.ToolServer `json:"toolServers,omitempty"`
}

// Clone returns a deep copy
func (s OrchestratorSettings) Clone() OrchestratorSettings {
	s.ToolServers = toolservers.Clone(s.ToolServers)
	return s
}

// LogValue keeps the API key out of logs
func (s OrchestratorSettings) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("backend", s.Backend),
		slog.String("model", s.Model),
		slog.Bool("useCustomUrl", s.UseCustomURL),
		slog.String("customUrl", s.CustomURL),
		slog.Bool("useCustomModel", s.UseCustomModel),
		slog.Bool("apiKeySet", s.APIKey != ""),
		slog.String("moleculeName", string(s.MoleculeName)),
		slog.Int("toolServers", len(s.ToolServers)),
	)
}

// Partial is a settings configuration where every field is optional. Nil means unset.
// BackendLabel is accepted for wire compatibility but always re-derived.
type Partial struct {
	Backend        *string                  `json:"backend,omitempty"`
	UseCustomURL   *bool                    `json:"useCustomUrl,omitempty"`
	CustomURL      *string                  `json:"customUrl"`
	Model          *string                  `json:"model,omitempty"`
	UseCustomModel *bool                    `json:"useCustomModel,omitempty"`
	APIKey         *string                  `json:"apiKey,omitempty"`
	BackendLabel   *string                  `json:"backendLabel,omitempty"`
	MoleculeName   *MoleculeNameFormat      `json:"moleculeName,omitempty"`
	ToolServers    []toolservers.ToolServer `json:"toolServers,omitempty"`
}

// PartialOf turns a resolved configuration back into a partial with every field set,
// for re-initializing from a committed snapshot.
func PartialOf(s OrchestratorSettings) Partial {
	p := Partial{
		Backend:        ptr(s.Backend),
		UseCustomURL:   ptr(s.UseCustomURL),
		CustomURL:      ptr(s.CustomURL),
		Model:          ptr(s.Model),
		UseCustomModel: ptr(s.UseCustomModel),
		APIKey:         ptr(s.APIKey),
		BackendLabel:   ptr(s.BackendLabel),
		ToolServers:    toolservers.Clone(s.ToolServers),
	}
	if s.MoleculeName != "" {
		p.MoleculeName = ptr(s.MoleculeName)
	}
	return p
}

// Merge overlays the set fields of o onto p
func (p Partial) Merge(o Partial) Partial {
	if o.Backend != nil {
		p.Backend = o.Backend
	}
	if o.UseCustomURL != nil {
		p.UseCustomURL = o.UseCustomURL
	}
	if o.CustomURL != nil {
		p.CustomURL = o.CustomURL
	}
	if o.Model != nil {
		p.Model = o.Model
	}
	if o.UseCustomModel != nil {
		p.UseCustomModel = o.UseCustomModel
	}
	if o.APIKey != nil {
		p.APIKey = o.APIKey
	}
	if o.BackendLabel != nil {
		p.BackendLabel = o.BackendLabel
	}
	if o.MoleculeName != nil {
		p.MoleculeName = o.MoleculeName
	}
	if o.ToolServers != nil {
		p.ToolServers = toolservers.Clone(o.ToolServers)
	}
	return p
}

// String is a convenience for building partials
func String(v string) *string { return &v }

// Bool is a convenience for building partials
func Bool(v bool) *bool { return &v }

// Molecule is a convenience for building partials
func Molecule(v MoleculeNameFormat) *MoleculeNameFormat { return &v }

func ptr[T any](v T) *T { return &v }

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}
