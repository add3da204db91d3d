package settings

import (
	"errors"
	"strings"

	"github.com/kevensen/conductor-chat/internal/backends"
	"github.com/kevensen/conductor-chat/internal/toolservers"
)

// The functions in this file are pure: they never modify their input and return a new
// configuration. A non-nil error means the input is still the valid state.

// Initialize merges a partial configuration over the catalog defaults:
//   - backend falls back to the catalog's first entry when unset or unknown
//   - backendLabel always comes from the matched option
//   - model is kept when it is valid for the backend, otherwise the first listed model
//     (or "" when the backend takes free text)
//   - a custom URL only counts when it is non-empty
//   - apiKey stays empty when unset; unknown molecule name formats are dropped
func Initialize(catalog *backends.Catalog, p Partial) OrchestratorSettings {
	return initialize(catalog, toolservers.Registry{}, p)
}

func initialize(catalog *backends.Catalog, reg toolservers.Registry, p Partial) OrchestratorSettings {
	opt, _ := catalogOrDefault(catalog).Resolve(strings.TrimSpace(deref(p.Backend)))

	s := OrchestratorSettings{
		Backend:      opt.Value,
		BackendLabel: opt.Label,
		APIKey:       deref(p.APIKey),
		ToolServers:  reg.Normalize(p.ToolServers),
	}

	customURL := strings.TrimSpace(deref(p.CustomURL))
	if deref(p.UseCustomURL) && customURL != "" {
		s.UseCustomURL = true
		s.CustomURL = customURL
	}

	s.UseCustomModel = deref(p.UseCustomModel)
	s.Model = strings.TrimSpace(deref(p.Model))
	if !opt.Choice(s.Model, s.UseCustomModel).Valid(opt) {
		s.UseCustomModel = false
		s.Model = opt.DefaultModel()
	}

	if f := deref(p.MoleculeName); f.Valid() {
		s.MoleculeName = f
	}

	return s
}

// SelectBackend switches to another backend. Label and model are re-derived and the
// custom URL and custom model overrides are reset, since they belonged to the old
// endpoint. Unknown values fall back to the catalog's first entry.
func SelectBackend(catalog *backends.Catalog, current OrchestratorSettings, value string) OrchestratorSettings {
	opt, _ := catalogOrDefault(catalog).Resolve(strings.TrimSpace(value))

	s := current.Clone()
	s.Backend = opt.Value
	s.BackendLabel = opt.Label
	s.Model = opt.DefaultModel()
	s.UseCustomModel = false
	s.UseCustomURL = false
	s.CustomURL = ""
	return s
}

// SetCustomURL overrides the backend's default endpoint. The URL is not parsed; only
// emptiness is rejected.
func SetCustomURL(current OrchestratorSettings, url string) (OrchestratorSettings, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return current, &ValidationError{Kind: EmptyURL, Field: "custom"}
	}
	s := current.Clone()
	s.UseCustomURL = true
	s.CustomURL = url
	return s, nil
}

// ClearCustomURL returns to the backend's default endpoint
func ClearCustomURL(current OrchestratorSettings) OrchestratorSettings {
	s := current.Clone()
	s.UseCustomURL = false
	s.CustomURL = ""
	return s
}

// SetModel selects a model. With a custom model or a free-text backend any non-empty
// string is accepted; otherwise the model must be listed for the current backend.
func SetModel(catalog *backends.Catalog, current OrchestratorSettings, model string) (OrchestratorSettings, error) {
	model = strings.TrimSpace(model)
	opt, _ := catalogOrDefault(catalog).Resolve(current.Backend)

	if !opt.Choice(model, current.UseCustomModel).Valid(opt) {
		return current, &ValidationError{Kind: InvalidModel, Field: opt.Value, Value: model}
	}

	s := current.Clone()
	s.Model = model
	return s, nil
}

// SetCustomModel turns custom model entry on and selects model in one step. An empty
// model is rejected and leaves current untouched.
func SetCustomModel(catalog *backends.Catalog, current OrchestratorSettings, model string) (OrchestratorSettings, error) {
	s, err := SetModel(catalog, SetUseCustomModel(catalog, current, true), model)
	if err != nil {
		return current, err
	}
	return s, nil
}

// SetUseCustomModel toggles free-text model entry. Turning it off snaps an unlisted
// model back to the backend's first model.
func SetUseCustomModel(catalog *backends.Catalog, current OrchestratorSettings, on bool) OrchestratorSettings {
	s := current.Clone()
	s.UseCustomModel = on
	if on {
		return s
	}

	opt, _ := catalogOrDefault(catalog).Resolve(s.Backend)
	if !opt.Choice(s.Model, false).Valid(opt) {
		s.Model = opt.DefaultModel()
	}
	return s
}

// SetAPIKey stores the key as given; an empty key is allowed
func SetAPIKey(current OrchestratorSettings, key string) OrchestratorSettings {
	s := current.Clone()
	s.APIKey = key
	return s
}

// SetMoleculeName selects the display format. The empty format clears the selection.
func SetMoleculeName(current OrchestratorSettings, f MoleculeNameFormat) (OrchestratorSettings, error) {
	if f != "" && !f.Valid() {
		return current, &ValidationError{Kind: InvalidMoleculeName, Field: "moleculeName", Value: string(f)}
	}
	s := current.Clone()
	s.MoleculeName = f
	return s, nil
}

// AddToolServer appends a tool server with a fresh id
func AddToolServer(current OrchestratorSettings, url, name string) (OrchestratorSettings, toolservers.ToolServer, error) {
	return addToolServer(toolservers.Registry{}, current, url, name)
}

func addToolServer(reg toolservers.Registry, current OrchestratorSettings, url, name string) (OrchestratorSettings, toolservers.ToolServer, error) {
	list, server, err := reg.Add(current.ToolServers, url, name)
	if err != nil {
		if errors.Is(err, toolservers.ErrEmptyURL) {
			return current, toolservers.ToolServer{}, &ValidationError{Kind: EmptyURL, Field: "tool server", Err: err}
		}
		return current, toolservers.ToolServer{}, err
	}
	s := current.Clone()
	s.ToolServers = list
	return s, server, nil
}

// RemoveToolServer drops the server with id. Removing an unknown id is a no-op and
// reports false.
func RemoveToolServer(current OrchestratorSettings, id string) (OrchestratorSettings, bool) {
	list, removed := toolservers.Remove(current.ToolServers, id)
	if !removed {
		return current, false
	}
	s := current.Clone()
	s.ToolServers = list
	return s, true
}

// Commit returns a fully resolved deep copy ready to hand to the host. It never fails;
// anything inconsistent is normalized the same way Initialize would.
func Commit(catalog *backends.Catalog, current OrchestratorSettings) OrchestratorSettings {
	return Initialize(catalog, PartialOf(current))
}

// EffectiveURL is the endpoint the backend will be reached at
func EffectiveURL(catalog *backends.Catalog, s OrchestratorSettings) string {
	if s.UseCustomURL {
		return s.CustomURL
	}
	opt, _ := catalogOrDefault(catalog).Resolve(s.Backend)
	return opt.DefaultURL
}

func catalogOrDefault(c *backends.Catalog) *backends.Catalog {
	if c == nil {
		return backends.Default()
	}
	return c
}
