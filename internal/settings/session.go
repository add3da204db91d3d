package settings

import (
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/kevensen/conductor-chat/internal/backends"
	"github.com/kevensen/conductor-chat/internal/logging"
	"github.com/kevensen/conductor-chat/internal/toolservers"
)

// State is the lifecycle position of a settings session
type State int

const (
	Uninitialized State = iota
	Initialized
	Editing
	Committed
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Initialized:
		return "initialized"
	case Editing:
		return "editing"
	case Committed:
		return "committed"
	default:
		return "unknown"
	}
}

// Session owns one in-progress settings edit. All mutations go through its mutex, so a
// session may be shared by goroutines, but events are only ordered for callers that
// serialize their own calls.
type Session struct {
	mu        sync.Mutex
	catalog   *backends.Catalog
	registry  toolservers.Registry
	state     State
	current   OrchestratorSettings
	listeners []Listener
	logger    *logging.Logger
}

// Option configures a Session
type Option func(*Session)

// WithListener subscribes l before the session is used
func WithListener(l Listener) Option {
	return func(s *Session) {
		if l != nil {
			s.listeners = append(s.listeners, l)
		}
	}
}

// WithCallbacks subscribes the host callbacks
func WithCallbacks(c Callbacks) Option {
	return WithListener(c.Listener())
}

// WithIDSource replaces the tool server id generator
func WithIDSource(src toolservers.IDSource) Option {
	return func(s *Session) {
		s.registry = toolservers.Registry{NextID: src}
	}
}

// NewSession creates an uninitialized session over catalog (the default catalog when
// nil).
func NewSession(catalog *backends.Catalog, opts ...Option) *Session {
	s := &Session{
		catalog: catalogOrDefault(catalog),
		logger:  logging.WithComponent("settings").With("session", uuid.NewString()),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Subscribe adds a listener
func (s *Session) Subscribe(l Listener) {
	if l == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, l)
}

// Catalog returns the catalog the session validates against
func (s *Session) Catalog() *backends.Catalog {
	return s.catalog
}

// State returns the lifecycle state
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Current returns a copy of the working configuration. Before Initialize it is the
// zero value.
func (s *Session) Current() OrchestratorSettings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current.Clone()
}

// EffectiveURL returns the endpoint of the working configuration
func (s *Session) EffectiveURL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return EffectiveURL(s.catalog, s.current)
}

// Initialize replaces the working configuration with p merged over catalog defaults.
// It may be called again at any time, e.g. to revert to a committed snapshot.
func (s *Session) Initialize(p Partial) OrchestratorSettings {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.current = initialize(s.catalog, s.registry, p)
	s.state = Initialized
	s.logger.Info("Settings initialized", "settings", s.current)
	return s.current.Clone()
}

// SelectBackend switches backends, resetting model and URL overrides
func (s *Session) SelectBackend(value string) (OrchestratorSettings, error) {
	return s.mutate("select backend", func(cur OrchestratorSettings) (OrchestratorSettings, error) {
		return SelectBackend(s.catalog, cur, value), nil
	})
}

// SetCustomURL overrides the endpoint
func (s *Session) SetCustomURL(url string) (OrchestratorSettings, error) {
	return s.mutate("set custom url", func(cur OrchestratorSettings) (OrchestratorSettings, error) {
		return SetCustomURL(cur, url)
	})
}

// ClearCustomURL returns to the backend default endpoint
func (s *Session) ClearCustomURL() (OrchestratorSettings, error) {
	return s.mutate("clear custom url", func(cur OrchestratorSettings) (OrchestratorSettings, error) {
		return ClearCustomURL(cur), nil
	})
}

// SetModel selects a model
func (s *Session) SetModel(model string) (OrchestratorSettings, error) {
	return s.mutate("set model", func(cur OrchestratorSettings) (OrchestratorSettings, error) {
		return SetModel(s.catalog, cur, model)
	})
}

// SetUseCustomModel toggles free-text model entry
func (s *Session) SetUseCustomModel(on bool) (OrchestratorSettings, error) {
	return s.mutate("set custom model", func(cur OrchestratorSettings) (OrchestratorSettings, error) {
		return SetUseCustomModel(s.catalog, cur, on), nil
	})
}

// SetCustomModel enables custom model entry and selects model together, so a rejected
// model leaves the custom model flag as it was
func (s *Session) SetCustomModel(model string) (OrchestratorSettings, error) {
	return s.mutate("set custom model name", func(cur OrchestratorSettings) (OrchestratorSettings, error) {
		return SetCustomModel(s.catalog, cur, model)
	})
}

// SetAPIKey stores the API key
func (s *Session) SetAPIKey(key string) (OrchestratorSettings, error) {
	return s.mutate("set api key", func(cur OrchestratorSettings) (OrchestratorSettings, error) {
		return SetAPIKey(cur, key), nil
	})
}

// SetMoleculeName selects the molecule name display format
func (s *Session) SetMoleculeName(f MoleculeNameFormat) (OrchestratorSettings, error) {
	return s.mutate("set molecule name", func(cur OrchestratorSettings) (OrchestratorSettings, error) {
		return SetMoleculeName(cur, f)
	})
}

// AddToolServer appends a tool server and emits ServerAdded
func (s *Session) AddToolServer(url, name string) (toolservers.ToolServer, error) {
	var added toolservers.ToolServer
	_, err := s.mutate("add tool server", func(cur OrchestratorSettings) (OrchestratorSettings, error) {
		next, server, err := addToolServer(s.registry, cur, url, name)
		added = server
		return next, err
	})
	if err != nil {
		return toolservers.ToolServer{}, err
	}
	s.logger.Info("Tool server added", "id", added.ID, "url", added.URL, "name", added.Name)
	s.emit(ServerAdded{Server: added})
	return added, nil
}

// RemoveToolServer drops a tool server. An unknown id is a no-op: it reports false,
// leaves the state untouched and emits nothing.
func (s *Session) RemoveToolServer(id string) (bool, error) {
	var removed bool
	_, err := s.mutate("remove tool server", func(cur OrchestratorSettings) (OrchestratorSettings, error) {
		var next OrchestratorSettings
		next, removed = RemoveToolServer(cur, id)
		if !removed {
			return cur, errNoChange
		}
		return next, nil
	})
	if err == errNoChange {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	s.logger.Info("Tool server removed", "id", id)
	s.emit(ServerRemoved{ID: id})
	return true, nil
}

// Commit resolves the working configuration, emits SettingsChanged and returns the
// committed copy. Further setters move the session back to Editing.
func (s *Session) Commit() (OrchestratorSettings, error) {
	s.mu.Lock()
	if s.state == Uninitialized {
		s.mu.Unlock()
		return OrchestratorSettings{}, ErrUninitialized
	}
	s.current = Commit(s.catalog, s.current)
	s.state = Committed
	committed := s.current.Clone()
	s.mu.Unlock()

	s.logger.Info("Settings committed", "settings", committed)
	s.emit(SettingsChanged{Settings: committed})
	return committed.Clone(), nil
}

// errNoChange lets a mutation succeed without touching state
var errNoChange = errors.New("no change")

func (s *Session) mutate(op string, fn func(OrchestratorSettings) (OrchestratorSettings, error)) (OrchestratorSettings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == Uninitialized {
		return OrchestratorSettings{}, ErrUninitialized
	}

	next, err := fn(s.current)
	if err == errNoChange {
		return s.current.Clone(), err
	}
	if err != nil {
		s.logger.Debug("Rejected settings change", "op", op, "error", err)
		return s.current.Clone(), err
	}

	s.current = next
	s.state = Editing
	s.logger.Debug("Settings changed", "op", op, "state", s.state)
	return s.current.Clone(), nil
}

func (s *Session) emit(ev Event) {
	s.mu.Lock()
	listeners := make([]Listener, len(s.listeners))
	copy(listeners, s.listeners)
	s.mu.Unlock()

	for _, l := range listeners {
		if changed, ok := ev.(SettingsChanged); ok {
			// Each listener gets its own copy of the tool server slice
			l(SettingsChanged{Settings: changed.Settings.Clone()})
			continue
		}
		l(ev)
	}
}
