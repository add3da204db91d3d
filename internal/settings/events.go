package settings

import "github.com/kevensen/conductor-chat/internal/toolservers"

// Event is emitted by a Session after a successful state transition
type Event interface {
	settingsEvent()
}

// SettingsChanged carries a committed configuration
type SettingsChanged struct {
	Settings OrchestratorSettings
}

// ServerAdded is emitted when a tool server was appended
type ServerAdded struct {
	Server toolservers.ToolServer
}

// ServerRemoved is emitted when a tool server was dropped
type ServerRemoved struct {
	ID string
}

func (SettingsChanged) settingsEvent() {}
func (ServerAdded) settingsEvent()     {}
func (ServerRemoved) settingsEvent()   {}

// Listener receives session events. Its return is not consulted, so a slow or failing
// listener cannot affect the session.
type Listener func(Event)

// Callbacks adapts the three host callbacks to a Listener. Nil callbacks are skipped.
type Callbacks struct {
	OnSettingsChange func(OrchestratorSettings)
	OnServerAdded    func()
	OnServerRemoved  func()
}

// Listener returns the callbacks as a Listener
func (c Callbacks) Listener() Listener {
	return func(ev Event) {
		switch ev := ev.(type) {
		case SettingsChanged:
			if c.OnSettingsChange != nil {
				c.OnSettingsChange(ev.Settings)
			}
		case ServerAdded:
			if c.OnServerAdded != nil {
				c.OnServerAdded()
			}
		case ServerRemoved:
			if c.OnServerRemoved != nil {
				c.OnServerRemoved()
			}
		}
	}
}
