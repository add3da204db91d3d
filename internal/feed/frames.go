package feed

import (
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/kevensen/conductor-chat/internal/settings"
	"github.com/kevensen/conductor-chat/internal/sidebar"
)

// Inbound frame types sent by the conductor backend
const (
	TypeResponse         = "response"
	TypeSettingsUpdate   = "server-update-orchestrator-settings"
	TypeComplete         = "complete"
	TypeStopped          = "stopped"
	TypeAvailableTools   = "available-tools-response"
	TypeUsername         = "get-username-response"
	defaultMessageSource = "System"
)

// Outbound actions understood by the conductor backend
const (
	ActionSettingsUpdate = "orchestrator-settings-update"
	ActionStop           = "stop"
	ActionReset          = "reset"
	ActionListTools      = "list-tools"
	ActionGetUsername    = "get-username"
)

// Frame is implemented by every decoded inbound frame
type Frame interface {
	frameType() string
}

// MessageFrame is a reasoning step for the sidebar
type MessageFrame struct {
	Message sidebar.Message
}

// SettingsFrame carries the settings the backend is actually running with
type SettingsFrame struct {
	Settings settings.Partial
}

// StatusFrame reports that a task completed or was stopped
type StatusFrame struct {
	Status string
}

// ToolList is the set of tool names one tool server offers
type ToolList struct {
	Server string   `json:"server"`
	Names  []string `json:"names"`
}

// ToolsFrame answers list-tools with the tools of every server the backend can reach
type ToolsFrame struct {
	Tools []ToolList
}

// UsernameFrame answers get-username
type UsernameFrame struct {
	Username string
}

func (MessageFrame) frameType() string  { return TypeResponse }
func (SettingsFrame) frameType() string { return TypeSettingsUpdate }
func (f StatusFrame) frameType() string { return f.Status }
func (ToolsFrame) frameType() string    { return TypeAvailableTools }
func (UsernameFrame) frameType() string { return TypeUsername }

// envelope is the raw shape of every inbound frame
type envelope struct {
	Type                 string            `json:"type"`
	Message              *responseBody     `json:"message,omitempty"`
	OrchestratorSettings json.RawMessage   `json:"orchestratorSettings,omitempty"`
	Tools                []json.RawMessage `json:"tools,omitempty"`
	Username             *string           `json:"username,omitempty"`
}

type responseBody struct {
	Source  string  `json:"source"`
	Message string  `json:"message"`
	SMILES  *string `json:"smiles"`
}

// ErrUnknownFrame is returned by Decoder.Decode for frame types the front end ignores
type ErrUnknownFrame struct {
	Type string
}

func (e *ErrUnknownFrame) Error() string {
	return fmt.Sprintf("unhandled frame type %q", e.Type)
}

// Decoder turns raw frames into typed frames. Message ids come from a counter shared by
// every frame the decoder sees, so they increase across reconnects.
type Decoder struct {
	nextID atomic.Int64
	now    func() time.Time
}

// NewDecoder creates a decoder that stamps messages with the wall clock
func NewDecoder() *Decoder {
	return &Decoder{now: time.Now}
}

// Decode parses one frame
func (d *Decoder) Decode(data []byte) (Frame, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to decode frame: %w", err)
	}

	switch env.Type {
	case TypeResponse:
		if env.Message == nil {
			return nil, fmt.Errorf("response frame without message")
		}
		source := env.Message.Source
		if source == "" {
			source = defaultMessageSource
		}
		return MessageFrame{Message: sidebar.Message{
			ID:        int(d.nextID.Add(1)),
			Timestamp: d.clock().UTC().Format(time.RFC3339),
			Message:   env.Message.Message,
			SMILES:    env.Message.SMILES,
			Source:    source,
		}}, nil

	case TypeSettingsUpdate:
		var p settings.Partial
		if len(env.OrchestratorSettings) == 0 {
			return nil, fmt.Errorf("settings frame without orchestratorSettings")
		}
		if err := json.Unmarshal(env.OrchestratorSettings, &p); err != nil {
			return nil, fmt.Errorf("failed to decode orchestrator settings: %w", err)
		}
		return SettingsFrame{Settings: p}, nil

	case TypeComplete, TypeStopped:
		return StatusFrame{Status: env.Type}, nil

	case TypeAvailableTools:
		tools := make([]ToolList, 0, len(env.Tools))
		for _, raw := range env.Tools {
			tl, err := decodeToolList(raw)
			if err != nil {
				return nil, err
			}
			tools = append(tools, tl)
		}
		return ToolsFrame{Tools: tools}, nil

	case TypeUsername:
		if env.Username == nil {
			return nil, fmt.Errorf("username frame without username")
		}
		return UsernameFrame{Username: *env.Username}, nil

	default:
		return nil, &ErrUnknownFrame{Type: env.Type}
	}
}

// decodeToolList reads one entry of a tools frame. The backend serializes each entry
// on its own, so an entry may arrive as a JSON string holding the object.
func decodeToolList(raw json.RawMessage) (ToolList, error) {
	var encoded string
	if err := json.Unmarshal(raw, &encoded); err == nil {
		raw = json.RawMessage(encoded)
	}
	var tl ToolList
	if err := json.Unmarshal(raw, &tl); err != nil {
		return ToolList{}, fmt.Errorf("failed to decode tool list: %w", err)
	}
	return tl, nil
}

func (d *Decoder) clock() time.Time {
	if d.now == nil {
		return time.Now()
	}
	return d.now()
}

// actionFrame is the outbound envelope
type actionFrame struct {
	Action string `json:"action"`
	Data   any    `json:"data,omitempty"`
}
