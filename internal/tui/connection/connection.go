package connection

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// Status represents the status of a server connection
type Status int

const (
	StatusUnknown Status = iota
	StatusConnected
	StatusDisconnected
	StatusChecking
)

func (s Status) String() string {
	switch s {
	case StatusConnected:
		return "connected"
	case StatusDisconnected:
		return "unreachable"
	case StatusChecking:
		return "checking"
	default:
		return "unknown"
	}
}

// Server names used in CheckMsg for the fixed endpoints
const (
	ServerConductor = "conductor"
	ServerOllama    = "ollama"
)

// CheckMsg represents the result of a connection check. Server is ServerConductor,
// ServerOllama or a tool server id.
type CheckMsg struct {
	Server string
	Status Status
	Error  error
}

const probeTimeout = 5 * time.Second

// ConductorStatus checks if the conductor backend's HTTP server answers
func ConductorStatus(ctx context.Context, url string) tea.Cmd {
	return probe(ctx, ServerConductor, url, func(code int) bool { return code < http.StatusInternalServerError })
}

// OllamaStatus checks if the Ollama server is reachable
func OllamaStatus(ctx context.Context, url string) tea.Cmd {
	return probe(ctx, ServerOllama, strings.TrimSuffix(url, "/")+"/api/tags", func(code int) bool { return code == http.StatusOK })
}

// ToolServerStatus checks if a tool server answers at its URL. Tool servers commonly
// reject plain GETs, so any non-5xx response counts as reachable.
func ToolServerStatus(ctx context.Context, id, url string) tea.Cmd {
	return probe(ctx, id, url, func(code int) bool { return code < http.StatusInternalServerError })
}

// probe runs Check under ctx, so quitting the program abandons checks in flight
func probe(ctx context.Context, server, url string, ok func(int) bool) tea.Cmd {
	return tea.Cmd(func() tea.Msg {
		return Check(ctx, server, url, ok)
	})
}

// Check performs one probe synchronously
func Check(ctx context.Context, server, url string, ok func(int) bool) CheckMsg {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return CheckMsg{Server: server, Status: StatusDisconnected, Error: err}
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return CheckMsg{
			Server: server,
			Status: StatusDisconnected,
			Error:  err,
		}
	}
	defer resp.Body.Close()

	if ok(resp.StatusCode) {
		return CheckMsg{
			Server: server,
			Status: StatusConnected,
		}
	}

	return CheckMsg{
		Server: server,
		Status: StatusDisconnected,
		Error:  fmt.Errorf("HTTP %d", resp.StatusCode),
	}
}
