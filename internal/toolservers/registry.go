// Package toolservers manages the ordered list of remote tool endpoints attached to
// an orchestrator configuration.
package toolservers

import (
	"errors"
	"slices"
	"strings"

	"github.com/oklog/ulid/v2"
)

// ErrEmptyURL is returned when a tool server is added without a URL
var ErrEmptyURL = errors.New("tool server URL cannot be empty")

// ToolServer is a named remote endpoint the assistant may call
type ToolServer struct {
	ID   string `json:"id"`
	URL  string `json:"url"`
	Name string `json:"name,omitempty"`
}

// DisplayName returns the name, or the URL when no name was given
func (s ToolServer) DisplayName() string {
	if s.Name != "" {
		return s.Name
	}
	return s.URL
}

// IDSource produces candidate ids for new servers
type IDSource func() string

// NewULID returns a monotonic ULID string
func NewULID() string {
	return ulid.Make().String()
}

// Registry performs list operations. The zero value is ready to use and draws ids
// from NewULID.
type Registry struct {
	NextID IDSource
}

// Add appends a server built from url and name and returns the new list along with
// the created entry. The input list is not modified.
func (r Registry) Add(list []ToolServer, url, name string) ([]ToolServer, ToolServer, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return list, ToolServer{}, ErrEmptyURL
	}

	server := ToolServer{
		ID:   r.uniqueID(list),
		URL:  url,
		Name: strings.TrimSpace(name),
	}

	out := make([]ToolServer, 0, len(list)+1)
	out = append(out, list...)
	out = append(out, server)
	return out, server, nil
}

// Remove drops the server with id. The boolean reports whether one was found; when
// it is false the original list is returned as is.
func (r Registry) Remove(list []ToolServer, id string) ([]ToolServer, bool) {
	i := Index(list, id)
	if i < 0 {
		return list, false
	}
	out := make([]ToolServer, 0, len(list)-1)
	out = append(out, list[:i]...)
	out = append(out, list[i+1:]...)
	return out, true
}

func (r Registry) uniqueID(list []ToolServer) string {
	next := r.NextID
	if next == nil {
		next = NewULID
	}
	for {
		id := next()
		if id != "" && Index(list, id) < 0 {
			return id
		}
	}
}

// Index returns the position of id in list, or -1
func Index(list []ToolServer, id string) int {
	return slices.IndexFunc(list, func(s ToolServer) bool { return s.ID == id })
}

// Find returns the server with id
func Find(list []ToolServer, id string) (ToolServer, bool) {
	i := Index(list, id)
	if i < 0 {
		return ToolServer{}, false
	}
	return list[i], true
}

// Clone returns a copy of list that shares no backing array with it. A nil list
// stays nil.
func Clone(list []ToolServer) []ToolServer {
	return slices.Clone(list)
}

// Add appends a server using the default registry
func Add(list []ToolServer, url, name string) ([]ToolServer, ToolServer, error) {
	return Registry{}.Add(list, url, name)
}

// Remove drops a server using the default registry
func Remove(list []ToolServer, id string) ([]ToolServer, bool) {
	return Registry{}.Remove(list, id)
}

// Normalize drops entries without a URL and gives fresh ids to entries whose id is
// empty or already used earlier in the list. Order is preserved.
func (r Registry) Normalize(list []ToolServer) []ToolServer {
	if list == nil {
		return nil
	}
	out := make([]ToolServer, 0, len(list))
	for _, s := range list {
		s.URL = strings.TrimSpace(s.URL)
		if s.URL == "" {
			continue
		}
		if s.ID == "" || Index(out, s.ID) >= 0 {
			s.ID = r.uniqueID(slices.Concat(out, list))
		}
		out = append(out, s)
	}
	return out
}

// Normalize cleans a list using the default registry
func Normalize(list []ToolServer) []ToolServer {
	return Registry{}.Normalize(list)
}
