package sidebar

import (
	"iter"
	"slices"
)

// Message is one reasoning step shown in the sidebar
type Message struct {
	ID        int     `json:"id"`
	Timestamp string  `json:"timestamp"`
	Message   string  `json:"message"`
	SMILES    *string `json:"smiles"`
	Source    string  `json:"source"`
}

// HasSMILES reports whether the message carries a molecule
func (m Message) HasSMILES() bool {
	return m.SMILES != nil && *m.SMILES != ""
}

// State is the sidebar's view state: the message log, which sources are shown and
// whether the filter panel and the sidebar itself are open.
//
// The zero value is ready to use. The log is unbounded.
type State struct {
	messages []Message

	// Absent keys mean visible
	visibleSources map[string]bool

	// Sources in order of first appearance
	sources []string
	seen    map[string]struct{}

	sourceFilterOpen bool
	collapsed        bool
}

// New creates an empty, open sidebar
func New() *State {
	return &State{}
}

// AppendMessage adds msg to the end of the log
func (s *State) AppendMessage(msg Message) {
	s.messages = append(s.messages, msg)

	if s.seen == nil {
		s.seen = make(map[string]struct{})
	}
	if _, ok := s.seen[msg.Source]; !ok {
		s.seen[msg.Source] = struct{}{}
		s.sources = append(s.sources, msg.Source)
	}
}

// ToggleSourceFilterPanel opens or closes the source filter panel
func (s *State) ToggleSourceFilterPanel() {
	s.sourceFilterOpen = !s.sourceFilterOpen
}

// SourceFilterOpen reports whether the filter panel is showing
func (s *State) SourceFilterOpen() bool {
	return s.sourceFilterOpen
}

// SetSourceVisibility shows or hides every message from source
func (s *State) SetSourceVisibility(source string, visible bool) {
	if s.visibleSources == nil {
		s.visibleSources = make(map[string]bool)
	}
	s.visibleSources[source] = visible
}

// IsSourceVisible reports whether messages from source are shown
func (s *State) IsSourceVisible(source string) bool {
	visible, ok := s.visibleSources[source]
	return !ok || visible
}

// ResetSourceFilter makes every source visible again
func (s *State) ResetSourceFilter() {
	clear(s.visibleSources)
}

// VisibleMessages yields the messages whose source is not hidden, in insertion order
func (s *State) VisibleMessages() iter.Seq[Message] {
	return func(yield func(Message) bool) {
		for _, msg := range s.messages {
			if !s.IsSourceVisible(msg.Source) {
				continue
			}
			if !yield(msg) {
				return
			}
		}
	}
}

// DistinctSources returns each source once, in order of first appearance
func (s *State) DistinctSources() []string {
	return slices.Clone(s.sources)
}

// Toggle collapses or expands the sidebar
func (s *State) Toggle() {
	s.collapsed = !s.collapsed
}

// IsOpen reports whether the sidebar is expanded
func (s *State) IsOpen() bool {
	return !s.collapsed
}

// Messages returns a copy of the full log, hidden sources included
func (s *State) Messages() []Message {
	return slices.Clone(s.messages)
}

// Len is the number of logged messages
func (s *State) Len() int {
	return len(s.messages)
}

// Clear drops the log and the seen sources. Visibility choices are kept so a source the
// user hid stays hidden when it shows up again.
func (s *State) Clear() {
	s.messages = nil
	s.sources = nil
	clear(s.seen)
}
