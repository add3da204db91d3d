package reasoning

import (
	"github.com/kevensen/conductor-chat/internal/sidebar"
)

// renderCache keeps rendered steps so markdown only runs once per step and width
type renderCache struct {
	rendered  map[int][]string
	lastWidth int
}

func newRenderCache() *renderCache {
	return &renderCache{rendered: make(map[int][]string)}
}

// lines returns the rendered lines of msg, rendering on a miss
func (c *renderCache) lines(m *Model, msg sidebar.Message, width int) []string {
	if width != c.lastWidth {
		c.lastWidth = width
		clear(c.rendered)
	}

	if lines, ok := c.rendered[msg.ID]; ok {
		return lines
	}

	lines := m.formatMessage(msg, width)
	c.rendered[msg.ID] = lines
	return lines
}

func (c *renderCache) invalidate() {
	clear(c.rendered)
}
