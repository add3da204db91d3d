// Package feed connects to the conductor backend's websocket: it streams reasoning
// messages and settings reports into the UI and sends committed settings back.
package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/kevensen/conductor-chat/internal/logging"
	"github.com/kevensen/conductor-chat/internal/settings"
)

// DefaultPath is appended to the server URL when no path is configured
const DefaultPath = "/ws"

const writeTimeout = 10 * time.Second

// Handler receives every decoded frame. It is called from the reader goroutine.
type Handler func(Frame)

// Client is one websocket connection to the conductor backend
type Client struct {
	conn    *websocket.Conn
	url     string
	decoder *Decoder
	logger  *logging.Logger

	writeMu sync.Mutex
}

type options struct {
	path    string
	header  http.Header
	dialer  *websocket.Dialer
	decoder *Decoder
}

// Option configures Dial
type Option func(*options)

// WithPath overrides the websocket path
func WithPath(path string) Option {
	return func(o *options) {
		if path != "" {
			o.path = path
		}
	}
}

// WithHeader adds request headers to the handshake
func WithHeader(h http.Header) Option {
	return func(o *options) { o.header = h }
}

// WithDialer replaces the default gorilla dialer
func WithDialer(d *websocket.Dialer) Option {
	return func(o *options) { o.dialer = d }
}

// WithDecoder shares a decoder, and so its message id counter, across connections
func WithDecoder(d *Decoder) Option {
	return func(o *options) { o.decoder = d }
}

// WebsocketURL maps an http(s) server URL to the ws(s) URL of the feed
func WebsocketURL(serverURL, path string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(serverURL))
	if err != nil {
		return "", fmt.Errorf("invalid server URL %q: %w", serverURL, err)
	}

	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported server URL scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("server URL %q has no host", serverURL)
	}

	if path == "" {
		path = DefaultPath
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + path
	return u.String(), nil
}

// Dial opens the feed for the server at baseURL
func Dial(ctx context.Context, baseURL string, opts ...Option) (*Client, error) {
	o := options{
		path:   DefaultPath,
		dialer: websocket.DefaultDialer,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.decoder == nil {
		o.decoder = NewDecoder()
	}

	wsURL, err := WebsocketURL(baseURL, o.path)
	if err != nil {
		return nil, err
	}

	logger := logging.WithComponent("feed").With("url", wsURL)
	conn, resp, err := o.dialer.DialContext(ctx, wsURL, o.header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("failed to connect to %s (HTTP %d): %w", wsURL, resp.StatusCode, err)
		}
		return nil, fmt.Errorf("failed to connect to %s: %w", wsURL, err)
	}
	logger.Info("Connected to conductor feed")

	return &Client{
		conn:    conn,
		url:     wsURL,
		decoder: o.decoder,
		logger:  logger,
	}, nil
}

// URL is the websocket URL the client connected to
func (c *Client) URL() string {
	return c.url
}

// Run reads frames until ctx ends or the socket closes. Frames that fail to decode are
// logged and skipped. A normal close returns nil.
func (c *Client) Run(ctx context.Context, handle Handler) error {
	stop := context.AfterFunc(ctx, func() {
		c.Close()
	})
	defer stop()

	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Info("Conductor feed closed")
				return nil
			}
			return fmt.Errorf("feed read failed: %w", err)
		}
		if messageType != websocket.TextMessage {
			continue
		}

		frame, err := c.decoder.Decode(data)
		if err != nil {
			var unknown *ErrUnknownFrame
			if errors.As(err, &unknown) {
				c.logger.Debug("Ignoring frame", "type", unknown.Type)
			} else {
				c.logger.Warn("Skipping malformed frame", "error", err)
			}
			continue
		}
		handle(frame)
	}
}

// Send writes one action frame. Calls are serialized.
func (c *Client) Send(action string, data any) error {
	payload, err := json.Marshal(actionFrame{Action: action, Data: data})
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", action, err)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return fmt.Errorf("failed to set write deadline: %w", err)
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return fmt.Errorf("failed to send %s: %w", action, err)
	}
	c.logger.Debug("Sent action", "action", action)
	return nil
}

// SendSettings pushes committed settings to the backend
func (c *Client) SendSettings(s settings.OrchestratorSettings) error {
	return c.Send(ActionSettingsUpdate, s)
}

// Close sends a close frame and closes the connection
func (c *Client) Close() error {
	c.writeMu.Lock()
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	c.writeMu.Unlock()
	return c.conn.Close()
}
