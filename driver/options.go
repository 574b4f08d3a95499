package driver

import (
	"net/http"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Option customizes a Conn at construction.
type Option func(*Conn)

// WithLogger attaches a logger. The default is a no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Conn) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithDialer replaces the WebSocket dialer, for proxies, custom TLS
// configuration, or tuned handshake timeouts.
func WithDialer(dialer *websocket.Dialer) Option {
	return func(c *Conn) {
		if dialer != nil {
			c.dialer = dialer
		}
	}
}

// BrowserOption customizes a Browser at construction.
type BrowserOption func(*Browser)

// WithHTTPClient replaces the HTTP client used to follow remote image
// references in capture replies.
func WithHTTPClient(client *http.Client) BrowserOption {
	return func(b *Browser) {
		if client != nil {
			b.httpc = client
		}
	}
}

// WithBrowserLogger attaches a logger to the facade. The default is the
// connection's logger.
func WithBrowserLogger(logger *zap.Logger) BrowserOption {
	return func(b *Browser) {
		if logger != nil {
			b.logger = logger
		}
	}
}
