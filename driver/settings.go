package driver

import (
	"fmt"
	"net/url"
	"time"
)

// Defaults applied by Settings.WithDefaults.
const (
	DefaultNavigateTimeout   = 30 * time.Second
	DefaultCommandTimeout    = 5 * time.Second
	DefaultHeartbeatInterval = 30 * time.Second
	DefaultCloseGrace        = 5 * time.Second
	DefaultMaxMessageBytes   = 16 << 20 // 16 MiB inbound frame ceiling
	DefaultViewportWidth     = 1280
	DefaultViewportHeight    = 720
)

// Settings is the configuration record for one connection. Everything the
// connection needs is fixed here at construction; there is no ambient
// state to consult later.
type Settings struct {
	// URL is the endpoint to dial. The scheme must be ws or wss.
	URL string

	// BearerToken, when set, is sent as an Authorization header during
	// the handshake.
	BearerToken string

	// NavigateTimeout bounds navigate replies; page loads take longer
	// than input events, so this default is the generous one.
	NavigateTimeout time.Duration

	// CommandTimeout bounds replies for every other verb.
	CommandTimeout time.Duration

	// HeartbeatInterval is the liveness probe period. A connection that
	// produces no acknowledgment for a full interval is terminated.
	HeartbeatInterval time.Duration

	// CloseGrace bounds the wait for the peer to acknowledge a graceful
	// close before the transport is forced shut.
	CloseGrace time.Duration

	// MaxMessageBytes caps inbound frames; larger frames are rejected by
	// the transport before they reach the codec.
	MaxMessageBytes int64

	// ViewportWidth and ViewportHeight are the dimensions used when a
	// resize is requested without explicit values.
	ViewportWidth  int
	ViewportHeight int
}

// WithDefaults returns a copy of s with every unset field replaced by its
// documented default. The URL and bearer token have no defaults.
func (s Settings) WithDefaults() Settings {
	if s.NavigateTimeout <= 0 {
		s.NavigateTimeout = DefaultNavigateTimeout
	}
	if s.CommandTimeout <= 0 {
		s.CommandTimeout = DefaultCommandTimeout
	}
	if s.HeartbeatInterval <= 0 {
		s.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if s.CloseGrace <= 0 {
		s.CloseGrace = DefaultCloseGrace
	}
	if s.MaxMessageBytes <= 0 {
		s.MaxMessageBytes = DefaultMaxMessageBytes
	}
	if s.ViewportWidth <= 0 {
		s.ViewportWidth = DefaultViewportWidth
	}
	if s.ViewportHeight <= 0 {
		s.ViewportHeight = DefaultViewportHeight
	}
	return s
}

// validate checks the endpoint. Only ws and wss schemes are accepted, and
// the check runs at construction, before any dial is attempted.
func (s Settings) validate() error {
	u, err := url.Parse(s.URL)
	if err != nil {
		return fmt.Errorf("endpoint URL %q: %w", s.URL, err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("endpoint URL %q: scheme must be ws or wss", s.URL)
	}
	if u.Host == "" {
		return fmt.Errorf("endpoint URL %q: missing host", s.URL)
	}
	return nil
}
