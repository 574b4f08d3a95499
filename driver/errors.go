package driver

import (
	"errors"
	"fmt"
	"time"

	"github.com/browsergrid/pilot/wire"
)

var (
	// ErrNotConnected is returned when an operation requires an open
	// connection and there is none.
	ErrNotConnected = errors.New("not connected")

	// ErrConnectionClosed settles pending calls whose connection shut
	// down, gracefully or not, before their replies arrived.
	ErrConnectionClosed = errors.New("connection closed")
)

// ConnectionFailedError reports a failed attempt to open the transport.
type ConnectionFailedError struct {
	URL string
	Err error
}

func (e *ConnectionFailedError) Error() string {
	return fmt.Sprintf("connect %s: %v", e.URL, e.Err)
}

func (e *ConnectionFailedError) Unwrap() error {
	return e.Err
}

// ConnectionError reports a transport fault observed while the connection
// was open. It settles every call that was pending when the fault hit.
type ConnectionError struct {
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection error: %v", e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// CommandTimeoutError settles a pending call whose reply did not arrive
// within its timeout.
type CommandTimeoutError struct {
	Action  wire.Action
	Timeout time.Duration
}

func (e *CommandTimeoutError) Error() string {
	return fmt.Sprintf("%s: no reply within %s", e.Action, e.Timeout)
}

// ScreenshotFailedError reports a capture the server refused or answered
// without any image data. Reason carries the server's message when there
// is one.
type ScreenshotFailedError struct {
	Reason string
}

func (e *ScreenshotFailedError) Error() string {
	if e.Reason == "" {
		return "screenshot failed"
	}
	return fmt.Sprintf("screenshot failed: %s", e.Reason)
}
