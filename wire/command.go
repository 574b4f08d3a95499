package wire

import (
	"fmt"
	"time"
)

// Action identifies one operation the browser peer knows how to execute.
type Action string

const (
	ActionNavigate          Action = "navigate"
	ActionClick             Action = "click"
	ActionTypeText          Action = "type_text"
	ActionScroll            Action = "scroll"
	ActionCaptureScreenshot Action = "capture_screenshot"
	ActionResizeViewport    Action = "resize_viewport"
)

// actions is the closed set of recognized kinds. Commands are only
// constructed through NewCommand, which checks membership here.
var actions = map[Action]bool{
	ActionNavigate:          true,
	ActionClick:             true,
	ActionTypeText:          true,
	ActionScroll:            true,
	ActionCaptureScreenshot: true,
	ActionResizeViewport:    true,
}

// Valid reports whether a is a recognized action kind.
func (a Action) Valid() bool {
	return actions[a]
}

// InvalidCommandError reports an empty or unrecognized action kind,
// either at construction or when decoding a frame from the peer.
type InvalidCommandError struct {
	Action Action
}

func (e *InvalidCommandError) Error() string {
	if e.Action == "" {
		return "invalid command: empty action"
	}
	return fmt.Sprintf("invalid command: unknown action %q", string(e.Action))
}

// Command is one request to the browser peer. Optional fields are
// pointers so that zero-valued coordinates and dimensions still travel on
// the wire while absent ones are omitted entirely.
//
// Timeout bounds the wait for this command's reply on the client side; it
// never appears in the encoded frame.
type Command struct {
	Action Action `json:"action"`
	URL    string `json:"url,omitempty"`
	X      *int   `json:"x,omitempty"`
	Y      *int   `json:"y,omitempty"`
	Text   string `json:"text,omitempty"`
	DeltaX *int   `json:"delta_x,omitempty"`
	DeltaY *int   `json:"delta_y,omitempty"`
	Width  *int   `json:"width,omitempty"`
	Height *int   `json:"height,omitempty"`

	Timeout time.Duration `json:"-"`
}

// NewCommand builds a command after validating the action kind against
// the closed enumeration. Unknown or empty kinds fail with
// *InvalidCommandError.
func NewCommand(action Action) (*Command, error) {
	if !action.Valid() {
		return nil, &InvalidCommandError{Action: action}
	}
	return &Command{Action: action}, nil
}

// Int returns a pointer to v, for filling a command's optional numeric
// fields.
func Int(v int) *int {
	return &v
}
