// Package wire is the codec for the browsergrid session protocol: JSON
// frames carrying one command per request and one result per reply, with
// no correlation identifier. Encoding omits absent optional fields;
// decoding tolerates absent optionals and drops unknown fields.
package wire

import (
	"encoding/json"
	"fmt"
)

// EncodeCommand renders cmd as its JSON wire form.
func EncodeCommand(cmd *Command) ([]byte, error) {
	if cmd == nil {
		return nil, &InvalidCommandError{}
	}
	if !cmd.Action.Valid() {
		return nil, &InvalidCommandError{Action: cmd.Action}
	}
	data, err := json.Marshal(cmd)
	if err != nil {
		return nil, fmt.Errorf("encode %s command: %w", cmd.Action, err)
	}
	return data, nil
}

// DecodeResult parses one inbound reply frame.
func DecodeResult(data []byte) (*Result, error) {
	var res Result
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, fmt.Errorf("decode result: %w", err)
	}
	return &res, nil
}

// DecodeCommand parses a command frame. This is the peer direction, unused
// when acting as a client, but kept for symmetry with EncodeCommand. The
// action kind is validated the same way NewCommand validates it.
func DecodeCommand(data []byte) (*Command, error) {
	var cmd Command
	if err := json.Unmarshal(data, &cmd); err != nil {
		return nil, fmt.Errorf("decode command: %w", err)
	}
	if !cmd.Action.Valid() {
		return nil, &InvalidCommandError{Action: cmd.Action}
	}
	return &cmd, nil
}
