// Package chat implements the multi-client chat service: the wire frame
// codec, the channel registry with fan-out, and the in-memory message
// history.
package chat

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
)

// Frame types accepted on the wire.
const (
	TypeJoin    = "join"
	TypeLeave   = "leave"
	TypeMessage = "message"
)

// Frame is the application unit exchanged through the chat service.
// Unknown fields in incoming payloads are ignored.
type Frame struct {
	Type    string `json:"type"`
	Channel string `json:"channel"`
	Sender  string `json:"sender"`
	Body    string `json:"body,omitempty"`
}

// Frame decode errors. All of them are protocol errors local to the
// sending connection.
var (
	ErrNotJSON      = errors.New("frame is not valid JSON")
	ErrUnknownType  = errors.New("unknown frame type")
	ErrMissingField = errors.New("missing required frame field")
)

// DecodeFrame validates and decodes an incoming frame. The type field is
// peeked first so obviously broken payloads are rejected before a full
// unmarshal.
func DecodeFrame(data []byte) (*Frame, error) {
	if !gjson.ValidBytes(data) {
		return nil, ErrNotJSON
	}
	switch t := gjson.GetBytes(data, "type").String(); t {
	case TypeJoin, TypeLeave, TypeMessage:
	case "":
		return nil, fmt.Errorf("%w: type", ErrMissingField)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, t)
	}

	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, ErrNotJSON
	}
	if f.Channel == "" {
		return nil, fmt.Errorf("%w: channel", ErrMissingField)
	}
	if f.Sender == "" {
		return nil, fmt.Errorf("%w: sender", ErrMissingField)
	}
	if f.Type == TypeMessage && f.Body == "" {
		return nil, fmt.Errorf("%w: body", ErrMissingField)
	}
	return &f, nil
}

// Encode serializes the frame as a newline-delimited JSON record, the
// format delivered into subscriber write buffers.
func (f *Frame) Encode() ([]byte, error) {
	data, err := json.Marshal(f)
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}
