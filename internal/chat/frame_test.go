package chat

import (
	"bytes"
	"errors"
	"testing"
)

func TestDecodeFrame_Message(t *testing.T) {
	f, err := DecodeFrame([]byte(`{"type":"message","channel":"general","sender":"alice","body":"hi"}`))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if f.Type != TypeMessage || f.Channel != "general" || f.Sender != "alice" || f.Body != "hi" {
		t.Errorf("Unexpected frame: %+v", f)
	}
}

func TestDecodeFrame_JoinWithoutBody(t *testing.T) {
	f, err := DecodeFrame([]byte(`{"type":"join","channel":"general","sender":"bob"}`))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if f.Type != TypeJoin {
		t.Errorf("Expected join frame, got %s", f.Type)
	}
}

func TestDecodeFrame_UnknownFieldsIgnored(t *testing.T) {
	_, err := DecodeFrame([]byte(`{"type":"leave","channel":"c","sender":"s","extra":42}`))
	if err != nil {
		t.Errorf("Expected unknown fields to be ignored, got %v", err)
	}
}

func TestDecodeFrame_NotJSON(t *testing.T) {
	for _, raw := range []string{"", "not json", `{"type":"message"`} {
		if _, err := DecodeFrame([]byte(raw)); !errors.Is(err, ErrNotJSON) {
			t.Errorf("input %q: expected ErrNotJSON, got %v", raw, err)
		}
	}
}

func TestDecodeFrame_UnknownType(t *testing.T) {
	_, err := DecodeFrame([]byte(`{"type":"shout","channel":"c","sender":"s"}`))
	if !errors.Is(err, ErrUnknownType) {
		t.Errorf("Expected ErrUnknownType, got %v", err)
	}
}

func TestDecodeFrame_MissingFields(t *testing.T) {
	cases := []string{
		`{"channel":"c","sender":"s","body":"b"}`,
		`{"type":"message","sender":"s","body":"b"}`,
		`{"type":"message","channel":"c","body":"b"}`,
		`{"type":"message","channel":"c","sender":"s"}`,
	}
	for _, raw := range cases {
		if _, err := DecodeFrame([]byte(raw)); !errors.Is(err, ErrMissingField) {
			t.Errorf("input %s: expected ErrMissingField, got %v", raw, err)
		}
	}
}

func TestFrame_EncodeNewlineDelimited(t *testing.T) {
	f := &Frame{Type: TypeMessage, Channel: "general", Sender: "alice", Body: "hi"}

	data, err := f.Encode()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !bytes.HasSuffix(data, []byte("\n")) {
		t.Error("Expected trailing newline delimiter")
	}

	decoded, err := DecodeFrame(bytes.TrimSuffix(data, []byte("\n")))
	if err != nil {
		t.Fatalf("Round trip failed: %v", err)
	}
	if *decoded != *f {
		t.Errorf("Round trip mismatch: %+v vs %+v", decoded, f)
	}
}
