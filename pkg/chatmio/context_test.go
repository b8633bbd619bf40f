package chatmio

import (
	"strings"
	"testing"

	"github.com/dwerner/chat-mio/internal/h1"
)

func TestContext_PathStripsQuery(t *testing.T) {
	ctx := testContext("GET", "/channels?limit=5")

	if ctx.Path() != "/channels" {
		t.Errorf("Expected /channels, got %s", ctx.Path())
	}
	if ctx.Query("limit") != "5" {
		t.Errorf("Expected query limit=5, got %q", ctx.Query("limit"))
	}
	if ctx.Query("missing") != "" {
		t.Error("Expected empty string for absent query param")
	}
}

func TestContext_JSON(t *testing.T) {
	ctx := testContext("GET", "/")

	if err := ctx.JSON(200, map[string]int{"n": 3}); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	resp := ctx.response()
	if resp.Status != 200 {
		t.Errorf("Expected status 200, got %d", resp.Status)
	}
	if string(resp.Body) != `{"n":3}` {
		t.Errorf("Unexpected body %q", resp.Body)
	}

	found := false
	for _, h := range resp.Headers {
		if h[0] == "Content-Type" && h[1] == "application/json" {
			found = true
		}
	}
	if !found {
		t.Error("Expected application/json content type")
	}
}

func TestContext_BindJSON(t *testing.T) {
	req := &h1.Request{Method: "POST", Path: "/chat", Body: []byte(`{"type":"join"}`)}
	ctx := newContext(req, 7)

	var payload struct {
		Type string `json:"type"`
	}
	if err := ctx.BindJSON(&payload); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if payload.Type != "join" {
		t.Errorf("Expected type join, got %q", payload.Type)
	}
	if ctx.ConnID() != 7 {
		t.Errorf("Expected conn id 7, got %d", ctx.ConnID())
	}
}

func TestContext_BindJSONErrors(t *testing.T) {
	for _, body := range []string{"", "{broken"} {
		req := &h1.Request{Method: "POST", Path: "/", Body: []byte(body)}
		ctx := newContext(req, 1)

		var v map[string]interface{}
		err := ctx.BindJSON(&v)
		httpErr, ok := err.(*HTTPError)
		if !ok || httpErr.Code != 400 {
			t.Errorf("body %q: expected 400 HTTPError, got %v", body, err)
		}
	}
}

func TestContext_StringFormatting(t *testing.T) {
	ctx := testContext("GET", "/")

	if err := ctx.String(200, "hello %s", "world"); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if string(ctx.body) != "hello world" {
		t.Errorf("Expected formatted body, got %q", ctx.body)
	}

	// A literal with percent signs and no args is not formatted.
	ctx = testContext("GET", "/")
	if err := ctx.String(200, "100%"); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if string(ctx.body) != "100%" {
		t.Errorf("Expected literal body, got %q", ctx.body)
	}
}

func TestContext_HeaderLookup(t *testing.T) {
	req := &h1.Request{
		Method: "GET",
		Path:   "/",
		Headers: [][2]string{
			{"x-tag", "one"},
			{"x-tag", "two"},
		},
	}
	ctx := newContext(req, 1)

	if got := ctx.Header("X-Tag"); got != "two" {
		t.Errorf("Expected last value, got %q", got)
	}
}

func TestContext_Values(t *testing.T) {
	ctx := testContext("GET", "/")

	if _, ok := ctx.Get("missing"); ok {
		t.Error("Expected miss for unset key")
	}
	ctx.Set("k", "v")
	v, ok := ctx.Get("k")
	if !ok || v != "v" {
		t.Errorf("Expected stored value, got %v", v)
	}
}

func TestContext_NoContent(t *testing.T) {
	ctx := testContext("GET", "/")

	if err := ctx.NoContent(); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	resp := ctx.response()
	if resp.Status != 204 || len(resp.Body) != 0 {
		t.Errorf("Expected empty 204, got %d with %d bytes", resp.Status, len(resp.Body))
	}
}

func TestContext_ResponseSerializes(t *testing.T) {
	ctx := testContext("GET", "/")
	_ = ctx.String(200, "ok")

	wire := string(ctx.response().Serialize(true))
	if !strings.HasPrefix(wire, "HTTP/1.1 200 OK\r\n") {
		t.Errorf("Unexpected wire form %q", wire)
	}
}
