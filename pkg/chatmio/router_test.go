package chatmio

import (
	"testing"

	"github.com/dwerner/chat-mio/internal/h1"
)

func testContext(method, path string) *Context {
	return newContext(&h1.Request{Method: method, Path: path}, 1)
}

func TestRouter_StaticRoute(t *testing.T) {
	router := NewRouter()

	called := false
	router.GET("/healthz", func(_ *Context) error {
		called = true
		return nil
	})

	ctx := testContext("GET", "/healthz")
	if err := router.serve(ctx); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !called {
		t.Error("Expected handler to be called")
	}
}

func TestRouter_Parameters(t *testing.T) {
	router := NewRouter()

	var captured string
	router.GET("/channels/:name/messages", func(ctx *Context) error {
		captured = ctx.Param("name")
		return nil
	})

	ctx := testContext("GET", "/channels/general/messages")
	if err := router.serve(ctx); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if captured != "general" {
		t.Errorf("Expected param 'general', got %q", captured)
	}
}

func TestRouter_StaticBeatsParam(t *testing.T) {
	router := NewRouter()

	var hit string
	router.GET("/users/admin", func(_ *Context) error {
		hit = "static"
		return nil
	})
	router.GET("/users/:id", func(ctx *Context) error {
		hit = "param:" + ctx.Param("id")
		return nil
	})

	if err := router.serve(testContext("GET", "/users/admin")); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if hit != "static" {
		t.Errorf("Expected static route to win, got %q", hit)
	}

	if err := router.serve(testContext("GET", "/users/42")); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if hit != "param:42" {
		t.Errorf("Expected param route for other values, got %q", hit)
	}
}

func TestRouter_OrderedParams(t *testing.T) {
	router := NewRouter()

	var params []Param
	router.GET("/a/:first/b/:second", func(ctx *Context) error {
		params = ctx.Params()
		return nil
	})

	if err := router.serve(testContext("GET", "/a/one/b/two")); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(params) != 2 {
		t.Fatalf("Expected 2 params, got %d", len(params))
	}
	if params[0] != (Param{Name: "first", Value: "one"}) {
		t.Errorf("Expected first param in declaration order, got %+v", params[0])
	}
	if params[1] != (Param{Name: "second", Value: "two"}) {
		t.Errorf("Expected second param in declaration order, got %+v", params[1])
	}
}

func TestRouter_NotFoundVsMethodNotAllowed(t *testing.T) {
	router := NewRouter()
	router.GET("/chat", func(ctx *Context) error { return ctx.String(200, "ok") })

	_, _, kind := router.Lookup("GET", "/nope")
	if kind != RouteNotFound {
		t.Errorf("Expected RouteNotFound for unknown path, got %v", kind)
	}

	_, _, kind = router.Lookup("POST", "/chat")
	if kind != MethodNotAllowed {
		t.Errorf("Expected MethodNotAllowed for known path wrong method, got %v", kind)
	}

	_, _, kind = router.Lookup("GET", "/chat")
	if kind != Matched {
		t.Errorf("Expected Matched, got %v", kind)
	}
}

func TestRouter_DefaultStatusCodes(t *testing.T) {
	router := NewRouter()
	router.GET("/chat", func(ctx *Context) error { return ctx.NoContent() })

	ctx := testContext("GET", "/missing")
	if err := router.serve(ctx); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if ctx.status != 404 {
		t.Errorf("Expected 404, got %d", ctx.status)
	}

	ctx = testContext("DELETE", "/chat")
	if err := router.serve(ctx); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if ctx.status != 405 {
		t.Errorf("Expected 405, got %d", ctx.status)
	}
}

// An intermediate node with children but no handlers of its own is not a
// route: /channels/general must 404 when only deeper paths are registered.
func TestRouter_IntermediateNodeNotRouted(t *testing.T) {
	router := NewRouter()
	router.GET("/channels/:name/messages", func(ctx *Context) error { return nil })

	_, _, kind := router.Lookup("GET", "/channels/general")
	if kind != RouteNotFound {
		t.Errorf("Expected RouteNotFound for intermediate node, got %v", kind)
	}
}

func TestRouter_QueryStringStripped(t *testing.T) {
	router := NewRouter()

	var captured string
	router.GET("/channels/:name/messages", func(ctx *Context) error {
		captured = ctx.Param("name")
		return nil
	})

	if err := router.serve(testContext("GET", "/channels/general/messages?limit=10")); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if captured != "general" {
		t.Errorf("Expected query string ignored in matching, got %q", captured)
	}
}

func TestRouter_RootRoute(t *testing.T) {
	router := NewRouter()

	called := false
	router.GET("/", func(_ *Context) error {
		called = true
		return nil
	})

	if err := router.serve(testContext("GET", "/")); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !called {
		t.Error("Expected root handler to be called")
	}
}

func TestRouter_TrailingSlashEquivalent(t *testing.T) {
	router := NewRouter()

	called := false
	router.GET("/channels", func(_ *Context) error {
		called = true
		return nil
	})

	if err := router.serve(testContext("GET", "/channels/")); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !called {
		t.Error("Expected trailing slash to match")
	}
}

func TestRouter_Middleware(t *testing.T) {
	router := NewRouter()

	var order []string
	router.Use(
		func(next Handler) Handler {
			return HandlerFunc(func(ctx *Context) error {
				order = append(order, "outer")
				return next.Serve(ctx)
			})
		},
		func(next Handler) Handler {
			return HandlerFunc(func(ctx *Context) error {
				order = append(order, "inner")
				return next.Serve(ctx)
			})
		},
	)
	router.GET("/x", func(_ *Context) error {
		order = append(order, "handler")
		return nil
	})

	if err := router.serve(testContext("GET", "/x")); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(order) != 3 || order[0] != "outer" || order[1] != "inner" || order[2] != "handler" {
		t.Errorf("Expected outer,inner,handler, got %v", order)
	}
}

func TestRouter_HTTPErrorRendered(t *testing.T) {
	router := NewRouter()
	router.GET("/x", func(_ *Context) error {
		return NewHTTPError(401, "nope")
	})

	ctx := testContext("GET", "/x")
	if err := router.serve(ctx); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if ctx.status != 401 {
		t.Errorf("Expected 401, got %d", ctx.status)
	}
	if string(ctx.body) != "nope" {
		t.Errorf("Expected error message body, got %q", ctx.body)
	}
}

func TestRouter_MalformedPatternPanics(t *testing.T) {
	cases := []string{"", "nope", "/a//b", "/a/:"}
	for _, pattern := range cases {
		func() {
			defer func() {
				if recover() == nil {
					t.Errorf("pattern %q: expected panic", pattern)
				}
			}()
			router := NewRouter()
			router.GET(pattern, func(_ *Context) error { return nil })
		}()
	}
}

func TestRouter_ConflictingParamNamesPanic(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("Expected panic on conflicting param names")
		}
	}()
	router := NewRouter()
	router.GET("/users/:id", func(_ *Context) error { return nil })
	router.GET("/users/:name/posts", func(_ *Context) error { return nil })
}
