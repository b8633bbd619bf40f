package chatmio

import (
	"fmt"
	"strings"
)

// MatchKind classifies the outcome of a route lookup.
type MatchKind int

const (
	// Matched means a handler was found for the method and path.
	Matched MatchKind = iota
	// RouteNotFound means no route matches the path under any method.
	RouteNotFound
	// MethodNotAllowed means the path is routed but not for this method.
	MethodNotAllowed
)

// Param is a captured path parameter. Params preserve the order parameter
// names were declared in the pattern.
type Param struct {
	Name  string
	Value string
}

// Router resolves (method, path) pairs through a prefix tree keyed by path
// segment. Routes are registered at startup only; lookups never mutate the
// tree, so no synchronization is needed.
type Router struct {
	root         *routeNode
	middlewares  []Middleware
	notFound     Handler
	notAllowed   Handler
	errorHandler ErrorHandler
}

// ErrorHandler renders an error returned by a handler.
type ErrorHandler func(ctx *Context, err error) error

type routeNode struct {
	children   map[string]*routeNode
	paramChild *routeNode
	paramName  string
	handlers   map[string]Handler
}

func newRouteNode() *routeNode {
	return &routeNode{children: make(map[string]*routeNode)}
}

// NewRouter creates a Router with default 404/405/error handlers.
func NewRouter() *Router {
	return &Router{
		root: newRouteNode(),
		notFound: HandlerFunc(func(ctx *Context) error {
			return ctx.String(404, "Not Found")
		}),
		notAllowed: HandlerFunc(func(ctx *Context) error {
			return ctx.String(405, "Method Not Allowed")
		}),
		errorHandler: DefaultErrorHandler,
	}
}

// DefaultErrorHandler maps HTTPError to its status and anything else to 500.
func DefaultErrorHandler(ctx *Context, err error) error {
	if httpErr, ok := err.(*HTTPError); ok {
		return ctx.String(httpErr.Code, "%s", httpErr.Message)
	}
	return ctx.String(500, "Internal Server Error")
}

// HTTPError carries a status code out of a handler.
type HTTPError struct {
	Code    int
	Message string
}

// Error implements the error interface.
func (e *HTTPError) Error() string { return e.Message }

// NewHTTPError creates a new HTTPError.
func NewHTTPError(code int, message string) *HTTPError {
	return &HTTPError{Code: code, Message: message}
}

// Use appends middleware to the router's chain.
func (r *Router) Use(middlewares ...Middleware) {
	r.middlewares = append(r.middlewares, middlewares...)
}

// NotFound overrides the handler used when no route matches.
func (r *Router) NotFound(handler Handler) {
	r.notFound = handler
}

// ErrorHandler overrides the router's error renderer.
func (r *Router) ErrorHandler(handler ErrorHandler) {
	r.errorHandler = handler
}

// GET registers a handler for GET requests.
func (r *Router) GET(path string, handler interface{}) {
	r.Handle("GET", path, handler)
}

// POST registers a handler for POST requests.
func (r *Router) POST(path string, handler interface{}) {
	r.Handle("POST", path, handler)
}

// PUT registers a handler for PUT requests.
func (r *Router) PUT(path string, handler interface{}) {
	r.Handle("PUT", path, handler)
}

// DELETE registers a handler for DELETE requests.
func (r *Router) DELETE(path string, handler interface{}) {
	r.Handle("DELETE", path, handler)
}

// Handle registers a handler for the given method and pattern. Pattern
// segments are static literals or :named parameters. Registration panics
// on malformed patterns; it only runs at startup.
func (r *Router) Handle(method, path string, handler interface{}) {
	if path == "" || path[0] != '/' {
		panic("path must begin with '/'")
	}
	h := wrapHandler(handler)

	current := r.root
	segments := strings.Split(strings.Trim(path, "/"), "/")
	if !(len(segments) == 1 && segments[0] == "") {
		for _, segment := range segments {
			if segment == "" {
				panic(fmt.Sprintf("empty segment in pattern %q", path))
			}
			if strings.HasPrefix(segment, ":") {
				name := segment[1:]
				if name == "" {
					panic(fmt.Sprintf("unnamed parameter in pattern %q", path))
				}
				if current.paramChild == nil {
					current.paramChild = newRouteNode()
					current.paramChild.paramName = name
				} else if current.paramChild.paramName != name {
					panic(fmt.Sprintf("conflicting parameter names %q and %q",
						current.paramChild.paramName, name))
				}
				current = current.paramChild
				continue
			}
			child, ok := current.children[segment]
			if !ok {
				child = newRouteNode()
				current.children[segment] = child
			}
			current = child
		}
	}

	if current.handlers == nil {
		current.handlers = make(map[string]Handler)
	}
	if _, dup := current.handlers[method]; dup {
		panic(fmt.Sprintf("duplicate route %s %s", method, path))
	}
	current.handlers[method] = h
}

func wrapHandler(handler interface{}) Handler {
	switch h := handler.(type) {
	case Handler:
		return h
	case func(*Context) error:
		return HandlerFunc(h)
	default:
		panic(fmt.Sprintf("invalid handler type: %T", handler))
	}
}

// Lookup resolves method+path to a handler and captured params. Matching
// is deterministic: at each node a static child matching the segment wins
// over the parameter child. A node reached with handlers for other methods
// only yields MethodNotAllowed.
func (r *Router) Lookup(method, path string) (Handler, []Param, MatchKind) {
	if q := strings.IndexByte(path, '?'); q >= 0 {
		path = path[:q]
	}

	current := r.root
	var params []Param

	trimmed := strings.Trim(path, "/")
	if trimmed != "" {
		start := 0
		for i := 0; i <= len(trimmed); i++ {
			if i < len(trimmed) && trimmed[i] != '/' {
				continue
			}
			segment := trimmed[start:i]
			start = i + 1
			if segment == "" {
				continue
			}

			if child, ok := current.children[segment]; ok {
				current = child
				continue
			}
			if current.paramChild != nil {
				params = append(params, Param{Name: current.paramChild.paramName, Value: segment})
				current = current.paramChild
				continue
			}
			return nil, nil, RouteNotFound
		}
	}

	if len(current.handlers) == 0 {
		return nil, nil, RouteNotFound
	}
	handler, ok := current.handlers[method]
	if !ok {
		return nil, nil, MethodNotAllowed
	}
	return handler, params, Matched
}

// serve runs the lookup result (including the middleware chain and error
// rendering) against a prepared context.
func (r *Router) serve(ctx *Context) error {
	handler, params, kind := r.Lookup(ctx.Method(), ctx.Path())
	switch kind {
	case RouteNotFound:
		handler = r.notFound
	case MethodNotAllowed:
		handler = r.notAllowed
	default:
		ctx.params = params
	}

	if len(r.middlewares) > 0 {
		handler = Chain(r.middlewares...)(handler)
	}

	if err := handler.Serve(ctx); err != nil {
		if r.errorHandler != nil {
			return r.errorHandler(ctx, err)
		}
		return err
	}
	return nil
}
