package chatmio

// Handler responds to a routed request through its Context.
type Handler interface {
	Serve(ctx *Context) error
}

// HandlerFunc adapts an ordinary function to the Handler interface.
type HandlerFunc func(ctx *Context) error

// Serve implements Handler.
func (f HandlerFunc) Serve(ctx *Context) error {
	return f(ctx)
}

// Middleware wraps a Handler with additional behavior.
type Middleware func(Handler) Handler

// Chain composes middlewares so the first one listed runs outermost.
func Chain(middlewares ...Middleware) Middleware {
	return func(final Handler) Handler {
		for i := len(middlewares) - 1; i >= 0; i-- {
			final = middlewares[i](final)
		}
		return final
	}
}
