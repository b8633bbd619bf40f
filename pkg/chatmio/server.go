package chatmio

import (
	"context"
	"errors"
	"log"
	"runtime/debug"

	"github.com/dwerner/chat-mio/internal/h1"
	"github.com/dwerner/chat-mio/internal/transport"
)

// Server is the public entry point. It owns the event-loop transport and
// dispatches parsed requests through a Router.
type Server struct {
	config    Config
	logger    *log.Logger
	transport *transport.Server
	onClose   func(id int)
}

// New creates a Server from the given config.
func New(config Config) (*Server, error) {
	if config.Logger == nil {
		config.Logger = DefaultConfig().Logger
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Server{config: config, logger: config.Logger}, nil
}

// ListenAndServe binds the configured address and runs the event loop until
// Stop is called. It blocks.
func (s *Server) ListenAndServe(router *Router) error {
	if router == nil {
		return errors.New("router must not be nil")
	}
	dispatcher := &routerDispatcher{router: router, logger: s.logger}
	s.transport = transport.NewServer(dispatcher, transport.Config{
		Addr:      s.config.Addr,
		ReusePort: s.config.ReusePort,
		Logger:    s.logger,
	})
	if s.onClose != nil {
		s.transport.OnConnClose(s.onClose)
	}
	return s.transport.Start()
}

// Stop shuts the event loop down, closing all connections.
func (s *Server) Stop(ctx context.Context) error {
	if s.transport == nil {
		return nil
	}
	return s.transport.Stop(ctx)
}

// Push queues a frame for delivery on the identified connection. It
// reports false when the connection is gone. Safe to call from any
// goroutine.
func (s *Server) Push(id int, frame []byte) bool {
	if s.transport == nil {
		return false
	}
	return s.transport.Push(id, frame)
}

// OnConnClose registers a hook invoked after a connection closes, with
// the connection's id. Must be called before ListenAndServe.
func (s *Server) OnConnClose(hook func(id int)) {
	s.onClose = hook
}

// ConnCount reports the number of live connections.
func (s *Server) ConnCount() int {
	if s.transport == nil {
		return 0
	}
	return s.transport.ConnCount()
}

// routerDispatcher adapts a Router to the transport's dispatch interface.
// A panic in a handler is contained to the request that caused it.
type routerDispatcher struct {
	router *Router
	logger *log.Logger
}

func (d *routerDispatcher) Dispatch(conn *h1.Conn, req *h1.Request) (resp *h1.Response) {
	ctx := newContext(req, conn.ID())

	defer func() {
		if r := recover(); r != nil {
			d.logger.Printf("panic serving %s: %v\n%s", ctx.Path(), r, debug.Stack())
			resp = h1.ErrorResponse(500)
		}
	}()

	if err := d.router.serve(ctx); err != nil {
		d.logger.Printf("unhandled error serving %s: %v", ctx.Path(), err)
		return h1.ErrorResponse(500)
	}
	return ctx.response()
}
