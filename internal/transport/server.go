// Package transport runs the event loop: a gnet engine pinned to a single
// event loop that owns the listening socket and the table of live
// connections, translating readiness events into connection state advances.
package transport

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/panjf2000/gnet/v2"

	"github.com/dwerner/chat-mio/internal/date"
	"github.com/dwerner/chat-mio/internal/h1"
)

// Config holds reactor configuration.
type Config struct {
	Addr      string
	ReusePort bool
	Logger    *log.Logger
}

// Server implements gnet.EventHandler. All connection lifecycle and traffic
// callbacks run on the single event loop, so the connection table needs no
// locking for loop-side access; the mutex only guards Push, which chat
// handlers may reach through while another connection's event is on-stack.
type Server struct {
	gnet.BuiltinEventEngine
	dispatch  h1.Dispatcher
	onClose   func(id int)
	logger    *log.Logger
	addr      string
	reusePort bool

	mu     sync.RWMutex
	conns  map[int]*h1.Conn
	engine gnet.Engine
	booted bool
}

// NewServer creates a reactor for the given dispatcher.
func NewServer(dispatch h1.Dispatcher, config Config) *Server {
	if config.Logger == nil {
		config.Logger = log.Default()
	}
	return &Server{
		dispatch:  dispatch,
		logger:    config.Logger,
		addr:      config.Addr,
		reusePort: config.ReusePort,
		conns:     make(map[int]*h1.Conn),
	}
}

// OnConnClose registers a hook invoked synchronously when a connection
// leaves the table, before any further event is processed. The chat service
// uses it to revoke subscriptions.
func (s *Server) OnConnClose(hook func(id int)) {
	s.onClose = hook
}

// Start runs the event loop. It blocks until the engine stops and fails
// fatally if the listener cannot bind or the engine cannot boot.
func (s *Server) Start() error {
	options := []gnet.Option{
		// One event loop: the whole server is a single cooperative
		// thread of control, matching the ownership model of the
		// connection table and chat registry.
		gnet.WithMulticore(false),
		gnet.WithNumEventLoop(1),
		gnet.WithReusePort(s.reusePort),
		gnet.WithTCPNoDelay(gnet.TCPNoDelay),
		gnet.WithLogger(silentGnetLogger{}),
	}

	stopDate := date.StartTicker()
	defer stopDate()

	s.logger.Printf("Starting chat server on %s", s.addr)
	return gnet.Run(s, "tcp://"+s.addr, options...)
}

// Stop shuts the engine down.
func (s *Server) Stop(ctx context.Context) error {
	if !s.booted {
		return nil
	}
	stopCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return s.engine.Stop(stopCtx)
}

// OnBoot is called when the listener is bound and the loop is running.
func (s *Server) OnBoot(eng gnet.Engine) gnet.Action {
	s.engine = eng
	s.booted = true
	s.logger.Printf("Listening on %s", s.addr)
	return gnet.None
}

// OnOpen registers an accepted connection in the table with interest in
// readable events. The socket fd is the connection's stable id.
func (s *Server) OnOpen(c gnet.Conn) ([]byte, gnet.Action) {
	id := c.Fd()
	conn := h1.NewConn(id, c, s.dispatch, s.logger)
	c.SetContext(conn)
	s.mu.Lock()
	s.conns[id] = conn
	s.mu.Unlock()
	return nil, gnet.None
}

// OnClose removes the connection from the table and revokes its chat
// membership before the registry can be observed again.
func (s *Server) OnClose(c gnet.Conn, err error) gnet.Action {
	if conn, ok := c.Context().(*h1.Conn); ok {
		conn.MarkClosed()
		s.mu.Lock()
		delete(s.conns, conn.ID())
		s.mu.Unlock()
		if s.onClose != nil {
			s.onClose(conn.ID())
		}
		if err != nil {
			s.logger.Printf("conn %d (%s) closed: %v", conn.ID(), conn.RemoteAddr(), err)
		}
	}
	return gnet.None
}

// OnTraffic drains all readable bytes and advances the connection's state
// machine. Per-connection errors close that connection only; the loop
// itself never aborts on them.
func (s *Server) OnTraffic(c gnet.Conn) gnet.Action {
	conn, ok := c.Context().(*h1.Conn)
	if !ok {
		return gnet.Close
	}
	if conn.State() == h1.StateClosed {
		// Already draining its terminal response; swallow any further
		// input so gnet does not keep re-delivering it.
		_, _ = c.Discard(-1)
		return gnet.None
	}

	buf, err := c.Next(-1)
	if err != nil {
		s.logger.Printf("conn %d read: %v", conn.ID(), err)
		return gnet.Close
	}
	if len(buf) == 0 {
		return gnet.None
	}

	if err := conn.Receive(buf); err != nil {
		// Nothing left to deliver; graceful closes drain through the
		// writer instead of reaching here.
		return gnet.Close
	}
	return gnet.None
}

// Push appends an encoded frame to the identified connection's write queue
// and ensures it gets flushed. Returns false if the connection is gone.
func (s *Server) Push(id int, frame []byte) bool {
	s.mu.RLock()
	conn, ok := s.conns[id]
	s.mu.RUnlock()
	if !ok {
		return false
	}
	return conn.Push(frame) == nil
}

// ConnCount reports the current size of the connection table.
func (s *Server) ConnCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.conns)
}

// silentGnetLogger discards gnet's own logging; the server logs through its
// configured logger instead.
type silentGnetLogger struct{}

func (silentGnetLogger) Debugf(_ string, _ ...any) {}
func (silentGnetLogger) Infof(_ string, _ ...any)  {}
func (silentGnetLogger) Warnf(_ string, _ ...any)  {}
func (silentGnetLogger) Errorf(_ string, _ ...any) {}
func (silentGnetLogger) Fatalf(_ string, _ ...any) {}
