package h1

import (
	"errors"
	"log"

	"github.com/panjf2000/gnet/v2"
)

// ConnState tracks where a connection is in its request cycle. Transitions
// happen only in response to reactor-delivered events.
type ConnState int32

const (
	StateAwaitingRequest ConnState = iota
	StateParsing
	StateDispatching
	StateAwaitingWrite
	StateClosed
)

// ErrCloseRequested tells the reactor to drop the connection after any
// queued bytes drain. It is a control signal, not a failure.
var ErrCloseRequested = errors.New("connection close requested")

// Dispatcher resolves a complete request into a response. Implementations
// must be synchronous: a connection handles one request at a time and the
// event loop is not re-entered while a dispatch runs.
type Dispatcher interface {
	Dispatch(c *Conn, req *Request) *Response
}

// Conn owns the per-socket state: parser progress, write queue, keep-alive
// flag and the state machine position. It is created on accept and advanced
// by the reactor on each readiness event.
type Conn struct {
	id       int
	conn     gnet.Conn
	parser   *Parser
	writer   *Writer
	dispatch Dispatcher
	logger   *log.Logger

	state ConnState
}

// NewConn wraps an accepted gnet connection.
func NewConn(id int, c gnet.Conn, dispatch Dispatcher, logger *log.Logger) *Conn {
	return &Conn{
		id:       id,
		conn:     c,
		parser:   NewParser(),
		writer:   NewWriter(c, logger),
		dispatch: dispatch,
		logger:   logger,
		state:    StateAwaitingRequest,
	}
}

// ID returns the stable integer identity of this connection.
func (c *Conn) ID() int { return c.id }

// State returns the connection's current state machine position.
func (c *Conn) State() ConnState { return c.state }

// RemoteAddr returns the peer address for logging.
func (c *Conn) RemoteAddr() string {
	if addr := c.conn.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return "?"
}

// Receive advances the state machine with freshly read bytes. Complete
// requests are dispatched and their responses queued for async write;
// partial requests retain parser state for the next readiness event.
// Terminal conditions with a response still to deliver close the socket
// via the writer's drain path; a returned ErrCloseRequested asks the
// reactor for an immediate close with nothing left to send.
func (c *Conn) Receive(data []byte) error {
	if c.state == StateClosed {
		return ErrCloseRequested
	}

	for {
		c.state = StateParsing
		req, err := c.parser.Feed(data)
		data = nil
		if err != nil {
			return c.abort(parseStatus(err))
		}
		if req == nil {
			// Need more bytes; resume here on the next event.
			c.state = StateAwaitingRequest
			return nil
		}

		c.state = StateDispatching
		resp := c.dispatch.Dispatch(c, req)
		if resp == nil {
			resp = ErrorResponse(500)
		}

		c.state = StateAwaitingWrite
		c.writer.Enqueue(resp.Serialize(req.KeepAlive))
		if err := c.writer.Flush(); err != nil {
			c.state = StateClosed
			return ErrCloseRequested
		}

		if !req.KeepAlive {
			// Drop the socket only after the response drains.
			c.state = StateClosed
			c.writer.CloseOnDrain()
			return nil
		}
		if c.parser.Buffered() == 0 {
			c.state = StateAwaitingRequest
			return nil
		}
		// The next sequential request is already buffered; keep going.
	}
}

// Push queues an out-of-band frame (chat fan-out) on this connection and
// schedules a flush. Safe to call while the connection is idle in
// AwaitingRequest: the async writer promotes it to a write without
// disturbing parser state.
func (c *Conn) Push(frame []byte) error {
	if c.state == StateClosed {
		return ErrCloseRequested
	}
	c.writer.Enqueue(frame)
	return c.writer.Flush()
}

// MarkClosed transitions the connection to its terminal state and discards
// buffered parse progress.
func (c *Conn) MarkClosed() {
	c.state = StateClosed
	c.parser.Reset()
}

// abort queues a terminal error response and closes the socket once it
// drains. Only a failed flush submission asks the reactor for an
// immediate close.
func (c *Conn) abort(status int) error {
	resp := ErrorResponse(status)
	c.writer.Enqueue(resp.Serialize(false))
	if err := c.writer.Flush(); err != nil {
		if c.logger != nil {
			c.logger.Printf("conn %d: flush of %d response failed: %v", c.id, status, err)
		}
		c.state = StateClosed
		return ErrCloseRequested
	}
	c.state = StateClosed
	c.writer.CloseOnDrain()
	return nil
}

// parseStatus maps parser errors onto response codes.
func parseStatus(err error) int {
	if errors.Is(err, ErrTooLarge) {
		return 413
	}
	return 400
}
