package h1

import (
	"log"
	"sync"

	"github.com/panjf2000/gnet/v2"
)

// Writer queues outbound buffers on a gnet connection and flushes them with
// vectorized async writes. While a batch is in flight, further buffers are
// parked in queued and sent from the completion callback, so backpressure on
// the socket never blocks the event loop and write ordering is preserved.
type Writer struct {
	conn         gnet.Conn
	mu           sync.Mutex
	logger       *log.Logger
	pending      [][]byte
	queued       [][]byte
	inflight     bool
	closeOnDrain bool
}

// NewWriter creates a writer bound to a gnet connection.
func NewWriter(conn gnet.Conn, logger *log.Logger) *Writer {
	return &Writer{conn: conn, logger: logger}
}

// Enqueue appends data to the pending batch without sending it.
func (w *Writer) Enqueue(data []byte) {
	w.mu.Lock()
	w.pending = append(w.pending, data)
	w.mu.Unlock()
}

// Flush sends all pending buffers. If a batch is already in flight the
// pending data is queued behind it and sent when the callback fires.
func (w *Writer) Flush() error {
	w.mu.Lock()
	if w.inflight {
		if len(w.pending) > 0 {
			w.queued = append(w.queued, w.pending...)
			w.pending = nil
		}
		w.mu.Unlock()
		return nil
	}
	batch := w.pending
	w.pending = nil
	if len(batch) == 0 {
		w.mu.Unlock()
		return nil
	}
	w.inflight = true
	w.mu.Unlock()

	return w.conn.AsyncWritev(batch, w.onWritten)
}

func (w *Writer) onWritten(_ gnet.Conn, err error) error {
	if err != nil && w.logger != nil {
		w.logger.Printf("async write error: %v", err)
	}
	w.mu.Lock()
	next := w.queued
	if len(next) > 0 {
		w.queued = nil
		w.mu.Unlock()
		return w.conn.AsyncWritev(next, w.onWritten)
	}
	w.inflight = false
	closing := w.closeOnDrain
	w.mu.Unlock()
	if closing {
		return w.conn.Close()
	}
	return nil
}

// CloseOnDrain closes the connection once every outstanding buffer has
// been written, so terminal responses reach the peer before the socket
// goes away. Closes immediately when nothing is in flight.
func (w *Writer) CloseOnDrain() {
	w.mu.Lock()
	if w.inflight || len(w.pending) > 0 || len(w.queued) > 0 {
		w.closeOnDrain = true
		w.mu.Unlock()
		return
	}
	w.mu.Unlock()
	_ = w.conn.Close()
}
