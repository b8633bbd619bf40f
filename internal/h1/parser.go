// Package h1 implements the HTTP/1.1 subset spoken by the chat server:
// an incremental, resumable request parser, per-connection state handling
// and response serialization over gnet.
package h1

import (
	"errors"
	"fmt"
	"strconv"
)

// MaxRequestBytes bounds the total size of a single buffered request
// (request line + headers + body). Requests beyond it are rejected with
// 413 rather than truncated.
const MaxRequestBytes = 8192

// Terminal parse errors. Everything except ErrTooLarge surfaces as 400.
var (
	ErrBadRequest          = errors.New("malformed request")
	ErrBadContentLength    = errors.New("invalid content-length")
	ErrUnsupportedEncoding = errors.New("chunked transfer-encoding not supported")
	ErrTooLarge            = errors.New("request exceeds buffer limit")
)

// Request is a fully parsed HTTP/1.1 request. It is immutable once the
// parser hands it out.
type Request struct {
	Method        string
	Path          string
	Version       string
	Headers       [][2]string // names lowercased, wire order preserved
	Body          []byte
	ContentLength int64
	KeepAlive     bool
}

// Header returns the value of the named header, case-insensitively.
// Duplicate names are last-value-wins.
func (r *Request) Header(name string) string {
	val := ""
	for i := range r.Headers {
		if asciiEqualFold(r.Headers[i][0], name) {
			val = r.Headers[i][1]
		}
	}
	return val
}

type parseState int

const (
	stateRequestLine parseState = iota
	stateHeaders
	stateBody
	stateFailed
)

// Parser consumes bytes fed across arbitrary boundaries and produces
// complete requests. Progress survives between Feed calls: a request split
// at any byte position parses identically to the same bytes in one call.
// After a terminal error the parser stays failed until Reset.
type Parser struct {
	buf []byte
	pos int // start of unconsumed bytes within buf

	state     parseState
	req       Request
	sawLength bool
	bodyNeed  int64
	err       error
}

// NewParser returns a parser ready for the first request on a connection.
func NewParser() *Parser {
	return &Parser{}
}

// Feed appends data and advances as far as the available bytes allow.
// It returns (nil, nil) when more bytes are needed, a complete request on
// success, or a terminal error. Bytes following a complete request are
// retained for the next call (keep-alive reuse); call Feed(nil) to resume
// parsing them without new input.
func (p *Parser) Feed(data []byte) (*Request, error) {
	if p.state == stateFailed {
		return nil, p.err
	}
	p.buf = append(p.buf, data...)
	if len(p.buf) > MaxRequestBytes {
		return nil, p.fail(ErrTooLarge)
	}

	for {
		switch p.state {
		case stateRequestLine:
			line, ok := p.takeLine()
			if !ok {
				return nil, nil
			}
			if err := p.parseRequestLine(line); err != nil {
				return nil, p.fail(err)
			}
			p.state = stateHeaders

		case stateHeaders:
			line, ok := p.takeLine()
			if !ok {
				return nil, nil
			}
			if len(line) == 0 {
				if err := p.finishHeaders(); err != nil {
					return nil, p.fail(err)
				}
				p.state = stateBody
				continue
			}
			if err := p.parseHeaderLine(line); err != nil {
				return nil, p.fail(err)
			}

		case stateBody:
			if int64(len(p.buf)-p.pos) < p.bodyNeed {
				return nil, nil
			}
			if p.bodyNeed > 0 {
				body := make([]byte, p.bodyNeed)
				copy(body, p.buf[p.pos:p.pos+int(p.bodyNeed)])
				p.req.Body = body
				p.pos += int(p.bodyNeed)
			}
			return p.complete(), nil

		default:
			return nil, p.err
		}
	}
}

// Buffered reports how many unconsumed bytes the parser is holding.
func (p *Parser) Buffered() int {
	return len(p.buf) - p.pos
}

// Reset discards all buffered bytes and parse progress, including any
// leftover from a previous request. Used when a connection is being torn
// down or its state can no longer be trusted.
func (p *Parser) Reset() {
	p.buf = p.buf[:0]
	p.pos = 0
	p.state = stateRequestLine
	p.req = Request{}
	p.sawLength = false
	p.bodyNeed = 0
	p.err = nil
}

// complete snapshots the parsed request and rewinds state for the next one
// on the same connection. Leftover bytes are compacted to the front of the
// buffer so per-request size accounting starts fresh.
func (p *Parser) complete() *Request {
	req := p.req
	out := &req

	rest := len(p.buf) - p.pos
	copy(p.buf, p.buf[p.pos:])
	p.buf = p.buf[:rest]
	p.pos = 0
	p.state = stateRequestLine
	p.req = Request{}
	p.sawLength = false
	p.bodyNeed = 0
	return out
}

func (p *Parser) fail(err error) error {
	p.state = stateFailed
	p.err = err
	return err
}

// takeLine consumes up to and including the next CRLF, returning the line
// without its terminator. ok=false means the terminator has not arrived.
func (p *Parser) takeLine() ([]byte, bool) {
	for i := p.pos; i+1 < len(p.buf); i++ {
		if p.buf[i] == '\r' && p.buf[i+1] == '\n' {
			line := p.buf[p.pos:i]
			p.pos = i + 2
			return line, true
		}
	}
	return nil, false
}

func (p *Parser) parseRequestLine(line []byte) error {
	sp1 := indexByte(line, ' ')
	if sp1 <= 0 {
		return ErrBadRequest
	}
	sp2 := indexByte(line[sp1+1:], ' ')
	if sp2 <= 0 {
		return ErrBadRequest
	}
	sp2 += sp1 + 1

	method := line[:sp1]
	path := line[sp1+1 : sp2]
	version := line[sp2+1:]

	if !validToken(method) || len(path) == 0 || path[0] != '/' {
		return ErrBadRequest
	}
	ver := string(version)
	if ver != "HTTP/1.1" && ver != "HTTP/1.0" {
		return fmt.Errorf("%w: unsupported version %q", ErrBadRequest, ver)
	}

	p.req.Method = string(method)
	p.req.Path = string(path)
	p.req.Version = ver
	p.req.Headers = nil
	p.req.ContentLength = 0
	p.req.KeepAlive = ver == "HTTP/1.1"
	p.sawLength = false
	return nil
}

func (p *Parser) parseHeaderLine(line []byte) error {
	colon := indexByte(line, ':')
	if colon <= 0 {
		return ErrBadRequest
	}
	name := trimSpace(line[:colon])
	value := trimSpace(line[colon+1:])
	if len(name) == 0 {
		return ErrBadRequest
	}

	lower := toLowerASCII(name)
	p.req.Headers = append(p.req.Headers, [2]string{lower, string(value)})

	switch lower {
	case "content-length":
		cl, err := strconv.ParseInt(string(value), 10, 64)
		if err != nil || cl < 0 {
			return ErrBadContentLength
		}
		// A repeated content-length must agree with the first; a
		// conflicting pair would desynchronize body framing.
		if p.sawLength && cl != p.req.ContentLength {
			return ErrBadContentLength
		}
		p.sawLength = true
		p.req.ContentLength = cl
	case "transfer-encoding":
		if asciiContainsFold(value, "chunked") {
			return ErrUnsupportedEncoding
		}
	case "connection":
		if asciiContainsFold(value, "close") {
			p.req.KeepAlive = false
		} else if asciiContainsFold(value, "keep-alive") {
			p.req.KeepAlive = true
		}
	}
	return nil
}

// finishHeaders runs once the blank line arrives: it fixes the body size
// and rejects requests whose declared total would blow the buffer bound,
// before a single body byte is read.
func (p *Parser) finishHeaders() error {
	p.bodyNeed = p.req.ContentLength
	if int64(p.pos)+p.bodyNeed > MaxRequestBytes {
		return ErrTooLarge
	}
	return nil
}

func indexByte(b []byte, c byte) int {
	for i := range b {
		if b[i] == c {
			return i
		}
	}
	return -1
}

func trimSpace(b []byte) []byte {
	for len(b) > 0 && (b[0] == ' ' || b[0] == '\t') {
		b = b[1:]
	}
	for len(b) > 0 && (b[len(b)-1] == ' ' || b[len(b)-1] == '\t') {
		b = b[:len(b)-1]
	}
	return b
}

func toLowerASCII(b []byte) string {
	out := make([]byte, len(b))
	for i, c := range b {
		if 'A' <= c && c <= 'Z' {
			c |= 0x20
		}
		out[i] = c
	}
	return string(out)
}

// validToken reports whether b is a plausible HTTP method token.
func validToken(b []byte) bool {
	if len(b) == 0 {
		return false
	}
	for _, c := range b {
		if c <= ' ' || c >= 0x7f || c == ':' || c == '/' {
			return false
		}
	}
	return true
}

// asciiEqualFold reports whether two strings match under ASCII case folding.
func asciiEqualFold(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		ca, cb := a[i], b[i]
		if 'A' <= ca && ca <= 'Z' {
			ca |= 0x20
		}
		if 'A' <= cb && cb <= 'Z' {
			cb |= 0x20
		}
		if ca != cb {
			return false
		}
	}
	return true
}

// asciiContainsFold reports whether b contains sub, ASCII case-insensitive.
func asciiContainsFold(b []byte, sub string) bool {
	m := len(sub)
	if m == 0 {
		return true
	}
	if m > len(b) {
		return false
	}
	for i := 0; i <= len(b)-m; i++ {
		match := true
		for j := 0; j < m; j++ {
			cb, cs := b[i+j], sub[j]
			if 'A' <= cb && cb <= 'Z' {
				cb |= 0x20
			}
			if 'A' <= cs && cs <= 'Z' {
				cs |= 0x20
			}
			if cb != cs {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}
