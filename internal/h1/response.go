package h1

import (
	"strconv"

	"github.com/dwerner/chat-mio/internal/date"
)

// Response is the unit a handler produces. It is owned by the connection
// until fully written.
type Response struct {
	Status  int
	Headers [][2]string
	Body    []byte
}

var (
	statusLine200       = []byte("HTTP/1.1 200 OK\r\n")
	headerContentLength = []byte("content-length: ")
	headerDate          = []byte("date: ")
	headerConnection    = []byte("connection: ")
	headerKeepAlive     = []byte("keep-alive\r\n")
	headerClose         = []byte("close\r\n")
	headerSep           = []byte(": ")
	crlf                = []byte("\r\n")
)

// Serialize assembles the entire response (status line + headers + body)
// into a single buffer. A content-length header is always emitted so peers
// can frame the body; the connection header reflects keepAlive.
func (r *Response) Serialize(keepAlive bool) []byte {
	expected := 32 + len(r.Body)
	for _, h := range r.Headers {
		expected += len(h[0]) + 2 + len(h[1]) + 2
	}
	buf := make([]byte, 0, expected+48)

	if r.Status == 200 {
		buf = append(buf, statusLine200...)
	} else {
		buf = append(buf, "HTTP/1.1 "...)
		buf = strconv.AppendInt(buf, int64(r.Status), 10)
		buf = append(buf, ' ')
		buf = append(buf, StatusText(r.Status)...)
		buf = append(buf, crlf...)
	}

	buf = append(buf, headerDate...)
	buf = append(buf, date.Current()...)
	buf = append(buf, crlf...)

	hasContentLength := false
	for _, h := range r.Headers {
		if h[0] == "content-length" {
			hasContentLength = true
		}
		buf = append(buf, h[0]...)
		buf = append(buf, headerSep...)
		buf = append(buf, h[1]...)
		buf = append(buf, crlf...)
	}
	if !hasContentLength {
		buf = append(buf, headerContentLength...)
		buf = strconv.AppendInt(buf, int64(len(r.Body)), 10)
		buf = append(buf, crlf...)
	}

	buf = append(buf, headerConnection...)
	if keepAlive {
		buf = append(buf, headerKeepAlive...)
	} else {
		buf = append(buf, headerClose...)
	}

	buf = append(buf, crlf...)
	buf = append(buf, r.Body...)
	return buf
}

// ErrorResponse builds a plain-text response for the given status.
func ErrorResponse(status int) *Response {
	body := []byte(StatusText(status))
	return &Response{
		Status: status,
		Headers: [][2]string{
			{"content-type", "text/plain; charset=utf-8"},
		},
		Body: body,
	}
}

// StatusText returns the reason phrase for the status codes this server
// produces.
func StatusText(code int) string {
	switch code {
	case 200:
		return "OK"
	case 204:
		return "No Content"
	case 400:
		return "Bad Request"
	case 401:
		return "Unauthorized"
	case 404:
		return "Not Found"
	case 405:
		return "Method Not Allowed"
	case 413:
		return "Payload Too Large"
	case 500:
		return "Internal Server Error"
	default:
		return "Unknown"
	}
}
