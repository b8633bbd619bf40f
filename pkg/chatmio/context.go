package chatmio

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/dwerner/chat-mio/internal/h1"
)

// Context carries one request/response exchange through the handler chain.
// A Context is only valid for the duration of the handler call; the event
// loop reuses the underlying buffers afterwards.
type Context struct {
	req    *h1.Request
	params []Param
	connID int

	status  int
	headers [][2]string
	body    []byte

	query     url.Values
	queryOnce bool
	values    map[string]interface{}
}

func newContext(req *h1.Request, connID int) *Context {
	return &Context{req: req, connID: connID, status: 200}
}

// Method returns the request method.
func (c *Context) Method() string {
	return c.req.Method
}

// Path returns the request path with any query string stripped.
func (c *Context) Path() string {
	if q := strings.IndexByte(c.req.Path, '?'); q >= 0 {
		return c.req.Path[:q]
	}
	return c.req.Path
}

// ConnID identifies the connection this request arrived on. It is stable
// for the connection's lifetime and unique among live connections.
func (c *Context) ConnID() int {
	return c.connID
}

// Param returns the value of a captured path parameter, or "".
func (c *Context) Param(name string) string {
	for _, p := range c.params {
		if p.Name == name {
			return p.Value
		}
	}
	return ""
}

// Params returns the captured path parameters in declaration order.
func (c *Context) Params() []Param {
	return c.params
}

// Query returns the first value of a query string parameter, or "".
func (c *Context) Query(name string) string {
	if !c.queryOnce {
		c.queryOnce = true
		if q := strings.IndexByte(c.req.Path, '?'); q >= 0 {
			c.query, _ = url.ParseQuery(c.req.Path[q+1:])
		}
	}
	if c.query == nil {
		return ""
	}
	return c.query.Get(name)
}

// Header returns a request header value by case-insensitive name. When
// the header was sent more than once the last value wins.
func (c *Context) Header(name string) string {
	return c.req.Header(name)
}

// Body returns the raw request body.
func (c *Context) Body() []byte {
	return c.req.Body
}

// BindJSON unmarshals the request body into v.
func (c *Context) BindJSON(v interface{}) error {
	if len(c.req.Body) == 0 {
		return NewHTTPError(400, "empty request body")
	}
	if err := json.Unmarshal(c.req.Body, v); err != nil {
		return NewHTTPError(400, "malformed JSON body")
	}
	return nil
}

// Set stores a value on the context for later middleware/handlers.
func (c *Context) Set(key string, value interface{}) {
	if c.values == nil {
		c.values = make(map[string]interface{})
	}
	c.values[key] = value
}

// Get retrieves a value stored with Set.
func (c *Context) Get(key string) (interface{}, bool) {
	v, ok := c.values[key]
	return v, ok
}

// SetHeader adds a response header.
func (c *Context) SetHeader(name, value string) {
	c.headers = append(c.headers, [2]string{name, value})
}

// Status sets the response status without writing a body.
func (c *Context) Status(code int) {
	c.status = code
}

// JSON writes a JSON response with the given status.
func (c *Context) JSON(code int, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.status = code
	c.SetHeader("Content-Type", "application/json")
	c.body = data
	return nil
}

// String writes a plain-text response, formatting with fmt when args are
// given.
func (c *Context) String(code int, format string, args ...interface{}) error {
	c.status = code
	c.SetHeader("Content-Type", "text/plain; charset=utf-8")
	if len(args) > 0 {
		c.body = []byte(fmt.Sprintf(format, args...))
	} else {
		c.body = []byte(format)
	}
	return nil
}

// Data writes raw bytes with an explicit content type.
func (c *Context) Data(code int, contentType string, data []byte) error {
	c.status = code
	c.SetHeader("Content-Type", contentType)
	c.body = data
	return nil
}

// NoContent writes an empty 204 response.
func (c *Context) NoContent() error {
	c.status = 204
	c.body = nil
	return nil
}

// response assembles the final h1.Response after the chain has run.
func (c *Context) response() *h1.Response {
	return &h1.Response{
		Status:  c.status,
		Headers: c.headers,
		Body:    c.body,
	}
}
