package trawl

import (
	"net/http"
	"strings"
	"time"
)

// Response observed for a request. Body is only kept in the store when
// detailed reporting is enabled.
type Response struct {
	URL      string              `msgpack:"url"`
	Status   int                 `msgpack:"status"`
	Headers  map[string][]string `msgpack:"headers"`
	Body     []byte              `msgpack:"body,omitempty"`
	Duration time.Duration       `msgpack:"duration"`
}

// Header returns the first value of a header, case-insensitively
func (r *Response) Header(name string) string {
	if r == nil {
		return ""
	}
	return http.Header(r.Headers).Get(name)
}

// HeaderValues returns all values of a header
func (r *Response) HeaderValues(name string) []string {
	if r == nil {
		return nil
	}
	return http.Header(r.Headers).Values(name)
}

// ContentType without parameters, lower cased
func (r *Response) ContentType() string {
	ct := r.Header("Content-Type")
	if i := strings.Index(ct, ";"); i >= 0 {
		ct = ct[:i]
	}
	return strings.ToLower(strings.TrimSpace(ct))
}

// IsHTML returns true for html/xhtml responses
func (r *Response) IsHTML() bool {
	ct := r.ContentType()
	return ct == "text/html" || ct == "application/xhtml+xml"
}

// IsRedirect returns true for 3xx responses with a Location header
func (r *Response) IsRedirect() bool {
	return r != nil && r.Status >= 300 && r.Status < 400 && r.Header("Location") != ""
}

// IsSuccess returns true for 2xx
func (r *Response) IsSuccess() bool {
	return r != nil && r.Status >= 200 && r.Status < 300
}

// Stripped returns a copy without the body
func (r *Response) Stripped() *Response {
	if r == nil {
		return nil
	}
	return &Response{URL: r.URL, Status: r.Status, Headers: r.Headers, Duration: r.Duration}
}

// Resource is a request paired with its observed response, the unit of
// crawling, storage and attacking.
type Resource struct {
	Request  *Request  `msgpack:"request"`
	Response *Response `msgpack:"response"`
}
