package trawl

import (
	"context"
	"net/http"
)

// Transport sends requests to the target. Network level failures are
// returned as *TransportError, http error statuses are not errors.
type Transport interface {
	Send(ctx context.Context, req *Request) (*Response, error)
}

// SessionHolder is implemented by transports that can carry an
// authenticated session
type SessionHolder interface {
	SetSession(headers http.Header)
}

// TransportFunc adapts a function to the Transport interface
type TransportFunc func(ctx context.Context, req *Request) (*Response, error)

// Send calls f(ctx, req)
func (f TransportFunc) Send(ctx context.Context, req *Request) (*Response, error) {
	return f(ctx, req)
}
