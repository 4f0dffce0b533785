package trawl

import (
	"context"
	"net/http"
)

// Session returned by a login procedure
type Session struct {
	Headers  http.Header
	Excluded []string // urls that would end the session (logout etc)
}

// Authenticator logs into the target before crawling
type Authenticator interface {
	Login(ctx context.Context, transport Transport, start *Request) (*Session, error)
}
