package mock

import (
	"context"

	"gitlab.com/trawler/trawl"
)

type Authenticator struct {
	LoginFn     func(ctx context.Context, transport trawl.Transport, start *trawl.Request) (*trawl.Session, error)
	LoginCalled bool
}

func (a *Authenticator) Login(ctx context.Context, transport trawl.Transport, start *trawl.Request) (*trawl.Session, error) {
	a.LoginCalled = true
	return a.LoginFn(ctx, transport, start)
}

func MakeMockAuthenticator() *Authenticator {
	a := &Authenticator{}
	a.LoginFn = func(ctx context.Context, transport trawl.Transport, start *trawl.Request) (*trawl.Session, error) {
		return &trawl.Session{}, nil
	}
	return a
}
