package mock

import (
	"context"
	"sync"

	"gitlab.com/trawler/trawl"
)

// Transport double, safe for concurrent use
type Transport struct {
	lock sync.Mutex

	SendFn     func(ctx context.Context, req *trawl.Request) (*trawl.Response, error)
	SendCalled bool
	Sent       []*trawl.Request
}

func (t *Transport) Send(ctx context.Context, req *trawl.Request) (*trawl.Response, error) {
	t.lock.Lock()
	t.SendCalled = true
	t.Sent = append(t.Sent, req)
	t.lock.Unlock()
	return t.SendFn(ctx, req)
}

// Requests sent so far
func (t *Transport) Requests() []*trawl.Request {
	t.lock.Lock()
	defer t.lock.Unlock()
	return append([]*trawl.Request(nil), t.Sent...)
}

// MakeMockTransport that answers every request with an empty html page
func MakeMockTransport() *Transport {
	t := &Transport{}
	t.SendFn = func(ctx context.Context, req *trawl.Request) (*trawl.Response, error) {
		return MakeMockResponse(req.URL, 200, "<html></html>"), nil
	}
	return t
}
