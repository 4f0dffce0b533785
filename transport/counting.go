package transport

import (
	"context"
	"sync/atomic"

	"gitlab.com/trawler/metrics"
	"gitlab.com/trawler/trawl"
)

// Counting wraps a transport and counts requests and network errors for
// one module (or the explorer when module is empty)
type Counting struct {
	next    trawl.Transport
	module  string
	phase   string
	metrics *metrics.Recorder

	requests      int64
	networkErrors int64
}

// NewCounting wraps next
func NewCounting(next trawl.Transport, module string, rec *metrics.Recorder) *Counting {
	phase := metrics.PhaseAttack
	if module == "" {
		phase = metrics.PhaseCrawl
	}
	return &Counting{next: next, module: module, phase: phase, metrics: rec}
}

// Send through the wrapped transport
func (c *Counting) Send(ctx context.Context, req *trawl.Request) (*trawl.Response, error) {
	atomic.AddInt64(&c.requests, 1)
	c.metrics.Request(c.phase)

	resp, err := c.next.Send(ctx, req)
	if err != nil && trawl.IsTransportError(err) {
		atomic.AddInt64(&c.networkErrors, 1)
		c.metrics.TransportError(c.module)
	}
	return resp, err
}

// Requests sent so far
func (c *Counting) Requests() int64 {
	return atomic.LoadInt64(&c.requests)
}

// NetworkErrors seen so far
func (c *Counting) NetworkErrors() int64 {
	return atomic.LoadInt64(&c.networkErrors)
}
