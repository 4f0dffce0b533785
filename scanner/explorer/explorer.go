// Package explorer crawls a target breadth first from a set of start
// requests, honouring scope, exclusions and the crawl ceilings
package explorer

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"gitlab.com/trawler/metrics"
	"gitlab.com/trawler/trawl"
)

// DefaultCheckpointEvery fetched pages
const DefaultCheckpointEvery = 50

// Excluder blocks urls regardless of scope
type Excluder interface {
	Excluded(candidate string) bool
}

// Options of an explorer
type Options struct {
	Limits
	Parallelism     int
	Timeout         time.Duration
	FormData        *trawl.FormData
	StatePath       string // checkpoint file, empty disables checkpoints
	CheckpointEvery int
	Metrics         *metrics.Recorder
	Graph           trawl.LinkGrapher
}

// Explorer crawls the target. A single dispatcher goroutine owns the
// frontier and the counters, fetches run on up to Parallelism goroutines.
type Explorer struct {
	transport trawl.Transport
	scope     trawl.ScopeService
	excluded  Excluder
	opts      Options

	state    *State
	frontier []*trawl.Request
}

type fetched struct {
	req  *trawl.Request
	resp *trawl.Response
	err  error
}

// New explorer
func New(transport trawl.Transport, scope trawl.ScopeService, excluded Excluder, opts Options) *Explorer {
	if opts.Parallelism <= 0 {
		opts.Parallelism = trawl.DefaultParallelism
	}
	if opts.Timeout <= 0 {
		opts.Timeout = trawl.DefaultTimeout * time.Second
	}
	if opts.CheckpointEvery <= 0 {
		opts.CheckpointEvery = DefaultCheckpointEvery
	}
	return &Explorer{
		transport: transport,
		scope:     scope,
		excluded:  excluded,
		opts:      opts,
		state:     NewState(),
	}
}

// Explore fetches start and everything reachable from it. Fetched resources
// are yielded on the returned channel which is closed once the frontier is
// drained or ctx is done. On cancellation fetches already in flight are
// completed and yielded but no new frontier entry is started. The caller
// must drain the channel.
func (e *Explorer) Explore(ctx context.Context, start []*trawl.Request) <-chan *trawl.Resource {
	out := make(chan *trawl.Resource)

	for _, req := range start {
		if e.excluded != nil && e.excluded.Excluded(req.URL) {
			log.Info().Str("url", req.URL).Msg("start url is excluded, skipping")
			continue
		}
		e.state.markSeen(req)
		e.frontier = append(e.frontier, req)
	}

	go e.dispatch(ctx, out)
	return out
}

func (e *Explorer) dispatch(ctx context.Context, out chan<- *trawl.Resource) {
	defer close(out)

	results := make(chan *fetched, e.opts.Parallelism)
	inflight := 0
	sinceCheckpoint := 0

	for {
		for inflight < e.opts.Parallelism && len(e.frontier) > 0 && ctx.Err() == nil {
			req := e.frontier[0]
			e.frontier = e.frontier[1:]
			inflight++
			go e.fetch(ctx, req, results)
		}

		if inflight == 0 {
			break
		}

		f := <-results
		inflight--
		e.state.Fetched++

		if f.err != nil {
			log.Warn().Err(f.err).Str("url", f.req.URL).Msg("failed to fetch, dropping page")
			continue
		}
		e.opts.Metrics.Crawled()

		e.enqueue(f.req, Extract(f.req, f.resp, e.opts.FormData))
		out <- &trawl.Resource{Request: f.req, Response: f.resp}

		sinceCheckpoint++
		if e.opts.StatePath != "" && sinceCheckpoint >= e.opts.CheckpointEvery {
			sinceCheckpoint = 0
			e.checkpoint()
		}
	}

	if ctx.Err() != nil {
		log.Info().Int("remaining", len(e.frontier)).Msg("exploration stopped")
	} else {
		log.Info().Int("fetched", e.state.Fetched).Msg("exploration finished, frontier drained")
	}
	if e.opts.StatePath != "" {
		e.checkpoint()
	}
}

// fetch outlives ctx cancellation so in flight requests complete, each
// request still has its own timeout
func (e *Explorer) fetch(ctx context.Context, req *trawl.Request, results chan<- *fetched) {
	fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.opts.Timeout)
	defer cancel()

	resp, err := e.transport.Send(fetchCtx, req)
	results <- &fetched{req: req, resp: resp, err: err}
}

func (e *Explorer) enqueue(from *trawl.Request, candidates []*trawl.Request) {
	if e.opts.MaxLinksPerPage > 0 && len(candidates) > e.opts.MaxLinksPerPage {
		candidates = candidates[:e.opts.MaxLinksPerPage]
	}

	for _, c := range candidates {
		if !e.scope.RequestInScope(c) {
			continue
		}
		if e.excluded != nil && e.excluded.Excluded(c.URL) {
			log.Debug().Str("url", c.URL).Msg("excluded")
			continue
		}

		if e.opts.Graph != nil {
			if err := e.opts.Graph.AddLink(from.URL, c.URL); err != nil {
				log.Warn().Err(err).Msg("failed to record link")
			}
		}

		if reason := e.state.admit(e.opts.Limits, c); reason != "" {
			if reason != refusedSeen {
				log.Debug().Str("url", c.URL).Str("reason", string(reason)).Msg("candidate refused")
			}
			continue
		}
		e.frontier = append(e.frontier, c)
	}
}

func (e *Explorer) checkpoint() {
	if err := e.SaveState(e.opts.StatePath); err != nil {
		log.Error().Err(err).Str("path", e.opts.StatePath).Msg("failed to checkpoint explorer state")
	}
}

// Remaining frontier, only meaningful once the Explore channel is closed
func (e *Explorer) Remaining() []*trawl.Request {
	return append([]*trawl.Request(nil), e.frontier...)
}

// Fetched is the number of pages fetched, including those of previous runs
// when state was loaded
func (e *Explorer) Fetched() int {
	return e.state.Fetched
}
