package modules

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"gitlab.com/trawler/trawl"
)

// base carries what every module needs: its context, options and a
// dedupe set so the same finding is only reported once per run
type base struct {
	name string
	opts *trawl.ModuleOpts
	mctx *trawl.ModuleContext

	lock     sync.Mutex
	reported map[string]struct{}
}

func newBase(name string, opts *trawl.ModuleOpts, mctx *trawl.ModuleContext) *base {
	if mctx == nil {
		mctx = &trawl.ModuleContext{}
	}
	return &base{name: name, opts: opts, mctx: mctx, reported: make(map[string]struct{})}
}

// Name of the module
func (b *base) Name() string {
	return b.name
}

// Options for the orchestrator
func (b *base) Options() *trawl.ModuleOpts {
	return b.opts
}

// once returns true the first time key is seen
func (b *base) once(key ...string) bool {
	k := strings.Join(key, "\x00")
	b.lock.Lock()
	defer b.lock.Unlock()
	if _, ok := b.reported[k]; ok {
		return false
	}
	b.reported[k] = struct{}{}
	return true
}

// seen without marking
func (b *base) seen(key ...string) bool {
	k := strings.Join(key, "\x00")
	b.lock.Lock()
	defer b.lock.Unlock()
	_, ok := b.reported[k]
	return ok
}

// report fills in the module and timestamp and hands the finding to the sink
func (b *base) report(attacked *trawl.Request, p *trawl.Payload) error {
	p.Module = b.name
	if p.PathID == "" && attacked != nil {
		p.PathID = attacked.PathID()
	}
	if p.Request == nil {
		p.Request = attacked
	}
	if p.Found.IsZero() {
		p.Found = time.Now()
	}
	if p.Response != nil && !b.mctx.Detailed {
		p.Response = p.Response.Stripped()
	}

	log.Info().Str("module", b.name).Str("category", p.Category).Str("url", p.Request.URL).Str("parameter", p.Parameter).Msg(p.Type.String())
	if b.mctx.Findings == nil {
		return nil
	}
	return b.mctx.Findings.AddPayload(p)
}

func (b *base) send(ctx context.Context, req *trawl.Request) (*trawl.Response, error) {
	return b.mctx.Transport.Send(ctx, req)
}
