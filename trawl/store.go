package trawl

import "context"

// Storer is the single source of truth for crawl and attack state. It is
// durable across restarts and safe for concurrent readers and writers.
//
// The Get* methods produce lazy, finite sequences: the returned channel is
// closed once exhausted or when ctx is done. Callers must drain the channel
// or cancel ctx.
type Storer interface {
	Init() error
	Close() error

	SetRootURL(root string) error
	GetRootURL() (string, error)

	// SetToBrowse replaces the crawl frontier
	SetToBrowse(reqs []*Request) error
	GetToBrowse(ctx context.Context) <-chan *Request
	CountToBrowse() (int, error)

	// SaveRequests idempotently stores crawled resources into links (GET)
	// or forms (everything else)
	SaveRequests(resources []*Resource) error
	// GetLinks yields stored GET resources, when attackModule is not empty
	// resources already attacked by that module are skipped
	GetLinks(ctx context.Context, attackModule string) <-chan *Resource
	// GetForms is GetLinks for POST / form resources
	GetForms(ctx context.Context, attackModule string) <-chan *Resource
	CountPaths() (int, error)

	CountAttacked(module string) (int, error)
	SetAttacked(pathIDs []string, module string) error

	AddPayload(payload *Payload) error
	GetPayloads(ctx context.Context) <-chan *Payload

	RemoveBigRequests(maxParameters int) (int, error)
	FlushAttacks() error
	FlushSession() error

	HasScanStarted() (bool, error)
	HasScanFinished() (bool, error)
	SetScanFinished(finished bool) error
}

// LinkGrapher records which page linked to which resource
type LinkGrapher interface {
	Init() error
	Close() error
	AddLink(from, to string) error
	Children(from string) ([]string, error)
	Parents(to string) ([]string, error)
}
