package trawl

import "context"

// ModuleOpts describe how and when the orchestrator runs a module
type ModuleOpts struct {
	Priority int      // lower runs first, ties are broken by name
	DoGet    bool     // offered GET resources (links)
	DoPost   bool     // offered POST resources (forms)
	Require  []string // modules that must be active and run before this one
}

// AttackModule is a single vulnerability check run against every eligible
// resource. Modules must treat the request/response pair as read-only.
type AttackModule interface {
	Name() string
	Options() *ModuleOpts
	// MustAttack is a cheap decision without network calls
	MustAttack(req *Request, resp *Response) bool
	// Attack probes the resource, findings go to the module's FindingSink
	Attack(ctx context.Context, req *Request, resp *Response) error
}

// Finisher is implemented by modules that emit aggregated findings once
// their resource loop completes
type Finisher interface {
	Finish(ctx context.Context) error
}

// Updater is implemented by modules that keep signature data, only called
// by the explicit update operation
type Updater interface {
	Update(ctx context.Context) error
}

// DependencyLoader receives the configured instances of the modules listed
// in Require before the module runs
type DependencyLoader interface {
	LoadRequirements(deps []AttackModule) error
}

// ModuleContext is handed to module factories
type ModuleContext struct {
	Transport Transport
	Findings  FindingSink
	Scope     ScopeService
	Options   map[string]string
	DataPath  string
	Detailed  bool
}

// Option returns a module option or the default
func (m *ModuleContext) Option(key, def string) string {
	if m == nil || m.Options == nil {
		return def
	}
	if v, ok := m.Options[key]; ok {
		return v
	}
	return def
}

// ModuleFactory creates a module instance
type ModuleFactory func(mctx *ModuleContext) AttackModule
