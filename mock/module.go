package mock

import (
	"context"

	"gitlab.com/trawler/trawl"
)

// Module is an attack module double, Attacked records the urls it was
// called with
type Module struct {
	NameFn     func() string
	NameCalled bool

	OptionsFn     func() *trawl.ModuleOpts
	OptionsCalled bool

	MustAttackFn     func(req *trawl.Request, resp *trawl.Response) bool
	MustAttackCalled bool

	AttackFn     func(ctx context.Context, req *trawl.Request, resp *trawl.Response) error
	AttackCalled bool
	Attacked     []string

	FinishFn     func(ctx context.Context) error
	FinishCalled bool
}

func (m *Module) Name() string {
	m.NameCalled = true
	return m.NameFn()
}

func (m *Module) Options() *trawl.ModuleOpts {
	m.OptionsCalled = true
	return m.OptionsFn()
}

func (m *Module) MustAttack(req *trawl.Request, resp *trawl.Response) bool {
	m.MustAttackCalled = true
	return m.MustAttackFn(req, resp)
}

func (m *Module) Attack(ctx context.Context, req *trawl.Request, resp *trawl.Response) error {
	m.AttackCalled = true
	m.Attacked = append(m.Attacked, req.URL)
	return m.AttackFn(ctx, req, resp)
}

func (m *Module) Finish(ctx context.Context) error {
	m.FinishCalled = true
	return m.FinishFn(ctx)
}

// MakeMockModule that attacks every GET and POST resource without finding anything
func MakeMockModule(name string, priority int, require ...string) *Module {
	m := &Module{}

	m.NameFn = func() string {
		return name
	}

	m.OptionsFn = func() *trawl.ModuleOpts {
		return &trawl.ModuleOpts{
			Priority: priority,
			DoGet:    true,
			DoPost:   true,
			Require:  require,
		}
	}

	m.MustAttackFn = func(req *trawl.Request, resp *trawl.Response) bool {
		return true
	}

	m.AttackFn = func(ctx context.Context, req *trawl.Request, resp *trawl.Response) error {
		return nil
	}

	m.FinishFn = func(ctx context.Context) error {
		return nil
	}
	return m
}
