package scanner

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"gitlab.com/trawler/metrics"
	"gitlab.com/trawler/scanner/modules"
	"gitlab.com/trawler/transport"
	"gitlab.com/trawler/trawl"
)

// DefaultBackoff after a transport error during an attack
const DefaultBackoff = 500 * time.Millisecond

// ActiveModule is a configured module instance and the transport counting
// its requests
type ActiveModule struct {
	Module    trawl.AttackModule
	Methods   Methods
	Transport *transport.Counting
}

// ModuleEnv is what every module of a run shares
type ModuleEnv struct {
	Transport trawl.Transport
	Findings  trawl.FindingSink
	Scope     trawl.ScopeService
	Options   map[string]map[string]string
	DataPath  string
	Detailed  bool
	Metrics   *metrics.Recorder
}

// findingSink tags findings with metrics before storing them
type findingSink struct {
	next    trawl.FindingSink
	module  string
	metrics *metrics.Recorder
}

func (s *findingSink) AddPayload(p *trawl.Payload) error {
	s.metrics.Finding(s.module, p.Type.String())
	return s.next.AddPayload(p)
}

// BuildModules instantiates the selected modules, each with its own
// counting transport and option map
func BuildModules(catalog *modules.Catalog, selection Selection, env *ModuleEnv) ([]*ActiveModule, error) {
	active := make([]*ActiveModule, 0, len(selection))
	for _, name := range selection.Names() {
		factory, ok := catalog.Factory(name)
		if !ok {
			return nil, trawl.NewConfigError("modules", name, "unknown module")
		}
		counting := transport.NewCounting(env.Transport, name, env.Metrics)
		m := factory(&trawl.ModuleContext{
			Transport: counting,
			Findings:  &findingSink{next: env.Findings, module: name, metrics: env.Metrics},
			Scope:     env.Scope,
			Options:   env.Options[name],
			DataPath:  env.DataPath,
			Detailed:  env.Detailed,
		})
		active = append(active, &ActiveModule{Module: m, Methods: selection[name], Transport: counting})
	}
	return active, nil
}

// AttackerOptions control the attack phase
type AttackerOptions struct {
	Budget     time.Duration // per module, zero is unlimited
	Backoff    time.Duration
	Policy     trawl.InterruptionPolicy
	Interrupts <-chan struct{}
	Crashes    *CrashReporter
	Metrics    *metrics.Recorder
}

// Attacker runs the active modules one after another against the stored
// resources
type Attacker struct {
	store     trawl.Storer
	opts      AttackerOptions
	summaries []*trawl.ModuleSummary
}

// NewAttacker for the given store
func NewAttacker(store trawl.Storer, opts AttackerOptions) *Attacker {
	if opts.Backoff <= 0 {
		opts.Backoff = DefaultBackoff
	}
	if opts.Policy == nil {
		opts.Policy = trawl.ReportOnInterrupt
	}
	return &Attacker{store: store, opts: opts}
}

// SortModules by priority, ties by name
func SortModules(active []*ActiveModule) {
	sort.SliceStable(active, func(i, j int) bool {
		pi, pj := active[i].Module.Options().Priority, active[j].Module.Options().Priority
		if pi != pj {
			return pi < pj
		}
		return active[i].Module.Name() < active[j].Module.Name()
	})
}

// OrderModules sorts by priority then moves every required module ahead of
// the modules requiring it. Cycles are left as found, the dependent is
// skipped later on.
func OrderModules(active []*ActiveModule) []*ActiveModule {
	SortModules(active)

	byName := make(map[string]*ActiveModule, len(active))
	for _, m := range active {
		byName[m.Module.Name()] = m
	}

	ordered := make([]*ActiveModule, 0, len(active))
	state := make(map[string]int8) // 1 visiting, 2 placed
	var place func(m *ActiveModule)
	place = func(m *ActiveModule) {
		name := m.Module.Name()
		if state[name] != 0 {
			return
		}
		state[name] = 1
		for _, req := range m.Module.Options().Require {
			if dep, ok := byName[req]; ok {
				place(dep)
			}
		}
		state[name] = 2
		ordered = append(ordered, m)
	}
	for _, m := range active {
		place(m)
	}
	return ordered
}

// Attack runs every module. It returns false when the operator chose to
// quit without a report.
func (a *Attacker) Attack(ctx context.Context, active []*ActiveModule) (bool, error) {
	active = OrderModules(active)

	ready := make(map[string]trawl.AttackModule)
	for i, m := range active {
		name := m.Module.Name()
		summary := &trawl.ModuleSummary{Name: name}
		a.summaries = append(a.summaries, summary)

		if reason := a.loadRequirements(m.Module, ready); reason != "" {
			summary.Skipped = reason
			log.Warn().Str("module", name).Str("reason", reason).Msg("module skipped")
			continue
		}
		ready[name] = m.Module

		remaining := make([]string, 0, len(active)-i-1)
		for _, next := range active[i+1:] {
			remaining = append(remaining, next.Module.Name())
		}

		choice, err := a.runModule(ctx, m, summary, remaining)
		summary.NetworkErrors = m.Transport.NetworkErrors()
		if err != nil {
			return false, err
		}
		switch choice {
		case trawl.InterruptReport:
			log.Info().Str("module", name).Msg("attack stopped, generating report")
			return true, nil
		case trawl.InterruptQuit:
			log.Info().Str("module", name).Msg("attack stopped, quitting without report")
			return false, nil
		}
	}
	return true, nil
}

// loadRequirements returns why the module can not run, empty if it can
func (a *Attacker) loadRequirements(m trawl.AttackModule, ready map[string]trawl.AttackModule) string {
	required := m.Options().Require
	if len(required) == 0 {
		return ""
	}

	deps := make([]trawl.AttackModule, 0, len(required))
	missing := make([]string, 0)
	for _, name := range required {
		dep, ok := ready[name]
		if !ok {
			missing = append(missing, name)
			continue
		}
		deps = append(deps, dep)
	}
	if len(missing) > 0 {
		return "missing dependencies: " + strings.Join(missing, ", ")
	}

	if loader, ok := m.(trawl.DependencyLoader); ok {
		if err := loader.LoadRequirements(deps); err != nil {
			return "failed to load dependencies: " + err.Error()
		}
	}
	return ""
}

func (a *Attacker) runModule(ctx context.Context, m *ActiveModule, summary *trawl.ModuleSummary, remaining []string) (trawl.InterruptChoice, error) {
	name := m.Module.Name()
	opts := m.Module.Options()
	start := time.Now()
	log.Info().Str("module", name).Msg("launching module")

	var deadline <-chan time.Time
	if a.opts.Budget > 0 {
		timer := time.NewTimer(a.opts.Budget)
		defer timer.Stop()
		deadline = timer.C
	}

	attacked := make([]string, 0)
	choice := trawl.InterruptResume
	processed := 0

	sources := make([]func(context.Context, string) <-chan *trawl.Resource, 0, 2)
	if opts.DoGet && m.Methods.Get {
		sources = append(sources, a.store.GetLinks)
	}
	if opts.DoPost && m.Methods.Post {
		sources = append(sources, a.store.GetForms)
	}

	stopped := false
	for _, source := range sources {
		if stopped {
			break
		}
		sourceCtx, cancel := context.WithCancel(ctx)
		resources := source(sourceCtx, name)

	loop:
		for res := range resources {
			select {
			case <-ctx.Done():
				stopped = true
				break loop
			case <-deadline:
				log.Warn().Str("module", name).Dur("budget", a.opts.Budget).Msg("max attack time reached, stopping module")
				stopped = true
				break loop
			case <-a.opts.Interrupts:
				choice = a.opts.Policy(&trawl.InterruptionContext{
					Module:    name,
					Processed: processed,
					Elapsed:   time.Since(start),
					Remaining: remaining,
				})
				log.Info().Str("module", name).Str("choice", trawl.InterruptChoiceMap[choice]).Msg("attack interrupted")
				if choice != trawl.InterruptResume {
					stopped = true
					break loop
				}
			default:
			}

			processed++
			if a.attackResource(ctx, m, res, summary) {
				attacked = append(attacked, res.Request.PathID())
			}
		}
		cancel()
		for range resources {
		}
	}

	if err := a.store.SetAttacked(attacked, name); err != nil {
		return choice, errors.Wrapf(err, "failed to persist attacked set of %s", name)
	}
	summary.Attacked = len(attacked)

	if finisher, ok := m.Module.(trawl.Finisher); ok && choice != trawl.InterruptQuit {
		if err := finisher.Finish(context.WithoutCancel(ctx)); err != nil {
			log.Warn().Err(err).Str("module", name).Msg("module failed to finish")
		}
	}

	a.opts.Metrics.ModuleDuration(name, time.Since(start))
	log.Info().Str("module", name).Int("attacked", len(attacked)).Int64("network_errors", m.Transport.NetworkErrors()).Dur("elapsed", time.Since(start)).Msg("module done")

	if ctx.Err() != nil && choice == trawl.InterruptResume {
		choice = trawl.InterruptQuit
	}
	return choice, nil
}

// attackResource returns true if the resource was processed and can be
// recorded as attacked
func (a *Attacker) attackResource(ctx context.Context, m *ActiveModule, res *trawl.Resource, summary *trawl.ModuleSummary) bool {
	name := m.Module.Name()
	if !m.Module.MustAttack(res.Request, res.Response) {
		return true
	}

	crashed, err := a.safeAttack(ctx, m.Module, res)
	switch {
	case crashed:
		summary.Crashes++
		return false
	case err == nil:
		return true
	case trawl.IsTransportError(err):
		log.Warn().Err(err).Str("module", name).Str("url", res.Request.URL).Msg("network error, backing off")
		select {
		case <-ctx.Done():
		case <-time.After(a.opts.Backoff):
		}
		return false
	default:
		log.Warn().Err(err).Str("module", name).Str("url", res.Request.URL).Msg("module returned an error")
		return true
	}
}

func (a *Attacker) safeAttack(ctx context.Context, m trawl.AttackModule, res *trawl.Resource) (crashed bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			crashed = true
			id := a.opts.Crashes.Report(ctx, m.Name(), res.Request, r)
			err = errors.Errorf("module %s crashed, incident %s", m.Name(), id)
		}
	}()
	return false, m.Attack(ctx, res.Request, res.Response)
}

// Summaries of the modules run so far, in run order
func (a *Attacker) Summaries() []*trawl.ModuleSummary {
	return a.summaries
}

// Report reads back every stored finding and the module summaries into the
// reporter
func (a *Attacker) Report(ctx context.Context, reporter trawl.Reporter) error {
	for payload := range a.store.GetPayloads(ctx) {
		reporter.Add(payload)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, summary := range a.summaries {
		reporter.AddSummary(summary)
	}
	return nil
}
