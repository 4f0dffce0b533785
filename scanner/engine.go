package scanner

import (
	"context"
	"io"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"gitlab.com/trawler/metrics"
	"gitlab.com/trawler/scanner/explorer"
	"gitlab.com/trawler/scanner/modules"
	"gitlab.com/trawler/scanner/report"
	"gitlab.com/trawler/store"
	"gitlab.com/trawler/transport"
	"gitlab.com/trawler/trawl"
)

// SaveBatch is the number of crawled resources written per store call
const SaveBatch = 100

type phase int8

const (
	phaseIdle phase = iota
	phaseCrawl
	phaseAttack
)

// Trawler is our engine: it crawls the target into the store, then runs
// the selected modules against what was stored
type Trawler struct {
	cfg       *trawl.Config
	store     trawl.Storer
	graph     trawl.LinkGrapher
	reporter  trawl.Reporter
	transport trawl.Transport
	auth      trawl.Authenticator
	catalog   *modules.Catalog
	policy    trawl.InterruptionPolicy
	metrics   *metrics.Recorder
	statePath string

	root      *trawl.Request
	scope     *ScopeService
	excluded  *ExclusionList
	selection Selection
	attacker  *Attacker

	interrupts  chan struct{}
	lock        sync.Mutex
	phase       phase
	crawlCancel context.CancelFunc
}

// New engine
func New(cfg *trawl.Config, st trawl.Storer, graph trawl.LinkGrapher) *Trawler {
	return &Trawler{
		cfg:        cfg,
		store:      st,
		graph:      graph,
		catalog:    modules.Registry(),
		policy:     trawl.ReportOnInterrupt,
		interrupts: make(chan struct{}, 1),
	}
}

// SetReporter overrides the default reporter
func (t *Trawler) SetReporter(reporter trawl.Reporter) *Trawler {
	t.reporter = reporter
	return t
}

// SetTransport overrides the http transport built from the configuration
func (t *Trawler) SetTransport(tr trawl.Transport) *Trawler {
	t.transport = tr
	return t
}

// SetAuthenticator used before crawling
func (t *Trawler) SetAuthenticator(auth trawl.Authenticator) *Trawler {
	t.auth = auth
	return t
}

// SetCatalog overrides the shipped module registry
func (t *Trawler) SetCatalog(catalog *modules.Catalog) *Trawler {
	t.catalog = catalog
	return t
}

// SetInterruptionPolicy decides what an interruption during the attack does
func (t *Trawler) SetInterruptionPolicy(policy trawl.InterruptionPolicy) *Trawler {
	t.policy = policy
	return t
}

// SetMetrics recorder
func (t *Trawler) SetMetrics(rec *metrics.Recorder) *Trawler {
	t.metrics = rec
	return t
}

// SetStatePath of the explorer checkpoint, empty disables checkpoints
func (t *Trawler) SetStatePath(path string) *Trawler {
	t.statePath = path
	return t
}

// Init validates the configuration and opens the stores. Nothing is sent
// to the target before the configuration is known to be valid, except the
// session check of the authenticator.
func (t *Trawler) Init(ctx context.Context) error {
	if err := t.cfg.Validate(); err != nil {
		return err
	}
	root, err := trawl.NewGetRequest(t.cfg.URL)
	if err != nil {
		return err
	}
	t.root = root
	t.scope = NewScopeService(t.cfg.ScopePolicy(), root)
	t.excluded = NewExclusionList(t.cfg.Excluded)

	if t.selection, err = ParseSelection(t.cfg.Modules, t.catalog); err != nil {
		return err
	}

	if t.transport == nil {
		tr, err := transport.New(transport.ConfigFrom(t.cfg))
		if err != nil {
			return err
		}
		t.transport = tr
	}
	if t.reporter == nil {
		t.reporter = report.New(root.URL)
	}

	log.Info().Msg("initializing store")
	if err := t.store.Init(); err != nil {
		return err
	}
	if t.graph != nil {
		log.Info().Msg("initializing link graph")
		if err := t.graph.Init(); err != nil {
			return err
		}
	}

	if err := t.flush(); err != nil {
		return err
	}
	if _, err := t.store.GetRootURL(); errors.Is(err, trawl.ErrNotFound) {
		if err := t.store.SetRootURL(root.URL); err != nil {
			return err
		}
	} else if err != nil {
		return err
	}

	if t.auth != nil {
		session, err := t.auth.Login(ctx, t.transport, root)
		if err != nil {
			log.Warn().Err(err).Msg("login failed, continuing without session")
		} else {
			t.excluded.Add(session.Excluded...)
		}
	}
	return nil
}

func (t *Trawler) flush() error {
	if t.cfg.FlushSession {
		log.Info().Msg("flushing previous session")
		if err := t.store.FlushSession(); err != nil {
			return err
		}
		if t.statePath != "" {
			if err := store.RemoveCheckpoint(t.statePath); err != nil {
				return err
			}
		}
		return nil
	}
	if t.cfg.FlushAttacks {
		log.Info().Msg("flushing previous attacks")
		return t.store.FlushAttacks()
	}
	return nil
}

func (t *Trawler) setPhase(p phase, cancel context.CancelFunc) {
	t.lock.Lock()
	t.phase = p
	t.crawlCancel = cancel
	t.lock.Unlock()
}

// Interrupt stops the crawl, or asks the interruption policy what to do
// when attacking. The policy is consulted between two resources so it waits
// for the module call in flight. Outside of a phase the interrupt is kept for
// the next resource attacked.
func (t *Trawler) Interrupt() {
	t.lock.Lock()
	defer t.lock.Unlock()
	if t.phase == phaseCrawl {
		log.Info().Msg("crawl interrupted, moving on with what was found")
		t.crawlCancel()
		return
	}
	if t.phase == phaseIdle {
		log.Info().Msg("interrupt received between phases, asking before the next attack")
	}
	select {
	case t.interrupts <- struct{}{}:
	default:
	}
}

// Crawl explores the target and saves every fetched resource
func (t *Trawler) Crawl(ctx context.Context) error {
	started, err := t.store.HasScanStarted()
	if err != nil {
		return err
	}
	finished, err := t.store.HasScanFinished()
	if err != nil {
		return err
	}

	switch {
	case t.cfg.SkipCrawl && started:
		log.Info().Msg("skipping crawl, attacking previously found resources")
		return t.removeBigRequests()
	case t.cfg.SkipCrawl:
		log.Warn().Msg("nothing was crawled before, crawling anyway")
	case finished && !t.cfg.ResumeCrawl:
		log.Info().Msg("crawl already finished, use resume-crawl to continue it")
		return t.removeBigRequests()
	}

	start := make([]*trawl.Request, 0)
	if started {
		for req := range t.store.GetToBrowse(ctx) {
			start = append(start, req)
		}
		log.Info().Int("frontier", len(start)).Msg("resuming crawl from previous session")
	}
	if len(start) == 0 {
		start = append(start, t.root)
	}

	e := explorer.New(transport.NewCounting(t.transport, "", t.metrics), t.scope, t.excluded, explorer.Options{
		Limits:      explorer.LimitsFrom(t.cfg),
		Parallelism: t.cfg.Parallelism,
		Timeout:     t.cfg.RequestTimeout(),
		FormData:    t.cfg.FormData,
		StatePath:   t.statePath,
		Metrics:     t.metrics,
		Graph:       t.graph,
	})
	if started && t.statePath != "" {
		if err := e.LoadSavedState(t.statePath); err != nil && !errors.Is(err, trawl.ErrNotFound) {
			log.Warn().Err(err).Msg("failed to load explorer state, starting with fresh counters")
		}
	}

	var crawlCtx context.Context
	var cancel context.CancelFunc
	if budget := t.cfg.ScanBudget(); budget > 0 {
		crawlCtx, cancel = context.WithTimeout(ctx, budget)
	} else {
		crawlCtx, cancel = context.WithCancel(ctx)
	}
	defer cancel()
	t.setPhase(phaseCrawl, cancel)
	defer t.setPhase(phaseIdle, nil)

	log.Info().Str("url", t.root.URL).Str("scope", string(t.scope.Policy())).Msg("crawling")
	batch := make([]*trawl.Resource, 0, SaveBatch)
	var saveErr error
	for res := range e.Explore(crawlCtx, start) {
		if saveErr != nil {
			continue
		}
		if !t.cfg.DetailedReport {
			res = &trawl.Resource{Request: res.Request, Response: res.Response.Stripped()}
		}
		batch = append(batch, res)
		if len(batch) >= SaveBatch {
			saveErr = t.store.SaveRequests(batch)
			batch = batch[:0]
		}
	}
	if saveErr == nil && len(batch) > 0 {
		saveErr = t.store.SaveRequests(batch)
	}
	if saveErr != nil {
		return errors.Wrap(saveErr, "failed to save crawled resources")
	}

	remaining := e.Remaining()
	if err := t.store.SetToBrowse(remaining); err != nil {
		return err
	}
	if err := t.store.SetScanFinished(len(remaining) == 0); err != nil {
		return err
	}
	paths, _ := t.store.CountPaths()
	log.Info().Int("fetched", e.Fetched()).Int("stored", paths).Int("remaining", len(remaining)).Msg("crawl done")

	return t.removeBigRequests()
}

func (t *Trawler) removeBigRequests() error {
	removed, err := t.store.RemoveBigRequests(t.cfg.MaxParameters)
	if err != nil {
		return err
	}
	if removed > 0 {
		log.Info().Int("removed", removed).Int("max_parameters", t.cfg.MaxParameters).Msg("removed resources with too many parameters")
	}
	return nil
}

func (t *Trawler) moduleEnv() *ModuleEnv {
	return &ModuleEnv{
		Transport: t.transport,
		Findings:  t.store,
		Scope:     t.scope,
		Options:   t.cfg.ModuleOptions,
		DataPath:  t.cfg.DataPath,
		Detailed:  t.cfg.DetailedReport,
		Metrics:   t.metrics,
	}
}

// Attack runs the selected modules. It returns false when the operator
// chose to quit without a report.
func (t *Trawler) Attack(ctx context.Context) (bool, error) {
	active, err := BuildModules(t.catalog, t.selection, t.moduleEnv())
	if err != nil {
		return false, err
	}
	t.attacker = NewAttacker(t.store, AttackerOptions{
		Budget:     t.cfg.AttackBudget(),
		Policy:     t.policy,
		Interrupts: t.interrupts,
		Crashes:    NewCrashReporter(t.cfg.CrashEndpoint),
		Metrics:    t.metrics,
	})

	t.setPhase(phaseAttack, nil)
	defer t.setPhase(phaseIdle, nil)
	log.Info().Strs("modules", t.selection.Names()).Msg("attacking")
	return t.attacker.Attack(ctx, active)
}

// Report reads the findings back from the store and prints them
func (t *Trawler) Report(ctx context.Context, writer io.Writer) error {
	if t.attacker == nil {
		t.attacker = NewAttacker(t.store, AttackerOptions{})
	}
	if err := t.attacker.Report(ctx, t.reporter); err != nil {
		return err
	}
	return t.reporter.Print(writer)
}

// Run crawls, attacks and reports
func (t *Trawler) Run(ctx context.Context, writer io.Writer) error {
	if err := t.Crawl(ctx); err != nil {
		return err
	}
	report, err := t.Attack(ctx)
	if err != nil {
		return err
	}
	if !report {
		return nil
	}
	return t.Report(context.WithoutCancel(ctx), writer)
}

// Stop closes the stores
func (t *Trawler) Stop() error {
	var graphErr error
	if t.graph != nil {
		graphErr = t.graph.Close()
	}
	if err := t.store.Close(); err != nil {
		return err
	}
	return graphErr
}

// UpdateModules refreshes the data of the selected modules that keep any
func UpdateModules(ctx context.Context, catalog *modules.Catalog, selection Selection, env *ModuleEnv) error {
	active, err := BuildModules(catalog, selection, env)
	if err != nil {
		return err
	}
	for _, m := range active {
		updater, ok := m.Module.(trawl.Updater)
		if !ok {
			continue
		}
		log.Info().Str("module", m.Module.Name()).Msg("updating")
		if err := updater.Update(ctx); err != nil {
			return errors.Wrapf(err, "failed to update %s", m.Module.Name())
		}
	}
	return nil
}
