package clicmds

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
	"gitlab.com/trawler/metrics"
	"gitlab.com/trawler/scanner"
	"gitlab.com/trawler/store"
	"gitlab.com/trawler/trawl"
)

// GraphDB backing the link graph on disk
const GraphDB = "bolt"

// ScanFlags for the scan command
func ScanFlags() []cli.Flag {
	return append(TargetFlags(),
		&cli.StringFlag{
			Name:    "modules",
			Aliases: []string{"m"},
			Usage:   "module selection, e.g. common,-csrf,+methods:post",
		},
		&cli.StringSliceFlag{
			Name:  "module-option",
			Usage: "module.key=value passed to a module",
		},
		&cli.StringSliceFlag{
			Name:    "exclude",
			Aliases: []string{"x"},
			Usage:   "url or * pattern to never fetch",
		},
		&cli.IntFlag{
			Name:  "depth",
			Usage: "max depth of links to follow",
			Value: trawl.DefaultMaxDepth,
		},
		&cli.IntFlag{
			Name:  "max-links-per-page",
			Usage: "max links kept per page",
			Value: trawl.DefaultMaxLinksPerPage,
		},
		&cli.IntFlag{
			Name:  "max-files-per-dir",
			Usage: "max pages kept per directory, 0 is unlimited",
		},
		&cli.IntFlag{
			Name:  "max-requests-per-depth",
			Usage: "max fetches per depth level, 0 is unlimited",
		},
		&cli.Float64Flag{
			Name:  "qs-limit",
			Usage: "share of query string variants kept per page, between 0 and 1",
			Value: trawl.DefaultQSLimit,
		},
		&cli.IntFlag{
			Name:  "max-parameters",
			Usage: "drop resources with more parameters before attacking, 0 is unlimited",
		},
		&cli.IntFlag{
			Name:  "max-scan-time",
			Usage: "crawl budget in seconds, 0 is unlimited",
		},
		&cli.IntFlag{
			Name:  "max-attack-time",
			Usage: "attack budget per module in seconds, 0 is unlimited",
		},
		&cli.IntFlag{
			Name:  "parallelism",
			Usage: "max concurrent crawl fetches",
			Value: trawl.DefaultParallelism,
		},
		&cli.IntFlag{
			Name:  "timeout",
			Usage: "request timeout in seconds",
			Value: trawl.DefaultTimeout,
		},
		&cli.IntFlag{
			Name:  "rate-limit",
			Usage: "max requests per second, 0 is unlimited",
		},
		&cli.StringFlag{
			Name:  "proxy",
			Usage: "http(s) or socks5 proxy url",
		},
		&cli.StringFlag{
			Name:  "user-agent",
			Usage: "user agent to send",
		},
		&cli.StringSliceFlag{
			Name:    "header",
			Aliases: []string{"H"},
			Usage:   "extra header, Name: value",
		},
		&cli.StringFlag{
			Name:    "cookie",
			Aliases: []string{"C"},
			Usage:   "session cookie header value",
		},
		&cli.BoolFlag{
			Name:  "detailed-report",
			Usage: "keep response bodies in the store and the findings",
		},
		&cli.StringFlag{
			Name:  "crash-endpoint",
			Usage: "url module crash reports are posted to",
		},
		&cli.StringFlag{
			Name:  "metrics-addr",
			Usage: "serve prometheus metrics on this address",
		},
		&cli.BoolFlag{
			Name:  "flush-attacks",
			Usage: "forget previous attacks and findings",
		},
		&cli.BoolFlag{
			Name:  "flush-session",
			Usage: "forget everything about the previous scan",
		},
		&cli.BoolFlag{
			Name:  "skip-crawl",
			Usage: "attack what a previous scan found",
		},
		&cli.BoolFlag{
			Name:  "resume-crawl",
			Usage: "continue a finished crawl",
		},
	)
}

// openSession resolves the on-disk layout of the scan of cfg
func openSession(cfg *trawl.Config) (*store.Layout, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	root, err := trawl.NewGetRequest(cfg.URL)
	if err != nil {
		return nil, err
	}
	return store.NewLayout(cfg.DataPath, root, cfg.ScopePolicy()), nil
}

// Scan crawls, attacks and prints the report on stdout
func Scan(ctx *cli.Context) error {
	setupLogging(ctx)
	cfg, err := LoadConfig(ctx)
	if err != nil {
		return err
	}
	layout, err := openSession(cfg)
	if err != nil {
		return err
	}

	var rec *metrics.Recorder
	if cfg.MetricsAddr != "" {
		rec = metrics.New()
		if err := rec.Serve(cfg.MetricsAddr); err != nil {
			return err
		}
		defer rec.Close()
	}

	engine := scanner.New(cfg, store.NewPersister(layout.DBPath()), store.NewLinkGraph(GraphDB, layout.GraphPath())).
		SetStatePath(layout.CheckpointPath()).
		SetInterruptionPolicy(StdinMenu()).
		SetMetrics(rec)
	if cfg.Cookie != "" || len(cfg.Headers) > 0 {
		engine.SetAuthenticator(scanner.NewSessionAuth(cfg.Cookie, cfg.Headers))
	}

	log.Info().Str("url", cfg.URL).Str("session", layout.Dir).Msg("starting trawler")
	scanContext := ctx.Context
	if scanContext == nil {
		scanContext = context.Background()
	}
	if err := engine.Init(scanContext); err != nil {
		engine.Stop()
		if errors.Is(err, trawl.ErrStorageLocked) {
			log.Error().Str("path", layout.DBPath()).Msg("another scan holds this session, stop it or remove the LOCK file in this directory")
		}
		return err
	}

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	defer func() {
		signal.Stop(c)
		close(c)
	}()
	go func() {
		for range c {
			log.Info().Msg("Ctrl-C pressed")
			engine.Interrupt()
		}
	}()

	runErr := engine.Run(scanContext, os.Stdout)
	if runErr != nil {
		log.Error().Err(runErr).Msg("scan failed")
	}
	log.Info().Msg("closing store & syncing, please wait")
	if err := engine.Stop(); err != nil && runErr == nil {
		return err
	}
	return runErr
}
