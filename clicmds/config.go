package clicmds

import (
	"os"
	"strings"

	"github.com/pelletier/go-toml"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
	"gitlab.com/trawler/trawl"
)

// Exit codes
const (
	ExitOK = iota
	ExitConfig
	ExitLocked
	ExitFatal
)

// ExitCode for an error returned by a command
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case trawl.IsConfigError(err):
		return ExitConfig
	case errors.Is(err, trawl.ErrStorageLocked):
		return ExitLocked
	}
	return ExitFatal
}

// TargetFlags select a scan session on disk
func TargetFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "url",
			Aliases: []string{"u"},
			Usage:   "url as a start point",
		},
		&cli.StringFlag{
			Name:  "config",
			Usage: "toml config to use, flags override it",
		},
		&cli.StringFlag{
			Name:  "datadir",
			Usage: "data directory",
			Value: trawl.DefaultDataPath,
		},
		&cli.StringFlag{
			Name:  "scope",
			Usage: "url, folder, domain, subdomain or punk",
			Value: string(trawl.ScopeFolder),
		},
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"v"},
			Usage:   "debug logging",
		},
		&cli.BoolFlag{
			Name:    "quiet",
			Aliases: []string{"q"},
			Usage:   "only log warnings and errors",
		},
	}
}

// setupLogging the way the scan commands expect it, on stderr so reports
// can be piped
func setupLogging(ctx *cli.Context) {
	level := zerolog.InfoLevel
	switch {
	case ctx.Bool("verbose"):
		level = zerolog.DebugLevel
	case ctx.Bool("quiet"):
		level = zerolog.WarnLevel
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
}

// LoadConfig reads --config when given and lets explicitly set flags
// override its values. Unset flags only fill the gaps.
func LoadConfig(ctx *cli.Context) (*trawl.Config, error) {
	cfg := &trawl.Config{}
	if path := ctx.String("config"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrap(err, "reading config")
		}
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, trawl.NewConfigError("config", path, err.Error())
		}
	}

	setString(ctx, "url", &cfg.URL)
	setString(ctx, "datadir", &cfg.DataPath)
	setString(ctx, "scope", &cfg.Scope)
	setString(ctx, "modules", &cfg.Modules)
	setString(ctx, "proxy", &cfg.Proxy)
	setString(ctx, "user-agent", &cfg.UserAgent)
	setString(ctx, "cookie", &cfg.Cookie)
	setString(ctx, "crash-endpoint", &cfg.CrashEndpoint)
	setString(ctx, "metrics-addr", &cfg.MetricsAddr)

	setInt(ctx, "depth", &cfg.MaxDepth)
	setInt(ctx, "max-links-per-page", &cfg.MaxLinksPerPage)
	setInt(ctx, "max-files-per-dir", &cfg.MaxFilesPerDir)
	setInt(ctx, "max-requests-per-depth", &cfg.MaxRequestsPerDepth)
	setInt(ctx, "max-parameters", &cfg.MaxParameters)
	setInt(ctx, "max-scan-time", &cfg.MaxScanTime)
	setInt(ctx, "max-attack-time", &cfg.MaxAttackTime)
	setInt(ctx, "parallelism", &cfg.Parallelism)
	setInt(ctx, "timeout", &cfg.Timeout)
	setInt(ctx, "rate-limit", &cfg.RateLimit)

	if ctx.IsSet("qs-limit") {
		cfg.QSLimit = ctx.Float64("qs-limit")
	}

	setBool(ctx, "detailed-report", &cfg.DetailedReport)
	setBool(ctx, "flush-attacks", &cfg.FlushAttacks)
	setBool(ctx, "flush-session", &cfg.FlushSession)
	setBool(ctx, "skip-crawl", &cfg.SkipCrawl)
	setBool(ctx, "resume-crawl", &cfg.ResumeCrawl)

	cfg.Excluded = append(cfg.Excluded, ctx.StringSlice("exclude")...)

	for _, h := range ctx.StringSlice("header") {
		name, value, ok := strings.Cut(h, ":")
		if !ok {
			return nil, trawl.NewConfigError("header", h, "expected Name: value")
		}
		if cfg.Headers == nil {
			cfg.Headers = make(map[string]string)
		}
		cfg.Headers[strings.TrimSpace(name)] = strings.TrimSpace(value)
	}

	for _, opt := range ctx.StringSlice("module-option") {
		key, value, ok := strings.Cut(opt, "=")
		module, name, dotted := strings.Cut(key, ".")
		if !ok || !dotted || module == "" || name == "" {
			return nil, trawl.NewConfigError("module-option", opt, "expected module.key=value")
		}
		if cfg.ModuleOptions == nil {
			cfg.ModuleOptions = make(map[string]map[string]string)
		}
		if cfg.ModuleOptions[module] == nil {
			cfg.ModuleOptions[module] = make(map[string]string)
		}
		cfg.ModuleOptions[module][name] = value
	}

	cfg.SetDefaults()
	return cfg, nil
}

func setString(ctx *cli.Context, name string, dst *string) {
	if ctx.IsSet(name) || (*dst == "" && ctx.String(name) != "") {
		*dst = ctx.String(name)
	}
}

func setInt(ctx *cli.Context, name string, dst *int) {
	if ctx.IsSet(name) || (*dst == 0 && ctx.Int(name) != 0) {
		*dst = ctx.Int(name)
	}
}

func setBool(ctx *cli.Context, name string, dst *bool) {
	if ctx.IsSet(name) {
		*dst = ctx.Bool(name)
	}
}
