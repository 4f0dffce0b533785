package trawl

import (
	"net/url"
	"strings"
	"time"
)

// Defaults applied by Config.SetDefaults
const (
	DefaultMaxDepth        = 40
	DefaultMaxLinksPerPage = 100
	DefaultParallelism     = 8
	DefaultTimeout         = 10
	DefaultQSLimit         = 1.0
	DefaultModules         = "common"
	DefaultDataPath        = "trawlertmp"
)

// Config for trawler, loaded from toml and completed by cli flags.
// Times are in seconds.
type Config struct {
	URL      string   `toml:"url"`
	Scope    string   `toml:"scope"`
	Modules  string   `toml:"modules"`
	DataPath string   `toml:"data_path"`
	Excluded []string `toml:"excluded"`

	MaxDepth            int     `toml:"max_depth"`
	MaxLinksPerPage     int     `toml:"max_links_per_page"`
	MaxFilesPerDir      int     `toml:"max_files_per_dir"`
	MaxRequestsPerDepth int     `toml:"max_requests_per_depth"`
	QSLimit             float64 `toml:"qs_limit"`
	MaxParameters       int     `toml:"max_parameters"`
	MaxScanTime         int     `toml:"max_scan_time"`
	MaxAttackTime       int     `toml:"max_attack_time"`
	Parallelism         int     `toml:"parallelism"`
	Timeout             int     `toml:"timeout"`
	RateLimit           int     `toml:"rate_limit"`

	Proxy     string            `toml:"proxy"`
	UserAgent string            `toml:"user_agent"`
	Headers   map[string]string `toml:"headers"`
	Cookie    string            `toml:"cookie"`

	DetailedReport bool   `toml:"detailed_report"`
	CrashEndpoint  string `toml:"crash_endpoint"`
	MetricsAddr    string `toml:"metrics_addr"`

	FlushAttacks bool `toml:"flush_attacks"`
	FlushSession bool `toml:"flush_session"`
	SkipCrawl    bool `toml:"skip_crawl"`
	ResumeCrawl  bool `toml:"resume_crawl"`

	ModuleOptions map[string]map[string]string `toml:"module_options"`
	FormData      *FormData                    `toml:"form_data"`
}

// SetDefaults fills zero values
func (c *Config) SetDefaults() {
	if c.Scope == "" {
		c.Scope = string(ScopeFolder)
	}
	if c.Modules == "" {
		c.Modules = DefaultModules
	}
	if c.DataPath == "" {
		c.DataPath = DefaultDataPath
	}
	if c.MaxDepth == 0 {
		c.MaxDepth = DefaultMaxDepth
	}
	if c.MaxLinksPerPage == 0 {
		c.MaxLinksPerPage = DefaultMaxLinksPerPage
	}
	if c.Parallelism <= 0 {
		c.Parallelism = DefaultParallelism
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.QSLimit == 0 {
		c.QSLimit = DefaultQSLimit
	}
	if c.FormData == nil {
		c.FormData = &DefaultFormValues
	}
}

// Validate the configuration before any crawling happens
func (c *Config) Validate() error {
	if _, err := NewGetRequest(c.URL); err != nil {
		return err
	}
	if _, err := ParseScopePolicy(c.Scope); err != nil {
		return err
	}
	if c.QSLimit < 0 || c.QSLimit > 1 {
		return NewConfigError("qs_limit", "", "must be between 0.0 and 1.0")
	}
	if c.MaxDepth < 0 || c.MaxLinksPerPage < 0 || c.MaxFilesPerDir < 0 || c.MaxRequestsPerDepth < 0 {
		return NewConfigError("limits", "", "crawl ceilings can not be negative")
	}
	if c.Proxy != "" {
		u, err := url.Parse(c.Proxy)
		if err != nil || u.Host == "" {
			return NewConfigError("proxy", c.Proxy, "not an absolute url")
		}
		switch strings.ToLower(u.Scheme) {
		case "http", "https", "socks5":
		default:
			return NewConfigError("proxy", c.Proxy, "unsupported scheme")
		}
	}
	if c.CrashEndpoint != "" {
		if _, err := NewGetRequest(c.CrashEndpoint); err != nil {
			return NewConfigError("crash_endpoint", c.CrashEndpoint, "not an absolute http(s) url")
		}
	}
	if c.FlushSession && c.SkipCrawl {
		return NewConfigError("flags", "", "flush-session and skip-crawl are mutually exclusive")
	}
	return nil
}

// ScopePolicy returns the parsed scope, Validate must have succeeded
func (c *Config) ScopePolicy() ScopePolicy {
	p, _ := ParseScopePolicy(c.Scope)
	return p
}

// RequestTimeout per http request
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Timeout) * time.Second
}

// ScanBudget for the crawl phase, zero means unlimited
func (c *Config) ScanBudget() time.Duration {
	return time.Duration(c.MaxScanTime) * time.Second
}

// AttackBudget per module, zero means unlimited
func (c *Config) AttackBudget() time.Duration {
	return time.Duration(c.MaxAttackTime) * time.Second
}
