package modules

import (
	"context"
	"sort"
	"strings"
	"sync"

	"gitlab.com/trawler/trawl"
)

// HeadersName of the security headers module
const HeadersName = "http_headers"

type securityHeader struct {
	name      string
	info      string
	wstg      []string
	httpsOnly bool
	valid     func(value string) bool // false for values that do not protect anything
}

var securityHeaders = []securityHeader{
	{
		name: "X-Frame-Options",
		info: "X-Frame-Options is not set, pages can be framed (clickjacking)",
		wstg: []string{"WSTG-CLNT-09"},
		valid: func(v string) bool {
			v = strings.ToLower(v)
			return strings.Contains(v, "deny") || strings.Contains(v, "sameorigin")
		},
	},
	{
		name: "X-Content-Type-Options",
		info: "X-Content-Type-Options is not set to nosniff",
		wstg: []string{"WSTG-CONF-07"},
		valid: func(v string) bool {
			return strings.EqualFold(strings.TrimSpace(v), "nosniff")
		},
	},
	{
		name:      "Strict-Transport-Security",
		info:      "Strict-Transport-Security is not set",
		wstg:      []string{"WSTG-CONF-07"},
		httpsOnly: true,
		valid: func(v string) bool {
			return strings.Contains(strings.ToLower(v), "max-age=")
		},
	},
	{
		name: "Content-Security-Policy",
		info: "Content-Security-Policy is not set",
		wstg: []string{"WSTG-CONF-12"},
		valid: func(v string) bool {
			return strings.TrimSpace(v) != ""
		},
	},
}

// Headers checks each host for missing security headers. Findings are
// aggregated and emitted by Finish, one per host and header.
type Headers struct {
	*base

	hostLock sync.Mutex
	sampled  map[string]*trawl.Request
	missing  map[string][]string
}

// NewHeaders module
func NewHeaders(mctx *trawl.ModuleContext) trawl.AttackModule {
	return &Headers{
		base: newBase(HeadersName, &trawl.ModuleOpts{
			Priority: 10,
			DoGet:    true,
		}, mctx),
		sampled: make(map[string]*trawl.Request),
		missing: make(map[string][]string),
	}
}

func hostKey(req *trawl.Request) string {
	return req.Scheme() + "://" + req.NetLoc()
}

// MustAttack the first successful html page of every host
func (h *Headers) MustAttack(req *trawl.Request, resp *trawl.Response) bool {
	if !resp.IsSuccess() || !resp.IsHTML() {
		return false
	}
	h.hostLock.Lock()
	defer h.hostLock.Unlock()
	_, ok := h.sampled[hostKey(req)]
	return !ok
}

// Attack records the missing headers of the sampled page, no requests are sent
func (h *Headers) Attack(ctx context.Context, req *trawl.Request, resp *trawl.Response) error {
	host := hostKey(req)
	missing := make([]string, 0)
	for _, sh := range securityHeaders {
		if sh.httpsOnly && req.Scheme() != "https" {
			continue
		}
		if !sh.valid(resp.Header(sh.name)) {
			missing = append(missing, sh.name)
		}
	}

	h.hostLock.Lock()
	h.sampled[host] = req
	h.missing[host] = missing
	h.hostLock.Unlock()
	return nil
}

// Finish emits one finding per host and missing header
func (h *Headers) Finish(ctx context.Context) error {
	h.hostLock.Lock()
	hosts := make([]string, 0, len(h.sampled))
	for host := range h.sampled {
		hosts = append(hosts, host)
	}
	h.hostLock.Unlock()
	sort.Strings(hosts)

	for _, host := range hosts {
		h.hostLock.Lock()
		req, missing := h.sampled[host], h.missing[host]
		h.hostLock.Unlock()

		for _, name := range missing {
			if !h.once(host, name) {
				continue
			}
			sh := lookupHeader(name)
			if err := h.report(req, &trawl.Payload{
				Type:      trawl.PayloadVulnerability,
				Category:  "HTTP Secure Headers",
				Level:     trawl.LevelLow,
				Parameter: name,
				Info:      sh.info + " on " + host,
				WSTG:      sh.wstg,
			}); err != nil {
				return err
			}
		}
	}
	return nil
}

func lookupHeader(name string) securityHeader {
	for _, sh := range securityHeaders {
		if sh.name == name {
			return sh
		}
	}
	return securityHeader{name: name}
}
