package modules

import (
	"context"
	"strings"

	"gitlab.com/trawler/trawl"
)

// CSRFName of the anti csrf token module
const CSRFName = "csrf"

// DefaultTokenFields are parameter names recognized as anti csrf tokens
var DefaultTokenFields = []string{
	"authenticity_token",
	"csrf",
	"csrf_token",
	"csrfmiddlewaretoken",
	"csrftoken",
	"_csrf",
	"_csrf_token",
	"_token",
	"anticsrf",
	"__requestverificationtoken",
	"token",
	"xsrf",
	"xsrf_token",
	"_wpnonce",
	"nonce",
}

// CSRF reports POST forms submitted without an anti csrf token. The token
// field list is exposed to modules that depend on it.
type CSRF struct {
	*base
	fields []string
}

// NewCSRF module, the "tokens" option adds comma separated field names
func NewCSRF(mctx *trawl.ModuleContext) trawl.AttackModule {
	c := &CSRF{
		base: newBase(CSRFName, &trawl.ModuleOpts{
			Priority: 30,
			DoPost:   true,
		}, mctx),
		fields: append([]string(nil), DefaultTokenFields...),
	}
	for _, f := range strings.Split(c.mctx.Option("tokens", ""), ",") {
		if f = strings.ToLower(strings.TrimSpace(f)); f != "" {
			c.fields = append(c.fields, f)
		}
	}
	return c
}

// TokenFields recognized by this module
func (c *CSRF) TokenFields() []string {
	return append([]string(nil), c.fields...)
}

// TokenParam returns the token parameter of a form
func (c *CSRF) TokenParam(req *trawl.Request) (trawl.Param, bool) {
	for _, p := range req.PostParams {
		name := strings.ToLower(p.Name)
		for _, f := range c.fields {
			if name == f {
				return p, true
			}
		}
	}
	return trawl.Param{}, false
}

// MustAttack forms sending a body
func (c *CSRF) MustAttack(req *trawl.Request, resp *trawl.Response) bool {
	return req.IsPost() && (len(req.PostParams) > 0 || len(req.FileParams) > 0)
}

// Attack checks the form for a token, no requests are sent
func (c *CSRF) Attack(ctx context.Context, req *trawl.Request, resp *trawl.Response) error {
	if _, ok := c.TokenParam(req); ok {
		return nil
	}
	return c.report(req, &trawl.Payload{
		Type:     trawl.PayloadVulnerability,
		Category: "Cross Site Request Forgery",
		Level:    trawl.LevelMedium,
		Info:     "Lack of anti CSRF token",
		WSTG:     []string{"WSTG-SESS-05"},
	})
}
