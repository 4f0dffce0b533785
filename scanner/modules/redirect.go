package modules

import (
	"context"
	"net/url"
	"strings"

	"gitlab.com/trawler/trawl"
)

// RedirectName of the open redirect module
const RedirectName = "redirect"

// DefaultRedirectTarget injected into parameters
const DefaultRedirectTarget = "https://openbugbounty.org/"

// Redirect injects an external url into every GET parameter and reports
// those that end up in the Location header
type Redirect struct {
	*base
	target *url.URL
}

// NewRedirect module, the "target" option overrides the injected url
func NewRedirect(mctx *trawl.ModuleContext) trawl.AttackModule {
	r := &Redirect{
		base: newBase(RedirectName, &trawl.ModuleOpts{
			Priority: 50,
			DoGet:    true,
		}, mctx),
	}
	target, err := url.Parse(r.mctx.Option("target", DefaultRedirectTarget))
	if err != nil || target.Host == "" {
		target, _ = url.Parse(DefaultRedirectTarget)
	}
	r.target = target
	return r
}

// MustAttack requests with query parameters
func (r *Redirect) MustAttack(req *trawl.Request, resp *trawl.Response) bool {
	return len(req.GetParams()) > 0
}

// Attack each parameter in turn
func (r *Redirect) Attack(ctx context.Context, req *trawl.Request, resp *trawl.Response) error {
	params := req.GetParams()
	for i := range params {
		if !r.once(req.NormalizedURL(), params[i].Name) {
			continue
		}
		mutated := append([]trawl.Param(nil), params...)
		mutated[i].Value = r.target.String()
		evil := req.WithGetParams(mutated)

		answer, err := r.send(ctx, evil)
		if err != nil {
			return err
		}
		if !r.redirectsToTarget(evil, answer) {
			continue
		}
		if err := r.report(req, &trawl.Payload{
			Type:      trawl.PayloadVulnerability,
			Category:  "Open Redirect",
			Level:     trawl.LevelMedium,
			Request:   evil,
			Parameter: params[i].Name,
			Info:      "Open Redirect via injection in the parameter " + params[i].Name,
			WSTG:      []string{"WSTG-CLNT-04"},
			Response:  answer,
		}); err != nil {
			return err
		}
	}
	return nil
}

func (r *Redirect) redirectsToTarget(evil *trawl.Request, answer *trawl.Response) bool {
	if !answer.IsRedirect() {
		return false
	}
	location, err := evil.Parsed().Parse(strings.TrimSpace(answer.Header("Location")))
	if err != nil {
		return false
	}
	return strings.EqualFold(location.Hostname(), r.target.Hostname())
}
