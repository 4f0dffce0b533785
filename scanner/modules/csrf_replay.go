package modules

import (
	"context"

	"github.com/pkg/errors"
	"gitlab.com/trawler/trawl"
)

// CSRFReplayName of the token verification module
const CSRFReplayName = "csrf_replay"

// CSRFReplay submits forms that carry an anti csrf token again without the
// token. A response matching the original means the token is not verified.
type CSRFReplay struct {
	*base
	csrf *CSRF
}

// NewCSRFReplay module
func NewCSRFReplay(mctx *trawl.ModuleContext) trawl.AttackModule {
	return &CSRFReplay{
		base: newBase(CSRFReplayName, &trawl.ModuleOpts{
			Priority: 40,
			DoPost:   true,
			Require:  []string{CSRFName},
		}, mctx),
	}
}

// LoadRequirements takes the token field list from the csrf module
func (c *CSRFReplay) LoadRequirements(deps []trawl.AttackModule) error {
	for _, dep := range deps {
		if csrf, ok := dep.(*CSRF); ok {
			c.csrf = csrf
			return nil
		}
	}
	return errors.Errorf("%s requires the %s module", CSRFReplayName, CSRFName)
}

// MustAttack forms with a token
func (c *CSRFReplay) MustAttack(req *trawl.Request, resp *trawl.Response) bool {
	if c.csrf == nil || !req.IsPost() {
		return false
	}
	_, ok := c.csrf.TokenParam(req)
	return ok
}

// Attack sends the form with its token emptied
func (c *CSRFReplay) Attack(ctx context.Context, req *trawl.Request, resp *trawl.Response) error {
	token, _ := c.csrf.TokenParam(req)

	baseline, err := c.send(ctx, req)
	if err != nil {
		return err
	}

	params := make([]trawl.Param, 0, len(req.PostParams))
	for _, p := range req.PostParams {
		if p.Name == token.Name {
			p.Value = ""
		}
		params = append(params, p)
	}
	evil := req.WithPostParams(params)

	replayed, err := c.send(ctx, evil)
	if err != nil {
		return err
	}
	if !replayed.IsSuccess() || replayed.Status != baseline.Status || !similar(baseline.Body, replayed.Body) {
		return nil
	}
	return c.report(req, &trawl.Payload{
		Type:      trawl.PayloadVulnerability,
		Category:  "Cross Site Request Forgery",
		Level:     trawl.LevelMedium,
		Request:   evil,
		Parameter: token.Name,
		Info:      "CSRF token '" + token.Name + "' is not properly checked in backend",
		WSTG:      []string{"WSTG-SESS-05"},
		Response:  replayed,
	})
}

// similar bodies differ in length by less than a tenth
func similar(a, b []byte) bool {
	la, lb := len(a), len(b)
	if la == lb {
		return true
	}
	diff := la - lb
	if diff < 0 {
		diff = -diff
	}
	longest := la
	if lb > longest {
		longest = lb
	}
	return diff*10 < longest
}
