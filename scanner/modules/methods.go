package modules

import (
	"context"
	"net/http"
	"sort"
	"strings"

	"gitlab.com/trawler/trawl"
)

// MethodsName of the http methods module
const MethodsName = "methods"

var interestingMethods = map[string]bool{
	http.MethodPut:     true,
	http.MethodDelete:  true,
	http.MethodPatch:   true,
	http.MethodTrace:   true,
	http.MethodConnect: true,
	"PROPFIND":         true,
	"PROPPATCH":        true,
	"MKCOL":            true,
	"COPY":             true,
	"MOVE":             true,
	"LOCK":             true,
	"UNLOCK":           true,
	"SEARCH":           true,
}

// Methods asks every path which methods it allows and reports the
// uncommon ones
type Methods struct {
	*base
}

// NewMethods module
func NewMethods(mctx *trawl.ModuleContext) trawl.AttackModule {
	return &Methods{
		base: newBase(MethodsName, &trawl.ModuleOpts{
			Priority: 20,
			DoGet:    true,
			DoPost:   true,
		}, mctx),
	}
}

// MustAttack each path once
func (m *Methods) MustAttack(req *trawl.Request, resp *trawl.Response) bool {
	return !m.seen("path", req.NormalizedURL())
}

// Attack sends an OPTIONS request
func (m *Methods) Attack(ctx context.Context, req *trawl.Request, resp *trawl.Response) error {
	target := req.NormalizedURL()
	if !m.once("path", target) {
		return nil
	}

	options, err := trawl.NewRequest(http.MethodOptions, target, nil, nil)
	if err != nil {
		return err
	}
	options.Referer = req.Referer

	answer, err := m.send(ctx, options)
	if err != nil {
		return err
	}

	allowed := make([]string, 0)
	for _, header := range answer.HeaderValues("Allow") {
		for _, method := range strings.Split(header, ",") {
			method = strings.ToUpper(strings.TrimSpace(method))
			if interestingMethods[method] {
				allowed = append(allowed, method)
			}
		}
	}
	if len(allowed) == 0 {
		return nil
	}
	sort.Strings(allowed)

	return m.report(req, &trawl.Payload{
		Type:     trawl.PayloadAdditional,
		Category: "HTTP Methods",
		Level:    trawl.LevelInfo,
		Request:  options,
		Info:     "Interesting methods allowed on " + target + ": " + strings.Join(allowed, ", "),
		WSTG:     []string{"WSTG-CONF-06"},
		Response: answer,
	})
}
