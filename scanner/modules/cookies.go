package modules

import (
	"context"
	"net/http"

	"gitlab.com/trawler/trawl"
)

// CookieFlagsName of the cookie flags module
const CookieFlagsName = "cookieflags"

// CookieFlags reports cookies set without the Secure or HttpOnly flags,
// once per host and cookie name
type CookieFlags struct {
	*base
}

// NewCookieFlags module
func NewCookieFlags(mctx *trawl.ModuleContext) trawl.AttackModule {
	return &CookieFlags{
		base: newBase(CookieFlagsName, &trawl.ModuleOpts{
			Priority: 10,
			DoGet:    true,
			DoPost:   true,
		}, mctx),
	}
}

func setCookies(resp *trawl.Response) []*http.Cookie {
	if resp == nil {
		return nil
	}
	return (&http.Response{Header: http.Header(resp.Headers)}).Cookies()
}

// MustAttack responses setting cookies
func (c *CookieFlags) MustAttack(req *trawl.Request, resp *trawl.Response) bool {
	return len(resp.HeaderValues("Set-Cookie")) > 0
}

// Attack inspects the cookies of the stored response
func (c *CookieFlags) Attack(ctx context.Context, req *trawl.Request, resp *trawl.Response) error {
	host := req.Hostname()
	for _, cookie := range setCookies(resp) {
		if !cookie.HttpOnly && c.once(host, cookie.Name, "httponly") {
			if err := c.report(req, &trawl.Payload{
				Type:      trawl.PayloadVulnerability,
				Category:  "HttpOnly Flag cookie",
				Level:     trawl.LevelLow,
				Parameter: cookie.Name,
				Info:      "HttpOnly flag is not set in the cookie : " + cookie.Name,
				WSTG:      []string{"WSTG-SESS-02"},
				Response:  resp,
			}); err != nil {
				return err
			}
		}
		if !cookie.Secure && req.Scheme() == "https" && c.once(host, cookie.Name, "secure") {
			if err := c.report(req, &trawl.Payload{
				Type:      trawl.PayloadVulnerability,
				Category:  "Secure Flag cookie",
				Level:     trawl.LevelLow,
				Parameter: cookie.Name,
				Info:      "Secure flag is not set in the cookie : " + cookie.Name,
				WSTG:      []string{"WSTG-SESS-02"},
				Response:  resp,
			}); err != nil {
				return err
			}
		}
	}
	return nil
}
