package scanner

import (
	"context"
	"net/http"
	"regexp"

	"github.com/rs/zerolog/log"
	"gitlab.com/trawler/scanner/explorer"
	"gitlab.com/trawler/trawl"
)

var logoutPattern = regexp.MustCompile(`(?i)(log|sign)[-_ ]?(out|off)|disconnect|deconnexion`)

// SessionAuth carries a pre-established session (cookie or auth headers)
// and protects it by excluding the logout urls found on the start page
type SessionAuth struct {
	headers http.Header
}

// NewSessionAuth from a raw cookie header value and extra headers
func NewSessionAuth(cookie string, headers map[string]string) *SessionAuth {
	h := make(http.Header)
	for k, v := range headers {
		h.Set(k, v)
	}
	if cookie != "" {
		h.Set("Cookie", cookie)
	}
	return &SessionAuth{headers: h}
}

// Login installs the session on the transport and inspects the start page
func (a *SessionAuth) Login(ctx context.Context, transport trawl.Transport, start *trawl.Request) (*trawl.Session, error) {
	if holder, ok := transport.(trawl.SessionHolder); ok && len(a.headers) > 0 {
		holder.SetSession(a.headers)
	}

	resp, err := transport.Send(ctx, start)
	if err != nil {
		return nil, err
	}
	if resp.Status == http.StatusUnauthorized || resp.Status == http.StatusForbidden {
		log.Warn().Int("status", resp.Status).Str("url", start.URL).Msg("start page refused the session")
	}

	session := &trawl.Session{Headers: a.headers.Clone()}
	seen := make(map[string]bool)
	for _, link := range explorer.Extract(start, resp, nil) {
		if link.IsPost() || seen[link.URL] || !logoutPattern.MatchString(link.Path()) {
			continue
		}
		seen[link.URL] = true
		session.Excluded = append(session.Excluded, link.URL)
		log.Info().Str("url", link.URL).Msg("excluding logout url")
	}
	return session, nil
}
