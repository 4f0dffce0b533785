package report_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/trawler/scanner/report"
	"gitlab.com/trawler/trawl"
)

func payload(t *testing.T, category, url, param string, level int, typ trawl.PayloadType) *trawl.Payload {
	t.Helper()
	req, err := trawl.NewGetRequest(url)
	require.NoError(t, err)
	return &trawl.Payload{
		Type:      typ,
		Category:  category,
		Level:     level,
		Request:   req,
		PathID:    req.PathID(),
		Parameter: param,
		Info:      category + " in " + param,
		Module:    "test",
	}
}

func TestReporter(t *testing.T) {
	r := report.New("http://example.com/")
	r.Add(payload(t, "Open Redirect", "http://example.com/go?next=x", "next", trawl.LevelMedium, trawl.PayloadVulnerability))
	r.Add(payload(t, "Open Redirect", "http://example.com/go?next=x", "next", trawl.LevelMedium, trawl.PayloadVulnerability))
	r.Add(payload(t, "HTTP Secure Headers", "http://example.com/", "X-Frame-Options", trawl.LevelLow, trawl.PayloadVulnerability))
	r.Add(payload(t, "HTTP Secure Headers", "http://example.com/", "Content-Security-Policy", trawl.LevelHigh, trawl.PayloadVulnerability))
	r.Add(payload(t, "Fingerprint web technology", "http://example.com/", "Server", trawl.LevelInfo, trawl.PayloadAdditional))
	r.AddSummary(&trawl.ModuleSummary{Name: "redirect", Attacked: 4, NetworkErrors: 2})
	r.AddSummary(&trawl.ModuleSummary{Name: "csrf_replay", Skipped: "missing dependencies: csrf"})

	counts := r.Counts()
	assert.Equal(t, 4, counts[trawl.PayloadVulnerability])
	assert.Equal(t, 1, counts[trawl.PayloadAdditional])
	assert.Equal(t, []string{"Fingerprint web technology", "HTTP Secure Headers", "Open Redirect"}, r.Categories())

	headers := r.Findings("HTTP Secure Headers")
	require.Len(t, headers, 2)
	assert.Equal(t, "Content-Security-Policy", headers[0].Parameter, "most severe first")

	out := &strings.Builder{}
	require.NoError(t, r.Print(out))
	text := out.String()
	assert.Contains(t, text, "Report for http://example.com/")
	assert.Contains(t, text, "4 vulnerabilities, 0 anomalies, 1 additional")
	assert.Contains(t, text, "GET http://example.com/go?next=x [next]")
	assert.Contains(t, text, "skipped: missing dependencies: csrf")
	assert.Equal(t, 1, strings.Count(text, "[next]"))
}
