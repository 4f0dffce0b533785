package modules_test

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/trawler/mock"
	"gitlab.com/trawler/scanner/modules"
	"gitlab.com/trawler/trawl"
)

func resource(t *testing.T, method, url string, post []trawl.Param, headers map[string][]string) (*trawl.Request, *trawl.Response) {
	t.Helper()
	req, err := trawl.NewRequest(method, url, post, nil)
	require.NoError(t, err)
	resp := mock.MakeMockResponse(url, http.StatusOK, "<html></html>")
	for k, v := range headers {
		resp.Headers[k] = v
	}
	return req, resp
}

func run(t *testing.T, m trawl.AttackModule, req *trawl.Request, resp *trawl.Response) {
	t.Helper()
	if !m.MustAttack(req, resp) {
		return
	}
	require.NoError(t, m.Attack(context.Background(), req, resp))
}

func TestRegistry(t *testing.T) {
	reg := modules.Registry()
	assert.Equal(t, []string{"cookieflags", "csrf", "csrf_replay", "fingerprint", "http_headers", "methods", "redirect"}, reg.Names())

	common, ok := reg.Preset(modules.PresetCommon)
	require.True(t, ok)
	assert.ElementsMatch(t, []string{"http_headers", "cookieflags", "csrf", "redirect"}, common)

	all, ok := reg.Preset(modules.PresetAll)
	require.True(t, ok)
	assert.Equal(t, reg.Names(), all)

	_, ok = reg.Preset("nope")
	assert.False(t, ok)

	for _, name := range reg.Names() {
		factory, ok := reg.Factory(name)
		require.True(t, ok)
		m := factory(mock.ModuleContext(mock.MakeMockTransport(), mock.MakeMockFindingSink()))
		assert.Equal(t, name, m.Name())
		assert.NotNil(t, m.Options())
	}

	c := modules.NewCatalog()
	c.Add("x", modules.NewCSRF)
	assert.True(t, c.Has("x"))
	c.Remove("x")
	assert.False(t, c.Has("x"))
}

func TestHeadersOncePerHost(t *testing.T) {
	sink := mock.MakeMockFindingSink()
	m := modules.NewHeaders(mock.ModuleContext(mock.MakeMockTransport(), sink))

	req, resp := resource(t, "GET", "http://example.com/", nil, map[string][]string{"X-Frame-Options": {"DENY"}})
	run(t, m, req, resp)
	other, otherResp := resource(t, "GET", "http://example.com/other", nil, nil)
	assert.False(t, m.MustAttack(other, otherResp), "host already sampled")

	second, secondResp := resource(t, "GET", "http://second.example.com/", nil, nil)
	run(t, m, second, secondResp)
	assert.Empty(t, sink.Found(), "findings are only emitted by Finish")

	require.NoError(t, m.(trawl.Finisher).Finish(context.Background()))
	found := sink.Found()
	// example.com misses 2 (no hsts over http), second misses 3
	require.Len(t, found, 5)
	for _, p := range found {
		assert.Equal(t, modules.HeadersName, p.Module)
		assert.NotEqual(t, "Strict-Transport-Security", p.Parameter)
		assert.False(t, p.Found.IsZero())
	}
}

func TestCookieFlags(t *testing.T) {
	sink := mock.MakeMockFindingSink()
	m := modules.NewCookieFlags(mock.ModuleContext(mock.MakeMockTransport(), sink))

	req, resp := resource(t, "GET", "https://example.com/", nil, map[string][]string{
		"Set-Cookie": {"session=abc; Path=/", "safe=1; Secure; HttpOnly"},
	})
	run(t, m, req, resp)
	run(t, m, req, resp)

	found := sink.Found()
	require.Len(t, found, 2)
	categories := []string{found[0].Category, found[1].Category}
	assert.ElementsMatch(t, []string{"HttpOnly Flag cookie", "Secure Flag cookie"}, categories)
	for _, p := range found {
		assert.Equal(t, "session", p.Parameter)
		assert.Empty(t, p.Response.Body, "bodies are stripped without detailed reports")
	}

	plain, plainResp := resource(t, "GET", "http://example.com/", nil, nil)
	assert.False(t, m.MustAttack(plain, plainResp))
}

func TestCSRF(t *testing.T) {
	sink := mock.MakeMockFindingSink()
	mctx := mock.ModuleContext(mock.MakeMockTransport(), sink)
	mctx.Options["tokens"] = "my_guard"
	m := modules.NewCSRF(mctx)

	get, getResp := resource(t, "GET", "http://example.com/?a=1", nil, nil)
	assert.False(t, m.MustAttack(get, getResp))

	protected, resp := resource(t, "POST", "http://example.com/login", []trawl.Param{{Name: "user", Value: "u"}, {Name: "CSRF_TOKEN", Value: "x"}}, nil)
	run(t, m, protected, resp)
	custom, resp := resource(t, "POST", "http://example.com/custom", []trawl.Param{{Name: "my_guard", Value: "x"}}, nil)
	run(t, m, custom, resp)
	assert.Empty(t, sink.Found())

	naked, resp := resource(t, "POST", "http://example.com/comment", []trawl.Param{{Name: "text", Value: "hi"}}, nil)
	run(t, m, naked, resp)
	found := sink.Found()
	require.Len(t, found, 1)
	assert.Equal(t, naked.PathID(), found[0].PathID)
	assert.Equal(t, trawl.LevelMedium, found[0].Level)

	assert.Contains(t, m.(*modules.CSRF).TokenFields(), "my_guard")
}

func TestCSRFReplay(t *testing.T) {
	transport := mock.MakeMockTransport()
	transport.SendFn = func(ctx context.Context, req *trawl.Request) (*trawl.Response, error) {
		for _, p := range req.PostParams {
			if p.Name == "_token" && p.Value == "" && strings.HasSuffix(req.URL, "/checked") {
				return mock.MakeMockResponse(req.URL, http.StatusForbidden, "invalid token"), nil
			}
		}
		return mock.MakeMockResponse(req.URL, http.StatusOK, "<html>saved</html>"), nil
	}
	sink := mock.MakeMockFindingSink()
	mctx := mock.ModuleContext(transport, sink)

	m := modules.NewCSRFReplay(mctx)
	assert.Equal(t, []string{"csrf"}, m.Options().Require)

	loader := m.(trawl.DependencyLoader)
	assert.Error(t, loader.LoadRequirements(nil))
	require.NoError(t, loader.LoadRequirements([]trawl.AttackModule{modules.NewCSRF(mctx)}))

	unchecked, resp := resource(t, "POST", "http://example.com/unchecked", []trawl.Param{{Name: "_token", Value: "secret"}}, nil)
	run(t, m, unchecked, resp)
	checked, resp := resource(t, "POST", "http://example.com/checked", []trawl.Param{{Name: "_token", Value: "secret"}}, nil)
	run(t, m, checked, resp)
	naked, resp := resource(t, "POST", "http://example.com/naked", []trawl.Param{{Name: "a", Value: "b"}}, nil)
	assert.False(t, m.MustAttack(naked, resp))

	found := sink.Found()
	require.Len(t, found, 1)
	assert.Equal(t, unchecked.PathID(), found[0].PathID)
	assert.Equal(t, "_token", found[0].Parameter)
	assert.Equal(t, "", found[0].Request.PostParams[0].Value)
	assert.Equal(t, "secret", unchecked.PostParams[0].Value, "original request must not be modified")
}

func TestMethods(t *testing.T) {
	transport := mock.MakeMockTransport()
	transport.SendFn = func(ctx context.Context, req *trawl.Request) (*trawl.Response, error) {
		resp := mock.MakeMockResponse(req.URL, http.StatusOK, "")
		resp.Headers["Allow"] = []string{"GET, POST, OPTIONS, PUT, DELETE"}
		return resp, nil
	}
	sink := mock.MakeMockFindingSink()
	m := modules.NewMethods(mock.ModuleContext(transport, sink))

	req, resp := resource(t, "GET", "http://example.com/api?id=1", nil, nil)
	run(t, m, req, resp)
	again, resp := resource(t, "GET", "http://example.com/api?id=2", nil, nil)
	assert.False(t, m.MustAttack(again, resp))

	sent := transport.Requests()
	require.Len(t, sent, 1)
	assert.Equal(t, http.MethodOptions, sent[0].Method)

	found := sink.Found()
	require.Len(t, found, 1)
	assert.Equal(t, trawl.PayloadAdditional, found[0].Type)
	assert.Contains(t, found[0].Info, "DELETE, PUT")
}

func TestRedirect(t *testing.T) {
	transport := mock.MakeMockTransport()
	transport.SendFn = func(ctx context.Context, req *trawl.Request) (*trawl.Response, error) {
		next := req.Parsed().Query().Get("next")
		if next == "" {
			return mock.MakeMockResponse(req.URL, http.StatusOK, ""), nil
		}
		resp := mock.MakeMockResponse(req.URL, http.StatusFound, "")
		resp.Headers["Location"] = []string{next}
		return resp, nil
	}
	sink := mock.MakeMockFindingSink()
	m := modules.NewRedirect(mock.ModuleContext(transport, sink))

	static, resp := resource(t, "GET", "http://example.com/", nil, nil)
	assert.False(t, m.MustAttack(static, resp))

	req, resp := resource(t, "GET", "http://example.com/go?next=/home&lang=en", nil, nil)
	run(t, m, req, resp)

	found := sink.Found()
	require.Len(t, found, 1)
	assert.Equal(t, "next", found[0].Parameter)
	assert.Equal(t, modules.DefaultRedirectTarget, found[0].Request.GetParams()[0].Value)
	assert.Len(t, transport.Requests(), 2)
}

func TestFingerprint(t *testing.T) {
	dir, err := os.MkdirTemp("", "trawler-fingerprint")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	sink := mock.MakeMockFindingSink()
	mctx := mock.ModuleContext(mock.MakeMockTransport(), sink)
	mctx.DataPath = dir
	m := modules.NewFingerprint(mctx)

	req, resp := resource(t, "GET", "http://example.com/", nil, map[string][]string{
		"Server":       {"Apache/2.4.41 (Ubuntu)"},
		"X-Powered-By": {"PHP/7.4.3"},
		"Set-Cookie":   {"PHPSESSID=abc; path=/"},
	})
	run(t, m, req, resp)
	run(t, m, req, resp)

	infos := make([]string, 0)
	for _, p := range sink.Found() {
		infos = append(infos, p.Info)
	}
	assert.ElementsMatch(t, []string{
		"Apache 2.4.41 detected on example.com",
		"PHP 7.4.3 detected on example.com",
		"PHP detected on example.com",
	}, infos)

	require.NoError(t, m.(trawl.Updater).Update(context.Background()))
	sigs, err := modules.LoadSignatures(filepath.Join(dir, modules.SignatureFileName))
	require.NoError(t, err)
	assert.Len(t, sigs, len(modules.DefaultSignatures))
}

func TestFingerprintUpdateFromURL(t *testing.T) {
	dir, err := os.MkdirTemp("", "trawler-fingerprint")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	transport := mock.MakeMockTransport()
	transport.SendFn = func(ctx context.Context, req *trawl.Request) (*trawl.Response, error) {
		return mock.MakeMockResponse(req.URL, http.StatusOK, `
[[signature]]
  name = "Gunicorn"
  header = "Server"
  pattern = "(?i)gunicorn(?:/([\\d.]+))?"
`), nil
	}
	sink := mock.MakeMockFindingSink()
	mctx := mock.ModuleContext(transport, sink)
	mctx.DataPath = dir
	mctx.Options["update_url"] = "http://signatures.example.com/fingerprint.toml"

	require.NoError(t, modules.NewFingerprint(mctx).(trawl.Updater).Update(context.Background()))

	// a fresh instance picks the file up
	m := modules.NewFingerprint(mctx)
	req, resp := resource(t, "GET", "http://example.com/", nil, map[string][]string{"Server": {"gunicorn/20.0.4"}})
	run(t, m, req, resp)
	found := sink.Found()
	require.Len(t, found, 1)
	assert.Equal(t, "Gunicorn 20.0.4 detected on example.com", found[0].Info)

	transport.SendFn = func(ctx context.Context, req *trawl.Request) (*trawl.Response, error) {
		return mock.MakeMockResponse(req.URL, http.StatusOK, "not = [toml"), nil
	}
	assert.Error(t, modules.NewFingerprint(mctx).(trawl.Updater).Update(context.Background()))
}
