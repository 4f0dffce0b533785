// Package transport sends trawl requests over net/http
package transport

import (
	"bytes"
	"context"
	"crypto/tls"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"gitlab.com/trawler/trawl"
	"golang.org/x/net/publicsuffix"
	"golang.org/x/time/rate"
)

// MaxBodySize read from a response
const MaxBodySize = 5 * 1024 * 1024

// DefaultUserAgent when none is configured
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:115.0) Gecko/20100101 Firefox/115.0"

// Config of the http transport
type Config struct {
	Timeout   time.Duration
	Proxy     string
	UserAgent string
	Headers   map[string]string
	Cookie    string
	RateLimit int // requests per second, 0 is unlimited
	Verify    bool
}

// ConfigFrom the scan configuration
func ConfigFrom(cfg *trawl.Config) Config {
	return Config{
		Timeout:   cfg.RequestTimeout(),
		Proxy:     cfg.Proxy,
		UserAgent: cfg.UserAgent,
		Headers:   cfg.Headers,
		Cookie:    cfg.Cookie,
		RateLimit: cfg.RateLimit,
	}
}

// HTTP transport, safe for concurrent use
type HTTP struct {
	client  *http.Client
	limiter *rate.Limiter
	headers http.Header

	mu      sync.RWMutex
	session http.Header
}

var _ trawl.Transport = (*HTTP)(nil)
var _ trawl.SessionHolder = (*HTTP)(nil)

// New creates the client, redirects are never followed so the explorer and
// modules see the 3xx responses
func New(cfg Config) (*HTTP, error) {
	if cfg.Timeout == 0 {
		cfg.Timeout = trawl.DefaultTimeout * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, errors.Wrap(err, "cookie jar")
	}

	dialer := &net.Dialer{
		Timeout:   cfg.Timeout,
		KeepAlive: 30 * time.Second,
	}
	transport := &http.Transport{
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   25,
		IdleConnTimeout:       90 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		TLSHandshakeTimeout:   cfg.Timeout,
		DialContext:           dialer.DialContext,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: !cfg.Verify,
		},
	}

	if cfg.Proxy != "" {
		proxyURL, err := url.Parse(cfg.Proxy)
		if err != nil || proxyURL.Host == "" {
			return nil, trawl.NewConfigError("proxy", cfg.Proxy, "not an absolute url")
		}
		transport.Proxy = http.ProxyURL(proxyURL)
	}

	t := &HTTP{
		client: &http.Client{
			Transport: transport,
			Timeout:   cfg.Timeout,
			Jar:       jar,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		headers: make(http.Header),
		session: make(http.Header),
	}

	if cfg.RateLimit > 0 {
		t.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateLimit)
	}

	t.headers.Set("User-Agent", cfg.UserAgent)
	for k, v := range cfg.Headers {
		t.headers.Set(k, v)
	}
	if cfg.Cookie != "" {
		t.session.Set("Cookie", cfg.Cookie)
	}
	return t, nil
}

// SetSession replaces the session headers sent with every request
func (t *HTTP) SetSession(headers http.Header) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.session = headers.Clone()
	if t.session == nil {
		t.session = make(http.Header)
	}
}

// Jar is the cookie jar shared by all requests
func (t *HTTP) Jar() http.CookieJar {
	return t.client.Jar
}

// Send req, failures to get any response are returned as *trawl.TransportError
func (t *HTTP) Send(ctx context.Context, req *trawl.Request) (*trawl.Response, error) {
	if t.limiter != nil {
		if err := t.limiter.Wait(ctx); err != nil {
			return nil, trawl.NewTransportError(req.URL, err)
		}
	}

	httpReq, err := t.build(ctx, req)
	if err != nil {
		return nil, errors.Wrap(err, "building request")
	}

	start := time.Now()
	resp, err := t.client.Do(httpReq)
	if err != nil {
		log.Debug().Err(err).Str("url", req.URL).Msg("request failed")
		return nil, trawl.NewTransportError(req.URL, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxBodySize))
	if err != nil {
		return nil, trawl.NewTransportError(req.URL, err)
	}

	return &trawl.Response{
		URL:      req.URL,
		Status:   resp.StatusCode,
		Headers:  map[string][]string(resp.Header),
		Body:     body,
		Duration: time.Since(start),
	}, nil
}

func (t *HTTP) build(ctx context.Context, req *trawl.Request) (*http.Request, error) {
	var body io.Reader
	contentType := ""

	switch {
	case len(req.FileParams) > 0 || strings.HasPrefix(req.Enctype, "multipart/"):
		buf := &bytes.Buffer{}
		w := multipart.NewWriter(buf)
		for _, p := range req.PostParams {
			if err := w.WriteField(p.Name, p.Value); err != nil {
				return nil, err
			}
		}
		for _, f := range req.FileParams {
			part, err := w.CreateFormFile(f.Name, f.Filename)
			if err != nil {
				return nil, err
			}
			if _, err := part.Write(f.Content); err != nil {
				return nil, err
			}
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
		body = buf
		contentType = w.FormDataContentType()
	case len(req.PostParams) > 0:
		body = strings.NewReader(trawl.EncodeParams(req.PostParams))
		contentType = "application/x-www-form-urlencoded"
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return nil, err
	}

	for k, v := range t.headers {
		httpReq.Header[k] = v
	}
	t.mu.RLock()
	for k, v := range t.session {
		httpReq.Header[k] = v
	}
	t.mu.RUnlock()

	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	if req.Referer != "" {
		httpReq.Header.Set("Referer", req.Referer)
	}
	return httpReq, nil
}
