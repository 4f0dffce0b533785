package trawl

import (
	"crypto/md5"
	"encoding/hex"
	"net/url"
	"sort"
	"strings"
)

// Param is a single name/value pair, order is preserved
type Param struct {
	Name  string `msgpack:"n"`
	Value string `msgpack:"v"`
}

// FileParam is an uploaded file input of a multipart form
type FileParam struct {
	Name     string `msgpack:"n"`
	Filename string `msgpack:"f"`
	Content  []byte `msgpack:"c"`
	MimeType string `msgpack:"m"`
}

// Request is the identity half of a crawled resource: method, url and
// parameters. Requests are immutable once persisted.
type Request struct {
	Method     string      `msgpack:"method"`
	URL        string      `msgpack:"url"`
	PostParams []Param     `msgpack:"post,omitempty"`
	FileParams []FileParam `msgpack:"files,omitempty"`
	Enctype    string      `msgpack:"enctype,omitempty"`
	Referer    string      `msgpack:"referer,omitempty"`
	Depth      int         `msgpack:"depth"`

	parsed *url.URL
	pathID string
}

// NewRequest validates the url and builds a request. Requests with a missing
// scheme or host are rejected with a *ConfigError and never stored.
func NewRequest(method, rawURL string, post []Param, files []FileParam) (*Request, error) {
	u, err := parseAbsolute(rawURL)
	if err != nil {
		return nil, err
	}
	u.Fragment = ""
	u.RawFragment = ""

	if method == "" {
		method = "GET"
	}
	return &Request{
		Method:     strings.ToUpper(method),
		URL:        u.String(),
		PostParams: post,
		FileParams: files,
		parsed:     u,
	}, nil
}

// NewGetRequest is a shortcut for GET requests without a body
func NewGetRequest(rawURL string) (*Request, error) {
	return NewRequest("GET", rawURL, nil, nil)
}

func parseAbsolute(rawURL string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, NewConfigError("url", rawURL, err.Error())
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, NewConfigError("url", rawURL, "missing scheme or host")
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return nil, NewConfigError("url", rawURL, "unsupported scheme")
	}
	u.Scheme = scheme
	u.Host = strings.ToLower(u.Host)
	return u, nil
}

// Parsed returns the parsed url, decoded requests parse lazily
func (r *Request) Parsed() *url.URL {
	if r.parsed == nil {
		u, err := url.Parse(r.URL)
		if err != nil {
			u = &url.URL{}
		}
		r.parsed = u
	}
	return r.parsed
}

// Scheme of the request url
func (r *Request) Scheme() string {
	return r.Parsed().Scheme
}

// Hostname without port
func (r *Request) Hostname() string {
	return strings.ToLower(r.Parsed().Hostname())
}

// Port returns the explicit or implied port
func (r *Request) Port() string {
	u := r.Parsed()
	if p := u.Port(); p != "" {
		return p
	}
	if u.Scheme == "https" {
		return "443"
	}
	return "80"
}

// NetLoc returns host[:port] with default ports stripped
func (r *Request) NetLoc() string {
	host := r.Hostname()
	port := r.Port()
	if (r.Scheme() == "http" && port == "80") || (r.Scheme() == "https" && port == "443") {
		return host
	}
	return host + ":" + port
}

// Path of the url, never empty
func (r *Request) Path() string {
	p := r.Parsed().EscapedPath()
	if p == "" {
		return "/"
	}
	return p
}

// Directory is the path up to and including the last slash
func (r *Request) Directory() string {
	p := r.Path()
	return p[:strings.LastIndex(p, "/")+1]
}

// FileName is the last path segment, empty for directories
func (r *Request) FileName() string {
	p := r.Path()
	return p[strings.LastIndex(p, "/")+1:]
}

// NormalizedURL is scheme://netloc/path, without query or fragment
func (r *Request) NormalizedURL() string {
	return r.Scheme() + "://" + r.NetLoc() + r.Path()
}

// GetParams returns the query string parameters in their original order
func (r *Request) GetParams() []Param {
	return ParseQuery(r.Parsed().RawQuery)
}

// ParseQuery splits a raw query string preserving order and duplicate names
func ParseQuery(raw string) []Param {
	params := make([]Param, 0)
	if raw == "" {
		return params
	}
	for _, pair := range strings.FieldsFunc(raw, func(c rune) bool { return c == '&' || c == ';' }) {
		name, value := pair, ""
		if i := strings.Index(pair, "="); i >= 0 {
			name, value = pair[:i], pair[i+1:]
		}
		if n, err := url.QueryUnescape(name); err == nil {
			name = n
		}
		if v, err := url.QueryUnescape(value); err == nil {
			value = v
		}
		params = append(params, Param{Name: name, Value: value})
	}
	return params
}

// EncodeParams is the inverse of ParseQuery
func EncodeParams(params []Param) string {
	parts := make([]string, len(params))
	for i, p := range params {
		parts[i] = url.QueryEscape(p.Name) + "=" + url.QueryEscape(p.Value)
	}
	return strings.Join(parts, "&")
}

// ParamNames returns query, post then file parameter names in order
func (r *Request) ParamNames() []string {
	names := make([]string, 0)
	for _, p := range r.GetParams() {
		names = append(names, p.Name)
	}
	for _, p := range r.PostParams {
		names = append(names, p.Name)
	}
	for _, p := range r.FileParams {
		names = append(names, p.Name)
	}
	return names
}

// ParamCount is the total number of parameters of any kind
func (r *Request) ParamCount() int {
	return len(r.GetParams()) + len(r.PostParams) + len(r.FileParams)
}

// IsPost returns true when the request carries a body or isn't a GET
func (r *Request) IsPost() bool {
	return r.Method != "GET" || len(r.PostParams) > 0 || len(r.FileParams) > 0
}

// PathID is the stable identity of a request: a hash of the method, the
// normalized url and the *set* of parameter names, values are ignored so that
// /item?id=1 and /item?id=2 collapse to the same resource.
func (r *Request) PathID() string {
	if r.pathID != "" {
		return r.pathID
	}
	h := md5.New()
	h.Write([]byte(r.Method))
	h.Write([]byte{'\n'})
	h.Write([]byte(r.NormalizedURL()))
	h.Write([]byte{'\n'})
	h.Write([]byte(strings.Join(nameSet(r.GetParams()), "&")))
	h.Write([]byte{'\n'})
	h.Write([]byte(strings.Join(nameSet(r.PostParams), "&")))
	h.Write([]byte{'\n'})
	files := make([]Param, len(r.FileParams))
	for i, f := range r.FileParams {
		files[i] = Param{Name: f.Name}
	}
	h.Write([]byte(strings.Join(nameSet(files), "&")))
	r.pathID = hex.EncodeToString(h.Sum(nil))
	return r.pathID
}

func nameSet(params []Param) []string {
	seen := make(map[string]struct{}, len(params))
	names := make([]string, 0, len(params))
	for _, p := range params {
		if _, ok := seen[p.Name]; ok {
			continue
		}
		seen[p.Name] = struct{}{}
		names = append(names, p.Name)
	}
	sort.Strings(names)
	return names
}

// Equals if same method, same normalized url and same ordered parameter names
func (r *Request) Equals(other *Request) bool {
	if other == nil {
		return false
	}
	if r.Method != other.Method || r.NormalizedURL() != other.NormalizedURL() {
		return false
	}
	a, b := r.ParamNames(), other.ParamNames()
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// WithGetParams returns a copy of the request with its query replaced,
// modules use it to build "evil" requests.
func (r *Request) WithGetParams(params []Param) *Request {
	u := *r.Parsed()
	u.RawQuery = EncodeParams(params)
	c := r.copy()
	c.URL = u.String()
	c.parsed = &u
	return c
}

// WithPostParams returns a copy of the request with its body params replaced
func (r *Request) WithPostParams(params []Param) *Request {
	c := r.copy()
	c.PostParams = params
	return c
}

func (r *Request) copy() *Request {
	c := &Request{
		Method:     r.Method,
		URL:        r.URL,
		PostParams: append([]Param(nil), r.PostParams...),
		FileParams: append([]FileParam(nil), r.FileParams...),
		Enctype:    r.Enctype,
		Referer:    r.Referer,
		Depth:      r.Depth,
	}
	return c
}

func (r *Request) String() string {
	if len(r.PostParams) == 0 && len(r.FileParams) == 0 {
		return r.Method + " " + r.URL
	}
	return r.Method + " " + r.URL + " (" + EncodeParams(r.PostParams) + ")"
}
