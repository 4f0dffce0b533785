package scanner

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"
	"gitlab.com/trawler/trawl"
)

// ScopeService is used to ensure we stay with in the scope
// of the target as we crawl and attack
type ScopeService struct {
	policy trawl.ScopePolicy
	anchor *trawl.Request
	folder string
}

// NewScopeService anchors the policy on the base request
func NewScopeService(policy trawl.ScopePolicy, anchor *trawl.Request) *ScopeService {
	folder := anchor.Directory()
	return &ScopeService{
		policy: policy,
		anchor: anchor,
		folder: folder,
	}
}

// Policy in use
func (s *ScopeService) Policy() trawl.ScopePolicy {
	return s.policy
}

// Anchor request the policy is relative to
func (s *ScopeService) Anchor() *trawl.Request {
	return s.anchor
}

// InScope checks a url, unparsable urls are out of scope
func (s *ScopeService) InScope(candidate string) bool {
	req, err := trawl.NewGetRequest(candidate)
	if err != nil {
		log.Debug().Err(err).Str("uri", candidate).Msg("failed to parse URI returning out of scope")
		return false
	}
	return s.RequestInScope(req)
}

// RequestInScope checks an already parsed request
func (s *ScopeService) RequestInScope(req *trawl.Request) bool {
	switch s.policy {
	case trawl.ScopePunk:
		return true
	case trawl.ScopeURL:
		return req.NormalizedURL() == s.anchor.NormalizedURL() &&
			req.Parsed().RawQuery == s.anchor.Parsed().RawQuery
	case trawl.ScopeDomain:
		return req.Hostname() == s.anchor.Hostname()
	case trawl.ScopeSubdomain:
		host := req.Hostname()
		base := s.anchor.Hostname()
		return host == base || strings.HasSuffix(host, "."+base)
	case trawl.ScopeFolder:
		if req.Scheme() != s.anchor.Scheme() || req.NetLoc() != s.anchor.NetLoc() {
			return false
		}
		path := req.Path()
		return path == s.anchor.Path() || strings.HasPrefix(path, s.folder)
	}
	return false
}

// ExclusionList blocks urls from being crawled or attacked. Entries are
// exact urls or patterns where * matches anything.
type ExclusionList struct {
	exact    map[string]struct{}
	patterns []*regexp.Regexp
}

// NewExclusionList from user input and urls found during login
func NewExclusionList(inputs []string) *ExclusionList {
	e := &ExclusionList{exact: make(map[string]struct{})}
	e.Add(inputs...)
	return e
}

// Add more exclusions
func (e *ExclusionList) Add(inputs ...string) {
	for _, input := range inputs {
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}

		if !strings.Contains(input, "*") {
			e.exact[normalizeExcluded(input)] = struct{}{}
			continue
		}

		parts := strings.Split(input, "*")
		for i := range parts {
			parts[i] = regexp.QuoteMeta(parts[i])
		}
		re, err := regexp.Compile("^" + strings.Join(parts, ".*") + "$")
		if err != nil {
			log.Warn().Err(err).Str("pattern", input).Msg("failed to add pattern to exclusion list")
			continue
		}
		e.patterns = append(e.patterns, re)
	}
}

// Excluded returns true if the url matches any entry
func (e *ExclusionList) Excluded(candidate string) bool {
	if e == nil {
		return false
	}
	if _, ok := e.exact[normalizeExcluded(candidate)]; ok {
		return true
	}
	for _, re := range e.patterns {
		if re.MatchString(candidate) {
			return true
		}
	}
	return false
}

// Len is the number of entries
func (e *ExclusionList) Len() int {
	if e == nil {
		return 0
	}
	return len(e.exact) + len(e.patterns)
}

func normalizeExcluded(input string) string {
	u, err := url.Parse(input)
	if err != nil || u.Host == "" {
		return input
	}
	u.Fragment = ""
	u.Host = strings.ToLower(u.Host)
	u.Scheme = strings.ToLower(u.Scheme)
	return u.String()
}
