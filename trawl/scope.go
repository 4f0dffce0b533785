package trawl

import "strings"

// ScopePolicy decides which discovered urls may be crawled or attacked
type ScopePolicy string

const (
	// ScopeFolder same origin, anchor path or below the anchor's folder
	ScopeFolder ScopePolicy = "folder"
	// ScopeDomain exact host
	ScopeDomain ScopePolicy = "domain"
	// ScopeSubdomain host or any of its subdomains
	ScopeSubdomain ScopePolicy = "subdomain"
	// ScopeURL only the anchor url (single page attack)
	ScopeURL ScopePolicy = "url"
	// ScopePunk unrestricted
	ScopePunk ScopePolicy = "punk"
)

// ScopePolicies in display order
var ScopePolicies = []ScopePolicy{ScopeURL, ScopeFolder, ScopeDomain, ScopeSubdomain, ScopePunk}

// ParseScopePolicy from a user supplied name
func ParseScopePolicy(name string) (ScopePolicy, error) {
	lowered := ScopePolicy(strings.ToLower(strings.TrimSpace(name)))
	for _, p := range ScopePolicies {
		if p == lowered {
			return p, nil
		}
	}
	return "", NewConfigError("scope", name, "expected one of url, folder, domain, subdomain, punk")
}

// ScopeService checks if a url is in scope. Implementations must be pure
// functions of (policy, anchor, candidate) and safe for concurrent use.
type ScopeService interface {
	Policy() ScopePolicy
	Anchor() *Request
	InScope(candidate string) bool
	RequestInScope(req *Request) bool
}
