package scanner_test

import (
	"testing"

	"gitlab.com/trawler/scanner"
	"gitlab.com/trawler/trawl"
)

func TestScope(t *testing.T) {
	anchor, _ := trawl.NewGetRequest("http://example.com/app/index.php?page=1")

	var inputs = []struct {
		policy   trawl.ScopePolicy
		in       string
		expected bool
	}{
		{trawl.ScopeFolder, "http://example.com/app/index.php", true},
		{trawl.ScopeFolder, "http://example.com/app/sub/page", true},
		{trawl.ScopeFolder, "http://example.com/other/", false},
		{trawl.ScopeFolder, "https://example.com/app/index.php", false},
		{trawl.ScopeFolder, "http://example.com:8080/app/", false},
		{trawl.ScopeDomain, "http://example.com/other/", true},
		{trawl.ScopeDomain, "https://example.com:8443/x", true},
		{trawl.ScopeDomain, "http://sub.example.com/", false},
		{trawl.ScopeDomain, "http://bad.com/example.com", false},
		{trawl.ScopeSubdomain, "http://sub.example.com/", true},
		{trawl.ScopeSubdomain, "http://a.b.example.com/", true},
		{trawl.ScopeSubdomain, "http://notexample.com/", false},
		{trawl.ScopeSubdomain, "http://example.com.evil.com/", false},
		{trawl.ScopeURL, "http://example.com/app/index.php?page=1", true},
		{trawl.ScopeURL, "http://example.com/app/index.php?page=1#x", true},
		{trawl.ScopeURL, "http://example.com/app/index.php?page=2", false},
		{trawl.ScopeURL, "http://example.com/app/index.php", false},
		{trawl.ScopePunk, "http://anything.org/", true},
		{trawl.ScopePunk, "not a url", false},
		{trawl.ScopeDomain, "mailto:someone@example.com", false},
	}

	for _, in := range inputs {
		s := scanner.NewScopeService(in.policy, anchor)
		ret := s.InScope(in.in)
		if ret != in.expected {
			t.Fatalf("%s: %v did not match %v for %s\n", in.policy, ret, in.expected, in.in)
		}
		// no hidden state
		if again := s.InScope(in.in); again != ret {
			t.Fatalf("%s: second call returned %v for %s\n", in.policy, again, in.in)
		}
	}
}

func TestScopeFolderWithDirectoryAnchor(t *testing.T) {
	anchor, _ := trawl.NewGetRequest("http://example.com/app/")
	s := scanner.NewScopeService(trawl.ScopeFolder, anchor)
	if !s.InScope("http://example.com/app/") {
		t.Fatalf("anchor should be in scope")
	}
	if !s.InScope("http://example.com/app/x/y.html") {
		t.Fatalf("descendant should be in scope")
	}
	if s.InScope("http://example.com/application") {
		t.Fatalf("sibling prefix should not be in scope")
	}
}

func TestExclusionList(t *testing.T) {
	e := scanner.NewExclusionList([]string{"http://example.com/log-out", "http://example.com/admin/*", "*signout*"})

	var inputs = []struct {
		in       string
		expected bool
	}{
		{"http://example.com/log-out", true},
		{"http://EXAMPLE.com/log-out#top", true},
		{"http://example.com/log-out?x=1", false},
		{"http://example.com/admin/users?id=1", true},
		{"http://example.com/admin", false},
		{"http://example.com/user/signout.php", true},
		{"http://example.com/different/page", false},
	}
	for _, in := range inputs {
		if ret := e.Excluded(in.in); ret != in.expected {
			t.Fatalf("%v did not match %v for %s\n", ret, in.expected, in.in)
		}
	}

	var nilList *scanner.ExclusionList
	if nilList.Excluded("http://example.com/") {
		t.Fatalf("nil list should exclude nothing")
	}
}
