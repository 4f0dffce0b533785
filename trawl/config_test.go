package trawl_test

import (
	"testing"

	"gitlab.com/trawler/trawl"
)

func TestConfigValidate(t *testing.T) {
	var inputs = []struct {
		cfg   trawl.Config
		valid bool
	}{
		{trawl.Config{URL: "http://example.test/"}, true},
		{trawl.Config{URL: "example.test"}, false},
		{trawl.Config{URL: "http://example.test/", Scope: "galaxy"}, false},
		{trawl.Config{URL: "http://example.test/", QSLimit: 1.5}, false},
		{trawl.Config{URL: "http://example.test/", Proxy: "socks5://127.0.0.1:9050"}, true},
		{trawl.Config{URL: "http://example.test/", Proxy: "gopher://127.0.0.1"}, false},
		{trawl.Config{URL: "http://example.test/", Proxy: "not a url"}, false},
		{trawl.Config{URL: "http://example.test/", FlushSession: true, SkipCrawl: true}, false},
	}

	for i, in := range inputs {
		cfg := in.cfg
		cfg.SetDefaults()
		err := cfg.Validate()
		if in.valid && err != nil {
			t.Fatalf("%d: expected valid config got %s\n", i, err)
		}
		if !in.valid {
			if err == nil {
				t.Fatalf("%d: expected config error", i)
			}
			if !trawl.IsConfigError(err) {
				t.Fatalf("%d: expected *ConfigError got %T\n", i, err)
			}
		}
	}
}

func TestParseScopePolicy(t *testing.T) {
	for _, p := range trawl.ScopePolicies {
		got, err := trawl.ParseScopePolicy(" " + string(p) + " ")
		if err != nil || got != p {
			t.Fatalf("failed to parse %s: %v\n", p, err)
		}
	}
}

func TestFormDataValue(t *testing.T) {
	f := &trawl.DefaultFormValues
	var inputs = []struct {
		typ, name, expected string
	}{
		{"password", "whatever", f.Password},
		{"text", "user_email", f.Email},
		{"text", "username", f.UserName},
		{"text", "q", f.SearchTerm},
		{"text", "zipcode", f.ZipCode},
		{"text", "xyz", f.Default},
	}
	for _, in := range inputs {
		if got := f.Value(in.typ, in.name); got != in.expected {
			t.Fatalf("%s/%s expected %s got %s\n", in.typ, in.name, in.expected, got)
		}
	}
}
