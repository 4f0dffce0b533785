package scanner

import (
	"sort"
	"strings"

	"gitlab.com/trawler/trawl"
)

// Methods a module is activated for
type Methods struct {
	Get  bool
	Post bool
}

// Catalog of modules known to the selection parser
type Catalog interface {
	Has(name string) bool
	Preset(name string) ([]string, bool)
}

// Selection of active modules and the methods they attack
type Selection map[string]Methods

// Names of the selected modules, sorted
func (s Selection) Names() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ParseSelection evaluates a module expression: a comma separated list of
// module or preset names, each optionally prefixed by + (add, the default)
// or - (remove) and suffixed by :get or :post to restrict the methods.
// An empty expression selects the common preset, an expression starting
// with a removal starts from the common preset too.
func ParseSelection(expr string, catalog Catalog) (Selection, error) {
	selection := make(Selection)

	tokens := make([]string, 0)
	for _, token := range strings.Split(expr, ",") {
		if token = strings.TrimSpace(token); token != "" {
			tokens = append(tokens, token)
		}
	}
	if len(tokens) == 0 || strings.HasPrefix(tokens[0], "-") {
		common, _ := catalog.Preset(trawl.DefaultModules)
		for _, name := range common {
			selection[name] = Methods{Get: true, Post: true}
		}
	}

	for _, token := range tokens {
		remove := false
		switch token[0] {
		case '-':
			remove = true
			token = token[1:]
		case '+':
			token = token[1:]
		}

		methods := Methods{Get: true, Post: true}
		if i := strings.Index(token, ":"); i >= 0 {
			switch strings.ToLower(token[i+1:]) {
			case "get":
				methods = Methods{Get: true}
			case "post":
				methods = Methods{Post: true}
			default:
				return nil, trawl.NewConfigError("modules", token, "method must be get or post")
			}
			token = token[:i]
		}
		name := strings.ToLower(strings.TrimSpace(token))

		names, ok := catalog.Preset(name)
		if !ok {
			if !catalog.Has(name) {
				return nil, trawl.NewConfigError("modules", name, "unknown module or preset")
			}
			names = []string{name}
		}

		for _, n := range names {
			current := selection[n]
			if remove {
				current.Get = current.Get && !methods.Get
				current.Post = current.Post && !methods.Post
			} else {
				current.Get = current.Get || methods.Get
				current.Post = current.Post || methods.Post
			}
			if !current.Get && !current.Post {
				delete(selection, n)
				continue
			}
			selection[n] = current
		}
	}
	return selection, nil
}
