// Package modules holds the attack modules shipped with trawler and the
// registry the orchestrator builds them from
package modules

import (
	"sort"
	"sync"

	"gitlab.com/trawler/trawl"
)

// Preset names
const (
	PresetCommon  = "common"
	PresetPassive = "passive"
	PresetAll     = "all"
)

// Catalog for concurrent safe access to module factories and presets
type Catalog struct {
	lock      *sync.RWMutex
	factories map[string]trawl.ModuleFactory
	presets   map[string][]string
}

// NewCatalog that is empty
func NewCatalog() *Catalog {
	return &Catalog{
		lock:      &sync.RWMutex{},
		factories: make(map[string]trawl.ModuleFactory),
		presets:   make(map[string][]string),
	}
}

// Add a module factory to our catalog
func (c *Catalog) Add(name string, factory trawl.ModuleFactory) {
	c.lock.Lock()
	c.factories[name] = factory
	c.lock.Unlock()
}

// Remove a module factory from our catalog
func (c *Catalog) Remove(name string) {
	c.lock.Lock()
	delete(c.factories, name)
	c.lock.Unlock()
}

// Factory for the named module
func (c *Catalog) Factory(name string) (trawl.ModuleFactory, bool) {
	c.lock.RLock()
	defer c.lock.RUnlock()
	f, ok := c.factories[name]
	return f, ok
}

// Has returns true if name is a registered module
func (c *Catalog) Has(name string) bool {
	_, ok := c.Factory(name)
	return ok
}

// Names of all modules, sorted
func (c *Catalog) Names() []string {
	c.lock.RLock()
	defer c.lock.RUnlock()
	names := make([]string, 0, len(c.factories))
	for name := range c.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// AddPreset registers a named group of modules
func (c *Catalog) AddPreset(name string, modules ...string) {
	c.lock.Lock()
	c.presets[name] = modules
	c.lock.Unlock()
}

// Preset returns the modules of a preset, "all" is every registered module
func (c *Catalog) Preset(name string) ([]string, bool) {
	if name == PresetAll {
		return c.Names(), true
	}
	c.lock.RLock()
	defer c.lock.RUnlock()
	modules, ok := c.presets[name]
	if !ok {
		return nil, false
	}
	return append([]string(nil), modules...), true
}

var (
	defaultOnce    sync.Once
	defaultCatalog *Catalog
)

// Registry of the shipped modules
func Registry() *Catalog {
	defaultOnce.Do(func() {
		c := NewCatalog()
		c.Add(HeadersName, NewHeaders)
		c.Add(CookieFlagsName, NewCookieFlags)
		c.Add(CSRFName, NewCSRF)
		c.Add(CSRFReplayName, NewCSRFReplay)
		c.Add(MethodsName, NewMethods)
		c.Add(RedirectName, NewRedirect)
		c.Add(FingerprintName, NewFingerprint)

		c.AddPreset(PresetCommon, HeadersName, CookieFlagsName, CSRFName, RedirectName)
		c.AddPreset(PresetPassive, HeadersName, CookieFlagsName, FingerprintName)
		defaultCatalog = c
	})
	return defaultCatalog
}
