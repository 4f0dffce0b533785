package explorer

import (
	"github.com/spaolacci/murmur3"
	"gitlab.com/trawler/store"
	"gitlab.com/trawler/trawl"
)

// State is the traversal bookkeeping that does not belong in the main
// store. Urls are kept as murmur3 fingerprints to keep checkpoints small.
type State struct {
	Seen       map[uint64]bool            `msgpack:"seen"`
	Depths     map[int]int                `msgpack:"depths"`
	DirCounts  map[string]int             `msgpack:"dir_counts"`
	QSVariants map[string]map[uint64]bool `msgpack:"qs_variants"`
	Fetched    int                        `msgpack:"fetched"`
}

// NewState with empty counters
func NewState() *State {
	s := &State{}
	s.init()
	return s
}

func (s *State) init() {
	if s.Seen == nil {
		s.Seen = make(map[uint64]bool)
	}
	if s.Depths == nil {
		s.Depths = make(map[int]int)
	}
	if s.DirCounts == nil {
		s.DirCounts = make(map[string]int)
	}
	if s.QSVariants == nil {
		s.QSVariants = make(map[string]map[uint64]bool)
	}
}

func fingerprint(req *trawl.Request) uint64 {
	return murmur3.Sum64([]byte(req.PathID()))
}

func (s *State) seen(req *trawl.Request) bool {
	return s.Seen[fingerprint(req)]
}

func (s *State) markSeen(req *trawl.Request) {
	s.Seen[fingerprint(req)] = true
}

// LoadSavedState restores the counters of a previous run, a missing
// checkpoint leaves the explorer with fresh counters
func (e *Explorer) LoadSavedState(path string) error {
	state := &State{}
	if err := store.LoadCheckpoint(path, state); err != nil {
		return err
	}
	state.init()
	e.state = state
	return nil
}

// SaveState checkpoints the counters
func (e *Explorer) SaveState(path string) error {
	return store.SaveCheckpoint(path, e.state)
}
