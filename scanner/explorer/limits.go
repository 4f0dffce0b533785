package explorer

import (
	"math"
	"sort"
	"strings"

	"github.com/spaolacci/murmur3"
	"gitlab.com/trawler/trawl"
)

// Limits are the crawl ceilings, zero means unlimited except for MaxDepth
type Limits struct {
	MaxDepth            int
	MaxLinksPerPage     int
	MaxFilesPerDir      int
	MaxRequestsPerDepth int
	QSLimit             float64
}

// LimitsFrom the scan configuration
func LimitsFrom(cfg *trawl.Config) Limits {
	return Limits{
		MaxDepth:            cfg.MaxDepth,
		MaxLinksPerPage:     cfg.MaxLinksPerPage,
		MaxFilesPerDir:      cfg.MaxFilesPerDir,
		MaxRequestsPerDepth: cfg.MaxRequestsPerDepth,
		QSLimit:             cfg.QSLimit,
	}
}

// query name variants allowed per path at qs_limit 1.0
const maxQSVariants = 20

func (l Limits) qsVariants() int {
	n := int(math.Round(l.QSLimit * maxQSVariants))
	if n < 1 {
		return 1
	}
	return n
}

// reason a candidate was refused, empty when accepted
type refusal string

const (
	refusedDepth    refusal = "depth"
	refusedSeen     refusal = "seen"
	refusedDirFiles refusal = "max_files_per_dir"
	refusedQS       refusal = "qs_limit"
	refusedBreadth  refusal = "max_requests_per_depth"
)

// admit applies the ceilings to a candidate and updates the counters when
// it is accepted
func (s *State) admit(l Limits, c *trawl.Request) refusal {
	if c.Depth > l.MaxDepth {
		return refusedDepth
	}
	if s.seen(c) {
		return refusedSeen
	}

	// every distinct resource counts against its directory, query
	// variants of one file included
	dir := c.Scheme() + "://" + c.NetLoc() + c.Directory()
	if l.MaxFilesPerDir > 0 && s.DirCounts[dir] >= l.MaxFilesPerDir {
		return refusedDirFiles
	}

	query := c.GetParams()
	qsKey := c.Method + " " + c.NormalizedURL()
	var variant uint64
	if len(query) > 0 {
		names := make([]string, len(query))
		for i, p := range query {
			names[i] = p.Name
		}
		sort.Strings(names)
		variant = murmur3.Sum64([]byte(strings.Join(names, "&")))
		variants := s.QSVariants[qsKey]
		if !variants[variant] && len(variants) >= l.qsVariants() {
			return refusedQS
		}
	}

	if l.MaxRequestsPerDepth > 0 && s.Depths[c.Depth] >= l.MaxRequestsPerDepth {
		return refusedBreadth
	}

	// accepted
	s.DirCounts[dir]++
	if len(query) > 0 {
		if s.QSVariants[qsKey] == nil {
			s.QSVariants[qsKey] = make(map[uint64]bool)
		}
		s.QSVariants[qsKey][variant] = true
	}
	s.Depths[c.Depth]++
	s.markSeen(c)
	return ""
}
