package store

import (
	"context"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"gitlab.com/trawler/trawl"
)

// SetToBrowse replaces the frontier with reqs, order is kept
func (s *Persister) SetToBrowse(reqs []*trawl.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.Store.DropPrefix(browsePrefix); err != nil {
		return errors.Wrap(err, "dropping frontier")
	}

	wb := s.Store.NewWriteBatch()
	defer wb.Cancel()

	for i, req := range reqs {
		val, err := EncodeRequest(req)
		if err != nil {
			return errors.Wrap(err, "encoding frontier request")
		}
		if err := wb.Set(seqKey(browsePrefix, uint64(i), ""), val); err != nil {
			return errors.Wrap(err, "writing frontier")
		}
	}
	return errors.Wrap(wb.Flush(), "flushing frontier")
}

// GetToBrowse yields the frontier in insertion order. Entries stay in the
// store until the next SetToBrowse so an interrupted crawl can resume.
func (s *Persister) GetToBrowse(ctx context.Context) <-chan *trawl.Request {
	out := make(chan *trawl.Request)
	go func() {
		defer close(out)

		err := s.iterate(ctx, browsePrefix, nil, func(e entry) bool {
			req, err := DecodeRequest(e.val)
			if err != nil {
				log.Error().Err(err).Msg("failed to decode frontier entry")
				return true
			}
			select {
			case out <- req:
				return true
			case <-ctx.Done():
				return false
			}
		})
		if err != nil && ctx.Err() == nil {
			log.Error().Err(err).Msg("failed to read frontier")
		}
	}()
	return out
}

// CountToBrowse is the size of the frontier
func (s *Persister) CountToBrowse() (int, error) {
	return s.count(browsePrefix)
}
