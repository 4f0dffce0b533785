package store

import (
	"context"

	badger "github.com/dgraph-io/badger/v2"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"gitlab.com/trawler/trawl"
)

// SaveRequests stores crawled resources, a path id already known is left
// untouched so saving the same batch twice is a no-op
func (s *Persister) SaveRequests(resources []*trawl.Resource) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for start := 0; start < len(resources); start += writeBatchLen {
		end := start + writeBatchLen
		if end > len(resources) {
			end = len(resources)
		}
		if err := s.Store.Update(func(txn *badger.Txn) error {
			return s.saveChunk(txn, resources[start:end])
		}); err != nil {
			return errors.Wrap(err, "saving requests")
		}
	}
	return nil
}

func (s *Persister) saveChunk(txn *badger.Txn, resources []*trawl.Resource) error {
	for _, res := range resources {
		if res == nil || res.Request == nil {
			continue
		}
		pathID := res.Request.PathID()
		pidKey := pathKey(pathID)

		found, err := exists(txn, pidKey)
		if err != nil {
			return err
		}
		if found {
			continue
		}

		seq, err := s.pathSeq.Next()
		if err != nil {
			return err
		}

		val, err := EncodeResource(res)
		if err != nil {
			return err
		}

		prefix := linkPrefix
		if res.Request.IsPost() {
			prefix = formPrefix
		}
		key := seqKey(prefix, seq, pathID)
		if err := txn.Set(key, val); err != nil {
			return err
		}
		if err := txn.Set(pidKey, key); err != nil {
			return err
		}
	}
	return nil
}

// GetLinks yields GET resources not yet attacked by attackModule
func (s *Persister) GetLinks(ctx context.Context, attackModule string) <-chan *trawl.Resource {
	return s.resources(ctx, linkPrefix, attackModule)
}

// GetForms yields POST resources not yet attacked by attackModule
func (s *Persister) GetForms(ctx context.Context, attackModule string) <-chan *trawl.Resource {
	return s.resources(ctx, formPrefix, attackModule)
}

func (s *Persister) resources(ctx context.Context, prefix []byte, attackModule string) <-chan *trawl.Resource {
	var keep keepFn
	if attackModule != "" {
		keep = func(txn *badger.Txn, key []byte) bool {
			attacked, err := exists(txn, attackKey(attackModule, pathIDFromKey(prefix, key)))
			if err != nil {
				log.Error().Err(err).Str("module", attackModule).Msg("failed to check attacked set")
			}
			return !attacked
		}
	}

	out := make(chan *trawl.Resource)
	go func() {
		defer close(out)

		err := s.iterate(ctx, prefix, keep, func(e entry) bool {
			res, err := DecodeResource(e.val)
			if err != nil {
				log.Error().Err(err).Msg("failed to decode resource")
				return true
			}
			select {
			case out <- res:
				return true
			case <-ctx.Done():
				return false
			}
		})
		if err != nil && ctx.Err() == nil {
			log.Error().Err(err).Str("prefix", string(prefix)).Msg("failed to read resources")
		}
	}()
	return out
}

// CountPaths is the number of stored links and forms
func (s *Persister) CountPaths() (int, error) {
	return s.count(pathPrefix)
}

// RemoveBigRequests deletes stored resources with more than maxParameters
// parameters and returns how many were removed
func (s *Persister) RemoveBigRequests(maxParameters int) (int, error) {
	if maxParameters <= 0 {
		return 0, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doomed := make([]entry, 0)
	for _, prefix := range [][]byte{linkPrefix, formPrefix} {
		err := s.iterate(context.Background(), prefix, nil, func(e entry) bool {
			res, err := DecodeResource(e.val)
			if err != nil {
				log.Error().Err(err).Msg("failed to decode resource")
				return true
			}
			if res.Request.ParamCount() > maxParameters {
				doomed = append(doomed, entry{key: e.key, val: []byte(res.Request.PathID())})
			}
			return true
		})
		if err != nil {
			return 0, err
		}
	}

	if len(doomed) == 0 {
		return 0, nil
	}

	wb := s.Store.NewWriteBatch()
	defer wb.Cancel()
	for _, d := range doomed {
		if err := wb.Delete(d.key); err != nil {
			return 0, err
		}
		if err := wb.Delete(pathKey(string(d.val))); err != nil {
			return 0, err
		}
	}
	if err := wb.Flush(); err != nil {
		return 0, errors.Wrap(err, "removing big requests")
	}
	log.Info().Int("removed", len(doomed)).Int("max_parameters", maxParameters).Msg("removed requests with too many parameters")
	return len(doomed), nil
}
