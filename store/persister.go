package store

import (
	"os"
	"strings"
	"sync"

	badger "github.com/dgraph-io/badger/v2"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"gitlab.com/trawler/trawl"
)

const (
	pageSize      = 100
	writeBatchLen = 100
	seqBandwidth  = 100
)

// Persister saves the frontier, crawled resources, attacked sets and
// findings of a single scan session
type Persister struct {
	Store    *badger.DB
	filepath string

	// serializes read-modify-write operations
	mu         sync.Mutex
	pathSeq    *badger.Sequence
	payloadSeq *badger.Sequence
}

var _ trawl.Storer = (*Persister)(nil)

// NewPersister for the badger directory at filepath
func NewPersister(filepath string) *Persister {
	return &Persister{filepath: filepath}
}

// Init opens (or creates) the database, recovering from an unclean
// shutdown when badger asks for it
func (s *Persister) Init() error {
	var err error

	if err = os.MkdirAll(s.filepath, 0755); err != nil {
		return errors.Wrap(err, "creating store directory")
	}

	opts := badger.DefaultOptions(s.filepath).WithLogger(nil)
	s.Store, err = badger.Open(opts)

	if errors.Is(err, badger.ErrTruncateNeeded) {
		log.Warn().Msg("there was a failure re-opening database, trying to recover")
		s.Store, err = badger.Open(opts.WithTruncate(true))
	}

	if err != nil {
		if strings.Contains(err.Error(), "Cannot acquire directory lock") {
			return errors.Wrap(trawl.ErrStorageLocked, s.filepath)
		}
		return errors.Wrap(err, "opening store")
	}

	if s.pathSeq, err = s.Store.GetSequence(pathSeqKey, seqBandwidth); err != nil {
		s.Store.Close()
		return errors.Wrap(err, "path sequence")
	}
	if s.payloadSeq, err = s.Store.GetSequence(payloadSeqKey, seqBandwidth); err != nil {
		s.pathSeq.Release()
		s.Store.Close()
		return errors.Wrap(err, "payload sequence")
	}
	return nil
}

// Close releases sequences and the database lock
func (s *Persister) Close() error {
	if s.Store == nil {
		return nil
	}
	if s.pathSeq != nil {
		if err := s.pathSeq.Release(); err != nil {
			log.Error().Err(err).Msg("failed to release path sequence")
		}
	}
	if s.payloadSeq != nil {
		if err := s.payloadSeq.Release(); err != nil {
			log.Error().Err(err).Msg("failed to release payload sequence")
		}
	}
	err := s.Store.Close()
	s.Store = nil
	return err
}

// SetRootURL the scan was started from
func (s *Persister) SetRootURL(root string) error {
	return s.Store.Update(func(txn *badger.Txn) error {
		return txn.Set(rootKey, []byte(root))
	})
}

// GetRootURL returns trawl.ErrNotFound for a fresh store
func (s *Persister) GetRootURL() (string, error) {
	var root string
	err := s.Store.View(func(txn *badger.Txn) error {
		item, err := txn.Get(rootKey)
		if err != nil {
			return err
		}
		val, err := item.ValueCopy(nil)
		root = string(val)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return "", trawl.ErrNotFound
	}
	return root, err
}

// HasScanStarted if anything was crawled or queued
func (s *Persister) HasScanStarted() (bool, error) {
	paths, err := s.CountPaths()
	if err != nil {
		return false, err
	}
	if paths > 0 {
		return true, nil
	}
	queued, err := s.CountToBrowse()
	return queued > 0, err
}

// HasScanFinished returns true once the crawl ran to completion
func (s *Persister) HasScanFinished() (bool, error) {
	finished := false
	err := s.Store.View(func(txn *badger.Txn) error {
		item, err := txn.Get(finishedKey)
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			finished = len(val) == 1 && val[0] == 1
			return nil
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	return finished, err
}

// SetScanFinished flag
func (s *Persister) SetScanFinished(finished bool) error {
	val := []byte{0}
	if finished {
		val[0] = 1
	}
	return s.Store.Update(func(txn *badger.Txn) error {
		return txn.Set(finishedKey, val)
	})
}

// FlushAttacks forgets attacked sets and findings so modules run again
func (s *Persister) FlushAttacks() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.Store.DropPrefix(attackPrefix); err != nil {
		return errors.Wrap(err, "dropping attacked sets")
	}
	return errors.Wrap(s.Store.DropPrefix(payloadPrefix), "dropping payloads")
}

// FlushSession forgets everything, crawling starts over
func (s *Persister) FlushSession() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return errors.Wrap(s.Store.DropAll(), "dropping session")
}
