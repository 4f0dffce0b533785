package store

import (
	"context"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"gitlab.com/trawler/trawl"
)

// SetAttacked adds path ids to the attacked set of module, ids already
// present are simply overwritten
func (s *Persister) SetAttacked(pathIDs []string, module string) error {
	if len(pathIDs) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	wb := s.Store.NewWriteBatch()
	defer wb.Cancel()
	for _, id := range pathIDs {
		if err := wb.Set(attackKey(module, id), []byte{}); err != nil {
			return errors.Wrap(err, "marking attacked")
		}
	}
	return errors.Wrap(wb.Flush(), "flushing attacked set")
}

// CountAttacked is the size of the attacked set of module
func (s *Persister) CountAttacked(module string) (int, error) {
	return s.count(attackModulePrefix(module))
}

// AddPayload stores a finding
func (s *Persister) AddPayload(payload *trawl.Payload) error {
	val, err := EncodePayload(payload)
	if err != nil {
		return errors.Wrap(err, "encoding payload")
	}

	seq, err := s.payloadSeq.Next()
	if err != nil {
		return errors.Wrap(err, "payload sequence")
	}

	wb := s.Store.NewWriteBatch()
	defer wb.Cancel()
	if err := wb.Set(seqKey(payloadPrefix, seq, ""), val); err != nil {
		return errors.Wrap(err, "writing payload")
	}
	return errors.Wrap(wb.Flush(), "flushing payload")
}

// GetPayloads yields findings in the order they were added
func (s *Persister) GetPayloads(ctx context.Context) <-chan *trawl.Payload {
	out := make(chan *trawl.Payload)
	go func() {
		defer close(out)

		err := s.iterate(ctx, payloadPrefix, nil, func(e entry) bool {
			p, err := DecodePayload(e.val)
			if err != nil {
				log.Error().Err(err).Msg("failed to decode payload")
				return true
			}
			select {
			case out <- p:
				return true
			case <-ctx.Done():
				return false
			}
		})
		if err != nil && ctx.Err() == nil {
			log.Error().Err(err).Msg("failed to read payloads")
		}
	}()
	return out
}
