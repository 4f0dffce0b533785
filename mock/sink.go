package mock

import (
	"sync"

	"gitlab.com/trawler/trawl"
)

// FindingSink collects payloads reported by modules
type FindingSink struct {
	lock sync.Mutex

	AddPayloadFn     func(payload *trawl.Payload) error
	AddPayloadCalled bool
	Payloads         []*trawl.Payload
}

// AddPayload to the sink
func (s *FindingSink) AddPayload(payload *trawl.Payload) error {
	s.lock.Lock()
	s.AddPayloadCalled = true
	s.Payloads = append(s.Payloads, payload)
	s.lock.Unlock()
	return s.AddPayloadFn(payload)
}

// Found payloads so far
func (s *FindingSink) Found() []*trawl.Payload {
	s.lock.Lock()
	defer s.lock.Unlock()
	return append([]*trawl.Payload(nil), s.Payloads...)
}

func MakeMockFindingSink() *FindingSink {
	s := &FindingSink{}
	s.AddPayloadFn = func(payload *trawl.Payload) error {
		return nil
	}
	return s
}
