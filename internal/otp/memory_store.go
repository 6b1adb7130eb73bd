package otp

import (
	"context"
	"sync"
	"time"
)

type memoryStore struct {
	mu    sync.Mutex
	codes []Code
}

// NewMemoryStore builds an in-memory code store.
func NewMemoryStore() Store {
	return &memoryStore{}
}

func (s *memoryStore) Issue(_ context.Context, code Code) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.codes {
		if s.codes[i].Scope == code.Scope && s.codes[i].Identifier == code.Identifier {
			s.codes[i].Used = true
		}
	}
	s.codes = append(s.codes, code)
	return nil
}

func (s *memoryStore) Consume(_ context.Context, scope, identifier, digest string, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.codes {
		c := &s.codes[i]
		if c.Scope == scope && c.Identifier == identifier && c.Digest == digest && c.Live(now) {
			c.Used = true
			return true, nil
		}
	}
	return false, nil
}
