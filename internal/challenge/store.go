// Package challenge holds the server side of a pending WebAuthn ceremony.
// The challenge string issued in an options payload is also the key of a
// time-limited record carrying the library's session data; verification
// consumes the record, so a challenge can be spent exactly once.
package challenge

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/go-webauthn/webauthn/webauthn"
)

// ErrNotFound covers unknown, expired, and already-consumed challenges alike.
var ErrNotFound = errors.New("challenge not found")

type Store interface {
	// Save records the ceremony state under its challenge for ttl.
	Save(ctx context.Context, challenge string, data *webauthn.SessionData, ttl time.Duration) error
	// Consume returns the ceremony state and deletes it in the same step.
	Consume(ctx context.Context, challenge string) (*webauthn.SessionData, error)
}

type memoryEntry struct {
	data      webauthn.SessionData
	expiresAt time.Time
}

// MemoryStore is the single-process default. Expired entries are swept
// lazily on Save.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	sweepAt time.Time
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		sweepAt: time.Now().Add(time.Minute),
		now:     time.Now,
	}
}

func (s *MemoryStore) Save(_ context.Context, challenge string, data *webauthn.SessionData, ttl time.Duration) error {
	if challenge == "" || data == nil {
		return errors.New("challenge and session data are required")
	}
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	if now.After(s.sweepAt) {
		for k, e := range s.entries {
			if now.After(e.expiresAt) {
				delete(s.entries, k)
			}
		}
		s.sweepAt = now.Add(time.Minute)
	}
	s.entries[challenge] = memoryEntry{data: *data, expiresAt: now.Add(ttl)}
	return nil
}

func (s *MemoryStore) Consume(_ context.Context, challenge string) (*webauthn.SessionData, error) {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[challenge]
	if !ok {
		return nil, ErrNotFound
	}
	delete(s.entries, challenge)
	if now.After(entry.expiresAt) {
		return nil, ErrNotFound
	}
	data := entry.data
	return &data, nil
}
