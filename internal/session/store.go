package session

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"sync"
	"time"
)

// tokenBytes is the entropy per session token. 24 random bytes make
// collisions with an active token negligible, so Issue does not check.
const tokenBytes = 24

// Store owns all active admin sessions. A token is valid iff it is present
// in the store and its expiry is in the future; nothing outside the store
// touches the map.
type Store struct {
	mu       sync.Mutex
	sessions map[string]time.Time // token -> expiry
	ttl      time.Duration

	// now is replaceable in tests to simulate clock advance.
	now func() time.Time
}

// NewStore creates an empty session store with the given token lifetime.
func NewStore(ttl time.Duration) *Store {
	return &Store{
		sessions: make(map[string]time.Time),
		ttl:      ttl,
		now:      time.Now,
	}
}

// TTL returns the configured session lifetime.
func (s *Store) TTL() time.Duration {
	return s.ttl
}

// Issue mints a new token and stores it with an expiry of now + TTL.
func (s *Store) Issue() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate session token: %w", err)
	}
	token := base64.RawURLEncoding.EncodeToString(buf)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[token] = s.now().Add(s.ttl)
	return token, nil
}

// Validate reports whether the token is present and unexpired. An expired
// token found in the store is removed before returning false.
func (s *Store) Validate(token string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	expiry, ok := s.sessions[token]
	if !ok {
		return false
	}

	if expiry.Before(s.now()) {
		delete(s.sessions, token)
		return false
	}

	return true
}

// Sweep removes every expired session. It is cheap and idempotent; the HTTP
// handlers call it at the start of login and check operations.
func (s *Store) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for token, expiry := range s.sessions {
		if expiry.Before(now) {
			delete(s.sessions, token)
			removed++
		}
	}

	return removed
}

// Active returns the number of stored sessions, expired entries included
// until the next sweep touches them.
func (s *Store) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
