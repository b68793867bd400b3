// Package session holds DAAP login sessions and the trackpad keys they
// negotiate.
package session

import (
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"
	"sync"
)

// idSpace is the number of distinct session ids (24 bits).
const idSpace = 1 << 24

// maxCreateAttempts bounds retries when a random id is already live.
const maxCreateAttempts = 64

// ErrExhausted indicates no unused session id could be drawn.
var ErrExhausted = errors.New("session: no free session id")

// Session is the state negotiated by one logged-in client.
type Session struct {
	ID string
	// Cmte is the raw port-info string reported by the client.
	Cmte string
	// Negotiated is set once TrackpadKey and StartBytes are valid.
	Negotiated  bool
	TrackpadKey uint32
	StartBytes  [4]byte
}

// Store holds live sessions keyed by id. All reads return copies.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	randomID func() (uint32, error)
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		sessions: make(map[string]*Session),
		randomID: randomSessionID,
	}
}

// Create allocates a fresh id and stores an empty session for it.
func (s *Store) Create() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for attempt := 0; attempt < maxCreateAttempts; attempt++ {
		n, err := s.randomID()
		if err != nil {
			return "", fmt.Errorf("generate session id: %w", err)
		}
		id := strconv.FormatUint(uint64(n), 10)
		if _, exists := s.sessions[id]; exists {
			continue
		}
		s.sessions[id] = &Session{ID: id}
		return id, nil
	}
	return "", ErrExhausted
}

// Get returns a copy of the session.
func (s *Store) Get(id string) (Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return Session{}, false
	}
	return *sess, true
}

// Update applies fn to the session atomically. It reports false when the
// session does not exist.
func (s *Store) Update(id string, fn func(*Session)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return false
	}
	fn(sess)
	sess.ID = id
	return true
}

// Delete removes the session if present.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// MatchStartBytes returns the first negotiated session whose expected start
// bytes equal prefix. Sessions are scanned in id order so the choice is
// stable when fingerprints collide.
func (s *Store) MatchStartBytes(prefix [4]byte) (Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		match Session
		found bool
	)
	for _, sess := range s.sessions {
		if !sess.Negotiated || sess.StartBytes != prefix {
			continue
		}
		if !found || lessID(sess.ID, match.ID) {
			match, found = *sess, true
		}
	}
	return match, found
}

func lessID(a, b string) bool {
	if len(a) != len(b) {
		return len(a) < len(b)
	}
	return a < b
}

func randomSessionID() (uint32, error) {
	var buf [4]byte
	if _, err := rand.Read(buf[:3]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf[:]) % idSpace, nil
}
