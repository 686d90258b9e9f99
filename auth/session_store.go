package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"sync"
	"time"
)

// ErrSessionNotFound is returned for unknown, destroyed and expired sessions.
var ErrSessionNotFound = errors.New("session not found")

// SessionStore persists session id -> user id with an inactivity expiry.
// Implementations enforce expiry; the Manager never sees an expired session.
type SessionStore interface {
	// Save records a new session that expires ttl from now.
	Save(ctx context.Context, sessionID string, userID uint, ttl time.Duration) error
	// Lookup returns the user of a live session or ErrSessionNotFound.
	Lookup(ctx context.Context, sessionID string) (uint, error)
	// Touch pushes the expiry of a live session to ttl from now.
	Touch(ctx context.Context, sessionID string, ttl time.Duration) error
	// Destroy removes a session. Destroying an unknown session is not an error.
	Destroy(ctx context.Context, sessionID string) error
}

// sessionKey is what stores persist instead of the raw session id.
func sessionKey(sessionID string) string {
	h := sha256.Sum256([]byte(sessionID))
	return hex.EncodeToString(h[:])
}

type memoryEntry struct {
	userID    uint
	expiresAt time.Time
}

// MemorySessionStore keeps sessions in process memory. It suits a single instance and tests.
type MemorySessionStore struct {
	mu       sync.Mutex
	sessions map[string]memoryEntry
	now      func() time.Time
}

// NewMemorySessionStore creates an empty in-memory store.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{sessions: map[string]memoryEntry{}, now: time.Now}
}

func (m *MemorySessionStore) Save(_ context.Context, sessionID string, userID uint, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sweepLocked()
	m.sessions[sessionKey(sessionID)] = memoryEntry{userID: userID, expiresAt: m.now().Add(ttl)}
	return nil
}

func (m *MemorySessionStore) Lookup(_ context.Context, sessionID string) (uint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := sessionKey(sessionID)
	entry, ok := m.sessions[key]
	if !ok {
		return 0, ErrSessionNotFound
	}
	if !m.now().Before(entry.expiresAt) {
		delete(m.sessions, key)
		return 0, ErrSessionNotFound
	}
	return entry.userID, nil
}

func (m *MemorySessionStore) Touch(_ context.Context, sessionID string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := sessionKey(sessionID)
	entry, ok := m.sessions[key]
	if !ok || !m.now().Before(entry.expiresAt) {
		return ErrSessionNotFound
	}
	entry.expiresAt = m.now().Add(ttl)
	m.sessions[key] = entry
	return nil
}

func (m *MemorySessionStore) Destroy(_ context.Context, sessionID string) error {
	m.mu.Lock()
	delete(m.sessions, sessionKey(sessionID))
	m.mu.Unlock()
	return nil
}

func (m *MemorySessionStore) sweepLocked() {
	now := m.now()
	for key, entry := range m.sessions {
		if !now.Before(entry.expiresAt) {
			delete(m.sessions, key)
		}
	}
}
