package store

import (
	"context"
	"sync"
	"time"
)

// Heartbeat is the value stored at registry:{user_id}.
type Heartbeat struct {
	UserID        string
	LastHeartbeat time.Time
}

// AuthSession is the value stored at session:{user_id}:{session_id},
// created on auth.firebase_token, with a TTL of 3600s.
type AuthSession struct {
	UserID    string
	SessionID string
	Token     string
	CreatedAt time.Time
}

// EphemeralStore is the Redis-like key/value port backing heartbeats and
// short-lived auth sessions. Production deployments back it with Redis
// or similar.
type EphemeralStore interface {
	SetHeartbeat(ctx context.Context, userID string) error
	GetHeartbeat(ctx context.Context, userID string) (*Heartbeat, bool)

	CreateAuthSession(ctx context.Context, sess *AuthSession, ttl time.Duration) error
	GetAuthSession(ctx context.Context, userID, sessionID string) (*AuthSession, bool)
}

type ttlEntry struct {
	value     any
	expiresAt time.Time // zero means no expiry
}

// InMemoryEphemeralStore is a process-local EphemeralStore.
type InMemoryEphemeralStore struct {
	mu      sync.Mutex
	entries map[string]ttlEntry
	now     func() time.Time
}

func NewInMemoryEphemeralStore() *InMemoryEphemeralStore {
	return &InMemoryEphemeralStore{
		entries: make(map[string]ttlEntry),
		now:     time.Now,
	}
}

func (s *InMemoryEphemeralStore) expired(e ttlEntry) bool {
	return !e.expiresAt.IsZero() && !e.expiresAt.After(s.now())
}

func (s *InMemoryEphemeralStore) SetHeartbeat(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries["registry:"+userID] = ttlEntry{
		value: &Heartbeat{UserID: userID, LastHeartbeat: s.now()},
	}
	return nil
}

func (s *InMemoryEphemeralStore) GetHeartbeat(_ context.Context, userID string) (*Heartbeat, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries["registry:"+userID]
	if !ok || s.expired(e) {
		return nil, false
	}
	hb, ok := e.value.(*Heartbeat)
	return hb, ok
}

func (s *InMemoryEphemeralStore) CreateAuthSession(_ context.Context, sess *AuthSession, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := "session:" + sess.UserID + ":" + sess.SessionID
	var expiry time.Time
	if ttl > 0 {
		expiry = s.now().Add(ttl)
	}
	s.entries[key] = ttlEntry{value: sess, expiresAt: expiry}
	return nil
}

func (s *InMemoryEphemeralStore) GetAuthSession(_ context.Context, userID, sessionID string) (*AuthSession, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries["session:"+userID+":"+sessionID]
	if !ok || s.expired(e) {
		return nil, false
	}
	sess, ok := e.value.(*AuthSession)
	return sess, ok
}

var _ EphemeralStore = (*InMemoryEphemeralStore)(nil)
