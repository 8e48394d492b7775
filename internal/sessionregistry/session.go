package sessionregistry

import (
	"sync"
	"time"

	"github.com/kabsikabs/pinnokio/internal/contextctx"
	"github.com/kabsikabs/pinnokio/internal/llmclient"
)

// Session is live state for one (user_id, company_id) pair: one shared
// LLM client handle, a thread_key → Brain map, and a thread_key → cached
// Context map with a TTL.
type Session struct {
	UserID    string
	CompanyID string

	LLMClient llmclient.Client

	mu           sync.Mutex
	brains       map[string]*Brain
	threadLocks  map[string]*sync.Mutex
	contextCache map[string]cachedContext
	lastActivity time.Time
}

type cachedContext struct {
	ctx      *contextctx.Context
	cachedAt time.Time
}

func newSession(userID, companyID string, llmClient llmclient.Client) *Session {
	return &Session{
		UserID:       userID,
		CompanyID:    companyID,
		LLMClient:    llmClient,
		brains:       make(map[string]*Brain),
		threadLocks:  make(map[string]*sync.Mutex),
		contextCache: make(map[string]cachedContext),
		lastActivity: time.Now(),
	}
}

// SessionKey renders the "{user_id}:{company_id}" registry key.
func SessionKey(userID, companyID string) string {
	return userID + ":" + companyID
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastActivity = time.Now()
	s.mu.Unlock()
}

func (s *Session) idleSince() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Since(s.lastActivity)
}

// brainFor returns the existing Brain for a thread or constructs one. It
// does not itself refresh the Context; that is the Registry's job in
// GetBrain, since it depends on the Context Loader.
func (s *Session) brainFor(threadKey string) *Brain {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.brains[threadKey]
	if !ok {
		b = NewBrain(threadKey, s.LLMClient)
		s.brains[threadKey] = b
	}
	return b
}

// ThreadLock returns the mutex serializing user turns and callback
// resumptions for one thread_key. Lazily created per thread, living
// inside the Session so it is reclaimed whole on eviction.
func (s *Session) ThreadLock(threadKey string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.threadLocks[threadKey]
	if !ok {
		lock = &sync.Mutex{}
		s.threadLocks[threadKey] = lock
	}
	return lock
}

// cachedContextFor returns the cached Context for a thread if it is
// present and younger than ttl (strict `<`: a Context exactly ttl old
// counts as stale).
func (s *Session) cachedContextFor(threadKey string, ttl time.Duration) (*contextctx.Context, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.contextCache[threadKey]
	if !ok {
		return nil, false
	}
	if time.Since(entry.cachedAt) < ttl {
		return entry.ctx, true
	}
	return nil, false
}

func (s *Session) dropContext(threadKey string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.contextCache, threadKey)
}

func (s *Session) storeContext(threadKey string, ctx *contextctx.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.contextCache[threadKey] = cachedContext{ctx: ctx, cachedAt: time.Now()}
}
