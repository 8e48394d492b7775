package sessionregistry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/kabsikabs/pinnokio/internal/contextctx"
	"github.com/kabsikabs/pinnokio/internal/llmclient"
	"github.com/kabsikabs/pinnokio/internal/observability"
)

// Config configures the Registry's cache and eviction timing.
type Config struct {
	// ContextTTL bounds how long a cached Context is served before the
	// Context Loader is consulted again (default 300s).
	ContextTTL time.Duration
	// IdleTimeout evicts a Session that has had no activity for this long.
	IdleTimeout time.Duration
	// SweepInterval controls how often the background eviction sweep runs.
	SweepInterval time.Duration
}

func (c *Config) setDefaults() {
	if c.ContextTTL == 0 {
		c.ContextTTL = 300 * time.Second
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = 30 * time.Minute
	}
	if c.SweepInterval == 0 {
		c.SweepInterval = time.Minute
	}
}

// NewLLMClient constructs the single LLM client handle a Session shares
// across all of its Brains.
type NewLLMClient func(userID, companyID string) (llmclient.Client, error)

// Registry is the singleton in-process map from session_key to Session,
// exposing get-or-create, brain lookup and eviction.
type Registry struct {
	cfg    Config
	loader *contextctx.Loader
	newLLM NewLLMClient
	logger *slog.Logger

	mu       sync.Mutex
	sessions map[string]*Session

	stopSweep chan struct{}
}

func New(cfg Config, loader *contextctx.Loader, newLLM NewLLMClient, logger *slog.Logger) *Registry {
	cfg.setDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{
		cfg:       cfg,
		loader:    loader,
		newLLM:    newLLM,
		logger:    logger,
		sessions:  make(map[string]*Session),
		stopSweep: make(chan struct{}),
	}
	go r.sweepLoop()
	return r
}

// GetOrCreate is an atomic upsert that also constructs the per-session
// LLM client on first creation.
func (r *Registry) GetOrCreate(userID, companyID string) (*Session, error) {
	key := SessionKey(userID, companyID)

	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.sessions[key]; ok {
		s.touch()
		return s, nil
	}

	client, err := r.newLLM(userID, companyID)
	if err != nil {
		return nil, err
	}
	s := newSession(userID, companyID, client)
	r.sessions[key] = s
	observability.ActiveSessions.Set(float64(len(r.sessions)))
	r.logger.Debug("session created", "session_key", key)
	return s, nil
}

// GetBrain returns the existing Brain for a thread or constructs one, and
// always refreshes the Context via the Context Loader (cache-respecting).
func (r *Registry) GetBrain(ctx context.Context, s *Session, threadKey string) (*Brain, *contextctx.Context, error) {
	s.touch()
	brain := s.brainFor(threadKey)

	loaded, err := r.contextFor(ctx, s, threadKey)
	if err != nil {
		return brain, nil, err
	}
	return brain, loaded, nil
}

// ResolveContext returns the cache-respecting Context for a thread,
// creating the Session if needed. Tool handlers and the LPT client use
// this as their context port so dispatched payloads see the same cached
// Context the Agent Loop does.
func (r *Registry) ResolveContext(ctx context.Context, userID, companyID, threadKey string) (*contextctx.Context, error) {
	s, err := r.GetOrCreate(userID, companyID)
	if err != nil {
		return nil, err
	}
	return r.contextFor(ctx, s, threadKey)
}

func (r *Registry) contextFor(ctx context.Context, s *Session, threadKey string) (*contextctx.Context, error) {
	if cached, ok := s.cachedContextFor(threadKey, r.cfg.ContextTTL); ok {
		return cached, nil
	}
	loaded, err := r.loader.Load(ctx, s.UserID, s.CompanyID)
	if err != nil {
		return nil, err
	}
	s.storeContext(threadKey, loaded)
	return loaded, nil
}

// InvalidateContext drops a thread's cached Context so the next use
// reloads it, used when the user switches company or edits business
// config.
func (r *Registry) InvalidateContext(userID, companyID, threadKey string) {
	r.mu.Lock()
	s, ok := r.sessions[SessionKey(userID, companyID)]
	r.mu.Unlock()
	if ok {
		s.dropContext(threadKey)
	}
}

// Evict removes the session without cancelling in-flight LPT tasks,
// which survive via the Task Record path.
func (r *Registry) Evict(sessionKey string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, sessionKey)
	observability.ActiveSessions.Set(float64(len(r.sessions)))
}

// Lookup returns an existing Session without creating one, used by the
// Callback Resumer to decide whether a Session must be recreated.
func (r *Registry) Lookup(sessionKey string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[sessionKey]
	return s, ok
}

// Close stops the background eviction sweep.
func (r *Registry) Close() {
	close(r.stopSweep)
}

func (r *Registry) sweepLoop() {
	ticker := time.NewTicker(r.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			r.sweepIdle()
		case <-r.stopSweep:
			return
		}
	}
}

func (r *Registry) sweepIdle() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for key, s := range r.sessions {
		if s.idleSince() >= r.cfg.IdleTimeout {
			delete(r.sessions, key)
			r.logger.Debug("session evicted on idle timeout", "session_key", key)
		}
	}
	observability.ActiveSessions.Set(float64(len(r.sessions)))
}
