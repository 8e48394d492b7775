package sessionregistry

import (
	"sync"

	"github.com/kabsikabs/pinnokio/internal/llmclient"
)

// Brain is the per-thread live state: conversation history, a reference
// to (not ownership of) the Session's LLM client, and the set of
// currently active LPT task IDs.
type Brain struct {
	ThreadKey string

	// LLM is the Session's shared client; the Brain references it but the
	// Session owns it.
	LLM llmclient.Client

	mu             sync.Mutex
	history        []llmclient.Message
	activeLPTTasks map[string]struct{}
}

func NewBrain(threadKey string, llm llmclient.Client) *Brain {
	return &Brain{
		ThreadKey:      threadKey,
		LLM:            llm,
		activeLPTTasks: make(map[string]struct{}),
	}
}

// History returns a copy of the conversation history accumulated so far.
func (b *Brain) History() []llmclient.Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]llmclient.Message, len(b.history))
	copy(out, b.history)
	return out
}

// Append adds a message to the thread's history.
func (b *Brain) Append(msg llmclient.Message) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.history = append(b.history, msg)
}

// Flush clears the conversation history on MISSION_COMPLETED or
// ERROR_FATAL. The active-task set is deliberately left untouched: a
// flushed Brain can still carry unresolved LPTs whose callbacks will
// reopen it.
func (b *Brain) Flush() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.history = nil
}

// Seed replaces history with a single seed message, used by token-budget
// self-healing after summarization.
func (b *Brain) Seed(msg llmclient.Message) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.history = []llmclient.Message{msg}
}

// AddActiveTask records a dispatched LPT's task_id as in flight.
func (b *Brain) AddActiveTask(taskID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.activeLPTTasks[taskID] = struct{}{}
}

// RemoveActiveTask clears a task_id once its callback has been processed.
func (b *Brain) RemoveActiveTask(taskID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.activeLPTTasks, taskID)
}

// IsSuspended reports whether the Brain has any LPT in flight.
func (b *Brain) IsSuspended() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.activeLPTTasks) > 0
}

// ActiveTaskCount reports the number of in-flight LPTs, for diagnostics.
func (b *Brain) ActiveTaskCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.activeLPTTasks)
}
