package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrMessageNotFound is returned when a transcript rewrite targets an
// unknown message ID.
var ErrMessageNotFound = errors.New("transcript message not found")

// MessageRole tags the author of a transcript message.
type MessageRole string

const (
	RoleUser          MessageRole = "user"
	RoleAssistant     MessageRole = "assistant"
	RoleToolResult    MessageRole = "tool_result"
	RoleSystemSummary MessageRole = "system_summary"
)

// MessageStatus tracks the streaming lifecycle of an assistant message.
type MessageStatus string

const (
	StatusStreaming MessageStatus = "streaming"
	StatusComplete  MessageStatus = "complete"
	StatusError     MessageStatus = "error"
)

// Message is one entry in a thread's transcript, keyed by
// {company_id}/job_chats/{thread_key}/messages/{auto_id}.
type Message struct {
	ID        string
	CompanyID string
	ThreadKey string
	Role      MessageRole
	Content   string
	Status    MessageStatus
	Timestamp time.Time
}

// TranscriptStore is the realtime transcript store port. Messages are
// append-only; a streaming assistant message may be rewritten in place
// until it reaches a terminal status. Ordering is guaranteed by
// monotonically increasing auto-IDs.
type TranscriptStore interface {
	// Append writes a brand-new message and returns its assigned ID.
	Append(ctx context.Context, msg *Message) (string, error)

	// Rewrite updates the content/status of an existing message in place.
	// Used while streaming assistant chunks.
	Rewrite(ctx context.Context, companyID, threadKey, id, content string, status MessageStatus) error

	// List returns all messages for a thread in append order.
	List(ctx context.Context, companyID, threadKey string) ([]*Message, error)
}

// InMemoryTranscriptStore is a process-local TranscriptStore. Production
// deployments back this port with their managed realtime store.
type InMemoryTranscriptStore struct {
	mu       sync.RWMutex
	messages map[string][]*Message // key: companyID+"/"+threadKey
	byID     map[string]*Message
	seq      int64
}

func NewInMemoryTranscriptStore() *InMemoryTranscriptStore {
	return &InMemoryTranscriptStore{
		messages: make(map[string][]*Message),
		byID:     make(map[string]*Message),
	}
}

func threadKeyOf(companyID, threadKey string) string {
	return companyID + "/" + threadKey
}

func (s *InMemoryTranscriptStore) Append(_ context.Context, msg *Message) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	id := msg.ID
	if id == "" {
		id = formatAutoID(s.seq)
	}
	cp := *msg
	cp.ID = id
	if cp.Timestamp.IsZero() {
		cp.Timestamp = time.Now()
	}

	key := threadKeyOf(msg.CompanyID, msg.ThreadKey)
	s.messages[key] = append(s.messages[key], &cp)
	s.byID[key+"/"+id] = &cp
	return id, nil
}

func (s *InMemoryTranscriptStore) Rewrite(_ context.Context, companyID, threadKey, id, content string, status MessageStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := threadKeyOf(companyID, threadKey)
	msg, ok := s.byID[key+"/"+id]
	if !ok {
		return ErrMessageNotFound
	}
	msg.Content = content
	msg.Status = status
	return nil
}

func (s *InMemoryTranscriptStore) List(_ context.Context, companyID, threadKey string) ([]*Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	key := threadKeyOf(companyID, threadKey)
	out := make([]*Message, len(s.messages[key]))
	copy(out, s.messages[key])
	return out, nil
}

// formatAutoID zero-pads so lexical and numeric ordering stay aligned.
func formatAutoID(seq int64) string {
	return fmt.Sprintf("msg_%016d", seq)
}

var _ TranscriptStore = (*InMemoryTranscriptStore)(nil)
