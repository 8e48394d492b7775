package streambus

import (
	"context"

	"github.com/kabsikabs/pinnokio/internal/connmode"
	"github.com/kabsikabs/pinnokio/internal/store"
)

// Bus couples persistence to broadcast: every message write goes to the
// transcript store first, then, only in UI connection mode, is fanned
// out over the Hub.
type Bus struct {
	transcript store.TranscriptStore
	hub        *Hub
	oracle     *connmode.Oracle
}

func New(transcript store.TranscriptStore, hub *Hub, oracle *connmode.Oracle) *Bus {
	return &Bus{transcript: transcript, hub: hub, oracle: oracle}
}

// StartAssistantMessage persists a new streaming assistant message and
// returns its ID, used before any chunks have arrived.
func (b *Bus) StartAssistantMessage(ctx context.Context, companyID, userID, threadKey string) (string, error) {
	id, err := b.transcript.Append(ctx, &store.Message{
		CompanyID: companyID,
		ThreadKey: threadKey,
		Role:      store.RoleAssistant,
		Content:   "",
		Status:    store.StatusStreaming,
	})
	if err != nil {
		return "", err
	}
	if b.oracle.Classify(ctx, userID) == connmode.ModeUI {
		b.hub.Broadcast(userID, Event{Type: "llm_stream_start", ThreadKey: threadKey, MessageID: id})
	}
	return id, nil
}

// AppendChunk rewrites the streaming message with accumulated content and
// forwards the incremental delta to UI subscribers.
func (b *Bus) AppendChunk(ctx context.Context, companyID, userID, threadKey, messageID, accumulated, delta string) error {
	if err := b.transcript.Rewrite(ctx, companyID, threadKey, messageID, accumulated, store.StatusStreaming); err != nil {
		return err
	}
	if b.oracle.Classify(ctx, userID) == connmode.ModeUI {
		b.hub.Broadcast(userID, Event{Type: "llm_stream_chunk", ThreadKey: threadKey, MessageID: messageID, Content: delta})
	}
	return nil
}

// CompleteAssistantMessage marks the message terminal and notifies UI
// subscribers the stream has ended.
func (b *Bus) CompleteAssistantMessage(ctx context.Context, companyID, userID, threadKey, messageID, finalContent string) error {
	if err := b.transcript.Rewrite(ctx, companyID, threadKey, messageID, finalContent, store.StatusComplete); err != nil {
		return err
	}
	if b.oracle.Classify(ctx, userID) == connmode.ModeUI {
		b.hub.Broadcast(userID, Event{Type: "llm_stream_complete", ThreadKey: threadKey, MessageID: messageID})
	}
	return nil
}

// PersistUserMessage records an incoming user message (always persisted,
// never itself broadcast: the client that sent it already has it).
func (b *Bus) PersistUserMessage(ctx context.Context, companyID, threadKey, content string) error {
	_, err := b.transcript.Append(ctx, &store.Message{
		CompanyID: companyID,
		ThreadKey: threadKey,
		Role:      store.RoleUser,
		Content:   content,
		Status:    store.StatusComplete,
	})
	return err
}

// PersistAssistantMessage writes a complete assistant message directly,
// without a streaming phase, used on the BACKEND connection-mode path
// where no chunks are ever broadcast.
func (b *Bus) PersistAssistantMessage(ctx context.Context, companyID, threadKey, content string) error {
	_, err := b.transcript.Append(ctx, &store.Message{
		CompanyID: companyID,
		ThreadKey: threadKey,
		Role:      store.RoleAssistant,
		Content:   content,
		Status:    store.StatusComplete,
	})
	return err
}

// PersistErrorMessage writes a terminal error-status assistant message,
// used when the Agent Loop ends in ERROR_FATAL.
func (b *Bus) PersistErrorMessage(ctx context.Context, companyID, userID, threadKey, explanation string) error {
	id, err := b.transcript.Append(ctx, &store.Message{
		CompanyID: companyID,
		ThreadKey: threadKey,
		Role:      store.RoleAssistant,
		Content:   explanation,
		Status:    store.StatusError,
	})
	if err != nil {
		return err
	}
	if b.oracle.Classify(ctx, userID) == connmode.ModeUI {
		b.hub.Broadcast(userID, Event{Type: "llm_stream_complete", ThreadKey: threadKey, MessageID: id, Status: "error"})
	}
	return nil
}
