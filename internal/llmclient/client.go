// Package llmclient defines the LLM provider port consumed by the Agent
// Loop: tool-use-capable turn generation, optional chunked streaming and
// token accounting, independent of any one vendor's wire protocol.
package llmclient

import "context"

// Role identifies the speaker of a Message passed to the provider.
type Role string

const (
	RoleSystem     Role = "system"
	RoleUser       Role = "user"
	RoleAssistant  Role = "assistant"
	RoleToolResult Role = "tool_result"
)

// Message is one turn of conversation sent to the provider.
type Message struct {
	Role    Role
	Content string
}

// ToolSchema describes one callable tool as presented to the LLM: only
// its name, description and parameters, never credentials or dispatch
// routing data.
type ToolSchema struct {
	Name        string
	Description string
	Parameters  map[string]any // JSON schema
}

// ToolCall is one tool invocation the model asked for in a turn.
type ToolCall struct {
	ID        string
	Name      string
	Arguments map[string]any
}

// BlockKind distinguishes the two response block kinds the Agent Loop
// classifies each turn.
type BlockKind string

const (
	BlockText     BlockKind = "text_output"
	BlockToolCall BlockKind = "tool_output"
)

// ResponseBlock is one block in a turn's response.
type ResponseBlock struct {
	Kind BlockKind
	Text string
	Tool *ToolCall
}

// ChunkFunc receives incremental text as the provider streams a turn. It is
// only invoked in UI connection mode; nil disables streaming.
type ChunkFunc func(delta string)

// Client is the port the Agent Loop drives one turn at a time.
type Client interface {
	// Generate runs one LLM turn in tool-use mode and returns its response
	// blocks in emission order. onChunk, if non-nil, is invoked with
	// incremental text as it streams.
	Generate(ctx context.Context, messages []Message, tools []ToolSchema, onChunk ChunkFunc) ([]ResponseBlock, error)

	// CountTokens returns the total token count for the given messages,
	// used by the Agent Loop's token-budget self-healing.
	CountTokens(messages []Message) int

	// ModelName identifies the model backing this client, for logging.
	ModelName() string
}
