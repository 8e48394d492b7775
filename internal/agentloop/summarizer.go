package agentloop

import (
	"context"
	"fmt"
	"strings"

	"github.com/kabsikabs/pinnokio/internal/llmclient"
)

// LLMSummarizer condenses a Brain's history via a plain model call with
// no tool schema, the single round-trip the self-healing path needs.
type LLMSummarizer struct {
	client llmclient.Client
}

func NewLLMSummarizer(client llmclient.Client) *LLMSummarizer {
	return &LLMSummarizer{client: client}
}

func (s *LLMSummarizer) Summarize(ctx context.Context, history []llmclient.Message) (string, error) {
	var transcript strings.Builder
	for _, m := range history {
		fmt.Fprintf(&transcript, "%s: %s\n", m.Role, m.Content)
	}

	prompt := []llmclient.Message{
		{Role: llmclient.RoleSystem, Content: "Summarize the conversation below concisely, preserving task state, decisions and unresolved items. Output only the summary."},
		{Role: llmclient.RoleUser, Content: transcript.String()},
	}

	blocks, err := s.client.Generate(ctx, prompt, nil, nil)
	if err != nil {
		return "", fmt.Errorf("summarize conversation: %w", err)
	}

	var out strings.Builder
	for _, b := range blocks {
		if b.Kind == llmclient.BlockText {
			out.WriteString(b.Text)
		}
	}
	return out.String(), nil
}

var _ Summarizer = (*LLMSummarizer)(nil)
