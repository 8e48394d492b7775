package llmclient

import (
	"fmt"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// TokenCounter provides token accounting for the Agent Loop's token-budget
// self-healing: a cached tiktoken encoding plus a per-message overhead
// count.
type TokenCounter struct {
	encoding *tiktoken.Tiktoken
	mu       sync.RWMutex
}

var (
	encodingCache = make(map[string]*tiktoken.Tiktoken)
	cacheMu       sync.RWMutex
)

// NewTokenCounter returns a counter for the given model, falling back to
// cl100k_base when the model isn't recognized by tiktoken.
func NewTokenCounter(model string) (*TokenCounter, error) {
	cacheMu.RLock()
	cached, ok := encodingCache[model]
	cacheMu.RUnlock()
	if ok {
		return &TokenCounter{encoding: cached}, nil
	}

	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return nil, fmt.Errorf("get encoding: %w", err)
		}
	}

	cacheMu.Lock()
	encodingCache[model] = enc
	cacheMu.Unlock()

	return &TokenCounter{encoding: enc}, nil
}

// CountMessages returns the total token count for the conversation so far,
// including per-message role overhead, per OpenAI's counting convention.
func (tc *TokenCounter) CountMessages(messages []Message) int {
	tc.mu.RLock()
	defer tc.mu.RUnlock()

	const tokensPerMessage = 3
	total := 0
	for _, m := range messages {
		total += tokensPerMessage
		total += len(tc.encoding.Encode(string(m.Role), nil, nil))
		total += len(tc.encoding.Encode(m.Content, nil, nil))
	}
	total += 3 // reply priming
	return total
}
