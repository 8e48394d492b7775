package llmclient

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// HTTPClient is a generic tool-use-capable provider adapter: it POSTs a
// provider-agnostic request to a configured endpoint and parses a
// newline-delimited JSON stream of response chunks, without committing to
// any one vendor's wire format.
type HTTPClient struct {
	endpoint    string
	apiKey      string
	model       string
	maxTokens   int
	temperature float64
	httpClient  *http.Client
	counter     *TokenCounter
}

// HTTPClientConfig configures an HTTPClient.
type HTTPClientConfig struct {
	Endpoint    string
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
}

func NewHTTPClient(cfg HTTPClientConfig) (*HTTPClient, error) {
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 4096
	}

	counter, err := NewTokenCounter(cfg.Model)
	if err != nil {
		return nil, fmt.Errorf("new token counter: %w", err)
	}

	return &HTTPClient{
		endpoint:    cfg.Endpoint,
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		counter:     counter,
	}, nil
}

type wireMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type wireTool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema,omitempty"`
}

type wireRequest struct {
	Model       string        `json:"model"`
	Messages    []wireMessage `json:"messages"`
	Tools       []wireTool    `json:"tools,omitempty"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature,omitempty"`
	Stream      bool          `json:"stream"`
}

// wireChunk is one line of the newline-delimited streaming response. A
// non-streaming call is modeled as a single chunk with Done=true.
type wireChunk struct {
	TextDelta string         `json:"text_delta,omitempty"`
	ToolName  string         `json:"tool_name,omitempty"`
	ToolID    string         `json:"tool_id,omitempty"`
	ToolArgs  map[string]any `json:"tool_args,omitempty"`
	BlockDone bool           `json:"block_done,omitempty"`
	Done      bool           `json:"done,omitempty"`
	Error     string         `json:"error,omitempty"`
}

func (c *HTTPClient) Generate(ctx context.Context, messages []Message, tools []ToolSchema, onChunk ChunkFunc) ([]ResponseBlock, error) {
	req := wireRequest{
		Model:       c.model,
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
		Stream:      onChunk != nil,
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, wireMessage{Role: string(m.Role), Content: m.Content})
	}
	for _, t := range tools {
		req.Tools = append(req.Tools, wireTool{Name: t.Name, Description: t.Description, InputSchema: t.Parameters})
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal llm request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build llm request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("llm request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		info := ParseAnthropicRateLimitHeaders(resp.Header)
		return nil, &RetryableError{StatusCode: resp.StatusCode, Message: "rate limited", RetryAfter: info.RetryAfter}
	}
	if resp.StatusCode >= 500 {
		return nil, &RetryableError{StatusCode: resp.StatusCode, Message: "provider server error"}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("llm provider returned status %d", resp.StatusCode)
	}

	return parseChunkedResponse(resp, onChunk)
}

func parseChunkedResponse(resp *http.Response, onChunk ChunkFunc) ([]ResponseBlock, error) {
	var blocks []ResponseBlock
	var textBuf strings.Builder

	flushText := func() {
		if textBuf.Len() > 0 {
			blocks = append(blocks, ResponseBlock{Kind: BlockText, Text: textBuf.String()})
			textBuf.Reset()
		}
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var chunk wireChunk
		if err := json.Unmarshal([]byte(line), &chunk); err != nil {
			return nil, fmt.Errorf("parse llm stream chunk: %w", err)
		}
		if chunk.Error != "" {
			return nil, fmt.Errorf("llm provider error: %s", chunk.Error)
		}
		if chunk.TextDelta != "" {
			textBuf.WriteString(chunk.TextDelta)
			if onChunk != nil {
				onChunk(chunk.TextDelta)
			}
		}
		if chunk.ToolName != "" {
			flushText()
			blocks = append(blocks, ResponseBlock{
				Kind: BlockToolCall,
				Tool: &ToolCall{ID: chunk.ToolID, Name: chunk.ToolName, Arguments: chunk.ToolArgs},
			})
		}
		if chunk.Done {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read llm stream: %w", err)
	}
	flushText()
	return blocks, nil
}

func (c *HTTPClient) CountTokens(messages []Message) int {
	return c.counter.CountMessages(messages)
}

func (c *HTTPClient) ModelName() string { return c.model }

var _ Client = (*HTTPClient)(nil)
