package llmclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStreamServer(t *testing.T, lines ...string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		for _, line := range lines {
			_, _ = w.Write([]byte(line + "\n"))
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestGenerateParsesTextAndToolBlocks(t *testing.T) {
	srv := newStreamServer(t,
		`{"text_delta":"Looking up "}`,
		`{"text_delta":"your ERP."}`,
		`{"tool_name":"GET_USER_CONTEXT","tool_id":"call-1","tool_args":{}}`,
		`{"done":true}`,
	)

	c, err := NewHTTPClient(HTTPClientConfig{Endpoint: srv.URL, Model: "gpt-4"})
	require.NoError(t, err)

	var deltas []string
	blocks, err := c.Generate(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, nil, func(d string) {
		deltas = append(deltas, d)
	})
	require.NoError(t, err)

	require.Len(t, blocks, 2)
	assert.Equal(t, BlockText, blocks[0].Kind)
	assert.Equal(t, "Looking up your ERP.", blocks[0].Text)
	assert.Equal(t, BlockToolCall, blocks[1].Kind)
	assert.Equal(t, "GET_USER_CONTEXT", blocks[1].Tool.Name)
	assert.Equal(t, []string{"Looking up ", "your ERP."}, deltas)
}

func TestGenerateSurfacesProviderError(t *testing.T) {
	srv := newStreamServer(t, `{"error":"model overloaded"}`)

	c, err := NewHTTPClient(HTTPClientConfig{Endpoint: srv.URL, Model: "gpt-4"})
	require.NoError(t, err)

	_, err = c.Generate(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model overloaded")
}

func TestGenerateRateLimitIsRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("retry-after", "30")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	t.Cleanup(srv.Close)

	c, err := NewHTTPClient(HTTPClientConfig{Endpoint: srv.URL, Model: "gpt-4"})
	require.NoError(t, err)

	_, err = c.Generate(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, nil, nil)
	var rerr *RetryableError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, http.StatusTooManyRequests, rerr.StatusCode)
	assert.NotZero(t, rerr.RetryAfter)
}

func TestCountTokensGrowsWithContent(t *testing.T) {
	counter, err := NewTokenCounter("gpt-4")
	require.NoError(t, err)

	short := counter.CountMessages([]Message{{Role: RoleUser, Content: "hi"}})
	long := counter.CountMessages([]Message{{Role: RoleUser, Content: "a considerably longer message with many more words in it"}})
	assert.Greater(t, long, short)
	assert.Greater(t, short, 0)
}
