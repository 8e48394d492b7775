package wsserver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kabsikabs/pinnokio/internal/agentloop"
	"github.com/kabsikabs/pinnokio/internal/connmode"
	"github.com/kabsikabs/pinnokio/internal/contextctx"
	"github.com/kabsikabs/pinnokio/internal/llmclient"
	"github.com/kabsikabs/pinnokio/internal/sessionregistry"
	"github.com/kabsikabs/pinnokio/internal/store"
	"github.com/kabsikabs/pinnokio/internal/streambus"
	"github.com/kabsikabs/pinnokio/internal/tooldispatch"
)

type terminatingClient struct{ conclusion string }

func (c terminatingClient) Generate(context.Context, []llmclient.Message, []llmclient.ToolSchema, llmclient.ChunkFunc) ([]llmclient.ResponseBlock, error) {
	return []llmclient.ResponseBlock{{
		Kind: llmclient.BlockToolCall,
		Tool: &llmclient.ToolCall{ID: "1", Name: tooldispatch.TerminateTaskName, Arguments: map[string]any{"summary": c.conclusion}},
	}}, nil
}
func (terminatingClient) CountTokens([]llmclient.Message) int { return 10 }
func (terminatingClient) ModelName() string                   { return "terminating" }

type noopSummarizer struct{}

func (noopSummarizer) Summarize(context.Context, []llmclient.Message) (string, error) { return "", nil }

func TestChatMessageRoundTripPersistsReply(t *testing.T) {
	docs, err := store.Open(store.Config{Dialect: "sqlite", DSN: "file:wsserver_test?mode=memory&cache=shared"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = docs.Close() })

	loader := contextctx.NewLoader(docs)
	registry := sessionregistry.New(sessionregistry.Config{SweepInterval: time.Hour}, loader,
		func(string, string) (llmclient.Client, error) { return terminatingClient{conclusion: "You use Qonto."}, nil }, nil)
	t.Cleanup(registry.Close)

	toolReg := tooldispatch.NewRegistry()
	loop := agentloop.New(agentloop.Config{}, toolReg, tooldispatch.NewDispatcher(toolReg, nil), noopSummarizer{}, nil)

	transcripts := store.NewInMemoryTranscriptStore()
	ephemeral := store.NewInMemoryEphemeralStore()
	oracle := connmode.NewOracle(ephemeral)
	hub := streambus.NewHub(nil)
	bus := streambus.New(transcripts, hub, oracle)

	server := New(hub, nil, oracle, registry, loop, bus, nil, nil)
	srv := httptest.NewServer(server.Routes())
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(map[string]any{
		"type": "chat.user_message",
		"payload": map[string]any{
			"user_id": "u1", "company_id": "c1", "thread_key": "t1", "content": "What ERP do I use?",
		},
	}))

	require.Eventually(t, func() bool {
		msgs, err := transcripts.List(context.Background(), "c1", "t1")
		if err != nil || len(msgs) < 2 {
			return false
		}
		last := msgs[len(msgs)-1]
		return last.Role == store.RoleAssistant && last.Status == store.StatusComplete
	}, 3*time.Second, 20*time.Millisecond)

	msgs, err := transcripts.List(context.Background(), "c1", "t1")
	require.NoError(t, err)
	assert.Equal(t, store.RoleUser, msgs[0].Role)
	assert.Equal(t, "What ERP do I use?", msgs[0].Content)
	assert.Equal(t, "You use Qonto.", msgs[len(msgs)-1].Content)
}

func TestOrchestrateInitEmitsPhaseEvents(t *testing.T) {
	docs, err := store.Open(store.Config{Dialect: "sqlite", DSN: "file:wsserver_dash?mode=memory&cache=shared"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = docs.Close() })

	ctx := context.Background()
	require.NoError(t, docs.UpsertClientRecord(ctx, &store.ClientRecord{UserID: "u1", ClientUUID: "cu-1"}))
	require.NoError(t, docs.UpsertMandate(ctx, &store.MandateRecord{
		MandateID: "m1", ClientUUID: "cu-1", ContactSpaceID: "c1",
		MandatePath: "mandates/acme", CompanyName: "Acme SA",
	}))

	loader := contextctx.NewLoader(docs)
	registry := sessionregistry.New(sessionregistry.Config{SweepInterval: time.Hour}, loader,
		func(string, string) (llmclient.Client, error) { return terminatingClient{}, nil }, nil)
	t.Cleanup(registry.Close)

	ephemeral := store.NewInMemoryEphemeralStore()
	oracle := connmode.NewOracle(ephemeral)
	hub := streambus.NewHub(nil)
	bus := streambus.New(store.NewInMemoryTranscriptStore(), hub, oracle)

	server := New(hub, nil, oracle, registry, nil, bus, nil, nil)
	srv := httptest.NewServer(server.Routes())
	t.Cleanup(srv.Close)

	// subscribe a broadcast listener for u1 directly on the hub (in
	// production the auth handshake performs this registration)
	subSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		up := websocket.Upgrader{}
		c, err := up.Upgrade(w, r, nil)
		require.NoError(t, err)
		hub.Register("u1", c)
	}))
	t.Cleanup(subSrv.Close)
	subConn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(subSrv.URL, "http")+"/", nil)
	require.NoError(t, err)
	defer subConn.Close()
	require.Eventually(t, func() bool { return hub.HasSubscribers("u1") }, time.Second, 10*time.Millisecond)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(map[string]any{
		"type": "dashboard.orchestrate_init",
		"payload": map[string]any{
			"user_id": "u1", "company_id": "c1", "thread_key": "t1",
		},
	}))

	var first, second streambus.Event
	require.NoError(t, subConn.SetReadDeadline(time.Now().Add(3*time.Second)))
	require.NoError(t, subConn.ReadJSON(&first))
	require.NoError(t, subConn.ReadJSON(&second))

	assert.Equal(t, "phase_start", first.Type)
	assert.Equal(t, "phase_complete", second.Type)
	assert.Equal(t, "ok", second.Status)
	assert.Contains(t, second.Content, "mandates/acme")
}
