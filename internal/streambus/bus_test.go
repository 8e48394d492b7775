package streambus

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

	"github.com/kabsikabs/pinnokio/internal/connmode"
	"github.com/kabsikabs/pinnokio/internal/store"
)

func newBus(t *testing.T) (*Bus, *store.InMemoryTranscriptStore, *Hub) {
	t.Helper()
	transcripts := store.NewInMemoryTranscriptStore()
	oracle := connmode.NewOracle(store.NewInMemoryEphemeralStore())
	hub := NewHub(nil)
	return New(transcripts, hub, oracle), transcripts, hub
}

func TestStreamingMessageLifecycle(t *testing.T) {
	ctx := context.Background()
	bus, transcripts, _ := newBus(t)

	id, err := bus.StartAssistantMessage(ctx, "c1", "u1", "t1")
	require.NoError(t, err)

	require.NoError(t, bus.AppendChunk(ctx, "c1", "u1", "t1", id, "Hel", "Hel"))
	require.NoError(t, bus.AppendChunk(ctx, "c1", "u1", "t1", id, "Hello", "lo"))

	msgs, err := transcripts.List(ctx, "c1", "t1")
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, store.StatusStreaming, msgs[0].Status)
	assert.Equal(t, "Hello", msgs[0].Content)

	require.NoError(t, bus.CompleteAssistantMessage(ctx, "c1", "u1", "t1", id, "Hello."))

	msgs, _ = transcripts.List(ctx, "c1", "t1")
	assert.Equal(t, store.StatusComplete, msgs[0].Status)
	assert.Equal(t, "Hello.", msgs[0].Content)
}

func TestMessagesPersistInAppendOrder(t *testing.T) {
	ctx := context.Background()
	bus, transcripts, _ := newBus(t)

	require.NoError(t, bus.PersistUserMessage(ctx, "c1", "t1", "question"))
	require.NoError(t, bus.PersistAssistantMessage(ctx, "c1", "t1", "answer"))

	msgs, err := transcripts.List(ctx, "c1", "t1")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, store.RoleUser, msgs[0].Role)
	assert.Equal(t, store.RoleAssistant, msgs[1].Role)
}

func TestHubBroadcastReachesRegisteredClient(t *testing.T) {
	hub := NewHub(nil)

	received := make(chan Event, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		up := websocket.Upgrader{}
		conn, err := up.Upgrade(w, r, nil)
		require.NoError(t, err)
		hub.Register("u1", conn)
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	go func() {
		var ev Event
		if err := conn.ReadJSON(&ev); err == nil {
			received <- ev
		}
	}()

	// registration happens in the server handler; give it a beat
	require.Eventually(t, func() bool { return hub.HasSubscribers("u1") }, time.Second, 10*time.Millisecond)

	hub.Broadcast("u1", Event{Type: "llm_stream_chunk", ThreadKey: "t1", Content: "hi"})

	select {
	case ev := <-received:
		assert.Equal(t, "llm_stream_chunk", ev.Type)
		assert.Equal(t, "hi", ev.Content)
	case <-time.After(2 * time.Second):
		t.Fatal("broadcast never reached the subscriber")
	}
}

func TestBackendModeSkipsBroadcastButPersists(t *testing.T) {
	ctx := context.Background()
	bus, transcripts, hub := newBus(t) // no heartbeat → backend

	// no subscribers registered: Broadcast must be a harmless no-op
	hub.Broadcast("u1", Event{Type: "llm_stream_chunk"})

	require.NoError(t, bus.PersistAssistantMessage(ctx, "c1", "t1", "offline reply"))
	msgs, err := transcripts.List(ctx, "c1", "t1")
	require.NoError(t, err)
	require.Len(t, msgs, 1)
}
