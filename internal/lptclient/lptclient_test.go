package lptclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kabsikabs/pinnokio/internal/contextctx"
	"github.com/kabsikabs/pinnokio/internal/store"
)

type staticResolver struct{ ctx *contextctx.Context }

func (r staticResolver) ResolveContext(context.Context, string, string, string) (*contextctx.Context, error) {
	return r.ctx, nil
}

func testContext() *contextctx.Context {
	return &contextctx.Context{
		UserID: "u1", CompanyID: "c1", ClientUUID: "cu-1",
		MandatePath: "mandates/acme", DMSSystem: "google_drive", BankERP: "qonto",
	}
}

func newTestStore(t *testing.T) *store.SQLStore {
	t.Helper()
	s, err := store.Open(store.Config{Dialect: "sqlite", DSN: "file:lptclient_test?mode=memory&cache=shared"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestDispatch_PersistsRecordBeforePostAndMarksRunning(t *testing.T) {
	ctx := context.Background()
	docs := newTestStore(t)

	var got map[string]any
	worker := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer worker.Close()

	c := New(docs, Config{BaseURL: worker.URL, CallbackURL: "http://orchestrator/lpt/callback"}, staticResolver{testContext()})

	taskID, err := c.Dispatch(ctx, "APBookkeeper", "t1", "u1", "c1", map[string]any{"invoice_ids": []string{"i1", "i2"}})
	require.NoError(t, err)
	require.NotEmpty(t, taskID)

	// payload carries the full routing context the model never sees
	assert.Equal(t, taskID, got["task_id"])
	assert.Equal(t, "t1", got["thread_key"])
	assert.Equal(t, "u1", got["user_id"])
	assert.Equal(t, "c1", got["company_id"])
	assert.Equal(t, "mandates/acme", got["mandate_path"])
	assert.Equal(t, "qonto", got["bank_erp"])
	assert.Equal(t, "http://orchestrator/lpt/callback", got["callback_url"])

	rec, err := docs.GetTaskRecord(ctx, "u1", "t1", taskID)
	require.NoError(t, err)
	assert.Equal(t, store.TaskRunning, rec.Status)
	assert.False(t, rec.CreatedAt.IsZero())
}

func TestDispatch_WorkerRejectionMarksRecordFailed(t *testing.T) {
	ctx := context.Background()
	docs := newTestStore(t)

	var gotTaskID string
	worker := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]any
		_ = json.NewDecoder(r.Body).Decode(&payload)
		gotTaskID, _ = payload["task_id"].(string)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer worker.Close()

	c := New(docs, Config{BaseURL: worker.URL}, staticResolver{testContext()})

	_, err := c.Dispatch(ctx, "Router", "t1", "u1", "c1", map[string]any{"drive_file_id": "f1"})
	require.Error(t, err)

	// the record survives the failed dispatch, marked failed
	rec, err := docs.GetTaskRecord(ctx, "u1", "t1", gotTaskID)
	require.NoError(t, err)
	assert.Equal(t, store.TaskFailed, rec.Status)

	active, err := docs.ListActiveTasksForThread(ctx, "u1", "t1")
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestDispatch_EmptyContextRefuses(t *testing.T) {
	docs := newTestStore(t)
	c := New(docs, Config{BaseURL: "http://unused"}, staticResolver{&contextctx.Context{}})

	_, err := c.Dispatch(context.Background(), "APBookkeeper", "t1", "u1", "c1", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "refusing to dispatch")
}

func TestDispatch_PerKindPathsRouteToWorkerEndpoints(t *testing.T) {
	var gotPath string
	worker := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer worker.Close()

	docs := newTestStore(t)
	c := New(docs, Config{
		BaseURL: worker.URL,
		Paths:   map[string]string{"APBookkeeper": "/v1/bookkeeping"},
	}, staticResolver{testContext()})

	_, err := c.Dispatch(context.Background(), "APBookkeeper", "t1", "u1", "c1", nil)
	require.NoError(t, err)
	assert.Equal(t, "/v1/bookkeeping", gotPath)
}

func TestDispatchForJob_TagsRecordForOverlapGuard(t *testing.T) {
	ctx := context.Background()
	docs := newTestStore(t)

	worker := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer worker.Close()

	c := New(docs, Config{BaseURL: worker.URL}, staticResolver{testContext()})

	taskID, err := c.DispatchForJob(ctx, "mandates/acme_invoice_sync", "invoice_sync", "t1", "u1", "c1", nil)
	require.NoError(t, err)

	latest, err := docs.LatestTaskForJob(ctx, "mandates/acme_invoice_sync")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, taskID, latest.TaskID)
	assert.True(t, strings.HasPrefix(latest.PayloadSummary, "job:mandates/acme_invoice_sync"))
}
