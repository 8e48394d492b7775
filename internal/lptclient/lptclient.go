// Package lptclient implements the long-process task hand-off: a Task
// Record is persisted before the worker is invoked, a notification is
// written for immediate UI feedback, and the worker POST is interpreted
// as an acceptance, not a result; the result arrives later over the
// callback endpoint.
package lptclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kabsikabs/pinnokio/internal/contextctx"
	"github.com/kabsikabs/pinnokio/internal/errs"
	"github.com/kabsikabs/pinnokio/internal/observability"
	"github.com/kabsikabs/pinnokio/internal/store"
)

// ContextResolver supplies the cache-respecting business Context a
// worker payload is built from. The session registry implements it.
type ContextResolver interface {
	ResolveContext(ctx context.Context, userID, companyID, threadKey string) (*contextctx.Context, error)
}

// Config configures the worker endpoints the Client dispatches to.
type Config struct {
	// BaseURL is the worker fleet's root endpoint.
	BaseURL string
	// Paths maps a task_type to its endpoint path under BaseURL. A task
	// type with no entry posts to BaseURL directly.
	Paths map[string]string
	// CallbackURL is echoed into every payload so workers know where to
	// report back.
	CallbackURL string
	Timeout     time.Duration
}

// Client builds full worker payloads from the thread's Context plus the
// model-supplied IDs/instructions, persists the Task Record, and POSTs
// to the worker endpoint.
type Client struct {
	docs        store.DocumentStore
	resolver    ContextResolver
	httpClient  *http.Client
	baseURL     string
	paths       map[string]string
	callbackURL string
}

func New(docs store.DocumentStore, cfg Config, resolver ContextResolver) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		docs:        docs,
		resolver:    resolver,
		httpClient:  &http.Client{Timeout: timeout},
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		paths:       cfg.Paths,
		callbackURL: cfg.CallbackURL,
	}
}

// workerPayload is the envelope sent to the external worker. It carries
// everything a worker needs to execute independently of this process's
// in-memory state; thread_key is mandatory so the callback can be routed
// back to the right brain.
type workerPayload struct {
	TaskID         string         `json:"task_id"`
	TaskType       string         `json:"task_type"`
	ThreadKey      string         `json:"thread_key"`
	UserID         string         `json:"user_id"`
	CompanyID      string         `json:"company_id"`
	MandatePath    string         `json:"mandate_path"`
	DMSSystem      string         `json:"dms_system"`
	BankERP        string         `json:"bank_erp"`
	DriveSpaceRoot string         `json:"drive_space_root,omitempty"`
	CallbackURL    string         `json:"callback_url,omitempty"`
	Args           map[string]any `json:"args"`
}

// Dispatch hands one task to its worker. The Task Record exists in the
// queued state before the POST is attempted, so a callback always finds
// a record regardless of how the dispatch itself ends.
func (c *Client) Dispatch(ctx context.Context, taskType, threadKey, userID, companyID string, args map[string]any) (string, error) {
	return c.dispatch(ctx, taskType, threadKey, userID, companyID, args, summarizeArgs(taskType, args))
}

// DispatchForJob is the scheduler's entry point: identical to Dispatch
// except the Task Record's payload summary is prefixed with the job ID,
// which is how the overlap guard finds a job's latest run.
func (c *Client) DispatchForJob(ctx context.Context, jobID, taskType, threadKey, userID, companyID string, args map[string]any) (string, error) {
	return c.dispatch(ctx, taskType, threadKey, userID, companyID, args, "job:"+jobID+" "+summarizeArgs(taskType, args))
}

func (c *Client) dispatch(ctx context.Context, taskType, threadKey, userID, companyID string, args map[string]any, payloadSummary string) (string, error) {
	lctx, err := c.resolver.ResolveContext(ctx, userID, companyID, threadKey)
	if err != nil {
		return "", errs.Dispatch("failed to resolve business context", err)
	}
	if lctx.Empty() {
		return "", errs.Dispatch("business context is empty, refusing to dispatch", nil)
	}

	taskID := uuid.NewString()
	now := time.Now()

	rec := &store.TaskRecord{
		TaskID:         taskID,
		TaskType:       taskType,
		ThreadKey:      threadKey,
		UserID:         userID,
		CompanyID:      companyID,
		Status:         store.TaskQueued,
		PayloadSummary: payloadSummary,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := c.docs.CreateTaskRecord(ctx, rec); err != nil {
		return "", errs.Dispatch("failed to persist task record", err)
	}

	if err := c.docs.CreateNotification(ctx, &store.Notification{
		ID:        uuid.NewString(),
		UserID:    userID,
		TaskID:    taskID,
		Status:    "in queue",
		Message:   fmt.Sprintf("%s queued", taskType),
		CreatedAt: now,
	}); err != nil {
		return "", errs.Dispatch("failed to write notification", err)
	}

	payload := workerPayload{
		TaskID:         taskID,
		TaskType:       taskType,
		ThreadKey:      threadKey,
		UserID:         userID,
		CompanyID:      companyID,
		MandatePath:    lctx.MandatePath,
		DMSSystem:      lctx.DMSSystem,
		BankERP:        lctx.BankERP,
		DriveSpaceRoot: lctx.DriveSpaceRoot,
		CallbackURL:    c.callbackURL,
		Args:           args,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", errs.Dispatch("failed to encode worker payload", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpointFor(taskType), bytes.NewReader(body))
	if err != nil {
		return "", errs.Dispatch("failed to build worker request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		observability.DispatchDuration.WithLabelValues(taskType, "error").Observe(time.Since(start).Seconds())
		_ = c.docs.UpdateTaskStatus(ctx, userID, threadKey, taskID, store.TaskFailed, nil, err.Error())
		return "", errs.Dispatch("worker request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		observability.DispatchDuration.WithLabelValues(taskType, "rejected").Observe(time.Since(start).Seconds())
		msg := fmt.Sprintf("worker rejected task with status %d", resp.StatusCode)
		_ = c.docs.UpdateTaskStatus(ctx, userID, threadKey, taskID, store.TaskFailed, nil, msg)
		return "", errs.Dispatch(msg, nil)
	}
	observability.DispatchDuration.WithLabelValues(taskType, "accepted").Observe(time.Since(start).Seconds())

	if err := c.docs.UpdateTaskStatus(ctx, userID, threadKey, taskID, store.TaskRunning, nil, ""); err != nil {
		return "", errs.Dispatch("failed to mark task running", err)
	}

	observability.InFlightLPTs.Inc()
	return taskID, nil
}

func (c *Client) endpointFor(taskType string) string {
	if path, ok := c.paths[taskType]; ok {
		return c.baseURL + "/" + strings.TrimLeft(path, "/")
	}
	return c.baseURL
}

func summarizeArgs(taskType string, args map[string]any) string {
	body, err := json.Marshal(args)
	if err != nil {
		return taskType
	}
	summary := taskType + " " + string(body)
	if len(summary) > 512 {
		summary = summary[:512]
	}
	return summary
}
