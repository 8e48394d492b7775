// Package callbackresumer implements the HTTP callback endpoint that
// resumes a suspended Brain with an injected LPT result and drives the
// Agent Loop until MISSION_COMPLETED or another terminal status,
// serialized per thread_key against concurrent user turns.
package callbackresumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/kabsikabs/pinnokio/internal/agentloop"
	"github.com/kabsikabs/pinnokio/internal/connmode"
	"github.com/kabsikabs/pinnokio/internal/observability"
	"github.com/kabsikabs/pinnokio/internal/sessionregistry"
	"github.com/kabsikabs/pinnokio/internal/store"
	"github.com/kabsikabs/pinnokio/internal/streambus"
)

// Callback is the worker-reported payload for one long-process task.
type Callback struct {
	TaskID      string          `json:"task_id"`
	ThreadKey   string          `json:"thread_key"`
	UserID      string          `json:"user_id"`
	Status      string          `json:"status"` // "completed" | "failed" | "progress"
	Progress    int             `json:"progress,omitempty"`
	CurrentStep string          `json:"current_step,omitempty"`
	Result      json.RawMessage `json:"result,omitempty"`
	Error       string          `json:"error,omitempty"`
	Metadata    json.RawMessage `json:"metadata,omitempty"`
}

// Resumer ties the Task Record store, Session Registry, Agent Loop and
// Streaming Bus together to process worker callbacks.
type Resumer struct {
	docs   store.DocumentStore
	regs   *sessionregistry.Registry
	loop   *agentloop.Loop
	bus    *streambus.Bus
	oracle *connmode.Oracle
	logger *slog.Logger
}

func New(docs store.DocumentStore, regs *sessionregistry.Registry, loop *agentloop.Loop, bus *streambus.Bus, oracle *connmode.Oracle, logger *slog.Logger) *Resumer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resumer{docs: docs, regs: regs, loop: loop, bus: bus, oracle: oracle, logger: logger}
}

// Handle processes one worker callback. It never returns an error for a
// missing or already-terminal Task Record; both are logged, idempotent
// no-ops, which also makes retried callbacks safe.
func (r *Resumer) Handle(ctx context.Context, cb Callback) error {
	rec, err := r.docs.GetTaskRecord(ctx, cb.UserID, cb.ThreadKey, cb.TaskID)
	if errors.Is(err, store.ErrTaskNotFound) {
		r.logger.Warn("callback for unknown task record, ignoring", "task_id", cb.TaskID, "thread_key", cb.ThreadKey)
		return nil
	}
	if err != nil {
		return fmt.Errorf("lookup task record: %w", err)
	}
	if rec.Status.IsTerminal() {
		r.logger.Info("callback for already-terminal task, idempotent no-op", "task_id", cb.TaskID, "status", rec.Status)
		return nil
	}

	if cb.Status == "progress" {
		// Interim report: refresh the record, never resume the brain.
		if err := r.docs.UpdateTaskStatus(ctx, cb.UserID, cb.ThreadKey, cb.TaskID, store.TaskRunning, nil, ""); err != nil {
			return fmt.Errorf("record task progress: %w", err)
		}
		observability.CallbacksTotal.WithLabelValues("progress").Inc()
		r.logger.Debug("task progress", "task_id", cb.TaskID, "progress", cb.Progress, "current_step", cb.CurrentStep)
		return nil
	}

	companyID := rec.CompanyID

	// Session lookup happens before locking: the per-thread mutex lives
	// inside the Session, so the Session must exist (recreated here if
	// the worker outlived it) before the lock serializing this callback
	// against user turns on the same thread_key can be acquired.
	session, err := r.regs.GetOrCreate(cb.UserID, companyID)
	if err != nil {
		return fmt.Errorf("recreate session: %w", err)
	}

	lock := session.ThreadLock(cb.ThreadKey)
	lock.Lock()
	defer lock.Unlock()

	status := store.TaskCompleted
	if cb.Status == "failed" {
		status = store.TaskFailed
	}
	if err := r.docs.UpdateTaskStatus(ctx, cb.UserID, cb.ThreadKey, cb.TaskID, status, cb.Result, cb.Error); err != nil {
		return fmt.Errorf("update task record: %w", err)
	}
	brain, _, err := r.regs.GetBrain(ctx, session, cb.ThreadKey)
	if err != nil {
		r.logger.Warn("context reload failed during callback resume, continuing with stale context", "error", err)
	}

	brain.RemoveActiveTask(cb.TaskID)
	observability.InFlightLPTs.Dec()
	observability.CallbacksTotal.WithLabelValues(cb.Status).Inc()

	continuation := continuationMessage(rec.TaskType, string(status), cb.Result, cb.Error)

	mode := r.oracle.Classify(ctx, cb.UserID)
	var onChunk func(string)
	messageID := ""
	if mode == connmode.ModeUI {
		id, startErr := r.bus.StartAssistantMessage(ctx, companyID, cb.UserID, cb.ThreadKey)
		if startErr == nil {
			messageID = id
			accumulated := ""
			onChunk = func(delta string) {
				accumulated += delta
				_ = r.bus.AppendChunk(ctx, companyID, cb.UserID, cb.ThreadKey, messageID, accumulated, delta)
			}
		}
	}

	outcome := r.loop.Run(ctx, brain, cb.ThreadKey, cb.UserID, companyID, continuation, onChunk)

	finalText := outcome.Conclusion
	if outcome.Status == agentloop.StatusErrorFatal {
		finalText = "Sorry, something went wrong continuing this task."
	}

	if messageID != "" {
		return r.bus.CompleteAssistantMessage(ctx, companyID, cb.UserID, cb.ThreadKey, messageID, finalText)
	}

	// BACKEND mode: persist only, no broadcast, replayed on next reconnect
	// via the user's transcript-store subscription.
	if outcome.Status == agentloop.StatusErrorFatal {
		return r.bus.PersistErrorMessage(ctx, companyID, cb.UserID, cb.ThreadKey, finalText)
	}
	return r.bus.PersistAssistantMessage(ctx, companyID, cb.ThreadKey, finalText)
}

func continuationMessage(taskType, status string, result json.RawMessage, errMsg string) string {
	if status == string(store.TaskFailed) {
		return fmt.Sprintf("Task %s failed: %s. Continue or terminate.", taskType, errMsg)
	}
	return fmt.Sprintf("Task %s completed. Result: %s. Continue or terminate.", taskType, string(result))
}
