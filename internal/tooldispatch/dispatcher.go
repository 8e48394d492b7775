package tooldispatch

import (
	"context"
	"fmt"

	"github.com/kabsikabs/pinnokio/internal/errs"
	"github.com/kabsikabs/pinnokio/internal/llmclient"
)

// Outcome is what the agent loop does next after a dispatch.
type Outcome string

const (
	OutcomeSPTResult     Outcome = "spt_result"
	OutcomeLPTSuspended  Outcome = "lpt_suspended"
	OutcomeTerminateTask Outcome = "terminate_task"
)

// Result carries the agent loop's next action after one tool call has
// been dispatched.
type Result struct {
	Outcome    Outcome
	ToolCallID string
	// SPTResult is set when Outcome == OutcomeSPTResult: fed back into the
	// next turn's messages as a tool result.
	SPTResult map[string]any
	// TaskID is set when Outcome == OutcomeLPTSuspended: the Task Record
	// the agent loop suspends on pending the callback.
	TaskID string
	// Summary is set when Outcome == OutcomeTerminateTask.
	Summary string
}

// LPTDispatcher hands a tool call off to the asynchronous worker and
// returns the task ID of the record it created.
type LPTDispatcher interface {
	Dispatch(ctx context.Context, taskType, threadKey, userID, companyID string, args map[string]any) (taskID string, err error)
}

// Dispatcher routes one tool call to its SPT handler or the LPT
// dispatcher, or recognizes the TERMINATE_TASK sentinel.
type Dispatcher struct {
	registry *Registry
	lpt      LPTDispatcher
}

func NewDispatcher(registry *Registry, lpt LPTDispatcher) *Dispatcher {
	return &Dispatcher{registry: registry, lpt: lpt}
}

// Dispatch executes or hands off one tool call from an agent turn.
func (d *Dispatcher) Dispatch(ctx context.Context, call *llmclient.ToolCall, threadKey, userID, companyID string) (*Result, error) {
	if call.Name == TerminateTaskName {
		summary, _ := call.Arguments["summary"].(string)
		return &Result{Outcome: OutcomeTerminateTask, ToolCallID: call.ID, Summary: summary}, nil
	}

	tool, ok := d.registry.Lookup(call.Name)
	if !ok {
		return nil, errs.ToolHandler(fmt.Sprintf("unknown tool %q", call.Name), nil)
	}

	env := Env{ThreadKey: threadKey, UserID: userID, CompanyID: companyID}

	switch tool.Kind {
	case KindSPT:
		out, err := tool.SPT(ctx, env, call.Arguments)
		if err != nil {
			// SPT handlers never abort the loop: the failure becomes a
			// normal tool result the model can react to.
			return &Result{
				Outcome:    OutcomeSPTResult,
				ToolCallID: call.ID,
				SPTResult:  map[string]any{"success": false, "error": err.Error()},
			}, nil
		}
		return &Result{Outcome: OutcomeSPTResult, ToolCallID: call.ID, SPTResult: out}, nil

	case KindLPT:
		taskID, err := d.lpt.Dispatch(ctx, tool.LPTTaskType, threadKey, userID, companyID, call.Arguments)
		if err != nil {
			// A failed worker POST marks the Task Record failed and feeds a
			// normal failure result back into the loop. It never suspends.
			return &Result{
				Outcome:    OutcomeSPTResult,
				ToolCallID: call.ID,
				SPTResult:  map[string]any{"success": false, "error": err.Error()},
			}, nil
		}
		return &Result{Outcome: OutcomeLPTSuspended, ToolCallID: call.ID, TaskID: taskID}, nil

	default:
		return nil, errs.ToolHandler(fmt.Sprintf("tool %q has no dispatch kind", call.Name), nil)
	}
}
