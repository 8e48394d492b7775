package tooldispatch

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kabsikabs/pinnokio/internal/llmclient"
)

type fakeLPT struct {
	taskID string
	err    error

	gotTaskType string
	gotEnv      Env
	gotArgs     map[string]any
}

func (f *fakeLPT) Dispatch(_ context.Context, taskType, threadKey, userID, companyID string, args map[string]any) (string, error) {
	f.gotTaskType = taskType
	f.gotEnv = Env{ThreadKey: threadKey, UserID: userID, CompanyID: companyID}
	f.gotArgs = args
	return f.taskID, f.err
}

func TestDispatch_TerminateSentinelNeverReachesHandlers(t *testing.T) {
	d := NewDispatcher(NewRegistry(), nil)

	res, err := d.Dispatch(context.Background(), &llmclient.ToolCall{
		ID: "1", Name: TerminateTaskName, Arguments: map[string]any{"summary": "done"},
	}, "t1", "u1", "c1")
	require.NoError(t, err)
	assert.Equal(t, OutcomeTerminateTask, res.Outcome)
	assert.Equal(t, "done", res.Summary)
}

func TestDispatch_SPTReceivesEnvAndArgs(t *testing.T) {
	reg := NewRegistry()
	var gotEnv Env
	reg.Register(&Tool{
		Name: "GET_USER_CONTEXT",
		Kind: KindSPT,
		SPT: func(_ context.Context, env Env, args map[string]any) (map[string]any, error) {
			gotEnv = env
			return map[string]any{"ok": true}, nil
		},
	})
	d := NewDispatcher(reg, nil)

	res, err := d.Dispatch(context.Background(), &llmclient.ToolCall{ID: "1", Name: "GET_USER_CONTEXT"}, "t1", "u1", "c1")
	require.NoError(t, err)
	assert.Equal(t, OutcomeSPTResult, res.Outcome)
	assert.Equal(t, Env{ThreadKey: "t1", UserID: "u1", CompanyID: "c1"}, gotEnv)
}

func TestDispatch_SPTErrorBecomesFailureResultNotLoopAbort(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&Tool{
		Name: "GET_STRUCTURED_DATA",
		Kind: KindSPT,
		SPT: func(context.Context, Env, map[string]any) (map[string]any, error) {
			return nil, fmt.Errorf("store unavailable")
		},
	})
	d := NewDispatcher(reg, nil)

	res, err := d.Dispatch(context.Background(), &llmclient.ToolCall{ID: "1", Name: "GET_STRUCTURED_DATA"}, "t1", "u1", "c1")
	require.NoError(t, err)
	assert.Equal(t, OutcomeSPTResult, res.Outcome)
	assert.Equal(t, false, res.SPTResult["success"])
	assert.Contains(t, res.SPTResult["error"], "store unavailable")
}

func TestDispatch_LPTSuspendsOnAcceptance(t *testing.T) {
	reg := NewRegistry()
	reg.Register(NewAPBookkeeperTool())
	lpt := &fakeLPT{taskID: "T42"}
	d := NewDispatcher(reg, lpt)

	res, err := d.Dispatch(context.Background(), &llmclient.ToolCall{
		ID: "1", Name: "LPT_APBookkeeper", Arguments: map[string]any{"invoice_ids": []any{"i1", "i2"}},
	}, "t1", "u1", "c1")
	require.NoError(t, err)
	assert.Equal(t, OutcomeLPTSuspended, res.Outcome)
	assert.Equal(t, "T42", res.TaskID)
	assert.Equal(t, "APBookkeeper", lpt.gotTaskType)
	assert.Equal(t, Env{ThreadKey: "t1", UserID: "u1", CompanyID: "c1"}, lpt.gotEnv)
}

func TestDispatch_LPTFailureFeedsBackAsToolResult(t *testing.T) {
	reg := NewRegistry()
	reg.Register(NewDocumentRouterTool())
	d := NewDispatcher(reg, &fakeLPT{err: errors.New("worker unreachable")})

	res, err := d.Dispatch(context.Background(), &llmclient.ToolCall{
		ID: "1", Name: "LPT_Router", Arguments: map[string]any{"drive_file_id": "f1"},
	}, "t1", "u1", "c1")
	require.NoError(t, err, "a failed worker POST never aborts the loop")
	assert.Equal(t, OutcomeSPTResult, res.Outcome)
	assert.Equal(t, false, res.SPTResult["success"])
}

func TestDispatch_UnknownToolErrors(t *testing.T) {
	d := NewDispatcher(NewRegistry(), nil)
	_, err := d.Dispatch(context.Background(), &llmclient.ToolCall{ID: "1", Name: "NO_SUCH_TOOL"}, "t1", "u1", "c1")
	require.Error(t, err)
}

func TestLPTSchemasExposeOnlyIDsAndInstructions(t *testing.T) {
	for _, tool := range []*Tool{NewAPBookkeeperTool(), NewDocumentRouterTool(), NewBankMatcherTool()} {
		props, ok := tool.Parameters["properties"].(map[string]any)
		require.True(t, ok, tool.Name)
		for name := range props {
			assert.NotContains(t, []string{"user_id", "company_id", "thread_key", "mandate_path", "credentials"}, name,
				"%s must not expose routing or credential fields to the model", tool.Name)
		}
	}
}

func TestRegistrySchemasAlwaysIncludeTerminateSentinel(t *testing.T) {
	reg := NewRegistry()
	reg.Register(NewAPBookkeeperTool())

	schemas := reg.Schemas()
	require.NotEmpty(t, schemas)
	assert.Equal(t, TerminateTaskName, schemas[len(schemas)-1].Name)
}
