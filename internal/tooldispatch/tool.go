// Package tooldispatch classifies and routes the tool calls an agent turn
// emits: SPT (short-process) calls execute synchronously inline, LPT
// (long-process) calls are handed off to an asynchronous worker, and
// TERMINATE_TASK is a sentinel the agent loop intercepts before either
// path runs.
package tooldispatch

import (
	"context"

	"github.com/kabsikabs/pinnokio/internal/contextctx"
	"github.com/kabsikabs/pinnokio/internal/llmclient"
)

// Kind distinguishes the dispatch classes a tool call can take.
type Kind string

const (
	KindSPT           Kind = "spt"
	KindLPT           Kind = "lpt"
	KindTerminateTask Kind = "terminate_task"
)

// TerminateTaskName is the sentinel tool name signalling mission
// completion. The agent loop intercepts it; it never reaches a handler.
const TerminateTaskName = "TERMINATE_TASK"

// Env identifies the thread a tool call executes on behalf of. Handlers
// receive it alongside the model-provided arguments so credentials and
// routing data never appear in the model-facing schema.
type Env struct {
	ThreadKey string
	UserID    string
	CompanyID string
}

// ContextResolver supplies the cache-respecting business Context for a
// thread. The session registry implements it.
type ContextResolver interface {
	ResolveContext(ctx context.Context, userID, companyID, threadKey string) (*contextctx.Context, error)
}

// Tool is one entry in the registry the agent loop's tool schema is built
// from. Kind selects which of the two execution paths a call takes.
type Tool struct {
	Name        string
	Description string
	Parameters  map[string]any
	Kind        Kind

	// SPT is non-nil for Kind == KindSPT.
	SPT SPTHandler

	// LPTTaskType names the worker task_type for Kind == KindLPT.
	LPTTaskType string
}

// SPTHandler executes a short-process tool synchronously. Its result is
// folded into the next turn's input as a tool result.
type SPTHandler func(ctx context.Context, env Env, args map[string]any) (map[string]any, error)

// Schema renders a Tool as the model-facing schema: name, description and
// parameters only, never dispatch routing details.
func (t *Tool) Schema() llmclient.ToolSchema {
	return llmclient.ToolSchema{
		Name:        t.Name,
		Description: t.Description,
		Parameters:  t.Parameters,
	}
}

// Registry is the set of tools available to one agent loop invocation.
type Registry struct {
	tools map[string]*Tool
	order []string
}

func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]*Tool)}
}

func (r *Registry) Register(t *Tool) {
	if _, exists := r.tools[t.Name]; !exists {
		r.order = append(r.order, t.Name)
	}
	r.tools[t.Name] = t
}

func (r *Registry) Lookup(name string) (*Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// Schemas returns the model-facing tool schemas in registration order,
// plus the TERMINATE_TASK sentinel every agent loop must expose.
func (r *Registry) Schemas() []llmclient.ToolSchema {
	out := make([]llmclient.ToolSchema, 0, len(r.order)+1)
	for _, name := range r.order {
		out = append(out, r.tools[name].Schema())
	}
	out = append(out, llmclient.ToolSchema{
		Name:        TerminateTaskName,
		Description: "Signal that the task is fully complete and no further turns are needed.",
		Parameters:  mustSchema[terminateTaskArgs](),
	})
	return out
}

type terminateTaskArgs struct {
	Summary string `json:"summary,omitempty" jsonschema:"description=Final answer or conclusion for the user"`
}
