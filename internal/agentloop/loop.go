package agentloop

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kabsikabs/pinnokio/internal/llmclient"
	"github.com/kabsikabs/pinnokio/internal/observability"
	"github.com/kabsikabs/pinnokio/internal/sessionregistry"
	"github.com/kabsikabs/pinnokio/internal/tooldispatch"
)

// Config configures one Loop's turn/iteration ceilings and token budget.
// Each agent kind gets its own values; sub-agents run with a smaller
// budget than the main brain.
type Config struct {
	MaxIterations int
	MaxTurns      int
	TokenBudget   int
	SystemPrompt  string
}

func (c *Config) setDefaults() {
	if c.MaxIterations == 0 {
		c.MaxIterations = 3
	}
	if c.MaxTurns == 0 {
		c.MaxTurns = 12
	}
	if c.TokenBudget == 0 {
		c.TokenBudget = 80_000
	}
}

// Summarizer produces a condensed version of a conversation, used by
// token-budget self-healing.
type Summarizer interface {
	Summarize(ctx context.Context, history []llmclient.Message) (string, error)
}

// Loop drives one Brain through a user message: an outer iteration loop
// wrapping an inner turn loop, with tool dispatch and token-budget
// self-healing.
type Loop struct {
	cfg        Config
	registry   *tooldispatch.Registry
	dispatcher *tooldispatch.Dispatcher
	summarizer Summarizer
	logger     *slog.Logger
}

func New(cfg Config, registry *tooldispatch.Registry, dispatcher *tooldispatch.Dispatcher, summarizer Summarizer, logger *slog.Logger) *Loop {
	cfg.setDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Loop{cfg: cfg, registry: registry, dispatcher: dispatcher, summarizer: summarizer, logger: logger}
}

// Run executes the outer iteration loop for one user message or one
// callback continuation. A MAX_TURNS_REACHED inner run is retried with
// the previous iteration's report prepended; every other terminal status
// ends the run.
func (l *Loop) Run(ctx context.Context, brain *sessionregistry.Brain, threadKey, userID, companyID, originalInput string, onChunk llmclient.ChunkFunc) Outcome {
	currentInput := originalInput

	for iteration := 1; iteration <= l.cfg.MaxIterations; iteration++ {
		outcome := l.runInnerLoop(ctx, brain, threadKey, userID, companyID, originalInput, currentInput, onChunk)

		switch outcome.Status {
		case StatusMissionCompleted:
			brain.Flush()
			return outcome

		case StatusMaxTurnsReached:
			currentInput = fmt.Sprintf("PRIOR ITERATION REPORT: %s\nORIGINAL QUERY: %s", outcome.Conclusion, originalInput)
			continue

		default: // LPT_IN_PROGRESS, NO_IA_ACTION, ERROR_FATAL
			return outcome
		}
	}

	return Outcome{Status: StatusMaxTurnsReached, Conclusion: "This task is more complex than I can finish in one go. Could you narrow the scope and try again?"}
}

func (l *Loop) runInnerLoop(ctx context.Context, brain *sessionregistry.Brain, threadKey, userID, companyID, originalInput, currentInput string, onChunk llmclient.ChunkFunc) Outcome {
	brain.Append(llmclient.Message{Role: llmclient.RoleUser, Content: currentInput})

	var lastReport string

	for turn := 1; turn <= l.cfg.MaxTurns; turn++ {
		observability.AgentTurnsTotal.Inc()
		if err := l.maybeSummarize(ctx, brain, originalInput); err != nil {
			l.logger.Warn("summarization failed, continuing with full history", "error", err)
		}

		messages := l.buildMessages(brain)

		// A provider failure is not fatal: the turn yields no action, the
		// outer loop exits, and history survives for the next attempt.
		blocks, err := brain.LLM.Generate(ctx, messages, l.registry.Schemas(), onChunk)
		if err != nil {
			l.logger.Warn("model call failed", "error", err)
			return Outcome{Status: StatusNoIAAction, Conclusion: "I hit a temporary issue reaching the model. Please try again.", Err: err}
		}

		if len(blocks) == 0 {
			return Outcome{Status: StatusNoIAAction, Conclusion: "the model returned no response blocks"}
		}

		var texts []string
		var toolCalls []*llmclient.ToolCall
		for _, b := range blocks {
			switch b.Kind {
			case llmclient.BlockText:
				texts = append(texts, b.Text)
			case llmclient.BlockToolCall:
				toolCalls = append(toolCalls, b.Tool)
			}
		}

		if len(toolCalls) == 0 {
			// text_output only: a clarification request to the caller.
			text := strings.Join(texts, "\n")
			brain.Append(llmclient.Message{Role: llmclient.RoleAssistant, Content: text})
			return Outcome{Status: StatusTextOutput, Conclusion: text}
		}

		var nextInputParts []string
		if len(texts) > 0 {
			nextInputParts = append(nextInputParts, "PRIOR REASONING: "+strings.Join(texts, "\n"))
		}

		for _, call := range toolCalls {
			if call.Name == tooldispatch.TerminateTaskName {
				conclusion, _ := call.Arguments["summary"].(string)
				if conclusion == "" {
					conclusion, _ = call.Arguments["conclusion"].(string)
				}
				brain.Append(llmclient.Message{Role: llmclient.RoleAssistant, Content: conclusion})
				return Outcome{Status: StatusMissionCompleted, Conclusion: conclusion}
			}

			result, err := l.dispatcher.Dispatch(ctx, call, threadKey, userID, companyID)
			if err != nil {
				brain.Flush()
				return Outcome{Status: StatusErrorFatal, Err: err}
			}

			switch result.Outcome {
			case tooldispatch.OutcomeTerminateTask:
				brain.Append(llmclient.Message{Role: llmclient.RoleAssistant, Content: result.Summary})
				return Outcome{Status: StatusMissionCompleted, Conclusion: result.Summary}

			case tooldispatch.OutcomeLPTSuspended:
				brain.AddActiveTask(result.TaskID)
				summary := fmt.Sprintf("task %s queued, I remain available", result.TaskID)
				brain.Append(llmclient.Message{Role: llmclient.RoleToolResult, Content: summary})
				return Outcome{Status: StatusLPTInProgress, Conclusion: summary, TaskID: result.TaskID}

			case tooldispatch.OutcomeSPTResult:
				truncated := truncate(fmt.Sprintf("%v", result.SPTResult), 2000)
				nextInputParts = append(nextInputParts, fmt.Sprintf("Result %s: %s", call.Name, truncated))
			}
		}

		nextInput := strings.Join(nextInputParts, "\n")
		brain.Append(llmclient.Message{Role: llmclient.RoleToolResult, Content: nextInput})
		lastReport = nextInput
		currentInput = nextInput
	}

	return Outcome{Status: StatusMaxTurnsReached, Conclusion: lastReport}
}

func (l *Loop) buildMessages(brain *sessionregistry.Brain) []llmclient.Message {
	history := brain.History()
	if l.cfg.SystemPrompt == "" {
		return history
	}
	out := make([]llmclient.Message, 0, len(history)+1)
	out = append(out, llmclient.Message{Role: llmclient.RoleSystem, Content: l.cfg.SystemPrompt})
	out = append(out, history...)
	return out
}

// maybeSummarize runs token-budget self-healing: when the budget is met
// or exceeded, the conversation is condensed, history is cleared and
// reseeded. The transition is invisible to the user.
func (l *Loop) maybeSummarize(ctx context.Context, brain *sessionregistry.Brain, originalInput string) error {
	history := brain.History()
	if brain.LLM.CountTokens(history) < l.cfg.TokenBudget {
		return nil
	}

	summary, err := l.summarizer.Summarize(ctx, history)
	if err != nil {
		return err
	}

	seed := fmt.Sprintf("PRIOR CONVERSATION SUMMARY: %s\nCURRENT QUERY: %s", summary, originalInput)
	brain.Seed(llmclient.Message{Role: llmclient.RoleUser, Content: seed})
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
