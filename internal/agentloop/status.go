// Package agentloop implements the two-level agent loop: an outer
// iteration loop (default max 3) wrapping an inner turn loop, one model
// call per turn, classifying each turn's response blocks into tool
// dispatches, clarification text or termination, with token-budget
// self-healing in between turns.
package agentloop

// Status is the closed set of terminal outcomes an agent loop run ends
// in.
type Status string

const (
	StatusMissionCompleted Status = "MISSION_COMPLETED"
	StatusLPTInProgress    Status = "LPT_IN_PROGRESS"
	StatusTextOutput       Status = "TEXT_OUTPUT"
	StatusNoIAAction       Status = "NO_IA_ACTION"
	StatusErrorFatal       Status = "ERROR_FATAL"
	StatusMaxTurnsReached  Status = "MAX_TURNS_REACHED"
)

// Outcome is what one Agent Loop run (one outer-iteration sequence)
// produced.
type Outcome struct {
	Status     Status
	Conclusion string
	// TaskID is set when Status == StatusLPTInProgress.
	TaskID string
	// Err carries the underlying failure for StatusErrorFatal and for a
	// provider-failure StatusNoIAAction.
	Err error
}
