package models

import "time"

// FinalResult is what one investigation hands back to its caller once
// the state machine reaches DONE. The AgentState itself is discarded
// after this snapshot is taken.
type FinalResult struct {
	// QueryID identifies the run for logs and traces.
	QueryID string `json:"query_id"`

	// Query is the original question.
	Query string `json:"query"`

	// FinalAnswer is the synthesized answer text.
	FinalAnswer string `json:"final_answer"`

	// Confidence is the final synthesis confidence in [0,1].
	Confidence float64 `json:"confidence"`

	// Plan is the investigation plan the run followed.
	Plan string `json:"plan,omitempty"`

	// ToolsInvoked is the ordered call history, repeats included.
	ToolsInvoked []string `json:"tools_invoked"`

	// ToolResults maps tool name to its latest result.
	ToolResults map[string]ToolResult `json:"tool_results"`

	// Phase is the terminal phase; DONE on any successful return.
	Phase Phase `json:"phase"`

	// StepCount is the number of phase transitions taken.
	StepCount int `json:"step_count"`

	// Errors lists recovered collaborator failures, if any.
	Errors []string `json:"errors,omitempty"`

	// Elapsed is the total wall-clock duration of the run.
	Elapsed time.Duration `json:"elapsed_ms"`
}

// NewFinalResult snapshots a terminal state into a FinalResult.
func NewFinalResult(queryID string, state *AgentState, elapsed time.Duration) *FinalResult {
	return &FinalResult{
		QueryID:      queryID,
		Query:        state.Query,
		FinalAnswer:  state.FinalAnswer,
		Confidence:   state.Confidence,
		Plan:         state.Plan,
		ToolsInvoked: append([]string(nil), state.ToolsInvoked...),
		ToolResults:  cloneResults(state.ToolResults),
		Phase:        state.Phase,
		StepCount:    state.StepCount,
		Errors:       append([]string(nil), state.Errors...),
		Elapsed:      elapsed,
	}
}

func cloneResults(results map[string]ToolResult) map[string]ToolResult {
	out := make(map[string]ToolResult, len(results))
	for name, result := range results {
		out[name] = result.Clone()
	}
	return out
}
