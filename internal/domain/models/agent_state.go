package models

import (
	"encoding/json"
	"fmt"
)

// Default iteration guards for one investigation.
const (
	DefaultMaxSteps = 8
	DefaultMaxTools = 3
)

// AgentState is the single mutable record threaded through every phase
// of one investigation. It is exclusively owned by one orchestrator run
// for the duration of one query and is never shared across concurrent
// queries; it has no persistence beyond the query.
//
// Design principles:
// - All loop memory lives here; phase handlers read and mutate it in place
// - Confidence is always derived from ToolResults, never hand-set
// - ToolResults keeps one entry per tool name (a repeat call overwrites),
//   while ToolsInvoked records the full call history including repeats
type AgentState struct {
	// Query is the user's question. Immutable once set.
	Query string `json:"query"`

	// Phase is the current position in the state machine.
	Phase Phase `json:"phase"`

	// Plan is the investigation plan produced by the plan phase.
	Plan string `json:"plan,omitempty"`

	// PendingTool is the tool selected by the investigate phase and
	// consumed by the act phase.
	PendingTool string `json:"pending_tool,omitempty"`

	// ToolResults maps tool name to its latest result.
	ToolResults map[string]ToolResult `json:"tool_results"`

	// ToolsInvoked is the ordered call history, repeats included.
	ToolsInvoked []string `json:"tools_invoked"`

	// Evidence holds the items of the latest successful search result.
	Evidence []map[string]any `json:"evidence,omitempty"`

	// DependencyContext holds the latest successful dependency result.
	DependencyContext ToolResult `json:"dependency_context,omitempty"`

	// Confidence is successes divided by distinct tools called, in [0,1].
	Confidence float64 `json:"confidence"`

	// StepCount counts phase transitions; each phase handler adds one.
	StepCount int `json:"step_count"`

	// MaxSteps and MaxTools bound the investigation.
	MaxSteps int `json:"max_steps"`
	MaxTools int `json:"max_tools"`

	// FinalAnswer is set by the synthesize phase.
	FinalAnswer string `json:"final_answer,omitempty"`

	// Errors collects recovered collaborator failures.
	Errors []string `json:"errors,omitempty"`
}

// NewAgentState builds the initial state for one query: phase PLAN,
// counters zeroed, collections empty. Pure construction, no I/O.
// Non-positive limits fall back to the defaults.
func NewAgentState(query string, maxSteps, maxTools int) *AgentState {
	if maxSteps <= 0 {
		maxSteps = DefaultMaxSteps
	}
	if maxTools <= 0 {
		maxTools = DefaultMaxTools
	}
	return &AgentState{
		Query:        query,
		Phase:        PhasePlan,
		ToolResults:  make(map[string]ToolResult),
		ToolsInvoked: make([]string, 0, maxTools),
		Confidence:   0.0,
		StepCount:    0,
		MaxSteps:     maxSteps,
		MaxTools:     maxTools,
	}
}

// RecordToolResult merges one executed tool call into the state:
// the result lands in ToolResults under the tool name (overwriting any
// earlier result for that name), the name is appended to ToolsInvoked
// unconditionally, and Confidence is recomputed.
func (s *AgentState) RecordToolResult(toolName string, result ToolResult) {
	if s.ToolResults == nil {
		s.ToolResults = make(map[string]ToolResult)
	}
	s.ToolResults[toolName] = result
	s.ToolsInvoked = append(s.ToolsInvoked, toolName)
	s.RecomputeConfidence()
}

// RecomputeConfidence derives Confidence from ToolResults: successful
// results over distinct tools called. Zero before any call. Repeated
// calls to the same tool keep a single entry in the denominator.
func (s *AgentState) RecomputeConfidence() {
	if len(s.ToolResults) == 0 {
		s.Confidence = 0.0
		return
	}
	successes := 0
	for _, result := range s.ToolResults {
		if result.Success() {
			successes++
		}
	}
	s.Confidence = float64(successes) / float64(len(s.ToolResults))
}

// SynthesisConfidence returns the final confidence reported alongside
// the answer: successes over total stored results, or the 0.5 fallback
// when no tool ever ran.
func (s *AgentState) SynthesisConfidence() float64 {
	if len(s.ToolResults) == 0 {
		return 0.5
	}
	successes := 0
	for _, result := range s.ToolResults {
		if result.Success() {
			successes++
		}
	}
	return float64(successes) / float64(len(s.ToolResults))
}

// AddError records a recovered collaborator failure.
func (s *AgentState) AddError(message string) {
	s.Errors = append(s.Errors, message)
}

// ToolResultsJSON serializes the accumulated results for the
// synthesis prompt.
func (s *AgentState) ToolResultsJSON() string {
	data, err := json.MarshalIndent(s.ToolResults, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(data)
}

// Validate checks the structural invariants of the state. It is used
// by tests and by the orchestrator's transition safety net.
func (s *AgentState) Validate() error {
	if !s.Phase.Valid() {
		return fmt.Errorf("%w: unknown phase %q", ErrInvalidState, s.Phase)
	}
	if s.Confidence < 0.0 || s.Confidence > 1.0 {
		return fmt.Errorf("%w: confidence %.3f outside [0,1]", ErrInvalidState, s.Confidence)
	}
	if s.StepCount < 0 {
		return fmt.Errorf("%w: negative step count %d", ErrInvalidState, s.StepCount)
	}
	if s.MaxSteps < 1 || s.MaxTools < 1 {
		return fmt.Errorf("%w: limits must be at least 1 (max_steps=%d max_tools=%d)", ErrInvalidState, s.MaxSteps, s.MaxTools)
	}
	invoked := make(map[string]bool, len(s.ToolsInvoked))
	for _, name := range s.ToolsInvoked {
		invoked[name] = true
	}
	for name := range s.ToolResults {
		if !invoked[name] {
			return fmt.Errorf("%w: result for %q without a matching invocation", ErrInvalidState, name)
		}
	}
	return nil
}

// Clone returns a deep copy of the state via JSON round-trip.
func (s *AgentState) Clone() (*AgentState, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	var clone AgentState
	if err := json.Unmarshal(data, &clone); err != nil {
		return nil, err
	}
	return &clone, nil
}
