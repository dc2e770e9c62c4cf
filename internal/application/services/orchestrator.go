package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mshogin/lineage/internal/domain/models"
	domainservices "github.com/mshogin/lineage/internal/domain/services"
)

const (
	// DefaultDecisionTimeout bounds a single Decision Maker call.
	DefaultDecisionTimeout = 30 * time.Second

	// DefaultMaxTokens caps generated text per Decision Maker call.
	DefaultMaxTokens = 512

	// DefaultMaxTransitions is the phase-transition safety net. The
	// stopping rules terminate every run well below this; reaching it
	// means the rules are broken and the run must fail loudly instead
	// of spinning.
	DefaultMaxTransitions = 40
)

// OrchestratorOptions tune loop timeouts and safety bounds.
type OrchestratorOptions struct {
	DecisionTimeout time.Duration
	ToolTimeout     time.Duration
	MaxTokens       int
	MaxTransitions  int
}

// DefaultOrchestratorOptions returns the production defaults.
func DefaultOrchestratorOptions() OrchestratorOptions {
	return OrchestratorOptions{
		DecisionTimeout: DefaultDecisionTimeout,
		ToolTimeout:     DefaultToolTimeout,
		MaxTokens:       DefaultMaxTokens,
		MaxTransitions:  DefaultMaxTransitions,
	}
}

func (o OrchestratorOptions) withDefaults() OrchestratorOptions {
	if o.DecisionTimeout <= 0 {
		o.DecisionTimeout = DefaultDecisionTimeout
	}
	if o.ToolTimeout <= 0 {
		o.ToolTimeout = DefaultToolTimeout
	}
	if o.MaxTokens <= 0 {
		o.MaxTokens = DefaultMaxTokens
	}
	if o.MaxTransitions <= 0 {
		o.MaxTransitions = DefaultMaxTransitions
	}
	return o
}

// PhaseObserver is notified after every executed phase with its wall
// time. Used to hook metrics collection in without coupling the loop
// to a collector implementation.
type PhaseObserver func(phase models.Phase, duration time.Duration)

// GenerationObserver is notified after every Decision Maker call with
// the token budget requested and whether the call failed.
type GenerationObserver func(tokens int, failed bool)

// Orchestrator drives the plan/investigate/act/synthesize loop for one
// query at a time. Each Run gets its own AgentState; the orchestrator
// itself holds no per-query state and is safe to share across
// concurrent runs.
//
// Design principles:
// - Liveness over completeness: Decision Maker failures degrade to
//   empty text, tool failures to failed results; the loop always
//   reaches a synthesized answer within its step budget
// - Deterministic stopping: the Act routing rules are a fixed priority
//   list evaluated by NextPhase
// - Dependency Injection: depends on domain interfaces only
type Orchestrator struct {
	decisionMaker domainservices.DecisionMaker
	dispatcher    *ToolDispatcher
	options       OrchestratorOptions
	phaseObserver PhaseObserver
	genObserver   GenerationObserver
}

// NewOrchestrator creates an orchestrator over the given decision
// maker and dispatcher.
func NewOrchestrator(decisionMaker domainservices.DecisionMaker, dispatcher *ToolDispatcher, options OrchestratorOptions) *Orchestrator {
	return &Orchestrator{
		decisionMaker: decisionMaker,
		dispatcher:    dispatcher,
		options:       options.withDefaults(),
	}
}

// WithPhaseObserver registers a callback invoked after each phase.
func (o *Orchestrator) WithPhaseObserver(observer PhaseObserver) *Orchestrator {
	o.phaseObserver = observer
	return o
}

// WithGenerationObserver registers a callback invoked after each
// Decision Maker call.
func (o *Orchestrator) WithGenerationObserver(observer GenerationObserver) *Orchestrator {
	o.genObserver = observer
	return o
}

// Run executes the full loop for a query and returns its final result.
// Non-positive limits fall back to the model defaults. The returned
// error is non-nil only for cancellation or a safety-net violation;
// collaborator failures are folded into the result instead.
func (o *Orchestrator) Run(ctx context.Context, query string, maxSteps, maxTools int) (*models.FinalResult, error) {
	if query == "" {
		return nil, models.ErrEmptyQuery
	}
	state := models.NewAgentState(query, maxSteps, maxTools)
	return o.runLoop(ctx, state, nil)
}

// RunStream executes the loop asynchronously, emitting a StreamEvent
// per phase and tool call. The channel is closed after a final
// "answer" (or "error") event followed by "done".
func (o *Orchestrator) RunStream(ctx context.Context, query string, maxSteps, maxTools int) <-chan *StreamEvent {
	events := make(chan *StreamEvent, 16)
	go func() {
		defer close(events)
		emit := func(event *StreamEvent) {
			select {
			case events <- event:
			case <-ctx.Done():
			}
		}

		if query == "" {
			emit(NewErrorEvent(models.ErrEmptyQuery.Error()))
			emit(NewDoneEvent())
			return
		}

		state := models.NewAgentState(query, maxSteps, maxTools)
		result, err := o.runLoop(ctx, state, emit)
		if err != nil {
			emit(NewErrorEvent(err.Error()))
		} else {
			emit(NewAnswerEvent(result))
		}
		emit(NewDoneEvent())
	}()
	return events
}

// runLoop advances the state machine until DONE. The emit callback is
// optional and used for streaming runs.
func (o *Orchestrator) runLoop(ctx context.Context, state *models.AgentState, emit func(*StreamEvent)) (*models.FinalResult, error) {
	queryID := uuid.NewString()
	start := time.Now()
	transitions := 0

	for state.Phase != models.PhaseDone {
		// Cancellation is honored between phases only; in-flight
		// Decision Maker and tool calls are bounded by their own
		// timeouts.
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %v", models.ErrRunCancelled, err)
		}

		transitions++
		if transitions > o.options.MaxTransitions {
			return nil, fmt.Errorf("%w: %d transitions without reaching %s", models.ErrTransitionLimit, transitions, models.PhaseDone)
		}

		phase := state.Phase
		phaseStart := time.Now()
		switch phase {
		case models.PhasePlan:
			o.runPlan(ctx, state)
		case models.PhaseInvestigate:
			o.runInvestigate(ctx, state)
		case models.PhaseAct:
			o.runAct(ctx, state, emit)
		case models.PhaseSynthesize:
			o.runSynthesize(ctx, state)
		default:
			return nil, fmt.Errorf("%w: %q", models.ErrUnknownPhase, state.Phase)
		}
		if o.phaseObserver != nil {
			o.phaseObserver(phase, time.Since(phaseStart))
		}

		if emit != nil {
			emit(NewPhaseEvent(phase, state.StepCount, state.Confidence))
		}
	}

	return models.NewFinalResult(queryID, state, time.Since(start)), nil
}

// runPlan asks the Decision Maker for a short investigation plan. An
// empty plan is accepted; a missing plan degrades answer quality, not
// liveness.
func (o *Orchestrator) runPlan(ctx context.Context, state *models.AgentState) {
	state.Plan = o.generate(ctx, state, BuildPlanPrompt(state.Query))
	state.Phase = models.PhaseInvestigate
	state.StepCount++
}

// runInvestigate asks which tool to call next and fuzzy-matches the
// answer onto the fixed tool vocabulary.
func (o *Orchestrator) runInvestigate(ctx context.Context, state *models.AgentState) {
	raw := o.generate(ctx, state, BuildToolSelectionPrompt(state.Plan, state.Query))
	state.PendingTool = MatchToolName(raw)
	state.Phase = models.PhaseAct
	state.StepCount++
}

// runAct executes the pending tool, folds its result into the state
// and routes to the next phase via the stopping rules.
func (o *Orchestrator) runAct(ctx context.Context, state *models.AgentState, emit func(*StreamEvent)) {
	toolName := state.PendingTool
	if toolName == "" {
		toolName = DefaultTool
	}

	input := BuildToolInput(toolName, state.Query)
	result := o.dispatcher.Execute(ctx, toolName, input)

	state.RecordToolResult(toolName, result)
	if !result.Success() {
		state.AddError(fmt.Sprintf("%s: %s", toolName, result.ErrorMessage()))
	}

	switch {
	case isSearchTool(toolName) && result.Success():
		state.Evidence = result.Items()
	case isDependenciesTool(toolName) && result.Success():
		state.DependencyContext = result
	}

	state.StepCount++
	if emit != nil {
		emit(NewToolEvent(toolName, result))
	}

	state.Phase = NextPhase(state)
}

// runSynthesize builds the final answer from everything accumulated.
// It runs even with zero tool results; the prompt then carries an
// empty result set and confidence falls back to 0.5.
func (o *Orchestrator) runSynthesize(ctx context.Context, state *models.AgentState) {
	prompt := BuildSynthesisPrompt(state.Query, state.ToolResultsJSON())
	state.FinalAnswer = o.generate(ctx, state, prompt)
	state.Confidence = state.SynthesisConfidence()
	state.Phase = models.PhaseDone
	state.StepCount++
}

// NextPhase decides where Act routes, evaluating the stopping rules in
// priority order. The order is the contract: hard resource limits
// dominate, a first tool call is always taken, then confidence and the
// two-result cap trade quality against cost.
func NextPhase(state *models.AgentState) models.Phase {
	switch {
	case state.StepCount >= state.MaxSteps:
		return models.PhaseSynthesize
	case len(state.ToolResults) >= state.MaxTools:
		return models.PhaseSynthesize
	case len(state.ToolResults) == 0:
		return models.PhaseInvestigate
	case state.Confidence > 0.7:
		return models.PhaseSynthesize
	case len(state.ToolResults) >= 2:
		return models.PhaseSynthesize
	default:
		return models.PhaseInvestigate
	}
}

// generate calls the Decision Maker under the per-call timeout. Any
// failure is recorded on the state and returned as empty text.
func (o *Orchestrator) generate(ctx context.Context, state *models.AgentState, prompt string) string {
	callCtx, cancel := context.WithTimeout(ctx, o.options.DecisionTimeout)
	defer cancel()

	text, err := o.decisionMaker.Generate(callCtx, prompt, o.options.MaxTokens)
	if o.genObserver != nil {
		o.genObserver(o.options.MaxTokens, err != nil)
	}
	if err != nil {
		state.AddError(fmt.Sprintf("decision maker: %v", err))
		return ""
	}
	return text
}

func isSearchTool(name string) bool {
	return containsFold(name, "search")
}

func isDependenciesTool(name string) bool {
	return containsFold(name, "dependencies")
}
