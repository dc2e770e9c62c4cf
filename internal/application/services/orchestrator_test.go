package services

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mshogin/lineage/internal/domain/models"
	domainservices "github.com/mshogin/lineage/internal/domain/services"
	"github.com/mshogin/lineage/internal/testutil/fixtures"
)

// stubTool builds a registry tool that always returns a clone of the
// given result and counts its invocations.
func stubTool(name string, result models.ToolResult, calls *atomic.Int64) *domainservices.Tool {
	return &domainservices.Tool{
		Name:        name,
		Description: "stub",
		Fn: func(ctx context.Context, input map[string]any) models.ToolResult {
			if calls != nil {
				calls.Add(1)
			}
			return result.Clone()
		},
	}
}

func successResult() models.ToolResult {
	return models.ToolResult{
		"success": true,
		"items": []map[string]any{
			{"id": "dashboard_revenue", "table_name": "revenue_dashboard", "similarity": 0.91},
		},
		"count": 1,
	}
}

func newTestOrchestrator(dm domainservices.DecisionMaker, tools ...*domainservices.Tool) *Orchestrator {
	registry := domainservices.NewToolRegistry(tools...)
	dispatcher := NewToolDispatcher(registry, 0)
	return NewOrchestrator(dm, dispatcher, DefaultOrchestratorOptions())
}

func TestOrchestrator_Run_HappyPath(t *testing.T) {
	dm := fixtures.NewMockDecisionMaker().WithResponses(
		"1. Search for the dashboard\n2. Check dependencies",
		"search_vector_db",
		"Lineage:\nThe revenue dashboard is fed by revenue_daily.\n\nTables:\nrevenue_daily, revenue_dashboard\n\nPath:\norders -> order_clean -> revenue_daily -> revenue_dashboard",
	)
	var calls atomic.Int64
	o := newTestOrchestrator(dm, stubTool("search_vector_db", successResult(), &calls))

	result, err := o.Run(context.Background(), "What feeds into the revenue dashboard?", 8, 3)
	require.NoError(t, err)

	assert.Equal(t, models.PhaseDone, result.Phase)
	assert.NotEmpty(t, result.QueryID)
	assert.Contains(t, result.FinalAnswer, "revenue_daily")
	assert.Equal(t, 1.0, result.Confidence)
	assert.Equal(t, []string{"search_vector_db"}, result.ToolsInvoked)
	require.Len(t, result.ToolResults, 1)
	assert.True(t, result.ToolResults["search_vector_db"].Success())

	// plan, investigate, act, synthesize
	assert.Equal(t, 4, result.StepCount)
	assert.Equal(t, int64(1), calls.Load())
	assert.Equal(t, 3, dm.CallCount())
	assert.Empty(t, result.Errors)
}

func TestOrchestrator_Run_EmptyQuery(t *testing.T) {
	o := newTestOrchestrator(fixtures.NewMockDecisionMaker(), stubTool("search_vector_db", successResult(), nil))

	_, err := o.Run(context.Background(), "", 8, 3)
	assert.ErrorIs(t, err, models.ErrEmptyQuery)
}

func TestOrchestrator_Run_UnrecognizedSelectorAndFailingTool(t *testing.T) {
	// The selector never produces a usable name, so every Investigate
	// falls back to the default tool; the tool always fails. The
	// repeated calls overwrite a single result entry, so termination
	// comes from the step budget.
	dm := fixtures.NewMockDecisionMaker().WithResponses(
		"some plan", "frobnicate", "frobnicate", "frobnicate", "frobnicate",
	)
	var calls atomic.Int64
	o := newTestOrchestrator(dm, stubTool("search_vector_db", models.FailedToolResult("store unavailable"), &calls))

	result, err := o.Run(context.Background(), "What feeds into the revenue dashboard?", 8, 3)
	require.NoError(t, err)

	assert.Equal(t, models.PhaseDone, result.Phase)
	assert.Equal(t, 0.0, result.Confidence)
	assert.Equal(t, int64(4), calls.Load())
	assert.Equal(t, []string{
		"search_vector_db", "search_vector_db", "search_vector_db", "search_vector_db",
	}, result.ToolsInvoked)
	assert.Len(t, result.ToolResults, 1)
	assert.NotEmpty(t, result.Errors)
	// plan, 4x(investigate+act), synthesize
	assert.Equal(t, 10, result.StepCount)
}

func TestOrchestrator_Run_DecisionMakerAlwaysFails(t *testing.T) {
	dm := fixtures.NewMockDecisionMaker().WithFailure(errors.New("transport down"))
	o := newTestOrchestrator(dm, stubTool("search_vector_db", successResult(), nil))

	result, err := o.Run(context.Background(), "What feeds into the revenue dashboard?", 8, 3)
	require.NoError(t, err)

	// Planning and selection degrade to empty text and the default
	// tool; the run still reaches a synthesized (empty) answer.
	assert.Equal(t, models.PhaseDone, result.Phase)
	assert.Equal(t, "", result.FinalAnswer)
	assert.Equal(t, 1.0, result.Confidence)
	assert.Equal(t, []string{"search_vector_db"}, result.ToolsInvoked)
	assert.NotEmpty(t, result.Errors)
	assert.Contains(t, result.Errors[0], "decision maker")
}

func TestOrchestrator_Run_TwoFailedDistinctToolsStopAtTwo(t *testing.T) {
	dm := fixtures.NewMockDecisionMaker().WithResponses(
		"plan", "get_node_metadata", "check_data_freshness", "irrelevant",
	)
	o := newTestOrchestrator(dm,
		stubTool("get_node_metadata", models.FailedToolResult("node store down"), nil),
		stubTool("check_data_freshness", models.FailedToolResult("freshness store down"), nil),
		stubTool("search_vector_db", models.FailedToolResult("vector store down"), nil),
	)

	result, err := o.Run(context.Background(), "Is table_users fresh?", 8, 3)
	require.NoError(t, err)

	// Two accumulated results with mediocre confidence hit the
	// two-result cap.
	assert.Equal(t, models.PhaseDone, result.Phase)
	assert.Equal(t, []string{"get_node_metadata", "check_data_freshness"}, result.ToolsInvoked)
	assert.Len(t, result.ToolResults, 2)
	assert.Equal(t, 0.0, result.Confidence)
	// plan, investigate, act, investigate, act, synthesize
	assert.Equal(t, 6, result.StepCount)
}

func TestOrchestrator_Run_TightStepBudgetStillCallsOneTool(t *testing.T) {
	dm := fixtures.NewMockDecisionMaker().WithResponses("plan", "search_vector_db", "short answer")
	var calls atomic.Int64
	o := newTestOrchestrator(dm, stubTool("search_vector_db", successResult(), &calls))

	result, err := o.Run(context.Background(), "What feeds into the revenue dashboard?", 2, 3)
	require.NoError(t, err)

	// Plan and Investigate alone exhaust max_steps=2; Act still
	// executes its tool once, then the budget routes straight to
	// synthesis.
	assert.Equal(t, models.PhaseDone, result.Phase)
	assert.Equal(t, int64(1), calls.Load())
	assert.Equal(t, "short answer", result.FinalAnswer)
	assert.Equal(t, 4, result.StepCount)
}

func TestOrchestrator_Run_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	o := newTestOrchestrator(fixtures.NewMockDecisionMaker(), stubTool("search_vector_db", successResult(), nil))

	_, err := o.Run(ctx, "What feeds into the revenue dashboard?", 8, 3)
	assert.ErrorIs(t, err, models.ErrRunCancelled)
}

func TestOrchestrator_Run_TransitionSafetyNet(t *testing.T) {
	options := DefaultOrchestratorOptions()
	options.MaxTransitions = 3

	registry := domainservices.NewToolRegistry(stubTool("search_vector_db", successResult(), nil))
	o := NewOrchestrator(fixtures.NewMockDecisionMaker(), NewToolDispatcher(registry, 0), options)

	_, err := o.Run(context.Background(), "What feeds into the revenue dashboard?", 8, 3)
	assert.ErrorIs(t, err, models.ErrTransitionLimit)
}

func TestOrchestrator_Observers(t *testing.T) {
	dm := fixtures.NewMockDecisionMaker().WithResponses(
		"plan", "search_vector_db", "answer",
	)
	o := newTestOrchestrator(dm, stubTool("search_vector_db", successResult(), nil))

	var phases []models.Phase
	var generations, failures int
	o.WithPhaseObserver(func(phase models.Phase, duration time.Duration) {
		phases = append(phases, phase)
	}).WithGenerationObserver(func(tokens int, failed bool) {
		generations++
		if failed {
			failures++
		}
		assert.Equal(t, DefaultMaxTokens, tokens)
	})

	_, err := o.Run(context.Background(), "What feeds into the revenue dashboard?", 8, 3)
	require.NoError(t, err)

	assert.Equal(t, []models.Phase{
		models.PhasePlan, models.PhaseInvestigate, models.PhaseAct, models.PhaseSynthesize,
	}, phases)
	assert.Equal(t, 3, generations)
	assert.Zero(t, failures)
}

func TestOrchestrator_GenerationObserver_CountsFailures(t *testing.T) {
	dm := fixtures.NewMockDecisionMaker().WithFailure(errors.New("provider down"))
	o := newTestOrchestrator(dm, stubTool("search_vector_db", successResult(), nil))

	var generations, failures int
	o.WithGenerationObserver(func(tokens int, failed bool) {
		generations++
		if failed {
			failures++
		}
	})

	result, err := o.Run(context.Background(), "What feeds into the revenue dashboard?", 8, 3)
	require.NoError(t, err)
	assert.Equal(t, models.PhaseDone, result.Phase)
	assert.Equal(t, generations, failures)
	assert.Greater(t, failures, 0)
}

func TestOrchestrator_RunLoop_EvidenceAndDependencyContext(t *testing.T) {
	depResult := models.ToolResult{
		"success":          true,
		"root":             "dashboard_revenue",
		"dependency_count": 4,
		"dependencies": []map[string]any{
			{"id": "table_revenue_daily", "name": "revenue_daily", "type": "Table", "depth": 0},
		},
		"dependency_names": []string{"revenue_daily"},
		"depth_used":       3,
	}
	dm := fixtures.NewMockDecisionMaker().WithResponses("plan", "get_table_dependencies", "answer")
	o := newTestOrchestrator(dm, stubTool("get_table_dependencies", depResult, nil))

	state := models.NewAgentState("What feeds into the revenue dashboard?", 8, 3)
	_, err := o.runLoop(context.Background(), state, nil)
	require.NoError(t, err)

	assert.Empty(t, state.Evidence)
	require.NotNil(t, state.DependencyContext)
	assert.Equal(t, "dashboard_revenue", state.DependencyContext["root"])
}

func TestOrchestrator_RunLoop_SearchPopulatesEvidence(t *testing.T) {
	dm := fixtures.NewMockDecisionMaker().WithResponses("plan", "search_vector_db", "answer")
	o := newTestOrchestrator(dm, stubTool("search_vector_db", successResult(), nil))

	state := models.NewAgentState("What feeds into the revenue dashboard?", 8, 3)
	_, err := o.runLoop(context.Background(), state, nil)
	require.NoError(t, err)

	require.Len(t, state.Evidence, 1)
	assert.Equal(t, "dashboard_revenue", state.Evidence[0]["id"])
	assert.Nil(t, state.DependencyContext)
}

func TestOrchestrator_RunSynthesize_EmptyToolResults(t *testing.T) {
	dm := fixtures.NewMockDecisionMaker().WithResponses("no tools ran")
	o := newTestOrchestrator(dm, stubTool("search_vector_db", successResult(), nil))

	state := models.NewAgentState("anything", 8, 3)
	state.Phase = models.PhaseSynthesize

	o.runSynthesize(context.Background(), state)

	assert.Equal(t, models.PhaseDone, state.Phase)
	assert.Equal(t, "no tools ran", state.FinalAnswer)
	assert.Equal(t, 0.5, state.Confidence)
}

func TestOrchestrator_RunStream(t *testing.T) {
	dm := fixtures.NewMockDecisionMaker().WithResponses("plan", "search_vector_db", "streamed answer")
	o := newTestOrchestrator(dm, stubTool("search_vector_db", successResult(), nil))

	events := o.RunStream(context.Background(), "What feeds into the revenue dashboard?", 8, 3)

	var types []string
	var answer *models.FinalResult
	for event := range events {
		types = append(types, event.Type)
		if event.Type == "answer" {
			answer = event.Data.(*models.FinalResult)
		}
	}

	require.NotEmpty(t, types)
	assert.Equal(t, "done", types[len(types)-1])
	assert.Contains(t, types, "phase")
	assert.Contains(t, types, "tool")
	require.NotNil(t, answer)
	assert.Equal(t, "streamed answer", answer.FinalAnswer)
	assert.Equal(t, models.PhaseDone, answer.Phase)
}

func TestOrchestrator_RunStream_PhaseEventsReportCompletedPhase(t *testing.T) {
	dm := fixtures.NewMockDecisionMaker().WithResponses("plan", "search_vector_db", "streamed answer")
	o := newTestOrchestrator(dm, stubTool("search_vector_db", successResult(), nil))

	events := o.RunStream(context.Background(), "What feeds into the revenue dashboard?", 8, 3)

	var phases []models.Phase
	var confidences []float64
	for event := range events {
		if event.Type != "phase" {
			continue
		}
		data := event.Data.(map[string]any)
		phases = append(phases, data["phase"].(models.Phase))
		confidences = append(confidences, data["confidence"].(float64))
	}

	// Each event names the phase that just ran, starting with PLAN.
	assert.Equal(t, []models.Phase{
		models.PhasePlan, models.PhaseInvestigate, models.PhaseAct, models.PhaseSynthesize,
	}, phases)

	// Confidence appears once the Act phase has recomputed it.
	require.Len(t, confidences, 4)
	assert.Equal(t, 0.0, confidences[0])
	assert.Equal(t, 1.0, confidences[2])
}

func TestOrchestrator_RunStream_EmptyQuery(t *testing.T) {
	o := newTestOrchestrator(fixtures.NewMockDecisionMaker(), stubTool("search_vector_db", successResult(), nil))

	events := o.RunStream(context.Background(), "", 8, 3)

	var types []string
	for event := range events {
		types = append(types, event.Type)
	}
	assert.Equal(t, []string{"error", "done"}, types)
}

func TestNextPhase_PriorityOrder(t *testing.T) {
	base := func() *models.AgentState {
		return models.NewAgentState("q", 8, 3)
	}

	tests := []struct {
		name  string
		setup func(*models.AgentState)
		want  models.Phase
	}{
		{
			name: "step budget dominates even with zero results",
			setup: func(s *models.AgentState) {
				s.StepCount = 8
			},
			want: models.PhaseSynthesize,
		},
		{
			name: "max tools reached forces synthesis at any confidence",
			setup: func(s *models.AgentState) {
				s.StepCount = 4
				s.RecordToolResult("a", models.FailedToolResult("x"))
				s.RecordToolResult("b", models.FailedToolResult("x"))
				s.RecordToolResult("c", models.FailedToolResult("x"))
			},
			want: models.PhaseSynthesize,
		},
		{
			name: "no results yet always investigates",
			setup: func(s *models.AgentState) {
				s.StepCount = 3
			},
			want: models.PhaseInvestigate,
		},
		{
			name: "high confidence synthesizes after one result",
			setup: func(s *models.AgentState) {
				s.StepCount = 3
				s.RecordToolResult("a", models.ToolResult{"success": true})
			},
			want: models.PhaseSynthesize,
		},
		{
			name: "two mediocre results hit the hard cap",
			setup: func(s *models.AgentState) {
				s.StepCount = 4
				s.RecordToolResult("a", models.ToolResult{"success": true})
				s.RecordToolResult("b", models.FailedToolResult("x"))
			},
			want: models.PhaseSynthesize,
		},
		{
			name: "one mediocre result keeps investigating",
			setup: func(s *models.AgentState) {
				s.StepCount = 3
				s.RecordToolResult("a", models.FailedToolResult("x"))
			},
			want: models.PhaseInvestigate,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state := base()
			tt.setup(state)
			assert.Equal(t, tt.want, NextPhase(state))
		})
	}
}

func TestNextPhase_MonotonicStopping(t *testing.T) {
	// Once the distinct-result count reaches max_tools the decision is
	// SYNTHESIZE regardless of confidence.
	for _, confidence := range []float64{0.0, 0.5, 1.0} {
		state := models.NewAgentState("q", 8, 3)
		state.StepCount = 5
		state.RecordToolResult("a", models.ToolResult{"success": true})
		state.RecordToolResult("b", models.ToolResult{"success": true})
		state.RecordToolResult("c", models.ToolResult{"success": true})
		state.Confidence = confidence

		assert.Equal(t, models.PhaseSynthesize, NextPhase(state), "confidence=%v", confidence)
	}
}
