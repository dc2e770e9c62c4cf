package services

import (
	"encoding/json"

	"github.com/mshogin/lineage/internal/domain/models"
)

// StreamEvent represents one step of an agent run as seen by a
// streaming client. Events are sent from the orchestrator to the HTTP
// handler for SSE streaming.
type StreamEvent struct {
	Type string `json:"type"` // "phase", "tool", "answer", "error", "done"
	Data any    `json:"data"`
}

// NewPhaseEvent reports a completed phase: the phase that just ran,
// not its successor.
func NewPhaseEvent(phase models.Phase, stepCount int, confidence float64) *StreamEvent {
	return &StreamEvent{
		Type: "phase",
		Data: map[string]any{
			"phase":      phase,
			"step_count": stepCount,
			"confidence": confidence,
		},
	}
}

// NewToolEvent reports one executed tool call.
func NewToolEvent(toolName string, result models.ToolResult) *StreamEvent {
	return &StreamEvent{
		Type: "tool",
		Data: map[string]any{
			"tool":    toolName,
			"success": result.Success(),
			"count":   result.Count(),
		},
	}
}

// NewAnswerEvent carries the final result of a run.
func NewAnswerEvent(result *models.FinalResult) *StreamEvent {
	return &StreamEvent{
		Type: "answer",
		Data: result,
	}
}

// NewErrorEvent reports a run that ended without a result.
func NewErrorEvent(message string) *StreamEvent {
	return &StreamEvent{
		Type: "error",
		Data: map[string]any{"message": message},
	}
}

// NewDoneEvent terminates the stream; always the last event sent.
func NewDoneEvent() *StreamEvent {
	return &StreamEvent{Type: "done"}
}

// ToSSE renders the event as one Server-Sent Events frame.
func (e *StreamEvent) ToSSE() (string, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return "", err
	}
	return "data: " + string(payload) + "\n\n", nil
}
