package services

import (
	"context"
	"fmt"
	"time"

	"github.com/mshogin/lineage/internal/domain/models"
	domainservices "github.com/mshogin/lineage/internal/domain/services"
)

// DefaultToolTimeout bounds a single tool execution.
const DefaultToolTimeout = 10 * time.Second

// ToolDispatcher executes named tools from a fixed registry. It never
// returns a Go error: unknown names, invalid inputs, panics and tool
// failures all surface as a failed ToolResult so the orchestration
// loop keeps running no matter what a tool does.
//
// Design principles:
// - Pure pass-through: tool-specific result fields are opaque here
// - Total function: every call yields a ToolResult with a success flag
// - Bounded execution: every tool call runs under its own timeout
type ToolDispatcher struct {
	registry *domainservices.ToolRegistry
	timeout  time.Duration
	observer ToolObserver
}

// ToolObserver is notified after every tool execution, successful or
// not. Used to feed the metrics collector without coupling the
// dispatcher to it.
type ToolObserver func(toolName string, success bool, duration time.Duration, errMessage string)

// NewToolDispatcher creates a dispatcher over the given registry.
// Non-positive timeouts fall back to DefaultToolTimeout.
func NewToolDispatcher(registry *domainservices.ToolRegistry, timeout time.Duration) *ToolDispatcher {
	if timeout <= 0 {
		timeout = DefaultToolTimeout
	}
	return &ToolDispatcher{registry: registry, timeout: timeout}
}

// WithObserver sets the execution observer and returns the dispatcher.
func (d *ToolDispatcher) WithObserver(observer ToolObserver) *ToolDispatcher {
	d.observer = observer
	return d
}

// Execute looks up the tool case-insensitively and invokes it.
func (d *ToolDispatcher) Execute(ctx context.Context, toolName string, input map[string]any) (result models.ToolResult) {
	start := time.Now()
	defer func() {
		if d.observer != nil {
			d.observer(toolName, result.Success(), time.Since(start), result.ErrorMessage())
		}
	}()

	tool, ok := d.registry.Get(toolName)
	if !ok {
		return models.FailedToolResult(fmt.Sprintf("Tool not found: %s", toolName))
	}

	if err := tool.ValidateInput(input); err != nil {
		return models.FailedToolResult(err.Error())
	}

	defer func() {
		if r := recover(); r != nil {
			result = models.FailedToolResult(fmt.Sprintf("tool %s panicked: %v", tool.Name, r))
		}
	}()

	callCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	result = tool.Fn(callCtx, input)
	if result == nil {
		result = models.FailedToolResult(fmt.Sprintf("tool %s returned no result", tool.Name))
	}
	return result
}

// Names returns the registered tool names.
func (d *ToolDispatcher) Names() []string {
	return d.registry.Names()
}
