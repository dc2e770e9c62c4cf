package services

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/mshogin/lineage/internal/domain/models"
)

// Tool is one named retrieval capability the orchestration loop can
// invoke. Tools take a structured input and return a ToolResult tagged
// success or failure; they fold their own store errors into failed
// results rather than returning Go errors.
//
// Design Principles:
// - Single Responsibility: each tool answers one kind of question
// - Uniform result shape: success bool plus tool-specific fields
// - Deterministic given its backing stores: same input, same result
type Tool struct {
	// Name is the registry key (e.g., "search_vector_db").
	Name string

	// Description is a one-line summary used in planning prompts.
	Description string

	// SchemaJSON is the JSON Schema the input must satisfy.
	SchemaJSON string

	// Fn executes the tool.
	Fn func(ctx context.Context, input map[string]any) models.ToolResult
}

// ToolValidationError reports a tool input that failed schema
// validation.
type ToolValidationError struct {
	Tool   string
	Issues []string
}

func (e *ToolValidationError) Error() string {
	return fmt.Sprintf("invalid input for %s: %s", e.Tool, strings.Join(e.Issues, "; "))
}

// ValidateInput checks the input against the tool's JSON schema.
func (t *Tool) ValidateInput(input map[string]any) error {
	if t.SchemaJSON == "" {
		return nil
	}
	schemaLoader := gojsonschema.NewStringLoader(t.SchemaJSON)
	inputLoader := gojsonschema.NewGoLoader(input)

	result, err := gojsonschema.Validate(schemaLoader, inputLoader)
	if err != nil {
		return fmt.Errorf("schema validation for %s: %w", t.Name, err)
	}
	if result.Valid() {
		return nil
	}
	verr := &ToolValidationError{Tool: t.Name}
	for _, issue := range result.Errors() {
		verr.Issues = append(verr.Issues, issue.String())
	}
	return verr
}

// ToolRegistry is the fixed set of named tools available to one
// engine. Lookups are case-insensitive. The registry is immutable
// after construction and safe for concurrent readers.
type ToolRegistry struct {
	tools map[string]*Tool
	names []string
}

// NewToolRegistry builds a registry from the given tools. Names are
// normalized to lower case for lookup; the declared casing is kept for
// display.
func NewToolRegistry(tools ...*Tool) *ToolRegistry {
	registry := &ToolRegistry{
		tools: make(map[string]*Tool, len(tools)),
		names: make([]string, 0, len(tools)),
	}
	for _, tool := range tools {
		key := strings.ToLower(tool.Name)
		if _, exists := registry.tools[key]; exists {
			continue
		}
		registry.tools[key] = tool
		registry.names = append(registry.names, tool.Name)
	}
	sort.Strings(registry.names)
	return registry
}

// Get resolves a tool by name, case-insensitively.
func (r *ToolRegistry) Get(name string) (*Tool, bool) {
	tool, ok := r.tools[strings.ToLower(strings.TrimSpace(name))]
	return tool, ok
}

// Names returns the registered tool names, sorted.
func (r *ToolRegistry) Names() []string {
	return append([]string(nil), r.names...)
}

// Len returns the number of registered tools.
func (r *ToolRegistry) Len() int {
	return len(r.tools)
}

// Descriptions returns "name - description" lines for planning
// prompts, in registration name order.
func (r *ToolRegistry) Descriptions() []string {
	lines := make([]string, 0, len(r.names))
	for _, name := range r.names {
		tool := r.tools[strings.ToLower(name)]
		lines = append(lines, fmt.Sprintf("%s - %s", tool.Name, tool.Description))
	}
	return lines
}
