package models

import "encoding/json"

// ToolResult is the uniform result shape every tool returns. It is a
// plain mapping with one guaranteed key, "success"; everything else
// (items, dependencies, path, confidence, ...) is tool-specific and
// opaque to the dispatcher and the orchestrator.
type ToolResult map[string]any

// FailedToolResult builds the normalized failure shape used across
// the dispatcher boundary.
func FailedToolResult(message string) ToolResult {
	return ToolResult{
		"success": false,
		"error":   message,
	}
}

// Success reports whether the result carries success=true.
// A missing or non-boolean success field counts as failure.
func (r ToolResult) Success() bool {
	ok, _ := r["success"].(bool)
	return ok
}

// ErrorMessage returns the error field, empty when absent.
func (r ToolResult) ErrorMessage() string {
	msg, _ := r["error"].(string)
	return msg
}

// Count returns the integer count field when present.
// Tools report result counts under this key; callers that log
// execution summaries read it without knowing the tool.
func (r ToolResult) Count() int {
	switch v := r["count"].(type) {
	case int:
		return v
	case float64:
		return int(v)
	}
	return 0
}

// Items returns the items field as a generic slice when present.
func (r ToolResult) Items() []map[string]any {
	raw, ok := r["items"].([]map[string]any)
	if ok {
		return raw
	}
	generic, ok := r["items"].([]any)
	if !ok {
		return nil
	}
	items := make([]map[string]any, 0, len(generic))
	for _, entry := range generic {
		if m, ok := entry.(map[string]any); ok {
			items = append(items, m)
		}
	}
	return items
}

// Clone returns a shallow copy of the result.
func (r ToolResult) Clone() ToolResult {
	if r == nil {
		return nil
	}
	clone := make(ToolResult, len(r))
	for k, v := range r {
		clone[k] = v
	}
	return clone
}

// MarshalIndent serializes the result as indented JSON for inclusion
// in synthesis prompts and logs.
func (r ToolResult) MarshalIndent() string {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(data)
}
