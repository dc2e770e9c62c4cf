package models

// QueryRequest is the payload for the direct lineage query endpoint.
// The direct pipeline embeds the question, retrieves the closest
// documents, walks the upstream lineage of the top hit and asks the
// language model for a single answer.
type QueryRequest struct {
	// Query is the natural-language question.
	Query string `json:"query"`

	// Depth bounds the upstream graph traversal (default 3).
	Depth int `json:"depth,omitempty"`
}

// Validate checks if the request is valid and applies defaults.
func (r *QueryRequest) Validate() error {
	if r.Query == "" {
		return ErrEmptyQuery
	}
	if r.Depth == 0 {
		r.Depth = 3
	}
	if r.Depth < 1 || r.Depth > 10 {
		return ErrInvalidDepth
	}
	return nil
}

// AgentQueryRequest is the payload for the agent investigation
// endpoint. MaxSteps and MaxTools override the configured limits for
// this run only; zero keeps the defaults.
type AgentQueryRequest struct {
	// Query is the natural-language question.
	Query string `json:"query"`

	// MaxSteps bounds phase transitions for this run.
	MaxSteps int `json:"max_steps,omitempty"`

	// MaxTools bounds stored tool results for this run.
	MaxTools int `json:"max_tools,omitempty"`

	// Stream switches the response to Server-Sent Events with one
	// event per completed phase.
	Stream bool `json:"stream,omitempty"`
}

// Validate checks if the request is valid.
func (r *AgentQueryRequest) Validate() error {
	if r.Query == "" {
		return ErrEmptyQuery
	}
	if r.MaxSteps < 0 || r.MaxTools < 0 {
		return ErrInvalidState
	}
	return nil
}
