package models

import "errors"

// Domain-level errors for validation and business logic.
// These errors are defined in the domain layer and can be used
// throughout the application.

var (
	// Request validation errors
	ErrEmptyQuery   = errors.New("query field is required")
	ErrInvalidDepth = errors.New("depth must be between 1 and 10")

	// State machine errors
	ErrInvalidState    = errors.New("agent state invariant violated")
	ErrTransitionLimit = errors.New("phase transition safety limit exceeded")
	ErrUnknownPhase    = errors.New("unknown phase")
	ErrRunCancelled    = errors.New("investigation cancelled")

	// Provider errors
	ErrProviderNotFound  = errors.New("provider not found")
	ErrProviderDisabled  = errors.New("provider is disabled")
	ErrProviderUnhealthy = errors.New("provider health check failed")

	// Store errors
	ErrNodeNotFound = errors.New("node not found")
	ErrEmptyVector  = errors.New("embedding vector is empty")
	ErrDimension    = errors.New("embedding dimension mismatch")
)
