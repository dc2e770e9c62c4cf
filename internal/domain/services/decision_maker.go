package services

import "context"

// DecisionMaker defines the interface the orchestration loop uses to
// obtain free text from a language model. This interface follows the
// Dependency Inversion Principle (DIP) - it's defined in the domain
// layer and implemented in the infrastructure layer.
//
// Key design principles:
// - Small, focused interface (Interface Segregation Principle)
// - Easy to mock for testing
// - Provider-agnostic (supports Ollama, OpenAI, Anthropic, etc.)
//
// The loop treats every implementation as a fallible, latent oracle:
// an error return is always recovered locally (recorded and replaced
// by empty text), never retried and never propagated.
type DecisionMaker interface {
	// Name returns the provider's identifier (e.g., "ollama", "openai")
	Name() string

	// Generate sends a prompt and returns the model's free-text reply.
	// maxTokens bounds the response length; implementations must honor
	// ctx for cancellation and deadline control.
	Generate(ctx context.Context, prompt string, maxTokens int) (string, error)

	// CheckHealth verifies the provider is reachable and credentials
	// are valid. Returns nil if healthy, error otherwise.
	CheckHealth(ctx context.Context) error
}
