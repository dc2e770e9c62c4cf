package integration

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mshogin/lineage/internal/infrastructure/config"
	"github.com/mshogin/lineage/internal/infrastructure/providers"
)

// skipIfNoAPIKey skips test if required API key is not set
func skipIfNoAPIKey(t *testing.T, envVar string) {
	if os.Getenv(envVar) == "" {
		t.Skipf("Skipping test: %s environment variable not set", envVar)
	}
}

// TestOllamaProvider_Integration exercises a local Ollama daemon.
// Set OLLAMA_INTEGRATION=1 to enable.
func TestOllamaProvider_Integration(t *testing.T) {
	if os.Getenv("OLLAMA_INTEGRATION") == "" {
		t.Skip("Skipping test: OLLAMA_INTEGRATION environment variable not set")
	}

	baseURL := os.Getenv("OLLAMA_BASE_URL")
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	model := os.Getenv("OLLAMA_MODEL")
	if model == "" {
		model = "mistral"
	}

	provider, err := providers.New(config.LLMConfig{
		Provider:    "ollama",
		Model:       model,
		BaseURL:     baseURL,
		Temperature: 0.0,
		Timeout:     60 * time.Second,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	require.NoError(t, provider.CheckHealth(ctx))

	response, err := provider.Generate(ctx, "Reply with the single word: lineage", 20)
	require.NoError(t, err)
	assert.NotEmpty(t, response)
	t.Logf("Ollama response: %s", response)
}

// TestOpenAIProvider_Integration tests the OpenAI provider with the real API.
func TestOpenAIProvider_Integration(t *testing.T) {
	skipIfNoAPIKey(t, "OPENAI_API_KEY")

	provider, err := providers.New(config.LLMConfig{
		Provider:    "openai",
		Model:       "gpt-4o-mini",
		APIKey:      os.Getenv("OPENAI_API_KEY"),
		Temperature: 0.0,
		Timeout:     30 * time.Second,
	})
	require.NoError(t, err)
	assert.Equal(t, "openai", provider.Name())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	require.NoError(t, provider.CheckHealth(ctx))

	response, err := provider.Generate(ctx, "Say 'Hello from integration test'", 50)
	require.NoError(t, err)
	assert.NotEmpty(t, response)
	t.Logf("OpenAI response: %s", response)
}

// TestAnthropicProvider_Integration tests the Anthropic provider with the real API.
func TestAnthropicProvider_Integration(t *testing.T) {
	skipIfNoAPIKey(t, "ANTHROPIC_API_KEY")

	provider, err := providers.New(config.LLMConfig{
		Provider:    "anthropic",
		Model:       "claude-3-5-haiku-20241022",
		APIKey:      os.Getenv("ANTHROPIC_API_KEY"),
		Temperature: 0.0,
		Timeout:     30 * time.Second,
	})
	require.NoError(t, err)
	assert.Equal(t, "anthropic", provider.Name())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	require.NoError(t, provider.CheckHealth(ctx))

	response, err := provider.Generate(ctx, "Say 'Hello from integration test'", 50)
	require.NoError(t, err)
	assert.NotEmpty(t, response)
	t.Logf("Anthropic response: %s", response)
}

// TestProviderFactory_UnknownProvider verifies factory rejection.
func TestProviderFactory_UnknownProvider(t *testing.T) {
	_, err := providers.New(config.LLMConfig{Provider: "carrier-pigeon"})
	require.Error(t, err)
}
