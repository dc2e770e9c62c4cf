package providers

import (
	"context"
	"fmt"

	anthropic "github.com/liushuangls/go-anthropic/v2"

	"github.com/mshogin/lineage/internal/domain/models"
	"github.com/mshogin/lineage/internal/domain/services"
	"github.com/mshogin/lineage/internal/infrastructure/config"
)

// AnthropicProvider implements the DecisionMaker interface through the
// Anthropic messages API.
type AnthropicProvider struct {
	client      *anthropic.Client
	model       string
	temperature float32
}

// NewAnthropicProvider creates a new Anthropic provider instance.
func NewAnthropicProvider(cfg config.LLMConfig) services.DecisionMaker {
	model := cfg.Model
	if model == "" {
		model = "claude-3-5-haiku-20241022"
	}

	return &AnthropicProvider{
		client:      anthropic.NewClient(cfg.APIKey),
		model:       model,
		temperature: cfg.Temperature,
	}
}

// Name returns the provider identifier.
func (p *AnthropicProvider) Name() string {
	return "anthropic"
}

// Generate sends the prompt as a single user message and concatenates
// the text blocks of the reply.
func (p *AnthropicProvider) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	if maxTokens <= 0 {
		maxTokens = 512
	}

	req := anthropic.MessagesRequest{
		Model: anthropic.Model(p.model),
		Messages: []anthropic.Message{
			{
				Role:    anthropic.RoleUser,
				Content: []anthropic.MessageContent{anthropic.NewTextMessageContent(prompt)},
			},
		},
		MaxTokens: maxTokens,
	}
	if p.temperature > 0 {
		temperature := p.temperature
		req.Temperature = &temperature
	}

	resp, err := p.client.CreateMessages(ctx, req)
	if err != nil {
		return "", fmt.Errorf("Anthropic completion failed: %w", err)
	}

	var text string
	for _, block := range resp.Content {
		if block.Type == anthropic.MessagesContentTypeText && block.Text != nil {
			text += *block.Text
		}
	}
	return text, nil
}

// CheckHealth verifies the API accepts the configured credentials with
// a minimal one-token request.
func (p *AnthropicProvider) CheckHealth(ctx context.Context) error {
	_, err := p.client.CreateMessages(ctx, anthropic.MessagesRequest{
		Model: anthropic.Model(p.model),
		Messages: []anthropic.Message{
			{
				Role:    anthropic.RoleUser,
				Content: []anthropic.MessageContent{anthropic.NewTextMessageContent("ping")},
			},
		},
		MaxTokens: 1,
	})
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrProviderUnhealthy, err)
	}
	return nil
}
