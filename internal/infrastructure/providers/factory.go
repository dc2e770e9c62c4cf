package providers

import (
	"fmt"

	"github.com/mshogin/lineage/internal/domain/models"
	"github.com/mshogin/lineage/internal/domain/services"
	"github.com/mshogin/lineage/internal/infrastructure/config"
)

// New builds the DecisionMaker named by the configuration.
func New(cfg config.LLMConfig) (services.DecisionMaker, error) {
	switch cfg.Provider {
	case "ollama", "":
		return NewOllamaProvider(cfg), nil
	case "openai":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("%w: openai requires an api_key", models.ErrProviderDisabled)
		}
		return NewOpenAIProvider(cfg), nil
	case "anthropic":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("%w: anthropic requires an api_key", models.ErrProviderDisabled)
		}
		return NewAnthropicProvider(cfg), nil
	default:
		return nil, fmt.Errorf("%w: %s", models.ErrProviderNotFound, cfg.Provider)
	}
}
