package providers

import (
	"fmt"
	"strings"

	"github.com/esquie-bot/esquie/pkg/config"
	anthropicprovider "github.com/esquie-bot/esquie/pkg/providers/anthropic"
)

// CreateProvider builds the completion backend named by cfg.Provider.
// Returns the backend, the chat model and the vision model to use.
func CreateProvider(cfg config.CompletionConfig) (Backend, string, string, error) {
	switch cfg.Provider {
	case config.ProviderPollinations, "":
		return NewOpenAICompat(cfg.BaseURL, cfg.APIKey), cfg.Model, cfg.VisionModel, nil
	case config.ProviderAnthropic:
		if cfg.APIKey == "" {
			return nil, "", "", fmt.Errorf("provider %q requires COMPLETION_API_KEY", cfg.Provider)
		}
		baseURL := cfg.BaseURL
		if strings.Contains(baseURL, "pollinations.ai") {
			baseURL = ""
		}
		return NewClaudeProviderWithBaseURL(cfg.APIKey, baseURL),
			anthropicModel(cfg.Model), anthropicModel(cfg.VisionModel), nil
	default:
		return nil, "", "", fmt.Errorf("unknown completion provider %q", cfg.Provider)
	}
}

// anthropicModel maps the Pollinations default model name onto a Claude
// model so switching providers only needs the provider and key.
func anthropicModel(model string) string {
	if model == "" || model == "openai" {
		return anthropicprovider.DefaultModel
	}
	return model
}
