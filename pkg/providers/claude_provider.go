package providers

import (
	"context"
	"errors"

	"github.com/anthropics/anthropic-sdk-go"

	anthropicprovider "github.com/esquie-bot/esquie/pkg/providers/anthropic"
)

type ClaudeProvider struct {
	delegate *anthropicprovider.Provider
}

func NewClaudeProvider(apiKey string) *ClaudeProvider {
	return &ClaudeProvider{
		delegate: anthropicprovider.NewProvider(apiKey),
	}
}

func NewClaudeProviderWithBaseURL(apiKey, apiBase string) *ClaudeProvider {
	return &ClaudeProvider{
		delegate: anthropicprovider.NewProviderWithBaseURL(apiKey, apiBase),
	}
}

func (p *ClaudeProvider) Name() string {
	return "anthropic"
}

func (p *ClaudeProvider) Chat(ctx context.Context, messages []Message, model string, options map[string]interface{}) (string, error) {
	text, err := p.delegate.Chat(ctx, messages, model, options)
	if err == nil {
		return text, nil
	}
	ce := &CompletionError{Provider: p.Name(), Model: model, Wrapped: err}
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		ce.Class = FailureNetwork
		ce.Status = apiErr.StatusCode
	} else {
		ce.Class = Classify(err)
	}
	return "", ce
}
