// Esquie - Discord companion bot
// License: MIT
//
// Copyright (c) 2026 Esquie contributors

package providers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/esquie-bot/esquie/pkg/logger"
)

const (
	DefaultPollinationsBaseURL = "https://text.pollinations.ai/openai"

	// responseParseError is how openai-go reports an undecodable body.
	responseParseError = "error parsing response json"
)

// OpenAICompat talks to any OpenAI-compatible chat completions endpoint,
// Pollinations by default.
type OpenAICompat struct {
	client  openai.Client
	baseURL string
}

func NewOpenAICompat(baseURL, apiKey string) *OpenAICompat {
	if baseURL == "" {
		baseURL = DefaultPollinationsBaseURL
	}
	opts := []option.RequestOption{
		option.WithBaseURL(strings.TrimRight(baseURL, "/") + "/"),
		// Single attempt; failures are reported to the user instead.
		option.WithMaxRetries(0),
	}
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	return &OpenAICompat{
		client:  openai.NewClient(opts...),
		baseURL: baseURL,
	}
}

func (p *OpenAICompat) Name() string {
	return "openai_compat"
}

func (p *OpenAICompat) Chat(ctx context.Context, messages []Message, model string, options map[string]interface{}) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(model),
		Messages: toOpenAIMessages(messages),
	}
	if seed, ok := options["seed"].(int64); ok {
		params.Seed = openai.Int(seed)
	}

	logger.DebugCF("provider.openai_compat", "Sending chat completion", map[string]interface{}{
		"base_url": p.baseURL,
		"model":    model,
		"messages": len(messages),
	})

	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", p.wrapError(model, err)
	}
	if len(resp.Choices) == 0 {
		return "", &CompletionError{Class: FailureMalformed, Provider: p.Name(), Model: model, Wrapped: fmt.Errorf("no choices: %w", ErrMalformedResponse)}
	}
	return resp.Choices[0].Message.Content, nil
}

func (p *OpenAICompat) wrapError(model string, err error) error {
	ce := &CompletionError{Provider: p.Name(), Model: model, Wrapped: err}
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		// Non-2xx answers are treated like connection failures.
		ce.Class = FailureNetwork
		ce.Status = apiErr.StatusCode
		return ce
	}
	ce.Class = Classify(err)
	if ce.Class == FailureUnexpected && strings.Contains(err.Error(), responseParseError) {
		// A 2xx answer whose body could not be decoded.
		ce.Class = FailureMalformed
	}
	return ce
}

func toOpenAIMessages(messages []Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			out = append(out, openai.SystemMessage(m.Content))
		case RoleAssistant:
			out = append(out, openai.AssistantMessage(m.Content))
		default:
			if len(m.Images) == 0 {
				out = append(out, openai.UserMessage(m.Content))
				continue
			}
			parts := make([]openai.ChatCompletionContentPartUnionParam, 0, 1+len(m.Images))
			parts = append(parts, openai.ChatCompletionContentPartUnionParam{
				OfText: &openai.ChatCompletionContentPartTextParam{Text: m.Content},
			})
			for _, img := range m.Images {
				parts = append(parts, openai.ChatCompletionContentPartUnionParam{
					OfImageURL: &openai.ChatCompletionContentPartImageParam{
						ImageURL: openai.ChatCompletionContentPartImageImageURLParam{
							URL:    img.DataURI(),
							Detail: "auto",
						},
					},
				})
			}
			out = append(out, openai.ChatCompletionMessageParamUnion{
				OfUser: &openai.ChatCompletionUserMessageParam{
					Content: openai.ChatCompletionUserMessageParamContentUnion{
						OfArrayOfContentParts: parts,
					},
				},
			})
		}
	}
	return out
}
