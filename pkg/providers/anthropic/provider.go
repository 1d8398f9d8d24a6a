package anthropicprovider

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/esquie-bot/esquie/pkg/providers/protocoltypes"
)

type Message = protocoltypes.Message

const (
	defaultBaseURL = "https://api.anthropic.com"
	DefaultModel   = "claude-sonnet-4-5"
)

type Provider struct {
	client  *anthropic.Client
	baseURL string
}

func NewProvider(apiKey string) *Provider {
	return NewProviderWithBaseURL(apiKey, "")
}

func NewProviderWithBaseURL(apiKey, apiBase string) *Provider {
	baseURL := normalizeBaseURL(apiBase)
	client := anthropic.NewClient(
		option.WithAPIKey(apiKey),
		option.WithBaseURL(baseURL),
		option.WithMaxRetries(0),
	)
	return &Provider{
		client:  &client,
		baseURL: baseURL,
	}
}

func NewProviderWithClient(client *anthropic.Client) *Provider {
	return &Provider{
		client:  client,
		baseURL: defaultBaseURL,
	}
}

// Chat returns the concatenated text blocks of the reply. Errors are
// returned unwrapped apart from context so callers can inspect
// *anthropic.Error.
func (p *Provider) Chat(ctx context.Context, messages []Message, model string, options map[string]interface{}) (string, error) {
	params := buildParams(messages, model, options)

	resp, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("claude API call: %w", err)
	}

	text := parseResponse(resp)
	if text == "" {
		return "", fmt.Errorf("claude reply had no text blocks: %w", protocoltypes.ErrMalformedResponse)
	}
	return text, nil
}

func (p *Provider) BaseURL() string {
	return p.baseURL
}

func buildParams(messages []Message, model string, options map[string]interface{}) anthropic.MessageNewParams {
	var system []anthropic.TextBlockParam
	var turns []anthropic.MessageParam

	for _, msg := range normalizeAlternation(messages) {
		switch msg.Role {
		case protocoltypes.RoleSystem:
			system = append(system, anthropic.TextBlockParam{Text: msg.Content})
		case protocoltypes.RoleAssistant:
			turns = append(turns, anthropic.NewAssistantMessage(anthropic.NewTextBlock(msg.Content)))
		default:
			blocks := []anthropic.ContentBlockParamUnion{anthropic.NewTextBlock(msg.Content)}
			for _, img := range msg.Images {
				blocks = append(blocks, anthropic.NewImageBlockBase64(img.MIMEType, img.Base64()))
			}
			turns = append(turns, anthropic.NewUserMessage(blocks...))
		}
	}

	maxTokens := int64(2048)
	if mt, ok := options["max_tokens"].(int); ok {
		maxTokens = int64(mt)
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		Messages:  turns,
		MaxTokens: maxTokens,
	}
	if len(system) > 0 {
		params.System = system
	}
	if temp, ok := options["temperature"].(float64); ok {
		params.Temperature = anthropic.Float(temp)
	}
	return params
}

// normalizeAlternation merges consecutive same-role turns and makes sure the
// first non-system turn is from the user, as the Messages API requires.
func normalizeAlternation(messages []Message) []Message {
	out := make([]Message, 0, len(messages)+1)
	seenTurn := false
	for _, m := range messages {
		if m.Role == protocoltypes.RoleSystem {
			out = append(out, m)
			continue
		}
		if !seenTurn && m.Role == protocoltypes.RoleAssistant {
			out = append(out, Message{Role: protocoltypes.RoleUser, Content: "(earlier conversation)"})
		}
		seenTurn = true
		last := len(out) - 1
		if last >= 0 && out[last].Role == m.Role {
			out[last].Content += "\n\n" + m.Content
			out[last].Images = append(out[last].Images, m.Images...)
			continue
		}
		out = append(out, m)
	}
	return out
}

func parseResponse(resp *anthropic.Message) string {
	var content strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			content.WriteString(block.AsText().Text)
		}
	}
	return content.String()
}

func normalizeBaseURL(apiBase string) string {
	base := strings.TrimSpace(apiBase)
	if base == "" {
		return defaultBaseURL
	}

	base = strings.TrimRight(base, "/")
	base = strings.TrimSuffix(base, "/v1")
	if base == "" {
		return defaultBaseURL
	}

	return base
}
