// Package imagegen renders images from text prompts with the Pollinations
// image endpoint.
package imagegen

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/esquie-bot/esquie/pkg/config"
	"github.com/esquie-bot/esquie/pkg/logger"
	"github.com/esquie-bot/esquie/pkg/media"
)

const (
	DefaultBaseURL = "https://image.pollinations.ai/prompt"
	maxImageBytes  = 20 << 20
)

var ErrEmptyPrompt = errors.New("image prompt is empty")

type Generator struct {
	baseURL    string
	model      string
	width      int
	height     int
	httpClient *http.Client
}

// Result is a generated image ready to be attached to a message.
type Result struct {
	Data        []byte
	ContentType string
	Filename    string
}

func NewGenerator(cfg config.ImageConfig) *Generator {
	logger.DebugCF("imagegen", "Creating image generator", map[string]interface{}{
		"base_url": cfg.BaseURL,
		"model":    cfg.Model,
	})

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Generator{
		baseURL: baseURL,
		model:   cfg.Model,
		width:   cfg.Width,
		height:  cfg.Height,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// URL returns the request URL for prompt.
func (g *Generator) URL(prompt string) string {
	q := url.Values{}
	if g.width > 0 {
		q.Set("width", strconv.Itoa(g.width))
	}
	if g.height > 0 {
		q.Set("height", strconv.Itoa(g.height))
	}
	if g.model != "" {
		q.Set("model", g.model)
	}
	q.Set("nologo", "true")
	q.Set("enhance", "true")
	q.Set("private", "true")
	return g.baseURL + "/" + url.PathEscape(prompt) + "?" + q.Encode()
}

func (g *Generator) Generate(ctx context.Context, prompt string) (*Result, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, ErrEmptyPrompt
	}

	logger.InfoCF("imagegen", "Generating image", map[string]interface{}{
		"prompt_chars": len(prompt),
		"model":        g.model,
	})

	start := time.Now()
	data, contentType, err := media.Download(ctx, g.httpClient, g.URL(prompt), maxImageBytes)
	if err != nil {
		logger.ErrorCF("imagegen", "Image request failed", map[string]interface{}{"error": err})
		return nil, fmt.Errorf("failed to generate image: %w", err)
	}

	mediaType, _, _ := mime.ParseMediaType(contentType)
	if mediaType == "" {
		mediaType = http.DetectContentType(data)
	}
	if !strings.HasPrefix(mediaType, "image/") {
		return nil, fmt.Errorf("image endpoint returned %q instead of an image", mediaType)
	}

	logger.DebugCF("imagegen", "Image received", map[string]interface{}{
		"bytes":        len(data),
		"content_type": mediaType,
		"elapsed":      time.Since(start).String(),
	})

	return &Result{
		Data:        data,
		ContentType: mediaType,
		Filename:    "image" + extension(mediaType),
	}, nil
}

func extension(mediaType string) string {
	switch mediaType {
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	default:
		return ".jpg"
	}
}
