package media

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/esquie-bot/esquie/pkg/logger"
	"github.com/esquie-bot/esquie/pkg/providers"
)

const DescribePrompt = "Describe this image in detail. Mention any text that appears in it."

// Vision is the part of the completion client used for image analysis.
type Vision interface {
	Describe(ctx context.Context, img providers.Image, prompt string) (string, error)
}

// Describer turns image URLs into one-line textual descriptions.
type Describer struct {
	vision   Vision
	client   *http.Client
	max      int
	maxBytes int64
}

func NewDescriber(vision Vision, maxImages int) *Describer {
	return &Describer{
		vision:   vision,
		client:   &http.Client{Timeout: 30 * time.Second},
		max:      maxImages,
		maxBytes: DefaultMaxBytes,
	}
}

// DescribeAll describes up to the configured number of images, in order.
// Failures never abort the batch; the image gets a placeholder line instead.
func (d *Describer) DescribeAll(ctx context.Context, urls []string) []string {
	if d == nil || d.max <= 0 || len(urls) == 0 {
		return nil
	}
	if len(urls) > d.max {
		logger.DebugCF("media", "Too many images, ignoring the rest", map[string]interface{}{
			"images": len(urls),
			"max":    d.max,
		})
		urls = urls[:d.max]
	}

	out := make([]string, 0, len(urls))
	for i, url := range urls {
		desc, err := d.describe(ctx, url)
		if err != nil {
			logger.WarnCF("media", "Image analysis failed", map[string]interface{}{
				"index": i + 1,
				"url":   url,
				"error": err,
			})
			out = append(out, fmt.Sprintf("[Image %d: could not be analysed]", i+1))
			continue
		}
		out = append(out, fmt.Sprintf("[Image %d: %s]", i+1, desc))
	}
	return out
}

func (d *Describer) describe(ctx context.Context, url string) (string, error) {
	data, _, err := Download(ctx, d.client, url, d.maxBytes)
	if err != nil {
		return "", err
	}
	img, err := ToJPEG(data)
	if err != nil {
		return "", err
	}
	return d.vision.Describe(ctx, img, DescribePrompt)
}
