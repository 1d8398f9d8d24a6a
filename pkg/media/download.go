package media

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/esquie-bot/esquie/pkg/logger"
)

// DefaultMaxBytes caps a single attachment download.
const DefaultMaxBytes = 10 << 20

// Download fetches url into memory, refusing bodies larger than maxBytes
// (0 means no limit). It returns the body and the response Content-Type.
func Download(ctx context.Context, client *http.Client, url string, maxBytes int64) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create request: %w", err)
	}

	logger.DebugCF("download", "Starting download", map[string]interface{}{
		"url":       url,
		"max_bytes": maxBytes,
	})

	resp, err := client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Read a small amount for the error message.
		errBody := make([]byte, 512)
		n, _ := io.ReadFull(resp.Body, errBody)
		return nil, "", fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(errBody[:n]))
	}

	var src io.Reader = resp.Body
	if maxBytes > 0 {
		src = io.LimitReader(resp.Body, maxBytes+1) // +1 to detect overflow
	}

	data, err := io.ReadAll(src)
	if err != nil {
		return nil, "", fmt.Errorf("download read failed: %w", err)
	}
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return nil, "", fmt.Errorf("download too large: more than %d bytes", maxBytes)
	}

	logger.DebugCF("download", "Download complete", map[string]interface{}{
		"url":   url,
		"bytes": len(data),
	})

	return data, resp.Header.Get("Content-Type"), nil
}
