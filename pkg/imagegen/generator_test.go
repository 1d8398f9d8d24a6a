package imagegen

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/esquie-bot/esquie/pkg/config"
)

func TestGenerator_URL(t *testing.T) {
	g := NewGenerator(config.ImageConfig{BaseURL: "https://img.example/prompt/", Model: "flux", Width: 512, Height: 768})

	got := g.URL("a cat / on a mat?")
	assert.Equal(t,
		"https://img.example/prompt/a%20cat%20%2F%20on%20a%20mat%3F?enhance=true&height=768&model=flux&nologo=true&private=true&width=512",
		got)
}

func TestGenerator_Generate(t *testing.T) {
	var gotPath, gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte("\x89PNG\r\n\x1a\nfake"))
	}))
	defer server.Close()

	g := NewGenerator(config.ImageConfig{BaseURL: server.URL + "/prompt", Model: "flux", Width: 1024, Height: 1024})
	res, err := g.Generate(context.Background(), "  sunset over tokyo ")
	require.NoError(t, err)

	assert.Equal(t, "/prompt/sunset%20over%20tokyo", gotPath)
	assert.Contains(t, gotQuery, "nologo=true")
	assert.Equal(t, "image/png", res.ContentType)
	assert.Equal(t, "image.png", res.Filename)
	assert.NotEmpty(t, res.Data)
}

func TestGenerator_GenerateRejectsNonImage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte("<html>rate limited</html>"))
	}))
	defer server.Close()

	g := NewGenerator(config.ImageConfig{BaseURL: server.URL})
	_, err := g.Generate(context.Background(), "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "text/html")
}

func TestGenerator_GenerateServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	g := NewGenerator(config.ImageConfig{BaseURL: server.URL})
	_, err := g.Generate(context.Background(), "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 503")
}

func TestGenerator_EmptyPrompt(t *testing.T) {
	g := NewGenerator(config.ImageConfig{})
	_, err := g.Generate(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrEmptyPrompt)
}
