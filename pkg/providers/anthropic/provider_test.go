// Esquie - Discord companion bot
// License: MIT
//
// Copyright (c) 2026 Esquie contributors

package anthropicprovider

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/esquie-bot/esquie/pkg/providers/protocoltypes"
)

func newTestServer(t *testing.T, content []map[string]interface{}, captured *map[string]interface{}) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		if r.Header.Get("X-Api-Key") != "test-key" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		var reqBody map[string]interface{}
		_ = json.NewDecoder(r.Body).Decode(&reqBody)
		if captured != nil {
			*captured = reqBody
		}
		resp := map[string]interface{}{
			"id":          "msg_test",
			"type":        "message",
			"role":        "assistant",
			"model":       reqBody["model"],
			"stop_reason": "end_turn",
			"content":     content,
			"usage": map[string]interface{}{
				"input_tokens":  15,
				"output_tokens": 8,
			},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(server.Close)
	return server
}

func TestProvider_ChatRoundTrip(t *testing.T) {
	var captured map[string]interface{}
	server := newTestServer(t, []map[string]interface{}{
		{"type": "text", "text": "Hello! "},
		{"type": "text", "text": "How can I help?"},
	}, &captured)

	p := NewProviderWithBaseURL("test-key", server.URL)
	messages := []protocoltypes.Message{
		{Role: protocoltypes.RoleSystem, Content: "You are Esquie."},
		{Role: protocoltypes.RoleUser, Content: "[alice]: hi"},
	}
	got, err := p.Chat(t.Context(), messages, DefaultModel, nil)
	require.NoError(t, err)
	assert.Equal(t, "Hello! How can I help?", got)

	system, ok := captured["system"].([]interface{})
	require.True(t, ok)
	require.Len(t, system, 1)
	assert.Equal(t, "You are Esquie.", system[0].(map[string]interface{})["text"])
	assert.Len(t, captured["messages"], 1)
}

func TestProvider_ChatNoTextIsMalformed(t *testing.T) {
	server := newTestServer(t, []map[string]interface{}{}, nil)
	p := NewProviderWithBaseURL("test-key", server.URL)

	_, err := p.Chat(t.Context(), []protocoltypes.Message{{Role: protocoltypes.RoleUser, Content: "hi"}}, DefaultModel, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, protocoltypes.ErrMalformedResponse))
}

func TestNormalizeAlternation(t *testing.T) {
	in := []protocoltypes.Message{
		{Role: protocoltypes.RoleSystem, Content: "sys"},
		{Role: protocoltypes.RoleAssistant, Content: "earlier answer"},
		{Role: protocoltypes.RoleUser, Content: "a"},
		{Role: protocoltypes.RoleUser, Content: "b"},
	}
	out := normalizeAlternation(in)
	require.Len(t, out, 4)
	assert.Equal(t, protocoltypes.RoleSystem, out[0].Role)
	assert.Equal(t, protocoltypes.RoleUser, out[1].Role)
	assert.Equal(t, protocoltypes.RoleAssistant, out[2].Role)
	assert.Equal(t, "a\n\nb", out[3].Content)
}

func TestNormalizeBaseURL(t *testing.T) {
	assert.Equal(t, defaultBaseURL, normalizeBaseURL(""))
	assert.Equal(t, "https://proxy.example", normalizeBaseURL("https://proxy.example/v1/"))
}
