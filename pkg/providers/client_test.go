package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	reply    string
	err      error
	messages []Message
	model    string
	options  map[string]interface{}
}

func (f *fakeBackend) Name() string { return "fake" }

func (f *fakeBackend) Chat(ctx context.Context, messages []Message, model string, options map[string]interface{}) (string, error) {
	f.messages = messages
	f.model = model
	f.options = options
	return f.reply, f.err
}

func completionServer(t *testing.T, handler func(w http.ResponseWriter, body map[string]interface{})) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		var body map[string]interface{}
		_ = json.NewDecoder(r.Body).Decode(&body)
		handler(w, body)
	}))
	t.Cleanup(server.Close)
	return server
}

func writeChoice(w http.ResponseWriter, content string) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"id":"c1","object":"chat.completion","created":1,"model":"openai","choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":%q}}]}`, content)
}

func TestClient_CompleteSendsSeedAndModel(t *testing.T) {
	var got map[string]interface{}
	server := completionServer(t, func(w http.ResponseWriter, body map[string]interface{}) {
		got = body
		writeChoice(w, "Hi alice!")
	})

	c := NewClient(NewOpenAICompat(server.URL, ""), ClientOptions{Model: "openai"})
	reply := c.Complete(context.Background(), "[alice]: hello", nil, nil)

	assert.Equal(t, "Hi alice!", reply)
	assert.Equal(t, "openai", got["model"])
	assert.EqualValues(t, 42, got["seed"])
	messages, ok := got["messages"].([]interface{})
	require.True(t, ok)
	require.Len(t, messages, 2)
	assert.Equal(t, "system", messages[0].(map[string]interface{})["role"])
	assert.Equal(t, "[alice]: hello", messages[1].(map[string]interface{})["content"])
}

func TestClient_CompleteServerErrorApologizes(t *testing.T) {
	server := completionServer(t, func(w http.ResponseWriter, body map[string]interface{}) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})
	c := NewClient(NewOpenAICompat(server.URL, ""), ClientOptions{Model: "openai"})

	assert.Equal(t, ApologyNetwork, c.Complete(context.Background(), "hi", nil, nil))
}

func TestClient_CompleteTimeoutApologizes(t *testing.T) {
	release := make(chan struct{})
	server := completionServer(t, func(w http.ResponseWriter, body map[string]interface{}) {
		<-release
		writeChoice(w, "too late")
	})
	defer close(release)

	c := NewClient(NewOpenAICompat(server.URL, ""), ClientOptions{Model: "openai", Timeout: 50 * time.Millisecond})

	var class FailureClass
	c.OnResult(func(_ string, cl FailureClass, _ time.Duration) { class = cl })
	assert.Equal(t, ApologyNetwork, c.Complete(context.Background(), "hi", nil, nil))
	assert.Equal(t, FailureNetwork, class)
}

func TestClient_CompleteNoChoicesIsMalformed(t *testing.T) {
	server := completionServer(t, func(w http.ResponseWriter, body map[string]interface{}) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","object":"chat.completion","choices":[]}`))
	})
	c := NewClient(NewOpenAICompat(server.URL, ""), ClientOptions{Model: "openai"})

	assert.Equal(t, ApologyMalformed, c.Complete(context.Background(), "hi", nil, nil))
}

func TestClient_CompleteTruncatedBodyIsMalformed(t *testing.T) {
	server := completionServer(t, func(w http.ResponseWriter, body map[string]interface{}) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"hi"`))
	})
	c := NewClient(NewOpenAICompat(server.URL, ""), ClientOptions{Model: "openai"})

	var class FailureClass
	c.OnResult(func(_ string, cl FailureClass, _ time.Duration) { class = cl })
	assert.Equal(t, ApologyMalformed, c.Complete(context.Background(), "hi", nil, nil))
	assert.Equal(t, FailureMalformed, class)
}

func TestClient_CompleteUnexpectedError(t *testing.T) {
	backend := &fakeBackend{err: errors.New("kaboom")}
	c := NewClient(backend, ClientOptions{Model: "m"})

	assert.Equal(t, ApologyUnexpected, c.Complete(context.Background(), "hi", nil, nil))
}

func TestClient_CompleteTruncatesAtSeparator(t *testing.T) {
	backend := &fakeBackend{reply: "The answer is 4.\n---\nNote: I am a language model."}
	c := NewClient(backend, ClientOptions{Model: "m"})

	assert.Equal(t, "The answer is 4.", c.Complete(context.Background(), "2+2?", nil, nil))
	assert.Equal(t, DefaultSeed, backend.options["seed"])
}

func TestClient_BuildMessages(t *testing.T) {
	c := NewClient(&fakeBackend{}, ClientOptions{BotName: "Esquie", BotID: "100"})
	c.now = func() time.Time { return time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC) }

	var history []Turn
	for i := 0; i < 14; i++ {
		role := RoleUser
		if i%2 == 1 {
			role = RoleAssistant
		}
		history = append(history, Turn{Role: role, Content: fmt.Sprintf("turn %d", i)})
	}

	messages := c.BuildMessages("[bob]: and now?", history, []string{"[Image 1: a cat]", "[Image 2: a dog]"})
	require.Len(t, messages, 1+MaxHistoryTurns+1)

	system := messages[0]
	assert.Equal(t, RoleSystem, system.Role)
	assert.Contains(t, system.Content, "You are Esquie")
	assert.Contains(t, system.Content, "2026-03-01 12:30 UTC")
	assert.Contains(t, system.Content, "<@USER_ID>")
	assert.Contains(t, system.Content, "100")

	assert.Equal(t, "turn 4", messages[1].Content)
	assert.Equal(t, "turn 13", messages[MaxHistoryTurns].Content)

	last := messages[len(messages)-1]
	assert.Equal(t, RoleUser, last.Role)
	assert.Equal(t, "[bob]: and now?\n[Image 1: a cat]\n[Image 2: a dog]", last.Content)
}

func TestClient_DescribeUsesVisionModel(t *testing.T) {
	var parts []interface{}
	server := completionServer(t, func(w http.ResponseWriter, body map[string]interface{}) {
		messages := body["messages"].([]interface{})
		parts, _ = messages[len(messages)-1].(map[string]interface{})["content"].([]interface{})
		writeChoice(w, "A small orange cat.")
	})
	c := NewClient(NewOpenAICompat(server.URL, ""), ClientOptions{Model: "openai", VisionModel: "openai-large"})

	img := Image{MIMEType: "image/jpeg", Data: []byte{0xff, 0xd8, 0xff}}
	desc, err := c.Describe(context.Background(), img, "Describe this image.")
	require.NoError(t, err)
	assert.Equal(t, "A small orange cat.", desc)

	require.Len(t, parts, 2)
	assert.Equal(t, "text", parts[0].(map[string]interface{})["type"])
	imagePart := parts[1].(map[string]interface{})
	assert.Equal(t, "image_url", imagePart["type"])
	url := imagePart["image_url"].(map[string]interface{})["url"].(string)
	assert.True(t, strings.HasPrefix(url, "data:image/jpeg;base64,"))
}

func TestCleanResponse(t *testing.T) {
	assert.Equal(t, "plain", CleanResponse("  plain \n"))
	assert.Equal(t, "before", CleanResponse("before --- after --- more"))
	assert.Equal(t, "", CleanResponse("---only commentary"))
}

func TestClassify(t *testing.T) {
	assert.Equal(t, FailureNetwork, Classify(context.DeadlineExceeded))
	assert.Equal(t, FailureNetwork, Classify(fmt.Errorf("wrapped: %w", context.Canceled)))
	assert.Equal(t, FailureMalformed, Classify(fmt.Errorf("decode: %w", ErrMalformedResponse)))
	assert.Equal(t, FailureMalformed, Classify(&json.SyntaxError{Offset: 3}))
	assert.Equal(t, FailureMalformed, Classify(fmt.Errorf("decode: %w", io.ErrUnexpectedEOF)))
	assert.Equal(t, FailureUnexpected, Classify(errors.New("other")))
	assert.Equal(t, FailureMalformed, Classify(&CompletionError{Class: FailureMalformed, Wrapped: errors.New("x")}))

	assert.Equal(t, ApologyNetwork, Apology(FailureNetwork))
	assert.Equal(t, ApologyMalformed, Apology(FailureMalformed))
	assert.Equal(t, ApologyUnexpected, Apology(FailureUnexpected))
}
