package delivery

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/esquie-bot/esquie/pkg/platform/platformtest"
)

func trigger() *discordgo.Message {
	return &discordgo.Message{ID: "t1", ChannelID: "c1", Author: &discordgo.User{ID: "u1", Username: "alice"}}
}

func setup(t *testing.T) (*platformtest.Client, *Deliverer, *discordgo.Message, *discordgo.Message) {
	t.Helper()
	client := platformtest.New()
	target := trigger()
	client.Add(target)
	d := NewDeliverer(client)
	status := d.Thinking(context.Background(), target)
	require.NotNil(t, status)
	assert.Equal(t, ThinkingText, status.Content)
	assert.Equal(t, "t1", status.MessageReference.MessageID)
	return client, d, target, status
}

func TestDeliver_EditsStatusInPlace(t *testing.T) {
	client, d, target, status := setup(t)

	require.NoError(t, d.Deliver(context.Background(), target, status, "Hello alice!"))

	require.Len(t, client.Edits, 1)
	assert.Equal(t, status.ID, client.Edits[0].MessageID)
	assert.Equal(t, "Hello alice!", client.Edits[0].Content)
	assert.Len(t, client.Sends, 1, "only the thinking status should have been sent")
}

func TestDeliver_FallsBackToReply(t *testing.T) {
	client, d, target, status := setup(t)
	client.FailEdit[status.ID] = platformtest.RESTError(http.StatusForbidden)

	require.NoError(t, d.Deliver(context.Background(), target, status, "Hello!"))

	require.Len(t, client.Sends, 2)
	last := client.Sends[1]
	assert.Equal(t, "Hello!", last.Data.Content)
	require.NotNil(t, last.Data.Reference)
	assert.Equal(t, "t1", last.Data.Reference.MessageID)
}

func TestDeliver_FallsBackToChannelSend(t *testing.T) {
	client, d, target, status := setup(t)
	client.FailEdit[status.ID] = platformtest.RESTError(http.StatusNotFound)
	client.FailSend["reply:t1"] = platformtest.RESTError(http.StatusNotFound)

	require.NoError(t, d.Deliver(context.Background(), target, status, "Hello!"))

	last := client.Sends[len(client.Sends)-1]
	assert.Nil(t, last.Data.Reference)
	assert.Equal(t, "<@u1> Hello!", last.Data.Content)
}

func TestDeliver_ChannelSendKeepsFullChunk(t *testing.T) {
	client, d, target, status := setup(t)
	client.FailEdit[status.ID] = platformtest.RESTError(http.StatusForbidden)
	client.FailSend["reply:t1"] = platformtest.RESTError(http.StatusForbidden)

	require.NoError(t, d.Deliver(context.Background(), target, status, strings.Repeat("a", MaxMessageLength)))

	sent := client.Sends[1:]
	require.Len(t, sent, 2)
	assert.True(t, strings.HasPrefix(sent[0].Data.Content, "<@u1> "))
	var rebuilt string
	for _, s := range sent {
		assert.LessOrEqual(t, utf8.RuneCountInString(s.Data.Content), MaxMessageLength)
		rebuilt += s.Data.Content
	}
	assert.Equal(t, "<@u1> "+strings.Repeat("a", MaxMessageLength), rebuilt)
}

func TestDeliver_SplitReplyFallsBackWithoutLoss(t *testing.T) {
	client, d, target, status := setup(t)
	client.FailSend["reply:t1"] = platformtest.RESTError(http.StatusForbidden)
	text := strings.Repeat("a", MaxMessageLength) + strings.Repeat("b", 500)

	require.NoError(t, d.Deliver(context.Background(), target, status, text))

	var rebuilt strings.Builder
	for _, s := range client.Sends[1:] {
		assert.LessOrEqual(t, utf8.RuneCountInString(s.Data.Content), MaxMessageLength)
		assert.NotContains(t, s.Data.Content, "…")
		rebuilt.WriteString(strings.TrimPrefix(s.Data.Content, "<@u1> "))
	}
	assert.Equal(t, text, rebuilt.String())
}

func TestDeliver_WithoutStatus(t *testing.T) {
	client := platformtest.New()
	target := trigger()
	d := NewDeliverer(client)

	require.NoError(t, d.Deliver(context.Background(), target, nil, "Hi"))
	require.Len(t, client.Sends, 1)
	assert.Equal(t, "t1", client.Sends[0].Data.Reference.MessageID)
}

func TestDeliver_AllStrategiesFail(t *testing.T) {
	client, d, target, status := setup(t)
	client.FailEdit[status.ID] = platformtest.RESTError(http.StatusForbidden)
	client.FailSend["c1"] = platformtest.RESTError(http.StatusForbidden)

	err := d.Deliver(context.Background(), target, status, "Hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "edit")
	assert.Contains(t, err.Error(), "channel")
}

func TestDeliver_SplitsAndChains(t *testing.T) {
	client, d, target, status := setup(t)
	text := strings.Repeat("word ", 900) // 4500 characters

	require.NoError(t, d.Deliver(context.Background(), target, status, text))

	chunks := client.Sends[1:]
	require.Len(t, chunks, 3)
	assert.Equal(t, "t1", chunks[0].Data.Reference.MessageID)
	assert.Equal(t, chunks[0].Message.ID, chunks[1].Data.Reference.MessageID)
	assert.Equal(t, chunks[1].Message.ID, chunks[2].Data.Reference.MessageID)

	var rebuilt []string
	for _, c := range chunks {
		assert.LessOrEqual(t, len([]rune(c.Data.Content)), MaxMessageLength)
		rebuilt = append(rebuilt, c.Data.Content)
	}
	assert.Equal(t, strings.TrimSpace(text), strings.Join(rebuilt, " "))

	require.Len(t, client.Edits, 1)
	assert.Equal(t, status.ID, client.Edits[0].MessageID)
	assert.Contains(t, client.Edits[0].Content, "3 parts")
}

func TestWaitNotice(t *testing.T) {
	client := platformtest.New()
	d := NewDeliverer(client)

	notice, err := d.WaitNotice(context.Background(), trigger(), "bob", 2)
	require.NoError(t, err)
	assert.Contains(t, notice.Content, "bob")
	assert.Contains(t, notice.Content, "#2")
	assert.Equal(t, "t1", client.Sends[0].Data.Reference.MessageID)
}
