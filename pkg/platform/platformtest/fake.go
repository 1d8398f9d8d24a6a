// Package platformtest provides an in-memory platform.Client for tests.
package platformtest

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"

	"github.com/bwmarrin/discordgo"

	"github.com/esquie-bot/esquie/pkg/platform"
)

var _ platform.Client = (*Client)(nil)

// Sent records one SendMessage call.
type Sent struct {
	ChannelID string
	Data      *discordgo.MessageSend
	Message   *discordgo.Message
}

// Edit records one EditMessage call.
type Edit struct {
	ChannelID string
	MessageID string
	Content   string
}

// Client is a goroutine-safe fake. Messages are keyed by ID; Fail* maps
// inject errors per channel or message.
type Client struct {
	mu       sync.Mutex
	nextID   int
	messages map[string]*discordgo.Message
	names    map[string]string

	// Self is the author of every message the fake sends.
	Self *discordgo.User

	FetchCalls int
	Typings    []string
	Deferred   []string
	Followups  []*discordgo.WebhookParams
	Sends      []Sent
	Edits      []Edit
	Deletes    []string

	FailFetch  map[string]error
	FailSend   map[string]error
	FailEdit   map[string]error
	FailDelete map[string]error
	FailDefer  error
}

func New() *Client {
	return &Client{
		nextID:     1000,
		Self:       &discordgo.User{ID: "bot", Bot: true},
		messages:   make(map[string]*discordgo.Message),
		names:      make(map[string]string),
		FailFetch:  make(map[string]error),
		FailSend:   make(map[string]error),
		FailEdit:   make(map[string]error),
		FailDelete: make(map[string]error),
	}
}

// RESTError builds an error shaped like the ones discordgo returns.
func RESTError(status int) error {
	return &discordgo.RESTError{
		Response:     &http.Response{StatusCode: status, Status: http.StatusText(status)},
		ResponseBody: []byte(fmt.Sprintf(`{"message":"%s","code":0}`, http.StatusText(status))),
	}
}

func (c *Client) Add(msgs ...*discordgo.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, m := range msgs {
		c.messages[m.ID] = m
	}
}

func (c *Client) SetName(userID, name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.names[userID] = name
}

func (c *Client) Message(id string) (*discordgo.Message, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, ok := c.messages[id]
	return m, ok
}

func (c *Client) SentContents() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.Sends))
	for _, s := range c.Sends {
		out = append(out, s.Data.Content)
	}
	return out
}

func (c *Client) FetchMessage(_ context.Context, channelID, messageID string) (*discordgo.Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.FetchCalls++
	if err, ok := c.FailFetch[messageID]; ok {
		return nil, err
	}
	m, ok := c.messages[messageID]
	if !ok {
		return nil, RESTError(http.StatusNotFound)
	}
	return m, nil
}

func (c *Client) SendMessage(_ context.Context, channelID string, data *discordgo.MessageSend) (*discordgo.Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err, ok := c.FailSend[channelID]; ok {
		return nil, err
	}
	if data.Reference != nil {
		if err, ok := c.FailSend["reply:"+data.Reference.MessageID]; ok {
			return nil, err
		}
	}
	c.nextID++
	m := &discordgo.Message{
		ID:        strconv.Itoa(c.nextID),
		ChannelID: channelID,
		Content:   data.Content,
		Author:    c.Self,
	}
	if data.Reference != nil {
		m.MessageReference = data.Reference
	}
	c.messages[m.ID] = m
	c.Sends = append(c.Sends, Sent{ChannelID: channelID, Data: data, Message: m})
	return m, nil
}

func (c *Client) EditMessage(_ context.Context, channelID, messageID, content string) (*discordgo.Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err, ok := c.FailEdit[messageID]; ok {
		return nil, err
	}
	m, ok := c.messages[messageID]
	if !ok {
		return nil, RESTError(http.StatusNotFound)
	}
	m.Content = content
	c.Edits = append(c.Edits, Edit{ChannelID: channelID, MessageID: messageID, Content: content})
	return m, nil
}

func (c *Client) DeleteMessage(_ context.Context, channelID, messageID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err, ok := c.FailDelete[messageID]; ok {
		return err
	}
	delete(c.messages, messageID)
	c.Deletes = append(c.Deletes, messageID)
	return nil
}

func (c *Client) DisplayName(_ context.Context, guildID, userID string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	name, ok := c.names[userID]
	if !ok {
		return "", RESTError(http.StatusNotFound)
	}
	return name, nil
}

func (c *Client) Typing(_ context.Context, channelID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Typings = append(c.Typings, channelID)
	return nil
}

func (c *Client) DeferInteraction(_ context.Context, i *discordgo.Interaction) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.FailDefer != nil {
		return c.FailDefer
	}
	c.Deferred = append(c.Deferred, i.ID)
	return nil
}

func (c *Client) FollowupInteraction(_ context.Context, i *discordgo.Interaction, params *discordgo.WebhookParams) (*discordgo.Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Followups = append(c.Followups, params)
	c.nextID++
	return &discordgo.Message{ID: strconv.Itoa(c.nextID), ChannelID: i.ChannelID, Content: params.Content, Author: c.Self}, nil
}
