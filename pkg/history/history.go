// Package history rebuilds a conversation transcript from a reply chain.
package history

import (
	"context"
	"iter"
	"slices"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/esquie-bot/esquie/pkg/content"
	"github.com/esquie-bot/esquie/pkg/logger"
	"github.com/esquie-bot/esquie/pkg/platform"
	"github.com/esquie-bot/esquie/pkg/providers"
)

const DefaultMaxDepth = 10

type Walker struct {
	fetcher  platform.MessageFetcher
	botID    string
	maxDepth int
}

func NewWalker(fetcher platform.MessageFetcher, botID string, maxDepth int) *Walker {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	return &Walker{fetcher: fetcher, botID: botID, maxDepth: maxDepth}
}

// Ancestors yields the messages m replies to, nearest first, for at most
// maxDepth hops. m itself is never yielded. A failed lookup is yielded once
// as an error and ends the sequence. Each call to the returned sequence
// restarts the walk from m.
func (w *Walker) Ancestors(ctx context.Context, m *discordgo.Message) iter.Seq2[*discordgo.Message, error] {
	return func(yield func(*discordgo.Message, error) bool) {
		current := m
		for hop := 0; hop < w.maxDepth; hop++ {
			next, err := w.parent(ctx, current)
			if err != nil {
				yield(nil, err)
				return
			}
			if next == nil {
				return
			}
			if !yield(next, nil) {
				return
			}
			current = next
		}
	}
}

func (w *Walker) parent(ctx context.Context, m *discordgo.Message) (*discordgo.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ref := m.MessageReference
	if ref == nil || ref.MessageID == "" {
		return nil, nil
	}
	if m.ReferencedMessage != nil && m.ReferencedMessage.ID == ref.MessageID {
		return m.ReferencedMessage, nil
	}
	channelID := ref.ChannelID
	if channelID == "" {
		channelID = m.ChannelID
	}
	return w.fetcher.FetchMessage(ctx, channelID, ref.MessageID)
}

func (w *Walker) mentionsBot(m *discordgo.Message) bool {
	for _, u := range m.Mentions {
		if u != nil && u.ID == w.botID {
			return true
		}
	}
	return strings.Contains(m.Content, "<@"+w.botID+">") || strings.Contains(m.Content, "<@!"+w.botID+">")
}

// Turn converts one chain message into a transcript turn. ok is false for
// messages that do not belong in the transcript.
func (w *Walker) Turn(m *discordgo.Message) (providers.Turn, bool) {
	if m == nil || m.Author == nil {
		return providers.Turn{}, false
	}
	if m.Author.ID == w.botID {
		text := m.Content
		if text == "" {
			text = content.Summarize(m)
		}
		return providers.Turn{Role: providers.RoleAssistant, Content: text}, true
	}
	if !w.mentionsBot(m) {
		return providers.Turn{}, false
	}
	text := content.StripMention(m.Content, w.botID)
	if text == "" {
		return providers.Turn{}, false
	}
	return providers.Turn{Role: providers.RoleUser, Content: text}, true
}

// Build returns the transcript preceding m, oldest first. Lookup failures
// end the walk early and are logged, never returned.
func (w *Walker) Build(ctx context.Context, m *discordgo.Message) []providers.Turn {
	var turns []providers.Turn
	depth := 0
	for ancestor, err := range w.Ancestors(ctx, m) {
		if err != nil {
			fields := map[string]any{"depth": depth, "error": err}
			if platform.IsNotFound(err) {
				logger.InfoCF("history", "Referenced message not found, stopping walk", fields)
			} else {
				logger.WarnCF("history", "Failed to fetch message, stopping walk", fields)
			}
			break
		}
		depth++
		if turn, ok := w.Turn(ancestor); ok {
			turns = append(turns, turn)
		}
	}
	// Collected newest first.
	slices.Reverse(turns)
	logger.DebugCF("history", "Built conversation history", map[string]any{
		"message_id": m.ID,
		"hops":       depth,
		"turns":      len(turns),
	})
	return turns
}
