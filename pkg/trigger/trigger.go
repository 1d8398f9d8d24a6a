// Package trigger decides whether an incoming message should get a reply.
package trigger

import (
	"context"
	"regexp"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/esquie-bot/esquie/pkg/content"
	"github.com/esquie-bot/esquie/pkg/logger"
	"github.com/esquie-bot/esquie/pkg/platform"
)

// ExplainOverride is the prompt used when a reaction asks for an explanation.
const ExplainOverride = "Please explain this message."

var explanationRe = regexp.MustCompile(`(?i)\b(explain(s|ed|ing)?|explanations?|what\s*('s|’s|s|is|are|does)\b|tell\s+me\s+(about|more)|describe[sd]?|meaning\s+of|eli5|clarify|elaborate|break\s+(it|this|that)\s+down)\b`)

var broadcastRe = regexp.MustCompile(`@(everyone|here)\b`)

// Decision is computed once per message and not stored.
type Decision struct {
	ShouldRespond                    bool
	IsMention                        bool
	IsReplyToBot                     bool
	IsReplyToOtherBotWithExplanation bool
	IsExplanationRequest             bool

	// Referenced is the message being replied to, nil when there is none or
	// it could not be fetched.
	Referenced *discordgo.Message
	// Override replaces the message text as the user's request when set.
	Override string
}

// IsExplanationRequest reports whether text asks for something to be
// explained or described.
func IsExplanationRequest(text string) bool {
	return explanationRe.MatchString(text)
}

// HasBroadcastMention reports whether text contains @everyone or @here.
func HasBroadcastMention(text string) bool {
	return broadcastRe.MatchString(text)
}

type Classifier struct {
	botID   string
	fetcher platform.MessageFetcher
}

func NewClassifier(botID string, fetcher platform.MessageFetcher) *Classifier {
	return &Classifier{botID: botID, fetcher: fetcher}
}

func (c *Classifier) BotID() string {
	return c.botID
}

func (c *Classifier) isMention(m *discordgo.Message) bool {
	for _, u := range m.Mentions {
		if u != nil && u.ID == c.botID {
			return true
		}
	}
	return strings.Contains(m.Content, "<@"+c.botID+">") || strings.Contains(m.Content, "<@!"+c.botID+">")
}

// referenced returns the message m replies to. Lookup failures count as no
// reference.
func (c *Classifier) referenced(ctx context.Context, m *discordgo.Message) *discordgo.Message {
	if m.ReferencedMessage != nil {
		return m.ReferencedMessage
	}
	ref := m.MessageReference
	if ref == nil || ref.MessageID == "" {
		return nil
	}
	channelID := ref.ChannelID
	if channelID == "" {
		channelID = m.ChannelID
	}
	refMsg, err := c.fetcher.FetchMessage(ctx, channelID, ref.MessageID)
	if err != nil {
		fields := map[string]any{"message_id": ref.MessageID, "error": err}
		if platform.IsNotFound(err) || platform.IsForbidden(err) {
			logger.DebugCF("trigger", "Referenced message unavailable", fields)
		} else {
			logger.WarnCF("trigger", "Failed to fetch referenced message", fields)
		}
		return nil
	}
	return refMsg
}

func (c *Classifier) Classify(ctx context.Context, m *discordgo.Message) Decision {
	var d Decision
	if m == nil || m.Author == nil || m.Author.ID == c.botID {
		return d
	}
	if m.MentionEveryone || HasBroadcastMention(m.Content) {
		logger.DebugCF("trigger", "Ignoring broadcast mention", map[string]any{"message_id": m.ID})
		return d
	}
	hasReference := m.MessageReference != nil || m.ReferencedMessage != nil
	if strings.TrimSpace(m.Content) == "" && !content.HasMedia(m) && !hasReference {
		return d
	}

	d.IsMention = c.isMention(m)
	text := content.StripMention(m.Content, c.botID)
	d.IsExplanationRequest = IsExplanationRequest(text)

	if hasReference {
		if ref := c.referenced(ctx, m); ref != nil && ref.Author != nil {
			d.Referenced = ref
			switch {
			case ref.Author.ID == c.botID:
				d.IsReplyToBot = true
			case ref.Author.Bot && d.IsExplanationRequest:
				d.IsReplyToOtherBotWithExplanation = true
			}
		}
	}

	replyToUserExplain := d.Referenced != nil && !d.Referenced.Author.Bot && d.IsExplanationRequest && d.IsMention
	d.ShouldRespond = d.IsMention ||
		(d.IsReplyToBot && content.HasMedia(m)) ||
		d.IsReplyToOtherBotWithExplanation ||
		replyToUserExplain

	logger.DebugCF("trigger", "Classified message", map[string]any{
		"message_id":          m.ID,
		"author_id":           m.Author.ID,
		"respond":             d.ShouldRespond,
		"mention":             d.IsMention,
		"reply_to_bot":        d.IsReplyToBot,
		"other_bot_explain":   d.IsReplyToOtherBotWithExplanation,
		"explanation_request": d.IsExplanationRequest,
	})
	return d
}

// ClassifyReaction handles an explain-reaction on target by reactor. The
// reacted message becomes the reference and the request text is fixed.
func (c *Classifier) ClassifyReaction(target *discordgo.Message, reactorID string) Decision {
	if target == nil || target.Author == nil || reactorID == c.botID || target.Author.ID == c.botID {
		return Decision{}
	}
	return Decision{
		ShouldRespond:                    true,
		IsExplanationRequest:             true,
		IsReplyToOtherBotWithExplanation: target.Author.Bot,
		Referenced:                       target,
		Override:                         ExplainOverride,
	}
}
