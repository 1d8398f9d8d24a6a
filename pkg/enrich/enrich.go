// Package enrich turns a triggering message into the prompt sent to the
// completion backend: mention hints, the replied-to content and default
// prompts for empty or very short requests.
package enrich

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/bwmarrin/discordgo"

	"github.com/esquie-bot/esquie/pkg/content"
	"github.com/esquie-bot/esquie/pkg/logger"
	"github.com/esquie-bot/esquie/pkg/platform"
	"github.com/esquie-bot/esquie/pkg/trigger"
)

const (
	PromptContinue  = "Please continue our conversation."
	PromptIntroduce = "Hello! Can you introduce yourself?"
	PromptImage     = "Please describe the attached image and tell me what you notice about it."

	shortReplyTemplate = "Continuing our conversation: '%s'"
	shortFreshTemplate = "Hello! Someone said '%s'. Can you respond to that?"

	// minPromptLength is the rune count below which text is expanded.
	minPromptLength = 3

	selfMarker = "you"
)

// Mention is one resolved user mention.
type Mention struct {
	Name string
	ID   string
	Self bool
}

type Enricher struct {
	dir     platform.Directory
	botID   string
	botName string
}

func New(dir platform.Directory, botID, botName string) *Enricher {
	return &Enricher{dir: dir, botID: botID, botName: botName}
}

func (e *Enricher) displayName(ctx context.Context, guildID string, u *discordgo.User) string {
	if u == nil {
		return platform.UserName(nil)
	}
	name, err := e.dir.DisplayName(ctx, guildID, u.ID)
	if err != nil || name == "" {
		return platform.UserName(u)
	}
	return name
}

// DisplayName is the name the author of m is shown under.
func (e *Enricher) DisplayName(ctx context.Context, m *discordgo.Message) string {
	return e.displayName(ctx, m.GuildID, m.Author)
}

// ResolveMentions resolves every user mention in texts, in order of first
// appearance. The bot itself is marked Self. IDs that cannot be resolved
// are logged and left out.
func (e *Enricher) ResolveMentions(ctx context.Context, guildID string, texts ...string) []Mention {
	var out []Mention
	seen := map[string]bool{}
	for _, text := range texts {
		for _, id := range content.MentionedIDs(text) {
			if seen[id] {
				continue
			}
			seen[id] = true
			if id == e.botID {
				out = append(out, Mention{Name: e.botName, ID: id, Self: true})
				continue
			}
			name, err := e.dir.DisplayName(ctx, guildID, id)
			if err != nil || name == "" {
				logger.DebugCF("enrich", "Could not resolve mention", map[string]interface{}{
					"user_id":  id,
					"guild_id": guildID,
					"error":    err,
				})
				continue
			}
			out = append(out, Mention{Name: name, ID: id})
		}
	}
	return out
}

// MentionHint renders resolved mentions as an annotation block, or "" when
// there is nothing worth telling the model.
func MentionHint(mentions []Mention) string {
	parts := make([]string, 0, len(mentions))
	others := 0
	for _, m := range mentions {
		if m.Self {
			parts = append(parts, fmt.Sprintf("%s = %s", m.Name, selfMarker))
			continue
		}
		others++
		parts = append(parts, fmt.Sprintf("%s = <@%s>", m.Name, m.ID))
	}
	if others == 0 {
		return ""
	}
	return "\n[Mentioned users: " + strings.Join(parts, ", ") + "]"
}

// ReferenceText extracts the text of a replied-to message. Bot messages
// are summarized since they often carry only embeds; user messages use
// their text without the bot mention.
func (e *Enricher) ReferenceText(ref *discordgo.Message) string {
	if ref.Author != nil && ref.Author.Bot {
		return content.Summarize(ref)
	}
	if text := content.StripMention(ref.Content, e.botID); text != "" {
		return text
	}
	if text := strings.TrimSpace(ref.Content); text != "" {
		return text
	}
	return content.Summarize(ref)
}

// ReferenceContext renders the replied-to message as an annotation block.
// Replies to the bot's own messages are left to the history transcript.
func (e *Enricher) ReferenceContext(ctx context.Context, guildID string, ref *discordgo.Message) string {
	if ref == nil || ref.Author == nil || ref.Author.ID == e.botID {
		return ""
	}
	name := e.displayName(ctx, guildID, ref.Author)
	return fmt.Sprintf("\n[Replying to %s: %s]", name, e.ReferenceText(ref))
}

// Normalize returns the request text of m with the bot mention removed,
// substituting or expanding empty and very short requests.
func (e *Enricher) Normalize(m *discordgo.Message, d trigger.Decision) string {
	if d.Override != "" {
		return d.Override
	}
	text := content.StripMention(m.Content, e.botID)
	switch {
	case text == "" && content.HasMedia(m):
		return PromptImage
	case text == "" && d.IsReplyToBot:
		return PromptContinue
	case text == "":
		return PromptIntroduce
	case utf8.RuneCountInString(text) < minPromptLength && !content.HasMedia(m):
		if d.IsReplyToBot {
			return fmt.Sprintf(shortReplyTemplate, text)
		}
		return fmt.Sprintf(shortFreshTemplate, text)
	}
	return text
}

// Assemble builds the final prompt line for m.
func Assemble(displayName, normalized, mentionHint, referenceContext string) string {
	return "[" + displayName + "]: " + normalized + mentionHint + referenceContext
}

// Prompt runs every enrichment step for m.
func (e *Enricher) Prompt(ctx context.Context, m *discordgo.Message, d trigger.Decision) string {
	texts := []string{m.Content}
	if d.Referenced != nil && d.Referenced.Author != nil && d.Referenced.Author.ID != e.botID {
		texts = append(texts, d.Referenced.Content)
	}
	mentions := e.ResolveMentions(ctx, m.GuildID, texts...)
	prompt := Assemble(
		e.DisplayName(ctx, m),
		e.Normalize(m, d),
		MentionHint(mentions),
		e.ReferenceContext(ctx, m.GuildID, d.Referenced),
	)
	logger.DebugCF("enrich", "Prompt assembled", map[string]interface{}{
		"message_id": m.ID,
		"mentions":   len(mentions),
		"chars":      len(prompt),
	})
	return prompt
}
