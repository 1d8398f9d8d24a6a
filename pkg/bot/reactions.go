package bot

import (
	"context"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/esquie-bot/esquie/pkg/logger"
)

// HandleReaction acts on the explain and delete emoji. reactor may be nil
// when the event carried no member data.
func (b *Bot) HandleReaction(ctx context.Context, r *discordgo.MessageReaction, reactor *discordgo.User) {
	if r == nil || r.UserID == b.botID {
		return
	}
	switch {
	case sameEmoji(b.opts.ExplainEmoji, r.Emoji.Name):
		b.explainReaction(ctx, r, reactor)
	case sameEmoji(b.opts.DeleteEmoji, r.Emoji.Name):
		b.deleteReaction(ctx, r)
	}
}

func (b *Bot) explainReaction(ctx context.Context, r *discordgo.MessageReaction, reactor *discordgo.User) {
	target, err := b.client.FetchMessage(ctx, r.ChannelID, r.MessageID)
	if err != nil {
		logger.WarnCF("bot", "Failed to fetch reacted message", map[string]interface{}{
			"message_id": r.MessageID,
			"error":      err,
		})
		return
	}
	d := b.classifier.ClassifyReaction(target, r.UserID)
	if !d.ShouldRespond {
		return
	}
	if reactor == nil || reactor.ID != r.UserID {
		reactor = &discordgo.User{ID: r.UserID}
	}
	logger.InfoCF("bot", "Explain reaction", map[string]interface{}{
		"message_id": target.ID,
		"user_id":    r.UserID,
	})
	b.submit(ctx, Job{Message: reactionMessage(target, reactor, r.GuildID), Decision: d}, "reaction")
}

// reactionMessage builds a reply from reactor to target so the regular
// pipeline can answer it. It shares target's ID so replies land on target.
func reactionMessage(target *discordgo.Message, reactor *discordgo.User, guildID string) *discordgo.Message {
	if guildID == "" {
		guildID = target.GuildID
	}
	return &discordgo.Message{
		ID:                target.ID,
		ChannelID:         target.ChannelID,
		GuildID:           guildID,
		Author:            reactor,
		MessageReference:  target.Reference(),
		ReferencedMessage: target,
	}
}

// deleteReaction removes a bot reply when the user it answered asks for it.
func (b *Bot) deleteReaction(ctx context.Context, r *discordgo.MessageReaction) {
	target, err := b.client.FetchMessage(ctx, r.ChannelID, r.MessageID)
	if err != nil || target.Author == nil || target.Author.ID != b.botID {
		return
	}
	if !b.answered(ctx, target, r.UserID) {
		logger.DebugCF("bot", "Ignoring delete reaction from another user", map[string]interface{}{
			"message_id": target.ID,
			"user_id":    r.UserID,
		})
		return
	}
	if err := b.client.DeleteMessage(ctx, target.ChannelID, target.ID); err != nil {
		logger.WarnCF("bot", "Failed to delete reply", map[string]interface{}{
			"message_id": target.ID,
			"error":      err,
		})
		return
	}
	logger.InfoCF("bot", "Deleted reply on request", map[string]interface{}{
		"message_id": target.ID,
		"user_id":    r.UserID,
	})
}

// answered reports whether reply was addressed to userID, either as a
// reply to their message or as a channel message mentioning them.
func (b *Bot) answered(ctx context.Context, reply *discordgo.Message, userID string) bool {
	if strings.HasPrefix(reply.Content, "<@"+userID+">") {
		return true
	}
	parent := reply.ReferencedMessage
	if parent == nil && reply.MessageReference != nil {
		channelID := reply.MessageReference.ChannelID
		if channelID == "" {
			channelID = reply.ChannelID
		}
		p, err := b.client.FetchMessage(ctx, channelID, reply.MessageReference.MessageID)
		if err != nil {
			return false
		}
		parent = p
	}
	return parent != nil && parent.Author != nil && parent.Author.ID == userID
}
