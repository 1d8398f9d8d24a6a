package bot

import (
	"bytes"
	"context"

	"github.com/bwmarrin/discordgo"

	"github.com/esquie-bot/esquie/pkg/logger"
	"github.com/esquie-bot/esquie/pkg/metrics"
)

const (
	imageCommandName = "image"
	imageFailedText  = "Sorry, I couldn't create that image right now. Please try again later!"
	embedTitleLimit  = 256
)

// Commands lists the slash commands the bot registers.
func Commands() []*discordgo.ApplicationCommand {
	return []*discordgo.ApplicationCommand{
		{
			Name:        imageCommandName,
			Description: "Generate an image from a text prompt",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "prompt",
					Description: "What should the image show?",
					Required:    true,
				},
			},
		},
	}
}

// HandleInteraction answers the /image command: acknowledge at once, then
// follow up with the rendered image.
func (b *Bot) HandleInteraction(ctx context.Context, i *discordgo.Interaction) {
	if i == nil || i.Type != discordgo.InteractionApplicationCommand {
		return
	}
	data := i.ApplicationCommandData()
	if data.Name != imageCommandName {
		return
	}
	prompt := ""
	for _, opt := range data.Options {
		if opt.Name == "prompt" {
			prompt = opt.StringValue()
		}
	}

	if err := b.client.DeferInteraction(ctx, i); err != nil {
		logger.WarnCF("bot", "Failed to acknowledge /image", map[string]interface{}{"error": err})
		return
	}

	if b.images == nil {
		b.followup(ctx, i, &discordgo.WebhookParams{Content: imageFailedText})
		return
	}

	res, err := b.images.Generate(ctx, prompt)
	if err != nil {
		metrics.ImagesGenerated.WithLabelValues("failed").Inc()
		logger.ErrorCF("bot", "Image generation failed", map[string]interface{}{"error": err})
		b.followup(ctx, i, &discordgo.WebhookParams{Content: imageFailedText})
		return
	}
	metrics.ImagesGenerated.WithLabelValues("ok").Inc()

	requester := ""
	if u := interactionUser(i); u != nil {
		requester = u.ID
	}
	embed := &discordgo.MessageEmbed{
		Title: truncateRunes(prompt, embedTitleLimit),
		Image: &discordgo.MessageEmbedImage{URL: "attachment://" + res.Filename},
		Color: 0x5865F2,
	}
	if requester != "" {
		embed.Description = "Requested by <@" + requester + ">"
	}
	b.followup(ctx, i, &discordgo.WebhookParams{
		Embeds: []*discordgo.MessageEmbed{embed},
		Files: []*discordgo.File{{
			Name:        res.Filename,
			ContentType: res.ContentType,
			Reader:      bytes.NewReader(res.Data),
		}},
		AllowedMentions: &discordgo.MessageAllowedMentions{},
	})
}

func (b *Bot) followup(ctx context.Context, i *discordgo.Interaction, params *discordgo.WebhookParams) {
	if _, err := b.client.FollowupInteraction(ctx, i, params); err != nil {
		logger.ErrorCF("bot", "Failed to send /image followup", map[string]interface{}{"error": err})
	}
}

func interactionUser(i *discordgo.Interaction) *discordgo.User {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User
	}
	return i.User
}

func truncateRunes(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit-1]) + "…"
}
