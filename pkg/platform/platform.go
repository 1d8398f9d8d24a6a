// Package platform is the narrow surface the bot uses to talk to Discord.
// Core packages depend on these interfaces only; Session adapts a live
// *discordgo.Session to them.
package platform

import (
	"context"
	"errors"
	"net/http"

	"github.com/bwmarrin/discordgo"
)

type MessageFetcher interface {
	FetchMessage(ctx context.Context, channelID, messageID string) (*discordgo.Message, error)
}

type Messenger interface {
	MessageFetcher
	SendMessage(ctx context.Context, channelID string, data *discordgo.MessageSend) (*discordgo.Message, error)
	EditMessage(ctx context.Context, channelID, messageID, content string) (*discordgo.Message, error)
	DeleteMessage(ctx context.Context, channelID, messageID string) error
}

type Directory interface {
	// DisplayName resolves the name a user is shown under in a guild.
	// guildID is empty for direct messages.
	DisplayName(ctx context.Context, guildID, userID string) (string, error)
}

type Typer interface {
	// Typing shows the typing indicator in channelID for a few seconds.
	Typing(ctx context.Context, channelID string) error
}

// Interactions answers slash commands with the deferred response pattern.
type Interactions interface {
	DeferInteraction(ctx context.Context, i *discordgo.Interaction) error
	FollowupInteraction(ctx context.Context, i *discordgo.Interaction, params *discordgo.WebhookParams) (*discordgo.Message, error)
}

type Client interface {
	Messenger
	Directory
	Typer
	Interactions
}

// Reply sends content as a reply to target.
func Reply(ctx context.Context, m Messenger, target *discordgo.Message, content string) (*discordgo.Message, error) {
	return m.SendMessage(ctx, target.ChannelID, &discordgo.MessageSend{
		Content:   content,
		Reference: target.Reference(),
		AllowedMentions: &discordgo.MessageAllowedMentions{
			Parse:       []discordgo.AllowedMentionType{discordgo.AllowedMentionTypeUsers},
			RepliedUser: true,
		},
	})
}

func statusCode(err error) int {
	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) && restErr.Response != nil {
		return restErr.Response.StatusCode
	}
	return 0
}

func IsNotFound(err error) bool {
	return statusCode(err) == http.StatusNotFound
}

func IsForbidden(err error) bool {
	return statusCode(err) == http.StatusForbidden
}

// UserName picks the most human form of a user's name.
func UserName(u *discordgo.User) string {
	if u == nil {
		return "someone"
	}
	if u.GlobalName != "" {
		return u.GlobalName
	}
	return u.Username
}
