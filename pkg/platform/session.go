package platform

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
)

const requestTimeout = 10 * time.Second

// Session adapts a discordgo session to Client. Reads hit the state cache
// before falling back to REST.
type Session struct {
	s *discordgo.Session
}

func NewSession(s *discordgo.Session) *Session {
	return &Session{s: s}
}

func (p *Session) Raw() *discordgo.Session {
	return p.s
}

func (p *Session) FetchMessage(ctx context.Context, channelID, messageID string) (*discordgo.Message, error) {
	if p.s.State != nil {
		if m, err := p.s.State.Message(channelID, messageID); err == nil && m != nil {
			return m, nil
		}
	}
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()
	m, err := p.s.ChannelMessage(channelID, messageID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("fetch message %s: %w", messageID, err)
	}
	return m, nil
}

func (p *Session) SendMessage(ctx context.Context, channelID string, data *discordgo.MessageSend) (*discordgo.Message, error) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()
	m, err := p.s.ChannelMessageSendComplex(channelID, data, discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("send message to %s: %w", channelID, err)
	}
	return m, nil
}

func (p *Session) EditMessage(ctx context.Context, channelID, messageID, content string) (*discordgo.Message, error) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()
	m, err := p.s.ChannelMessageEdit(channelID, messageID, content, discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("edit message %s: %w", messageID, err)
	}
	return m, nil
}

func (p *Session) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()
	if err := p.s.ChannelMessageDelete(channelID, messageID, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("delete message %s: %w", messageID, err)
	}
	return nil
}

func (p *Session) DisplayName(ctx context.Context, guildID, userID string) (string, error) {
	if guildID == "" {
		u, err := p.s.User(userID, discordgo.WithContext(ctx))
		if err != nil {
			return "", fmt.Errorf("lookup user %s: %w", userID, err)
		}
		return UserName(u), nil
	}

	var member *discordgo.Member
	if p.s.State != nil {
		member, _ = p.s.State.Member(guildID, userID)
	}
	if member == nil {
		ctx, cancel := context.WithTimeout(ctx, requestTimeout)
		defer cancel()
		m, err := p.s.GuildMember(guildID, userID, discordgo.WithContext(ctx))
		if err != nil {
			return "", fmt.Errorf("lookup member %s in guild %s: %w", userID, guildID, err)
		}
		member = m
	}
	if member.Nick != "" {
		return member.Nick, nil
	}
	return UserName(member.User), nil
}

func (p *Session) Typing(ctx context.Context, channelID string) error {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()
	return p.s.ChannelTyping(channelID, discordgo.WithContext(ctx))
}

func (p *Session) DeferInteraction(ctx context.Context, i *discordgo.Interaction) error {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()
	err := p.s.InteractionRespond(i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
	}, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("defer interaction %s: %w", i.ID, err)
	}
	return nil
}

// FollowupInteraction may upload files, so it gets a longer deadline than
// other requests.
func (p *Session) FollowupInteraction(ctx context.Context, i *discordgo.Interaction, params *discordgo.WebhookParams) (*discordgo.Message, error) {
	ctx, cancel := context.WithTimeout(ctx, 6*requestTimeout)
	defer cancel()
	m, err := p.s.FollowupMessageCreate(i, true, params, discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("followup interaction %s: %w", i.ID, err)
	}
	return m, nil
}
