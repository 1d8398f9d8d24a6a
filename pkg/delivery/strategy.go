package delivery

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/bwmarrin/discordgo"

	"github.com/esquie-bot/esquie/pkg/logger"
	"github.com/esquie-bot/esquie/pkg/metrics"
	"github.com/esquie-bot/esquie/pkg/platform"
)

var errNoStatus = errors.New("no status message to edit")

// Strategy is one way of getting content in front of the user.
type Strategy interface {
	Name() string
	Attempt(ctx context.Context, content string) (*discordgo.Message, error)
}

// EditStatus replaces the content of an existing status message.
type EditStatus struct {
	Client platform.Messenger
	Status *discordgo.Message
}

func (s EditStatus) Name() string { return "edit" }

func (s EditStatus) Attempt(ctx context.Context, content string) (*discordgo.Message, error) {
	if s.Status == nil {
		return nil, errNoStatus
	}
	return s.Client.EditMessage(ctx, s.Status.ChannelID, s.Status.ID, content)
}

// Reply sends content as a reply to Target.
type Reply struct {
	Client platform.Messenger
	Target *discordgo.Message
}

func (s Reply) Name() string { return "reply" }

func (s Reply) Attempt(ctx context.Context, content string) (*discordgo.Message, error) {
	return platform.Reply(ctx, s.Client, s.Target, content)
}

// ChannelSend posts a plain message that mentions UserID so it still
// reaches them when the original message is gone.
type ChannelSend struct {
	Client    platform.Messenger
	ChannelID string
	UserID    string
}

func (s ChannelSend) Name() string { return "channel" }

// Attempt returns the last message sent. Content that no longer fits once
// the mention is prepended spills into extra messages.
func (s ChannelSend) Attempt(ctx context.Context, content string) (*discordgo.Message, error) {
	prefix := ""
	if s.UserID != "" {
		prefix = fmt.Sprintf("<@%s> ", s.UserID)
	}
	parts := []string{content}
	if utf8.RuneCountInString(prefix+content) > MaxMessageLength {
		parts = SplitMessage(content, MaxMessageLength-utf8.RuneCountInString(prefix))
	}
	var last *discordgo.Message
	for i, part := range parts {
		if i == 0 {
			part = prefix + part
		}
		msg, err := s.Client.SendMessage(ctx, s.ChannelID, &discordgo.MessageSend{
			Content: part,
			AllowedMentions: &discordgo.MessageAllowedMentions{
				Parse: []discordgo.AllowedMentionType{discordgo.AllowedMentionTypeUsers},
			},
		})
		if err != nil {
			if last != nil {
				return nil, fmt.Errorf("part %d of %d: %w", i+1, len(parts), err)
			}
			return nil, err
		}
		last = msg
	}
	return last, nil
}

// Try attempts each strategy in order and returns the first success.
func Try(ctx context.Context, content string, strategies ...Strategy) (*discordgo.Message, error) {
	var errs []error
	for _, s := range strategies {
		msg, err := s.Attempt(ctx, content)
		if err == nil {
			metrics.Deliveries.WithLabelValues(s.Name()).Inc()
			return msg, nil
		}
		if !errors.Is(err, errNoStatus) {
			logger.WarnCF("delivery", "Delivery attempt failed", map[string]interface{}{
				"strategy":  s.Name(),
				"forbidden": platform.IsForbidden(err),
				"not_found": platform.IsNotFound(err),
				"error":     err,
			})
		}
		errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
	}
	metrics.Deliveries.WithLabelValues("failed").Inc()
	return nil, errors.Join(errs...)
}
