// Package delivery gets completion replies into a channel, splitting long
// text and falling back through edit, reply and plain send.
package delivery

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/esquie-bot/esquie/pkg/logger"
	"github.com/esquie-bot/esquie/pkg/platform"
)

const (
	ThinkingText = "🤔 Thinking..."
	waitTemplate = "⏳ Please wait, I'm answering %s right now. You're #%d in line and I'll reply here as soon as I'm free."
	splitNotice  = "📜 My answer was long, so I sent it in %d parts below."
)

type Deliverer struct {
	client platform.Messenger
	limit  int
}

func NewDeliverer(client platform.Messenger) *Deliverer {
	return &Deliverer{client: client, limit: MaxMessageLength}
}

// Thinking posts the provisional status reply. A nil message is returned
// when it could not be sent; Deliver copes with that.
func (d *Deliverer) Thinking(ctx context.Context, target *discordgo.Message) *discordgo.Message {
	msg, err := platform.Reply(ctx, d.client, target, ThinkingText)
	if err != nil {
		logger.WarnCF("delivery", "Failed to send thinking status", map[string]interface{}{
			"channel_id": target.ChannelID,
			"message_id": target.ID,
			"error":      err,
		})
		return nil
	}
	return msg
}

// WaitNotice tells the author of target that another user holds the slot.
func (d *Deliverer) WaitNotice(ctx context.Context, target *discordgo.Message, ownerName string, position int) (*discordgo.Message, error) {
	return platform.Reply(ctx, d.client, target, fmt.Sprintf(waitTemplate, ownerName, position))
}

// Deliver puts text in front of the author of target. status, when not
// nil, is the placeholder to replace. Failures are logged; the error is
// returned only for callers that want to count it.
func (d *Deliverer) Deliver(ctx context.Context, target, status *discordgo.Message, text string) error {
	chunks := SplitMessage(text, d.limit)
	if len(chunks) == 0 {
		logger.WarnCF("delivery", "Nothing to deliver", map[string]interface{}{"message_id": target.ID})
		return nil
	}

	userID := ""
	if target.Author != nil {
		userID = target.Author.ID
	}
	fallback := ChannelSend{Client: d.client, ChannelID: target.ChannelID, UserID: userID}

	if len(chunks) == 1 {
		_, err := Try(ctx, chunks[0],
			EditStatus{Client: d.client, Status: status},
			Reply{Client: d.client, Target: target},
			fallback,
		)
		if err != nil {
			logger.ErrorCF("delivery", "All delivery strategies failed", map[string]interface{}{
				"message_id": target.ID,
				"error":      err,
			})
		}
		return err
	}

	prev := target
	for i, chunk := range chunks {
		sent, err := Try(ctx, chunk, Reply{Client: d.client, Target: prev}, fallback)
		if err != nil {
			logger.ErrorCF("delivery", "Failed to deliver chunk, giving up", map[string]interface{}{
				"message_id": target.ID,
				"chunk":      i + 1,
				"chunks":     len(chunks),
				"error":      err,
			})
			return err
		}
		prev = sent
	}

	if status != nil {
		if _, err := d.client.EditMessage(ctx, status.ChannelID, status.ID, fmt.Sprintf(splitNotice, len(chunks))); err != nil {
			logger.WarnCF("delivery", "Failed to update status after split reply", map[string]interface{}{
				"status_id": status.ID,
				"error":     err,
			})
		}
	}
	logger.InfoCF("delivery", "Delivered split reply", map[string]interface{}{
		"message_id": target.ID,
		"chunks":     len(chunks),
	})
	return nil
}
