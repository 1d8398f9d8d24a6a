// Esquie - Discord companion bot
// License: MIT
//
// Copyright (c) 2026 Esquie contributors

// Package bot wires Discord events to the trigger, history, enrichment,
// completion and delivery steps.
package bot

import (
	"context"
	"runtime/debug"
	"strings"
	"sync/atomic"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/esquie-bot/esquie/pkg/content"
	"github.com/esquie-bot/esquie/pkg/delivery"
	"github.com/esquie-bot/esquie/pkg/enrich"
	"github.com/esquie-bot/esquie/pkg/history"
	"github.com/esquie-bot/esquie/pkg/imagegen"
	"github.com/esquie-bot/esquie/pkg/logger"
	"github.com/esquie-bot/esquie/pkg/metrics"
	"github.com/esquie-bot/esquie/pkg/platform"
	"github.com/esquie-bot/esquie/pkg/presence"
	"github.com/esquie-bot/esquie/pkg/providers"
	"github.com/esquie-bot/esquie/pkg/serializer"
	"github.com/esquie-bot/esquie/pkg/trigger"
)

const typingInterval = 8 * time.Second

// Completer produces the reply text for a prompt. It never fails; errors
// come back as apology text.
type Completer interface {
	Complete(ctx context.Context, prompt string, history []providers.Turn, imageDescriptions []string) string
}

// ImageDescriber turns image URLs into description lines.
type ImageDescriber interface {
	DescribeAll(ctx context.Context, urls []string) []string
}

// ImageGenerator renders /image prompts.
type ImageGenerator interface {
	Generate(ctx context.Context, prompt string) (*imagegen.Result, error)
}

type Options struct {
	BotName      string
	HistoryDepth int
	ExplainEmoji string
	DeleteEmoji  string
}

// Job is the payload carried through the serializer.
type Job struct {
	// Message is the message being answered. For reactions it is a
	// synthetic reply from the reacting user to the reacted message.
	Message  *discordgo.Message
	Decision trigger.Decision
}

type Bot struct {
	client     platform.Client
	botID      string
	opts       Options
	classifier *trigger.Classifier
	walker     *history.Walker
	enricher   *enrich.Enricher
	completer  Completer
	describer  ImageDescriber
	images     ImageGenerator
	deliverer  *delivery.Deliverer
	queue      *serializer.Serializer[Job]
	presence   *presence.Service
	gateway    *gateway

	connected atomic.Bool
	ctx       context.Context
}

func New(client platform.Client, botID string, completer Completer, opts Options) *Bot {
	if opts.BotName == "" {
		opts.BotName = "Esquie"
	}
	b := &Bot{
		client:     client,
		botID:      botID,
		opts:       opts,
		classifier: trigger.NewClassifier(botID, client),
		walker:     history.NewWalker(client, botID, opts.HistoryDepth),
		enricher:   enrich.New(client, botID, opts.BotName),
		completer:  completer,
		deliverer:  delivery.NewDeliverer(client),
		ctx:        context.Background(),
	}
	b.queue = serializer.New(b.process)
	return b
}

func (b *Bot) SetDescriber(d ImageDescriber) {
	b.describer = d
}

func (b *Bot) SetImageGenerator(g ImageGenerator) {
	b.images = g
}

func (b *Bot) SetPresence(p *presence.Service) {
	b.presence = p
}

func (b *Bot) BotID() string {
	return b.botID
}

func (b *Bot) Connected() bool {
	return b.connected.Load()
}

func (b *Bot) Slot() serializer.Snapshot {
	return b.queue.Snapshot()
}

func (b *Bot) setConnected(v bool) {
	b.connected.Store(v)
	if v {
		metrics.GatewayConnected.Set(1)
	} else {
		metrics.GatewayConnected.Set(0)
	}
}

// HandleMessage classifies m and, when it needs an answer, runs or queues
// it. It returns once the request has been answered or queued.
func (b *Bot) HandleMessage(ctx context.Context, m *discordgo.Message) {
	metrics.MessagesSeen.Inc()
	d := b.classifier.Classify(ctx, m)
	if !d.ShouldRespond {
		return
	}
	b.submit(ctx, Job{Message: m, Decision: d}, triggerKind(d))
}

func triggerKind(d trigger.Decision) string {
	switch {
	case d.Override != "":
		return "reaction"
	case d.IsMention:
		return "mention"
	case d.IsReplyToBot:
		return "reply_media"
	default:
		return "explain"
	}
}

func (b *Bot) submit(ctx context.Context, job Job, kind string) {
	m := job.Message
	metrics.Triggers.WithLabelValues(kind).Inc()

	name := b.enricher.DisplayName(ctx, m)
	req := serializer.NewRequest(m.Author.ID, name, job)
	adm := b.queue.Submit(req)
	if !adm.Queued {
		b.queue.Execute(ctx, req)
		return
	}

	metrics.RequestsQueued.Inc()
	if stale := adm.StaleNotice; stale != nil {
		if err := b.client.DeleteMessage(ctx, stale.ChannelID, stale.ID); err != nil {
			logger.DebugCF("bot", "Failed to delete superseded wait notice", map[string]interface{}{"error": err})
		}
	}
	notice, err := b.deliverer.WaitNotice(ctx, m, adm.OwnerName, adm.Position)
	if err != nil {
		logger.WarnCF("bot", "Failed to send wait notice", map[string]interface{}{
			"request_id": req.ID,
			"error":      err,
		})
		return
	}
	if !b.queue.AttachNotice(req, notice) {
		// Already picked up or superseded; the notice is stale either way.
		if err := b.client.DeleteMessage(ctx, notice.ChannelID, notice.ID); err != nil {
			logger.DebugCF("bot", "Failed to delete stale wait notice", map[string]interface{}{"error": err})
		}
	}
}

// process runs the full pipeline for one request while it holds the slot.
func (b *Bot) process(ctx context.Context, req *serializer.Request[Job]) {
	m := req.Payload.Message
	d := req.Payload.Decision

	var status *discordgo.Message
	defer func() {
		if r := recover(); r != nil {
			logger.ErrorCF("bot", "Panic while answering message", map[string]interface{}{
				"request_id": req.ID,
				"message_id": m.ID,
				"panic":      r,
				"stack":      string(debug.Stack()),
			})
			b.apologize(ctx, m, status)
		}
	}()

	status = b.statusMessage(ctx, req)
	stopTyping := b.startTyping(ctx, m.ChannelID)
	defer stopTyping()

	var turns []providers.Turn
	if m.MessageReference != nil {
		turns = b.walker.Build(ctx, m)
	}
	metrics.HistoryTurns.Observe(float64(len(turns)))

	prompt := b.enricher.Prompt(ctx, m, d)

	var descriptions []string
	if b.describer != nil {
		descriptions = b.describer.DescribeAll(ctx, imageURLs(m, d))
	}

	logger.InfoCF("bot", "Requesting completion", map[string]interface{}{
		"request_id": req.ID,
		"message_id": m.ID,
		"user_id":    m.Author.ID,
		"history":    len(turns),
		"images":     len(descriptions),
	})
	reply := b.completer.Complete(ctx, prompt, turns, descriptions)

	b.deliverer.Deliver(ctx, m, status, reply)
}

// statusMessage reuses the wait notice of a queued request or posts a new
// thinking status.
func (b *Bot) statusMessage(ctx context.Context, req *serializer.Request[Job]) *discordgo.Message {
	if notice := req.Notice; notice != nil {
		edited, err := b.client.EditMessage(ctx, notice.ChannelID, notice.ID, delivery.ThinkingText)
		if err == nil {
			return edited
		}
		logger.DebugCF("bot", "Could not reuse wait notice", map[string]interface{}{"error": err})
	}
	return b.deliverer.Thinking(ctx, req.Payload.Message)
}

func (b *Bot) apologize(ctx context.Context, m *discordgo.Message, status *discordgo.Message) {
	defer func() {
		if r := recover(); r != nil {
			logger.ErrorCF("bot", "Apology failed", map[string]interface{}{"panic": r})
		}
	}()
	b.deliverer.Deliver(ctx, m, status, providers.ApologyUnexpected)
}

// imageURLs lists the images to describe: those on m, plus those on the
// referenced message when the user asked for an explanation of it.
func imageURLs(m *discordgo.Message, d trigger.Decision) []string {
	urls := content.ImageURLs(m)
	if (d.IsExplanationRequest || d.Override != "") && d.Referenced != nil {
		urls = append(urls, content.ImageURLs(d.Referenced)...)
	}
	return urls
}

// startTyping keeps the typing indicator on until the returned func is
// called.
func (b *Bot) startTyping(ctx context.Context, channelID string) func() {
	stop := make(chan struct{})
	go func() {
		if err := b.client.Typing(ctx, channelID); err != nil {
			logger.DebugCF("bot", "Typing indicator failed", map[string]interface{}{"channel_id": channelID, "error": err})
		}
		ticker := time.NewTicker(typingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := b.client.Typing(ctx, channelID); err != nil {
					logger.DebugCF("bot", "Typing indicator failed", map[string]interface{}{"channel_id": channelID, "error": err})
				}
			}
		}
	}()
	return func() { close(stop) }
}

func sameEmoji(a, b string) bool {
	const variationSelector = "\ufe0f"
	return a != "" && strings.TrimSuffix(a, variationSelector) == strings.TrimSuffix(b, variationSelector)
}
