package bot

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/bwmarrin/discordgo"

	"github.com/esquie-bot/esquie/pkg/logger"
)

const stateMessageCount = 200

// Intents are the gateway events the bot subscribes to.
const Intents = discordgo.IntentsGuilds |
	discordgo.IntentsGuildMessages |
	discordgo.IntentsGuildMessageReactions |
	discordgo.IntentsDirectMessages |
	discordgo.IntentsDirectMessageReactions |
	discordgo.IntentsMessageContent

type gateway struct {
	session      *discordgo.Session
	registerOnce sync.Once
	removers     []func()
}

// Start registers the event handlers on s and opens the gateway. Handlers
// run with ctx until Stop is called.
func (b *Bot) Start(ctx context.Context, s *discordgo.Session) error {
	logger.InfoC("discord", "Starting Discord bot")
	b.ctx = ctx

	s.Identify.Intents = Intents
	// Handlers may block on the processing slot; each event gets its own
	// goroutine.
	s.SyncEvents = false
	s.StateEnabled = true
	if s.State != nil {
		s.State.MaxMessageCount = stateMessageCount
	}

	g := &gateway{session: s}
	g.removers = append(g.removers,
		s.AddHandler(b.onReady(g)),
		s.AddHandler(b.onResumed),
		s.AddHandler(b.onDisconnect),
		s.AddHandler(b.onMessageCreate),
		s.AddHandler(b.onReactionAdd),
		s.AddHandler(b.onInteractionCreate),
	)
	b.gateway = g

	if err := s.Open(); err != nil {
		return fmt.Errorf("failed to open discord session: %w", err)
	}
	return nil
}

// Stop closes the gateway connection.
func (b *Bot) Stop() error {
	logger.InfoC("discord", "Stopping Discord bot")
	g := b.gateway
	if g == nil {
		return nil
	}
	for _, remove := range g.removers {
		remove()
	}
	b.setConnected(false)
	if err := g.session.Close(); err != nil {
		return fmt.Errorf("failed to close discord session: %w", err)
	}
	return nil
}

// guard keeps a panicking handler from taking the process down.
func guard(event string) {
	if r := recover(); r != nil {
		logger.ErrorCF("discord", "Event handler panicked", map[string]any{
			"event": event,
			"panic": fmt.Sprint(r),
			"stack": string(debug.Stack()),
		})
	}
}

func (b *Bot) onReady(g *gateway) func(*discordgo.Session, *discordgo.Ready) {
	return func(s *discordgo.Session, r *discordgo.Ready) {
		defer guard("ready")
		b.setConnected(true)
		logger.InfoCF("discord", "Discord bot connected", map[string]any{
			"username": r.User.Username,
			"user_id":  r.User.ID,
			"guilds":   len(r.Guilds),
		})
		if b.presence != nil {
			b.presence.Apply()
		}
		g.registerOnce.Do(func() {
			cmds, err := s.ApplicationCommandBulkOverwrite(r.User.ID, "", Commands(), discordgo.WithContext(b.ctx))
			if err != nil {
				logger.ErrorCF("discord", "Failed to register slash commands", map[string]any{"error": err})
				return
			}
			logger.InfoCF("discord", "Slash commands registered", map[string]any{"count": len(cmds)})
		})
	}
}

func (b *Bot) onResumed(_ *discordgo.Session, _ *discordgo.Resumed) {
	defer guard("resumed")
	b.setConnected(true)
	logger.InfoC("discord", "Gateway session resumed")
	if b.presence != nil {
		b.presence.Apply()
	}
}

func (b *Bot) onDisconnect(_ *discordgo.Session, _ *discordgo.Disconnect) {
	defer guard("disconnect")
	b.setConnected(false)
	logger.WarnC("discord", "Gateway disconnected")
}

func (b *Bot) onMessageCreate(_ *discordgo.Session, m *discordgo.MessageCreate) {
	defer guard("message_create")
	if m == nil || m.Message == nil || m.Author == nil {
		return
	}
	b.HandleMessage(b.ctx, m.Message)
}

func (b *Bot) onReactionAdd(_ *discordgo.Session, r *discordgo.MessageReactionAdd) {
	defer guard("reaction_add")
	if r == nil || r.MessageReaction == nil {
		return
	}
	var reactor *discordgo.User
	if r.Member != nil {
		reactor = r.Member.User
	}
	b.HandleReaction(b.ctx, r.MessageReaction, reactor)
}

func (b *Bot) onInteractionCreate(_ *discordgo.Session, i *discordgo.InteractionCreate) {
	defer guard("interaction_create")
	if i == nil || i.Interaction == nil {
		return
	}
	b.HandleInteraction(b.ctx, i.Interaction)
}
