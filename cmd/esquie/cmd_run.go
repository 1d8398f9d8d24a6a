package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/esquie-bot/esquie/pkg/bot"
	"github.com/esquie-bot/esquie/pkg/config"
	"github.com/esquie-bot/esquie/pkg/health"
	"github.com/esquie-bot/esquie/pkg/imagegen"
	"github.com/esquie-bot/esquie/pkg/logger"
	"github.com/esquie-bot/esquie/pkg/media"
	"github.com/esquie-bot/esquie/pkg/metrics"
	"github.com/esquie-bot/esquie/pkg/platform"
	"github.com/esquie-bot/esquie/pkg/presence"
	"github.com/esquie-bot/esquie/pkg/providers"
)

func runCmd() {
	flags := parseFlags(os.Args[1:])
	cfg := loadConfig(flags)
	if err := cfg.Validate(); err != nil {
		if errors.Is(err, config.ErrMissingToken) {
			logger.FatalCF("main", "DISCORD_BOT_TOKEN is not set", nil)
		}
		logger.FatalCF("main", "Invalid configuration", map[string]any{"error": err})
	}

	bot.RouteLibraryLogs()
	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		logger.FatalCF("main", "Failed to create discord session", map[string]any{"error": err})
	}
	session.LogLevel = bot.LibraryLogLevel(flags.debug)

	// Resolve our own identity before opening the gateway so the first
	// events can already be classified.
	self, err := session.User("@me")
	if err != nil {
		logger.FatalCF("main", "Failed to get bot user", map[string]any{"error": err})
	}
	logger.InfoCF("main", "Authenticated", map[string]any{
		"username": self.Username,
		"user_id":  self.ID,
	})

	client, err := newCompletionClient(cfg, self.ID)
	if err != nil {
		logger.FatalCF("main", "Error creating completion backend", map[string]any{"error": err})
	}

	b := bot.New(platform.NewSession(session), self.ID, client, bot.Options{
		BotName:      cfg.BotName,
		HistoryDepth: cfg.HistoryDepth,
		ExplainEmoji: cfg.Reactions.ExplainEmoji,
		DeleteEmoji:  cfg.Reactions.DeleteEmoji,
	})
	b.SetDescriber(media.NewDescriber(client, cfg.MaxImageDescriptions))
	b.SetImageGenerator(imagegen.NewGenerator(cfg.Image))

	status := presence.NewService(cfg.PresenceCron, cfg.StatusMsg, session.UpdateCustomStatus)
	b.SetPresence(status)

	metrics.RegisterSlotGauges(prometheus.DefaultRegisterer,
		func() float64 {
			if b.Slot().Busy {
				return 1
			}
			return 0
		},
		func() float64 { return float64(b.Slot().Waiting) },
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := b.Start(ctx, session); err != nil {
		logger.FatalCF("main", "Failed to start bot", map[string]any{"error": err})
	}
	logger.InfoCF("main", "Bot is running", map[string]any{
		"backend": client.Backend().Name(),
		"name":    cfg.BotName,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return status.Start(gctx)
	})
	if cfg.HTTPAddr != "" {
		srv := health.NewServer(cfg.HTTPAddr, formatVersion(), b)
		g.Go(func() error {
			return srv.Run(gctx)
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		logger.InfoC("main", "Shutting down...")
		status.Stop()
		return b.Stop()
	})

	if err := g.Wait(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.ErrorCF("main", "Shutdown with error", map[string]any{"error": err})
		os.Exit(1)
	}
	logger.InfoC("main", "Stopped")
}

// newCompletionClient builds the completion client and feeds its results
// into the metrics.
func newCompletionClient(cfg *config.Config, botID string) (*providers.Client, error) {
	backend, model, visionModel, err := providers.CreateProvider(cfg.Completion)
	if err != nil {
		return nil, err
	}
	client := providers.NewClient(backend, providers.ClientOptions{
		BotName:     cfg.BotName,
		BotID:       botID,
		Model:       model,
		VisionModel: visionModel,
		Timeout:     cfg.Completion.Timeout,
		Seed:        cfg.Completion.Seed,
	})
	client.OnResult(func(backend string, class providers.FailureClass, elapsed time.Duration) {
		outcome := "ok"
		if class != "" {
			outcome = string(class)
		}
		metrics.CompletionRequests.WithLabelValues(backend, outcome).Inc()
		metrics.CompletionDuration.WithLabelValues(backend).Observe(elapsed.Seconds())
	})
	return client, nil
}
