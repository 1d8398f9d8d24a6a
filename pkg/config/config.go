// Esquie - Discord companion bot
// License: MIT
//
// Copyright (c) 2026 Esquie contributors

package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/adhocore/gronx"
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	ProviderPollinations = "pollinations"
	ProviderAnthropic    = "anthropic"
)

// ErrMissingToken is returned by Validate when no bot token was supplied.
var ErrMissingToken = errors.New("DISCORD_BOT_TOKEN is not set")

type Config struct {
	Token     string `env:"DISCORD_BOT_TOKEN"`
	BotName   string `env:"BOT_NAME" envDefault:"Esquie"`
	StatusMsg string `env:"BOT_STATUS" envDefault:"Mention me to chat!"`

	Completion CompletionConfig
	Image      ImageConfig
	Reactions  ReactionConfig

	HistoryDepth         int    `env:"HISTORY_DEPTH" envDefault:"10"`
	MaxImageDescriptions int    `env:"MAX_IMAGE_DESCRIPTIONS" envDefault:"4"`
	PresenceCron         string `env:"PRESENCE_CRON" envDefault:"*/30 * * * *"`
	HTTPAddr             string `env:"HTTP_ADDR" envDefault:":8080"`
	LogLevel             string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat            string `env:"LOG_FORMAT" envDefault:"console"`
}

type CompletionConfig struct {
	Provider    string        `env:"COMPLETION_PROVIDER" envDefault:"pollinations"`
	BaseURL     string        `env:"COMPLETION_BASE_URL" envDefault:"https://text.pollinations.ai/openai"`
	APIKey      string        `env:"COMPLETION_API_KEY"`
	Model       string        `env:"COMPLETION_MODEL" envDefault:"openai"`
	VisionModel string        `env:"VISION_MODEL" envDefault:"openai"`
	Timeout     time.Duration `env:"COMPLETION_TIMEOUT" envDefault:"60s"`
	Seed        int64         `env:"COMPLETION_SEED" envDefault:"42"`
}

type ImageConfig struct {
	BaseURL string        `env:"IMAGE_BASE_URL" envDefault:"https://image.pollinations.ai/prompt"`
	Model   string        `env:"IMAGE_MODEL" envDefault:"flux"`
	Width   int           `env:"IMAGE_WIDTH" envDefault:"1024"`
	Height  int           `env:"IMAGE_HEIGHT" envDefault:"1024"`
	Timeout time.Duration `env:"IMAGE_TIMEOUT" envDefault:"120s"`
}

type ReactionConfig struct {
	ExplainEmoji string `env:"EXPLAIN_EMOJI" envDefault:"❓"`
	DeleteEmoji  string `env:"DELETE_EMOJI" envDefault:"🗑️"`
}

// LoadConfig reads an optional dotenv file and then parses the process
// environment. Variables already present in the environment win over the
// file. An empty path means ".env" in the working directory; a missing
// default file is not an error.
func LoadConfig(envFile string) (*Config, error) {
	path := envFile
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if envFile != "" || !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load env file %s: %w", path, err)
		}
	}
	return Parse(nil)
}

// Parse builds a Config from environ, or from the process environment when
// environ is nil.
func Parse(environ map[string]string) (*Config, error) {
	cfg := &Config{}
	opts := env.Options{}
	if environ != nil {
		opts.Environment = environ
	}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	cfg.Token = strings.TrimSpace(cfg.Token)
	return cfg, nil
}

// Validate reports configuration problems that must stop the process at
// startup.
func (c *Config) Validate() error {
	if c.Token == "" {
		return ErrMissingToken
	}
	switch c.Completion.Provider {
	case ProviderPollinations, ProviderAnthropic:
	default:
		return fmt.Errorf("unknown COMPLETION_PROVIDER %q", c.Completion.Provider)
	}
	if c.Completion.Timeout <= 0 {
		return fmt.Errorf("COMPLETION_TIMEOUT must be positive, got %s", c.Completion.Timeout)
	}
	if c.HistoryDepth < 0 {
		return fmt.Errorf("HISTORY_DEPTH must not be negative, got %d", c.HistoryDepth)
	}
	if c.PresenceCron != "" && !gronx.New().IsValid(c.PresenceCron) {
		return fmt.Errorf("invalid PRESENCE_CRON expression %q", c.PresenceCron)
	}
	return nil
}

func (c *Config) JSONLogs() bool {
	return strings.EqualFold(c.LogFormat, "json")
}
