package providers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/esquie-bot/esquie/pkg/logger"
)

const (
	// MaxHistoryTurns caps the transcript sent with each request.
	MaxHistoryTurns = 10

	DefaultTimeout = 60 * time.Second
	DefaultSeed    = int64(42)

	commentarySeparator = "---"
)

type ClientOptions struct {
	BotName     string
	BotID       string
	Model       string
	VisionModel string
	Timeout     time.Duration
	Seed        int64
}

// Client fronts a Backend and never surfaces an error to its caller: every
// failure becomes one of the canned apology strings.
type Client struct {
	backend Backend
	opts    ClientOptions
	now     func() time.Time
	observe func(backend string, class FailureClass, elapsed time.Duration)
}

func NewClient(backend Backend, opts ClientOptions) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Seed == 0 {
		opts.Seed = DefaultSeed
	}
	if opts.BotName == "" {
		opts.BotName = "Esquie"
	}
	if opts.VisionModel == "" {
		opts.VisionModel = opts.Model
	}
	return &Client{backend: backend, opts: opts, now: time.Now}
}

// OnResult registers a callback invoked after every backend call. class is
// empty on success.
func (c *Client) OnResult(fn func(backend string, class FailureClass, elapsed time.Duration)) {
	c.observe = fn
}

func (c *Client) Backend() Backend {
	return c.backend
}

// SystemPreamble describes who the bot is and how it should format replies.
func (c *Client) SystemPreamble() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "You are %s, a friendly and helpful assistant chatting in a Discord server.\n", c.opts.BotName)
	sb.WriteString("Reply in the language the user writes in. You can speak English, French, Spanish, German, Italian, Portuguese, Japanese, Chinese and most other widely used languages.\n")
	fmt.Fprintf(&sb, "Current date and time: %s UTC.\n", c.now().UTC().Format("2006-01-02 15:04"))
	sb.WriteString("Keep answers concise and use Discord markdown where it helps. Do not use horizontal rules or \"---\" separators, and do not add notes about yourself after your answer.\n")
	sb.WriteString("User messages are prefixed with the author's display name in square brackets, like \"[Name]: message\". Do not prefix your own replies that way.\n")
	sb.WriteString("To mention a user, write <@USER_ID> using the IDs listed in the message annotations. Never invent user IDs.")
	if c.opts.BotID != "" {
		fmt.Fprintf(&sb, " Your own ID is %s; never mention yourself.", c.opts.BotID)
	}
	return sb.String()
}

// BuildMessages assembles the request: the preamble, the most recent
// history turns, and the new user turn with image descriptions appended.
func (c *Client) BuildMessages(prompt string, history []Turn, imageDescriptions []string) []Message {
	if len(history) > MaxHistoryTurns {
		history = history[len(history)-MaxHistoryTurns:]
	}
	messages := make([]Message, 0, len(history)+2)
	messages = append(messages, Message{Role: RoleSystem, Content: c.SystemPreamble()})
	for _, t := range history {
		messages = append(messages, Message{Role: t.Role, Content: t.Content})
	}
	user := prompt
	if len(imageDescriptions) > 0 {
		user += "\n" + strings.Join(imageDescriptions, "\n")
	}
	messages = append(messages, Message{Role: RoleUser, Content: user})
	return messages
}

// Complete sends prompt with history and returns the reply text, or an
// apology if anything goes wrong.
func (c *Client) Complete(ctx context.Context, prompt string, history []Turn, imageDescriptions []string) string {
	messages := c.BuildMessages(prompt, history, imageDescriptions)
	text, err := c.call(ctx, messages, c.opts.Model)
	if err != nil {
		return Apology(Classify(err))
	}
	return text
}

// Describe asks the vision model about a single image.
func (c *Client) Describe(ctx context.Context, img Image, prompt string) (string, error) {
	messages := []Message{
		{Role: RoleSystem, Content: c.SystemPreamble()},
		{Role: RoleUser, Content: prompt, Images: []Image{img}},
	}
	return c.call(ctx, messages, c.opts.VisionModel)
}

func (c *Client) call(ctx context.Context, messages []Message, model string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	start := c.now()
	raw, err := c.backend.Chat(ctx, messages, model, map[string]interface{}{"seed": c.opts.Seed})
	if err == nil {
		raw = CleanResponse(raw)
		if raw == "" {
			err = &CompletionError{Class: FailureMalformed, Provider: c.backend.Name(), Model: model, Wrapped: ErrMalformedResponse}
		}
	}
	elapsed := time.Since(start)

	var class FailureClass
	if err != nil {
		class = Classify(err)
		logger.ErrorCF("completion", "Completion request failed", map[string]interface{}{
			"backend": c.backend.Name(),
			"model":   model,
			"class":   string(class),
			"elapsed": elapsed.String(),
			"error":   err,
		})
	} else {
		logger.InfoCF("completion", "Completion received", map[string]interface{}{
			"backend": c.backend.Name(),
			"model":   model,
			"chars":   len(raw),
			"elapsed": elapsed.String(),
		})
	}
	if c.observe != nil {
		c.observe(c.backend.Name(), class, elapsed)
	}
	return raw, err
}

// CleanResponse drops anything after the first "---" separator.
func CleanResponse(raw string) string {
	if i := strings.Index(raw, commentarySeparator); i >= 0 {
		logger.DebugC("completion", "Separator found in reply, truncating")
		raw = raw[:i]
	}
	return strings.TrimSpace(raw)
}
