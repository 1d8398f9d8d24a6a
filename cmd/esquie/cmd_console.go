package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"

	"github.com/esquie-bot/esquie/pkg/logger"
	"github.com/esquie-bot/esquie/pkg/providers"
)

// consoleSession keeps a local transcript so the console behaves like a
// reply chain in Discord.
type consoleSession struct {
	client  *providers.Client
	name    string
	history []providers.Turn
}

func (s *consoleSession) ask(ctx context.Context, input string) string {
	prompt := "[" + s.name + "]: " + input
	reply := s.client.Complete(ctx, prompt, s.history, nil)
	s.history = append(s.history,
		providers.Turn{Role: providers.RoleUser, Content: input},
		providers.Turn{Role: providers.RoleAssistant, Content: reply},
	)
	if len(s.history) > providers.MaxHistoryTurns {
		s.history = s.history[len(s.history)-providers.MaxHistoryTurns:]
	}
	return reply
}

func consoleCmd() {
	args := os.Args[2:]
	flags := parseFlags(args)
	message := ""
	for i := 0; i < len(args); i++ {
		if (args[i] == "-m" || args[i] == "--message") && i+1 < len(args) {
			message = args[i+1]
			i++
		}
	}

	cfg := loadConfig(flags)
	client, err := newCompletionClient(cfg, "")
	if err != nil {
		fmt.Printf("Error creating completion backend: %v\n", err)
		os.Exit(1)
	}
	logger.InfoCF("console", "Completion backend ready", map[string]any{
		"backend": client.Backend().Name(),
	})

	name := os.Getenv("USER")
	if name == "" {
		name = "you"
	}
	sess := &consoleSession{client: client, name: name}

	if message != "" {
		fmt.Printf("\n%s %s\n", logo, sess.ask(context.Background(), message))
		return
	}
	fmt.Printf("%s Interactive mode (Ctrl+C to exit)\n\n", logo)
	interactiveMode(sess)
}

func interactiveMode(sess *consoleSession) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          fmt.Sprintf("%s You: ", logo),
		HistoryFile:     filepath.Join(os.TempDir(), ".esquie_history"),
		HistoryLimit:    100,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		fmt.Printf("Error initializing readline: %v\n", err)
		fmt.Println("Falling back to simple input mode...")
		simpleInteractiveMode(sess)
		return
	}
	defer rl.Close()

	for {
		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt || err == io.EOF {
				fmt.Println("\nGoodbye!")
				return
			}
			fmt.Printf("Error reading input: %v\n", err)
			continue
		}
		if !handleLine(sess, line) {
			return
		}
	}
}

func simpleInteractiveMode(sess *consoleSession) {
	reader := bufio.NewReader(os.Stdin)
	for {
		fmt.Printf("%s You: ", logo)
		line, err := reader.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				fmt.Println("\nGoodbye!")
				return
			}
			fmt.Printf("Error reading input: %v\n", err)
			continue
		}
		if !handleLine(sess, line) {
			return
		}
	}
}

// handleLine answers one input line. It returns false when the user quits.
func handleLine(sess *consoleSession, line string) bool {
	input := strings.TrimSpace(line)
	switch input {
	case "":
		return true
	case "exit", "quit":
		fmt.Println("Goodbye!")
		return false
	case "/reset":
		sess.history = nil
		fmt.Println("History cleared.")
		return true
	}
	fmt.Printf("\n%s %s\n\n", logo, sess.ask(context.Background(), input))
	return true
}
