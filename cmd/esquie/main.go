// Esquie - Discord companion bot
// License: MIT
//
// Copyright (c) 2026 Esquie contributors

package main

import (
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/esquie-bot/esquie/pkg/config"
	"github.com/esquie-bot/esquie/pkg/logger"
)

var (
	version   = "dev"
	gitCommit string
	buildTime string
	goVersion string
)

const logo = "🫧"

// formatVersion returns the version string with optional git commit
func formatVersion() string {
	v := version
	if gitCommit != "" {
		v += fmt.Sprintf(" (git: %s)", gitCommit)
	}
	return v
}

func printVersion() {
	fmt.Printf("%s esquie %s\n", logo, formatVersion())
	if buildTime != "" {
		fmt.Printf("  Build: %s\n", buildTime)
	}
	goVer := goVersion
	if goVer == "" {
		goVer = runtime.Version()
	}
	fmt.Printf("  Go: %s\n", goVer)
}

func main() {
	command := "run"
	if len(os.Args) >= 2 {
		command = os.Args[1]
	}

	switch command {
	case "run":
		runCmd()
	case "console":
		consoleCmd()
	case "version", "--version", "-v":
		printVersion()
	case "help", "--help", "-h":
		printHelp()
	default:
		if strings.HasPrefix(command, "-") {
			runCmd()
			return
		}
		fmt.Printf("Unknown command: %s\n", command)
		printHelp()
		os.Exit(1)
	}
}

func printHelp() {
	fmt.Printf("%s esquie - Discord companion bot v%s\n\n", logo, version)
	fmt.Println("Usage: esquie <command> [options]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  run         Connect to Discord and answer messages (default)")
	fmt.Println("  console     Chat with the completion backend from the terminal")
	fmt.Println("  version     Show version information")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  --env-file <path>   Load variables from this dotenv file (default .env)")
	fmt.Println("  -d, --debug         Enable debug logging")
}

// cliFlags holds the options shared by run and console.
type cliFlags struct {
	envFile string
	debug   bool
}

func parseFlags(args []string) cliFlags {
	var f cliFlags
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--debug", "-d":
			f.debug = true
		case "--env-file", "-e":
			if i+1 < len(args) {
				f.envFile = args[i+1]
				i++
			}
		}
	}
	return f
}

// loadConfig reads the configuration and sets up logging from it. Any
// problem is fatal.
func loadConfig(f cliFlags) *config.Config {
	cfg, err := config.LoadConfig(f.envFile)
	if err != nil {
		logger.FatalCF("main", "Error loading config", map[string]any{"error": err})
	}
	logger.Configure(os.Stderr, cfg.JSONLogs())
	logger.SetLevel(logger.ParseLevel(cfg.LogLevel))
	if f.debug {
		logger.SetLevel(logger.DEBUG)
	}
	return cfg
}
