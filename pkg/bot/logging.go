package bot

import (
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/esquie-bot/esquie/pkg/logger"
)

// RouteLibraryLogs sends discordgo's internal log lines through our logger.
func RouteLibraryLogs() {
	discordgo.Logger = func(msgL, caller int, format string, a ...interface{}) {
		msg := fmt.Sprintf(format, a...)
		switch msgL {
		case discordgo.LogDebug:
			logger.DebugC("discordgo", msg)
		case discordgo.LogInformational:
			logger.InfoC("discordgo", msg)
		case discordgo.LogWarning:
			logger.WarnC("discordgo", msg)
		default:
			logger.ErrorC("discordgo", msg)
		}
	}
}

// LibraryLogLevel maps our debug flag to a discordgo log level.
func LibraryLogLevel(debug bool) int {
	if debug {
		return discordgo.LogInformational
	}
	return discordgo.LogWarning
}
