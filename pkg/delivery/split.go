package delivery

import (
	"strings"
	"unicode"
)

// MaxMessageLength is Discord's per-message content limit.
const MaxMessageLength = 2000

// SplitMessage cuts text into chunks of at most limit runes. A chunk ends
// after sentence punctuation when one falls in the last tenth of the
// window, otherwise at the last whitespace, otherwise exactly at limit.
// Whitespace around cut points is dropped.
func SplitMessage(text string, limit int) []string {
	if limit <= 0 {
		limit = MaxMessageLength
	}
	runes := []rune(strings.TrimSpace(text))
	var chunks []string
	for len(runes) > limit {
		cut := cutPoint(runes[:limit])
		if chunk := strings.TrimSpace(string(runes[:cut])); chunk != "" {
			chunks = append(chunks, chunk)
		}
		runes = runes[cut:]
		for len(runes) > 0 && unicode.IsSpace(runes[0]) {
			runes = runes[1:]
		}
	}
	if len(runes) > 0 {
		chunks = append(chunks, string(runes))
	}
	return chunks
}

func cutPoint(window []rune) int {
	limit := len(window)
	for i := limit - 1; i >= limit-limit/10; i-- {
		if isSentenceEnd(window[i]) {
			return i + 1
		}
	}
	for i := limit - 1; i > 0; i-- {
		if unicode.IsSpace(window[i]) {
			return i
		}
	}
	return limit
}

func isSentenceEnd(r rune) bool {
	switch r {
	case '.', '!', '?', '。', '！', '？', '\n':
		return true
	}
	return false
}
