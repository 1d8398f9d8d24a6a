package delivery

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func squash(s string) string {
	return strings.Join(strings.Fields(s), "")
}

func TestSplitMessage_Long(t *testing.T) {
	sentence := "The quick brown fox jumps over the lazy dog. "
	text := strings.Repeat(sentence, 100)[:4500]

	chunks := SplitMessage(text, MaxMessageLength)
	require.Len(t, chunks, 3)
	for _, c := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(c), MaxMessageLength)
	}
	assert.Equal(t, squash(text), squash(strings.Join(chunks, "")))
	assert.True(t, strings.HasSuffix(chunks[0], "."), "first chunk should end on a sentence")
}

func TestSplitMessage_Short(t *testing.T) {
	assert.Equal(t, []string{"hello"}, SplitMessage("  hello \n", MaxMessageLength))
	assert.Empty(t, SplitMessage("   ", MaxMessageLength))
}

func TestSplitMessage_PrefersSentenceNearEnd(t *testing.T) {
	// The period is outside the last tenth of the window, so the split
	// falls back to the last whitespace.
	chunks := SplitMessage("Aaaa. bbb cccc dd", 10)
	assert.Equal(t, []string{"Aaaa. bbb", "cccc dd"}, chunks)

	// Period at the very end of the window wins over the space before it.
	chunks = SplitMessage("aaa bbbbb. cc", 10)
	assert.Equal(t, []string{"aaa bbbbb.", "cc"}, chunks)
}

func TestSplitMessage_HardCut(t *testing.T) {
	chunks := SplitMessage(strings.Repeat("x", 25), 10)
	assert.Equal(t, []string{"xxxxxxxxxx", "xxxxxxxxxx", "xxxxx"}, chunks)
}

func TestSplitMessage_CountsRunes(t *testing.T) {
	text := strings.Repeat("é", 15)
	chunks := SplitMessage(text, 10)
	require.Len(t, chunks, 2)
	assert.Equal(t, 10, utf8.RuneCountInString(chunks[0]))
}
