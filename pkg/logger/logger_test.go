package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want LogLevel
	}{
		{"debug", DEBUG},
		{"DEBUG", DEBUG},
		{" warn ", WARN},
		{"warning", WARN},
		{"error", ERROR},
		{"fatal", FATAL},
		{"info", INFO},
		{"", INFO},
		{"nonsense", INFO},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseLevel(tt.in), "ParseLevel(%q)", tt.in)
	}
}

func TestJSONOutputCarriesComponentAndFields(t *testing.T) {
	var buf bytes.Buffer
	Configure(&buf, true)
	SetLevel(DEBUG)
	defer func() {
		Configure(os.Stdout, false)
		SetLevel(INFO)
	}()

	InfoCF("serializer", "Request queued", map[string]any{
		"user_id": "42",
		"error":   errors.New("boom"),
	})

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "serializer", entry["component"])
	assert.Equal(t, "Request queued", entry["message"])
	assert.Equal(t, "42", entry["user_id"])
	assert.Equal(t, "boom", entry["error"])
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	Configure(&buf, true)
	SetLevel(WARN)
	defer func() {
		Configure(os.Stdout, false)
		SetLevel(INFO)
	}()

	DebugC("test", "hidden debug")
	InfoC("test", "hidden info")
	WarnC("test", "visible warn")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Equal(t, 1, strings.Count(out, "visible warn"))
	assert.Equal(t, WARN, GetLevel())
}
