package presence

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTick(t *testing.T) {
	var applied []string
	s := NewService("*/30 * * * *", "Mention me to chat!", func(status string) error {
		applied = append(applied, status)
		return nil
	})

	assert.True(t, s.tick(time.Date(2026, 5, 1, 10, 30, 12, 0, time.UTC)))
	assert.False(t, s.tick(time.Date(2026, 5, 1, 10, 31, 0, 0, time.UTC)))
	assert.True(t, s.tick(time.Date(2026, 5, 1, 11, 0, 0, 0, time.UTC)))
	assert.Equal(t, []string{"Mention me to chat!", "Mention me to chat!"}, applied)
}

func TestTickInvalidExpression(t *testing.T) {
	called := false
	s := NewService("not a cron", "x", func(string) error {
		called = true
		return nil
	})
	assert.False(t, s.tick(time.Now()))
	assert.False(t, called)
}

func TestApply(t *testing.T) {
	calls := 0
	s := NewService("", "", func(string) error {
		calls++
		return nil
	})
	s.Apply()
	assert.Equal(t, 0, calls, "empty status is never applied")

	s = NewService("", "busy", func(string) error {
		calls++
		return errors.New("gateway closed")
	})
	s.Apply()
	assert.Equal(t, 1, calls)
}

func TestStartStop(t *testing.T) {
	s := NewService("* * * * *", "x", func(string) error { return nil })
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	assert.NoError(t, s.Start(ctx))
	assert.NotNil(t, s.stopChan)
	assert.NoError(t, s.Start(ctx), "second start is a no-op")
	s.Stop()
	assert.Nil(t, s.stopChan)
	s.Stop()

	disabled := NewService("", "x", func(string) error { return nil })
	assert.NoError(t, disabled.Start(ctx))
	assert.Nil(t, disabled.stopChan)
}
