package providers

import (
	"context"
	"fmt"

	"github.com/esquie-bot/esquie/pkg/providers/protocoltypes"
)

type Turn = protocoltypes.Turn
type Image = protocoltypes.Image
type Message = protocoltypes.Message

const (
	RoleSystem    = protocoltypes.RoleSystem
	RoleUser      = protocoltypes.RoleUser
	RoleAssistant = protocoltypes.RoleAssistant
)

var ErrMalformedResponse = protocoltypes.ErrMalformedResponse

// Backend is a remote chat-completion endpoint.
type Backend interface {
	Chat(ctx context.Context, messages []Message, model string, options map[string]interface{}) (string, error)
	Name() string
}

// FailureClass buckets completion failures for logging and user replies.
type FailureClass string

const (
	FailureNetwork    FailureClass = "network"
	FailureMalformed  FailureClass = "malformed"
	FailureUnexpected FailureClass = "unexpected"
)

// CompletionError wraps a backend error with classification metadata.
type CompletionError struct {
	Class    FailureClass
	Provider string
	Model    string
	Status   int
	Wrapped  error
}

func (e *CompletionError) Error() string {
	return fmt.Sprintf("completion(%s): provider=%s model=%s status=%d: %v",
		e.Class, e.Provider, e.Model, e.Status, e.Wrapped)
}

func (e *CompletionError) Unwrap() error {
	return e.Wrapped
}
