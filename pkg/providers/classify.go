package providers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/url"
)

const (
	ApologyNetwork    = "Sorry, I'm having trouble connecting to my AI brain right now. Please try again later!"
	ApologyMalformed  = "Oops! I got a response but couldn't understand it. Please try again!"
	ApologyUnexpected = "Oops! Something went wrong. Please try again!"
)

// Classify maps an error from a backend call to a FailureClass.
func Classify(err error) FailureClass {
	var ce *CompletionError
	if errors.As(err, &ce) && ce.Class != "" {
		return ce.Class
	}
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.Is(err, ErrMalformedResponse), errors.Is(err, io.ErrUnexpectedEOF),
		errors.As(err, &syntaxErr), errors.As(err, &typeErr):
		return FailureMalformed
	case isNetworkError(err):
		return FailureNetwork
	default:
		return FailureUnexpected
	}
}

func isNetworkError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}

// Apology returns the canned reply for a failure class.
func Apology(class FailureClass) string {
	switch class {
	case FailureNetwork:
		return ApologyNetwork
	case FailureMalformed:
		return ApologyMalformed
	default:
		return ApologyUnexpected
	}
}
