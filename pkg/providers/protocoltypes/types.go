package protocoltypes

import (
	"encoding/base64"
	"errors"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is one role-tagged entry of a conversation transcript.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Image is raw image data sent to a vision-capable model.
type Image struct {
	MIMEType string
	Data     []byte
}

func (i Image) Base64() string {
	return base64.StdEncoding.EncodeToString(i.Data)
}

func (i Image) DataURI() string {
	return "data:" + i.MIMEType + ";base64," + i.Base64()
}

// Message is a Turn that may carry images.
type Message struct {
	Role    string
	Content string
	Images  []Image
}

// ErrMalformedResponse marks a response that arrived but could not be used.
var ErrMalformedResponse = errors.New("malformed completion response")
