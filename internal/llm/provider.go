// Package llm defines the provider abstraction used for every semantic call
// the pipeline makes, plus the retry and factory plumbing shared by all
// backends.
package llm

import (
	"context"
	"errors"
)

// ErrImagesUnsupported is returned by text-only providers when a request
// carries image attachments.
var ErrImagesUnsupported = errors.New("provider does not support image input")

// Provider is the interface all model backends implement.
type Provider interface {
	// Generate sends one prompt, optionally with image attachments, and
	// returns the model's raw text. The text is untrusted: callers run it
	// through recovery before relying on its structure.
	Generate(ctx context.Context, req *Request) (*Response, error)

	// Name returns the provider identifier (e.g. "gemini", "anthropic").
	Name() string
}

// Image is a single frame attachment for a vision request.
type Image struct {
	MIMEType string `json:"mime_type"`
	Data     []byte `json:"data"`
}

// Request is the full input to one generation call.
type Request struct {
	System      string   `json:"system,omitempty"`
	Prompt      string   `json:"prompt"`
	Images      []Image  `json:"images,omitempty"`
	MaxTokens   int      `json:"max_tokens,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
}

// Response wraps a completion result.
type Response struct {
	Content      string `json:"content"`
	Model        string `json:"model,omitempty"`
	InputTokens  int    `json:"input_tokens,omitempty"`
	OutputTokens int    `json:"output_tokens,omitempty"`
	StopReason   string `json:"stop_reason,omitempty"`
}
