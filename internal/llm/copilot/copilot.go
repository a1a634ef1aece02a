// Package copilot implements llm.Provider on top of the Copilot CLI SDK.
// It is text-only: requests carrying images are rejected before any session
// is created.
package copilot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	sdk "github.com/github/copilot-sdk/go"

	"github.com/richardpark-msft/vigil/internal/llm"
)

// Client implements llm.Provider using one Copilot session per request.
type Client struct {
	model  string
	client copilotClient

	startOnce sync.Once
	startErr  error
}

// Options overrides client construction, used by tests to inject mocks.
type Options struct {
	NewCopilotClient func(clientOptions *sdk.ClientOptions) copilotClient
}

// New creates a Copilot provider. model can be blank, which lets the Copilot
// CLI choose its own fallback model.
func New(model string, options *Options) *Client {
	copilotOptions := &sdk.ClientOptions{
		// NOTE: autostart runs into issues when triggered from separate
		// goroutines, so the client is started explicitly on first use.
		LogLevel:  "error",
		AutoStart: sdk.Bool(false),
	}

	var client copilotClient
	if options == nil || options.NewCopilotClient == nil {
		client = newCopilotClient(copilotOptions)
	} else {
		client = options.NewCopilotClient(copilotOptions)
	}

	return &Client{model: model, client: client}
}

func (c *Client) Name() string { return "copilot" }

func (c *Client) Generate(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	if req == nil {
		return nil, fmt.Errorf("nil req was passed to copilot.Generate")
	}
	if len(req.Images) > 0 {
		return nil, llm.ErrImagesUnsupported
	}

	c.startOnce.Do(func() {
		c.startErr = c.client.Start(ctx)
	})
	if c.startErr != nil {
		return nil, fmt.Errorf("copilot failed to start: %w", c.startErr)
	}

	session, err := c.client.CreateSession(ctx, &sdk.SessionConfig{
		Model: c.model,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	collector := newMessageCollector()
	unsubscribe := session.On(collector.On)
	defer unsubscribe()

	unsubscribe = session.On(sessionToSlog)
	defer unsubscribe()

	prompt := req.Prompt
	if req.System != "" {
		prompt = req.System + "\n\n" + req.Prompt
	}

	if _, err := session.SendAndWait(ctx, sdk.MessageOptions{Prompt: prompt}); err != nil {
		return nil, fmt.Errorf("copilot send failed: %w", err)
	}
	if msg := collector.ErrorMessage(); msg != "" {
		return nil, fmt.Errorf("copilot session failed: %s", msg)
	}

	return &llm.Response{
		Content: collector.Text(),
		Model:   c.model,
	}, nil
}

// Close stops the underlying Copilot client.
func (c *Client) Close() error {
	return c.client.Stop()
}

// messageCollector accumulates assistant output from session events.
type messageCollector struct {
	mu       sync.Mutex
	parts    []string
	errorMsg string
}

func newMessageCollector() *messageCollector {
	return &messageCollector{}
}

// On is a callback, intended to be passed to [copilot.Session.On] to receive
// events in real-time.
func (coll *messageCollector) On(event sdk.SessionEvent) {
	coll.mu.Lock()
	defer coll.mu.Unlock()

	switch event.Type {
	case sdk.AssistantMessage, sdk.AssistantMessageDelta:
		if event.Data.Content != nil {
			coll.parts = append(coll.parts, *event.Data.Content)
		}
	case sdk.SessionError:
		if event.Data.Message == nil || *event.Data.Message == "" {
			coll.errorMsg = "session failed with unknown error"
		} else {
			coll.errorMsg = *event.Data.Message
		}
	}
}

// Text returns the concatenated assistant output.
func (coll *messageCollector) Text() string {
	coll.mu.Lock()
	defer coll.mu.Unlock()
	return strings.Join(coll.parts, "")
}

// ErrorMessage returns the session error message, if any.
func (coll *messageCollector) ErrorMessage() string {
	coll.mu.Lock()
	defer coll.mu.Unlock()
	return coll.errorMsg
}

// sessionToSlog logs session events when debug logging is enabled.
func sessionToSlog(event sdk.SessionEvent) {
	if !slog.Default().Enabled(context.Background(), slog.LevelDebug) {
		return
	}

	attrs := []any{
		"type", event.Type,
	}

	attrs = addIf(attrs, "content", event.Data.Content)
	attrs = addIf(attrs, "deltaContent", event.Data.DeltaContent)
	attrs = addIf(attrs, "message", event.Data.Message)

	slog.Debug("Copilot event", attrs...)
}

func addIf[T any](attrs []any, name string, v *T) []any {
	if v != nil {
		attrs = append(attrs, name)
		attrs = append(attrs, *v)
	}

	return attrs
}
