// Package stub provides a canned, deterministic llm.Provider for tests and
// dry runs.
package stub

import (
	"context"
	"fmt"
	"sync"

	"github.com/richardpark-msft/vigil/internal/llm"
)

// Client implements llm.Provider with queued responses. When the queue is
// empty it echoes the prompt, so a pipeline can always run to completion
// without network access.
type Client struct {
	mu        sync.Mutex
	responses []string
	next      int
	requests  []llm.Request
}

// New creates a stub provider that returns the given responses in order.
func New(responses ...string) *Client {
	return &Client{responses: responses}
}

func (c *Client) Name() string { return "stub" }

func (c *Client) Generate(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.requests = append(c.requests, *req)

	var content string
	if c.next < len(c.responses) {
		content = c.responses[c.next]
		c.next++
	} else {
		content = fmt.Sprintf("Stub response for: %s", truncate(req.Prompt, 80))
		if len(req.Images) > 0 {
			content += fmt.Sprintf("\nAnalyzed %d image(s)", len(req.Images))
		}
	}

	return &llm.Response{Content: content, Model: "stub"}, nil
}

// Requests returns a copy of every request seen so far.
func (c *Client) Requests() []llm.Request {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]llm.Request, len(c.requests))
	copy(out, c.requests)
	return out
}

// truncate shortens s to maxLen characters, appending "..." if truncated.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
