// Package llmutil wires the built-in provider constructors into an
// llm.Factory without making the llm package depend on its own backends.
package llmutil

import (
	"github.com/richardpark-msft/vigil/internal/llm"
	"github.com/richardpark-msft/vigil/internal/llm/anthropic"
	"github.com/richardpark-msft/vigil/internal/llm/copilot"
	"github.com/richardpark-msft/vigil/internal/llm/gemini"
	"github.com/richardpark-msft/vigil/internal/llm/stub"
)

// RegisterDefaultProviders registers all built-in provider constructors
// (gemini, anthropic, copilot, stub) into factory. Both the CLI and the serve
// surface call this so registration stays in one place.
func RegisterDefaultProviders(factory *llm.Factory) {
	factory.Register("gemini", func(c llm.Config) (llm.Provider, error) {
		return gemini.New(c.APIKey, c.Model, c.BaseURL), nil
	})
	factory.Register("anthropic", func(c llm.Config) (llm.Provider, error) {
		return anthropic.New(c.APIKey, c.Model, c.BaseURL), nil
	})
	factory.Register("copilot", func(c llm.Config) (llm.Provider, error) {
		return copilot.New(c.Model, nil), nil
	})
	factory.Register("stub", func(c llm.Config) (llm.Provider, error) {
		return stub.New(), nil
	})
}
