package llm

import (
	"fmt"
	"time"
)

// Config holds everything needed to create any provider.
type Config struct {
	Provider string // "gemini", "anthropic", "copilot", "stub"
	APIKey   string
	Model    string
	BaseURL  string // Override for proxies / self-hosted endpoints

	// Timeout and retry configuration
	Timeout    time.Duration // Per-request timeout (default: 2 minutes)
	MaxRetries int           // Max retry attempts (default: 3)
	RetryDelay time.Duration // Initial retry delay for exponential backoff (default: 1s)
}

// DefaultConfig returns a config with the stock defaults.
func DefaultConfig() Config {
	return Config{
		Provider:   "gemini",
		Model:      "gemini-1.5-flash-latest",
		Timeout:    2 * time.Minute,
		MaxRetries: 3,
		RetryDelay: 1 * time.Second,
	}
}

// Constructor builds a Provider from config.
type Constructor func(cfg Config) (Provider, error)

// Factory creates Provider instances from config.
type Factory struct {
	constructors map[string]Constructor
}

// NewFactory creates an empty factory. Built-in providers are registered by
// llmutil.RegisterDefaultProviders so this package stays import-free of the
// backend subpackages.
func NewFactory() *Factory {
	return &Factory{
		constructors: make(map[string]Constructor),
	}
}

// Register adds a provider constructor under the given name.
func (f *Factory) Register(name string, ctor Constructor) {
	f.constructors[name] = ctor
}

// Create builds a Provider from config. Returns nil (no error) when provider
// is empty or "none", allowing deterministic-only operation. The returned
// provider is wrapped with retry logic when timeouts or retries are
// configured.
func (f *Factory) Create(cfg Config) (Provider, error) {
	if cfg.Provider == "" || cfg.Provider == "none" {
		return nil, nil
	}

	ctor, ok := f.constructors[cfg.Provider]
	if !ok {
		return nil, fmt.Errorf("unknown LLM provider %q, registered: %v", cfg.Provider, f.names())
	}

	provider, err := ctor(cfg)
	if err != nil {
		return nil, err
	}

	if cfg.Timeout > 0 || cfg.MaxRetries > 0 {
		return WrapWithRetry(provider, cfg), nil
	}

	return provider, nil
}

func (f *Factory) names() []string {
	var out []string
	for k := range f.constructors {
		out = append(out, k)
	}
	return out
}
