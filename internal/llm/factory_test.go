package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	name      string
	responses []*Response
	errs      []error
	calls     int
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Generate(ctx context.Context, req *Request) (*Response, error) {
	f.calls++
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		return nil, err
	}
	if len(f.responses) > 0 {
		resp := f.responses[0]
		f.responses = f.responses[1:]
		return resp, nil
	}
	return &Response{Content: "ok"}, nil
}

func TestFactoryCreate(t *testing.T) {
	factory := NewFactory()
	factory.Register("fake", func(cfg Config) (Provider, error) {
		return &fakeProvider{name: "fake"}, nil
	})

	t.Run("NoneDisablesProvider", func(t *testing.T) {
		provider, err := factory.Create(Config{Provider: "none"})
		require.NoError(t, err)
		require.Nil(t, provider)

		provider, err = factory.Create(Config{Provider: ""})
		require.NoError(t, err)
		require.Nil(t, provider)
	})

	t.Run("UnknownProvider", func(t *testing.T) {
		_, err := factory.Create(Config{Provider: "nope"})
		require.ErrorContains(t, err, `unknown LLM provider "nope"`)
	})

	t.Run("BareWhenNoRetryConfigured", func(t *testing.T) {
		provider, err := factory.Create(Config{Provider: "fake"})
		require.NoError(t, err)
		_, isRetry := provider.(*RetryProvider)
		require.False(t, isRetry)
	})

	t.Run("WrappedWithRetry", func(t *testing.T) {
		provider, err := factory.Create(Config{Provider: "fake", MaxRetries: 2, Timeout: time.Minute})
		require.NoError(t, err)
		_, isRetry := provider.(*RetryProvider)
		require.True(t, isRetry)
		require.Equal(t, "fake", provider.Name())
	})

	t.Run("ConstructorError", func(t *testing.T) {
		factory.Register("broken", func(cfg Config) (Provider, error) {
			return nil, errors.New("missing API key")
		})
		_, err := factory.Create(Config{Provider: "broken"})
		require.ErrorContains(t, err, "missing API key")
	})
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.Equal(t, "gemini", cfg.Provider)
	require.Equal(t, "gemini-1.5-flash-latest", cfg.Model)
	require.Equal(t, 2*time.Minute, cfg.Timeout)
	require.Equal(t, 3, cfg.MaxRetries)
	require.Equal(t, time.Second, cfg.RetryDelay)
}
