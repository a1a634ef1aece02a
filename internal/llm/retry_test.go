package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func fastRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxRetries: 3,
		RetryDelay: time.Millisecond,
		MaxDelay:   10 * time.Millisecond,
		Timeout:    time.Second,
	}
}

func TestRetrySucceedsFirstTry(t *testing.T) {
	inner := &fakeProvider{name: "fake", responses: []*Response{{Content: "success"}}}
	retry := NewRetryProvider(inner, fastRetryConfig())

	resp, err := retry.Generate(context.Background(), &Request{Prompt: "hi"})
	require.NoError(t, err)
	require.Equal(t, "success", resp.Content)
	require.Equal(t, 1, inner.calls)
}

func TestRetryRetriesOnRetryableError(t *testing.T) {
	inner := &fakeProvider{
		name: "fake",
		errs: []error{
			errors.New("gemini: 500 Internal Server Error: boom"),
			errors.New("gemini: 503 Service Unavailable: busy"),
		},
		responses: []*Response{{Content: "success after retries"}},
	}
	retry := NewRetryProvider(inner, fastRetryConfig())

	resp, err := retry.Generate(context.Background(), &Request{Prompt: "hi"})
	require.NoError(t, err)
	require.Equal(t, "success after retries", resp.Content)
	require.Equal(t, 3, inner.calls)
}

func TestRetryStopsOnNonRetryableError(t *testing.T) {
	inner := &fakeProvider{
		name: "fake",
		errs: []error{errors.New("gemini: 401 Unauthorized: bad key")},
	}
	retry := NewRetryProvider(inner, fastRetryConfig())

	_, err := retry.Generate(context.Background(), &Request{Prompt: "hi"})
	require.ErrorContains(t, err, "non-retryable")
	require.Equal(t, 1, inner.calls)
}

func TestRetryRespectsMaxRetries(t *testing.T) {
	inner := &fakeProvider{
		name: "fake",
		errs: []error{
			errors.New("429 Too Many Requests"),
			errors.New("429 Too Many Requests"),
			errors.New("429 Too Many Requests"),
			errors.New("429 Too Many Requests"),
		},
	}
	retry := NewRetryProvider(inner, fastRetryConfig())

	_, err := retry.Generate(context.Background(), &Request{Prompt: "hi"})
	require.ErrorContains(t, err, "max retries (3) exceeded")
	require.Equal(t, 4, inner.calls)
}

func TestRetryImagesUnsupportedIsPermanent(t *testing.T) {
	inner := &fakeProvider{name: "fake", errs: []error{ErrImagesUnsupported}}
	retry := NewRetryProvider(inner, fastRetryConfig())

	_, err := retry.Generate(context.Background(), &Request{Prompt: "hi"})
	require.ErrorIs(t, err, ErrImagesUnsupported)
	require.Equal(t, 1, inner.calls)
}

func TestRetryCancelledContext(t *testing.T) {
	inner := &fakeProvider{
		name: "fake",
		errs: []error{errors.New("500"), errors.New("500")},
	}
	retry := NewRetryProvider(inner, &RetryConfig{
		MaxRetries: 5,
		RetryDelay: time.Hour,
		MaxDelay:   time.Hour,
		Timeout:    time.Second,
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := retry.Generate(ctx, &Request{Prompt: "hi"})
	require.ErrorIs(t, err, context.Canceled)
}

func TestCalculateBackoff(t *testing.T) {
	retry := NewRetryProvider(&fakeProvider{name: "fake"}, &RetryConfig{
		MaxRetries: 5,
		RetryDelay: time.Second,
		MaxDelay:   5 * time.Second,
		Timeout:    time.Minute,
	})

	require.Equal(t, time.Second, retry.calculateBackoff(1))
	require.Equal(t, 2*time.Second, retry.calculateBackoff(2))
	require.Equal(t, 4*time.Second, retry.calculateBackoff(3))
	require.Equal(t, 5*time.Second, retry.calculateBackoff(4))
	require.Equal(t, 5*time.Second, retry.calculateBackoff(5))
}

func TestIsRetryable(t *testing.T) {
	retry := NewRetryProvider(&fakeProvider{name: "fake"}, nil)

	require.False(t, retry.isRetryable(nil))
	require.False(t, retry.isRetryable(context.Canceled))
	require.True(t, retry.isRetryable(context.DeadlineExceeded))
	require.True(t, retry.isRetryable(errors.New("gemini: 429 Too Many Requests: RESOURCE_EXHAUSTED")))
	require.True(t, retry.isRetryable(errors.New("anthropic: 529 : overloaded_error")))
	require.True(t, retry.isRetryable(errors.New("502 Bad Gateway")))
	require.False(t, retry.isRetryable(errors.New("404 Not Found")))
	require.False(t, retry.isRetryable(errors.New("400 Bad Request")))
	require.True(t, retry.isRetryable(errors.New("connection reset by peer")))
}
