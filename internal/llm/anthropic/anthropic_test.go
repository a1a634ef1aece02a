package anthropic

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/richardpark-msft/vigil/internal/llm"
)

func TestGenerate(t *testing.T) {
	var gotPath, gotKey, gotVersion string
	var gotBody map[string]any

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("x-api-key")
		gotVersion = r.Header.Get("anthropic-version")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"content": [{"type": "text", "text": "{\"status\": \"observed\"}"}],
			"model": "claude-sonnet-4-20250514",
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 200, "output_tokens": 45}
		}`))
	}))
	defer server.Close()

	client := New("test-key", "claude-sonnet-4-20250514", server.URL)

	resp, err := client.Generate(context.Background(), &llm.Request{
		System: "you verify UI tests",
		Prompt: "verify step 3",
		Images: []llm.Image{{MIMEType: "image/png", Data: []byte{0x89, 0x50}}},
	})
	require.NoError(t, err)

	require.Equal(t, "/messages", gotPath)
	require.Equal(t, "test-key", gotKey)
	require.Equal(t, "2023-06-01", gotVersion)

	require.Equal(t, "claude-sonnet-4-20250514", gotBody["model"])
	require.Equal(t, float64(defaultMaxTokens), gotBody["max_tokens"])
	require.Equal(t, "you verify UI tests", gotBody["system"])

	messages := gotBody["messages"].([]any)
	require.Len(t, messages, 1)
	content := messages[0].(map[string]any)["content"].([]any)
	require.Len(t, content, 2)

	// Image blocks come before the text block.
	imgBlock := content[0].(map[string]any)
	require.Equal(t, "image", imgBlock["type"])
	source := imgBlock["source"].(map[string]any)
	require.Equal(t, "base64", source["type"])
	require.Equal(t, "image/png", source["media_type"])
	require.Equal(t, base64.StdEncoding.EncodeToString([]byte{0x89, 0x50}), source["data"])

	textBlock := content[1].(map[string]any)
	require.Equal(t, "text", textBlock["type"])
	require.Equal(t, "verify step 3", textBlock["text"])

	require.Equal(t, `{"status": "observed"}`, resp.Content)
	require.Equal(t, "claude-sonnet-4-20250514", resp.Model)
	require.Equal(t, 200, resp.InputTokens)
	require.Equal(t, 45, resp.OutputTokens)
	require.Equal(t, "end_turn", resp.StopReason)
}

func TestGenerateConcatenatesTextBlocks(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{
			"content": [
				{"type": "text", "text": "part one "},
				{"type": "tool_use", "text": "ignored"},
				{"type": "text", "text": "part two"}
			]
		}`))
	}))
	defer server.Close()

	client := New("test-key", "claude-sonnet-4-20250514", server.URL)

	resp, err := client.Generate(context.Background(), &llm.Request{Prompt: "hi"})
	require.NoError(t, err)
	require.Equal(t, "part one part two", resp.Content)
}

func TestGenerateHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(529)
		_, _ = w.Write([]byte(`{"error": {"type": "overloaded_error"}}`))
	}))
	defer server.Close()

	client := New("test-key", "claude-sonnet-4-20250514", server.URL)

	_, err := client.Generate(context.Background(), &llm.Request{Prompt: "hi"})
	require.ErrorContains(t, err, "anthropic: 529")
	require.ErrorContains(t, err, "overloaded_error")
}
