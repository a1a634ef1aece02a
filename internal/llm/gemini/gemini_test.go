package gemini

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/richardpark-msft/vigil/internal/llm"
)

func TestGenerate(t *testing.T) {
	var gotPath, gotKey string
	var gotBody map[string]any

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("x-goog-api-key")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"candidates": [{
				"content": {"parts": [{"text": "{\"narrative\": "}, {"text": "\"ok\"}"}]},
				"finishReason": "STOP"
			}],
			"usageMetadata": {"promptTokenCount": 120, "candidatesTokenCount": 30},
			"modelVersion": "gemini-1.5-flash-002"
		}`))
	}))
	defer server.Close()

	client := New("test-key", "gemini-1.5-flash-latest", server.URL)

	temp := 0.1
	resp, err := client.Generate(context.Background(), &llm.Request{
		System:      "you verify UI tests",
		Prompt:      "analyze these frames",
		Images:      []llm.Image{{MIMEType: "image/jpeg", Data: []byte{0xff, 0xd8, 0xff}}},
		MaxTokens:   2048,
		Temperature: &temp,
	})
	require.NoError(t, err)

	require.Equal(t, "/models/gemini-1.5-flash-latest:generateContent", gotPath)
	require.Equal(t, "test-key", gotKey)

	contents := gotBody["contents"].([]any)
	require.Len(t, contents, 1)
	parts := contents[0].(map[string]any)["parts"].([]any)
	require.Len(t, parts, 2)
	require.Equal(t, "analyze these frames", parts[0].(map[string]any)["text"])

	inline := parts[1].(map[string]any)["inline_data"].(map[string]any)
	require.Equal(t, "image/jpeg", inline["mime_type"])
	require.Equal(t, base64.StdEncoding.EncodeToString([]byte{0xff, 0xd8, 0xff}), inline["data"])

	genCfg := gotBody["generationConfig"].(map[string]any)
	require.Equal(t, float64(2048), genCfg["maxOutputTokens"])
	require.Equal(t, 0.1, genCfg["temperature"])
	require.NotNil(t, gotBody["systemInstruction"])

	require.Equal(t, `{"narrative": "ok"}`, resp.Content)
	require.Equal(t, "gemini-1.5-flash-002", resp.Model)
	require.Equal(t, 120, resp.InputTokens)
	require.Equal(t, 30, resp.OutputTokens)
	require.Equal(t, "STOP", resp.StopReason)
}

func TestGenerateHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error": {"status": "RESOURCE_EXHAUSTED"}}`))
	}))
	defer server.Close()

	client := New("test-key", "", server.URL)

	_, err := client.Generate(context.Background(), &llm.Request{Prompt: "hi"})
	require.ErrorContains(t, err, "gemini: 429")
	require.ErrorContains(t, err, "RESOURCE_EXHAUSTED")
}

func TestGenerateEmptyCandidates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"candidates": []}`))
	}))
	defer server.Close()

	client := New("test-key", "", server.URL)

	resp, err := client.Generate(context.Background(), &llm.Request{Prompt: "hi"})
	require.NoError(t, err)
	require.Empty(t, resp.Content)
	require.Equal(t, defaultModel, resp.Model)
}

func TestGenerateLive(t *testing.T) {
	if os.Getenv("ENABLE_GEMINI_TESTS") == "" {
		t.Skip("set ENABLE_GEMINI_TESTS to run against the live API")
	}
	apiKey := os.Getenv("GEMINI_API_KEY")
	require.NotEmpty(t, apiKey, "GEMINI_API_KEY required for live tests")

	client := New(apiKey, "", "")

	resp, err := client.Generate(context.Background(), &llm.Request{
		Prompt:    "Reply with the single word: pong",
		MaxTokens: 16,
	})
	require.NoError(t, err)
	require.Contains(t, strings.ToLower(resp.Content), "pong")
}
