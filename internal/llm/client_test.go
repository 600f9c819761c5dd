package llm

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/questd/internal/config"
)

func testConfig(baseURL string) config.LLMConfig {
	return config.LLMConfig{
		Model:     "claude-sonnet-4-5-20250929",
		APIKey:    config.Secret("test-key"),
		BaseURL:   baseURL,
		RateLimit: 1000,
		Burst:     1000,
	}
}

func TestNewAnthropicClientRequiresAPIKey(t *testing.T) {
	_, err := NewAnthropicClient(config.LLMConfig{})
	assert.ErrorIs(t, err, ErrMissingAPIKey)
}

func TestCompleteSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("X-API-Key"))
		assert.Equal(t, "2023-06-01", r.Header.Get("Anthropic-Version"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"content":[{"type":"text","text":"the metric is RMSE"}]}`))
	}))
	defer server.Close()

	client, err := NewAnthropicClient(testConfig(server.URL))
	require.NoError(t, err)

	got, err := client.Complete(context.Background(), "what is the evaluation metric?")
	require.NoError(t, err)
	assert.Equal(t, "the metric is RMSE", got)
}

func TestCompleteRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(`{"content":[{"type":"text","text":"ok"}]}`))
	}))
	defer server.Close()

	client, err := NewAnthropicClient(testConfig(server.URL))
	require.NoError(t, err)

	got, err := client.Complete(context.Background(), "prompt")
	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, int32(2), calls.Load())
}

func TestCompleteDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"type":"invalid_request_error","message":"bad prompt"}}`))
	}))
	defer server.Close()

	client, err := NewAnthropicClient(testConfig(server.URL))
	require.NoError(t, err)

	_, err = client.Complete(context.Background(), "prompt")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad prompt")
	assert.Equal(t, int32(1), calls.Load())
}

func TestCompleteEmptyContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"content":[]}`))
	}))
	defer server.Close()

	client, err := NewAnthropicClient(testConfig(server.URL))
	require.NoError(t, err)

	_, err = client.Complete(context.Background(), "prompt")
	assert.Error(t, err)
}
