package classifier

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaenox/jobmail/pkg/config"
)

var testMessages = []ChatMessage{
	{Role: RoleSystem, Content: "classify"},
	{Role: RoleUser, Content: "FROM: a\nSUBJECT: b\nCONTENT: \"c\""},
}

func TestOllamaClientChat(t *testing.T) {
	var got ollamaChatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"model":"llama3.1","message":{"role":"assistant","content":"{\"category\":\"offer\"}"},"done":true}`))
	}))
	defer srv.Close()

	c := NewOllamaClient(srv.URL+"/", "llama3.1", 0.1, srv.Client())
	reply, err := c.Chat(context.Background(), testMessages)
	require.NoError(t, err)

	assert.Equal(t, `{"category":"offer"}`, reply)
	assert.Equal(t, "llama3.1", got.Model)
	assert.False(t, got.Stream)
	assert.InDelta(t, 0.1, got.Options.Temperature, 1e-9)
	assert.Equal(t, testMessages, got.Messages)
}

func TestOllamaClientErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{name: "server error", status: http.StatusInternalServerError, body: "boom"},
		{name: "model error", status: http.StatusOK, body: `{"error":"model not found"}`},
		{name: "empty content", status: http.StatusOK, body: `{"message":{"role":"assistant","content":""}}`, wantErr: ErrEmptyResponse},
		{name: "bad json", status: http.StatusOK, body: `{`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewOllamaClient(srv.URL, "m", 0, srv.Client()).Chat(context.Background(), testMessages)
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestOpenAIClientChat(t *testing.T) {
	var got struct {
		Model    string        `json:"model"`
		Messages []ChatMessage `json:"messages"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","object":"chat.completion","model":"gpt-4o-mini",
			"choices":[{"index":0,"message":{"role":"assistant","content":"{\"category\":\"alert\"}"},"finish_reason":"stop"}]}`))
	}))
	defer srv.Close()

	c := NewOpenAIClient("sk-test", srv.URL+"/v1/", "gpt-4o-mini", 0.2)
	reply, err := c.Chat(context.Background(), testMessages)
	require.NoError(t, err)

	assert.Equal(t, `{"category":"alert"}`, reply)
	assert.Equal(t, "gpt-4o-mini", got.Model)
	assert.Equal(t, testMessages, got.Messages)
}

func TestOpenAIClientNoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","object":"chat.completion","choices":[]}`))
	}))
	defer srv.Close()

	_, err := NewOpenAIClient("k", srv.URL+"/v1", "m", 0).Chat(context.Background(), testMessages)
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestNewChatClient(t *testing.T) {
	c, err := NewChatClient(config.LLMConfig{Provider: config.ProviderOllama, BaseURL: "http://localhost:11434", Model: "m"})
	require.NoError(t, err)
	assert.IsType(t, &OllamaClient{}, c)

	c, err = NewChatClient(config.LLMConfig{Provider: config.ProviderOpenAI, BaseURL: "http://localhost:11434/v1", Model: "m"})
	require.NoError(t, err)
	assert.IsType(t, &OpenAIClient{}, c)

	_, err = NewChatClient(config.LLMConfig{Provider: "bard"})
	assert.Error(t, err)
}
