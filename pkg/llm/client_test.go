package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medidesk-go/internal/config"
)

type capturedRequest struct {
	Model       string    `json:"model"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens"`
	Messages    []Message `json:"messages"`
}

func newTestConfig(baseURL string) config.LLMConfig {
	return config.LLMConfig{
		APIKey:  "test-key",
		BaseURL: baseURL,
		Model:   "mistral-small-latest",
		Generation: config.LLMGenerationConfig{
			Temperature: 0.2,
			MaxTokens:   500,
		},
	}
}

func TestChatSendsRequestAndReadsFirstChoice(t *testing.T) {
	var got capturedRequest
	var auth, path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		path = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"x","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"OPD runs 9 to 5."},"finish_reason":"stop"}]}`))
	}))
	defer srv.Close()

	c := NewClient(newTestConfig(srv.URL))
	out, err := c.Chat(context.Background(), []Message{
		{Role: RoleSystem, Content: "rules"},
		{Role: RoleUser, Content: "timings?"},
	}, nil)

	require.NoError(t, err)
	assert.Equal(t, "OPD runs 9 to 5.", out)
	assert.Equal(t, "Bearer test-key", auth)
	assert.Equal(t, "/chat/completions", path)
	assert.Equal(t, "mistral-small-latest", got.Model)
	assert.InDelta(t, 0.2, got.Temperature, 0.0001)
	assert.Equal(t, 500, got.MaxTokens)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
}

func TestChatErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{name: "non-2xx", status: http.StatusInternalServerError, body: `{"error":{"message":"boom"}}`},
		{name: "no choices", status: http.StatusOK, body: `{"choices":[]}`, wantErr: ErrEmptyResponse},
		{name: "empty content", status: http.StatusOK, body: `{"choices":[{"message":{"role":"assistant","content":"  "}}]}`, wantErr: ErrEmptyResponse},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewClient(newTestConfig(srv.URL)).Chat(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, nil)
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestChatWithoutAPIKey(t *testing.T) {
	cfg := newTestConfig("http://127.0.0.1:1")
	cfg.APIKey = ""
	_, err := NewClient(cfg).Chat(context.Background(), nil, nil)
	assert.ErrorIs(t, err, ErrMissingAPIKey)
}

func TestChatGenerationOverride(t *testing.T) {
	var got capturedRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"ok"}}]}`))
	}))
	defer srv.Close()

	temp := 0.7
	maxTokens := 64
	_, err := NewClient(newTestConfig(srv.URL)).Chat(context.Background(), []Message{{Role: "tool", Content: "x"}}, &GenerationParams{Temperature: &temp, MaxTokens: &maxTokens})
	require.NoError(t, err)
	assert.InDelta(t, 0.7, got.Temperature, 0.0001)
	assert.Equal(t, 64, got.MaxTokens)
	// 未知角色按 user 发送
	assert.Equal(t, "user", got.Messages[0].Role)
}
