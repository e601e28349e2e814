package extraction

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFields(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"object", `{"client":"Acme","amount":120}`, `{"client":"Acme","amount":120}`},
		{"fenced object", "```json\n{\"client\":\"Acme\"}\n```", `{"client":"Acme"}`},
		{"plain text", "Invoice from Acme", `{"raw_text":"Invoice from Acme"}`},
		{"array is not an object", `[1,2]`, `{"raw_text":"[1,2]"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.JSONEq(t, tt.want, string(ParseFields(tt.in)))
		})
	}
}

func TestNewOpenAI_NoKey(t *testing.T) {
	assert.Nil(t, NewOpenAI(Config{}))
}

func TestOpenAIExtractor_Extract(t *testing.T) {
	var got openai.ChatCompletionRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/chat/completions", r.URL.Path)
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(openai.ChatCompletionResponse{
			Choices: []openai.ChatCompletionChoice{
				{Message: openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: `{"amount":42}`}},
			},
		})
	}))
	defer srv.Close()

	e := NewOpenAI(Config{APIKey: "test-key", Model: "test-model", BaseURL: srv.URL + "/v1"})
	require.NotNil(t, e)

	out, err := e.Extract(context.Background(), "Total due: 42.00")

	require.NoError(t, err)
	assert.Equal(t, `{"amount":42}`, out)
	assert.Equal(t, "test-model", got.Model)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, openai.ChatMessageRoleSystem, got.Messages[0].Role)
	assert.Equal(t, "Total due: 42.00", got.Messages[1].Content)
}

func TestOpenAIExtractor_NoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	e := NewOpenAI(Config{APIKey: "k", BaseURL: srv.URL + "/v1"})
	_, err := e.Extract(context.Background(), "text")
	assert.Error(t, err)
}

func TestOpenAIExtractor_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"bad key","type":"invalid_request_error"}}`))
	}))
	defer srv.Close()

	e := NewOpenAI(Config{APIKey: "k", BaseURL: srv.URL + "/v1"})
	_, err := e.Extract(context.Background(), "text")
	assert.Error(t, err)
}
