// Package extraction turns document text into structured invoice fields with
// a chat-completion model.
package extraction

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
)

const systemPrompt = "You are an AI assistant that extracts structured data from documents. " +
	"Parse the provided text and return key information in JSON format, such as client name, " +
	"amount, date, description, etc."

// Extractor returns the model's reading of a document's text.
type Extractor interface {
	Extract(ctx context.Context, text string) (string, error)
}

// Config configures the OpenAI extractor.
type Config struct {
	APIKey      string
	Model       string
	BaseURL     string // optional, for compatible endpoints
	MaxTokens   int
	Temperature float32
}

// OpenAIExtractor implements Extractor with the chat completions API.
type OpenAIExtractor struct {
	client *openai.Client
	config Config
}

// NewOpenAI creates an extractor. It returns nil when no API key is configured.
func NewOpenAI(cfg Config) *OpenAIExtractor {
	if cfg.APIKey == "" {
		return nil
	}
	if cfg.Model == "" {
		cfg.Model = openai.GPT4oMini
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 1000
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = 0.3
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &OpenAIExtractor{client: openai.NewClientWithConfig(clientCfg), config: cfg}
}

// Extract sends text to the model and returns the first choice's content.
func (e *OpenAIExtractor) Extract(ctx context.Context, text string) (string, error) {
	resp, err := e.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       e.config.Model,
		Temperature: e.config.Temperature,
		MaxTokens:   e.config.MaxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: text},
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// ParseFields returns text as a JSON object when it is one, after stripping
// a Markdown code fence. Anything else is wrapped as {"raw_text": text}.
func ParseFields(text string) json.RawMessage {
	candidate := stripFence(text)
	var obj map[string]any
	if err := json.Unmarshal([]byte(candidate), &obj); err == nil {
		return json.RawMessage(candidate)
	}
	raw, _ := json.Marshal(map[string]string{"raw_text": text})
	return raw
}

func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
