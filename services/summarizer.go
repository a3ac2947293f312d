package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	defaultChatModel = "gpt-3.5-turbo"

	openAIChatCompletionsURL = "https://api.openai.com/v1/chat/completions"

	summarizerTimeout = 30 * time.Second

	summarySystemPrompt = "You are a helpful assistant that summarizes financial news articles concisely. Keep summaries to 2-3 sentences."
)

var ErrSummarizerAPIKeyRequired = errors.New("openai api key is required")

// Summarizer produces a short summary of an article body.
type Summarizer interface {
	Summarize(ctx context.Context, content string) (string, error)
}

// OpenAISummarizer talks to the OpenAI chat completions API over plain HTTP.
type OpenAISummarizer struct {
	apiKey string
	model  string
	apiURL string
	client *http.Client
}

type OpenAISummarizerConfig struct {
	// APIKey is required for authentication with OpenAI
	APIKey string

	// Model defaults to gpt-3.5-turbo
	Model string

	// APIURL overrides the chat completions endpoint, used in tests
	APIURL string

	// HTTPClient allows custom HTTP client configuration
	HTTPClient *http.Client
}

func NewOpenAISummarizer(config OpenAISummarizerConfig) (*OpenAISummarizer, error) {
	if config.APIKey == "" {
		return nil, ErrSummarizerAPIKeyRequired
	}

	model := config.Model
	if model == "" {
		model = defaultChatModel
	}

	apiURL := config.APIURL
	if apiURL == "" {
		apiURL = openAIChatCompletionsURL
	}

	client := config.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: summarizerTimeout}
	}

	return &OpenAISummarizer{
		apiKey: config.APIKey,
		model:  model,
		apiURL: apiURL,
		client: client,
	}, nil
}

func (s *OpenAISummarizer) Summarize(ctx context.Context, content string) (string, error) {
	requestBody := chatCompletionRequest{
		Model: s.model,
		Messages: []chatMessage{
			{Role: "system", Content: summarySystemPrompt},
			{Role: "user", Content: "Summarize this article:\n\n" + content},
		},
		MaxTokens:   150,
		Temperature: 0.7,
	}

	jsonData, err := json.Marshal(requestBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", s.apiURL, bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("API request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errorResp chatErrorResponse
		if err := json.Unmarshal(body, &errorResp); err == nil && errorResp.Error.Message != "" {
			return "", fmt.Errorf("OpenAI API error: %s", errorResp.Error.Message)
		}
		return "", fmt.Errorf("OpenAI API returned status %d: %s", resp.StatusCode, string(body))
	}

	var response chatCompletionResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	if len(response.Choices) == 0 {
		return "", errors.New("OpenAI API returned no choices")
	}

	return response.Choices[0].Message.Content, nil
}

// OpenAI API request/response types

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens int `json:"prompt_tokens"`
		TotalTokens  int `json:"total_tokens"`
	} `json:"usage"`
}

type chatErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}
