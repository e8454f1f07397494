package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"
)

// Completer answers one user message under a system prompt.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

var ErrEmptyCompletion = errors.New("empty completion")

type CompleterConfig struct {
	Provider    string // openai|gemini
	APIKey      string
	Model       string
	BaseURL     string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
}

// NewCompleter returns the backend named by cfg.Provider, or nil without an API key.
func NewCompleter(ctx context.Context, cfg CompleterConfig) (Completer, error) {
	if cfg.APIKey == "" {
		return nil, nil
	}
	switch strings.ToLower(cfg.Provider) {
	case "", "openai":
		return NewOpenAIClient(cfg), nil
	case "gemini":
		return NewGeminiClient(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}

// ---- OpenAI ----

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
	Temperature float64         `json:"temperature"`
}

type openAIResponse struct {
	Choices []struct {
		Message openAIMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// OpenAIClient calls the chat completions endpoint of any OpenAI-compatible API.
type OpenAIClient struct {
	apiKey      string
	baseURL     string
	model       string
	maxTokens   int
	temperature float64
	httpClient  *http.Client
}

func NewOpenAIClient(cfg CompleterConfig) *OpenAIClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &OpenAIClient{
		apiKey:      cfg.APIKey,
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		httpClient:  &http.Client{Timeout: cfg.Timeout},
	}
}

func (c *OpenAIClient) Complete(ctx context.Context, system, user string) (string, error) {
	reqBody := openAIRequest{
		Model: c.model,
		Messages: []openAIMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
	}
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("openai status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out openAIResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("parse response: %w", err)
	}
	if out.Error != nil {
		return "", fmt.Errorf("openai error: %s", out.Error.Message)
	}
	if len(out.Choices) == 0 {
		return "", ErrEmptyCompletion
	}
	return strings.TrimSpace(out.Choices[0].Message.Content), nil
}

// ---- Gemini ----

// GeminiClient uses the Gemini API through the genai SDK.
type GeminiClient struct {
	client      *genai.Client
	model       string
	maxTokens   int32
	temperature float32
}

func NewGeminiClient(ctx context.Context, cfg CompleterConfig) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-2.0-flash"
	}
	return &GeminiClient{
		client:      client,
		model:       cfg.Model,
		maxTokens:   int32(cfg.MaxTokens),
		temperature: float32(cfg.Temperature),
	}, nil
}

func (c *GeminiClient) Complete(ctx context.Context, system, user string) (string, error) {
	conf := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
		Temperature:       genai.Ptr(c.temperature),
	}
	if c.maxTokens > 0 {
		conf.MaxOutputTokens = c.maxTokens
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(user), conf)
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", ErrEmptyCompletion
	}
	return text, nil
}
