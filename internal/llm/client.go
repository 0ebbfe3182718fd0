package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	askerrors "github.com/askdb/askdb/internal/errors"
)

// DefaultTimeout bounds a single model call
const DefaultTimeout = 60 * time.Second

// Client implements the Service interface with multiple provider support
type Client struct {
	config     Config
	httpClient *http.Client
}

// NewClient creates a language model client with the given configuration
func NewClient(config Config, timeout time.Duration) (*Client, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	c := &Client{
		httpClient: &http.Client{Timeout: timeout},
	}

	if err := c.Configure(config); err != nil {
		return nil, err
	}

	return c, nil
}

// Configure updates the client configuration
func (c *Client) Configure(config Config) error {
	if config.Provider == "" {
		return askerrors.New(askerrors.ErrTypeConfig, "provider is required")
	}

	if config.Model == "" {
		return askerrors.New(askerrors.ErrTypeConfig, "model is required")
	}

	switch config.Provider {
	case ProviderOpenAI:
		if config.APIKey == "" {
			return askerrors.New(askerrors.ErrTypeConfig,
				"API key is required for OpenAI provider").
				WithSuggestion("Set ASKDB_LLM_API_KEY or llm.api_key in the config file")
		}

		if config.BaseURL == "" {
			config.BaseURL = "https://api.openai.com/v1"
		}
	case ProviderAnthropic:
		if config.APIKey == "" {
			return askerrors.New(askerrors.ErrTypeConfig,
				"API key is required for Anthropic provider").
				WithSuggestion("Set ASKDB_LLM_API_KEY or llm.api_key in the config file")
		}

		if config.BaseURL == "" {
			config.BaseURL = "https://api.anthropic.com/v1"
		}
	case ProviderOllama:
		if config.BaseURL == "" {
			config.BaseURL = "http://localhost:11434"
		}
	default:
		return askerrors.Newf(askerrors.ErrTypeConfig, "unsupported provider: %s", config.Provider)
	}

	c.config = config

	return nil
}

// ExtractIntent distills the question into a structured intent
func (c *Client) ExtractIntent(ctx context.Context, question string) (*Intent, error) {
	prompt := buildIntentPrompt(question)

	raw, err := c.complete(ctx, prompt)
	if err != nil {
		return nil, askerrors.Wrap(err, askerrors.ErrTypeIntentExtraction,
			"intent extraction call failed")
	}

	var intent Intent
	if err := json.Unmarshal([]byte(stripCodeFence(raw)), &intent); err != nil {
		return nil, askerrors.Wrap(err, askerrors.ErrTypeIntentExtraction,
			"model returned unparseable intent").
			WithSuggestion("Try rephrasing the question")
	}

	if intent.Goal == "" && len(intent.Entities) == 0 {
		return nil, askerrors.New(askerrors.ErrTypeIntentExtraction,
			"model could not identify a goal or any entities").
			WithSuggestion("Try rephrasing the question with explicit table or column names")
	}

	return &intent, nil
}

// GenerateSQL produces a single SQL statement for the question
func (c *Client) GenerateSQL(ctx context.Context, question string, intent *Intent, schemaContext string) (string, error) {
	prompt := buildGenerationPrompt(question, intent, schemaContext)

	raw, err := c.complete(ctx, prompt)
	if err != nil {
		return "", askerrors.Wrap(err, askerrors.ErrTypeGeneration, "SQL generation call failed")
	}

	var resp struct {
		SQL string `json:"sql"`
	}

	cleaned := stripCodeFence(raw)

	if err := json.Unmarshal([]byte(cleaned), &resp); err == nil && resp.SQL != "" {
		return strings.TrimSpace(resp.SQL), nil
	}

	// Some models answer with bare SQL despite the JSON instruction
	if looksLikeSQL(cleaned) {
		return strings.TrimSpace(cleaned), nil
	}

	return "", askerrors.New(askerrors.ErrTypeGeneration, "model returned no usable SQL")
}

// SummarizeResults renders query results as a short prose answer
func (c *Client) SummarizeResults(ctx context.Context, question, sql string, columns []string, rows [][]string) (string, error) {
	prompt := buildSummaryPrompt(question, sql, columns, rows)

	raw, err := c.complete(ctx, prompt)
	if err != nil {
		return "", askerrors.Wrap(err, askerrors.ErrTypeGeneration, "result summarization call failed")
	}

	return strings.TrimSpace(stripCodeFence(raw)), nil
}

// complete sends a prompt to the configured provider and returns the raw
// completion text
func (c *Client) complete(ctx context.Context, prompt string) (string, error) {
	if c.config.Provider == "" {
		return "", askerrors.New(askerrors.ErrTypeConfig, "language model client not configured")
	}

	switch c.config.Provider {
	case ProviderOpenAI:
		return c.completeOpenAI(ctx, prompt)
	case ProviderAnthropic:
		return c.completeAnthropic(ctx, prompt)
	case ProviderOllama:
		return c.completeOllama(ctx, prompt)
	default:
		return "", askerrors.Newf(askerrors.ErrTypeConfig, "unsupported provider: %s", c.config.Provider)
	}
}

// OpenAI API structures
type openAIRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	Temperature float64         `json:"temperature,omitempty"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIResponse struct {
	Choices []openAIChoice `json:"choices"`
	Error   *openAIError   `json:"error,omitempty"`
}

type openAIChoice struct {
	Message openAIMessage `json:"message"`
}

type openAIError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

func (c *Client) completeOpenAI(ctx context.Context, prompt string) (string, error) {
	reqBody := openAIRequest{
		Model: c.config.Model,
		Messages: []openAIMessage{
			{Role: "user", Content: prompt},
		},
		Temperature: 0.1,
		MaxTokens:   1500,
	}

	respBody, err := c.post(ctx, "/chat/completions", reqBody, map[string]string{
		"Authorization": "Bearer " + c.config.APIKey,
	})
	if err != nil {
		return "", err
	}

	var response openAIResponse
	if err := json.Unmarshal(respBody, &response); err != nil {
		return "", fmt.Errorf("failed to parse OpenAI response: %w", err)
	}

	if response.Error != nil {
		return "", fmt.Errorf("OpenAI API error: %s", response.Error.Message)
	}

	if len(response.Choices) == 0 {
		return "", fmt.Errorf("no response from OpenAI")
	}

	return response.Choices[0].Message.Content, nil
}

// Anthropic API structures
type anthropicRequest struct {
	Model     string             `json:"model"`
	Messages  []anthropicMessage `json:"messages"`
	MaxTokens int                `json:"max_tokens"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Content []anthropicContent `json:"content"`
	Error   *anthropicError    `json:"error,omitempty"`
}

type anthropicContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type anthropicError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

func (c *Client) completeAnthropic(ctx context.Context, prompt string) (string, error) {
	reqBody := anthropicRequest{
		Model:     c.config.Model,
		MaxTokens: 1500,
		Messages: []anthropicMessage{
			{Role: "user", Content: prompt},
		},
	}

	respBody, err := c.post(ctx, "/messages", reqBody, map[string]string{
		"x-api-key":         c.config.APIKey,
		"anthropic-version": "2023-06-01",
	})
	if err != nil {
		return "", err
	}

	var response anthropicResponse
	if err := json.Unmarshal(respBody, &response); err != nil {
		return "", fmt.Errorf("failed to parse Anthropic response: %w", err)
	}

	if response.Error != nil {
		return "", fmt.Errorf("Anthropic API error: %s", response.Error.Message)
	}

	if len(response.Content) == 0 {
		return "", fmt.Errorf("no response from Anthropic")
	}

	return response.Content[0].Text, nil
}

// Ollama API structures
type ollamaRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type ollamaResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
	Error    string `json:"error,omitempty"`
}

func (c *Client) completeOllama(ctx context.Context, prompt string) (string, error) {
	reqBody := ollamaRequest{
		Model:  c.config.Model,
		Prompt: prompt,
		Stream: false,
	}

	respBody, err := c.post(ctx, "/api/generate", reqBody, nil)
	if err != nil {
		return "", err
	}

	var response ollamaResponse
	if err := json.Unmarshal(respBody, &response); err != nil {
		return "", fmt.Errorf("failed to parse Ollama response: %w", err)
	}

	if response.Error != "" {
		return "", fmt.Errorf("Ollama API error: %s", response.Error)
	}

	return response.Response, nil
}

// post makes an HTTP request against the provider base URL
func (c *Client) post(ctx context.Context, endpoint string, reqBody interface{}, headers map[string]string) ([]byte, error) {
	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.config.BaseURL+endpoint, bytes.NewBuffer(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(body))
	}

	return body, nil
}

// stripCodeFence removes a surrounding markdown code fence if present
func stripCodeFence(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}

	trimmed = strings.TrimPrefix(trimmed, "```")

	// Drop a language tag such as ```json or ```sql
	if idx := strings.IndexByte(trimmed, '\n'); idx >= 0 {
		first := strings.TrimSpace(trimmed[:idx])
		if first != "" && !strings.ContainsAny(first, " {}(") {
			trimmed = trimmed[idx+1:]
		}
	}

	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")

	return strings.TrimSpace(trimmed)
}

// looksLikeSQL reports whether text plausibly starts a read statement
func looksLikeSQL(text string) bool {
	upper := strings.ToUpper(strings.TrimSpace(text))

	return strings.HasPrefix(upper, "SELECT") || strings.HasPrefix(upper, "WITH")
}
