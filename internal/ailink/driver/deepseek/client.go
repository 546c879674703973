package deepseek

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/zycxfyh/nexus-verse/internal/ailink/content"
	"github.com/zycxfyh/nexus-verse/internal/ailink/driver"
)

// DefaultBaseURL is the DeepSeek API root used when a configuration has no base URL.
const DefaultBaseURL = "https://api.deepseek.com"

// Client drives DeepSeek's OpenAI-compatible API through the go-openai SDK.
type Client struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// NewClient returns a client with defaults applied.
func NewClient(baseURL, apiKey string) *Client {
	url := strings.TrimSpace(baseURL)
	if url == "" {
		url = DefaultBaseURL
	}
	return &Client{
		BaseURL: url,
		APIKey:  strings.TrimSpace(apiKey),
	}
}

// Name returns the driver identifier.
func (c *Client) Name() string {
	return "deepseek"
}

// Capabilities describes supported features.
func (c *Client) Capabilities() driver.Capabilities {
	return driver.Capabilities{
		SupportsJSONMode: true,
		SupportsSystem:   true,
	}
}

func (c *Client) sdk() *goopenai.Client {
	config := goopenai.DefaultConfig(c.APIKey)
	config.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.HTTPClient != nil {
		config.HTTPClient = c.HTTPClient
	}
	return goopenai.NewClientWithConfig(config)
}

// Complete sends a chat completion request.
func (c *Client) Complete(ctx context.Context, req *driver.Request) (*driver.Response, error) {
	if c == nil {
		return nil, fmt.Errorf("deepseek client not configured")
	}
	if c.APIKey == "" {
		return nil, fmt.Errorf("api key is required")
	}

	payload, err := buildRequest(req)
	if err != nil {
		return nil, err
	}

	ctx, cancel := driver.WithTimeout(ctx, c.Timeout)
	if cancel != nil {
		defer cancel()
	}

	start := time.Now()
	resp, err := c.sdk().CreateChatCompletion(ctx, payload)
	c.trace(payload, resp, err, time.Since(start))
	if err != nil {
		return nil, toProviderError(err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("empty response choices")
	}

	choice := resp.Choices[0]
	return &driver.Response{
		ID:           resp.ID,
		Model:        resp.Model,
		Content:      []content.ContentBlock{{Type: content.ContentTypeText, Text: choice.Message.Content}},
		FinishReason: string(choice.FinishReason),
		Usage: &driver.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}, nil
}

func buildRequest(req *driver.Request) (goopenai.ChatCompletionRequest, error) {
	if req == nil {
		return goopenai.ChatCompletionRequest{}, fmt.Errorf("request is required")
	}
	if strings.TrimSpace(req.Model) == "" {
		return goopenai.ChatCompletionRequest{}, fmt.Errorf("model is required")
	}
	if len(req.Messages) == 0 {
		return goopenai.ChatCompletionRequest{}, fmt.Errorf("messages are required")
	}

	messages := make([]goopenai.ChatCompletionMessage, 0, len(req.Messages))
	for _, msg := range req.Messages {
		messages = append(messages, goopenai.ChatCompletionMessage{Role: msg.Role, Content: msg.Text()})
	}

	payload := goopenai.ChatCompletionRequest{
		Model:    req.Model,
		Messages: messages,
	}
	if req.MaxTokens != nil {
		payload.MaxTokens = *req.MaxTokens
	}
	if req.Temperature != nil {
		payload.Temperature = float32(*req.Temperature)
		if payload.Temperature == 0 {
			// go-openai omits a zero temperature; the smallest non-zero value keeps it greedy.
			payload.Temperature = math.SmallestNonzeroFloat32
		}
	}
	if req.ResponseFormat != nil && req.ResponseFormat.Type == "json_object" {
		payload.ResponseFormat = &goopenai.ChatCompletionResponseFormat{Type: goopenai.ChatCompletionResponseFormatTypeJSONObject}
	}
	return payload, nil
}

func toProviderError(err error) error {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) {
		return &driver.ProviderError{Provider: "deepseek", StatusCode: apiErr.HTTPStatusCode, Message: apiErr.Message}
	}
	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) {
		return &driver.ProviderError{Provider: "deepseek", StatusCode: reqErr.HTTPStatusCode, Message: reqErr.Error()}
	}
	return fmt.Errorf("request failed: %w", err)
}

func (c *Client) trace(payload goopenai.ChatCompletionRequest, resp goopenai.ChatCompletionResponse, err error, elapsed time.Duration) {
	if !driver.IsTracingEnabled() {
		return
	}
	entry := driver.TraceEntry{
		Driver:     c.Name(),
		Endpoint:   strings.TrimRight(c.BaseURL, "/") + "/chat/completions",
		Method:     http.MethodPost,
		Model:      payload.Model,
		DurationMs: elapsed.Milliseconds(),
	}
	if body, mErr := json.Marshal(payload); mErr == nil {
		entry.RequestBody = body
	}
	if err != nil {
		entry.Error = err.Error()
		var apiErr *goopenai.APIError
		if errors.As(err, &apiErr) {
			entry.StatusCode = apiErr.HTTPStatusCode
		}
	} else {
		entry.StatusCode = http.StatusOK
		if body, mErr := json.Marshal(resp); mErr == nil {
			entry.Response = body
		}
	}
	driver.Trace(entry)
}
