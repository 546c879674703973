package anthropic

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/zycxfyh/nexus-verse/internal/ailink/content"
	"github.com/zycxfyh/nexus-verse/internal/ailink/driver"
)

const defaultMaxTokens = 4096

// Client drives the Anthropic Messages API through the official SDK.
// An empty BaseURL keeps the SDK default.
type Client struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// NewClient returns a client with defaults applied.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		BaseURL: strings.TrimSpace(baseURL),
		APIKey:  strings.TrimSpace(apiKey),
	}
}

// Name returns the driver identifier.
func (c *Client) Name() string {
	return "anthropic"
}

// Capabilities describes supported features.
func (c *Client) Capabilities() driver.Capabilities {
	return driver.Capabilities{SupportsSystem: true}
}

func (c *Client) sdk() sdk.Client {
	opts := []option.RequestOption{option.WithAPIKey(c.APIKey)}
	if c.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(c.BaseURL))
	}
	if c.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(c.HTTPClient))
	}
	return sdk.NewClient(opts...)
}

// Complete sends a Messages API request.
func (c *Client) Complete(ctx context.Context, req *driver.Request) (*driver.Response, error) {
	if c == nil {
		return nil, fmt.Errorf("anthropic client not configured")
	}
	if c.APIKey == "" {
		return nil, fmt.Errorf("api key is required")
	}

	params, err := buildParams(req)
	if err != nil {
		return nil, err
	}

	ctx, cancel := driver.WithTimeout(ctx, c.Timeout)
	if cancel != nil {
		defer cancel()
	}

	client := c.sdk()
	start := time.Now()
	message, err := client.Messages.New(ctx, params)
	entry := driver.TraceEntry{
		Driver:     c.Name(),
		Endpoint:   "messages",
		Method:     http.MethodPost,
		Model:      string(params.Model),
		DurationMs: time.Since(start).Milliseconds(),
	}
	if err != nil {
		entry.Error = err.Error()
		driver.Trace(entry)
		return nil, toProviderError(err)
	}
	entry.StatusCode = http.StatusOK
	entry.Response = []byte(message.RawJSON())
	driver.Trace(entry)

	return toDriverResponse(message), nil
}

func buildParams(req *driver.Request) (sdk.MessageNewParams, error) {
	if req == nil {
		return sdk.MessageNewParams{}, fmt.Errorf("request is required")
	}
	if strings.TrimSpace(req.Model) == "" {
		return sdk.MessageNewParams{}, fmt.Errorf("model is required")
	}

	system, conversation := content.SplitSystem(req.Messages)
	if len(conversation) == 0 {
		return sdk.MessageNewParams{}, fmt.Errorf("messages are required")
	}

	messages := make([]sdk.MessageParam, 0, len(conversation))
	for _, msg := range conversation {
		block := sdk.NewTextBlock(msg.Text())
		switch msg.Role {
		case content.RoleAssistant:
			messages = append(messages, sdk.NewAssistantMessage(block))
		case content.RoleUser:
			messages = append(messages, sdk.NewUserMessage(block))
		default:
			return sdk.MessageNewParams{}, fmt.Errorf("unsupported message role: %s", msg.Role)
		}
	}

	maxTokens := int64(defaultMaxTokens)
	if req.MaxTokens != nil && *req.MaxTokens > 0 {
		maxTokens = int64(*req.MaxTokens)
	}

	params := sdk.MessageNewParams{
		Model:     sdk.Model(req.Model),
		MaxTokens: maxTokens,
		Messages:  messages,
	}
	if system != "" {
		params.System = []sdk.TextBlockParam{{Text: system}}
	}
	if req.Temperature != nil {
		params.Temperature = sdk.Float(*req.Temperature)
	}
	return params, nil
}

func toDriverResponse(message *sdk.Message) *driver.Response {
	blocks := make([]content.ContentBlock, 0, len(message.Content))
	for _, block := range message.Content {
		if block.Type == "text" {
			blocks = append(blocks, content.ContentBlock{Type: content.ContentTypeText, Text: block.Text})
		}
	}
	input := int(message.Usage.InputTokens)
	output := int(message.Usage.OutputTokens)
	return &driver.Response{
		ID:           message.ID,
		Model:        string(message.Model),
		Content:      blocks,
		FinishReason: string(message.StopReason),
		Usage: &driver.Usage{
			PromptTokens:     input,
			CompletionTokens: output,
			TotalTokens:      input + output,
		},
	}
}

func toProviderError(err error) error {
	var apiErr *sdk.Error
	if errors.As(err, &apiErr) {
		return &driver.ProviderError{
			Provider:   "anthropic",
			StatusCode: apiErr.StatusCode,
			Message:    http.StatusText(apiErr.StatusCode),
		}
	}
	return fmt.Errorf("request failed: %w", err)
}
