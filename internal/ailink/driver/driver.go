package driver

import (
	"context"
	"strings"
	"time"

	"github.com/zycxfyh/nexus-verse/internal/ailink/content"
)

// Driver defines the interface for AI completion providers.
type Driver interface {
	// Complete sends a completion request and returns the response.
	Complete(ctx context.Context, req *Request) (*Response, error)
	// Name returns the driver identifier (e.g., "deepseek").
	Name() string
	// Capabilities returns what this driver supports.
	Capabilities() Capabilities
}

// Capabilities describes driver features.
type Capabilities struct {
	SupportsJSONMode  bool
	SupportsSystem    bool
	SupportsStreaming bool
}

// ResponseFormat specifies the expected response format.
type ResponseFormat struct {
	Type string `json:"type"` // "text", "json_object"
}

// Usage contains token usage statistics.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Request is a provider-agnostic completion request.
type Request struct {
	Model          string
	Messages       []content.Message
	ResponseFormat *ResponseFormat
	Temperature    *float64
	MaxTokens      *int
	Metadata       map[string]string
}

// Response is a provider-agnostic completion response.
type Response struct {
	ID           string
	Model        string
	Content      []content.ContentBlock
	FinishReason string
	Usage        *Usage
}

// Text joins the text blocks of the response.
func (r *Response) Text() string {
	if r == nil {
		return ""
	}
	var b strings.Builder
	for _, block := range r.Content {
		if block.Type == content.ContentTypeText || block.Type == content.ContentTypeJSON {
			b.WriteString(block.Text)
		}
	}
	return b.String()
}

// WithTimeout bounds ctx when timeout is positive. The returned cancel func may be nil.
func WithTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return ctx, nil
	}
	return context.WithTimeout(ctx, timeout)
}
