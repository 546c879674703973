package xai

import (
	"strings"

	"github.com/zycxfyh/nexus-verse/internal/ailink/driver/openai"
)

// DefaultBaseURL is the xAI API root used when a configuration has no base URL.
const DefaultBaseURL = "https://api.x.ai/v1"

// NewClient returns a chat-completions client pointed at xAI. xAI speaks the OpenAI
// wire shape, so only the defaults and the reported driver name differ.
func NewClient(baseURL, apiKey string) *openai.Client {
	url := strings.TrimSpace(baseURL)
	if url == "" {
		url = DefaultBaseURL
	}
	client := openai.NewClient(url, apiKey)
	client.Provider = "xai"
	return client
}
