package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/zycxfyh/nexus-verse/internal/ailink"
	"github.com/zycxfyh/nexus-verse/internal/ailink/content"
	"github.com/zycxfyh/nexus-verse/internal/ailink/driver"
	"github.com/zycxfyh/nexus-verse/internal/observability"
)

const maxCompletionBody = 1 << 20

// ProviderHandlers serves provider resolution and one-shot completions.
type ProviderHandlers struct {
	Resolver ailink.Resolver
	// CompletionTimeout bounds each completion call; zero leaves the request context alone.
	CompletionTimeout time.Duration
}

// CompletionMessage is a plain-text chat message in a completion request.
type CompletionMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionRequest is the body of POST .../complete.
type CompletionRequest struct {
	System         string              `json:"system,omitempty"`
	Prompt         string              `json:"prompt,omitempty"`
	Messages       []CompletionMessage `json:"messages,omitempty"`
	Temperature    *float64            `json:"temperature,omitempty"`
	MaxTokens      *int                `json:"max_tokens,omitempty"`
	ResponseFormat string              `json:"response_format,omitempty"`
}

// CompletionResponse is the result of a completion.
type CompletionResponse struct {
	Provider     *ailink.Provider `json:"provider"`
	ID           string           `json:"id,omitempty"`
	Model        string           `json:"model,omitempty"`
	Content      string           `json:"content"`
	FinishReason string           `json:"finish_reason,omitempty"`
	Usage        *driver.Usage    `json:"usage,omitempty"`
}

// Resolve answers GET /v1/users/{userID}/providers/{role} with the handle descriptor.
func (h *ProviderHandlers) Resolve(w http.ResponseWriter, r *http.Request) {
	provider, ok := h.resolve(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, provider)
}

// Complete answers POST /v1/users/{userID}/providers/{role}/complete.
func (h *ProviderHandlers) Complete(w http.ResponseWriter, r *http.Request) {
	var body CompletionRequest
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxCompletionBody))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&body); err != nil {
		respondWithError(w, r, invalidRequest("decode body: %v", err))
		return
	}
	req, err := body.toDriverRequest()
	if err != nil {
		respondWithError(w, r, err)
		return
	}

	provider, ok := h.resolve(w, r)
	if !ok {
		return
	}

	ctx, cancel := driver.WithTimeout(r.Context(), h.CompletionTimeout)
	if cancel != nil {
		defer cancel()
	}

	resp, err := provider.Complete(ctx, req)
	if err != nil {
		if observability.ServerLogger != nil {
			observability.ServerLogger.Warn("Completion failed",
				zap.String("config_id", provider.ConfigID),
				zap.String("tier", string(provider.Tier)),
				zap.Error(err))
		}
		respondWithError(w, r, ailink.MapCompletionError(err))
		return
	}

	writeJSON(w, http.StatusOK, CompletionResponse{
		Provider:     provider,
		ID:           resp.ID,
		Model:        resp.Model,
		Content:      resp.Text(),
		FinishReason: resp.FinishReason,
		Usage:        resp.Usage,
	})
}

func (h *ProviderHandlers) resolve(w http.ResponseWriter, r *http.Request) (*ailink.Provider, bool) {
	user := ailink.User{ID: strings.TrimSpace(chi.URLParam(r, "userID"))}
	role := ailink.Role(chi.URLParam(r, "role"))

	provider, err := h.Resolver.Resolve(r.Context(), user, role)
	if err != nil {
		respondWithError(w, r, err)
		return nil, false
	}
	return provider, true
}

func (b CompletionRequest) toDriverRequest() (*driver.Request, error) {
	messages := make([]content.Message, 0, len(b.Messages)+2)
	if strings.TrimSpace(b.System) != "" {
		messages = append(messages, content.TextMessage(content.RoleSystem, b.System))
	}
	for i, msg := range b.Messages {
		role := strings.ToLower(strings.TrimSpace(msg.Role))
		switch role {
		case content.RoleSystem, content.RoleUser, content.RoleAssistant:
		default:
			return nil, invalidRequest("messages[%d]: unsupported role %q", i, msg.Role)
		}
		messages = append(messages, content.TextMessage(role, msg.Content))
	}
	if strings.TrimSpace(b.Prompt) != "" {
		messages = append(messages, content.TextMessage(content.RoleUser, b.Prompt))
	}
	if len(messages) == 0 || messages[len(messages)-1].Role == content.RoleSystem {
		return nil, invalidRequest("prompt or messages are required")
	}

	req := &driver.Request{
		Messages:    messages,
		Temperature: b.Temperature,
		MaxTokens:   b.MaxTokens,
	}
	switch strings.TrimSpace(b.ResponseFormat) {
	case "", "text":
	case "json_object", "json":
		req.ResponseFormat = &driver.ResponseFormat{Type: "json_object"}
	default:
		return nil, invalidRequest("unsupported response_format %q", b.ResponseFormat)
	}
	return req, nil
}

func invalidRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ailink.ErrInvalidRequest, fmt.Sprintf(format, args...))
}
