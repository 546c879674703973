package ailink

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/zycxfyh/nexus-verse/internal/ailink/content"
	"github.com/zycxfyh/nexus-verse/internal/ailink/driver"
	"github.com/zycxfyh/nexus-verse/internal/metrics"
)

// Tier names the resolution step that produced a provider.
type Tier string

const (
	TierDedicated      Tier = "dedicated"
	TierRequisition    Tier = "requisition"
	TierSystemFallback Tier = "system_fallback"
)

// Provider is a ready-to-use handle bound to one configuration's vendor, credential and model.
type Provider struct {
	ConfigID string `json:"config_id"`
	Vendor   string `json:"provider"`
	Model    string `json:"model_id"`
	BaseURL  string `json:"base_url,omitempty"`
	OwnerID  string `json:"owner_id"`
	Tier     Tier   `json:"tier,omitempty"`

	driver driver.Driver
}

// Driver exposes the bound driver.
func (p *Provider) Driver() driver.Driver {
	if p == nil {
		return nil
	}
	return p.driver
}

// Complete runs one completion against the bound backend. An empty request model
// is filled with the configuration's model.
func (p *Provider) Complete(ctx context.Context, req *driver.Request) (*driver.Response, error) {
	if p == nil || p.driver == nil {
		return nil, fmt.Errorf("provider not bound")
	}
	if req == nil {
		return nil, fmt.Errorf("request is required")
	}
	call := *req
	if strings.TrimSpace(call.Model) == "" {
		call.Model = p.Model
	}

	start := time.Now()
	resp, err := p.driver.Complete(ctx, &call)
	metrics.RecordCompletion(p.driver.Name(), err == nil, time.Since(start))
	return resp, err
}

// Prompt sends a single user message with an optional system prompt.
func (p *Provider) Prompt(ctx context.Context, system, prompt string) (*driver.Response, error) {
	messages := make([]content.Message, 0, 2)
	if strings.TrimSpace(system) != "" {
		messages = append(messages, content.TextMessage(content.RoleSystem, system))
	}
	messages = append(messages, content.TextMessage(content.RoleUser, prompt))
	return p.Complete(ctx, &driver.Request{Messages: messages})
}
