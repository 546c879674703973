package ailink

import (
	"fmt"
	"strings"
	"time"
)

// Role identifies the functional capability a request needs served
// (e.g. "chat", "story-writer", "code-assistant").
type Role string

const (
	// SystemOwner owns the synthetic fallback configuration. It is never persisted.
	SystemOwner = "system"
	// SystemFallbackID is the identifier of the synthetic fallback configuration.
	SystemFallbackID = "system-fallback"
	// SystemDefaultRole marks the fallback configuration's assigned roles.
	SystemDefaultRole Role = "system-default"

	roleDelimiter = ","
)

// Provider tags recognized by the built-in construction strategies.
const (
	ProviderOpenAI    = "OpenAI"
	ProviderDeepSeek  = "DeepSeek"
	ProviderXAI       = "xAI"
	ProviderAnthropic = "Anthropic"
)

// NormalizeRole trims and lower-cases a role tag.
func NormalizeRole(role Role) Role {
	return Role(strings.ToLower(strings.TrimSpace(string(role))))
}

// ValidRole reports whether role is a single, non-empty tag that a RoleSet can
// hold. Roles carrying the list delimiter can never be members.
func ValidRole(role Role) bool {
	role = NormalizeRole(role)
	return role != "" && !strings.Contains(string(role), roleDelimiter)
}

// RoleSet is the set of roles a configuration is dedicated to. It is stored as
// a comma-delimited string; membership is exact, never a substring match.
type RoleSet []Role

// ParseRoleSet decodes a delimited role list. Blank entries and duplicates are dropped.
func ParseRoleSet(raw string) RoleSet {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	return NewRoleSet(strings.Split(raw, roleDelimiter)...)
}

// NewRoleSet builds a normalized set from individual role names.
func NewRoleSet[T ~string](roles ...T) RoleSet {
	set := make(RoleSet, 0, len(roles))
	for _, raw := range roles {
		role := NormalizeRole(Role(raw))
		if role == "" || set.Contains(role) {
			continue
		}
		set = append(set, role)
	}
	if len(set) == 0 {
		return nil
	}
	return set
}

// Contains reports whether role is a member of the set.
func (s RoleSet) Contains(role Role) bool {
	role = NormalizeRole(role)
	if role == "" {
		return false
	}
	for _, r := range s {
		if NormalizeRole(r) == role {
			return true
		}
	}
	return false
}

// String encodes the set in its stored, delimited form.
func (s RoleSet) String() string {
	parts := make([]string, 0, len(s))
	for _, r := range s {
		if r = NormalizeRole(r); r != "" {
			parts = append(parts, string(r))
		}
	}
	return strings.Join(parts, roleDelimiter)
}

// Strings returns the roles as plain strings.
func (s RoleSet) Strings() []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}

// Validate rejects roles that would corrupt the delimited encoding.
func (s RoleSet) Validate() error {
	for _, r := range s {
		if strings.Contains(string(r), roleDelimiter) {
			return fmt.Errorf("role %q must not contain %q", r, roleDelimiter)
		}
	}
	return nil
}

// User is the identity a resolution is performed for.
type User struct {
	ID string
}

// Configuration binds an owner to one AI backend: vendor tag, credential, model and
// the roles it is dedicated to.
type Configuration struct {
	ID            string    `json:"id" yaml:"id,omitempty"`
	Provider      string    `json:"provider" yaml:"provider"`
	APIKey        string    `json:"-" yaml:"api_key"`
	BaseURL       *string   `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	ModelID       string    `json:"model_id" yaml:"model_id"`
	AssignedRoles RoleSet   `json:"assigned_roles" yaml:"assigned_roles,omitempty"`
	OwnerID       string    `json:"owner_id" yaml:"owner_id"`
	CreatedAt     time.Time `json:"created_at" yaml:"-"`
	UpdatedAt     time.Time `json:"updated_at" yaml:"-"`
}

// BaseURLValue returns the custom base URL, or "" when the provider default applies.
func (c Configuration) BaseURLValue() string {
	if c.BaseURL == nil {
		return ""
	}
	return strings.TrimSpace(*c.BaseURL)
}

// IsSystem reports whether the configuration is the synthetic fallback.
func (c Configuration) IsSystem() bool {
	return c.OwnerID == SystemOwner
}

// Label renders "provider/model" for logs.
func (c Configuration) Label() string {
	return c.Provider + "/" + c.ModelID
}

// String never includes the credential.
func (c Configuration) String() string {
	return fmt.Sprintf("Configuration{id=%s provider=%s model=%s owner=%s roles=%s}",
		c.ID, c.Provider, c.ModelID, c.OwnerID, c.AssignedRoles.String())
}

// Validate checks the fields a stored user configuration must carry. The provider tag
// itself is not checked here: unknown tags are rejected when a handle is built.
func (c Configuration) Validate() error {
	switch {
	case strings.TrimSpace(c.OwnerID) == "":
		return fmt.Errorf("%w: owner id is required", ErrInvalidRequest)
	case c.OwnerID == SystemOwner:
		return fmt.Errorf("%w: owner %q is reserved", ErrInvalidRequest, SystemOwner)
	case strings.TrimSpace(c.Provider) == "":
		return fmt.Errorf("%w: provider is required", ErrInvalidRequest)
	case strings.TrimSpace(c.ModelID) == "":
		return fmt.Errorf("%w: model id is required", ErrInvalidRequest)
	case strings.TrimSpace(c.APIKey) == "":
		return fmt.Errorf("%w: api key is required", ErrInvalidRequest)
	}
	if err := c.AssignedRoles.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return nil
}

// StringPtr returns nil for blank values, otherwise a pointer to the trimmed value.
func StringPtr(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}

// Normalize trims identifying fields and re-normalizes the role set in place.
func (c *Configuration) Normalize() {
	c.ID = strings.TrimSpace(c.ID)
	c.Provider = strings.TrimSpace(c.Provider)
	c.APIKey = strings.TrimSpace(c.APIKey)
	c.ModelID = strings.TrimSpace(c.ModelID)
	c.OwnerID = strings.TrimSpace(c.OwnerID)
	c.BaseURL = StringPtr(c.BaseURLValue())
	c.AssignedRoles = NewRoleSet(c.AssignedRoles...)
}
