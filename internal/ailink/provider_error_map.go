package ailink

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/zycxfyh/nexus-verse/internal/ailink/driver"
)

// CompletionError classifies a failed completion for callers that report it.
type CompletionError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
	// Status is the HTTP status a server should answer with.
	Status int `json:"-"`
}

func (e *CompletionError) Error() string {
	if e.Details == "" {
		return e.Message
	}
	return e.Message + ": " + e.Details
}

// MapCompletionError classifies an error returned by Provider.Complete.
func MapCompletionError(err error) *CompletionError {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &CompletionError{Code: "AILINK_PROVIDER_TIMEOUT", Message: "provider request timed out", Status: http.StatusGatewayTimeout}
	}

	var perr *driver.ProviderError
	if errors.As(err, &perr) && perr != nil {
		status := perr.StatusCode
		details := strings.TrimSpace(perr.Message)
		switch {
		case perr.Unauthorized():
			return &CompletionError{Code: "AILINK_PROVIDER_AUTH", Message: "provider authentication failed", Details: details, Status: http.StatusBadGateway}
		case status == http.StatusTooManyRequests:
			return &CompletionError{Code: "AILINK_PROVIDER_RATE_LIMIT", Message: "provider rate limited", Details: details, Status: http.StatusTooManyRequests}
		case status >= 500 && status <= 599:
			return &CompletionError{Code: "AILINK_PROVIDER_UNAVAILABLE", Message: "provider unavailable", Details: details, Status: http.StatusBadGateway}
		case status >= 400 && status <= 499:
			return &CompletionError{Code: "AILINK_PROVIDER_BAD_REQUEST", Message: "provider rejected request", Details: details, Status: http.StatusBadGateway}
		default:
			return &CompletionError{Code: "AILINK_PROVIDER_ERROR", Message: "provider request failed", Details: details, Status: http.StatusBadGateway}
		}
	}

	return &CompletionError{Code: "AILINK_PROVIDER_ERROR", Message: "provider request failed", Details: err.Error(), Status: http.StatusBadGateway}
}
