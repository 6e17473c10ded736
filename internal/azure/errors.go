package azure

import (
	"errors"
	"fmt"
	"net/http"
)

// ProviderError is a non-success response from the management API
type ProviderError struct {
	Operation  string
	StatusCode int
	Code       string
	Message    string
}

func (e *ProviderError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("%s: HTTP %d", e.Operation, e.StatusCode)
	}
	return fmt.Sprintf("%s: HTTP %d %s: %s", e.Operation, e.StatusCode, e.Code, e.Message)
}

// IsRetryable reports whether the call may succeed if repeated
func (e *ProviderError) IsRetryable() bool {
	switch e.StatusCode {
	case http.StatusTooManyRequests, http.StatusInternalServerError,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	switch e.Code {
	case "ServerBusy", "TooManyRequests", "OperationTimedOut":
		return true
	}
	return false
}

// IsNotFound reports whether err is a 404 from the management API
func IsNotFound(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe) && pe.StatusCode == http.StatusNotFound
}
