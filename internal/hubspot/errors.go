package hubspot

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for programmatic checks against API failures.
var (
	// ErrUnauthorized indicates the API key was rejected.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrRateLimited indicates the portal's request limit was exceeded.
	ErrRateLimited = errors.New("rate limited")

	// ErrConflict indicates the definition already exists in the portal.
	ErrConflict = errors.New("already exists")

	// ErrBadRequest indicates the portal rejected the definition as invalid.
	ErrBadRequest = errors.New("invalid input")
)

// APIError is a decoded HubSpot error envelope.
type APIError struct {
	StatusCode    int    `json:"-"`
	Status        string `json:"status"`
	Message       string `json:"message"`
	CorrelationID string `json:"correlationId"`
	Category      string `json:"category"`
	SubCategory   string `json:"subCategory,omitempty"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Category != "" {
		return fmt.Sprintf("hubspot: %s (status %d): %s", e.Category, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("hubspot: status %d: %s", e.StatusCode, e.Message)
}

// Is maps HTTP status codes onto the sentinel errors so callers can use
// errors.Is without caring about the envelope.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
	case ErrRateLimited:
		return e.StatusCode == http.StatusTooManyRequests || e.Category == "RATE_LIMITS"
	case ErrConflict:
		return e.StatusCode == http.StatusConflict
	case ErrBadRequest:
		return e.StatusCode == http.StatusBadRequest
	}
	return false
}
