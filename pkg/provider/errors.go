package provider

import "fmt"

// TransportError reports a failure reaching or being served by the model
// backend: connection errors, timeouts, and non-2xx responses. Stages map
// it to an upstream error on the API surface.
type TransportError struct {
	// StatusCode is the HTTP status from the backend, or 0 for
	// network-level failures.
	StatusCode int

	// Message is the backend's error message when one could be extracted.
	Message string

	// Retryable indicates the call may succeed if repeated (rate limits,
	// 5xx, connection errors).
	Retryable bool
}

func (e *TransportError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("backend connection error: %s", e.Message)
	}
	return fmt.Sprintf("backend error (HTTP %d): %s", e.StatusCode, e.Message)
}

// NewTransportError builds a TransportError for the given status code.
// Status 0 means a network-level failure.
func NewTransportError(statusCode int, message string) *TransportError {
	return &TransportError{
		StatusCode: statusCode,
		Message:    message,
		Retryable:  statusCode == 0 || statusCode == 429 || statusCode >= 500,
	}
}
