package subsystems

import (
	"errors"
	"fmt"
	"net/http"
)

// TransportError is returned by Transport implementations for protocol-level failures:
// unexpected HTTP statuses, including authentication and authorization rejections.
// Network-level failures are returned as ordinary wrapped errors.
type TransportError struct {
	// StatusCode is the HTTP status that produced the error, or 0 if none applies.
	StatusCode int
	// Message describes the failure.
	Message string
}

func (e TransportError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("transport error (HTTP %d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("transport error: %s", e.Message)
}

// IsAuthError tests whether an error, anywhere in its chain, is a TransportError caused
// by invalid credentials or insufficient permissions. Auth errors are never retried:
// retrying cannot help, and the failure is surfaced immediately.
func IsAuthError(err error) bool {
	var te TransportError
	if errors.As(err, &te) {
		return te.StatusCode == http.StatusUnauthorized || te.StatusCode == http.StatusForbidden
	}
	return false
}
