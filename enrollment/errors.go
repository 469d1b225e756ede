package enrollment

import (
	"fmt"
	"strings"
)

// APIError captures a failed call to the enrollment or OAuth endpoints.
type APIError struct {
	StatusCode int
	Message    string
	Body       string
	Cause      error
}

func (e *APIError) Error() string {
	if e == nil {
		return "enrollment: api error"
	}
	parts := []string{"enrollment:"}
	if msg := strings.TrimSpace(e.Message); msg != "" {
		parts = append(parts, msg)
	}
	if e.StatusCode > 0 {
		parts = append(parts, fmt.Sprintf("(status %d)", e.StatusCode))
	}
	if e.Cause != nil {
		parts = append(parts, fmt.Sprintf(": %v", e.Cause))
	}
	return strings.Join(parts, " ")
}

func (e *APIError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}
