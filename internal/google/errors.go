package google

import "fmt"

// The gateway classifies provider failures into a small taxonomy so the sync
// orchestrator can branch on error class without inspecting HTTP codes.

// AuthError indicates a missing or invalid credential, or a credential that
// stayed invalid after one refresh attempt.
type AuthError struct {
	Reason string
	Err    error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("auth error: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("auth error: %s", e.Reason)
}

func (e *AuthError) Unwrap() error { return e.Err }

// PermissionError indicates the linked account lacks the required scope.
type PermissionError struct {
	MissingScope string
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("insufficient permission: missing scope %s", e.MissingScope)
}

// RateLimitError indicates the backoff budget was exhausted.
type RateLimitError struct {
	Attempts int
	Err      error
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded after %d attempts: %v", e.Attempts, e.Err)
}

func (e *RateLimitError) Unwrap() error { return e.Err }

// NotFoundError indicates a referenced remote resource does not exist.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s %q not found", e.Resource, e.ID)
	}
	return fmt.Sprintf("%s not found", e.Resource)
}

// ProviderError wraps any other remote failure unchanged.
type ProviderError struct {
	Op  string
	Err error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider error during %s: %v", e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }
