package source

import "fmt"

// RateLimitError is the typed rate-limit error variant from spec.md §4.2/§7:
// every host attempted during a request returned HTTP 429 or an errors[]
// entry with code 88. Grounded on the teacher's typed
// flow.NodeExhaustedError in internal/flow/client.go.
type RateLimitError struct {
	Hosts []string
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate-limited on all hosts: %v", e.Hosts)
}

// AuthError is the typed auth-invalid error variant from spec.md §4.2/§7:
// auth-pair and bearer-token rotation was exhausted without a success.
type AuthError struct {
	Err error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth rotation exhausted: %v", e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// GenericError wraps any other non-2xx/non-empty-errors[] failure from the
// source platform (spec.md §7's "Source-generic" kind).
type GenericError struct {
	Err error
}

func (e *GenericError) Error() string {
	return fmt.Sprintf("source request failed: %v", e.Err)
}

func (e *GenericError) Unwrap() error { return e.Err }
