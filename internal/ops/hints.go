// Package ops holds small operator-facing helpers shared by the CLI and the
// Scheduler: turning a raw error into an actionable hint (spec.md §4.6 step
// 5, §6's exit-code table).
package ops

import "strings"

// AuthFailureHint returns a specific operator hint when err's message
// matches an HTTP 401/403 pattern, or "" otherwise.
func AuthFailureHint(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	if strings.Contains(msg, "401") || strings.Contains(msg, "403") {
		return "credentials appear to be rejected by the source platform (401/403); re-run cookies:check or rotate SOURCE_COOKIES_JSON"
	}
	return ""
}
