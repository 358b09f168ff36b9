package resilience

import (
	"errors"
)

// ShouldFallbackToSearch reports whether an LLM-call failure should
// degrade to returning retrieval snippets directly rather than surfacing
// llm_unavailable, per §4.6: only when the tenant has opted in and the
// failure is the circuit being open (a transient LLM outage, not a
// request-specific permanent error).
func ShouldFallbackToSearch(err error, fallbackEnabled bool) bool {
	return fallbackEnabled && errors.Is(err, ErrCircuitOpen)
}
