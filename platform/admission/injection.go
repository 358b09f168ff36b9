package admission

import (
	"regexp"
	"strings"
)

// injectionPatterns is the fixed prompt-injection catalogue from spec.md
// §4.1, merged with the original service's own catalogue
// (governance_service.py::INJECTION_PATTERNS) per SPEC_FULL.md §12.
var injectionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bignore\b`),
	regexp.MustCompile(`(?i)\bdisregard\b`),
	regexp.MustCompile(`(?i)\boverride\b`),
	regexp.MustCompile(`(?i)\bbypass\b`),
	regexp.MustCompile(`(?i)\bforget\b`),
	regexp.MustCompile(`(?i)you are now\b`),
	regexp.MustCompile(`(?i)\bact as\b`),
	regexp.MustCompile(`(?i)ignore (previous|the above) instructions`),
	regexp.MustCompile(`(?i)developer mode`),
	regexp.MustCompile(`(?i)system override`),
	regexp.MustCompile(`(?i)forget the system prompt`),
	regexp.MustCompile(`(?i)execute this command`),
}

// ScreenForInjection matches payload against the injection catalogue.
// It returns the offending pattern's source text on a match, or "" when
// clean. Matching is deliberately broad (word-boundary substrings, not an
// NLP classifier) — spec.md describes this as a fixed regex catalogue, not
// a model-based detector.
func ScreenForInjection(payload string) (matched string, found bool) {
	for _, p := range injectionPatterns {
		if loc := p.FindString(payload); loc != "" {
			return strings.TrimSpace(p.String()), true
		}
	}
	return "", false
}
