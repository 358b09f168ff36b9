// Package rag implements the §4.6 pipeline orchestrator: parallel hybrid
// retrieval, tenant-isolation enforcement, PII redaction, the resilient
// LLM call, and deterministic citation formatting. Grounded on
// original_source/app/services/rag_service.go's generate_response flow and
// governance_service.py's PII/injection catalogues (SPEC_FULL.md §12).
package rag

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/genaicore/ragforge/platform/observability"
)

// piiPattern pairs a detector regex with the redaction placeholder kind,
// mirroring governance_service.py::PII_PATTERNS.
type piiPattern struct {
	kind string
	re   *regexp.Regexp
}

var piiPatterns = []piiPattern{
	{"email", regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)},
	{"phone", regexp.MustCompile(`\b\d{3}[-.]?\d{3}[-.]?\d{4}\b`)},
	{"ssn", regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`)},
	{"credit_card", regexp.MustCompile(`\b\d{4}[\s-]?\d{4}[\s-]?\d{4}[\s-]?\d{4}\b`)},
	{"ip_address", regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`)},
}

// RedactPII replaces every PII match in text with [REDACTED_<KIND>],
// recording a PIIRedactions metric per pattern kind matched. Applied both
// to retrieved context before it reaches the LLM and to the LLM's answer
// before it leaves the trust boundary (§4.6 steps 3 and 5).
func RedactPII(text string) string {
	redacted := text
	for _, p := range piiPatterns {
		matches := p.re.FindAllString(redacted, -1)
		if len(matches) == 0 {
			continue
		}
		redacted = p.re.ReplaceAllString(redacted, fmt.Sprintf("[REDACTED_%s]", strings.ToUpper(p.kind)))
		observability.PIIRedactions.WithLabelValues(p.kind).Add(float64(len(matches)))
	}
	return redacted
}
