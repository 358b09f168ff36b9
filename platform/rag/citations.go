package rag

import (
	"fmt"
	"strings"

	"github.com/genaicore/ragforge/platform/adapters"
)

// FormatCitations renders the deterministic "[n] doc_id (Score: x.xx)"
// trailer, grounded on rag_service.py::_generate_citations — §4.6 step 5
// leaves the exact format unspecified, so this is it (SPEC_FULL.md §12).
func FormatCitations(docs []adapters.Document) string {
	lines := make([]string, 0, len(docs))
	for i, d := range docs {
		lines = append(lines, fmt.Sprintf("[%d] %s (Score: %.2f)", i+1, d.DocID, d.Score))
	}
	return strings.Join(lines, "\n")
}

// AppendCitations appends the citations trailer to an answer, matching the
// original's "{answer}\n\nCitations:\n{citations}" layout.
func AppendCitations(answer string, docs []adapters.Document) string {
	if len(docs) == 0 {
		return answer
	}
	return answer + "\n\nCitations:\n" + FormatCitations(docs)
}
