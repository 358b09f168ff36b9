package rag

import (
	"context"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/genaicore/ragforge/platform/adapters"
)

// DefaultMinScore filters out low-relevance hits before they reach the
// LLM. Not pinned to a specific number in spec.md §4.6 step 1, so this is
// a tunable default, overridable per RetrievalParams.
const DefaultMinScore = 0.1

// RetrievalParams carries the per-request weights and limits from the
// §6 wire contract body ({top_k, bm25_weight, vector_weight}).
type RetrievalParams struct {
	TopK         int
	BM25Weight   float64
	VectorWeight float64
	MinScore     float64
}

func (p RetrievalParams) normalized() RetrievalParams {
	if p.TopK <= 0 {
		p.TopK = 5
	}
	if p.BM25Weight == 0 && p.VectorWeight == 0 {
		p.BM25Weight, p.VectorWeight = 0.5, 0.5
	}
	if p.MinScore == 0 {
		p.MinScore = DefaultMinScore
	}
	return p
}

// Retrieve runs BM25 and vector search in parallel (both legs share ctx's
// deadline rather than a separate "patience timer" goroutine; a failed leg
// never cancels the other), merges by weighted score sum,
// dedups by doc_id, filters by MinScore, and returns the top TopK —
// grounded on retrieval_service.py::hybrid_retrieve's asyncio.gather plus
// weighted merge, translated from its return_exceptions=True tolerance (a
// failed leg degrades to zero results rather than aborting the query) into
// errgroup's per-call error capture.
func Retrieve(ctx context.Context, adapter adapters.RetrievalAdapter, tenantID, query string, embedding []float32, params RetrievalParams) ([]adapters.Document, error) {
	params = params.normalized()

	var bm25, vector []adapters.Document
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		docs, err := adapter.BM25(gctx, tenantID, query)
		if err != nil {
			return nil // degrade, don't abort the whole query on one leg failing
		}
		bm25 = docs
		return nil
	})
	g.Go(func() error {
		docs, err := adapter.Vector(gctx, tenantID, embedding)
		if err != nil {
			return nil
		}
		vector = docs
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := mergeScored(bm25, vector, params.BM25Weight, params.VectorWeight)

	filtered := merged[:0]
	for _, d := range merged {
		if d.Score >= params.MinScore {
			filtered = append(filtered, d)
		}
	}

	sort.Slice(filtered, func(i, j int) bool { return filtered[i].Score > filtered[j].Score })
	if len(filtered) > params.TopK {
		filtered = filtered[:params.TopK]
	}
	return filtered, nil
}

// mergeScored combines BM25 and vector hits by doc_id, summing weighted
// scores when a document appears in both result sets.
func mergeScored(bm25, vector []adapters.Document, bm25Weight, vectorWeight float64) []adapters.Document {
	byID := make(map[string]*adapters.Document, len(bm25)+len(vector))
	order := make([]string, 0, len(bm25)+len(vector))

	add := func(docs []adapters.Document, weight float64) {
		for _, d := range docs {
			if existing, ok := byID[d.DocID]; ok {
				existing.Score += d.Score * weight
				continue
			}
			copyDoc := d
			copyDoc.Score = d.Score * weight
			byID[d.DocID] = &copyDoc
			order = append(order, d.DocID)
		}
	}

	add(bm25, bm25Weight)
	add(vector, vectorWeight)

	out := make([]adapters.Document, 0, len(order))
	for _, id := range order {
		out = append(out, *byID[id])
	}
	return out
}
