package rag

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/genaicore/ragforge/platform/accounting"
	"github.com/genaicore/ragforge/platform/adapters"
	"github.com/genaicore/ragforge/platform/cache"
	"github.com/genaicore/ragforge/platform/observability"
	"github.com/genaicore/ragforge/platform/resilience"
)

// ErrNoLLM signals an LLM-unavailable condition that was not eligible for
// the fallback-to-search degradation (§4.6 "otherwise surfaces
// llm_unavailable").
var ErrNoLLM = errors.New("rag: llm_unavailable")

// NoDocumentsAnswer is the synthetic response §4.6 returns when retrieval
// comes back empty, grounded on rag_service.py's
// "No relevant documents found for your query." literal.
const NoDocumentsAnswer = "No relevant documents found for your query."

// Request is everything the pipeline needs for one dispatched query.
type Request struct {
	RequestID       string
	TenantID        string
	UserID          string
	Query           string
	Embedding       []float32
	Params          RetrievalParams
	DeadlineAt      time.Time
	FallbackToSearch bool
}

// Response is the pipeline's result, shaped for the §6 wire contract's
// {answer, sources[...]} fields.
type Response struct {
	Answer    string
	Sources   []adapters.Document
	Tokens    int
	Fallback  bool
}

// DefaultCacheTTL is how long a completed answer stays cached per §4.7's
// key discipline, when the pipeline owner doesn't override it.
const DefaultCacheTTL = 5 * time.Minute

// Pipeline wires the retrieval adapter, LLM adapter, and resilience
// adapters into the §4.6 five-step flow.
type Pipeline struct {
	Retrieval adapters.RetrievalAdapter
	LLM       adapters.LlmAdapter
	Retrier   *resilience.Retrier
	Sink      accounting.Sink

	// Cache memoizes completed answers per tenant, per §4.7. Nil disables
	// caching (e.g. in tests that need every call to reach the LLM).
	Cache    *cache.Cache
	CacheTTL time.Duration
}

// NewPipeline builds a pipeline over the given adapters.
func NewPipeline(retrieval adapters.RetrievalAdapter, llm adapters.LlmAdapter, retrier *resilience.Retrier, sink accounting.Sink) *Pipeline {
	return &Pipeline{Retrieval: retrieval, LLM: llm, Retrier: retrier, Sink: sink, CacheTTL: DefaultCacheTTL}
}

// cacheKey identifies a cacheable answer by the exact query and retrieval
// parameters that would produce it; two requests with the same text but
// different top_k/weights are treated as distinct.
func cacheKey(req Request) string {
	return fmt.Sprintf("answer:%s:%d:%.3f:%.3f", req.Query, req.Params.TopK, req.Params.BM25Weight, req.Params.VectorWeight)
}

// Run executes the full retrieve -> isolation-check -> redact -> LLM ->
// redact -> citations flow for one request, serving from cache when an
// identical (tenant, query, params) answer was already computed.
func (p *Pipeline) Run(ctx context.Context, req Request) (Response, error) {
	if p.Cache != nil {
		if cached, ok, err := p.Cache.Get(ctx, req.TenantID, cacheKey(req)); err == nil && ok {
			var resp Response
			if err := json.Unmarshal([]byte(cached), &resp); err == nil {
				return resp, nil
			}
		}
	}

	retrievalStart := time.Now()
	docs, err := Retrieve(ctx, p.Retrieval, req.TenantID, req.Query, req.Embedding, req.Params)
	observability.RetrievalLatency.WithLabelValues("merged").Observe(time.Since(retrievalStart).Seconds())
	if err != nil {
		return Response{}, err
	}

	if len(docs) == 0 {
		if p.Sink != nil {
			p.Sink.Query(ctx, req.TenantID, req.UserID, req.Query, "no_docs")
		}
		return Response{Answer: NoDocumentsAnswer}, nil
	}

	if err := CheckIsolation(ctx, docs, req.TenantID, p.Sink); err != nil {
		return Response{}, err
	}

	docContext := buildContext(docs)
	redactedContext := RedactPII(docContext)
	prompt := buildPrompt(redactedContext, req.Query)

	var answer string
	var tokens int
	llmErr := p.Retrier.Do(ctx, "llm", req.TenantID, req.DeadlineAt, func(ctx context.Context) error {
		text, used, err := p.LLM.Complete(ctx, req.TenantID, prompt, req.DeadlineAt)
		if err != nil {
			return err
		}
		answer, tokens = text, used
		return nil
	})

	if llmErr != nil {
		if resilience.ShouldFallbackToSearch(llmErr, req.FallbackToSearch) {
			return Response{Answer: AppendCitations("", docs), Sources: docs, Fallback: true}, nil
		}
		if p.Sink != nil {
			p.Sink.Query(ctx, req.TenantID, req.UserID, req.Query, "failed")
		}
		return Response{}, errors.Join(ErrNoLLM, llmErr)
	}

	answer = RedactPII(answer)
	answer = AppendCitations(answer, docs)

	if p.Sink != nil {
		p.Sink.CostEvent(ctx, accounting.CostEvent{
			TenantID:  req.TenantID,
			RequestID: req.RequestID,
			Kind:      accounting.CostLLMTokens,
			Amount:    float64(tokens),
			Timestamp: time.Now(),
		})
		p.Sink.Query(ctx, req.TenantID, req.UserID, req.Query, "completed")
	}
	observability.LLMTokensUsed.WithLabelValues(req.TenantID).Add(float64(tokens))

	resp := Response{Answer: answer, Sources: docs, Tokens: tokens}
	if p.Cache != nil {
		if encoded, err := json.Marshal(resp); err == nil {
			p.Cache.Set(ctx, req.TenantID, cacheKey(req), string(encoded), p.CacheTTL)
		}
	}
	return resp, nil
}

func buildContext(docs []adapters.Document) string {
	s := ""
	for i, d := range docs {
		if i > 0 {
			s += "\n"
		}
		s += "[" + d.DocID + "] " + d.Content
	}
	return s
}

func buildPrompt(docContext, query string) string {
	return "Based on the following documents, answer the user's question.\n\n" +
		"Documents:\n" + docContext + "\n\nQuestion: " + query + "\n\nAnswer:"
}
