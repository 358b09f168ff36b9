package rag

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/genaicore/ragforge/platform/accounting"
	"github.com/genaicore/ragforge/platform/adapters"
	"github.com/genaicore/ragforge/platform/cache"
	"github.com/genaicore/ragforge/platform/resilience"
)

type fakeRetrieval struct {
	bm25   []adapters.Document
	vector []adapters.Document
}

func (f *fakeRetrieval) BM25(_ context.Context, tenantID, query string) ([]adapters.Document, error) {
	return f.bm25, nil
}

func (f *fakeRetrieval) Vector(_ context.Context, tenantID string, embedding []float32) ([]adapters.Document, error) {
	return f.vector, nil
}

type fakeLLM struct {
	answer string
	err    error
}

func (f *fakeLLM) Complete(_ context.Context, tenantID, prompt string, deadline time.Time) (string, int, error) {
	if f.err != nil {
		return "", 0, f.err
	}
	return f.answer, 42, nil
}

func newTestPipeline(retrieval adapters.RetrievalAdapter, llm adapters.LlmAdapter) *Pipeline {
	return NewPipeline(retrieval, llm, resilience.NewRetrier(resilience.NewRegistry()), accounting.NewLogSink(nil))
}

func TestPipelineHappyPath(t *testing.T) {
	retrieval := &fakeRetrieval{
		bm25: []adapters.Document{{DocID: "d1", Content: "alpha", Score: 0.9, TenantID: "t1"}},
	}
	llm := &fakeLLM{answer: "the answer"}
	p := newTestPipeline(retrieval, llm)

	resp, err := p.Run(context.Background(), Request{
		TenantID:   "t1",
		Query:      "what is alpha",
		DeadlineAt: time.Now().Add(time.Minute),
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if resp.Tokens != 42 {
		t.Fatalf("expected 42 tokens, got %d", resp.Tokens)
	}
	if resp.Answer == "" {
		t.Fatal("expected non-empty answer")
	}
}

func TestPipelineNoDocuments(t *testing.T) {
	p := newTestPipeline(&fakeRetrieval{}, &fakeLLM{answer: "unused"})

	resp, err := p.Run(context.Background(), Request{TenantID: "t1", Query: "anything", DeadlineAt: time.Now().Add(time.Minute)})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if resp.Answer != NoDocumentsAnswer {
		t.Fatalf("expected synthetic no-documents answer, got %q", resp.Answer)
	}
}

func TestPipelineCrossTenantLeakageAborts(t *testing.T) {
	retrieval := &fakeRetrieval{
		bm25: []adapters.Document{{DocID: "d1", Content: "leaked", Score: 0.9, TenantID: "other-tenant"}},
	}
	p := newTestPipeline(retrieval, &fakeLLM{answer: "should not be reached"})

	_, err := p.Run(context.Background(), Request{TenantID: "t1", Query: "q", DeadlineAt: time.Now().Add(time.Minute)})
	if err != ErrCrossTenantLeakage {
		t.Fatalf("expected ErrCrossTenantLeakage, got %v", err)
	}
}

func TestPipelineRedactsPIIFromAnswer(t *testing.T) {
	retrieval := &fakeRetrieval{bm25: []adapters.Document{{DocID: "d1", Content: "ctx", Score: 0.9, TenantID: "t1"}}}
	llm := &fakeLLM{answer: "contact admin@example.com for details"}
	p := newTestPipeline(retrieval, llm)

	resp, err := p.Run(context.Background(), Request{TenantID: "t1", Query: "q", DeadlineAt: time.Now().Add(time.Minute)})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if strings.Contains(resp.Answer, "admin@example.com") {
		t.Fatalf("expected email to be redacted, got %q", resp.Answer)
	}
	if !strings.Contains(resp.Answer, "[REDACTED_EMAIL]") {
		t.Fatalf("expected redaction marker, got %q", resp.Answer)
	}
}

func TestPipelineServesSecondIdenticalRequestFromCache(t *testing.T) {
	retrieval := &fakeRetrieval{
		bm25: []adapters.Document{{DocID: "d1", Content: "alpha", Score: 0.9, TenantID: "t1"}},
	}
	llm := &fakeLLM{answer: "the answer"}
	p := newTestPipeline(retrieval, llm)
	p.Cache = cache.New(adapters.NewMemoryKV())
	p.CacheTTL = time.Minute

	req := Request{TenantID: "t1", Query: "what is alpha", DeadlineAt: time.Now().Add(time.Minute)}

	first, err := p.Run(context.Background(), req)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	// A changed LLM answer after the first call proves the second Run
	// below is served from cache, not re-computed.
	llm.answer = "a different answer"

	second, err := p.Run(context.Background(), req)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if second.Answer != first.Answer {
		t.Fatalf("expected cached answer %q, got %q", first.Answer, second.Answer)
	}
}

func TestPipelineCacheIsScopedPerTenant(t *testing.T) {
	retrieval := &fakeRetrieval{
		bm25: []adapters.Document{{DocID: "d1", Content: "alpha", Score: 0.9, TenantID: "t1"}},
	}
	llm := &fakeLLM{answer: "first tenant's answer"}
	p := newTestPipeline(retrieval, llm)
	p.Cache = cache.New(adapters.NewMemoryKV())
	p.CacheTTL = time.Minute

	if _, err := p.Run(context.Background(), Request{TenantID: "t1", Query: "q", DeadlineAt: time.Now().Add(time.Minute)}); err != nil {
		t.Fatalf("run: %v", err)
	}

	retrieval.bm25[0].TenantID = "t2"
	llm.answer = "second tenant's answer"

	resp, err := p.Run(context.Background(), Request{TenantID: "t2", Query: "q", DeadlineAt: time.Now().Add(time.Minute)})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(resp.Answer, "second tenant's answer") {
		t.Fatalf("expected tenant t2 to miss t1's cache entry, got %q", resp.Answer)
	}
}
