// Command gateway is the RAGForge HTTP entrypoint: it wires the admission,
// scheduling, and resilience core (platform/runtime) behind a chi router
// and serves the §6 wire contract. Grounded on fluxforge/agent/main.go's
// signal-to-context-cancel shutdown pattern and control_plane/main.go's
// env-var-driven adapter selection.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/genaicore/ragforge/platform/accounting"
	"github.com/genaicore/ragforge/platform/adapters"
	"github.com/genaicore/ragforge/platform/config"
	"github.com/genaicore/ragforge/platform/middleware"
	"github.com/genaicore/ragforge/platform/runtime"
	"github.com/genaicore/ragforge/platform/streaming"
	"github.com/genaicore/ragforge/platform/tenant"
)

func main() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("gateway: invalid configuration: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("gateway: received shutdown signal")
		cancel()
	}()

	kv, err := adapters.NewRedisKV(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		log.Fatalf("gateway: failed to connect to Redis at %s: %v", cfg.RedisAddr, err)
	}
	log.Printf("gateway: connected to Redis at %s", cfg.RedisAddr)

	retrieval, err := adapters.NewPgxRetrieval(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("gateway: failed to connect to Postgres at configured DSN: %v", err)
	}
	defer retrieval.Close()

	llm := adapters.NewAnthropicLLM(cfg.AnthropicAPIKey, cfg.AnthropicModel)

	tenants := tenant.NewStaticAdapter() // real deployments wire a provisioning-DB-backed tenant.Adapter

	sink := newAccountingSink(ctx, cfg)
	if closer, ok := sink.(interface{ Close() }); ok {
		defer closer.Close()
	}

	rt := runtime.New(cfg, kv, tenants, retrieval, llm, sink)
	rt.Start(ctx)
	defer rt.Stop()

	server := newGatewayServer(rt)
	router := buildRouter(server)

	httpServer := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: router,
	}

	go func() {
		log.Printf("gateway: listening on %s", cfg.ListenAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("gateway: server error: %v", err)
			cancel()
		}
	}()

	<-ctx.Done()
	log.Println("gateway: shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("gateway: graceful HTTP shutdown failed: %v", err)
	}
}

// newAccountingSink prefers a durable Postgres-backed sink (reusing the
// same DSN the retrieval adapter connects to) and falls back to a
// log-only sink when that connection can't be established, matching
// control_plane/main.go's "Redis if available, otherwise Memory" fallback
// style for non-critical dependencies.
func newAccountingSink(ctx context.Context, cfg config.Config) accounting.Sink {
	pg, err := accounting.NewPostgresSink(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Printf("gateway: accounting sink falling back to log-only, durable sink unavailable: %v", err)
		return accounting.NewLogSink(streaming.NewLogPublisher("ragforge"))
	}
	log.Println("gateway: accounting sink connected to Postgres")
	return pg
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func buildRouter(s *gatewayServer) chi.Router {
	r := chi.NewRouter()
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(middleware.CORS)

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(middleware.Tenant)
		r.Use(middleware.Auth(middleware.TrustHeaderAuthenticator{}))
		r.Post("/query", s.handleQuery)
		r.Get("/stream", s.handleStream)
		r.Get("/debug/snapshot", s.handleDebugSnapshot)
		r.Get("/debug/timeline/{request_id}", s.handleTimelineForRequest)
		r.Post("/admin/cache/clear", s.handleClearTenantCache)
	})

	return r
}
