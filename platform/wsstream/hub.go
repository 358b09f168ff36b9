// Package wsstream implements the live dispatch/queue-depth dashboard feed
// over WebSocket. Adapted from control_plane's MetricsHub single-broadcaster
// pattern: one ticker drives every client instead of one goroutine per
// connection, and per-tenant metrics are only computed once per tick for
// however many clients are watching that tenant.
package wsstream

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// MaxConnections caps concurrent dashboard viewers to bound broadcast cost.
const MaxConnections = 200

// BroadcastInterval is how often the hub polls MetricsSource and pushes a
// snapshot to connected clients.
const BroadcastInterval = 1 * time.Second

// Snapshot is the payload pushed to a tenant's dashboard clients.
type Snapshot struct {
	TenantID    string         `json:"tenant_id"`
	LocalDepth  int            `json:"local_queue_depth"`
	GlobalDepth int64          `json:"global_queue_depth"`
	InFlight    int            `json:"in_flight"`
	InFlightTop map[string]int `json:"in_flight_by_tier"`
	ShedState   string         `json:"shed_state"`
}

// MetricsSource produces the current dispatch snapshot for a tenant. Kept
// narrow and tenant-scoped so the hub doesn't need to import queue/sched
// directly; runtime wires a small adapter struct over the live Fair
// scheduler and TwoLevelQueue.
type MetricsSource interface {
	Snapshot(ctx context.Context, tenantID string) (Snapshot, error)
}

type registration struct {
	conn     *websocket.Conn
	tenantID string
}

// Hub is a single-broadcaster WebSocket fan-out of dispatch snapshots.
type Hub struct {
	source     MetricsSource
	clients    map[*websocket.Conn]string
	register   chan registration
	unregister chan *websocket.Conn
	mu         sync.RWMutex
}

// NewHub builds a Hub over the given MetricsSource.
func NewHub(source MetricsSource) *Hub {
	return &Hub{
		source:     source,
		clients:    make(map[*websocket.Conn]string),
		register:   make(chan registration),
		unregister: make(chan *websocket.Conn),
	}
}

// Run drives the hub's register/unregister/broadcast loop until ctx is
// cancelled, then closes every connection.
func (h *Hub) Run(ctx context.Context) {
	ticker := time.NewTicker(BroadcastInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return
		case reg := <-h.register:
			h.mu.Lock()
			if len(h.clients) >= MaxConnections {
				h.mu.Unlock()
				reg.conn.Close()
				log.Printf("wsstream: connection rejected, max connections (%d) reached", MaxConnections)
				continue
			}
			h.clients[reg.conn] = reg.tenantID
			h.mu.Unlock()
		case conn := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[conn]; ok {
				delete(h.clients, conn)
				conn.Close()
			}
			h.mu.Unlock()
		case <-ticker.C:
			h.broadcastAll(ctx)
		}
	}
}

func (h *Hub) broadcastAll(ctx context.Context) {
	h.mu.RLock()
	tenants := make(map[string]bool)
	for _, tenantID := range h.clients {
		tenants[tenantID] = true
	}
	h.mu.RUnlock()

	for tenantID := range tenants {
		snap, err := h.source.Snapshot(ctx, tenantID)
		if err != nil {
			log.Printf("wsstream: snapshot failed for tenant %s: %v", tenantID, err)
			continue
		}
		payload, err := json.Marshal(snap)
		if err != nil {
			continue
		}

		h.mu.RLock()
		for conn, tid := range h.clients {
			if tid != tenantID {
				continue
			}
			conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				log.Printf("wsstream: write error: %v", err)
				go h.Unregister(conn)
			}
		}
		h.mu.RUnlock()
	}
}

func (h *Hub) shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		conn.Close()
	}
	h.clients = make(map[*websocket.Conn]string)
}

// Register adds a new client connection for tenantID.
func (h *Hub) Register(conn *websocket.Conn, tenantID string) {
	h.register <- registration{conn: conn, tenantID: tenantID}
}

// Unregister removes a client connection.
func (h *Hub) Unregister(conn *websocket.Conn) {
	h.unregister <- conn
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
