package status

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/NotCoffee418/thingspeak_uploader/pkg/sensor"
	"github.com/NotCoffee418/thingspeak_uploader/pkg/uploader"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	jww "github.com/spf13/jwalterweatherman"
)

const (
	writeTimeout = time.Second

	// Snapshots queued per client before it is dropped as too slow
	sendBacklog = 16
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Read-only feed on the local network
	},
}

func NewHub(profile string, log *jww.Notepad) *Hub {
	return &Hub{
		profile: profile,
		log:     log,
		clients: make(map[*websocket.Conn]*subscriber),
	}
}

// Observe stores a newly accepted reading and pushes it to websocket clients.
func (h *Hub) Observe(record sensor.Record, at time.Time) {
	h.snapshotMu.Lock()
	h.snapshot = &Snapshot{
		Profile:    h.profile,
		Reading:    record.Clone(),
		ReceivedAt: at,
		LastUpload: h.lastUpload,
		LastResult: h.lastResult,
	}
	snapshot := *h.snapshot
	h.snapshotMu.Unlock()

	h.broadcast(snapshot.ToJsonBytes())
}

// RecordUpload keeps track of the last upload decision for /latest.
func (h *Hub) RecordUpload(outcome uploader.Outcome, at time.Time) {
	if outcome == uploader.NoRecord || outcome == uploader.NotDue {
		return
	}

	h.snapshotMu.Lock()
	defer h.snapshotMu.Unlock()

	h.lastResult = outcome.String()
	if outcome == uploader.Sent {
		sentAt := at
		h.lastUpload = &sentAt
	}
	if h.snapshot != nil {
		h.snapshot.LastResult = h.lastResult
		h.snapshot.LastUpload = h.lastUpload
	}
}

func (h *Hub) Latest() *Snapshot {
	h.snapshotMu.RLock()
	defer h.snapshotMu.RUnlock()
	if h.snapshot == nil {
		return nil
	}
	snapshot := *h.snapshot
	return &snapshot
}

// Router serves the status endpoints. gatherer may be nil to leave out /metrics.
func (h *Hub) Router(gatherer prometheus.Gatherer) http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"message": "ThingSpeak Uploader",
			"status":  "running",
			"profile": h.profile,
		})
	}).Methods(http.MethodGet)

	r.HandleFunc("/latest", func(w http.ResponseWriter, r *http.Request) {
		snapshot := h.Latest()
		if snapshot == nil {
			writeJSON(w, http.StatusNotFound, map[string]string{
				"error": "No readings available yet",
			})
			return
		}
		writeJSON(w, http.StatusOK, snapshot)
	}).Methods(http.MethodGet)

	r.HandleFunc("/ws", h.serveWebSocket)

	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}

	return r
}

func (h *Hub) serveWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WARN.Printf("WebSocket upgrade error: %v", err)
		return
	}

	sub := &subscriber{conn: conn, send: make(chan []byte, sendBacklog)}

	// Send current reading immediately if available
	if snapshot := h.Latest(); snapshot != nil {
		if data := snapshot.ToJsonBytes(); data != nil {
			sub.send <- data
		}
	}

	h.addClient(sub)
	go h.writePump(sub)

	// Keep connection alive until the client goes away
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			h.removeClient(conn)
			return
		}
	}
}

// writePump owns all writes to one client and closes the connection when
// the client is removed or a write fails.
func (h *Hub) writePump(sub *subscriber) {
	defer sub.conn.Close()
	for data := range sub.send {
		sub.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := sub.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			h.removeClient(sub.conn)
			return
		}
	}
}

// broadcast never blocks on a client. A client whose queue is full is dropped.
func (h *Hub) broadcast(data []byte) {
	if data == nil {
		return
	}

	var slow []*websocket.Conn
	h.clientsMu.RLock()
	for conn, sub := range h.clients {
		select {
		case sub.send <- data:
		default:
			slow = append(slow, conn)
		}
	}
	h.clientsMu.RUnlock()

	for _, conn := range slow {
		h.log.WARN.Printf("Dropping slow websocket client %s", conn.RemoteAddr())
		h.removeClient(conn)
	}
}

func (h *Hub) addClient(sub *subscriber) {
	h.clientsMu.Lock()
	h.clients[sub.conn] = sub
	h.clientsMu.Unlock()
}

// removeClient stops the client's writer, which then closes the connection.
func (h *Hub) removeClient(conn *websocket.Conn) {
	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()
	if sub, exists := h.clients[conn]; exists {
		delete(h.clients, conn)
		close(sub.send)
	}
}

// Serve binds addr right away so a bad address fails at startup, then serves
// in the background until ctx is cancelled.
func (h *Hub) Serve(ctx context.Context, addr string, gatherer prometheus.Gatherer) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	srv := &http.Server{
		Handler:           h.Router(gatherer),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)

		// Hijacked websocket connections are not closed by Shutdown
		h.clientsMu.Lock()
		for conn, sub := range h.clients {
			delete(h.clients, conn)
			close(sub.send)
		}
		h.clientsMu.Unlock()
	}()

	go func() {
		h.log.INFO.Printf("Status server listening on %s", listener.Addr())
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			h.log.ERROR.Printf("Status server stopped: %v", err)
		}
	}()

	return nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
