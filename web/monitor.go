// Package web exposes a running render engine to observers: statistics
// as JSON and a websocket stream pushing statistics plus preview frames
// while the render progresses.
package web

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"image/png"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/df07/go-light-transport/pkg/engine"
)

// Monitor serves render statistics and preview frames
type Monitor struct {
	engine   engine.Engine
	upgrader websocket.Upgrader

	// Tick is the push interval for websocket clients
	Tick time.Duration
}

// NewMonitor creates a monitor over a running engine
func NewMonitor(eng engine.Engine) *Monitor {
	return &Monitor{
		engine: eng,
		upgrader: websocket.Upgrader{
			// The monitor is a local diagnostics surface
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		Tick: 2 * time.Second,
	}
}

// ListenAndServe blocks serving the monitor endpoints
func (m *Monitor) ListenAndServe(addr string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/stats", m.handleStats)
	mux.HandleFunc("/api/preview", m.handlePreview)
	mux.HandleFunc("/ws", m.handleWebsocket)
	return http.ListenAndServe(addr, mux)
}

func (m *Monitor) handleStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(m.engine.Statistics()); err != nil {
		slog.Warn("stats encode failed", "error", err)
	}
}

func (m *Monitor) handlePreview(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "image/png")
	if err := png.Encode(w, m.engine.Film().Image()); err != nil {
		slog.Warn("preview encode failed", "error", err)
	}
}

// wsUpdate is one websocket push
type wsUpdate struct {
	Stats   map[string]string `json:"stats"`
	Preview string            `json:"preview,omitempty"` // base64 PNG
}

func (m *Monitor) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := m.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ticker := time.NewTicker(m.Tick)
	defer ticker.Stop()

	for range ticker.C {
		update := wsUpdate{Stats: m.engine.Statistics()}

		var buf bytes.Buffer
		if err := png.Encode(&buf, m.engine.Film().Image()); err == nil {
			update.Preview = base64.StdEncoding.EncodeToString(buf.Bytes())
		}

		if err := conn.WriteJSON(update); err != nil {
			return // client went away
		}
	}
}
