package gateway

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/flemzord/idrsched/internal/cron"
	"github.com/flemzord/idrsched/internal/reload"
)

// StatusResponse is the JSON response for GET /status.
type StatusResponse struct {
	State      string          `json:"state,omitempty"`
	Uptime     float64         `json:"uptime_seconds"`
	Triggers   []cron.Trigger  `json:"triggers"`
	LastReload *reload.Outcome `json:"last_reload,omitempty"`
}

// handleStatus returns an http.HandlerFunc for GET /status.
func (g *Gateway) handleStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		resp := StatusResponse{
			Uptime:   time.Since(g.startedAt).Truncate(time.Second).Seconds(),
			Triggers: []cron.Trigger{},
		}
		if g.deps.State != nil {
			resp.State = g.deps.State()
		}
		if g.deps.Triggers != nil {
			resp.Triggers = g.deps.Triggers.Triggers()
		}
		if g.deps.Reloader != nil {
			resp.LastReload = g.deps.Reloader.Last()
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}
}

// handleReload queues a reload and returns immediately.
func (g *Gateway) handleReload() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if g.deps.Reloader == nil {
			http.Error(w, "reload not available", http.StatusServiceUnavailable)
			return
		}
		g.deps.Reloader.Request()
		g.logger.Info("gateway: reload requested", "remote_addr", r.RemoteAddr)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "queued"})
	}
}
