package gateway

import (
	"encoding/json"
	"net/http"
)

// HealthResponse is the JSON response for GET /health.
type HealthResponse struct {
	Status   string `json:"status"` // "ok" or "degraded"
	State    string `json:"state,omitempty"`
	Triggers int    `json:"triggers"`
}

// handleHealth returns 200 while the supervisor is running, 503 otherwise.
func (g *Gateway) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		resp := HealthResponse{Status: "ok"}

		if g.deps.State != nil {
			resp.State = g.deps.State()
			if resp.State != "running" {
				resp.Status = "degraded"
			}
		}
		if g.deps.Triggers != nil {
			resp.Triggers = len(g.deps.Triggers.Triggers())
		}

		w.Header().Set("Content-Type", "application/json")
		if resp.Status == "degraded" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(resp)
	}
}
