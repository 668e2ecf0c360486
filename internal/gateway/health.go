package gateway

import (
	"encoding/json"
	"net/http"
	"time"

	"faqbot/internal/index"
	"faqbot/internal/version"
)

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status     string     `json:"status"`
	State      string     `json:"state"`
	Items      int        `json:"items"`
	UsableRows int        `json:"usable_rows"`
	Vocabulary int        `json:"vocabulary"`
	BuildID    string     `json:"build_id,omitempty"`
	BuiltAt    *time.Time `json:"built_at,omitempty"`
	Source     string     `json:"source,omitempty"`
	Version    string     `json:"version"`
	Uptime     string     `json:"uptime"`
	Timestamp  time.Time  `json:"timestamp"`
}

// handleHealth reports the published index. It answers 503 until the first
// snapshot is live.
func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := HealthResponse{
		Status:    "starting",
		State:     index.Cold.String(),
		Version:   version.Info(),
		Uptime:    time.Since(g.started).Round(time.Second).String(),
		Timestamp: time.Now().UTC(),
	}

	status := http.StatusServiceUnavailable
	if snap := g.manager.Current(); snap != nil {
		builtAt := snap.BuiltAt
		response.Status = "ok"
		response.State = index.Ready.String()
		response.Items = snap.Items()
		response.UsableRows = snap.UsableRows
		response.Vocabulary = snap.Vocabulary()
		response.BuildID = snap.BuildID
		response.BuiltAt = &builtAt
		response.Source = snap.Source
		status = http.StatusOK
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(response); err != nil {
		g.logger.Warn("failed to encode health response", "err", err)
	}
}
