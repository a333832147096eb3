package server

import (
	"net/http"
	"time"

	"github.com/desertthunder/spondex/internal/shared"
	"github.com/desertthunder/spondex/internal/tasks"
)

// StatusHandler serves a JSON health summary of the sync loop. The monitor's
// application check consumes this shape.
type StatusHandler struct {
	service string
	started time.Time
	source  func() tasks.PassStatus
}

// NewStatusHandler creates a status endpoint fed by source, typically
// [tasks.Synchronizer.Status].
func NewStatusHandler(service string, source func() tasks.PassStatus) *StatusHandler {
	return &StatusHandler{service: service, started: time.Now(), source: source}
}

// Routes returns the HTTP routes this handler serves.
func (h *StatusHandler) Routes() []string {
	return []string{"/status"}
}

// statusPayload is the wire shape of the /status response.
type statusPayload struct {
	Service       string    `json:"service"`
	Healthy       bool      `json:"healthy"`
	UptimeSeconds float64   `json:"uptime_seconds"`
	LastPassAt    time.Time `json:"last_pass_at"`
	Passes        int       `json:"passes"`
	Failures      int       `json:"failures"`
	LastError     string    `json:"last_error,omitempty"`
}

// ServeHTTP responds with the loop's pass counters. The loop is healthy
// when its most recent pass succeeded (or no pass has run yet).
func (h *StatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	status := h.source()
	payload := statusPayload{
		Service:       h.service,
		Healthy:       status.LastError == "",
		UptimeSeconds: time.Since(h.started).Seconds(),
		LastPassAt:    status.LastPassAt,
		Passes:        status.Passes,
		Failures:      status.Failures,
		LastError:     status.LastError,
	}

	body, err := shared.MarshalJSON(payload, false)
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}
