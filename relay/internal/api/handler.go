package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/telemetrykit/cfgsync/pkg/hostcfg"
	"github.com/telemetrykit/cfgsync/relay/internal/store"
)

// ClientCounter reports how many SDK instances are currently connected.
// Satisfied by *hub.Hub.
type ClientCounter interface {
	Count() int
}

// Handler is the HTTP handler for all /api/v1/* endpoints.
// It reads relayed events from the store and serves the canonical
// configuration document.
type Handler struct {
	store   *store.Store
	clients ClientCounter
	docPath string
	started time.Time
	mux     *http.ServeMux
}

// New creates a Handler wired to the given store and client counter and
// registers all routes. docPath may be empty if the server is not configured
// with a canonical document.
func New(st *store.Store, clients ClientCounter, docPath string) http.Handler {
	h := &Handler{
		store:   st,
		clients: clients,
		docPath: docPath,
		started: time.Now(),
		mux:     http.NewServeMux(),
	}

	h.mux.HandleFunc("/api/v1/health", h.health)
	h.mux.HandleFunc("/api/v1/config", h.config)
	h.mux.HandleFunc("/api/v1/events", h.events)
	h.mux.HandleFunc("/api/v1/stats", h.stats)

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// --- route handlers ---------------------------------------------------------

// health returns GET /api/v1/health — liveness plus basic counts.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	jsonResp(w, http.StatusOK, HealthResponse{
		Status:      "ok",
		Clients:     h.clients.Count(),
		StoredCount: h.store.Count(),
	})
}

// config returns GET /api/v1/config — the canonical configuration document.
// This is the endpoint SDK instances poll when cfgUrl points at the relay.
func (h *Handler) config(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if h.docPath == "" {
		jsonErr(w, http.StatusNotFound, "no configuration document configured")
		return
	}

	doc, err := hostcfg.LoadFile(h.docPath)
	if err != nil {
		jsonErr(w, http.StatusInternalServerError, "configuration document unreadable")
		return
	}
	jsonResp(w, http.StatusOK, doc)
}

// events returns GET /api/v1/events — the latest stored frame per event name.
func (h *Handler) events(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	entries := h.store.List()
	out := make([]EventResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, EventResponse{
			Event:     e.Frame.Event.Name,
			Origin:    e.Frame.Ns,
			Config:    e.Frame.Event.Detail.Cfg,
			UpdatedAt: e.UpdatedAt.UTC().Format(time.RFC3339),
		})
	}
	jsonResp(w, http.StatusOK, out)
}

// stats returns GET /api/v1/stats — relay counters for dashboards.
func (h *Handler) stats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	jsonResp(w, http.StatusOK, StatsResponse{
		Clients:       h.clients.Count(),
		StoredCount:   h.store.Count(),
		UptimeSeconds: int64(time.Since(h.started).Seconds()),
	})
}

// --- helpers ----------------------------------------------------------------

func jsonResp(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, errorResponse{Error: msg})
}
