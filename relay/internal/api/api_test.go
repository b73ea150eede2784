package api_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/telemetrykit/cfgsync/pkg/types"
	"github.com/telemetrykit/cfgsync/relay/internal/api"
	"github.com/telemetrykit/cfgsync/relay/internal/store"
)

// --- test helpers -----------------------------------------------------------

type fixedClients int

func (f fixedClients) Count() int { return int(f) }

func newStore(frames ...types.Frame) *store.Store {
	st := store.New(5 * time.Minute)
	for _, f := range frames {
		st.Put(f)
	}
	return st
}

func frame(ns, event string, rate float64) types.Frame {
	return types.Frame{
		Ns: ns,
		Event: types.OutboundEvent{
			Name:   event,
			Detail: types.Detail{Cfg: types.ConfigSnapshot{"sampleRate": rate}},
		},
	}
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(rr.Body).Decode(v); err != nil {
		t.Fatalf("decode JSON: %v (body: %s)", err, rr.Body.String())
	}
}

func writeDoc(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write doc: %v", err)
	}
	return path
}

// --- /api/v1/health ---------------------------------------------------------

func TestHealth(t *testing.T) {
	h := api.New(newStore(frame("a", "cfgsync", 50)), fixedClients(3), "")
	rr := get(t, h, "/api/v1/health")

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rr.Code)
	}
	var resp map[string]interface{}
	decode(t, rr, &resp)

	if resp["status"] != "ok" {
		t.Errorf("status: got %v, want ok", resp["status"])
	}
	if resp["clients"].(float64) != 3 {
		t.Errorf("clients: got %v, want 3", resp["clients"])
	}
	if resp["stored_count"].(float64) != 1 {
		t.Errorf("stored_count: got %v, want 1", resp["stored_count"])
	}
}

func TestHealth_MethodNotAllowed(t *testing.T) {
	h := api.New(newStore(), fixedClients(0), "")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/v1/health", nil))

	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status: got %d, want 405", rr.Code)
	}
}

// --- /api/v1/config ---------------------------------------------------------

func TestConfig_YAMLDocument(t *testing.T) {
	path := writeDoc(t, "cfg.yaml", "sampleRate: 25\nendpointUrl: https://collector.example.com\n")
	h := api.New(newStore(), fixedClients(0), path)

	rr := get(t, h, "/api/v1/config")
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rr.Code)
	}
	var doc map[string]interface{}
	decode(t, rr, &doc)

	if doc["sampleRate"].(float64) != 25 {
		t.Errorf("sampleRate: got %v, want 25", doc["sampleRate"])
	}
	if doc["endpointUrl"] != "https://collector.example.com" {
		t.Errorf("endpointUrl: got %v", doc["endpointUrl"])
	}
}

func TestConfig_JSONDocument(t *testing.T) {
	path := writeDoc(t, "cfg.json", `{"sampleRate": 10}`)
	h := api.New(newStore(), fixedClients(0), path)

	rr := get(t, h, "/api/v1/config")
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rr.Code)
	}
	var doc map[string]interface{}
	decode(t, rr, &doc)
	if doc["sampleRate"].(float64) != 10 {
		t.Errorf("sampleRate: got %v, want 10", doc["sampleRate"])
	}
}

func TestConfig_NoDocument(t *testing.T) {
	h := api.New(newStore(), fixedClients(0), "")
	rr := get(t, h, "/api/v1/config")

	if rr.Code != http.StatusNotFound {
		t.Fatalf("status: got %d, want 404", rr.Code)
	}
}

func TestConfig_UnreadableDocument(t *testing.T) {
	h := api.New(newStore(), fixedClients(0), filepath.Join(t.TempDir(), "missing.yaml"))
	rr := get(t, h, "/api/v1/config")

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status: got %d, want 500", rr.Code)
	}
}

// --- /api/v1/events ---------------------------------------------------------

func TestEvents(t *testing.T) {
	h := api.New(newStore(
		frame("inst-a", "cfgsync", 50),
		frame("inst-b", "tenant-cfg", 75),
	), fixedClients(0), "")

	rr := get(t, h, "/api/v1/events")
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rr.Code)
	}
	var events []api.EventResponse
	decode(t, rr, &events)

	if len(events) != 2 {
		t.Fatalf("events: got %d, want 2", len(events))
	}
	byName := map[string]api.EventResponse{}
	for _, e := range events {
		byName[e.Event] = e
	}
	if byName["cfgsync"].Origin != "inst-a" {
		t.Errorf("cfgsync origin: got %q, want inst-a", byName["cfgsync"].Origin)
	}
	if byName["tenant-cfg"].Config["sampleRate"].(float64) != 75 {
		t.Errorf("tenant-cfg sampleRate: got %v, want 75", byName["tenant-cfg"].Config["sampleRate"])
	}
}

func TestEvents_Empty(t *testing.T) {
	h := api.New(newStore(), fixedClients(0), "")
	rr := get(t, h, "/api/v1/events")

	var events []api.EventResponse
	decode(t, rr, &events)
	if len(events) != 0 {
		t.Errorf("events: got %d, want 0", len(events))
	}
}

// --- /api/v1/stats ----------------------------------------------------------

func TestStats(t *testing.T) {
	h := api.New(newStore(frame("a", "cfgsync", 1)), fixedClients(2), "")
	rr := get(t, h, "/api/v1/stats")

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rr.Code)
	}
	var resp api.StatsResponse
	decode(t, rr, &resp)

	if resp.Clients != 2 {
		t.Errorf("clients: got %d, want 2", resp.Clients)
	}
	if resp.StoredCount != 1 {
		t.Errorf("stored_count: got %d, want 1", resp.StoredCount)
	}
	if resp.UptimeSeconds < 0 {
		t.Errorf("uptime_seconds: got %d, want >= 0", resp.UptimeSeconds)
	}
}
