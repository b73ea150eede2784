package api

import "github.com/telemetrykit/cfgsync/pkg/types"

// HealthResponse is the payload for GET /api/v1/health.
type HealthResponse struct {
	Status      string `json:"status"`
	Clients     int    `json:"clients"`
	StoredCount int    `json:"stored_count"`
}

// EventResponse is one stored event in GET /api/v1/events.
type EventResponse struct {
	Event     string               `json:"event"`
	Origin    string               `json:"origin"`
	Config    types.ConfigSnapshot `json:"config"`
	UpdatedAt string               `json:"updated_at"` // RFC3339
}

// StatsResponse is the payload for GET /api/v1/stats.
type StatsResponse struct {
	Clients       int   `json:"clients"`
	StoredCount   int   `json:"stored_count"`
	UptimeSeconds int64 `json:"uptime_seconds"`
}

// errorResponse is a generic JSON error body.
type errorResponse struct {
	Error string `json:"error"`
}
