// Package api implements the HTTP REST API for cfgsync-relay.
//
// New(store, clients, docPath) returns an http.Handler that serves:
//
//	GET /api/v1/health  — liveness, connected client count, stored event count
//	GET /api/v1/config  — the canonical configuration document as JSON
//	GET /api/v1/events  — the latest stored frame per event name
//	GET /api/v1/stats   — relay counters for dashboards
//
// All endpoints:
//   - Respond with Content-Type: application/json
//   - Return 405 for non-GET methods
//
// JSON types are defined in types.go. No external HTTP framework is used.
package api
