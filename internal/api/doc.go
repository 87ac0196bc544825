// Package api hosts the HTTP parse service. Notable routes:
//   - GET /healthz and /readyz for Kubernetes probes.
//   - GET /metrics for Prometheus scraping.
//   - POST /v1/events streams the parse events of the request body.
//   - POST /v1/copy re-serializes the request body, optionally pruned.
//   - GET /v1/sessions and /v1/sessions/{session_id} read session history via
//     the SessionRepository interface.
package api
