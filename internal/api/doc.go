// Package api hosts the HTTP server, middleware, and REST handlers. Routes:
//   - POST /v1/analyses runs one search synchronously and returns the result.
//   - GET /healthz and /readyz for Kubernetes probes.
//   - GET /metrics for Prometheus scraping.
package api
