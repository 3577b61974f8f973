// Package api holds the wire types of the agentswarm HTTP API.
//
// # API Overview
//
// The service exposes one conversational endpoint plus operational probes:
//   - POST /chat answers a question inside a conversation
//   - GET /health and GET /ready report store and collection readiness
//   - GET /healthz is a liveness probe
//   - GET /metrics serves Prometheus metrics
//
// Every JSON response uses the envelope defined in api/handlers. Failures
// carry the detailed error code together with one of four conditions:
// invalid_input, not_ready, upstream_timeout, routing_exhausted.
//
// # Base URL
//
// The default base URL for the API is:
//
//	http://localhost:8080
package api
