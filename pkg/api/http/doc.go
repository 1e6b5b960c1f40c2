// Package http provides the HTTP API for the provisioning service.
//
// Endpoints:
//   - POST /api/v1/vpcs            submit a provisioning request (idempotent)
//   - GET  /api/v1/vpcs            list requests with cursor pagination
//   - GET  /api/v1/vpcs/:id        get one request record
//   - GET  /health                 health check
//   - GET  /metrics                Prometheus metrics
//
// Callers are identified by the X-Auth-Subject header, injected by the
// fronting authenticator; claims extraction itself lives outside this
// service. Submissions additionally require an Idempotency-Key header.
package http
