// Package websocket streams provisioning lifecycle events for a single
// request over a WebSocket connection.
//
// The stream is observational only: events may be dropped under load and
// the request record, read via the HTTP API, remains the source of truth.
package websocket
