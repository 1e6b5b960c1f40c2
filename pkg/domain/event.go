package domain

import "time"

// EventType classifies lifecycle events published during provisioning.
type EventType string

const (
	EventRequestQueued     EventType = "request.queued"
	EventRequestInProgress EventType = "request.in_progress"
	EventVPCCreated        EventType = "vpc.created"
	EventSubnetCreated     EventType = "subnet.created"
	EventRequestCreated    EventType = "request.created"
	EventRequestFailed     EventType = "request.failed"
)

// Event is a lifecycle notification for one provisioning request. Events are
// observational only; the request record remains the source of truth.
type Event struct {
	ID        string                 `json:"id"`
	Type      EventType              `json:"type"`
	RequestID string                 `json:"request_id"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data,omitempty"`
}
