package domain

import (
	"time"
)

// RequestState is the lifecycle state of a provisioning request.
//
// States only advance forward: QUEUED -> IN_PROGRESS -> {CREATED, FAILED}.
// IN_PROGRESS is re-entrant under queue redelivery; CREATED and FAILED are
// terminal sinks.
type RequestState string

const (
	StateQueued     RequestState = "QUEUED"
	StateInProgress RequestState = "IN_PROGRESS"
	StateCreated    RequestState = "CREATED"
	StateFailed     RequestState = "FAILED"
)

// IsTerminal reports whether the state is a terminal sink.
func (s RequestState) IsTerminal() bool {
	return s == StateCreated || s == StateFailed
}

// Record type discriminators, persisted so readers can tell request records
// from idempotency lock records in the same store.
const (
	RecordTypeRequest = "VPC_REQUEST"
	RecordTypeLock    = "IDEMPOTENCY_LOCK"
)

// MaxSubnets is the fixed upper bound on subnets per request.
const MaxSubnets = 10

// VPCSpec describes the network container to provision.
type VPCSpec struct {
	CIDR string `json:"cidr"`
}

// SubnetSpec describes one child subnet of the network container.
type SubnetSpec struct {
	CIDR string `json:"cidr"`
	AZ   string `json:"az"`
	Name string `json:"name,omitempty"`
}

// ProvisionSpec is the validated provisioning request body. It is immutable
// once the Request record is created.
type ProvisionSpec struct {
	VPC     VPCSpec      `json:"vpc"`
	Subnets []SubnetSpec `json:"subnets"`
}

// CreatedSubnet records one subnet that has been created by the external API.
type CreatedSubnet struct {
	SubnetID string `json:"subnet_id"`
	CIDR     string `json:"cidr"`
	AZ       string `json:"az"`
	Name     string `json:"name,omitempty"`
}

// SubnetKey identifies a created subnet; result entries are unique by it.
type SubnetKey struct {
	CIDR string
	AZ   string
}

// Result is the accumulated partial outcome of provisioning. The subnets
// slice grows monotonically; it is the checkpoint that makes resumption safe.
type Result struct {
	VPCID   string          `json:"vpc_id,omitempty"`
	VPCCIDR string          `json:"vpc_cidr,omitempty"`
	Subnets []CreatedSubnet `json:"subnets"`
}

// CreatedSet returns the set of (cidr, az) pairs already provisioned.
func (r *Result) CreatedSet() map[SubnetKey]struct{} {
	set := make(map[SubnetKey]struct{}, len(r.Subnets))
	for _, s := range r.Subnets {
		set[SubnetKey{CIDR: s.CIDR, AZ: s.AZ}] = struct{}{}
	}
	return set
}

// Request is the durable record of one provisioning request.
//
// Spec never changes after creation; only the worker mutates Status, Result
// and ErrorMessage afterwards. Unknown persisted fields are ignored on read.
type Request struct {
	RequestID      string         `json:"request_id"`
	Type           string         `json:"type"`
	CreatedBy      string         `json:"created_by"`
	IdempotencyKey string         `json:"idempotency_key"`
	Status         RequestState   `json:"status"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	ExpiresAt      int64          `json:"ttl_epoch"`
	Spec           ProvisionSpec  `json:"request"`
	Result         *Result        `json:"result,omitempty"`
	ErrorMessage   string         `json:"error_message,omitempty"`
}

// RequestUpdate is a partial update applied to a Request record. Only
// non-nil fields are merged; the store always stamps updated_at. Callers
// checkpoint by passing the full grown Result value on each update.
type RequestUpdate struct {
	Status       *RequestState
	Result       *Result
	ErrorMessage *string
}

// Lock is the write-once idempotency lock row. The lock key is derived from
// the caller identity and idempotency token; the identity itself is never
// stored on the lock.
type Lock struct {
	OwnerRequestID string    `json:"lock_request_id"`
	Type           string    `json:"type"`
	CreatedAt      time.Time `json:"created_at"`
	ExpiresAt      int64     `json:"ttl_epoch"`
}

// Page is one page of listed requests plus an opaque continuation token.
// An empty NextToken means the listing is exhausted.
type Page struct {
	Items     []*Request `json:"items"`
	NextToken string     `json:"next_token,omitempty"`
}
