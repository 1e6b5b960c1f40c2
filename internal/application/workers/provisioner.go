package workers

import (
	"context"
	"fmt"
	"time"

	"github.com/aescanero/netprov/pkg/domain"
	"github.com/aescanero/netprov/pkg/ports"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// networkStateAvailable is the provider state that ends the readiness poll.
const networkStateAvailable = "available"

// fixedTags are applied to every resource this service creates, alongside a
// RequestId correlation tag.
var fixedTags = map[string]string{
	"Name":    "netprov",
	"Project": "netprov",
}

// Provisioner drives the resumable provisioning state machine for one
// request at a time. It is safe to invoke repeatedly for the same request
// id: terminal states short-circuit, and every completed external call is
// checkpointed into the request record before the next one starts.
type Provisioner struct {
	store   ports.RequestStore
	cloud   ports.CloudProvider
	events  ports.EventBus
	metrics ports.MetricsCollector
	logger  *zap.Logger

	readyTimeout  time.Duration
	readyInterval time.Duration
}

// NewProvisioner creates a new provisioner
func NewProvisioner(
	store ports.RequestStore,
	cloud ports.CloudProvider,
	events ports.EventBus,
	metrics ports.MetricsCollector,
	logger *zap.Logger,
	readyTimeout, readyInterval time.Duration,
) *Provisioner {
	return &Provisioner{
		store:         store,
		cloud:         cloud,
		events:        events,
		metrics:       metrics,
		logger:        logger,
		readyTimeout:  readyTimeout,
		readyInterval: readyInterval,
	}
}

// HandleRequest processes one delivered request id.
//
// A nil return acknowledges the delivery. A non-nil return propagates the
// failure to the queue boundary so its redelivery policy decides what
// happens next; checkpointed progress stays intact for that resumption.
func (p *Provisioner) HandleRequest(ctx context.Context, requestID string) error {
	req, err := p.store.Get(ctx, requestID)
	if err != nil {
		return fmt.Errorf("failed to load request %s: %w", requestID, err)
	}
	if req.Type != domain.RecordTypeRequest {
		return fmt.Errorf("not a %s record: %s", domain.RecordTypeRequest, requestID)
	}

	// Terminal states are idempotent sinks: duplicate or late deliveries
	// must perform zero external calls.
	if req.Status.IsTerminal() {
		p.logger.Debug("request already terminal, skipping",
			zap.String("request_id", requestID),
			zap.String("status", string(req.Status)))
		return nil
	}

	// Defense in depth: the validator enforced this at intake, but the
	// record is the worker's only input.
	if len(req.Spec.Subnets) > domain.MaxSubnets {
		msg := fmt.Sprintf("too many subnets: %d (max %d)", len(req.Spec.Subnets), domain.MaxSubnets)
		p.markFailed(ctx, requestID, msg)
		p.metrics.RecordProvisionCompleted(string(domain.StateFailed), 0)
		return nil
	}

	// Recover partial progress from the last checkpoint.
	result := &domain.Result{}
	if req.Result != nil {
		copied := *req.Result
		result = &copied
	}
	created := result.CreatedSet()

	start := time.Now()

	inProgress := domain.StateInProgress
	if _, err := p.store.Update(ctx, requestID, domain.RequestUpdate{Status: &inProgress}); err != nil {
		return fmt.Errorf("failed to mark request in progress: %w", err)
	}
	p.publishEvent(ctx, requestID, domain.EventRequestInProgress, nil)

	if result.VPCID == "" {
		if err := p.createNetwork(ctx, req, result); err != nil {
			return p.failAndPropagate(ctx, requestID, start, err)
		}
	}

	for _, s := range req.Spec.Subnets {
		key := domain.SubnetKey{CIDR: s.CIDR, AZ: s.AZ}
		if _, done := created[key]; done {
			// Already checkpointed by an earlier run; a rerun must never
			// re-create a recorded subnet.
			continue
		}
		if err := p.createSubnet(ctx, req, result, s); err != nil {
			return p.failAndPropagate(ctx, requestID, start, err)
		}
		created[key] = struct{}{}
	}

	createdState := domain.StateCreated
	if _, err := p.store.Update(ctx, requestID, domain.RequestUpdate{Status: &createdState, Result: result}); err != nil {
		return p.failAndPropagate(ctx, requestID, start, err)
	}

	p.metrics.RecordProvisionCompleted(string(domain.StateCreated), time.Since(start))
	p.publishEvent(ctx, requestID, domain.EventRequestCreated, map[string]interface{}{
		"vpc_id":  result.VPCID,
		"subnets": len(result.Subnets),
	})

	p.logger.Info("request provisioned",
		zap.String("request_id", requestID),
		zap.String("vpc_id", result.VPCID),
		zap.Int("subnets", len(result.Subnets)),
		zap.Duration("duration", time.Since(start)))

	return nil
}

// createNetwork provisions the network container, tags it, waits for
// readiness and checkpoints the result before any subnet is attempted.
func (p *Provisioner) createNetwork(ctx context.Context, req *domain.Request, result *domain.Result) error {
	cidr := req.Spec.VPC.CIDR

	vpcID, err := p.cloud.CreateNetwork(ctx, cidr)
	if err != nil {
		return fmt.Errorf("failed to create network %s: %w", cidr, err)
	}

	if err := p.cloud.TagResources(ctx, []string{vpcID}, requestTags(req.RequestID)); err != nil {
		return fmt.Errorf("failed to tag network %s: %w", vpcID, err)
	}

	if err := p.waitNetworkAvailable(ctx, vpcID); err != nil {
		return fmt.Errorf("failed readiness poll for network %s: %w", vpcID, err)
	}

	result.VPCID = vpcID
	result.VPCCIDR = cidr
	if result.Subnets == nil {
		result.Subnets = []domain.CreatedSubnet{}
	}

	// Checkpoint before the first subnet: this write is what prevents a
	// second network after a crash.
	if _, err := p.store.Update(ctx, req.RequestID, domain.RequestUpdate{Result: result}); err != nil {
		return fmt.Errorf("failed to checkpoint network %s: %w", vpcID, err)
	}

	p.metrics.RecordNetworkCreated()
	p.publishEvent(ctx, req.RequestID, domain.EventVPCCreated, map[string]interface{}{
		"vpc_id":   vpcID,
		"vpc_cidr": cidr,
	})

	p.logger.Info("network created",
		zap.String("request_id", req.RequestID),
		zap.String("vpc_id", vpcID),
		zap.String("vpc_cidr", cidr))

	return nil
}

// createSubnet provisions one subnet, tags it, appends it to the result and
// checkpoints before the next subnet is attempted.
func (p *Provisioner) createSubnet(ctx context.Context, req *domain.Request, result *domain.Result, s domain.SubnetSpec) error {
	subnetID, err := p.cloud.CreateSubnet(ctx, result.VPCID, s.CIDR, s.AZ)
	if err != nil {
		return fmt.Errorf("failed to create subnet %s in %s: %w", s.CIDR, s.AZ, err)
	}

	if err := p.cloud.TagResources(ctx, []string{subnetID}, requestTags(req.RequestID)); err != nil {
		return fmt.Errorf("failed to tag subnet %s: %w", subnetID, err)
	}
	if s.Name != "" {
		if err := p.cloud.TagResources(ctx, []string{subnetID}, map[string]string{"SubnetName": s.Name}); err != nil {
			return fmt.Errorf("failed to tag subnet %s name: %w", subnetID, err)
		}
	}

	result.Subnets = append(result.Subnets, domain.CreatedSubnet{
		SubnetID: subnetID,
		CIDR:     s.CIDR,
		AZ:       s.AZ,
		Name:     s.Name,
	})

	if _, err := p.store.Update(ctx, req.RequestID, domain.RequestUpdate{Result: result}); err != nil {
		return fmt.Errorf("failed to checkpoint subnet %s: %w", subnetID, err)
	}

	p.metrics.RecordSubnetCreated()
	p.publishEvent(ctx, req.RequestID, domain.EventSubnetCreated, map[string]interface{}{
		"subnet_id": subnetID,
		"cidr":      s.CIDR,
		"az":        s.AZ,
	})

	p.logger.Info("subnet created",
		zap.String("request_id", req.RequestID),
		zap.String("subnet_id", subnetID),
		zap.String("cidr", s.CIDR),
		zap.String("az", s.AZ))

	return nil
}

// waitNetworkAvailable polls the provider until the network container
// reports available, for at most readyTimeout. Timing out is not fatal and
// subnet creation proceeds regardless; a failing describe call is a
// provisioning failure like any other external-call error.
func (p *Provisioner) waitNetworkAvailable(ctx context.Context, vpcID string) error {
	deadline := time.Now().Add(p.readyTimeout)

	for time.Now().Before(deadline) {
		state, err := p.cloud.DescribeNetwork(ctx, vpcID)
		if err != nil {
			return err
		}
		if state == networkStateAvailable {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.readyInterval):
		}
	}

	p.logger.Warn("network not available before poll deadline",
		zap.String("vpc_id", vpcID),
		zap.Duration("timeout", p.readyTimeout))
	return nil
}

// failAndPropagate persists the failure verbatim and returns the cause so
// the queue's redelivery policy governs what happens next.
func (p *Provisioner) failAndPropagate(ctx context.Context, requestID string, start time.Time, cause error) error {
	p.markFailed(ctx, requestID, cause.Error())
	p.metrics.RecordProvisionCompleted(string(domain.StateFailed), time.Since(start))
	return cause
}

// markFailed transitions the request to FAILED with the error text.
func (p *Provisioner) markFailed(ctx context.Context, requestID string, msg string) {
	failed := domain.StateFailed
	if _, err := p.store.Update(ctx, requestID, domain.RequestUpdate{Status: &failed, ErrorMessage: &msg}); err != nil {
		p.logger.Error("failed to mark request failed",
			zap.String("request_id", requestID),
			zap.Error(err))
	}

	p.publishEvent(ctx, requestID, domain.EventRequestFailed, map[string]interface{}{
		"error": msg,
	})

	p.logger.Error("request failed",
		zap.String("request_id", requestID),
		zap.String("error", msg))
}

// publishEvent publishes a lifecycle event, best-effort.
func (p *Provisioner) publishEvent(ctx context.Context, requestID string, eventType domain.EventType, data map[string]interface{}) {
	event := domain.Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		RequestID: requestID,
		Timestamp: time.Now(),
		Data:      data,
	}

	if err := p.events.Publish(ctx, event); err != nil {
		p.logger.Error("failed to publish event",
			zap.String("request_id", requestID),
			zap.String("event_type", string(eventType)),
			zap.Error(err))
	}
}

// requestTags returns the fixed tags plus the request correlation tag.
func requestTags(requestID string) map[string]string {
	tags := make(map[string]string, len(fixedTags)+1)
	for k, v := range fixedTags {
		tags[k] = v
	}
	tags["RequestId"] = requestID
	return tags
}
