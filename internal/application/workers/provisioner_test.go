package workers

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	cloudmemory "github.com/aescanero/netprov/pkg/adapters/cloud/memory"
	noopmetrics "github.com/aescanero/netprov/pkg/adapters/metrics/noop"
	queuememory "github.com/aescanero/netprov/pkg/adapters/queue/memory"
	storagememory "github.com/aescanero/netprov/pkg/adapters/storage/memory"
	"github.com/aescanero/netprov/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestProvisioner(t *testing.T) (*Provisioner, *storagememory.Store, *cloudmemory.Provider) {
	t.Helper()

	store := storagememory.NewStore()
	cloud := cloudmemory.NewProvider()

	p := NewProvisioner(
		store,
		cloud,
		queuememory.NewBus(),
		noopmetrics.NewCollector(),
		zap.NewNop(),
		50*time.Millisecond,
		10*time.Millisecond,
	)

	return p, store, cloud
}

// seedRequest writes a request record the way intake would, optionally with
// a status and checkpointed result left behind by an earlier worker run.
func seedRequest(t *testing.T, store *storagememory.Store, status domain.RequestState, result *domain.Result) *domain.Request {
	t.Helper()

	now := time.Now().UTC().Truncate(time.Second)
	req := &domain.Request{
		RequestID:      "req-1",
		Type:           domain.RecordTypeRequest,
		CreatedBy:      "alice",
		IdempotencyKey: "token-1",
		Status:         status,
		CreatedAt:      now,
		UpdatedAt:      now,
		Spec: domain.ProvisionSpec{
			VPC: domain.VPCSpec{CIDR: "10.0.0.0/16"},
			Subnets: []domain.SubnetSpec{
				{CIDR: "10.0.1.0/24", AZ: "zone-a"},
				{CIDR: "10.0.2.0/24", AZ: "zone-b", Name: "private"},
				{CIDR: "10.0.3.0/24", AZ: "zone-c"},
			},
		},
		Result: result,
	}

	require.NoError(t, store.Create(context.Background(), req, 24*time.Hour))
	return req
}

func TestHandleRequestProvisionsEverything(t *testing.T) {
	p, store, cloud := newTestProvisioner(t)
	ctx := context.Background()

	seedRequest(t, store, domain.StateQueued, nil)

	require.NoError(t, p.HandleRequest(ctx, "req-1"))

	req, err := store.Get(ctx, "req-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StateCreated, req.Status)
	require.NotNil(t, req.Result)
	assert.NotEmpty(t, req.Result.VPCID)
	assert.Equal(t, "10.0.0.0/16", req.Result.VPCCIDR)
	require.Len(t, req.Result.Subnets, 3)

	// Subnets are created sequentially in spec order.
	subnets := cloud.Subnets()
	require.Len(t, subnets, 3)
	assert.Equal(t, "10.0.1.0/24", subnets[0].CIDR)
	assert.Equal(t, "10.0.2.0/24", subnets[1].CIDR)
	assert.Equal(t, "10.0.3.0/24", subnets[2].CIDR)

	assert.Equal(t, 1, cloud.CreateNetworkCalls)
	assert.Equal(t, 3, cloud.CreateSubnetCalls)

	// Every resource carries the fixed tags plus the correlation tag; the
	// named subnet additionally carries its name tag.
	vpcTags := cloud.Tags(req.Result.VPCID)
	assert.Equal(t, "netprov", vpcTags["Project"])
	assert.Equal(t, "req-1", vpcTags["RequestId"])

	namedTags := cloud.Tags(req.Result.Subnets[1].SubnetID)
	assert.Equal(t, "req-1", namedTags["RequestId"])
	assert.Equal(t, "private", namedTags["SubnetName"])

	unnamedTags := cloud.Tags(req.Result.Subnets[0].SubnetID)
	assert.NotContains(t, unnamedTags, "SubnetName")
}

func TestHandleRequestTerminalStateIsNoOp(t *testing.T) {
	for _, status := range []domain.RequestState{domain.StateCreated, domain.StateFailed} {
		t.Run(string(status), func(t *testing.T) {
			p, store, cloud := newTestProvisioner(t)

			seedRequest(t, store, status, nil)

			require.NoError(t, p.HandleRequest(context.Background(), "req-1"))

			assert.Equal(t, 0, cloud.CreateNetworkCalls)
			assert.Equal(t, 0, cloud.CreateSubnetCalls)
			assert.Equal(t, 0, cloud.TagCalls)
			assert.Equal(t, 0, cloud.DescribeCalls)
		})
	}
}

func TestHandleRequestResumesAfterNetworkCheckpoint(t *testing.T) {
	p, store, cloud := newTestProvisioner(t)
	ctx := context.Background()

	// Crash happened after the network checkpoint, before any subnet. The
	// fake has to know the network so subnet creation can target it.
	vpcID, err := cloud.CreateNetwork(ctx, "10.0.0.0/16")
	require.NoError(t, err)
	cloud.CreateNetworkCalls = 0

	seedRequest(t, store, domain.StateInProgress, &domain.Result{
		VPCID:   vpcID,
		VPCCIDR: "10.0.0.0/16",
		Subnets: []domain.CreatedSubnet{},
	})

	require.NoError(t, p.HandleRequest(ctx, "req-1"))

	assert.Equal(t, 0, cloud.CreateNetworkCalls, "the network must not be created twice")
	assert.Equal(t, 3, cloud.CreateSubnetCalls)

	req, err := store.Get(ctx, "req-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StateCreated, req.Status)
	assert.Equal(t, vpcID, req.Result.VPCID)
	assert.Len(t, req.Result.Subnets, 3)
}

func TestHandleRequestResumesAfterPartialSubnets(t *testing.T) {
	p, store, cloud := newTestProvisioner(t)
	ctx := context.Background()

	vpcID, err := cloud.CreateNetwork(ctx, "10.0.0.0/16")
	require.NoError(t, err)
	cloud.CreateNetworkCalls = 0

	// Crash happened after 2 of 3 subnets were checkpointed.
	seedRequest(t, store, domain.StateInProgress, &domain.Result{
		VPCID:   vpcID,
		VPCCIDR: "10.0.0.0/16",
		Subnets: []domain.CreatedSubnet{
			{SubnetID: "subnet-a", CIDR: "10.0.1.0/24", AZ: "zone-a"},
			{SubnetID: "subnet-b", CIDR: "10.0.2.0/24", AZ: "zone-b", Name: "private"},
		},
	})

	require.NoError(t, p.HandleRequest(ctx, "req-1"))

	assert.Equal(t, 0, cloud.CreateNetworkCalls)
	assert.Equal(t, 1, cloud.CreateSubnetCalls, "only the missing subnet is created")

	created := cloud.Subnets()
	require.Len(t, created, 1)
	assert.Equal(t, "10.0.3.0/24", created[0].CIDR)
	assert.Equal(t, "zone-c", created[0].AZ)

	req, err := store.Get(ctx, "req-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StateCreated, req.Status)
	require.Len(t, req.Result.Subnets, 3)

	unique := req.Result.CreatedSet()
	assert.Len(t, unique, 3, "result subnets stay unique by (cidr, az)")
}

func TestHandleRequestNetworkFailureMarksFailedAndPropagates(t *testing.T) {
	p, store, cloud := newTestProvisioner(t)
	ctx := context.Background()

	cloud.NetworkErr = errors.New("CreateVpc rate exceeded")
	seedRequest(t, store, domain.StateQueued, nil)

	err := p.HandleRequest(ctx, "req-1")
	require.Error(t, err, "the failure must reach the queue boundary")

	req, getErr := store.Get(ctx, "req-1")
	require.NoError(t, getErr)
	assert.Equal(t, domain.StateFailed, req.Status)
	assert.Contains(t, req.ErrorMessage, "CreateVpc rate exceeded")

	// A later delivery against the FAILED request is a no-op.
	cloud.NetworkErr = nil
	require.NoError(t, p.HandleRequest(ctx, "req-1"))
	assert.Equal(t, 1, cloud.CreateNetworkCalls)
}

func TestHandleRequestSubnetFailureKeepsEarlierCheckpoints(t *testing.T) {
	p, store, cloud := newTestProvisioner(t)
	ctx := context.Background()

	cloud.FailSubnetCIDR = "10.0.2.0/24"
	cloud.SubnetErr = errors.New("InsufficientFreeAddressesInSubnet")
	seedRequest(t, store, domain.StateQueued, nil)

	err := p.HandleRequest(ctx, "req-1")
	require.Error(t, err)

	req, getErr := store.Get(ctx, "req-1")
	require.NoError(t, getErr)
	assert.Equal(t, domain.StateFailed, req.Status)
	assert.Contains(t, req.ErrorMessage, "InsufficientFreeAddressesInSubnet")

	// Subnet 1 is provably checkpointed, subnet 3 provably not attempted.
	require.NotNil(t, req.Result)
	require.Len(t, req.Result.Subnets, 1)
	assert.Equal(t, "10.0.1.0/24", req.Result.Subnets[0].CIDR)
	assert.Equal(t, 2, cloud.CreateSubnetCalls)
}

func TestHandleRequestSubnetCountGuard(t *testing.T) {
	p, store, cloud := newTestProvisioner(t)
	ctx := context.Background()

	subnets := make([]domain.SubnetSpec, domain.MaxSubnets+1)
	for i := range subnets {
		subnets[i] = domain.SubnetSpec{CIDR: fmt.Sprintf("10.0.%d.0/24", i), AZ: "zone-a"}
	}

	now := time.Now().UTC()
	require.NoError(t, store.Create(ctx, &domain.Request{
		RequestID: "req-big",
		Type:      domain.RecordTypeRequest,
		Status:    domain.StateQueued,
		CreatedAt: now,
		UpdatedAt: now,
		Spec: domain.ProvisionSpec{
			VPC:     domain.VPCSpec{CIDR: "10.0.0.0/16"},
			Subnets: subnets,
		},
	}, 24*time.Hour))

	// The guard fails the request without raising: redelivering an
	// oversized spec can never succeed.
	require.NoError(t, p.HandleRequest(ctx, "req-big"))

	req, err := store.Get(ctx, "req-big")
	require.NoError(t, err)
	assert.Equal(t, domain.StateFailed, req.Status)
	assert.Contains(t, req.ErrorMessage, "too many subnets")
	assert.Equal(t, 0, cloud.CreateNetworkCalls)
}

func TestHandleRequestReadinessTimeoutIsNotFatal(t *testing.T) {
	p, store, cloud := newTestProvisioner(t)
	ctx := context.Background()

	cloud.NetworkState = "pending"
	seedRequest(t, store, domain.StateQueued, nil)

	require.NoError(t, p.HandleRequest(ctx, "req-1"))

	req, err := store.Get(ctx, "req-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StateCreated, req.Status)
	assert.Greater(t, cloud.DescribeCalls, 0)
}

func TestHandleRequestUnknownRequest(t *testing.T) {
	p, _, _ := newTestProvisioner(t)

	err := p.HandleRequest(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
