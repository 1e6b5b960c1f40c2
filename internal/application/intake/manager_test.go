package intake

import (
	"context"
	"sync"
	"testing"
	"time"

	noopmetrics "github.com/aescanero/netprov/pkg/adapters/metrics/noop"
	queuememory "github.com/aescanero/netprov/pkg/adapters/queue/memory"
	storagememory "github.com/aescanero/netprov/pkg/adapters/storage/memory"
	"github.com/aescanero/netprov/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestManager(t *testing.T) (*Manager, *storagememory.Store, *queuememory.Bus) {
	t.Helper()

	store := storagememory.NewStore()
	bus := queuememory.NewBus()

	mgr := NewManager(
		store,
		store,
		bus,
		bus,
		noopmetrics.NewCollector(),
		NewValidator(),
		zap.NewNop(),
		24*time.Hour,
	)

	return mgr, store, bus
}

func validSpec() *domain.ProvisionSpec {
	return &domain.ProvisionSpec{
		VPC: domain.VPCSpec{CIDR: "10.0.0.0/16"},
		Subnets: []domain.SubnetSpec{
			{CIDR: "10.0.1.0/24", AZ: "zone-a"},
			{CIDR: "10.0.2.0/24", AZ: "zone-b", Name: "private"},
		},
	}
}

func TestSubmitAcceptsFreshRequest(t *testing.T) {
	mgr, store, bus := newTestManager(t)
	ctx := context.Background()

	outcome, err := mgr.Submit(ctx, "alice", "token-1", validSpec())
	require.NoError(t, err)

	assert.NotEmpty(t, outcome.RequestID)
	assert.Equal(t, domain.StateQueued, outcome.Status)
	assert.False(t, outcome.Replayed)

	req, err := store.Get(ctx, outcome.RequestID)
	require.NoError(t, err)
	assert.Equal(t, domain.RecordTypeRequest, req.Type)
	assert.Equal(t, "alice", req.CreatedBy)
	assert.Equal(t, "token-1", req.IdempotencyKey)
	assert.Equal(t, domain.StateQueued, req.Status)
	assert.Equal(t, "10.0.0.0/16", req.Spec.VPC.CIDR)

	assert.Equal(t, 1, bus.Depth())
}

func TestSubmitRejectsInvalidSpec(t *testing.T) {
	mgr, _, bus := newTestManager(t)

	_, err := mgr.Submit(context.Background(), "alice", "token-1", &domain.ProvisionSpec{
		VPC: domain.VPCSpec{CIDR: "10.0.0.0/16"},
		Subnets: []domain.SubnetSpec{
			{CIDR: "10.0.1.0/24", AZ: "zone-a"},
			{CIDR: "10.0.1.128/25", AZ: "zone-a"},
		},
	})
	require.Error(t, err)
	assert.True(t, domain.IsValidation(err))

	// Nothing was locked, stored or enqueued.
	page, err := mgr.ListRequests(context.Background(), "", 10)
	require.NoError(t, err)
	assert.Empty(t, page.Items)
	assert.Equal(t, 0, bus.Depth())
}

func TestSubmitConcurrentIdenticalCallersDeduplicate(t *testing.T) {
	mgr, _, bus := newTestManager(t)
	ctx := context.Background()

	const callers = 16

	var wg sync.WaitGroup
	outcomes := make([]*SubmitOutcome, callers)
	errs := make([]error, callers)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			outcomes[i], errs[i] = mgr.Submit(ctx, "alice", "token-1", validSpec())
		}(i)
	}
	wg.Wait()

	winners := 0
	requestID := ""
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		if requestID == "" {
			requestID = outcomes[i].RequestID
		}
		assert.Equal(t, requestID, outcomes[i].RequestID, "all callers must see the same request id")
		if !outcomes[i].Replayed {
			winners++
		}
	}
	assert.Equal(t, 1, winners, "exactly one caller wins the conditional write")

	// Exactly one record persisted and one dispatch enqueued.
	page, err := mgr.ListRequests(ctx, "", 50)
	require.NoError(t, err)
	assert.Len(t, page.Items, 1)
	assert.Equal(t, 1, bus.Depth())
}

func TestSubmitDistinctTokensCreateDistinctRequests(t *testing.T) {
	mgr, _, _ := newTestManager(t)
	ctx := context.Background()

	a, err := mgr.Submit(ctx, "alice", "token-1", validSpec())
	require.NoError(t, err)
	b, err := mgr.Submit(ctx, "alice", "token-2", validSpec())
	require.NoError(t, err)
	c, err := mgr.Submit(ctx, "bob", "token-1", validSpec())
	require.NoError(t, err)

	assert.NotEqual(t, a.RequestID, b.RequestID)
	assert.NotEqual(t, a.RequestID, c.RequestID)
	assert.NotEqual(t, b.RequestID, c.RequestID)
}

func TestSubmitReplayAfterTerminalState(t *testing.T) {
	mgr, store, bus := newTestManager(t)
	ctx := context.Background()

	outcome, err := mgr.Submit(ctx, "alice", "token-1", validSpec())
	require.NoError(t, err)

	// The worker finished in the meantime.
	created := domain.StateCreated
	result := &domain.Result{
		VPCID:   "vpc-0001",
		VPCCIDR: "10.0.0.0/16",
		Subnets: []domain.CreatedSubnet{
			{SubnetID: "subnet-0001", CIDR: "10.0.1.0/24", AZ: "zone-a"},
			{SubnetID: "subnet-0002", CIDR: "10.0.2.0/24", AZ: "zone-b", Name: "private"},
		},
	}
	_, err = store.Update(ctx, outcome.RequestID, domain.RequestUpdate{Status: &created, Result: result})
	require.NoError(t, err)

	depthBefore := bus.Depth()

	replay, err := mgr.Submit(ctx, "alice", "token-1", validSpec())
	require.NoError(t, err)

	assert.True(t, replay.Replayed)
	assert.Equal(t, outcome.RequestID, replay.RequestID)
	assert.Equal(t, domain.StateCreated, replay.Status)
	require.NotNil(t, replay.Result)
	assert.Equal(t, "vpc-0001", replay.Result.VPCID)
	assert.Len(t, replay.Result.Subnets, 2)

	// The replay never re-enqueues.
	assert.Equal(t, depthBefore, bus.Depth())
}

func TestSubmitReplayBeforeRequestVisible(t *testing.T) {
	mgr, store, _ := newTestManager(t)
	ctx := context.Background()

	// The winner's lock write is visible but its request write is not yet.
	lockKey := deriveLockKey("alice", "token-1")
	err := store.Acquire(ctx, lockKey, &domain.Lock{
		OwnerRequestID: "winner-request-id",
		Type:           domain.RecordTypeLock,
		CreatedAt:      time.Now(),
	}, time.Hour)
	require.NoError(t, err)

	outcome, err := mgr.Submit(ctx, "alice", "token-1", validSpec())
	require.NoError(t, err)

	assert.True(t, outcome.Replayed)
	assert.Equal(t, "winner-request-id", outcome.RequestID)
	assert.Equal(t, domain.StateQueued, outcome.Status)
	assert.Nil(t, outcome.Result)
}

func TestSubmitLockUnreadable(t *testing.T) {
	mgr, store, _ := newTestManager(t)
	ctx := context.Background()

	// Lock row exists but carries no owner request id: a store anomaly.
	lockKey := deriveLockKey("alice", "token-1")
	err := store.Acquire(ctx, lockKey, &domain.Lock{Type: domain.RecordTypeLock}, time.Hour)
	require.NoError(t, err)

	_, err = mgr.Submit(ctx, "alice", "token-1", validSpec())
	assert.ErrorIs(t, err, domain.ErrLockUnreadable)
}

func TestGetRequest(t *testing.T) {
	mgr, _, _ := newTestManager(t)
	ctx := context.Background()

	outcome, err := mgr.Submit(ctx, "alice", "token-1", validSpec())
	require.NoError(t, err)

	req, err := mgr.GetRequest(ctx, outcome.RequestID)
	require.NoError(t, err)
	assert.Equal(t, outcome.RequestID, req.RequestID)

	_, err = mgr.GetRequest(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestListRequestsCursorWalkVisitsEveryRecordOnce(t *testing.T) {
	mgr, _, _ := newTestManager(t)
	ctx := context.Background()

	const total = 5
	submitted := make(map[string]bool, total)
	for i := 0; i < total; i++ {
		outcome, err := mgr.Submit(ctx, "alice", "token-"+string(rune('a'+i)), validSpec())
		require.NoError(t, err)
		submitted[outcome.RequestID] = false
	}

	cursor := ""
	pages := 0
	for {
		page, err := mgr.ListRequests(ctx, cursor, 1)
		require.NoError(t, err)
		pages++
		require.LessOrEqual(t, pages, total+1, "cursor walk did not terminate")

		for _, item := range page.Items {
			seen, ok := submitted[item.RequestID]
			require.True(t, ok, "listed an unknown request %s", item.RequestID)
			require.False(t, seen, "listed request %s twice", item.RequestID)
			submitted[item.RequestID] = true
		}

		if page.NextToken == "" {
			break
		}
		cursor = page.NextToken
	}

	for id, seen := range submitted {
		assert.True(t, seen, "request %s was never listed", id)
	}
}

func TestDeriveLockKeyIsDeterministicAndUnambiguous(t *testing.T) {
	assert.Equal(t, deriveLockKey("alice", "tok"), deriveLockKey("alice", "tok"))
	assert.NotEqual(t, deriveLockKey("alice", "tok"), deriveLockKey("bob", "tok"))
	assert.NotEqual(t, deriveLockKey("alice", "tok"), deriveLockKey("alice", "tok2"))

	// The separator keeps (identity, token) concatenations from colliding.
	assert.NotEqual(t, deriveLockKey("ab", "c"), deriveLockKey("a", "bc"))

	// The identity never appears verbatim in the key.
	assert.NotContains(t, deriveLockKey("alice", "tok"), "alice")
}
