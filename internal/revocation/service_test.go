package revocation

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aci-systems/security-core/internal/types"
)

type fakeDelegationRegistry struct {
	edges map[string][]types.DelegationEdge
}

func (f *fakeDelegationRegistry) GetDelegationsFrom(_ context.Context, did string) ([]types.DelegationEdge, error) {
	return f.edges[did], nil
}

func (f *fakeDelegationRegistry) RevokeDelegation(_ context.Context, _, _ string) error {
	return nil
}

type fakeTokenService struct {
	counts map[string]int
}

func (f *fakeTokenService) InvalidateForAgent(_ context.Context, did string) (int, error) {
	return f.counts[did], nil
}

func newTestService(t *testing.T, opts ...Option) *Service {
	t.Helper()
	svc, err := NewService(DefaultConfig(), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close() })
	return svc
}

// P7 of spec.md §8: a revoked DID is observable immediately.
func TestRevokeAgent_StatusObservableImmediately(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	result, err := svc.RevokeAgent(ctx, Request{RevokedDID: "did:example:agent-1", Reason: "compromised"})
	require.NoError(t, err)
	assert.True(t, result.PropagationComplete)

	state, err := svc.CheckRevocationStatus(ctx, "did:example:agent-1", types.TierT2)
	require.NoError(t, err)
	assert.Equal(t, StatusRevoked, state.Status)
}

// scenario 5 of spec.md §8: recursive descendant revocation via BFS.
func TestRevokeAgent_RecursiveDescendants(t *testing.T) {
	delegations := &fakeDelegationRegistry{edges: map[string][]types.DelegationEdge{
		"did:example:root": {{DelegateDID: "did:example:child-1", DelegationID: "d1"}},
		"did:example:child-1": {
			{DelegateDID: "did:example:grandchild-1", DelegationID: "d2"},
			{DelegateDID: "did:example:grandchild-2", DelegationID: "d3"},
		},
	}}
	tokens := &fakeTokenService{counts: map[string]int{
		"did:example:root":         1,
		"did:example:child-1":      2,
		"did:example:grandchild-1": 1,
		"did:example:grandchild-2": 0,
	}}

	svc := newTestService(t, WithDelegationRegistry(delegations), WithTokenService(tokens))
	ctx := context.Background()

	result, err := svc.RevokeAgent(ctx, Request{
		RevokedDID:           "did:example:root",
		Reason:               "policy violation",
		TerminateDescendants: true,
	})
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"did:example:child-1", "did:example:grandchild-1", "did:example:grandchild-2"}, result.DescendantsRevoked)
	assert.Equal(t, 4, result.TokensInvalidated) // 1 + 2 + 1 + 0

	for _, did := range append([]string{"did:example:root"}, result.DescendantsRevoked...) {
		state, err := svc.SyncRevocationCheck(ctx, did)
		require.NoError(t, err)
		assert.Equal(t, StatusRevoked, state.Status)
	}
}

func TestCheckRevocationStatus_CacheRespectsSLA(t *testing.T) {
	clock := types.NewFakeClock(1_000_000)
	svc := newTestService(t, WithClock(clock))
	ctx := context.Background()

	state, err := svc.CheckRevocationStatus(ctx, "did:example:agent-2", types.TierT1)
	require.NoError(t, err)
	assert.Equal(t, StatusActive, state.Status)

	_, err = svc.RevokeAgent(ctx, Request{RevokedDID: "did:example:agent-2", Reason: "test"})
	require.NoError(t, err)

	// T1's SLA cache was invalidated by the revocation write, so the next
	// check observes the new status even within the TTL window.
	state, err = svc.CheckRevocationStatus(ctx, "did:example:agent-2", types.TierT1)
	require.NoError(t, err)
	assert.Equal(t, StatusRevoked, state.Status)
}

// spec.md §4.5 "Failure semantics": a descendant-propagation failure must
// not discard the already-committed principal revocation.
func TestRevokeAgent_PrincipalSucceedsDespiteDescendantFailure(t *testing.T) {
	failingDelegations := &fakeFailingDelegationRegistry{
		edges: map[string][]types.DelegationEdge{
			"did:example:root": {{DelegateDID: "did:example:child-1", DelegationID: "d1"}},
		},
	}

	svc := newTestService(t, WithDelegationRegistry(failingDelegations))
	ctx := context.Background()

	result, err := svc.RevokeAgent(ctx, Request{
		RevokedDID:           "did:example:root",
		Reason:               "policy violation",
		TerminateDescendants: true,
	})
	require.NoError(t, err)
	assert.False(t, result.PropagationComplete)
	assert.Equal(t, "did:example:root", result.RevokedDID)

	state, err := svc.SyncRevocationCheck(ctx, "did:example:root")
	require.NoError(t, err)
	assert.Equal(t, StatusRevoked, state.Status)
}

type fakeFailingDelegationRegistry struct {
	edges map[string][]types.DelegationEdge
}

func (f *fakeFailingDelegationRegistry) GetDelegationsFrom(_ context.Context, did string) ([]types.DelegationEdge, error) {
	return f.edges[did], nil
}

func (f *fakeFailingDelegationRegistry) RevokeDelegation(_ context.Context, _, _ string) error {
	return errors.New("delegation registry unavailable")
}

func TestRequiresSyncCheck_RequiredForTiersOverride(t *testing.T) {
	svc := newTestService(t)
	svc.cfg.RequiredForTiers = []types.Tier{types.TierT3}
	assert.True(t, svc.RequiresSyncCheck(types.TierT3, false))
	assert.False(t, svc.RequiresSyncCheck(types.TierT4, false)) // override replaces the default table entirely
	assert.True(t, svc.RequiresSyncCheck(types.TierT2, true))   // high-value still forces sync at T2+
}

func TestRequiresSyncCheck(t *testing.T) {
	svc := newTestService(t)
	assert.False(t, svc.RequiresSyncCheck(types.TierT1, false))
	assert.True(t, svc.RequiresSyncCheck(types.TierT2, true))
	assert.False(t, svc.RequiresSyncCheck(types.TierT1, true))
	assert.True(t, svc.RequiresSyncCheck(types.TierT4, false))
}

func TestOnRevocation_Subscriber(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	var events []types.AuditEvent
	unsub := svc.OnRevocation(func(evt types.AuditEvent) {
		events = append(events, evt)
	})
	defer unsub()

	_, err := svc.RevokeAgent(ctx, Request{RevokedDID: "did:example:agent-3", Reason: "test"})
	require.NoError(t, err)

	require.Len(t, events, 1)
	assert.Equal(t, "agent.revoked", events[0].Type)
}
