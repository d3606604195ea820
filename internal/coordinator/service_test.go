package coordinator

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aci-systems/security-core/internal/dpop"
	"github.com/aci-systems/security-core/internal/introspection"
	"github.com/aci-systems/security-core/internal/lifetime"
	"github.com/aci-systems/security-core/internal/pairwise"
	"github.com/aci-systems/security-core/internal/revocation"
	"github.com/aci-systems/security-core/internal/types"
)

type fakeIntrospectionEndpoint struct {
	result types.IntrospectionResult
}

func (f *fakeIntrospectionEndpoint) Introspect(_ context.Context, _ string) (types.IntrospectionResult, error) {
	return f.result, nil
}

func buildService(t *testing.T, clock types.Clock, revSvc *revocation.Service) *Service {
	t.Helper()

	dpopSvc, err := dpop.NewService(dpop.DefaultConfig(), dpop.WithClock(clock))
	require.NoError(t, err)
	t.Cleanup(func() { _ = dpopSvc.Close() })

	lifetimeSvc, err := lifetime.NewService(lifetime.DefaultConfig(), lifetime.WithClock(clock))
	require.NoError(t, err)

	if revSvc == nil {
		var err error
		revSvc, err = revocation.NewService(revocation.DefaultConfig(), revocation.WithClock(clock))
		require.NoError(t, err)
		t.Cleanup(func() { _ = revSvc.Close() })
	}

	introspectionSvc, err := introspection.NewService(introspection.DefaultConfig(), &fakeIntrospectionEndpoint{result: types.IntrospectionResult{Active: true}}, introspection.WithClock(clock))
	require.NoError(t, err)
	t.Cleanup(func() { _ = introspectionSvc.Close() })

	svc, err := NewService(Config{
		DPoP:          dpopSvc,
		Revocation:    revSvc,
		Lifetime:      lifetimeSvc,
		Introspection: introspectionSvc,
	}, WithClock(clock))
	require.NoError(t, err)
	return svc
}

func validAccessClaims(clock *types.FakeClock) types.TokenClaims {
	now := clock.Now()
	return types.TokenClaims{IssuedAt: now - 10, ExpiresAt: now + 290}
}

func TestAdmit_T0_AllowsLongLivedToken(t *testing.T) {
	clock := types.NewFakeClock(1_700_000_000)
	svc := buildService(t, clock, nil)

	decision := svc.Admit(context.Background(), Request{
		AgentDID:          "did:example:agent",
		TrustTier:         types.TierT0,
		Action:            types.ActionRequest{Method: "GET", URI: "https://api.example.com/v1/x"},
		AccessTokenClaims: types.TokenClaims{IssuedAt: 1_700_000_000, ExpiresAt: 1_700_003_600},
	})
	assert.True(t, decision.Valid)
}

// scenario 4 of spec.md §8.
func TestAdmit_T2_RejectsTTLTooLong(t *testing.T) {
	clock := types.NewFakeClock(1_700_000_000)
	svc := buildService(t, clock, nil)

	decision := svc.Admit(context.Background(), Request{
		AgentDID:          "did:example:agent",
		TrustTier:         types.TierT2,
		Action:            types.ActionRequest{Method: "GET", URI: "https://api.example.com/v1/x"},
		AccessTokenClaims: types.TokenClaims{IssuedAt: 1_700_000_000, ExpiresAt: 1_700_003_600},
	})
	require.False(t, decision.Valid)
	require.Len(t, decision.Errors, 1)
	assert.Equal(t, "TTL_TOO_LONG", decision.Errors[0].Code)
}

func TestAdmit_T2_RequiresDPoP(t *testing.T) {
	clock := types.NewFakeClock(1_700_000_000)
	svc := buildService(t, clock, nil)

	decision := svc.Admit(context.Background(), Request{
		AgentDID:          "did:example:agent",
		TrustTier:         types.TierT2,
		Action:            types.ActionRequest{Method: "GET", URI: "https://api.example.com/v1/x"},
		AccessTokenClaims: validAccessClaims(clock),
	})
	require.False(t, decision.Valid)
	assert.Equal(t, "dpop", decision.Errors[0].Component)
}

func TestAdmit_T2_SucceedsWithValidDPoP(t *testing.T) {
	clock := types.NewFakeClock(1_700_000_000)
	dpopSvc, err := dpop.NewService(dpop.DefaultConfig(), dpop.WithClock(clock))
	require.NoError(t, err)
	defer dpopSvc.Close()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	proof, err := dpopSvc.GenerateProof(key, "GET", "https://api.example.com/v1/x", "")
	require.NoError(t, err)

	lifetimeSvc, err := lifetime.NewService(lifetime.DefaultConfig(), lifetime.WithClock(clock))
	require.NoError(t, err)
	revSvc, err := revocation.NewService(revocation.DefaultConfig(), revocation.WithClock(clock))
	require.NoError(t, err)
	defer revSvc.Close()
	introspectionSvc, err := introspection.NewService(introspection.DefaultConfig(), &fakeIntrospectionEndpoint{result: types.IntrospectionResult{Active: true}}, introspection.WithClock(clock))
	require.NoError(t, err)
	defer introspectionSvc.Close()

	svc, err := NewService(Config{DPoP: dpopSvc, Revocation: revSvc, Lifetime: lifetimeSvc, Introspection: introspectionSvc}, WithClock(clock))
	require.NoError(t, err)

	decision := svc.Admit(context.Background(), Request{
		AgentDID:          "did:example:agent",
		TrustTier:         types.TierT2,
		Action:            types.ActionRequest{Method: "GET", URI: "https://api.example.com/v1/x"},
		AccessTokenClaims: validAccessClaims(clock),
		DPoPProof:         proof,
	})
	assert.True(t, decision.Valid)
}

// scenario 6 of spec.md §8: a high-value action at T2 forces a sync
// revocation check (bypassing any cached "active" staleness window) and
// denies once the registry reports the DID revoked.
func TestAdmit_HighValueSyncCheckCatchesRevocation(t *testing.T) {
	clock := types.NewFakeClock(1_700_000_000)
	revSvc, err := revocation.NewService(revocation.DefaultConfig(), revocation.WithClock(clock))
	require.NoError(t, err)
	defer revSvc.Close()

	ctx := context.Background()
	_, err = revSvc.CheckRevocationStatus(ctx, "did:example:agent", types.TierT2) // warms the cache as active
	require.NoError(t, err)
	_, err = revSvc.RevokeAgent(ctx, revocation.Request{RevokedDID: "did:example:agent", Reason: "incident"})
	require.NoError(t, err)

	dpopSvc, err := dpop.NewService(dpop.DefaultConfig(), dpop.WithClock(clock))
	require.NoError(t, err)
	defer dpopSvc.Close()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	proof, err := dpopSvc.GenerateProof(key, "GET", "https://api.example.com/v1/x", "")
	require.NoError(t, err)

	lifetimeSvc, err := lifetime.NewService(lifetime.DefaultConfig(), lifetime.WithClock(clock))
	require.NoError(t, err)
	introspectionSvc, err := introspection.NewService(introspection.DefaultConfig(), &fakeIntrospectionEndpoint{result: types.IntrospectionResult{Active: true}}, introspection.WithClock(clock))
	require.NoError(t, err)
	defer introspectionSvc.Close()

	svc, err := NewService(Config{DPoP: dpopSvc, Revocation: revSvc, Lifetime: lifetimeSvc, Introspection: introspectionSvc}, WithClock(clock))
	require.NoError(t, err)

	decision := svc.Admit(ctx, Request{
		AgentDID:  "did:example:agent",
		TrustTier: types.TierT2,
		Action:    types.ActionRequest{Method: "GET", URI: "https://api.example.com/v1/x", IsHighValue: true},
		AccessTokenClaims: types.TokenClaims{
			IssuedAt: clock.Now() - 10, ExpiresAt: clock.Now() + 50, // within the 60s high-value ceiling
		},
		DPoPProof: proof,
	})
	require.False(t, decision.Valid)
	assert.Equal(t, "AGENT_REVOKED", decision.Errors[0].Code)
}

func TestAdmit_PairwiseAdvisoryWarning(t *testing.T) {
	clock := types.NewFakeClock(1_700_000_000)
	svc := buildService(t, clock, nil)

	decision := svc.Admit(context.Background(), Request{
		AgentDID:          "did:example:agent",
		TrustTier:         types.TierT0,
		Action:            types.ActionRequest{Method: "GET", URI: "https://api.example.com/v1/x", DataClassification: "pii"},
		AccessTokenClaims: types.TokenClaims{IssuedAt: 1_700_000_000, ExpiresAt: 1_700_003_600},
		PairwiseDID:       "",
	})
	assert.True(t, decision.Valid)
	assert.NotEmpty(t, decision.Warnings)
}

// phase 7 actually validates a presented pairwise DID against the
// derivation registry, not just against the master DID by string comparison.
func TestAdmit_PairwiseValidatedAgainstRegistry(t *testing.T) {
	clock := types.NewFakeClock(1_700_000_000)

	pairwiseSvc, err := pairwise.NewService(pairwise.DefaultConfig(), pairwise.WithClock(clock))
	require.NoError(t, err)
	defer pairwiseSvc.Close()

	ctx := context.Background()
	derived, err := pairwiseSvc.DerivePairwiseDID(ctx, "did:example:agent", "did:example:rp", "")
	require.NoError(t, err)

	dpopSvc, err := dpop.NewService(dpop.DefaultConfig(), dpop.WithClock(clock))
	require.NoError(t, err)
	defer dpopSvc.Close()
	lifetimeSvc, err := lifetime.NewService(lifetime.DefaultConfig(), lifetime.WithClock(clock))
	require.NoError(t, err)
	revSvc, err := revocation.NewService(revocation.DefaultConfig(), revocation.WithClock(clock))
	require.NoError(t, err)
	defer revSvc.Close()

	svc, err := NewService(Config{DPoP: dpopSvc, Lifetime: lifetimeSvc, Revocation: revSvc, Pairwise: pairwiseSvc}, WithClock(clock))
	require.NoError(t, err)

	baseReq := Request{
		AgentDID:          "did:example:agent",
		TrustTier:         types.TierT0,
		Action:            types.ActionRequest{Method: "GET", URI: "https://api.example.com/v1/x", DataClassification: "pii"},
		AccessTokenClaims: types.TokenClaims{IssuedAt: 1_700_000_000, ExpiresAt: 1_700_003_600},
		RelyingPartyDID:   "did:example:rp",
	}

	valid := baseReq
	valid.PairwiseDID = derived
	decision := svc.Admit(ctx, valid)
	assert.True(t, decision.Valid)
	assert.Empty(t, decision.Warnings)

	mismatched := baseReq
	mismatched.PairwiseDID = "did:key:zSomeUnrelatedDID"
	decision = svc.Admit(ctx, mismatched)
	assert.True(t, decision.Valid) // pairwise is advisory: it warns, never blocks
	assert.NotEmpty(t, decision.Warnings)
}

// P10: introspection required (T4's revocation SLA mandates it) and no
// introspection service configured denies admission (fail-closed).
func TestAdmit_FailClosed_NoIntrospectionService(t *testing.T) {
	clock := types.NewFakeClock(1_700_000_000)

	dpopSvc, err := dpop.NewService(dpop.DefaultConfig(), dpop.WithClock(clock))
	require.NoError(t, err)
	defer dpopSvc.Close()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	proof, err := dpopSvc.GenerateProof(key, "GET", "https://api.example.com/v1/x", "")
	require.NoError(t, err)

	lifetimeSvc, err := lifetime.NewService(lifetime.DefaultConfig(), lifetime.WithClock(clock))
	require.NoError(t, err)

	svc, err := NewService(Config{DPoP: dpopSvc, Lifetime: lifetimeSvc}, WithClock(clock))
	require.NoError(t, err)

	decision := svc.Admit(context.Background(), Request{
		AgentDID:  "did:example:agent",
		TrustTier: types.TierT4,
		Action:    types.ActionRequest{Method: "GET", URI: "https://api.example.com/v1/x"},
		AccessTokenClaims: types.TokenClaims{
			IssuedAt: clock.Now() - 10, ExpiresAt: clock.Now() + 290,
		},
		DPoPProof: proof,
	})
	require.False(t, decision.Valid)
	assert.Equal(t, "INTROSPECTION_ERROR", decision.Errors[0].Code)
}
