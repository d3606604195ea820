package lifetime

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aci-systems/security-core/internal/types"
	"github.com/aci-systems/security-core/internal/types/securerr"
)

func newTestService(t *testing.T, clock types.Clock) *Service {
	t.Helper()
	svc, err := NewService(DefaultConfig(), WithClock(clock))
	require.NoError(t, err)
	return svc
}

// scenario 4 of spec.md §8: same claims, accepted at T0, rejected at T2.
func TestValidateLifetime_TTLTooLongAtT2AcceptedAtT0(t *testing.T) {
	clock := types.NewFakeClock(1_700_000_500)
	svc := newTestService(t, clock)

	claims := types.TokenClaims{IssuedAt: 1_700_000_000, ExpiresAt: 1_700_003_600}

	t2Ceiling := int64(300)
	decision := svc.ValidateLifetime(claims, types.TokenAccess, false, &t2Ceiling)
	require.Error(t, decision.Error)
	se, ok := securerr.As(decision.Error)
	require.True(t, ok)
	assert.Equal(t, "TTL_TOO_LONG", string(se.Code))

	t0Ceiling := int64(3600)
	decision = svc.ValidateLifetime(claims, types.TokenAccess, false, &t0Ceiling)
	assert.True(t, decision.Valid)
	assert.NoError(t, decision.Error)
}

func TestValidateLifetime_Expired(t *testing.T) {
	clock := types.NewFakeClock(1_700_000_500)
	svc := newTestService(t, clock)

	claims := types.TokenClaims{IssuedAt: 1_700_000_000, ExpiresAt: 1_700_000_100}
	decision := svc.ValidateLifetime(claims, types.TokenAccess, false, nil)
	require.Error(t, decision.Error)
	se, _ := securerr.As(decision.Error)
	assert.Equal(t, "TOKEN_EXPIRED", string(se.Code))
}

func TestValidateLifetime_MissingClaims(t *testing.T) {
	clock := types.NewFakeClock(1_700_000_000)
	svc := newTestService(t, clock)

	decision := svc.ValidateLifetime(types.TokenClaims{ExpiresAt: 1_700_000_500}, types.TokenAccess, false, nil)
	se, ok := securerr.As(decision.Error)
	require.True(t, ok)
	assert.Equal(t, "MISSING_IAT", string(se.Code))

	decision = svc.ValidateLifetime(types.TokenClaims{IssuedAt: 1_700_000_000}, types.TokenAccess, false, nil)
	se, ok = securerr.As(decision.Error)
	require.True(t, ok)
	assert.Equal(t, "MISSING_EXP", string(se.Code))
}

func TestValidateLifetime_HighValueCollapsesTTL(t *testing.T) {
	clock := types.NewFakeClock(1_700_000_000)
	svc := newTestService(t, clock)

	claims := types.TokenClaims{IssuedAt: 1_700_000_000, ExpiresAt: 1_700_000_000 + 120}
	decision := svc.ValidateLifetime(claims, types.TokenAccess, true, nil)
	require.Error(t, decision.Error)
	se, _ := securerr.As(decision.Error)
	assert.Equal(t, "TTL_TOO_LONG", string(se.Code))
}

func TestShouldRefresh(t *testing.T) {
	clock := types.NewFakeClock(1_700_000_950) // 50s remaining of a 300s token
	svc := newTestService(t, clock)

	claims := types.TokenClaims{IssuedAt: 1_700_000_700, ExpiresAt: 1_700_001_000}
	assert.True(t, svc.ShouldRefresh(claims)) // 50/300 = 0.1667 <= 0.2
}

func TestIsHighValueOperation(t *testing.T) {
	svc := newTestService(t, types.NewFakeClock(0))
	assert.True(t, svc.IsHighValueOperation("Financial_Transaction", 1))
	assert.True(t, svc.IsHighValueOperation("low_risk_action", 3))
	assert.False(t, svc.IsHighValueOperation("low_risk_action", 1))
}
