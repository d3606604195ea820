package tee

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aci-systems/security-core/internal/types"
)

func sgxQuoteBytes(mrEnclave, mrSigner [32]byte) []byte {
	buf := make([]byte, 112+64)
	copy(buf[112:144], mrEnclave[:])
	copy(buf[144:176], mrSigner[:])
	return buf
}

func newTestServiceAt(t *testing.T, unixSeconds int64) (*Service, *types.FakeClock) {
	t.Helper()
	clock := types.NewFakeClock(unixSeconds)
	svc, err := NewService(DefaultConfig(), WithClock(clock))
	require.NoError(t, err)
	return svc, clock
}

func TestVerifyAttestation_SGXSimulatedMode(t *testing.T) {
	svc, clock := newTestServiceAt(t, 1_000_000)
	var mrEnclave, mrSigner [32]byte
	mrEnclave[0] = 0xAB

	a := Attestation{
		Platform:  PlatformSGX,
		EnclaveID: "enclave-1",
		Timestamp: clock.Now(),
		Signature: sgxQuoteBytes(mrEnclave, mrSigner),
	}

	result, err := svc.VerifyAttestation(a)
	require.NoError(t, err)
	assert.Equal(t, PlatformSGX, result.Platform)
	assert.False(t, result.ProductionVerified)
	assert.NotEmpty(t, result.MeasurementHash)
}

func TestVerifyAttestation_PlatformNotAllowed(t *testing.T) {
	svc, clock := newTestServiceAt(t, 1_000_000)
	a := Attestation{
		Platform:  "unknown-platform",
		EnclaveID: "enclave-1",
		Timestamp: clock.Now(),
	}
	_, err := svc.VerifyAttestation(a)
	require.Error(t, err)
	se, ok := asSecurerr(err)
	require.True(t, ok)
	assert.Equal(t, "TEE_PLATFORM_NOT_ALLOWED", string(se.Code))
}

func TestVerifyAttestation_Expired(t *testing.T) {
	svc, clock := newTestServiceAt(t, 1_000_000)
	var mrEnclave, mrSigner [32]byte
	a := Attestation{
		Platform:  PlatformSGX,
		EnclaveID: "enclave-1",
		Timestamp: clock.Now() - 3600, // well past DefaultAttestationTimeout
		Signature: sgxQuoteBytes(mrEnclave, mrSigner),
	}
	_, err := svc.VerifyAttestation(a)
	require.Error(t, err)
	se, ok := asSecurerr(err)
	require.True(t, ok)
	assert.Equal(t, "TEE_EXPIRED", string(se.Code))
}

func TestVerifyAttestation_MeasurementMismatch(t *testing.T) {
	svc, clock := newTestServiceAt(t, 1_000_000)
	var mrEnclave, mrSigner [32]byte
	mrEnclave[0] = 0xAB

	svc2, err := NewService(DefaultConfig(), WithClock(clock), WithExpectedMeasurement("enclave-1", "deadbeef"))
	require.NoError(t, err)
	svc = svc2

	a := Attestation{
		Platform:  PlatformSGX,
		EnclaveID: "enclave-1",
		Timestamp: clock.Now(),
		Signature: sgxQuoteBytes(mrEnclave, mrSigner),
	}
	_, err = svc.VerifyAttestation(a)
	require.Error(t, err)
	se, ok := asSecurerr(err)
	require.True(t, ok)
	assert.Equal(t, "TEE_MEASUREMENT_MISMATCH", string(se.Code))
}

func TestNitroVerifier_RequiresPCRs(t *testing.T) {
	svc, clock := newTestServiceAt(t, 1_000_000)
	a := Attestation{
		Platform:  PlatformNitro,
		EnclaveID: "nitro-1",
		Timestamp: clock.Now(),
		PCRs:      map[string]string{"PCR0": "abc"},
	}
	_, err := svc.VerifyAttestation(a)
	require.Error(t, err)
}

func TestBindKeyToEnclave_RoundTrip(t *testing.T) {
	svc, clock := newTestServiceAt(t, 1_000_000)
	var mrEnclave, mrSigner [32]byte
	mrEnclave[0] = 0xCD

	a := Attestation{
		Platform:  PlatformSGX,
		EnclaveID: "enclave-2",
		Timestamp: clock.Now(),
		Signature: sgxQuoteBytes(mrEnclave, mrSigner),
	}
	result, err := svc.VerifyAttestation(a)
	require.NoError(t, err)

	binding, err := svc.BindKeyToEnclave("did:key:zAbc#key-1", a)
	require.NoError(t, err)
	assert.Equal(t, "enclave-2", binding.EnclaveKeyID)

	ok, err := svc.VerifyKeyBinding(binding, result.MeasurementHash)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = svc.VerifyKeyBinding(binding, "wrong-measurement")
	require.Error(t, err)

	tampered := binding
	tampered.BoundAt++
	_, err = svc.VerifyKeyBinding(tampered, result.MeasurementHash)
	require.Error(t, err)
}

func TestTrustZoneVerifier_StructuralOnly(t *testing.T) {
	svc, clock := newTestServiceAt(t, 1_000_000)
	a := Attestation{
		Platform:        PlatformTrustZone,
		EnclaveID:       "tz-1",
		Timestamp:       clock.Now(),
		MeasurementHash: "abc123",
	}
	result, err := svc.VerifyAttestation(a)
	require.NoError(t, err)
	assert.Equal(t, "abc123", result.MeasurementHash)
	assert.False(t, result.ProductionVerified)
}

func TestIsRequired_PerTier(t *testing.T) {
	svc, err := NewService(DefaultConfig())
	require.NoError(t, err)
	assert.False(t, svc.IsRequired(types.TierT1))
	assert.False(t, svc.IsRequired(types.TierT3))
	assert.True(t, svc.IsRequired(types.TierT4))
	assert.True(t, svc.IsRequired(types.TierT5))
}
