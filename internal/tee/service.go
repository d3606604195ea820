package tee

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/aci-systems/security-core/internal/types"
	"github.com/aci-systems/security-core/internal/types/securerr"
)

// Service is the TEE attestation binding service of spec.md §4.3. It holds
// the platform dispatch table, runs the common pre-checks shared by every
// platform, and exposes the verify/bind/validate contract.
type Service struct {
	cfg        Config
	clock      types.Clock
	verifiers  map[Platform]PlatformVerifier
	measured   map[string]string // enclave_id -> expected measurement, optional
}

// Option configures a Service at construction time.
type Option func(*Service)

// WithClock overrides the clock used for freshness checks; defaults to
// types.SystemClock.
func WithClock(c types.Clock) Option {
	return func(s *Service) { s.clock = c }
}

// WithVerifier overrides or adds the PlatformVerifier for a platform,
// letting callers inject real collateral verifiers (SGX PCCS client, Nitro
// root cert verifier, SEV-SNP chain verifier) without this package knowing
// about their transport.
func WithVerifier(p Platform, v PlatformVerifier) Option {
	return func(s *Service) { s.verifiers[p] = v }
}

// WithExpectedMeasurement registers the measurement an enclave ID must
// produce; attestations from that enclave failing to match are rejected.
func WithExpectedMeasurement(enclaveID, measurement string) Option {
	return func(s *Service) { s.measured[enclaveID] = measurement }
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &Service{
		cfg:   cfg,
		clock: types.SystemClock{},
		verifiers: map[Platform]PlatformVerifier{
			PlatformSGX:           SGXVerifier{},
			PlatformNitro:         NitroVerifier{},
			PlatformSEVSNP:        SEVVerifier{},
			PlatformTrustZone:     NewTrustZoneVerifier(),
			PlatformSecureEnclave: NewSecureEnclaveVerifier(),
		},
		measured: map[string]string{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// IsRequired reports whether tier t mandates TEE attestation binding
// (spec.md §6).
func (s *Service) IsRequired(t types.Tier) bool {
	if len(s.cfg.RequiredForTiers) > 0 {
		for _, rt := range s.cfg.RequiredForTiers {
			if rt == t {
				return true
			}
		}
		return false
	}
	req, err := types.RequirementsFor(t)
	if err != nil {
		return false
	}
	return req.TEERequired
}

// precheck runs the common pre-checks of spec.md §4.3: schema valid
// (platform set, non-empty measurement hash for structural platforms),
// platform allow-listed, age <= max_attestation_age, valid_until in the
// future.
func (s *Service) precheck(a Attestation) error {
	if a.Platform == "" {
		return securerr.New(securerr.ComponentTEE, securerr.CodeTEEAttestationError, "attestation missing platform")
	}
	if (a.Platform == PlatformTrustZone || a.Platform == PlatformSecureEnclave) && a.MeasurementHash == "" {
		return securerr.New(securerr.ComponentTEE, securerr.CodeTEEAttestationError, "attestation missing measurement hash")
	}
	if !s.cfg.isAllowed(a.Platform) {
		return securerr.New(securerr.ComponentTEE, securerr.CodeTEEPlatformNotAllowed,
			fmt.Sprintf("platform %q is not in the allow-list", a.Platform))
	}
	now := s.clock.Now()
	if a.expired(now, s.cfg.MaxAttestationAge) {
		return securerr.New(securerr.ComponentTEE, securerr.CodeTEEExpired, "attestation is stale or past valid_until")
	}
	return nil
}

// VerifyAttestation implements spec.md §4.3's
// verify_attestation(attestation) -> ok(platform, measurement_hash) | err(reason).
func (s *Service) VerifyAttestation(a Attestation) (VerifyResult, error) {
	if err := s.precheck(a); err != nil {
		return VerifyResult{}, err
	}
	verifier, ok := s.verifiers[a.Platform]
	if !ok {
		return VerifyResult{}, securerr.New(securerr.ComponentTEE, securerr.CodeTEEPlatformNotAllowed,
			fmt.Sprintf("no verifier registered for platform %q", a.Platform))
	}
	expected := s.measured[a.EnclaveID]
	return verifier.Verify(a, expected, s.cfg.platformOptions())
}

// BindKeyToEnclave implements spec.md §4.3's
// bind_key_to_enclave(did_key_id, attestation) -> binding. The binding proof
// is a deterministic commitment over the key ID, enclave ID, verified
// measurement, and binding timestamp, so VerifyKeyBinding can recompute and
// compare it without a separate store.
func (s *Service) BindKeyToEnclave(didKeyID string, a Attestation) (KeyBinding, error) {
	result, err := s.VerifyAttestation(a)
	if err != nil {
		return KeyBinding{}, err
	}
	now := s.clock.Now()
	proof := bindingCommitment(didKeyID, a.EnclaveID, result.MeasurementHash, now)
	validUntil := a.ValidUntil
	if validUntil == 0 {
		validUntil = now + int64(s.cfg.MaxAttestationAge.Seconds())
	}
	return KeyBinding{
		DIDKeyID:           didKeyID,
		EnclaveKeyID:       a.EnclaveID,
		BindingProof:       proof,
		BoundAt:            now,
		ValidUntil:         validUntil,
		ProductionVerified: result.ProductionVerified,
	}, nil
}

// VerifyKeyBinding implements spec.md §4.3's verify_key_binding(binding) ->
// bool. A caller must supply the measurement the binding was made against,
// since Service does not persist bindings itself.
func (s *Service) VerifyKeyBinding(b KeyBinding, measurementHash string) (bool, error) {
	now := s.clock.Now()
	if b.ValidUntil != 0 && b.ValidUntil <= now {
		return false, securerr.New(securerr.ComponentTEE, securerr.CodeTEEExpired, "key binding has expired")
	}
	want := bindingCommitment(b.DIDKeyID, b.EnclaveKeyID, measurementHash, b.BoundAt)
	if len(want) != len(b.BindingProof) {
		return false, securerr.New(securerr.ComponentTEE, securerr.CodeTEEKeyBindingError, "key binding proof does not match")
	}
	for i := range want {
		if want[i] != b.BindingProof[i] {
			return false, securerr.New(securerr.ComponentTEE, securerr.CodeTEEKeyBindingError, "key binding proof does not match")
		}
	}
	return true, nil
}

func bindingCommitment(didKeyID, enclaveKeyID, measurementHash string, timestamp int64) []byte {
	h := sha256.New()
	h.Write([]byte(didKeyID))
	h.Write([]byte{0})
	h.Write([]byte(enclaveKeyID))
	h.Write([]byte{0})
	h.Write([]byte(measurementHash))
	h.Write([]byte{0})
	fmt.Fprintf(h, "%d", timestamp)
	return h.Sum(nil)
}

// MeasurementHashHex is a small convenience used by callers constructing
// WithExpectedMeasurement from raw attestation material in tests.
func MeasurementHashHex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
