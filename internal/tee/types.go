// Package tee implements the TEE attestation binding service of spec.md
// §4.3: platform dispatch over a closed variant set (SGX, Nitro, SEV-SNP,
// TrustZone, Secure Enclave), common pre-checks, platform-specific
// measurement verification, and key-to-enclave binding.
package tee

import "time"

// Platform is the closed set of supported TEE platforms (spec.md §3, §9
// "model as a closed variant set").
type Platform string

const (
	PlatformSGX           Platform = "sgx"
	PlatformNitro         Platform = "nitro"
	PlatformSEVSNP        Platform = "sev-snp"
	PlatformTrustZone     Platform = "trustzone"
	PlatformSecureEnclave Platform = "secure-enclave"
)

// Attestation is the signed statement from a TEE over its measurement and
// metadata (spec.md §3).
type Attestation struct {
	Platform        Platform
	MeasurementHash string // hex
	EnclaveID       string
	Timestamp       int64 // unix seconds
	PCRs            map[string]string
	Signature       []byte // raw platform-defined envelope
	CertChain       [][]byte
	ValidUntil      int64 // unix seconds, 0 means unset
}

// KeyBinding binds an agent's verification-method key to an attested
// enclave (spec.md §3/§4.3).
type KeyBinding struct {
	DIDKeyID     string
	EnclaveKeyID string
	BindingProof []byte
	BoundAt      int64
	ValidUntil   int64
	// ProductionVerified is false when allow_simulated_fallback downgraded
	// a network-verification failure to success (spec.md §4.3 "Failure
	// semantics" -- this must be explicit so policy can reject it at T5).
	ProductionVerified bool
}

// VerifyResult is the ok(platform, measurement_hash) outcome of spec.md
// §4.3's verify_attestation.
type VerifyResult struct {
	Platform           Platform
	MeasurementHash    string
	ProductionVerified bool
}

// expired reports whether an Attestation is stale relative to now and
// maxAge, or past its own ValidUntil.
func (a Attestation) expired(now int64, maxAge time.Duration) bool {
	if now-a.Timestamp > int64(maxAge.Seconds()) {
		return true
	}
	if a.ValidUntil != 0 && a.ValidUntil <= now {
		return true
	}
	return false
}
