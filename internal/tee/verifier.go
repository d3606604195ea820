package tee

import "github.com/aci-systems/security-core/internal/types/securerr"

// PlatformVerifier is the capability set every platform-specific verifier
// shares (spec.md §4.3: "verify(attestation), validate_measurement(expected,
// attestation)").
type PlatformVerifier interface {
	// Verify runs platform-specific structural/signature checks on top of
	// the common pre-checks already applied by Service. expectedMeasurement
	// is the configured measurement for the attestation's enclave ID, or
	// empty if none is configured.
	Verify(a Attestation, expectedMeasurement string, opts PlatformOptions) (VerifyResult, error)

	// ValidateMeasurement compares an expected measurement against the
	// attestation's reported measurement.
	ValidateMeasurement(expected string, a Attestation) bool
}

// PlatformOptions carries the production/simulated dispatch knobs common to
// every platform verifier (spec.md §4.3 "Failure semantics").
type PlatformOptions struct {
	// Production selects real remote-attestation verification (PCCS for
	// SGX, Nitro root cert chain, SEV VCEK/ASK/ARK chain). When false,
	// verifiers accept once structural and freshness checks pass
	// ("simulated mode").
	Production bool
	// AllowSimulatedFallback permits a production verification failure to
	// downgrade to success with ProductionVerified=false instead of
	// failing outright.
	AllowSimulatedFallback bool
	// PCCSEndpoint is the SGX TCB collateral service used in production mode.
	PCCSEndpoint string
}

func measurementMismatch() error {
	return securerr.New(securerr.ComponentTEE, securerr.CodeTEEMeasurementMismatch, "attestation measurement does not match expected value")
}
