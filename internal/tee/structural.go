package tee

// structuralVerifier backs TrustZone and Secure Enclave, neither of which
// has a remote attestation service this core can consult (spec.md §4.3:
// "accept once structural and freshness checks pass; no remote attestation
// service to consult"). Common pre-checks in Service already enforce
// schema/allow-list/age/valid_until, so Verify here only needs the
// measurement comparison.
type structuralVerifier struct {
	platform Platform
}

func (v structuralVerifier) Verify(a Attestation, expectedMeasurement string, opts PlatformOptions) (VerifyResult, error) {
	if expectedMeasurement != "" && a.MeasurementHash != expectedMeasurement {
		return VerifyResult{}, measurementMismatch()
	}
	return VerifyResult{Platform: v.platform, MeasurementHash: a.MeasurementHash, ProductionVerified: false}, nil
}

func (v structuralVerifier) ValidateMeasurement(expected string, a Attestation) bool {
	return expected == "" || a.MeasurementHash == expected
}

// TrustZoneVerifier implements PlatformVerifier for ARM TrustZone.
type TrustZoneVerifier struct{ structuralVerifier }

// SecureEnclaveVerifier implements PlatformVerifier for Apple Secure
// Enclave.
type SecureEnclaveVerifier struct{ structuralVerifier }

func NewTrustZoneVerifier() TrustZoneVerifier {
	return TrustZoneVerifier{structuralVerifier{platform: PlatformTrustZone}}
}

func NewSecureEnclaveVerifier() SecureEnclaveVerifier {
	return SecureEnclaveVerifier{structuralVerifier{platform: PlatformSecureEnclave}}
}
