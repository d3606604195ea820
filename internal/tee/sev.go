package tee

import (
	"encoding/hex"
	"fmt"

	"github.com/aci-systems/security-core/internal/types/securerr"
)

// SEVChainVerifier verifies an AMD SEV-SNP report's VCEK/ASK/ARK
// certificate chain against AMD's key-distribution service.
type SEVChainVerifier interface {
	VerifyCertChain(report []byte, chain [][]byte) error
}

// SEVVerifier implements PlatformVerifier for AMD SEV-SNP attestation
// reports (spec.md §4.3 "SEV-SNP"): "parse the 1184-byte report; extract
// the measurement from bytes 144-192".
type SEVVerifier struct {
	Chain SEVChainVerifier
}

const (
	sevReportLen        = 1184
	sevMeasurementStart = 144
	sevMeasurementEnd   = 192
)

func parseSEVMeasurement(raw []byte) (string, error) {
	if len(raw) < sevReportLen {
		return "", fmt.Errorf("tee: sev-snp report too short (%d bytes, need %d)", len(raw), sevReportLen)
	}
	return hex.EncodeToString(raw[sevMeasurementStart:sevMeasurementEnd]), nil
}

func (v SEVVerifier) Verify(a Attestation, expectedMeasurement string, opts PlatformOptions) (VerifyResult, error) {
	measurement, err := parseSEVMeasurement(a.Signature)
	if err != nil {
		return VerifyResult{}, securerr.Wrap(securerr.ComponentTEE, securerr.CodeTEEAttestationError, "sev-snp report parse failed", err)
	}

	if expectedMeasurement != "" && measurement != expectedMeasurement {
		return VerifyResult{}, measurementMismatch()
	}

	if !opts.Production {
		return VerifyResult{Platform: PlatformSEVSNP, MeasurementHash: measurement, ProductionVerified: false}, nil
	}

	if v.Chain == nil {
		return v.downgradeOrFail(measurement, opts, fmt.Errorf("tee: no sev-snp chain verifier configured"))
	}
	if err := v.Chain.VerifyCertChain(a.Signature, a.CertChain); err != nil {
		return v.downgradeOrFail(measurement, opts, err)
	}
	return VerifyResult{Platform: PlatformSEVSNP, MeasurementHash: measurement, ProductionVerified: true}, nil
}

func (v SEVVerifier) downgradeOrFail(measurement string, opts PlatformOptions, cause error) (VerifyResult, error) {
	if opts.AllowSimulatedFallback {
		return VerifyResult{Platform: PlatformSEVSNP, MeasurementHash: measurement, ProductionVerified: false}, nil
	}
	return VerifyResult{}, securerr.Wrap(securerr.ComponentTEE, securerr.CodeTEEAttestationError, "sev-snp production verification failed", cause)
}

func (v SEVVerifier) ValidateMeasurement(expected string, a Attestation) bool {
	measurement, err := parseSEVMeasurement(a.Signature)
	if err != nil {
		return false
	}
	return expected == "" || measurement == expected
}
