package tee

import (
	"fmt"

	"github.com/aci-systems/security-core/internal/types/securerr"
)

// NitroRootVerifier verifies a COSE_Sign1 attestation envelope against the
// AWS Nitro root certificate chain. Abstracted the same way as
// SGXCollateralVerifier: the AWS root cert is an external trust anchor, not
// state this core owns.
type NitroRootVerifier interface {
	VerifyCOSESign1(envelope []byte, chain [][]byte) error
}

// NitroVerifier implements PlatformVerifier for AWS Nitro Enclaves
// attestation documents (spec.md §4.3 "Nitro").
type NitroVerifier struct {
	Root NitroRootVerifier
}

var requiredNitroPCRs = [...]string{"PCR0", "PCR1", "PCR2"}

func (v NitroVerifier) Verify(a Attestation, expectedMeasurement string, opts PlatformOptions) (VerifyResult, error) {
	for _, pcr := range requiredNitroPCRs {
		if _, ok := a.PCRs[pcr]; !ok {
			return VerifyResult{}, securerr.New(securerr.ComponentTEE, securerr.CodeTEEAttestationError,
				fmt.Sprintf("nitro attestation missing required %s", pcr))
		}
	}

	measurement := a.PCRs["PCR0"]
	if expectedMeasurement != "" && measurement != expectedMeasurement {
		return VerifyResult{}, measurementMismatch()
	}

	if !opts.Production {
		return VerifyResult{Platform: PlatformNitro, MeasurementHash: measurement, ProductionVerified: false}, nil
	}

	if v.Root == nil {
		return v.downgradeOrFail(measurement, opts, fmt.Errorf("tee: no nitro root verifier configured"))
	}
	if err := v.Root.VerifyCOSESign1(a.Signature, a.CertChain); err != nil {
		return v.downgradeOrFail(measurement, opts, err)
	}
	return VerifyResult{Platform: PlatformNitro, MeasurementHash: measurement, ProductionVerified: true}, nil
}

func (v NitroVerifier) downgradeOrFail(measurement string, opts PlatformOptions, cause error) (VerifyResult, error) {
	if opts.AllowSimulatedFallback {
		return VerifyResult{Platform: PlatformNitro, MeasurementHash: measurement, ProductionVerified: false}, nil
	}
	return VerifyResult{}, securerr.Wrap(securerr.ComponentTEE, securerr.CodeTEEAttestationError, "nitro production verification failed", cause)
}

func (v NitroVerifier) ValidateMeasurement(expected string, a Attestation) bool {
	if expected == "" {
		return true
	}
	return a.PCRs["PCR0"] == expected
}
