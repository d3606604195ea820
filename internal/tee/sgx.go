package tee

import (
	"encoding/hex"
	"fmt"

	"github.com/aci-systems/security-core/internal/types/securerr"
)

// SGXQuote is the minimally-parsed subset of an Intel SGX quote blob needed
// by this verifier: the 32-byte MRENCLAVE and MRSIGNER measurements at
// their fixed quote-body offsets.
type SGXQuote struct {
	MREnclave string // 32-byte hex
	MRSigner  string // 32-byte hex
}

// SGXCollateralVerifier performs the production-mode PCCS collateral
// exchange and ECDSA quote-chain verification. Abstracted behind an
// interface because the PCCS endpoint is an out-of-process collaborator
// this core does not own (spec.md §1 "external collaborators").
type SGXCollateralVerifier interface {
	VerifyQuoteChain(pccsEndpoint string, rawQuote []byte, chain [][]byte) error
}

// SGXVerifier implements PlatformVerifier for Intel SGX quotes (spec.md
// §4.3 "SGX").
type SGXVerifier struct {
	Collateral SGXCollateralVerifier
}

const sgxMeasurementLen = 32 // bytes; MRENCLAVE/MRSIGNER are 32-byte SHA-256 measurements

func parseSGXQuote(raw []byte) (SGXQuote, error) {
	// Quote body layout (simplified): [... header ...][mr_enclave 32B][mr_signer 32B][...]
	// mr_enclave sits at the real quote's offset (48-byte header plus 64
	// bytes into the report body); in this simplified layout mr_signer is
	// read from the 32 bytes directly after it. A minimum length check
	// guards against truncated input.
	const mrEnclaveOffset = 112
	const mrSignerOffset = mrEnclaveOffset + sgxMeasurementLen
	minLen := mrSignerOffset + sgxMeasurementLen
	if len(raw) < minLen {
		return SGXQuote{}, fmt.Errorf("tee: sgx quote too short (%d bytes, need >= %d)", len(raw), minLen)
	}
	return SGXQuote{
		MREnclave: hex.EncodeToString(raw[mrEnclaveOffset : mrEnclaveOffset+sgxMeasurementLen]),
		MRSigner:  hex.EncodeToString(raw[mrSignerOffset : mrSignerOffset+sgxMeasurementLen]),
	}, nil
}

func (v SGXVerifier) Verify(a Attestation, expectedMeasurement string, opts PlatformOptions) (VerifyResult, error) {
	quote, err := parseSGXQuote(a.Signature)
	if err != nil {
		return VerifyResult{}, securerr.Wrap(securerr.ComponentTEE, securerr.CodeTEEAttestationError, "sgx quote parse failed", err)
	}

	if expectedMeasurement != "" && quote.MREnclave != expectedMeasurement {
		return VerifyResult{}, measurementMismatch()
	}

	if !opts.Production {
		return VerifyResult{Platform: PlatformSGX, MeasurementHash: quote.MREnclave, ProductionVerified: false}, nil
	}

	if v.Collateral == nil {
		return v.downgradeOrFail(quote, opts, fmt.Errorf("tee: no SGX collateral verifier configured"))
	}
	if err := v.Collateral.VerifyQuoteChain(opts.PCCSEndpoint, a.Signature, a.CertChain); err != nil {
		return v.downgradeOrFail(quote, opts, err)
	}
	return VerifyResult{Platform: PlatformSGX, MeasurementHash: quote.MREnclave, ProductionVerified: true}, nil
}

func (v SGXVerifier) downgradeOrFail(quote SGXQuote, opts PlatformOptions, cause error) (VerifyResult, error) {
	if opts.AllowSimulatedFallback {
		return VerifyResult{Platform: PlatformSGX, MeasurementHash: quote.MREnclave, ProductionVerified: false}, nil
	}
	return VerifyResult{}, securerr.Wrap(securerr.ComponentTEE, securerr.CodeTEEAttestationError, "sgx production verification failed", cause)
}

func (v SGXVerifier) ValidateMeasurement(expected string, a Attestation) bool {
	quote, err := parseSGXQuote(a.Signature)
	if err != nil {
		return false
	}
	return expected == "" || quote.MREnclave == expected
}
