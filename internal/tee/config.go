package tee

import (
	"fmt"
	"time"

	"github.com/aci-systems/security-core/internal/types"
)

// Config controls the common pre-checks and platform dispatch options
// shared by every attestation (spec.md §4.3 "Common pre-checks").
type Config struct {
	// MaxAttestationAge bounds how stale an attestation's Timestamp may be.
	MaxAttestationAge time.Duration
	// AllowedPlatforms is the allow-list attestations are checked against.
	// Defaults to all five supported platforms.
	AllowedPlatforms []Platform
	// Production selects real remote-attestation verification across all
	// platform verifiers; see PlatformOptions.Production.
	Production bool
	// AllowSimulatedFallback permits production-verification failures to
	// downgrade instead of failing closed.
	AllowSimulatedFallback bool
	// PCCSEndpoint is the SGX TCB collateral service endpoint.
	PCCSEndpoint string
	// RequiredForTiers overrides which tiers require TEE binding. Empty
	// means defer to types.RequirementsFor.
	RequiredForTiers []types.Tier
}

func DefaultConfig() Config {
	return Config{
		MaxAttestationAge: types.DefaultAttestationTimeout,
		AllowedPlatforms:  []Platform{PlatformSGX, PlatformNitro, PlatformSEVSNP, PlatformTrustZone, PlatformSecureEnclave},
	}
}

func (c Config) Validate() error {
	if c.MaxAttestationAge <= 0 {
		return fmt.Errorf("tee: MaxAttestationAge must be positive")
	}
	if len(c.AllowedPlatforms) == 0 {
		return fmt.Errorf("tee: AllowedPlatforms must not be empty")
	}
	if c.Production && c.PCCSEndpoint == "" {
		// Nitro/SEV-SNP do not need PCCS, so this is a soft requirement left
		// to the caller's chosen collateral verifiers rather than a hard
		// validation failure.
		return nil
	}
	return nil
}

func (c Config) isAllowed(p Platform) bool {
	for _, allowed := range c.AllowedPlatforms {
		if allowed == p {
			return true
		}
	}
	return false
}

func (c Config) platformOptions() PlatformOptions {
	return PlatformOptions{
		Production:             c.Production,
		AllowSimulatedFallback: c.AllowSimulatedFallback,
		PCCSEndpoint:           c.PCCSEndpoint,
	}
}
