package dpop

import (
	"fmt"
	"time"

	"github.com/aci-systems/security-core/internal/types"
)

// Config configures the DPoP service. Follows the teacher's
// validateConfig/NewGourdianTokenConfig pattern: every field has a
// documented default and is checked once at construction, never at
// request time (spec.md §7, programmer errors surface at construction).
type Config struct {
	// MaxProofAge bounds how long a proof remains acceptable after iat.
	MaxProofAge time.Duration
	// ClockSkew is the global bounded tolerance for iat comparisons.
	ClockSkew time.Duration
	// RequiredForTiers lists the tiers for which DPoP is mandatory,
	// independent of the authoritative per-tier table in internal/types;
	// callers that need a custom applicability policy set this, otherwise
	// leave nil to defer entirely to types.RequirementsFor.
	RequiredForTiers []types.Tier
	// JTISweepInterval controls the in-process cache's background sweep
	// cadence when NewService constructs its own MemoryJTICache (ignored
	// if a JTICache is supplied explicitly via WithJTICache).
	JTISweepInterval time.Duration
}

// DefaultConfig returns the spec.md-derived defaults: 5 minute max proof
// age (matching the example repo's DPoP verifier default) and the global
// 5 second clock skew tolerance of spec.md §4.1.
func DefaultConfig() Config {
	return Config{
		MaxProofAge:      5 * time.Minute,
		ClockSkew:        types.DefaultClockSkew,
		JTISweepInterval: time.Minute,
	}
}

func (c Config) Validate() error {
	if c.MaxProofAge <= 0 {
		return fmt.Errorf("dpop: MaxProofAge must be positive")
	}
	if c.ClockSkew < 0 {
		return fmt.Errorf("dpop: ClockSkew must not be negative")
	}
	return nil
}

// IsRequired reports whether DPoP is mandatory for the given tier, per
// spec.md §4.2 "the service exposes is_required(tier) -> bool". When
// RequiredForTiers is unset, this defers to the authoritative table in
// internal/types.
func (c Config) IsRequired(t types.Tier) bool {
	if len(c.RequiredForTiers) == 0 {
		req, err := types.RequirementsFor(t)
		return err == nil && req.DPoPRequired
	}
	for _, rt := range c.RequiredForTiers {
		if rt == t {
			return true
		}
	}
	return false
}
