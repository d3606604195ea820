package revocation

import (
	"fmt"

	"github.com/aci-systems/security-core/internal/types"
)

// Config controls the revocation engine's cache and propagation behavior.
type Config struct {
	// RequiredForTiers overrides which tiers force sync_revocation_check.
	// Empty means defer to types.RequirementsFor / types.RevocationSLAFor.
	RequiredForTiers []types.Tier
}

func DefaultConfig() Config {
	return Config{}
}

func (c Config) Validate() error {
	for _, t := range c.RequiredForTiers {
		if !t.Valid() {
			return fmt.Errorf("revocation: tier %d out of range", int(t))
		}
	}
	return nil
}

