package coordinator

import (
	"fmt"

	"github.com/aci-systems/security-core/internal/dpop"
	"github.com/aci-systems/security-core/internal/introspection"
	"github.com/aci-systems/security-core/internal/lifetime"
	"github.com/aci-systems/security-core/internal/pairwise"
	"github.com/aci-systems/security-core/internal/revocation"
	"github.com/aci-systems/security-core/internal/tee"
)

// Config bundles the sub-services the coordinator composes. Each is
// optional except Lifetime; a nil sub-service is treated as "the
// corresponding phase is skipped" unless the tier requires it, in which
// case admission fails closed.
type Config struct {
	DPoP          *dpop.Service
	TEE           *tee.Service
	Pairwise      *pairwise.Service
	Revocation    *revocation.Service
	Lifetime      *lifetime.Service
	Introspection *introspection.Service
}

func (c Config) Validate() error {
	if c.Lifetime == nil {
		return fmt.Errorf("coordinator: Lifetime service is required")
	}
	return nil
}
