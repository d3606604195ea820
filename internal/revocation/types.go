// Package revocation implements the revocation engine of spec.md §4.5:
// recursive delegation-graph propagation, SLA-aware status caching, and
// event fan-out to subscribers and webhooks.
package revocation

import "github.com/aci-systems/security-core/internal/types"

// Status is the per-DID revocation state of spec.md §3.
type Status string

const (
	StatusActive  Status = "active"
	StatusRevoked Status = "revoked"
	StatusPending Status = "pending"
)

// State is the registry entry for a single DID.
type State struct {
	DID       string
	Status    Status
	RevokedAt int64
	Reason    string
}

// Request carries the propagation policy for revoke_agent (spec.md §4.5).
type Request struct {
	RevokedDID           string
	Reason               string
	TerminateDescendants bool
	GracePeriodMS        int64
	NotifyWebhooks       bool
}

// Result is the revocation result of spec.md §3.
type Result struct {
	RevocationID        string
	RevokedDID           string
	DescendantsRevoked  []string
	TokensInvalidated    int
	PropagationComplete  bool
	Timestamp            int64
}

// SLA re-exports types.RevocationSLA so callers of this package rarely need
// to import internal/types directly.
type SLA = types.RevocationSLA
