// Package coordinator implements the request-admission pipeline of spec.md
// §4.1: it composes the DPoP, TEE, pairwise, revocation, token-lifetime and
// introspection sub-checks in the ordered, fail-closed sequence spec.md §4.1
// describes, and returns a single AdmissionDecision.
package coordinator

import (
	"github.com/aci-systems/security-core/internal/dpop"
	"github.com/aci-systems/security-core/internal/introspection"
	"github.com/aci-systems/security-core/internal/lifetime"
	"github.com/aci-systems/security-core/internal/pairwise"
	"github.com/aci-systems/security-core/internal/revocation"
	"github.com/aci-systems/security-core/internal/tee"
	"github.com/aci-systems/security-core/internal/types"
)

// Request is the consumer interface input of spec.md §6.
type Request struct {
	AgentDID        string
	TrustTier       types.Tier
	Action          types.ActionRequest
	AccessToken     string
	AccessTokenClaims types.TokenClaims
	DPoPProof       string // compact JWS, empty if not presented
	Attestation     *tee.Attestation
	KeyBinding      *tee.KeyBinding // the agent's previously-issued enclave key binding, required when tee_required
	PairwiseDID     string          // DID actually presented to the relying party, empty if the master DID was used
	RelyingPartyDID string          // the relying party's DID, required to confirm PairwiseDID against the derivation registry
}

// Decision is a re-export of types.AdmissionDecision for callers that only
// import this package.
type Decision = types.AdmissionDecision
