// Package pairwise implements the privacy-preserving pairwise DID
// derivation service of spec.md §4.4: deterministic HKDF/SHA-256 derivation
// of a did:key per (master_did, relying_party_did) pair, and the
// relationship registry that caches derivations.
package pairwise

import "github.com/aci-systems/security-core/internal/types"

// Algorithm selects the derivation function (spec.md §4.4 "Derivation").
type Algorithm string

const (
	AlgorithmHKDF   Algorithm = "hkdf"
	AlgorithmSHA256 Algorithm = "sha256"
)

// DefaultInfo is the HKDF info string used when none is configured.
const DefaultInfo = "aci-pairwise-did-v1"

// DefaultSaltLength is the default generate_salt() output length in bytes
// (spec.md §4.4).
const DefaultSaltLength = 32

// Record is the pairwise derivation record of spec.md §3.
type Record struct {
	MasterDID       string
	RelyingPartyDID string
	ContextSalt     string
	DerivedDID      string
	CreatedAt       int64
}

// recordKey builds the registry lookup key for a (master, rp) pair.
func recordKey(masterDID, rpDID string) string {
	return masterDID + "\x00" + rpDID
}

// Requirement mirrors types.PairwiseRequirement, re-exported so callers of
// this package do not need to import internal/types directly for the
// common case.
type Requirement = types.PairwiseRequirement
