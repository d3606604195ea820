// Package types holds the shared vocabulary of the security hardening
// core: trust tiers, conformance levels, per-tier security requirements,
// the external collaborator interfaces it is composed against (§6), and
// the claim/classification label maps used by several services.
package types

import "fmt"

// Tier is the agent trust tier, an integer 0-5 with monotone ordering.
type Tier int

const (
	TierT0 Tier = 0
	TierT1 Tier = 1
	TierT2 Tier = 2
	TierT3 Tier = 3
	TierT4 Tier = 4
	TierT5 Tier = 5
)

// Valid reports whether t is a recognized tier.
func (t Tier) Valid() bool { return t >= TierT0 && t <= TierT5 }

func (t Tier) String() string {
	if !t.Valid() {
		return fmt.Sprintf("T?(%d)", int(t))
	}
	return fmt.Sprintf("T%d", int(t))
}

// ConformanceLevel is derived from Tier by a total function.
type ConformanceLevel string

const (
	ConformanceNone  ConformanceLevel = "none"
	ConformanceSH1   ConformanceLevel = "sh1-basic"
	ConformanceSH2   ConformanceLevel = "sh2-standard"
	ConformanceSH3   ConformanceLevel = "sh3-hardened"
)

// ConformanceFor maps a tier to its conformance level (spec.md §3).
// T0-T1 -> none, T2 -> sh1, T3 -> sh2, T4-T5 -> sh3.
func ConformanceFor(t Tier) ConformanceLevel {
	switch {
	case t <= TierT1:
		return ConformanceNone
	case t == TierT2:
		return ConformanceSH1
	case t == TierT3:
		return ConformanceSH2
	default:
		return ConformanceSH3
	}
}

// SecurityRequirements is derived deterministically from Tier (spec.md §3,
// §6 authoritative table).
type SecurityRequirements struct {
	Tier                   Tier
	Conformance            ConformanceLevel
	DPoPRequired           bool
	TEERequired            bool
	PairwiseRequired       bool
	SyncRevocationRequired bool
	MaxTokenTTLSeconds     int64
	MaxChainDepth          int
}

// tierRequirements is the authoritative trust-tier table of spec.md §6.
var tierRequirements = map[Tier]SecurityRequirements{
	TierT0: {DPoPRequired: false, TEERequired: false, PairwiseRequired: false, SyncRevocationRequired: false, MaxTokenTTLSeconds: 3600, MaxChainDepth: 1},
	TierT1: {DPoPRequired: false, TEERequired: false, PairwiseRequired: false, SyncRevocationRequired: false, MaxTokenTTLSeconds: 3600, MaxChainDepth: 1},
	TierT2: {DPoPRequired: true, TEERequired: false, PairwiseRequired: false, SyncRevocationRequired: false, MaxTokenTTLSeconds: 300, MaxChainDepth: 2},
	TierT3: {DPoPRequired: true, TEERequired: false, PairwiseRequired: true, SyncRevocationRequired: false, MaxTokenTTLSeconds: 300, MaxChainDepth: 3},
	TierT4: {DPoPRequired: true, TEERequired: true, PairwiseRequired: true, SyncRevocationRequired: true, MaxTokenTTLSeconds: 300, MaxChainDepth: 5},
	TierT5: {DPoPRequired: true, TEERequired: true, PairwiseRequired: true, SyncRevocationRequired: true, MaxTokenTTLSeconds: 300, MaxChainDepth: 5},
}

// RequirementsFor resolves the SecurityRequirements for a tier. Returns an
// error for an out-of-range tier so callers fail closed on bad input rather
// than silently defaulting to T0.
func RequirementsFor(t Tier) (SecurityRequirements, error) {
	req, ok := tierRequirements[t]
	if !ok {
		return SecurityRequirements{}, fmt.Errorf("types: unknown trust tier %d", int(t))
	}
	req.Tier = t
	req.Conformance = ConformanceFor(t)
	return req, nil
}

// RevocationSLA is the per-tier revocation staleness bound (spec.md §3,
// default table in §6).
type RevocationSLA struct {
	MaxPropagationLatencyMS int64
	SyncCheckRequired       bool
	IntrospectionRequired   bool
}

var revocationSLAs = map[Tier]RevocationSLA{
	TierT0: {MaxPropagationLatencyMS: 60000, SyncCheckRequired: false, IntrospectionRequired: false},
	TierT1: {MaxPropagationLatencyMS: 60000, SyncCheckRequired: false, IntrospectionRequired: false},
	TierT2: {MaxPropagationLatencyMS: 30000, SyncCheckRequired: false, IntrospectionRequired: false},
	TierT3: {MaxPropagationLatencyMS: 10000, SyncCheckRequired: false, IntrospectionRequired: false},
	TierT4: {MaxPropagationLatencyMS: 1000, SyncCheckRequired: true, IntrospectionRequired: true},
	TierT5: {MaxPropagationLatencyMS: 1000, SyncCheckRequired: true, IntrospectionRequired: true},
}

// RevocationSLAFor resolves the revocation SLA for a tier.
func RevocationSLAFor(t Tier) (RevocationSLA, error) {
	sla, ok := revocationSLAs[t]
	if !ok {
		return RevocationSLA{}, fmt.Errorf("types: unknown trust tier %d", int(t))
	}
	return sla, nil
}
