package coordinator

import (
	"context"

	"github.com/aci-systems/security-core/internal/revocation"
	"github.com/aci-systems/security-core/internal/types"
	"github.com/aci-systems/security-core/internal/types/securerr"
)

// Service is the request-admission pipeline of spec.md §4.1.
type Service struct {
	cfg   Config
	clock types.Clock
}

type Option func(*Service)

func WithClock(c types.Clock) Option { return func(s *Service) { s.clock = c } }

func NewService(cfg Config, opts ...Option) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &Service{cfg: cfg, clock: types.SystemClock{}}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close cascades to every sub-service this coordinator owns, so a single
// Close call tears down every background sweeper in the pipeline.
func (s *Service) Close() error {
	var firstErr error
	record := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if s.cfg.DPoP != nil {
		record(s.cfg.DPoP.Close())
	}
	if s.cfg.Revocation != nil {
		record(s.cfg.Revocation.Close())
	}
	if s.cfg.Pairwise != nil {
		record(s.cfg.Pairwise.Close())
	}
	if s.cfg.Introspection != nil {
		record(s.cfg.Introspection.Close())
	}
	return firstErr
}

func fail(errs ...types.AdmissionError) func(now int64, conformance types.ConformanceLevel) types.AdmissionDecision {
	return func(now int64, conformance types.ConformanceLevel) types.AdmissionDecision {
		return types.AdmissionDecision{Valid: false, Errors: errs, SecurityLevel: conformance, ValidatedAt: now}
	}
}

func admissionErrorFrom(err error) types.AdmissionError {
	if se, ok := securerr.As(err); ok {
		return types.AdmissionError{Code: string(se.Code), Component: string(se.Component), Message: se.Message}
	}
	return types.AdmissionError{Code: "INTERNAL_ERROR", Component: "coordinator", Message: err.Error()}
}

// Admit runs the ordered pipeline of spec.md §4.1 and returns a single
// AdmissionDecision. The pipeline short-circuits on the first failing
// phase (spec.md §2: "Any failing sub-check short-circuits with a
// structured error").
func (s *Service) Admit(ctx context.Context, req Request) types.AdmissionDecision {
	now := s.clock.Now()

	// phase 1: resolve SecurityRequirements from tier.
	requirements, err := types.RequirementsFor(req.TrustTier)
	if err != nil {
		return fail(types.AdmissionError{Code: "INVALID_TIER", Component: "coordinator", Message: err.Error()})(now, types.ConformanceNone)
	}
	conformance := types.ConformanceFor(req.TrustTier)
	isHighValue := req.Action.IsHighValue || s.cfg.Lifetime.IsHighValueOperation(req.Action.ActionType, req.Action.ActionLevel)

	// phase 2: token-lifetime.
	ceiling := requirements.MaxTokenTTLSeconds
	lifetimeDecision := s.cfg.Lifetime.ValidateLifetime(req.AccessTokenClaims, types.TokenAccess, isHighValue, &ceiling)
	if lifetimeDecision.Error != nil {
		return fail(admissionErrorFrom(lifetimeDecision.Error))(now, conformance)
	}

	var warnings []string
	if lifetimeDecision.ShouldRefresh {
		warnings = append(warnings, "access token is within its refresh threshold")
	}

	// phase 3: DPoP.
	if requirements.DPoPRequired || isHighValue {
		if s.cfg.DPoP == nil {
			return fail(types.AdmissionError{Code: "DPOP_UNAVAILABLE", Component: string(securerr.ComponentDPoP), Message: "dpop required but no dpop service configured"})(now, conformance)
		}
		if req.DPoPProof == "" {
			return fail(types.AdmissionError{Code: "INVALID_FORMAT", Component: string(securerr.ComponentDPoP), Message: "dpop proof required but not presented"})(now, conformance)
		}
		proof, err := s.cfg.DPoP.VerifyProof(ctx, req.DPoPProof, req.Action.Method, req.Action.URI, "")
		if err != nil {
			return fail(admissionErrorFrom(err))(now, conformance)
		}
		if req.AccessTokenClaims.Confirmation != nil && req.AccessTokenClaims.Confirmation.JKT != "" {
			if proof.Thumbprint != req.AccessTokenClaims.Confirmation.JKT {
				return fail(types.AdmissionError{Code: "INVALID_SIGNATURE", Component: string(securerr.ComponentDPoP), Message: "dpop key thumbprint does not match token cnf.jkt"})(now, conformance)
			}
		}
	}

	// phase 4: introspection.
	sla, err := types.RevocationSLAFor(req.TrustTier)
	if err != nil {
		return fail(types.AdmissionError{Code: "INVALID_TIER", Component: "coordinator", Message: err.Error()})(now, conformance)
	}
	introspectionRequired := sla.IntrospectionRequired || req.Action.ActionLevel >= 3 || isHighValue
	if introspectionRequired {
		if s.cfg.Introspection == nil {
			// fail-closed: spec.md §4.1 "on introspection endpoint
			// unavailability, the policy is fail-closed".
			return fail(types.AdmissionError{Code: "INTROSPECTION_ERROR", Component: string(securerr.ComponentIntrospection), Message: "introspection required but no introspection service configured"})(now, conformance)
		}
		result, err := s.cfg.Introspection.CachedIntrospect(ctx, req.AccessToken, nil)
		if err != nil {
			return fail(admissionErrorFrom(err))(now, conformance)
		}
		if !result.IsActive() {
			return fail(types.AdmissionError{Code: "TOKEN_INACTIVE", Component: string(securerr.ComponentIntrospection), Message: "introspection reports token inactive"})(now, conformance)
		}
	}

	// phase 5: revocation.
	if s.cfg.Revocation == nil && requirements.SyncRevocationRequired {
		return fail(types.AdmissionError{Code: "REVOCATION_ERROR", Component: string(securerr.ComponentRevocation), Message: "sync revocation check required but no revocation service configured"})(now, conformance)
	}
	if s.cfg.Revocation != nil {
		syncRequired := s.cfg.Revocation.RequiresSyncCheck(req.TrustTier, isHighValue)
		var state revocation.State
		var rerr error
		if syncRequired {
			state, rerr = s.cfg.Revocation.SyncRevocationCheck(ctx, req.AgentDID)
		} else {
			state, rerr = s.cfg.Revocation.CheckRevocationStatus(ctx, req.AgentDID, req.TrustTier)
		}
		if rerr != nil {
			return fail(admissionErrorFrom(rerr))(now, conformance)
		}
		if state.Status == revocation.StatusRevoked {
			return fail(types.AdmissionError{Code: "AGENT_REVOKED", Component: string(securerr.ComponentRevocation), Message: "agent DID has been revoked"})(now, conformance)
		}
	}

	// phase 6: TEE.
	if requirements.TEERequired {
		if s.cfg.TEE == nil || req.Attestation == nil {
			return fail(types.AdmissionError{Code: "TEE_ATTESTATION_ERROR", Component: string(securerr.ComponentTEE), Message: "tee attestation required but not presented"})(now, conformance)
		}
		result, err := s.cfg.TEE.VerifyAttestation(*req.Attestation)
		if err != nil {
			return fail(admissionErrorFrom(err))(now, conformance)
		}
		if req.KeyBinding == nil {
			return fail(types.AdmissionError{Code: "TEE_KEY_BINDING_ERROR", Component: string(securerr.ComponentTEE), Message: "tee key binding required but not presented"})(now, conformance)
		}
		ok, err := s.cfg.TEE.VerifyKeyBinding(*req.KeyBinding, result.MeasurementHash)
		if err != nil {
			return fail(admissionErrorFrom(err))(now, conformance)
		}
		if !ok {
			return fail(types.AdmissionError{Code: "TEE_KEY_BINDING_ERROR", Component: string(securerr.ComponentTEE), Message: "key binding does not match attested enclave"})(now, conformance)
		}
	}

	// phase 7: pairwise (advisory).
	classification := types.NormalizeClassification(req.Action.DataClassification)
	if classification.RequiresPairwise() {
		switch {
		case req.PairwiseDID == "" || req.PairwiseDID == req.AgentDID:
			warnings = append(warnings, "data classification requires a pairwise DID but the master DID was presented")
		case s.cfg.Pairwise != nil && req.RelyingPartyDID != "":
			ok, err := s.cfg.Pairwise.ValidateAgainstRegistry(ctx, req.AgentDID, req.RelyingPartyDID, req.PairwiseDID)
			if err != nil {
				warnings = append(warnings, "pairwise DID validation failed: "+err.Error())
			} else if !ok {
				warnings = append(warnings, "presented pairwise DID does not match the registered derivation")
			}
		}
	}

	return types.AdmissionDecision{
		Valid:         true,
		Warnings:      warnings,
		SecurityLevel: conformance,
		ValidatedAt:   now,
	}
}
