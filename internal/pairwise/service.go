package pairwise

import (
	"context"

	"github.com/aci-systems/security-core/internal/types"
	"github.com/aci-systems/security-core/internal/types/securerr"
)

// Service is the pairwise DID derivation service of spec.md §4.4.
type Service struct {
	cfg       Config
	registry  Registry
	clock     types.Clock
	ownsReg   bool
}

// Option configures a Service at construction time.
type Option func(*Service)

func WithRegistry(r Registry) Option {
	return func(s *Service) { s.registry = r }
}

func WithClock(c types.Clock) Option {
	return func(s *Service) { s.clock = c }
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &Service{cfg: cfg, clock: types.SystemClock{}}
	for _, opt := range opts {
		opt(s)
	}
	if s.registry == nil {
		s.registry = NewMemoryRegistry()
		s.ownsReg = true
	}
	return s, nil
}

func (s *Service) Close() error {
	if s.ownsReg {
		return s.registry.Close()
	}
	return nil
}

// DerivePairwiseDID implements spec.md §4.4's derive_pairwise_did. The
// registry is consulted first; a cache hit returns the existing derivation
// without re-deriving, per the registry invariant of spec.md §3.
func (s *Service) DerivePairwiseDID(ctx context.Context, masterDID, rpDID, salt string) (string, error) {
	if existing, ok, err := s.registry.Get(ctx, masterDID, rpDID); err != nil {
		return "", securerr.Wrap(securerr.ComponentPairwise, securerr.CodePairwiseDIDError, "registry lookup failed", err)
	} else if ok {
		return existing.DerivedDID, nil
	}

	if salt == "" {
		generated, err := s.cfg.GenerateSalt()
		if err != nil {
			return "", securerr.Wrap(securerr.ComponentPairwise, securerr.CodePairwiseDIDError, "salt generation failed", err)
		}
		salt = generated
	}

	derivedDID, err := derive(s.cfg.Algorithm, masterDID, rpDID, salt, s.cfg.Info)
	if err != nil {
		return "", securerr.Wrap(securerr.ComponentPairwise, securerr.CodePairwiseDIDError, "derivation failed", err)
	}

	rec := Record{
		MasterDID:       masterDID,
		RelyingPartyDID: rpDID,
		ContextSalt:     salt,
		DerivedDID:      derivedDID,
		CreatedAt:       s.clock.Now(),
	}
	if err := s.registry.Put(ctx, rec); err != nil {
		return "", securerr.Wrap(securerr.ComponentPairwise, securerr.CodePairwiseDIDError, "registry write failed", err)
	}
	return derivedDID, nil
}

// ValidatePairwiseDID implements spec.md §4.4's validate_pairwise_did: it
// re-derives from (master, rp, salt) and compares against the presented
// pairwise DID, independent of what (if anything) is in the registry.
func (s *Service) ValidatePairwiseDID(pairwiseDID, masterDID, rpDID, salt string) (bool, error) {
	derivedDID, err := derive(s.cfg.Algorithm, masterDID, rpDID, salt, s.cfg.Info)
	if err != nil {
		return false, securerr.Wrap(securerr.ComponentPairwise, securerr.CodePairwiseDIDError, "derivation failed", err)
	}
	return derivedDID == pairwiseDID, nil
}

// ValidateAgainstRegistry confirms a presented pairwise DID matches the
// registered derivation for (masterDID, rpDID), rather than re-deriving from
// a caller-supplied salt: it looks up the stored record (which carries the
// salt the derivation was actually made with) and compares DerivedDID
// directly. Returns false, without error, when no derivation is on record.
func (s *Service) ValidateAgainstRegistry(ctx context.Context, masterDID, rpDID, presentedDID string) (bool, error) {
	rec, ok, err := s.registry.Get(ctx, masterDID, rpDID)
	if err != nil {
		return false, securerr.Wrap(securerr.ComponentPairwise, securerr.CodePairwiseDIDError, "registry lookup failed", err)
	}
	if !ok {
		return false, nil
	}
	return rec.DerivedDID == presentedDID, nil
}

// GenerateSalt implements spec.md §4.4's generate_salt().
func (s *Service) GenerateSalt() (string, error) {
	return s.cfg.GenerateSalt()
}

// IsRequired implements spec.md §4.4's is_required(data_classification).
func (s *Service) IsRequired(classification types.DataClassification) bool {
	return classification.RequiresPairwise()
}

// GetRequirement implements spec.md §4.4's get_requirement(freeform_type_label)
// via the fixed label map of spec.md §6.
func (s *Service) GetRequirement(typeLabel string) types.PairwiseRequirement {
	classification := types.NormalizeClassification(typeLabel)
	return types.PairwiseRequirement{
		Required:       classification.RequiresPairwise(),
		Classification: classification,
	}
}

// RevokeRelationship removes a cached derivation, per spec.md §4.4
// "Explicit revoke_relationship removes the entry".
func (s *Service) RevokeRelationship(ctx context.Context, masterDID, rpDID string) error {
	if err := s.registry.Revoke(ctx, masterDID, rpDID); err != nil {
		return securerr.Wrap(securerr.ComponentPairwise, securerr.CodePairwiseDIDError, "revoke failed", err)
	}
	return nil
}

// ListDerivations implements spec.md §4.4's list_derivations(master).
func (s *Service) ListDerivations(ctx context.Context, masterDID string) ([]Record, error) {
	recs, err := s.registry.ListByMaster(ctx, masterDID)
	if err != nil {
		return nil, securerr.Wrap(securerr.ComponentPairwise, securerr.CodePairwiseDIDError, "list failed", err)
	}
	return recs, nil
}
