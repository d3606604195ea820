package revocation

import (
	"context"

	"github.com/google/uuid"

	"github.com/aci-systems/security-core/internal/types"
	"github.com/aci-systems/security-core/internal/types/securerr"
)

// Service is the revocation engine of spec.md §4.5.
type Service struct {
	cfg         Config
	registry    Registry
	cache       StatusCache
	delegations types.DelegationRegistry
	tokens      types.TokenService
	webhooks    types.WebhookService
	bus         *types.EventBus
	clock       types.Clock
	ownsCache   bool
	sleep       func(ms int64)
}

// Option configures a Service at construction time.
type Option func(*Service)

func WithRegistry(r Registry) Option             { return func(s *Service) { s.registry = r } }
func WithCache(c StatusCache) Option              { return func(s *Service) { s.cache = c } }
func WithDelegationRegistry(d types.DelegationRegistry) Option {
	return func(s *Service) { s.delegations = d }
}
func WithTokenService(t types.TokenService) Option { return func(s *Service) { s.tokens = t } }
func WithWebhookService(w types.WebhookService) Option {
	return func(s *Service) { s.webhooks = w }
}
func WithClock(c types.Clock) Option { return func(s *Service) { s.clock = c } }

// WithSleep overrides the grace-period wait function; tests supply a no-op
// or instrumented sleep instead of a real time.Sleep.
func WithSleep(fn func(ms int64)) Option { return func(s *Service) { s.sleep = fn } }

func NewService(cfg Config, opts ...Option) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &Service{
		cfg:      cfg,
		registry: NewMemoryRegistry(),
		clock:    types.SystemClock{},
		bus:      types.NewEventBus(),
		sleep:    func(int64) {},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.cache == nil {
		s.cache = NewMemoryStatusCache()
		s.ownsCache = true
	}
	return s, nil
}

func (s *Service) Close() error {
	if s.ownsCache {
		return s.cache.Close()
	}
	return nil
}

// RequiresSyncCheck implements spec.md §4.5's requires_sync_check(tier,
// is_high_value): sync is required at tier T4+ regardless of operation
// value, or at T2+ when the operation is high-value (spec.md §4.1 phase 5).
// A non-empty cfg.RequiredForTiers overrides the default SLA table entirely.
func (s *Service) RequiresSyncCheck(t types.Tier, isHighValue bool) bool {
	if len(s.cfg.RequiredForTiers) > 0 {
		for _, rt := range s.cfg.RequiredForTiers {
			if rt == t {
				return true
			}
		}
		return isHighValue && t >= types.TierT2
	}
	sla, err := types.RevocationSLAFor(t)
	if err != nil {
		return true // fail-closed on an unresolvable tier
	}
	if sla.SyncCheckRequired {
		return true
	}
	return isHighValue && t >= types.TierT2
}

// OnRevocation implements spec.md §4.5's on_revocation(callback) ->
// unsubscribe.
func (s *Service) OnRevocation(fn types.Subscriber) types.Unsubscribe {
	return s.bus.Subscribe(fn)
}

// CheckRevocationStatus implements spec.md §4.5's
// check_revocation_status(did, tier): uses the tier's SLA as the cache TTL,
// or performs a fresh check when the tier requires sync checking.
func (s *Service) CheckRevocationStatus(ctx context.Context, did string, tier types.Tier) (State, error) {
	sla, err := types.RevocationSLAFor(tier)
	if err != nil {
		return State{}, securerr.Wrap(securerr.ComponentRevocation, securerr.CodeRevocationError, "unresolvable tier", err)
	}
	if sla.SyncCheckRequired {
		return s.SyncRevocationCheck(ctx, did)
	}

	now := nowMS(s.clock.Now())
	if cached, ok := s.cache.Get(did, sla.MaxPropagationLatencyMS, now); ok {
		return cached, nil
	}
	return s.freshCheck(ctx, did, now)
}

// SyncRevocationCheck implements spec.md §4.5's sync_revocation_check(did),
// bypassing the cache entirely.
func (s *Service) SyncRevocationCheck(ctx context.Context, did string) (State, error) {
	return s.freshCheck(ctx, did, nowMS(s.clock.Now()))
}

func (s *Service) freshCheck(ctx context.Context, did string, nowUnixMS int64) (State, error) {
	state, err := s.registry.Get(ctx, did)
	if err != nil {
		return State{}, securerr.Wrap(securerr.ComponentRevocation, securerr.CodeRevocationError, "registry read failed", err)
	}
	s.cache.Put(did, state, nowUnixMS)
	return state, nil
}

// RevokeAgent implements the propagation algorithm of spec.md §4.5.
func (s *Service) RevokeAgent(ctx context.Context, req Request) (Result, error) {
	revocationID := uuid.New().String()
	now := s.clock.Now()

	if err := s.markRevoked(ctx, req.RevokedDID, req.Reason, now); err != nil {
		return Result{}, err
	}

	var descendants []string
	propagationComplete := true
	if req.TerminateDescendants {
		if req.GracePeriodMS > 0 {
			s.sleep(req.GracePeriodMS)
		}
		var err error
		descendants, err = s.revokeDescendants(ctx, req.RevokedDID, req.Reason, now)
		if err != nil {
			// spec.md §4.5 "Failure semantics": the primary revocation still
			// succeeds if the principal DID was revoked; propagation_complete
			// reflects the conjunction, so a descendant failure is recorded
			// here rather than discarding the already-committed revocation.
			propagationComplete = false
		}
	}

	tokensInvalidated := s.invalidateTokens(ctx, req.RevokedDID)
	for _, d := range descendants {
		tokensInvalidated += s.invalidateTokens(ctx, d)
	}

	s.bus.Publish(types.AuditEvent{
		Type:         "agent.revoked",
		RevocationID: revocationID,
		DID:          req.RevokedDID,
		Reason:       req.Reason,
		Timestamp:    now,
	})
	for _, d := range descendants {
		s.bus.Publish(types.AuditEvent{
			Type:         "delegation.terminated",
			RevocationID: revocationID,
			DID:          d,
			Reason:       req.Reason,
			Timestamp:    now,
			Metadata:     map[string]any{"ancestor_did": req.RevokedDID},
		})
	}
	if tokensInvalidated > 0 {
		s.bus.Publish(types.AuditEvent{
			Type:         "token.invalidated",
			RevocationID: revocationID,
			DID:          req.RevokedDID,
			Timestamp:    now,
			Metadata:     map[string]any{"count": tokensInvalidated},
		})
	}

	if req.NotifyWebhooks && s.webhooks != nil {
		// Webhook failures are logged by the caller's webhook implementation
		// but never fail the propagation (spec.md §4.5 step 6).
		_ = s.webhooks.Notify(ctx, "agent.revoked", Result{
			RevocationID:       revocationID,
			RevokedDID:         req.RevokedDID,
			DescendantsRevoked: descendants,
			TokensInvalidated:  tokensInvalidated,
		})
	}

	return Result{
		RevocationID:        revocationID,
		RevokedDID:          req.RevokedDID,
		DescendantsRevoked:  descendants,
		TokensInvalidated:   tokensInvalidated,
		PropagationComplete: propagationComplete,
		Timestamp:           now,
	}, nil
}

func (s *Service) markRevoked(ctx context.Context, did, reason string, now int64) error {
	state := State{DID: did, Status: StatusRevoked, RevokedAt: now, Reason: reason}
	if err := s.registry.Put(ctx, state); err != nil {
		return securerr.Wrap(securerr.ComponentRevocation, securerr.CodeRevocationError, "registry write failed", err)
	}
	s.cache.Invalidate(did)
	return nil
}

// revokeDescendants implements spec.md §4.5 step 2: BFS traversal of the
// delegation graph, revoking each edge without a grace period on recursive
// hops, accumulating a flat list of revoked descendants.
func (s *Service) revokeDescendants(ctx context.Context, rootDID, reason string, now int64) ([]string, error) {
	if s.delegations == nil {
		return nil, nil
	}

	visited := map[string]bool{rootDID: true}
	queue := []string{rootDID}
	var revoked []string

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		edges, err := s.delegations.GetDelegationsFrom(ctx, current)
		if err != nil {
			return revoked, securerr.Wrap(securerr.ComponentRevocation, securerr.CodeRevocationError, "delegation graph read failed", err)
		}

		for _, edge := range edges {
			if visited[edge.DelegateDID] {
				continue
			}
			visited[edge.DelegateDID] = true

			if err := s.delegations.RevokeDelegation(ctx, edge.DelegationID, reason); err != nil {
				return revoked, securerr.Wrap(securerr.ComponentRevocation, securerr.CodeRevocationError, "delegation revoke failed", err)
			}
			descendantReason := reason + " (inherited from " + current + ")"
			if err := s.markRevoked(ctx, edge.DelegateDID, descendantReason, now); err != nil {
				return revoked, err
			}

			revoked = append(revoked, edge.DelegateDID)
			queue = append(queue, edge.DelegateDID)
		}
	}

	return revoked, nil
}

func (s *Service) invalidateTokens(ctx context.Context, did string) int {
	if s.tokens == nil {
		return 0
	}
	count, err := s.tokens.InvalidateForAgent(ctx, did)
	if err != nil {
		return 0
	}
	return count
}
