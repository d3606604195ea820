package types

import "context"

// Clock abstracts monotonic time so TTL arithmetic and skew comparisons are
// deterministic under test (spec.md §9 "Timekeeping" design note). Every
// service in this module takes a Clock. The cache backends do not: their
// expiry checks and background sweeps (MemoryJTICache, RedisJTICache,
// introspection.MemoryCache) read the wall clock via time.Now.
type Clock interface {
	Now() int64 // Unix seconds
}

// SystemClock is the production Clock backed by the wall clock.
type SystemClock struct{}

func (SystemClock) Now() int64 { return nowUnix() }

// DelegationEdge is one hop in the delegation graph returned by
// DelegationRegistry.GetDelegationsFrom (spec.md §6).
type DelegationEdge struct {
	DelegateDID  string
	DelegationID string
}

// DelegationRegistry is the external collaborator that stores the
// delegation graph. The revocation engine traverses it in BFS order; it
// does not own or persist the graph itself.
type DelegationRegistry interface {
	GetDelegationsFrom(ctx context.Context, did string) ([]DelegationEdge, error)
	RevokeDelegation(ctx context.Context, delegationID, reason string) error
}

// TokenService is the external collaborator that invalidates issued tokens
// for a given agent DID.
type TokenService interface {
	InvalidateForAgent(ctx context.Context, did string) (int, error)
}

// WebhookService is the external collaborator that delivers revocation
// notifications out of process. Failures here are logged, not fatal to the
// propagation they describe (spec.md §4.5 step 6).
type WebhookService interface {
	Notify(ctx context.Context, eventType string, payload any) error
}

// JTICache is the replay-prevention store consumed by internal/dpop
// (spec.md §4.2 "JTI cache contract" and §6).
type JTICache interface {
	Store(ctx context.Context, jti string, expiresAtUnix int64) error
	Exists(ctx context.Context, jti string) (bool, error)
	Close() error
}

// IntrospectionEndpoint is the external RFC 7662 HTTP collaborator consumed
// by internal/introspection. Kept as an interface so tests can supply a
// fake without standing up an HTTP server.
type IntrospectionEndpoint interface {
	Introspect(ctx context.Context, token string) (IntrospectionResult, error)
}

// IntrospectionResult is the RFC 7662 result shape (spec.md §3).
type IntrospectionResult struct {
	Active    bool
	Scope     string
	ClientID  string
	Username  string
	TokenType string
	Exp       int64
	Iat       int64
	Sub       string
	Aud       []string
	Iss       string
	JTI       string
	CnfJKT    string // cnf.jkt, empty if absent
}
