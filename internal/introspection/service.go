package introspection

import (
	"context"

	"github.com/aci-systems/security-core/internal/types"
	"github.com/aci-systems/security-core/internal/types/securerr"
)

// Service is the introspection service of spec.md §4.7.
type Service struct {
	cfg       Config
	endpoint  types.IntrospectionEndpoint
	cache     Cache
	clock     types.Clock
	ownsCache bool
}

type Option func(*Service)

func WithCache(c Cache) Option           { return func(s *Service) { s.cache = c } }
func WithClock(c types.Clock) Option     { return func(s *Service) { s.clock = c } }

func NewService(cfg Config, endpoint types.IntrospectionEndpoint, opts ...Option) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if endpoint == nil {
		return nil, securerr.New(securerr.ComponentIntrospection, securerr.CodeIntrospectionError, "introspection endpoint must not be nil")
	}
	s := &Service{cfg: cfg, endpoint: endpoint, clock: types.SystemClock{}}
	for _, opt := range opts {
		opt(s)
	}
	if s.cache == nil {
		s.cache = NewMemoryCache(cfg.SweepInterval, cfg.DefaultMaxAgeMS)
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

// Result wraps types.IntrospectionResult with the from_cache flag of
// spec.md §4.7.
type Result struct {
	types.IntrospectionResult
	FromCache bool
}

// Introspect implements spec.md §4.7's introspect(token): always consults
// the endpoint and refreshes the cache.
func (s *Service) Introspect(ctx context.Context, token string) (Result, error) {
	result, err := s.endpoint.Introspect(ctx, token)
	if err != nil {
		if ctx.Err() != nil {
			return Result{}, securerr.Wrap(securerr.ComponentIntrospection, securerr.CodeIntrospectionTimeout, "introspection endpoint timed out", err)
		}
		return Result{}, securerr.Wrap(securerr.ComponentIntrospection, securerr.CodeIntrospectionError, "introspection endpoint error", err)
	}

	tokenDigest := digest(token)
	if err := s.cache.Put(ctx, tokenDigest, result, s.clock.Now()); err != nil {
		return Result{}, securerr.Wrap(securerr.ComponentIntrospection, securerr.CodeIntrospectionError, "cache write failed", err)
	}

	return Result{IntrospectionResult: result, FromCache: false}, nil
}

// CachedIntrospect implements spec.md §4.7's cached_introspect(token,
// optional max_age_ms).
func (s *Service) CachedIntrospect(ctx context.Context, token string, maxAgeMS *int64) (Result, error) {
	effectiveMaxAge := s.cfg.DefaultMaxAgeMS
	if maxAgeMS != nil {
		effectiveMaxAge = *maxAgeMS
	}
	if effectiveMaxAge > s.cfg.MaxCacheTTLMS {
		effectiveMaxAge = s.cfg.MaxCacheTTLMS
	}

	tokenDigest := digest(token)
	cached, cachedAt, ok, err := s.cache.Get(ctx, tokenDigest)
	if err != nil {
		return Result{}, securerr.Wrap(securerr.ComponentIntrospection, securerr.CodeIntrospectionError, "cache read failed", err)
	}
	if ok {
		ageMS := (s.clock.Now() - cachedAt) * 1000
		if ageMS <= effectiveMaxAge {
			return Result{IntrospectionResult: cached, FromCache: true}, nil
		}
	}

	return s.Introspect(ctx, token)
}

// ClearCache implements spec.md §4.7's clear_cache(optional token).
func (s *Service) ClearCache(ctx context.Context, token *string) error {
	if token == nil {
		return s.cache.Clear(ctx)
	}
	return s.cache.Delete(ctx, digest(*token))
}

// IsActive fails the introspection phase on active=false, per spec.md §4.1
// phase 4.
func (r Result) IsActive() bool { return r.Active }
