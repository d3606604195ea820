// Package lifetime implements the token lifetime discipline of spec.md
// §4.6: TTL ceiling lookups, the exp/iat validation algorithm, and
// refresh-recommendation arithmetic.
package lifetime

import (
	"github.com/aci-systems/security-core/internal/types"
	"github.com/aci-systems/security-core/internal/types/securerr"
)

// Config carries the default TTLs and refresh threshold of spec.md §6
// ("Default token lifetimes").
type Config struct {
	AccessTTLSeconds    int64
	RefreshTTLSeconds   int64
	IDTTLSeconds        int64
	HighValueTTLSeconds int64
	RefreshThreshold    float64
}

func DefaultConfig() Config {
	return Config{
		AccessTTLSeconds:    types.DefaultAccessTTLSeconds,
		RefreshTTLSeconds:   types.DefaultRefreshTTLSeconds,
		IDTTLSeconds:        types.DefaultIDTTLSeconds,
		HighValueTTLSeconds: types.DefaultHighValueTTLSeconds,
		RefreshThreshold:    types.DefaultRefreshThreshold,
	}
}

func (c Config) Validate() error {
	if c.AccessTTLSeconds <= 0 || c.RefreshTTLSeconds <= 0 || c.IDTTLSeconds <= 0 || c.HighValueTTLSeconds <= 0 {
		return securerr.New(securerr.ComponentToken, securerr.CodeTTLTooLong, "all configured TTLs must be positive")
	}
	if c.RefreshThreshold <= 0 || c.RefreshThreshold > 1 {
		return securerr.New(securerr.ComponentToken, securerr.CodeTTLTooLong, "RefreshThreshold must be in (0, 1]")
	}
	return nil
}

// Service is the token lifetime service of spec.md §4.6.
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

// Decision is the validate_lifetime(claims, type, is_high_value) result of
// spec.md §4.6.
type Decision struct {
	Valid        bool
	RemainingTTL int64
	ShouldRefresh bool
	Error        error
}

// GetMaxTTL implements spec.md §4.6's get_max_ttl(type, is_high_value).
// tierCeiling, when non-nil, replaces the configured access-token ceiling
// with the requesting tier's SecurityRequirements.MaxTokenTTLSeconds (spec.md
// §8 scenario 4: the same claims are accepted at T0 and rejected at T2
// purely on account of the tier's own ceiling). The high-value ceiling
// still takes precedence over it.
func (s *Service) GetMaxTTL(tokenType types.TokenType, isHighValue bool, tierCeiling *int64) int64 {
	switch tokenType {
	case types.TokenRefresh:
		return s.cfg.RefreshTTLSeconds
	case types.TokenID:
		return s.cfg.IDTTLSeconds
	default: // access
		if isHighValue {
			return s.cfg.HighValueTTLSeconds
		}
		if tierCeiling != nil {
			return *tierCeiling
		}
		return s.cfg.AccessTTLSeconds
	}
}

// ValidateLifetime implements spec.md §4.6's validation algorithm.
func (s *Service) ValidateLifetime(claims types.TokenClaims, tokenType types.TokenType, isHighValue bool, tierCeiling *int64) Decision {
	if claims.ExpiresAt == 0 {
		err := securerr.New(securerr.ComponentToken, securerr.CodeMissingExp, "token claims missing exp")
		return Decision{Error: err}
	}
	if claims.IssuedAt == 0 {
		err := securerr.New(securerr.ComponentToken, securerr.CodeMissingIat, "token claims missing iat")
		return Decision{Error: err}
	}

	now := s.clock.Now()
	remaining := claims.ExpiresAt - now
	if remaining <= 0 {
		err := securerr.New(securerr.ComponentToken, securerr.CodeTokenExpired, "token has expired")
		return Decision{RemainingTTL: remaining, Error: err}
	}

	total := claims.ExpiresAt - claims.IssuedAt
	maxTTL := s.GetMaxTTL(tokenType, isHighValue, tierCeiling)
	if total > maxTTL {
		err := securerr.New(securerr.ComponentToken, securerr.CodeTTLTooLong, "token lifetime exceeds the allowed ceiling")
		return Decision{RemainingTTL: remaining, Error: err}
	}

	shouldRefresh := float64(remaining) <= s.cfg.RefreshThreshold*float64(total)
	return Decision{Valid: true, RemainingTTL: remaining, ShouldRefresh: shouldRefresh}
}

// ShouldRefresh implements spec.md §4.6's should_refresh(claims) in
// isolation, using the token's own lifetime (exp - iat) for `total`.
func (s *Service) ShouldRefresh(claims types.TokenClaims) bool {
	if claims.ExpiresAt == 0 || claims.IssuedAt == 0 {
		return false
	}
	now := s.clock.Now()
	remaining := claims.ExpiresAt - now
	total := claims.ExpiresAt - claims.IssuedAt
	if total <= 0 {
		return false
	}
	return float64(remaining) <= s.cfg.RefreshThreshold*float64(total)
}

// IsHighValueOperation implements spec.md §4.6's
// is_high_value_operation(action): a label match against the fixed set of
// spec.md §6, or an action level of 3 or higher.
func (s *Service) IsHighValueOperation(action string, actionLevel int) bool {
	return types.IsHighValueOperation(action) || actionLevel >= 3
}
