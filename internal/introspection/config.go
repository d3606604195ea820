package introspection

import (
	"fmt"
	"time"

	"github.com/aci-systems/security-core/internal/types"
)

// Config controls the cache TTL and sweep cadence of the introspection
// service (spec.md §4.7).
type Config struct {
	// DefaultMaxAgeMS is the default max_age_ms used by cached_introspect
	// when the caller does not supply one.
	DefaultMaxAgeMS int64
	// MaxCacheTTLMS is the hard ceiling cached_introspect clamps
	// max_age_ms to, regardless of what the caller requests.
	MaxCacheTTLMS int64
	// SweepInterval is how often the in-process cache sweeps expired
	// entries. It is set independently of DefaultMaxAgeMS; the default of
	// one minute is 2x the default DefaultMaxAgeMS.
	SweepInterval time.Duration
	Timeout       time.Duration
}

func DefaultConfig() Config {
	return Config{
		DefaultMaxAgeMS: 30_000,
		MaxCacheTTLMS:   300_000,
		SweepInterval:   time.Minute,
		Timeout:         types.DefaultIntrospectionTimeout,
	}
}

func (c Config) Validate() error {
	if c.DefaultMaxAgeMS <= 0 {
		return fmt.Errorf("introspection: DefaultMaxAgeMS must be positive")
	}
	if c.MaxCacheTTLMS < c.DefaultMaxAgeMS {
		return fmt.Errorf("introspection: MaxCacheTTLMS must be >= DefaultMaxAgeMS")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("introspection: Timeout must be positive")
	}
	return nil
}
