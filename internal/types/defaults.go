package types

import "time"

// Defaults mirrors spec.md §6 "Default token lifetimes" / "Default
// revocation SLAs" and the global clock-skew tolerance of spec.md §4.1.
const (
	DefaultAccessTTLSeconds         = 300
	DefaultRefreshTTLSeconds        = 86400
	DefaultIDTTLSeconds             = 300
	DefaultHighValueTTLSeconds      = 60
	DefaultRefreshThreshold         = 0.2

	DefaultClockSkew = 5 * time.Second

	DefaultIntrospectionTimeout = 5 * time.Second
	DefaultAttestationTimeout   = 30 * time.Second
)
