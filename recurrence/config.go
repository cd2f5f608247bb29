package recurrence

import (
	"fmt"
	"time"
)

// OverflowPolicy decides what happens when a forced day of month does not
// exist in the target month (e.g. the 31st of February).
type OverflowPolicy int

const (
	// OverflowRollover carries the excess days into the following month,
	// so February 31st becomes March 3rd (or 2nd in a leap year).
	OverflowRollover OverflowPolicy = iota
	// OverflowClamp caps the day at the last day of the target month.
	OverflowClamp
)

// String provides a human-readable representation of the OverflowPolicy.
func (p OverflowPolicy) String() string {
	switch p {
	case OverflowRollover:
		return "rollover"
	case OverflowClamp:
		return "clamp"
	default:
		return "unknown"
	}
}

// ParseOverflowPolicy maps "rollover" or "clamp" to a policy
func ParseOverflowPolicy(s string) (OverflowPolicy, error) {
	switch s {
	case "", "rollover":
		return OverflowRollover, nil
	case "clamp":
		return OverflowClamp, nil
	default:
		return OverflowRollover, fmt.Errorf("unknown overflow policy %q", s)
	}
}

// EngineConfig holds configuration options for the recurrence engine
type EngineConfig struct {
	// Cache configuration
	CacheEnabled bool
	CacheConfig  CacheConfig

	// Expansion behaviour
	MaxOccurrences int // Upper bound on occurrences per expansion, <=0 means DefaultMaxOccurrences
	Overflow       OverflowPolicy
}

// ExpansionOptions overrides engine settings for a single call
type ExpansionOptions struct {
	MaxOccurrences int // 0 = engine default
}

// DefaultEngineConfig provides sensible defaults for production use
var DefaultEngineConfig = EngineConfig{
	CacheEnabled: true,
	CacheConfig:  DefaultCacheConfig,

	MaxOccurrences: DefaultMaxOccurrences,
	Overflow:       OverflowRollover,
}

// ClampingConfig keeps forced days inside their target month
var ClampingConfig = EngineConfig{
	CacheEnabled: true,
	CacheConfig:  DefaultCacheConfig,

	MaxOccurrences: DefaultMaxOccurrences,
	Overflow:       OverflowClamp,
}

// LowMemoryConfig is optimized for memory-constrained environments
var LowMemoryConfig = EngineConfig{
	CacheEnabled: true,
	CacheConfig: CacheConfig{
		TTL:             5 * time.Minute, // Shorter cache TTL
		MaxEntries:      100,             // Fewer cache entries
		CleanupInterval: 2 * time.Minute, // More frequent cleanup
	},

	MaxOccurrences: DefaultMaxOccurrences,
	Overflow:       OverflowRollover,
}

// DisabledCacheConfig turns off caching entirely
var DisabledCacheConfig = EngineConfig{
	CacheEnabled: false,
	CacheConfig:  CacheConfig{}, // Not used

	MaxOccurrences: DefaultMaxOccurrences,
	Overflow:       OverflowRollover,
}

// NewEngineWithConfig creates a new recurrence engine with custom configuration
func NewEngineWithConfig(config EngineConfig) *Engine {
	if config.MaxOccurrences <= 0 {
		config.MaxOccurrences = DefaultMaxOccurrences
	}

	var cache *ExpansionCache
	if config.CacheEnabled {
		cache = NewExpansionCache(config.CacheConfig)
	}

	return &Engine{
		cache:  cache,
		config: config,
	}
}
