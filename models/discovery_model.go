package models

import (
	"fmt"
	"strings"
)

// Strategy selects which candidate sources a discovery call queries and how it
// falls back when one of them fails.
type Strategy string

const (
	StrategyLocalOnly               Strategy = "LOCAL_ONLY"
	StrategyRemoteOnly              Strategy = "REMOTE_ONLY"
	StrategyRemoteFirstWithFallback Strategy = "REMOTE_FIRST_WITH_FALLBACK"
	StrategyHybrid                  Strategy = "HYBRID"
)

var strategyAliases = map[string]Strategy{
	"LOCAL_ONLY":                 StrategyLocalOnly,
	"LOCAL":                      StrategyLocalOnly,
	"REMOTE_ONLY":                StrategyRemoteOnly,
	"REMOTE":                     StrategyRemoteOnly,
	"API_FIRST":                  StrategyRemoteOnly,
	"REMOTE_FIRST_WITH_FALLBACK": StrategyRemoteFirstWithFallback,
	"REMOTE_FIRST":               StrategyRemoteFirstWithFallback,
	"LLM_FIRST":                  StrategyRemoteFirstWithFallback,
	"FALLBACK":                   StrategyRemoteFirstWithFallback,
	"HYBRID":                     StrategyHybrid,
	"HYBRID_MERGE":               StrategyHybrid,
}

// ParseStrategy maps a strategy name or one of its aliases to a Strategy.
func ParseStrategy(s string) (Strategy, error) {
	key := strings.ToUpper(strings.TrimSpace(s))
	key = strings.ReplaceAll(key, "-", "_")
	if strategy, ok := strategyAliases[key]; ok {
		return strategy, nil
	}
	return "", fmt.Errorf("unknown discovery strategy %q", s)
}

// Valid reports whether s is one of the four strategies.
func (s Strategy) Valid() bool {
	switch s {
	case StrategyLocalOnly, StrategyRemoteOnly, StrategyRemoteFirstWithFallback, StrategyHybrid:
		return true
	}
	return false
}

// DiscoveryRequest is the input to one discover call.
type DiscoveryRequest struct {
	Origin       GeoPoint
	Category     string
	Strategy     Strategy
	MaxResults   int
	RadiusMeters float64 // 0 selects the configured default

	// Preferences ranks against a traveler's own preference state. Nil uses
	// the ranking engine's session preferences.
	Preferences *CategoryPreference
}

// DiscoveryResult is the envelope returned by a discover call.
type DiscoveryResult struct {
	POIs              []POI    `json:"pois"`
	Category          string   `json:"category"`
	StrategyRequested Strategy `json:"strategy_requested"`
	StrategyUsed      Strategy `json:"strategy_used"`
	ResponseTimeMs    int64    `json:"response_time_ms"`
	FallbackUsed      bool     `json:"fallback_used"`
	ExcludedCount     int      `json:"excluded_count"`
	WasCached         bool     `json:"was_cached"`
	RadiusMeters      float64  `json:"radius_meters"`
	Expansions        int      `json:"expansions"`
}

// Clone returns a deep copy of r.
func (r *DiscoveryResult) Clone() *DiscoveryResult {
	if r == nil {
		return nil
	}
	out := *r
	out.POIs = ClonePOIs(r.POIs)
	return &out
}
