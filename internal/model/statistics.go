package model

// Scarcity buckets the comparable sample size for a release.
type Scarcity string

// Scarcity constants.
const (
	ScarcityHigh   Scarcity = "high"
	ScarcityMedium Scarcity = "medium"
	ScarcityLow    Scarcity = "low"
)

// Sample-count boundaries for scarcity derivation.
const (
	scarcityHighMax   = 3
	scarcityMediumMax = 10
)

// MarketStatistics is an immutable snapshot of aggregated market data for one
// listing's reference release. All prices are in the listing's currency.
// The engine never computes these; they arrive from the market-data collaborator.
type MarketStatistics struct {
	Median   float64
	Mean     float64
	Min      float64
	Max      float64
	P25      float64
	P75      float64
	P90      float64
	Count    int
	Scarcity Scarcity
}

// DeriveScarcity buckets a comparable-sale count into a scarcity level.
func DeriveScarcity(count int) Scarcity {
	switch {
	case count <= scarcityHighMax:
		return ScarcityHigh
	case count <= scarcityMediumMax:
		return ScarcityMedium
	default:
		return ScarcityLow
	}
}
