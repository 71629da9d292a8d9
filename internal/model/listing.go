package model

import "time"

// Listing is one item in the seller's marketplace inventory.
type Listing struct {
	ListedAt        time.Time
	UpdatedAt       time.Time
	Artist          string
	Title           string
	Currency        string
	MediaCondition  string
	SleeveCondition string
	Status          string
	ReleaseID       int64
	ID              int64
	Price           float64
}

// Discogs condition grade codes, best to worst.
const (
	GradeMint     = "M"
	GradeNearMint = "NM"
	GradeVGPlus   = "VG+"
	GradeVG       = "VG"
	GradeGoodPlus = "G+"
	GradeGood     = "G"
	GradeFair     = "F"
	GradePoor     = "P"
)

// GradeScale maps condition grade codes to a numeric quality factor in [0,1].
// The scale is configuration; DefaultGradeScale is used when the user
// supplies no override.
type GradeScale map[string]float64

// DefaultGradeScale is the standard Mint=1.0 down to Poor=0.2 scale.
func DefaultGradeScale() GradeScale {
	return GradeScale{
		GradeMint:     1.0,
		GradeNearMint: 0.9,
		GradeVGPlus:   0.75,
		GradeVG:       0.6,
		GradeGoodPlus: 0.45,
		GradeGood:     0.35,
		GradeFair:     0.25,
		GradePoor:     0.2,
	}
}

// Grade resolves a condition code to its numeric factor. Unknown or empty
// grades resolve to the VG factor, the marketplace's effective midpoint.
func (g GradeScale) Grade(condition string) float64 {
	if v, ok := g[condition]; ok {
		return v
	}
	return g[GradeVG]
}
