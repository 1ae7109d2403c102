package analysis

import "fmt"

// Tier is one of the five trust levels, highest first.
type Tier string

const (
	HighlyTrusted     Tier = "Highly Trusted"
	ModeratelyTrusted Tier = "Moderately Trusted"
	Neutral           Tier = "Neutral"
	LowTrust          Tier = "Low Trust"
	HighRisk          Tier = "High Risk"
)

// Classify maps a 0-100 score to its tier.
func Classify(score int) Tier {
	switch {
	case score >= 80:
		return HighlyTrusted
	case score >= 60:
		return ModeratelyTrusted
	case score >= 40:
		return Neutral
	case score >= 20:
		return LowTrust
	default:
		return HighRisk
	}
}

const vouchedMarker = " - VOUCHED ✅"

// Summary formats "<tier> (<score>/100)", with the vouched marker when applicable.
func Summary(tier Tier, score int, vouched bool) string {
	s := fmt.Sprintf("%s (%d/100)", tier, score)
	if vouched {
		s += vouchedMarker
	}
	return s
}
