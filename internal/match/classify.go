package match

import "github.com/example/trip-matching/internal/models"

// Classify labels a pairing from its overlap numbers. Pure function.
func Classify(overlapPct, deviationKm, totalKm float64) models.MatchType {
	switch {
	case overlapPct >= 0.95:
		return models.MatchExactRoute
	case overlapPct >= 0.3:
		return models.MatchPartialOverlap
	}
	deviationRatio := 1.0
	if totalKm > 0 {
		deviationRatio = deviationKm / totalKm
	}
	if deviationRatio < 0.3 {
		return models.MatchDetourPickup
	}
	return models.MatchDetourDropoff
}
