package match

import (
	"testing"

	"github.com/example/trip-matching/internal/models"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name        string
		overlapPct  float64
		deviationKm float64
		totalKm     float64
		want        models.MatchType
	}{
		{"full overlap", 1.0, 0, 10, models.MatchExactRoute},
		{"at exact threshold", 0.95, 0.5, 10, models.MatchExactRoute},
		{"just under exact", 0.949, 0.5, 10, models.MatchPartialOverlap},
		{"at partial threshold", 0.3, 7, 10, models.MatchPartialOverlap},
		{"low overlap small deviation", 0.1, 2, 10, models.MatchDetourPickup},
		{"low overlap large deviation", 0.1, 5, 10, models.MatchDetourDropoff},
		{"zero total distance", 0.1, 1, 0, models.MatchDetourDropoff},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.overlapPct, tt.deviationKm, tt.totalKm); got != tt.want {
				t.Errorf("Classify(%v, %v, %v) = %v, want %v", tt.overlapPct, tt.deviationKm, tt.totalKm, got, tt.want)
			}
		})
	}
}
