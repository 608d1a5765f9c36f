package match

import (
	"context"
	"math"
	"time"

	"github.com/example/trip-matching/internal/config"
	"github.com/example/trip-matching/internal/models"
	"github.com/example/trip-matching/internal/observability"
)

// Scorer combines route overlap, departure-time proximity, preference
// agreement and price fit into one bounded compatibility score.
//
// Two separate time-related terms exist on purpose: the additive time weight
// scores how close the departure times are, while the multiplicative detour
// gate penalizes extra travel time imposed by the pickup/dropoff diversion.
// They read different inputs, so neither penalizes the same mismatch twice.
type Scorer struct {
	Overlap *OverlapAnalyzer
	Detour  *DetourCalculator
	Cfg     config.ScoringConfig
}

func NewScorer(overlap *OverlapAnalyzer, detour *DetourCalculator, cfg config.ScoringConfig) *Scorer {
	return &Scorer{Overlap: overlap, Detour: detour, Cfg: cfg}
}

// Analyze scores one candidate against the source trip. prefs may override
// the source trip's own preference axes. Never returns an error; routing
// failures degrade the inputs rather than aborting.
func (s *Scorer) Analyze(ctx context.Context, source, candidate *models.TripRequest, prefs *models.UserPreferences, criteria models.MatchingCriteria) models.CompatibilityAnalysis {
	start := time.Now()
	defer func() {
		observability.AnalysesTotal.Inc()
		observability.AnalysisLatency.Observe(time.Since(start).Seconds())
	}()

	criteria = criteria.Normalize()

	overlap := s.Overlap.Analyze(ctx, source.Origin, source.Destination, candidate.Origin, candidate.Destination)
	detour := s.Detour.Calculate(ctx, source, candidate, overlap.DeviationDistanceKm)

	sourcePrefs := source.Preferences()
	if prefs != nil {
		sourcePrefs = *prefs
	}

	routeScore := clamp01(overlap.OverlapPercentage)
	timeScore := TimeScore(source.DepartureTime, candidate.DepartureTime, criteria.TimeFlexibilityMin)
	prefScore := PreferencesScore(sourcePrefs, candidate.Preferences())
	priceScore := PriceScore(candidate.PricePerSeat, criteria.PriceMin, criteria.PriceMax)
	distanceGate := budgetGate(detour.DistanceKm, criteria.MaxDetourDistanceKm)

	weighted := s.Cfg.RouteWeight*routeScore +
		s.Cfg.TimeWeight*timeScore +
		s.Cfg.PreferencesWeight*prefScore +
		s.Cfg.DistanceWeight*distanceGate +
		s.Cfg.PriceWeight*priceScore

	overall := clamp01(weighted * budgetGate(detour.TimeMin, criteria.MaxDetourTimeMin))

	return models.CompatibilityAnalysis{
		TripID:           source.ID,
		CandidateTripID:  candidate.ID,
		RouteScore:       routeScore,
		TimeScore:        timeScore,
		PreferencesScore: prefScore,
		PriceScore:       priceScore,
		OverallScore:     overall,
		MatchType:        Classify(overlap.OverlapPercentage, overlap.DeviationDistanceKm, overlap.TotalDistanceKm),
		DetourDistanceKm: detour.DistanceKm,
		DetourTimeMin:    detour.TimeMin,
		EstimatedSavings: EstimatedSavings(candidate.PricePerSeat, overlap.SharedDistanceKm, overlap.TotalDistanceKm),
	}
}

// TimeScore is 1 within the flexibility window and decays linearly to 0 at
// three times the window.
func TimeScore(a, b time.Time, flexibilityMin float64) float64 {
	if flexibilityMin <= 0 {
		flexibilityMin = models.DefaultCriteria().TimeFlexibilityMin
	}
	deltaMin := math.Abs(a.Sub(b).Minutes())
	if deltaMin <= flexibilityMin {
		return 1
	}
	return clamp01(1 - (deltaMin-flexibilityMin)/(2*flexibilityMin))
}

// PreferencesScore is the fraction of the four categorical axes that agree,
// where an indifferent (or unset) side always counts as agreeing. When both
// parties supply no preference data at all there is nothing to compare, so a
// neutral 0.8 is returned.
func PreferencesScore(a, b models.UserPreferences) float64 {
	if a.Empty() && b.Empty() {
		return 0.8
	}
	agreeing := 0
	if a.Smoking.Agrees(b.Smoking) {
		agreeing++
	}
	if a.Pets.Agrees(b.Pets) {
		agreeing++
	}
	if a.Music.Agrees(b.Music) {
		agreeing++
	}
	if a.Conversation.Agrees(b.Conversation) {
		agreeing++
	}
	return float64(agreeing) / 4
}

// PriceScore is 1 inside [min,max], 0.9 below the minimum, and decays
// linearly to 0 as the price exceeds max by up to 50%. A trip with no price
// is always fully compatible. max <= 0 means no upper bound.
func PriceScore(price *float64, priceMin, priceMax float64) float64 {
	if price == nil {
		return 1
	}
	p := *price
	if p < priceMin {
		return 0.9
	}
	if priceMax <= 0 || p <= priceMax {
		return 1
	}
	over := p - priceMax
	return clamp01(1 - over/(priceMax*0.5))
}

// EstimatedSavings is the fare fraction covered by the shared stretch of
// road. Zero when the price or either distance is unknown.
func EstimatedSavings(price *float64, sharedKm, totalKm float64) float64 {
	if price == nil || *price <= 0 || sharedKm <= 0 || totalKm <= 0 {
		return 0
	}
	return *price * math.Min(1, sharedKm/totalKm)
}

// budgetGate gives full credit within the budget and falls off linearly over
// one budget-width beyond it.
func budgetGate(value, budget float64) float64 {
	if budget <= 0 || value <= budget {
		return 1
	}
	return clamp01(1 - (value-budget)/budget)
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
