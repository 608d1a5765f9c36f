package meeting

import (
	"context"
	"testing"
	"time"

	"github.com/example/trip-matching/internal/config"
	"github.com/example/trip-matching/internal/models"
	"github.com/example/trip-matching/internal/routing"
)

func testCfg() config.ScoringConfig {
	return config.ScoringConfig{
		RouteWeight:         0.4,
		TimeWeight:          0.25,
		PreferencesWeight:   0.2,
		DistanceWeight:      0.1,
		PriceWeight:         0.05,
		MinOverallScore:     0.3,
		MinMeetingScore:     0.3,
		SegmentToleranceKm:  0.5,
		NearIdenticalKm:     1.0,
		FallbackDecayKm:     10.0,
		MaxMeetingPoints:    5,
		MeetingSampleCount:  20,
		MatchExpiry:         30 * 24 * time.Hour,
		AnalysisConcurrency: 8,
	}
}

type fakeRouter struct {
	routeFn   func(origin, dest models.LocationPoint) (*models.RouteGeometry, error)
	geocodeFn func(p models.LocationPoint) (*routing.Address, error)
	searchFn  func(p models.LocationPoint, radiusM float64) ([]models.POI, error)
}

func (f *fakeRouter) Route(_ context.Context, origin, dest models.LocationPoint) (*models.RouteGeometry, error) {
	if f.routeFn == nil {
		return nil, routing.ErrUnavailable
	}
	return f.routeFn(origin, dest)
}

func (f *fakeRouter) Distance(context.Context, models.LocationPoint, models.LocationPoint) (routing.Leg, error) {
	return routing.Leg{}, routing.ErrUnsupported
}

func (f *fakeRouter) ReverseGeocode(_ context.Context, p models.LocationPoint) (*routing.Address, error) {
	if f.geocodeFn == nil {
		return nil, routing.ErrUnsupported
	}
	return f.geocodeFn(p)
}

func (f *fakeRouter) NearbySearch(_ context.Context, p models.LocationPoint, radiusM float64, _ string) ([]models.POI, error) {
	if f.searchFn == nil {
		return nil, routing.ErrUnsupported
	}
	return f.searchFn(p, radiusM)
}

// shortRoute keeps all points within walking distance of its first point.
func shortRoute() *models.RouteGeometry {
	return &models.RouteGeometry{Points: []models.LocationPoint{
		{Lat: 40.71280, Lng: -74.0060},
		{Lat: 40.71300, Lng: -74.0058},
		{Lat: 40.71320, Lng: -74.0056},
		{Lat: 40.71340, Lng: -74.0054},
	}}
}

func TestBetweenWithoutRouterFallsBackToMidpoint(t *testing.T) {
	r := NewRanker(nil, testCfg(), nil)
	a := models.LocationPoint{Lat: 40.0, Lng: -74.0}
	b := models.LocationPoint{Lat: 42.0, Lng: -72.0}

	points, err := r.FindMeetingPointsBetween(context.Background(), a, b, Options{})
	if err != nil {
		t.Fatalf("between: %v", err)
	}
	if len(points) != 1 {
		t.Fatalf("expected single fallback candidate, got %d", len(points))
	}
	if points[0].Point.Lat != 41.0 || points[0].Point.Lng != -73.0 {
		t.Errorf("fallback should sit at the midpoint, got %+v", points[0].Point)
	}
	if points[0].OverallScore != 0.4 {
		t.Errorf("fallback candidate carries the neutral score, got %v", points[0].OverallScore)
	}
}

func TestBetweenRouteFailureFallsBack(t *testing.T) {
	r := NewRanker(&fakeRouter{}, testCfg(), nil)
	a := models.LocationPoint{Lat: 40.0, Lng: -74.0}
	b := models.LocationPoint{Lat: 40.1, Lng: -74.0}

	points, err := r.FindMeetingPointsBetween(context.Background(), a, b, Options{})
	if err != nil {
		t.Fatalf("between: %v", err)
	}
	if len(points) != 1 || points[0].OverallScore != 0.4 {
		t.Fatalf("expected midpoint fallback, got %+v", points)
	}
}

func TestOptimalPointsRankedBySafety(t *testing.T) {
	// the northernmost sample gets a transit station, the rest get bars
	router := &fakeRouter{
		searchFn: func(p models.LocationPoint, _ float64) ([]models.POI, error) {
			if p.Lat >= 40.71335 {
				return []models.POI{{Name: "station", Types: []string{"transit_station"}, Rating: 4.5}}, nil
			}
			return []models.POI{{Name: "dive", Types: []string{"bar"}}}, nil
		},
	}
	r := NewRanker(router, testCfg(), nil)
	passenger := models.LocationPoint{Lat: 40.7130, Lng: -74.0058}

	points, err := r.FindOptimalMeetingPoints(context.Background(), shortRoute(), passenger, Options{MaxWalkingDistanceM: 800})
	if err != nil {
		t.Fatalf("optimal: %v", err)
	}
	if len(points) == 0 {
		t.Fatal("expected ranked candidates")
	}
	for i := 1; i < len(points); i++ {
		if points[i-1].OverallScore < points[i].OverallScore {
			t.Fatalf("not sorted descending at %d: %+v", i, points)
		}
	}
	best := points[0]
	if len(best.NearbyPOIs) == 0 || best.NearbyPOIs[0].Name != "station" {
		t.Errorf("transit-adjacent point should rank first, got %+v", best)
	}
}

func TestOptimalPointsRespectsMaxPoints(t *testing.T) {
	router := &fakeRouter{
		searchFn: func(models.LocationPoint, float64) ([]models.POI, error) {
			return []models.POI{{Name: "cafe", Types: []string{"cafe"}, Rating: 4.0}}, nil
		},
	}
	r := NewRanker(router, testCfg(), nil)
	passenger := models.LocationPoint{Lat: 40.7130, Lng: -74.0058}

	points, err := r.FindOptimalMeetingPoints(context.Background(), shortRoute(), passenger, Options{MaxWalkingDistanceM: 800, MaxPoints: 2})
	if err != nil {
		t.Fatalf("optimal: %v", err)
	}
	if len(points) > 2 {
		t.Fatalf("max points not respected, got %d", len(points))
	}
}

func TestOptimalPointsUnreachableRouteFallsBack(t *testing.T) {
	r := NewRanker(&fakeRouter{}, testCfg(), nil)
	// passenger far from every sample on the route
	passenger := models.LocationPoint{Lat: 41.5, Lng: -74.0}

	points, err := r.FindOptimalMeetingPoints(context.Background(), shortRoute(), passenger, Options{MaxWalkingDistanceM: 300})
	if err != nil {
		t.Fatalf("optimal: %v", err)
	}
	if len(points) != 1 || points[0].OverallScore != 0.4 {
		t.Fatalf("expected route-midpoint fallback, got %+v", points)
	}
}

func TestGeocodeFailureSkipsCandidate(t *testing.T) {
	router := &fakeRouter{
		geocodeFn: func(models.LocationPoint) (*routing.Address, error) {
			return nil, routing.ErrGeocodeFailed
		},
	}
	r := NewRanker(router, testCfg(), nil)
	passenger := models.LocationPoint{Lat: 40.7130, Lng: -74.0058}

	points, err := r.FindOptimalMeetingPoints(context.Background(), shortRoute(), passenger, Options{MaxWalkingDistanceM: 800})
	if err != nil {
		t.Fatalf("optimal: %v", err)
	}
	// every candidate skipped, so the fallback must kick in
	if len(points) != 1 || points[0].OverallScore != 0.4 {
		t.Fatalf("expected fallback after universal geocode failure, got %+v", points)
	}
}

func TestAvoidCategoriesLowerConvenience(t *testing.T) {
	pois := []models.POI{{Name: "mall", Types: []string{"shopping_mall"}, Rating: 4.0}}
	plain := convenienceScore(pois, Options{})
	avoided := convenienceScore(pois, Options{AvoidCategories: []string{"shopping_mall"}})
	if avoided >= plain {
		t.Fatalf("avoided category should lower the score: %v >= %v", avoided, plain)
	}
}

func TestAccessibilityRequiredWithoutEvidence(t *testing.T) {
	pois := []models.POI{{Name: "dive", Types: []string{"bar"}}}
	relaxed := accessibilityScore(pois, false)
	strict := accessibilityScore(pois, true)
	if strict >= relaxed {
		t.Fatalf("missing accessibility evidence should hurt when required: %v >= %v", strict, relaxed)
	}
}

func TestSafetyScoreBounds(t *testing.T) {
	many := make([]models.POI, 10)
	for i := range many {
		many[i] = models.POI{Types: []string{"transit_station"}}
	}
	if s := safetyScore("Main Street Plaza", many); s > 1 {
		t.Fatalf("safety score must stay within [0,1], got %v", s)
	}
	bars := make([]models.POI, 10)
	for i := range bars {
		bars[i] = models.POI{Types: []string{"bar"}}
	}
	if s := safetyScore("", bars); s < 0 {
		t.Fatalf("safety score must stay within [0,1], got %v", s)
	}
}
