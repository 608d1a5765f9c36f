package match

import (
	"context"
	"math"
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

// fakeRouter lets each test script the routing collaborator.
type fakeRouter struct {
	routeFn    func(origin, dest models.LocationPoint) (*models.RouteGeometry, error)
	distanceFn func(a, b models.LocationPoint) (routing.Leg, error)
}

func (f *fakeRouter) Route(_ context.Context, origin, dest models.LocationPoint) (*models.RouteGeometry, error) {
	if f.routeFn == nil {
		return nil, routing.ErrUnavailable
	}
	return f.routeFn(origin, dest)
}

func (f *fakeRouter) Distance(_ context.Context, a, b models.LocationPoint) (routing.Leg, error) {
	if f.distanceFn == nil {
		return routing.Leg{}, routing.ErrUnavailable
	}
	return f.distanceFn(a, b)
}

func (f *fakeRouter) ReverseGeocode(context.Context, models.LocationPoint) (*routing.Address, error) {
	return nil, routing.ErrUnsupported
}

func (f *fakeRouter) NearbySearch(context.Context, models.LocationPoint, float64, string) ([]models.POI, error) {
	return nil, routing.ErrUnsupported
}

func TestOverlapNearIdenticalFastPath(t *testing.T) {
	a := &OverlapAnalyzer{Cfg: testCfg()}

	res := a.Analyze(context.Background(),
		models.LocationPoint{Lat: 40.7128, Lng: -74.0060},
		models.LocationPoint{Lat: 40.7589, Lng: -73.9851},
		models.LocationPoint{Lat: 40.7150, Lng: -74.0080},
		models.LocationPoint{Lat: 40.7600, Lng: -73.9800})

	if res.OverlapPercentage != 0.98 {
		t.Fatalf("expected fast-path overlap 0.98, got %v", res.OverlapPercentage)
	}
	if res.TotalDistanceKm <= 0 || res.SharedDistanceKm <= 0 {
		t.Errorf("expected positive distances, got %+v", res)
	}
}

func TestOverlapIdenticalGeometry(t *testing.T) {
	line := []models.LocationPoint{
		{Lat: 40.70, Lng: -74.00},
		{Lat: 40.72, Lng: -74.00},
		{Lat: 40.74, Lng: -74.00},
		{Lat: 40.76, Lng: -74.00},
	}
	router := &fakeRouter{
		routeFn: func(_, _ models.LocationPoint) (*models.RouteGeometry, error) {
			return &models.RouteGeometry{Points: line}, nil
		},
	}
	a := &OverlapAnalyzer{Router: router, Cfg: testCfg()}

	// origins 2km+ apart so the near-identical fast path is skipped
	res := a.Analyze(context.Background(),
		models.LocationPoint{Lat: 40.70, Lng: -74.00},
		models.LocationPoint{Lat: 40.76, Lng: -74.00},
		models.LocationPoint{Lat: 40.68, Lng: -74.00},
		models.LocationPoint{Lat: 40.76, Lng: -74.00})

	if res.OverlapPercentage < 0.99 {
		t.Fatalf("identical geometry should overlap fully, got %v", res.OverlapPercentage)
	}
	if res.DeviationDistanceKm > 0.01 {
		t.Errorf("expected no deviation, got %v", res.DeviationDistanceKm)
	}
}

func TestOverlapDisjointGeometry(t *testing.T) {
	router := &fakeRouter{
		routeFn: func(origin, _ models.LocationPoint) (*models.RouteGeometry, error) {
			// routes far from each other depending on the origin latitude
			base := origin.Lat
			return &models.RouteGeometry{Points: []models.LocationPoint{
				{Lat: base, Lng: -74.00},
				{Lat: base + 0.02, Lng: -74.00},
				{Lat: base + 0.04, Lng: -74.00},
			}}, nil
		},
	}
	a := &OverlapAnalyzer{Router: router, Cfg: testCfg()}

	res := a.Analyze(context.Background(),
		models.LocationPoint{Lat: 40.70, Lng: -74.00},
		models.LocationPoint{Lat: 40.74, Lng: -74.00},
		models.LocationPoint{Lat: 41.50, Lng: -74.00},
		models.LocationPoint{Lat: 41.54, Lng: -74.00})

	if res.OverlapPercentage != 0 {
		t.Fatalf("disjoint routes should not overlap, got %v", res.OverlapPercentage)
	}
	if math.Abs(res.DeviationDistanceKm-res.TotalDistanceKm) > 0.01 {
		t.Errorf("deviation should equal total for disjoint routes, got %+v", res)
	}
}

func TestOverlapFallbackOnRouterError(t *testing.T) {
	a := &OverlapAnalyzer{Router: &fakeRouter{}, Cfg: testCfg()}

	// origins ~5km apart, destinations identical
	res := a.Analyze(context.Background(),
		models.LocationPoint{Lat: 40.700, Lng: -74.00},
		models.LocationPoint{Lat: 40.800, Lng: -74.00},
		models.LocationPoint{Lat: 40.745, Lng: -74.00},
		models.LocationPoint{Lat: 40.800, Lng: -74.00})

	// heuristic: 1 - maxProximity/decay, maxProximity ~5km, decay 10km
	if math.Abs(res.OverlapPercentage-0.5) > 0.05 {
		t.Fatalf("expected heuristic overlap ~0.5, got %v", res.OverlapPercentage)
	}
}

func TestOverlapFallbackFarApart(t *testing.T) {
	a := &OverlapAnalyzer{Cfg: testCfg()}

	res := a.Analyze(context.Background(),
		models.LocationPoint{Lat: 40.70, Lng: -74.00},
		models.LocationPoint{Lat: 40.80, Lng: -74.00},
		models.LocationPoint{Lat: 42.00, Lng: -74.00},
		models.LocationPoint{Lat: 42.10, Lng: -74.00})

	if res.OverlapPercentage != 0 {
		t.Fatalf("trips beyond the decay radius should score 0, got %v", res.OverlapPercentage)
	}
}
