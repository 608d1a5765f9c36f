package match

import (
	"context"
	"log/slog"
	"math"

	"github.com/example/trip-matching/internal/config"
	"github.com/example/trip-matching/internal/geo"
	"github.com/example/trip-matching/internal/models"
	"github.com/example/trip-matching/internal/observability"
	"github.com/example/trip-matching/internal/routing"
)

// OverlapResult describes how much of the source route coincides with the
// candidate route. Distances in kilometers, overlap in [0,1].
type OverlapResult struct {
	OverlapPercentage   float64 `json:"overlap_percentage"`
	SharedDistanceKm    float64 `json:"shared_distance_km"`
	TotalDistanceKm     float64 `json:"total_distance_km"`
	DeviationDistanceKm float64 `json:"deviation_distance_km"`
}

// OverlapAnalyzer computes route overlap between two origin/destination
// pairs. It never returns an error past this boundary; routing failures
// degrade to a straight-line heuristic.
type OverlapAnalyzer struct {
	Router routing.Router
	Cfg    config.ScoringConfig
	Logger *slog.Logger
}

func (a *OverlapAnalyzer) Analyze(ctx context.Context, srcOrigin, srcDest, candOrigin, candDest models.LocationPoint) OverlapResult {
	originKm := geo.DistanceKm(srcOrigin, candOrigin)
	destKm := geo.DistanceKm(srcDest, candDest)

	// Fast path: both endpoints within the near-identical radius means the
	// two parties share essentially the same commute. Skip the geometry work.
	if originKm <= a.Cfg.NearIdenticalKm && destKm <= a.Cfg.NearIdenticalKm {
		total := geo.DistanceKm(srcOrigin, srcDest)
		return OverlapResult{
			OverlapPercentage:   0.98,
			SharedDistanceKm:    total * 0.98,
			TotalDistanceKm:     total,
			DeviationDistanceKm: 0.1,
		}
	}

	if a.Router != nil {
		if res, ok := a.compareGeometry(ctx, srcOrigin, srcDest, candOrigin, candDest); ok {
			return res
		}
	}

	observability.RoutingFallbacks.Inc()
	return a.fallback(srcOrigin, srcDest, originKm, destKm)
}

// compareGeometry walks the source polyline in consecutive segments and marks
// a segment shared when both endpoints lie within the tolerance of the
// corresponding endpoints of some candidate segment.
func (a *OverlapAnalyzer) compareGeometry(ctx context.Context, srcOrigin, srcDest, candOrigin, candDest models.LocationPoint) (OverlapResult, bool) {
	srcRoute, err := a.Router.Route(ctx, srcOrigin, srcDest)
	if err != nil {
		a.logDegrade(err)
		return OverlapResult{}, false
	}
	candRoute, err := a.Router.Route(ctx, candOrigin, candDest)
	if err != nil {
		a.logDegrade(err)
		return OverlapResult{}, false
	}
	src, cand := srcRoute.Points, candRoute.Points
	if len(src) < 2 || len(cand) < 2 {
		return OverlapResult{}, false
	}

	totalKm := srcRoute.DistanceM / 1000
	if totalKm == 0 {
		totalKm = geo.PolylineLengthKm(src)
	}

	tol := a.Cfg.SegmentToleranceKm
	var sharedKm float64
	// O(n*m) segment scan. Fine for urban routes; a grid bucket index is the
	// upgrade path for long-haul polylines.
	for i := 1; i < len(src); i++ {
		for j := 1; j < len(cand); j++ {
			if geo.DistanceKm(src[i-1], cand[j-1]) <= tol && geo.DistanceKm(src[i], cand[j]) <= tol {
				sharedKm += geo.DistanceKm(src[i-1], src[i])
				break
			}
		}
	}

	overlap := 0.0
	if totalKm > 0 {
		overlap = math.Min(1, sharedKm/totalKm)
	}
	return OverlapResult{
		OverlapPercentage:   overlap,
		SharedDistanceKm:    sharedKm,
		TotalDistanceKm:     totalKm,
		DeviationDistanceKm: math.Max(0, totalKm-sharedKm),
	}, true
}

// fallback estimates overlap from endpoint proximity alone: full credit at
// zero separation, decaying to nothing at FallbackDecayKm.
func (a *OverlapAnalyzer) fallback(srcOrigin, srcDest models.LocationPoint, originKm, destKm float64) OverlapResult {
	maxProximity := math.Max(originKm, destKm)
	overlap := math.Max(0, 1-maxProximity/a.Cfg.FallbackDecayKm)
	total := geo.DistanceKm(srcOrigin, srcDest)
	shared := total * overlap
	return OverlapResult{
		OverlapPercentage:   overlap,
		SharedDistanceKm:    shared,
		TotalDistanceKm:     total,
		DeviationDistanceKm: math.Max(0, total-shared),
	}
}

func (a *OverlapAnalyzer) logDegrade(err error) {
	if a.Logger != nil {
		a.Logger.Warn("route overlap degraded to heuristic", "error", err)
	}
}
