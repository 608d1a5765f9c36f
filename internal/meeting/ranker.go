package meeting

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/example/trip-matching/internal/config"
	"github.com/example/trip-matching/internal/geo"
	"github.com/example/trip-matching/internal/models"
	"github.com/example/trip-matching/internal/observability"
	"github.com/example/trip-matching/internal/routing"
)

// Options refine a meeting point search.
type Options struct {
	MaxWalkingDistanceM   float64  `json:"max_walking_distance_m"`
	PreferredCategories   []string `json:"preferred_categories,omitempty"`
	AvoidCategories       []string `json:"avoid_categories,omitempty"`
	AccessibilityRequired bool     `json:"accessibility_required"`
	MaxPoints             int      `json:"max_points"`
}

func (o Options) normalized(cfg config.ScoringConfig) Options {
	if o.MaxWalkingDistanceM <= 0 {
		o.MaxWalkingDistanceM = models.DefaultCriteria().MaxWalkingDistanceM
	}
	if o.MaxPoints <= 0 {
		o.MaxPoints = cfg.MaxMeetingPoints
	}
	return o
}

// Ranker proposes and ranks rendezvous points along a connecting route by
// safety, convenience and accessibility.
type Ranker struct {
	Router routing.Router
	Cfg    config.ScoringConfig
	Logger *slog.Logger
}

func NewRanker(router routing.Router, cfg config.ScoringConfig, logger *slog.Logger) *Ranker {
	return &Ranker{Router: router, Cfg: cfg, Logger: logger}
}

// FindMeetingPointsBetween routes from a to b and ranks candidates along the
// way, treating a as the passenger's location. Routing failure degrades to a
// single neutral midpoint candidate.
func (r *Ranker) FindMeetingPointsBetween(ctx context.Context, a, b models.LocationPoint, opts Options) ([]models.MeetingPointAnalysis, error) {
	if r.Router == nil {
		return []models.MeetingPointAnalysis{fallbackCandidate(geo.Midpoint(a, b))}, nil
	}
	route, err := r.Router.Route(ctx, a, b)
	if err != nil {
		r.log().Warn("meeting point route failed, using midpoint fallback", "error", err)
		return []models.MeetingPointAnalysis{fallbackCandidate(geo.Midpoint(a, b))}, nil
	}
	return r.FindOptimalMeetingPoints(ctx, route, a, opts)
}

// FindOptimalMeetingPoints samples the route polyline, keeps samples within
// walking distance of the passenger, scores each against nearby points of
// interest, and returns the top candidates sorted by descending score.
func (r *Ranker) FindOptimalMeetingPoints(ctx context.Context, route *models.RouteGeometry, passenger models.LocationPoint, opts Options) ([]models.MeetingPointAnalysis, error) {
	opts = opts.normalized(r.Cfg)
	if route == nil || len(route.Points) == 0 {
		return []models.MeetingPointAnalysis{fallbackCandidate(passenger)}, nil
	}

	samples := geo.SamplePolyline(route.Points, r.Cfg.MeetingSampleCount)
	reachable := make([]models.LocationPoint, 0, len(samples))
	for _, p := range samples {
		if geo.Haversine(passenger.Lat, passenger.Lng, p.Lat, p.Lng) <= opts.MaxWalkingDistanceM {
			reachable = append(reachable, p)
		}
	}
	if len(reachable) == 0 {
		mid := routeMidpoint(route)
		return []models.MeetingPointAnalysis{fallbackCandidate(mid)}, nil
	}

	results := make([]*models.MeetingPointAnalysis, len(reachable))
	g := new(errgroup.Group)
	g.SetLimit(r.Cfg.AnalysisConcurrency)
	for i, p := range reachable {
		i, p := i, p
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			if a, ok := r.scoreCandidate(ctx, p, opts); ok {
				results[i] = &a
			}
			return nil
		})
	}
	_ = g.Wait()

	out := make([]models.MeetingPointAnalysis, 0, len(results))
	for _, a := range results {
		if a != nil && a.OverallScore > r.Cfg.MinMeetingScore {
			out = append(out, *a)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].OverallScore > out[j].OverallScore })
	if len(out) > opts.MaxPoints {
		out = out[:opts.MaxPoints]
	}
	if len(out) == 0 {
		return []models.MeetingPointAnalysis{fallbackCandidate(routeMidpoint(route))}, nil
	}
	return out, nil
}

// scoreCandidate resolves the candidate's address and nearby POIs and builds
// its three sub-scores. A failed geocode skips the candidate; an unsupported
// or failed POI search just scores it without POI evidence.
func (r *Ranker) scoreCandidate(ctx context.Context, p models.LocationPoint, opts Options) (models.MeetingPointAnalysis, bool) {
	observability.MeetingPointsRanked.Inc()

	if addr, err := r.Router.ReverseGeocode(ctx, p); err == nil {
		p.Address = addr.FormattedAddress
	} else if errors.Is(err, routing.ErrGeocodeFailed) {
		r.log().Debug("skipping candidate, geocode failed", "lat", p.Lat, "lng", p.Lng)
		return models.MeetingPointAnalysis{}, false
	}

	radius := math.Min(opts.MaxWalkingDistanceM, 500)
	pois, err := r.Router.NearbySearch(ctx, p, radius, "")
	if err != nil {
		pois = nil
	}

	safety := safetyScore(p.Address, pois)
	convenience := convenienceScore(pois, opts)
	accessibility := accessibilityScore(pois, opts.AccessibilityRequired)

	return models.MeetingPointAnalysis{
		Point:              p,
		SafetyScore:        safety,
		ConvenienceScore:   convenience,
		AccessibilityScore: accessibility,
		OverallScore:       clamp01(0.4*safety + 0.35*convenience + 0.25*accessibility),
		NearbyPOIs:         pois,
	}, true
}

func safetyScore(address string, pois []models.POI) float64 {
	score := 0.5
	for _, poi := range pois {
		if hasAnyType(poi.Types, safePOITypes) {
			score += 0.1
		}
		if hasAnyType(poi.Types, unsafePOITypes) {
			score -= 0.15
		}
	}
	if looksLikeMainStreet(address) {
		score += 0.1
	}
	return clamp01(score)
}

func convenienceScore(pois []models.POI, opts Options) float64 {
	score := 0.3

	var convenient float64
	for _, poi := range pois {
		if hasAnyType(poi.Types, convenientPOITypes) {
			convenient += 0.08
		}
	}
	score += math.Min(convenient, 0.4)

	var ratingSum float64
	var rated int
	for _, poi := range pois {
		if poi.Rating > 0 {
			ratingSum += poi.Rating
			rated++
		}
	}
	if rated > 0 {
		score += (ratingSum/float64(rated) - 3) * 0.1
	}

	preferred := toSet(opts.PreferredCategories)
	avoided := toSet(opts.AvoidCategories)
	for _, poi := range pois {
		if hasAnyType(poi.Types, preferred) {
			score += 0.05
		}
		if hasAnyType(poi.Types, avoided) {
			score -= 0.05
		}
	}
	return clamp01(score)
}

func accessibilityScore(pois []models.POI, required bool) float64 {
	score := 0.5
	var bonus float64
	accessible := 0
	for _, poi := range pois {
		if hasAnyType(poi.Types, accessiblePOITypes) {
			bonus += 0.1
			accessible++
		}
	}
	score += math.Min(bonus, 0.3)
	if required && accessible == 0 {
		score *= 0.3
	}
	return clamp01(score)
}

func fallbackCandidate(p models.LocationPoint) models.MeetingPointAnalysis {
	return models.MeetingPointAnalysis{
		Point:              p,
		SafetyScore:        0.5,
		ConvenienceScore:   0.3,
		AccessibilityScore: 0.5,
		OverallScore:       0.4,
	}
}

func routeMidpoint(route *models.RouteGeometry) models.LocationPoint {
	pts := route.Points
	if len(pts) == 0 {
		return models.LocationPoint{}
	}
	return pts[len(pts)/2]
}

func toSet(categories []string) map[string]bool {
	if len(categories) == 0 {
		return nil
	}
	set := make(map[string]bool, len(categories))
	for _, c := range categories {
		set[c] = true
	}
	return set
}

func clamp01(v float64) float64 { return math.Max(0, math.Min(1, v)) }

func (r *Ranker) log() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}
