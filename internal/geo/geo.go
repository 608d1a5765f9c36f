package geo

import (
	"context"
	"math"
	"sync"

	"github.com/example/trip-matching/internal/models"
)

// TripIndex is the minimal candidate-discovery interface used by the
// orchestrator: active trips indexed by origin.
type TripIndex interface {
	Upsert(ctx context.Context, trip models.TripRequest) error
	Remove(ctx context.Context, tripID string) error
	Nearby(ctx context.Context, lat, lng, radiusKm float64, limit int) ([]string, error)
}

// Haversine distance in meters.
func Haversine(lat1, lng1, lat2, lng2 float64) float64 {
	const R = 6371000.0
	dLat := (lat2 - lat1) * math.Pi / 180
	dLng := (lng2 - lng1) * math.Pi / 180
	a := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(lat1*math.Pi/180)*math.Cos(lat2*math.Pi/180)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return R * c
}

// DistanceKm is the straight-line distance between two points in kilometers.
func DistanceKm(a, b models.LocationPoint) float64 {
	return Haversine(a.Lat, a.Lng, b.Lat, b.Lng) / 1000
}

// Midpoint returns the point halfway between a and b (linear interpolation,
// adequate at city scale).
func Midpoint(a, b models.LocationPoint) models.LocationPoint {
	return models.LocationPoint{Lat: (a.Lat + b.Lat) / 2, Lng: (a.Lng + b.Lng) / 2}
}

// PolylineLengthKm sums consecutive segment lengths of a polyline.
func PolylineLengthKm(points []models.LocationPoint) float64 {
	var total float64
	for i := 1; i < len(points); i++ {
		total += DistanceKm(points[i-1], points[i])
	}
	return total
}

// SamplePolyline returns n points evenly spaced by distance along the
// polyline, endpoints included. Short inputs are returned as-is.
func SamplePolyline(points []models.LocationPoint, n int) []models.LocationPoint {
	if n <= 0 || len(points) <= 2 || len(points) <= n {
		return points
	}
	total := PolylineLengthKm(points)
	if total == 0 {
		return points[:1]
	}
	step := total / float64(n-1)
	out := make([]models.LocationPoint, 0, n)
	out = append(out, points[0])
	target := step
	var walked float64
	for i := 1; i < len(points) && len(out) < n-1; i++ {
		seg := DistanceKm(points[i-1], points[i])
		for walked+seg >= target && len(out) < n-1 {
			frac := 0.0
			if seg > 0 {
				frac = (target - walked) / seg
			}
			out = append(out, models.LocationPoint{
				Lat: points[i-1].Lat + (points[i].Lat-points[i-1].Lat)*frac,
				Lng: points[i-1].Lng + (points[i].Lng-points[i-1].Lng)*frac,
			})
			target += step
		}
		walked += seg
	}
	out = append(out, points[len(points)-1])
	return out
}

// Index is an in-memory TripIndex used when Redis is not configured.
// Naive scan; the Redis implementation handles real volumes.
type Index struct {
	mu    sync.RWMutex
	trips map[string]models.TripRequest
}

func NewIndex() *Index {
	return &Index{trips: make(map[string]models.TripRequest)}
}

func (g *Index) Upsert(_ context.Context, t models.TripRequest) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.trips[t.ID] = t
	return nil
}

func (g *Index) Remove(_ context.Context, tripID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.trips, tripID)
	return nil
}

func (g *Index) Nearby(_ context.Context, lat, lng, radiusKm float64, limit int) ([]string, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	type pair struct {
		id   string
		dist float64
	}
	arr := make([]pair, 0, len(g.trips))
	for _, t := range g.trips {
		if t.Status != models.TripActive {
			continue
		}
		d := Haversine(lat, lng, t.Origin.Lat, t.Origin.Lng)
		if d > radiusKm*1000 {
			continue
		}
		arr = append(arr, pair{t.ID, d})
	}
	// partial selection sort for top-N
	n := limit
	if n > len(arr) || n <= 0 {
		n = len(arr)
	}
	for i := 0; i < n; i++ {
		minIdx := i
		for j := i + 1; j < len(arr); j++ {
			if arr[j].dist < arr[minIdx].dist {
				minIdx = j
			}
		}
		arr[i], arr[minIdx] = arr[minIdx], arr[i]
	}
	out := make([]string, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, arr[i].id)
	}
	return out, nil
}
