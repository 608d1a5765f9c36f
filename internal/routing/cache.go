package routing

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/example/trip-matching/internal/models"
)

// CachedRouter decorates a Router with a TTL cache for route, distance and
// nearby-search lookups. The cache is explicit state owned by whoever builds
// the router, never a package-level singleton.
type CachedRouter struct {
	next Router

	mu     sync.RWMutex
	routes map[string]routeEntry
	legs   map[string]legEntry
	pois   map[string]poiEntry
	ttl    time.Duration
}

type routeEntry struct {
	v  *models.RouteGeometry
	ts time.Time
}

type legEntry struct {
	v  Leg
	ts time.Time
}

type poiEntry struct {
	v  []models.POI
	ts time.Time
}

func NewCachedRouter(next Router, ttl time.Duration) *CachedRouter {
	return &CachedRouter{
		next:   next,
		routes: make(map[string]routeEntry),
		legs:   make(map[string]legEntry),
		pois:   make(map[string]poiEntry),
		ttl:    ttl,
	}
}

func (c *CachedRouter) Route(ctx context.Context, origin, dest models.LocationPoint) (*models.RouteGeometry, error) {
	k := pairKey(origin, dest)
	c.mu.RLock()
	e, ok := c.routes[k]
	c.mu.RUnlock()
	if ok && time.Since(e.ts) <= c.ttl {
		return e.v, nil
	}
	v, err := c.next.Route(ctx, origin, dest)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.routes[k] = routeEntry{v: v, ts: time.Now()}
	c.mu.Unlock()
	return v, nil
}

func (c *CachedRouter) Distance(ctx context.Context, a, b models.LocationPoint) (Leg, error) {
	k := pairKey(a, b)
	c.mu.RLock()
	e, ok := c.legs[k]
	c.mu.RUnlock()
	if ok && time.Since(e.ts) <= c.ttl {
		return e.v, nil
	}
	v, err := c.next.Distance(ctx, a, b)
	if err != nil {
		return Leg{}, err
	}
	c.mu.Lock()
	c.legs[k] = legEntry{v: v, ts: time.Now()}
	c.mu.Unlock()
	return v, nil
}

func (c *CachedRouter) ReverseGeocode(ctx context.Context, p models.LocationPoint) (*Address, error) {
	return c.next.ReverseGeocode(ctx, p)
}

func (c *CachedRouter) NearbySearch(ctx context.Context, p models.LocationPoint, radiusM float64, category string) ([]models.POI, error) {
	k := fmt.Sprintf("%s|%.0f|%s", fmtCoord(p), radiusM, category)
	c.mu.RLock()
	e, ok := c.pois[k]
	c.mu.RUnlock()
	if ok && time.Since(e.ts) <= c.ttl {
		return e.v, nil
	}
	v, err := c.next.NearbySearch(ctx, p, radiusM, category)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.pois[k] = poiEntry{v: v, ts: time.Now()}
	c.mu.Unlock()
	return v, nil
}

func pairKey(a, b models.LocationPoint) string {
	return fmtCoord(a) + "->" + fmtCoord(b)
}

func fmtCoord(p models.LocationPoint) string {
	return fmt.Sprintf("%.6f,%.6f", p.Lat, p.Lng)
}
