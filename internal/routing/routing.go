// Package routing abstracts the external routing/geocoding collaborator.
// Implementations may fail with quota or network errors at any time; callers
// in the scoring path must degrade rather than abort.
package routing

import (
	"context"
	"errors"

	"github.com/example/trip-matching/internal/models"
)

var (
	// ErrUnavailable wraps network/quota failures from the upstream service.
	ErrUnavailable = errors.New("routing service unavailable")
	// ErrGeocodeFailed means a point could not be resolved to an address.
	ErrGeocodeFailed = errors.New("geocode failed")
	// ErrUnsupported marks operations an implementation does not provide.
	ErrUnsupported = errors.New("operation not supported by this router")
)

// Leg is a point-to-point distance/duration result.
type Leg struct {
	DistanceM float64
	DurationS float64
}

// Address is the result of a reverse geocode.
type Address struct {
	FormattedAddress string
	Components       []AddressComponent
}

type AddressComponent struct {
	LongName  string
	ShortName string
	Types     []string
}

// Router is the collaborator contract the matching core depends on.
type Router interface {
	// Route returns the driving route between two points.
	Route(ctx context.Context, origin, dest models.LocationPoint) (*models.RouteGeometry, error)
	// Distance returns the driving distance/duration between two points.
	Distance(ctx context.Context, a, b models.LocationPoint) (Leg, error)
	// ReverseGeocode resolves a point to a street address.
	ReverseGeocode(ctx context.Context, p models.LocationPoint) (*Address, error)
	// NearbySearch returns points of interest around p. category may be
	// empty for a generic search.
	NearbySearch(ctx context.Context, p models.LocationPoint, radiusM float64, category string) ([]models.POI, error)
}
