package routing

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/example/trip-matching/internal/models"
)

// OSRMRouter performs route lookups against a self-hosted OSRM server. It
// covers Route and Distance only; geocoding and place search are not part of
// OSRM, so those calls return ErrUnsupported and callers fall back.
type OSRMRouter struct {
	Endpoint string
	Client   *http.Client
}

func NewOSRMRouter(endpoint string) *OSRMRouter {
	return &OSRMRouter{Endpoint: endpoint, Client: &http.Client{Timeout: 3 * time.Second}}
}

type osrmResponse struct {
	Routes []struct {
		Distance float64 `json:"distance"`
		Duration float64 `json:"duration"`
		Geometry struct {
			Coordinates [][]float64 `json:"coordinates"`
		} `json:"geometry"`
	} `json:"routes"`
	Code string `json:"code"`
}

func (o *OSRMRouter) Route(ctx context.Context, origin, dest models.LocationPoint) (*models.RouteGeometry, error) {
	// /route/v1/driving/{lng1},{lat1};{lng2},{lat2}
	url := fmt.Sprintf("%s/route/v1/driving/%.6f,%.6f;%.6f,%.6f?overview=full&geometries=geojson",
		o.Endpoint, origin.Lng, origin.Lat, dest.Lng, dest.Lat)
	out, err := o.query(ctx, url)
	if err != nil {
		return nil, err
	}
	r := out.Routes[0]
	points := make([]models.LocationPoint, len(r.Geometry.Coordinates))
	for i, c := range r.Geometry.Coordinates {
		points[i] = models.LocationPoint{Lng: c[0], Lat: c[1]}
	}
	return &models.RouteGeometry{Points: points, DistanceM: r.Distance, DurationS: r.Duration}, nil
}

func (o *OSRMRouter) Distance(ctx context.Context, a, b models.LocationPoint) (Leg, error) {
	url := fmt.Sprintf("%s/route/v1/driving/%.6f,%.6f;%.6f,%.6f?overview=false",
		o.Endpoint, a.Lng, a.Lat, b.Lng, b.Lat)
	out, err := o.query(ctx, url)
	if err != nil {
		return Leg{}, err
	}
	return Leg{DistanceM: out.Routes[0].Distance, DurationS: out.Routes[0].Duration}, nil
}

func (o *OSRMRouter) ReverseGeocode(ctx context.Context, p models.LocationPoint) (*Address, error) {
	return nil, ErrUnsupported
}

func (o *OSRMRouter) NearbySearch(ctx context.Context, p models.LocationPoint, radiusM float64, category string) ([]models.POI, error) {
	return nil, ErrUnsupported
}

func (o *OSRMRouter) query(ctx context.Context, url string) (*osrmResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := o.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	var out osrmResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrUnavailable, err)
	}
	if out.Code != "Ok" || len(out.Routes) == 0 {
		return nil, fmt.Errorf("%w: osrm code %s", ErrUnavailable, out.Code)
	}
	return &out, nil
}
