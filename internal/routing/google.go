package routing

import (
	"context"
	"fmt"

	"googlemaps.github.io/maps"

	"github.com/example/trip-matching/internal/models"
)

// GoogleRouter implements Router against the Google Maps web services.
type GoogleRouter struct {
	client *maps.Client
}

func NewGoogleRouter(apiKey string) (*GoogleRouter, error) {
	client, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create maps client: %w", err)
	}
	return &GoogleRouter{client: client}, nil
}

func (g *GoogleRouter) Route(ctx context.Context, origin, dest models.LocationPoint) (*models.RouteGeometry, error) {
	r := &maps.DirectionsRequest{
		Origin:      coordString(origin),
		Destination: coordString(dest),
		Mode:        maps.TravelModeDriving,
	}
	routes, _, err := g.client.Directions(ctx, r)
	if err != nil {
		return nil, fmt.Errorf("%w: directions: %v", ErrUnavailable, err)
	}
	if len(routes) == 0 || len(routes[0].Legs) == 0 {
		return nil, fmt.Errorf("%w: no route found", ErrUnavailable)
	}
	route := routes[0]
	latlngs, err := route.OverviewPolyline.Decode()
	if err != nil {
		return nil, fmt.Errorf("%w: polyline decode: %v", ErrUnavailable, err)
	}
	points := make([]models.LocationPoint, len(latlngs))
	for i, ll := range latlngs {
		points[i] = models.LocationPoint{Lat: ll.Lat, Lng: ll.Lng}
	}
	var distM, durS float64
	for _, leg := range route.Legs {
		distM += float64(leg.Distance.Meters)
		durS += leg.Duration.Seconds()
	}
	return &models.RouteGeometry{Points: points, DistanceM: distM, DurationS: durS}, nil
}

func (g *GoogleRouter) Distance(ctx context.Context, a, b models.LocationPoint) (Leg, error) {
	r := &maps.DistanceMatrixRequest{
		Origins:      []string{coordString(a)},
		Destinations: []string{coordString(b)},
		Mode:         maps.TravelModeDriving,
	}
	resp, err := g.client.DistanceMatrix(ctx, r)
	if err != nil {
		return Leg{}, fmt.Errorf("%w: distance matrix: %v", ErrUnavailable, err)
	}
	if len(resp.Rows) == 0 || len(resp.Rows[0].Elements) == 0 {
		return Leg{}, fmt.Errorf("%w: empty distance matrix", ErrUnavailable)
	}
	el := resp.Rows[0].Elements[0]
	if el.Status != "OK" {
		return Leg{}, fmt.Errorf("%w: element status %s", ErrUnavailable, el.Status)
	}
	return Leg{DistanceM: float64(el.Distance.Meters), DurationS: el.Duration.Seconds()}, nil
}

func (g *GoogleRouter) ReverseGeocode(ctx context.Context, p models.LocationPoint) (*Address, error) {
	results, err := g.client.ReverseGeocode(ctx, &maps.GeocodingRequest{
		LatLng: &maps.LatLng{Lat: p.Lat, Lng: p.Lng},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGeocodeFailed, err)
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("%w: no results", ErrGeocodeFailed)
	}
	res := results[0]
	comps := make([]AddressComponent, len(res.AddressComponents))
	for i, c := range res.AddressComponents {
		comps[i] = AddressComponent{LongName: c.LongName, ShortName: c.ShortName, Types: c.Types}
	}
	return &Address{FormattedAddress: res.FormattedAddress, Components: comps}, nil
}

func (g *GoogleRouter) NearbySearch(ctx context.Context, p models.LocationPoint, radiusM float64, category string) ([]models.POI, error) {
	r := &maps.NearbySearchRequest{
		Location: &maps.LatLng{Lat: p.Lat, Lng: p.Lng},
		Radius:   uint(radiusM),
	}
	if category != "" {
		r.Type = maps.PlaceType(category)
	}
	resp, err := g.client.NearbySearch(ctx, r)
	if err != nil {
		return nil, fmt.Errorf("%w: nearby search: %v", ErrUnavailable, err)
	}
	out := make([]models.POI, 0, len(resp.Results))
	for _, res := range resp.Results {
		out = append(out, models.POI{
			Name: res.Name,
			Location: models.LocationPoint{
				Lat:     res.Geometry.Location.Lat,
				Lng:     res.Geometry.Location.Lng,
				PlaceID: res.PlaceID,
				Address: res.Vicinity,
			},
			Types:  res.Types,
			Rating: float64(res.Rating),
		})
	}
	return out, nil
}

func coordString(p models.LocationPoint) string {
	return fmt.Sprintf("%.6f,%.6f", p.Lat, p.Lng)
}
