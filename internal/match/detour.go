package match

import (
	"context"
	"log/slog"

	"github.com/example/trip-matching/internal/models"
	"github.com/example/trip-matching/internal/observability"
	"github.com/example/trip-matching/internal/routing"
)

// Detour is the extra travel a driver accepts to pick up and drop off the
// other party.
type Detour struct {
	DistanceKm float64 `json:"detour_distance_km"`
	TimeMin    float64 `json:"detour_time_min"`
}

// DetourCalculator sums the legs from the source origin to the candidate
// origin and from the candidate destination back to the source destination.
// When the router is unavailable it falls back to the route deviation at an
// assumed 2 min/km city pace.
type DetourCalculator struct {
	Router routing.Router
	Logger *slog.Logger
}

func (c *DetourCalculator) Calculate(ctx context.Context, source, candidate *models.TripRequest, deviationKm float64) Detour {
	if c.Router != nil {
		pickup, err1 := c.Router.Distance(ctx, source.Origin, candidate.Origin)
		dropoff, err2 := c.Router.Distance(ctx, candidate.Destination, source.Destination)
		if err1 == nil && err2 == nil {
			return Detour{
				DistanceKm: (pickup.DistanceM + dropoff.DistanceM) / 1000,
				TimeMin:    (pickup.DurationS + dropoff.DurationS) / 60,
			}
		}
		if c.Logger != nil {
			c.Logger.Warn("detour degraded to deviation estimate", "pickup_err", err1, "dropoff_err", err2)
		}
	}
	observability.RoutingFallbacks.Inc()
	return Detour{DistanceKm: deviationKm, TimeMin: deviationKm * 2}
}
