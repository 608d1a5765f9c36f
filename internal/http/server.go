package httpapi

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/example/trip-matching/internal/config"
	"github.com/example/trip-matching/internal/dispatch"
	"github.com/example/trip-matching/internal/events"
	"github.com/example/trip-matching/internal/geo"
	"github.com/example/trip-matching/internal/match"
	"github.com/example/trip-matching/internal/meeting"
	"github.com/example/trip-matching/internal/storage"
)

// Server wires the matching core behind an HTTP API.
type Server struct {
	Matcher *match.Service
	Ranker  *meeting.Ranker
	Trips   storage.TripStore
	Index   geo.TripIndex
	WSReg   *dispatch.WSRegistry

	cfg    config.ServerConfig
	logger *slog.Logger
	mux    *mux.Router
}

func NewServer(cfg config.ServerConfig, logger *slog.Logger, matcher *match.Service, ranker *meeting.Ranker, trips storage.TripStore, index geo.TripIndex) *Server {
	s := &Server{
		Matcher: matcher,
		Ranker:  ranker,
		Trips:   trips,
		Index:   index,
		WSReg:   dispatch.NewWSRegistry(logger),
		cfg:     cfg,
		logger:  logger,
		mux:     mux.NewRouter(),
	}
	s.registerMiddleware()
	s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.mux.ServeHTTP(w, r) }

// WSSink adapts the websocket registry into an event sink so both parties of
// a match see lifecycle events as they happen. Missing sessions are fine;
// users reconnect and read state over the API.
type WSSink struct {
	Registry *dispatch.WSRegistry
	Trips    storage.TripStore
}

func (w *WSSink) Publish(ctx context.Context, e events.Event) error {
	for _, tripID := range []string{e.Match.TripID, e.Match.MatchedTripID} {
		trip, err := w.Trips.GetTrip(ctx, tripID)
		if err != nil {
			continue
		}
		_ = w.Registry.Notify(trip.UserID, e)
	}
	return nil
}

func (w *WSSink) Close() error { return nil }
