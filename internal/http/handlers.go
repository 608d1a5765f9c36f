package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/trip-matching/internal/match"
	"github.com/example/trip-matching/internal/meeting"
	"github.com/example/trip-matching/internal/models"
	"github.com/example/trip-matching/internal/storage"
)

func (s *Server) routes() {
	api := s.mux.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/matches/find", s.handleFindMatches).Methods("POST")
	api.HandleFunc("/matches/analyze", s.handleAnalyze).Methods("POST")
	api.HandleFunc("/matches", s.handleCreateMatch).Methods("POST")
	api.HandleFunc("/matches/{id}/status", s.handleUpdateStatus).Methods("PATCH")
	api.HandleFunc("/trips/{id}/matches", s.handleListMatches).Methods("GET")
	api.HandleFunc("/meeting-points", s.handleMeetingPoints).Methods("POST")
	api.HandleFunc("/meeting-points/between", s.handleMeetingPointsBetween).Methods("POST")

	s.mux.HandleFunc("/internal/trips/index", s.handleIndexTrip).Methods("POST")
	s.mux.HandleFunc("/ws/{user_id}", s.handleWS)
	s.mux.HandleFunc("/healthz", handleOK).Methods("GET")
	s.mux.HandleFunc("/ready", handleOK).Methods("GET")
	s.mux.Handle("/metrics", promhttp.Handler())
}

type findMatchesRequest struct {
	SourceTripID     string                  `json:"source_trip_id"`
	CandidateTripIDs []string                `json:"candidate_trip_ids,omitempty"`
	RadiusKm         float64                 `json:"radius_km,omitempty"`
	Limit            int                     `json:"limit,omitempty"`
	Preferences      *models.UserPreferences `json:"preferences,omitempty"`
	Criteria         models.MatchingCriteria `json:"criteria"`
}

func (s *Server) handleFindMatches(w http.ResponseWriter, r *http.Request) {
	var req findMatchesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	source, err := s.Trips.GetTrip(r.Context(), req.SourceTripID)
	if err != nil {
		s.tripError(w, req.SourceTripID, err)
		return
	}

	var candidates []*models.TripRequest
	if len(req.CandidateTripIDs) > 0 {
		for _, id := range req.CandidateTripIDs {
			t, err := s.Trips.GetTrip(r.Context(), id)
			if err != nil {
				continue // unknown candidates are skipped, not fatal
			}
			candidates = append(candidates, t)
		}
	} else {
		radius := req.RadiusKm
		if radius <= 0 {
			radius = 10
		}
		limit := req.Limit
		if limit <= 0 {
			limit = 50
		}
		candidates, err = s.Matcher.FindCandidates(r.Context(), source, radius, limit)
		if err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
	}

	analyses, err := s.Matcher.FindCompatibleTrips(r.Context(), source, candidates, req.Preferences, req.Criteria)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"analyses": analyses})
}

type analyzeRequest struct {
	TripID      string                  `json:"trip_id"`
	OtherTripID string                  `json:"other_trip_id"`
	Preferences *models.UserPreferences `json:"preferences,omitempty"`
	Criteria    models.MatchingCriteria `json:"criteria"`
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	a, err := s.Trips.GetTrip(r.Context(), req.TripID)
	if err != nil {
		s.tripError(w, req.TripID, err)
		return
	}
	b, err := s.Trips.GetTrip(r.Context(), req.OtherTripID)
	if err != nil {
		s.tripError(w, req.OtherTripID, err)
		return
	}
	analysis, err := s.Matcher.AnalyzeCompatibility(r.Context(), a, b, req.Criteria, req.Preferences)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, analysis)
}

type createMatchRequest struct {
	TripID        string                  `json:"trip_id"`
	MatchedTripID string                  `json:"matched_trip_id"`
	Criteria      models.MatchingCriteria `json:"criteria"`
}

func (s *Server) handleCreateMatch(w http.ResponseWriter, r *http.Request) {
	var req createMatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	a, err := s.Trips.GetTrip(r.Context(), req.TripID)
	if err != nil {
		s.tripError(w, req.TripID, err)
		return
	}
	b, err := s.Trips.GetTrip(r.Context(), req.MatchedTripID)
	if err != nil {
		s.tripError(w, req.MatchedTripID, err)
		return
	}
	analysis, err := s.Matcher.AnalyzeCompatibility(r.Context(), a, b, req.Criteria, nil)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	m, created, err := s.Matcher.CreateMatch(r.Context(), match.CreateMatchParams{
		TripID:        req.TripID,
		MatchedTripID: req.MatchedTripID,
		Analysis:      analysis,
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	status := http.StatusCreated
	if !created {
		status = http.StatusOK
	}
	writeJSON(w, status, map[string]any{"match": m, "already_exists": !created})
}

func (s *Server) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var req struct {
		Status models.MatchStatus `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	m, err := s.Matcher.UpdateMatchStatus(r.Context(), id, req.Status)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			http.Error(w, "match not found", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) handleListMatches(w http.ResponseWriter, r *http.Request) {
	tripID := mux.Vars(r)["id"]
	f := storage.MatchFilter{Status: models.MatchStatus(r.URL.Query().Get("status"))}
	f.Limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	f.Offset, _ = strconv.Atoi(r.URL.Query().Get("offset"))
	matches, err := s.Matcher.Store.ListMatchesByTrip(r.Context(), tripID, f)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"matches": matches})
}

type meetingPointsRequest struct {
	Route             *models.RouteGeometry `json:"route"`
	PassengerLocation models.LocationPoint  `json:"passenger_location"`
	Options           meeting.Options       `json:"options"`
}

func (s *Server) handleMeetingPoints(w http.ResponseWriter, r *http.Request) {
	var req meetingPointsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	points, err := s.Ranker.FindOptimalMeetingPoints(r.Context(), req.Route, req.PassengerLocation, req.Options)
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"meeting_points": points})
}

type meetingPointsBetweenRequest struct {
	LocationA models.LocationPoint `json:"location_a"`
	LocationB models.LocationPoint `json:"location_b"`
	Options   meeting.Options      `json:"options"`
}

func (s *Server) handleMeetingPointsBetween(w http.ResponseWriter, r *http.Request) {
	var req meetingPointsBetweenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	points, err := s.Ranker.FindMeetingPointsBetween(r.Context(), req.LocationA, req.LocationB, req.Options)
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"meeting_points": points})
}

func (s *Server) handleIndexTrip(w http.ResponseWriter, r *http.Request) {
	var t models.TripRequest
	if err := json.NewDecoder(r.Body).Decode(&t); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if s.Index == nil {
		http.Error(w, "no trip index configured", http.StatusServiceUnavailable)
		return
	}
	if err := s.Index.Upsert(r.Context(), t); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

var upgrader = websocket.Upgrader{}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["user_id"]
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		http.Error(w, "upgrade failed", http.StatusBadRequest)
		return
	}
	s.WSReg.Add(userID, conn)
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				s.WSReg.Remove(userID)
				return
			}
		}
	}()
}

func (s *Server) tripError(w http.ResponseWriter, tripID string, err error) {
	if errors.Is(err, storage.ErrNotFound) {
		http.Error(w, "trip "+tripID+" not found", http.StatusNotFound)
		return
	}
	http.Error(w, err.Error(), http.StatusInternalServerError)
}

func handleOK(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
