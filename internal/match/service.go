package match

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/example/trip-matching/internal/config"
	"github.com/example/trip-matching/internal/events"
	"github.com/example/trip-matching/internal/geo"
	"github.com/example/trip-matching/internal/models"
	"github.com/example/trip-matching/internal/observability"
	"github.com/example/trip-matching/internal/storage"
)

// FareHolder places a payment hold for the accepted party's fare share.
// Implementations wrap a payment provider; failures are logged, not fatal.
type FareHolder interface {
	Hold(ctx context.Context, amountMinor int64, currency, userID string) (string, error)
}

// Service orchestrates candidate scoring and the persisted match lifecycle.
type Service struct {
	Scorer *Scorer
	Store  storage.MatchStore
	Trips  storage.TripStore
	Index  geo.TripIndex // optional candidate discovery
	Events events.Sink
	Fare   FareHolder // optional
	Logger *slog.Logger
	Cfg    config.ScoringConfig
	Now    func() time.Time
}

func NewService(scorer *Scorer, store storage.MatchStore, trips storage.TripStore, sink events.Sink, cfg config.ScoringConfig, logger *slog.Logger) *Service {
	if sink == nil {
		sink = events.NopSink{}
	}
	return &Service{
		Scorer: scorer,
		Store:  store,
		Trips:  trips,
		Events: sink,
		Logger: logger,
		Cfg:    cfg,
		Now:    time.Now,
	}
}

// FindCompatibleTrips scores every eligible candidate against the source
// trip with bounded parallelism and returns analyses at or above the cutoff,
// sorted by descending overall score. A cancelled context yields the
// analyses completed so far rather than discarding them.
func (s *Service) FindCompatibleTrips(ctx context.Context, source *models.TripRequest, candidates []*models.TripRequest, prefs *models.UserPreferences, criteria models.MatchingCriteria) ([]models.CompatibilityAnalysis, error) {
	if source == nil || !source.HasCoordinates() {
		return nil, fmt.Errorf("source trip has no usable coordinates")
	}
	if err := criteria.Validate(); err != nil {
		return nil, fmt.Errorf("invalid criteria: %w", err)
	}

	eligible := make([]*models.TripRequest, 0, len(candidates))
	for _, c := range candidates {
		if c == nil || c.ID == source.ID || c.UserID == source.UserID {
			continue
		}
		if c.Status != models.TripActive || c.AvailableSeats <= 0 {
			continue
		}
		if !c.HasCoordinates() {
			s.log().Debug("skipping candidate without coordinates", "trip_id", c.ID)
			continue
		}
		eligible = append(eligible, c)
	}

	results := make([]*models.CompatibilityAnalysis, len(eligible))
	g := new(errgroup.Group)
	g.SetLimit(s.Cfg.AnalysisConcurrency)
	for i, cand := range eligible {
		i, cand := i, cand
		g.Go(func() error {
			select {
			case <-ctx.Done():
				// leave the slot empty; completed siblings still count
				return nil
			default:
			}
			a := s.Scorer.Analyze(ctx, source, cand, prefs, criteria)
			results[i] = &a
			return nil
		})
	}
	_ = g.Wait()

	out := make([]models.CompatibilityAnalysis, 0, len(results))
	for _, r := range results {
		if r != nil && r.OverallScore >= s.Cfg.MinOverallScore {
			out = append(out, *r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].OverallScore > out[j].OverallScore })
	return out, nil
}

// FindCandidates discovers active trips departing near the source origin via
// the trip index, excluding the source itself.
func (s *Service) FindCandidates(ctx context.Context, source *models.TripRequest, radiusKm float64, limit int) ([]*models.TripRequest, error) {
	if s.Index == nil {
		return nil, fmt.Errorf("no trip index configured")
	}
	ids, err := s.Index.Nearby(ctx, source.Origin.Lat, source.Origin.Lng, radiusKm, limit)
	if err != nil {
		return nil, fmt.Errorf("trip index lookup: %w", err)
	}
	out := make([]*models.TripRequest, 0, len(ids))
	for _, id := range ids {
		if id == source.ID {
			continue
		}
		t, err := s.Trips.GetTrip(ctx, id)
		if err != nil {
			s.log().Warn("candidate trip load failed", "trip_id", id, "error", err)
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

// AnalyzeCompatibility scores a single pairing.
func (s *Service) AnalyzeCompatibility(ctx context.Context, a, b *models.TripRequest, criteria models.MatchingCriteria, prefs *models.UserPreferences) (models.CompatibilityAnalysis, error) {
	if a == nil || b == nil || !a.HasCoordinates() || !b.HasCoordinates() {
		return models.CompatibilityAnalysis{}, fmt.Errorf("both trips need coordinates")
	}
	if err := criteria.Validate(); err != nil {
		return models.CompatibilityAnalysis{}, fmt.Errorf("invalid criteria: %w", err)
	}
	return s.Scorer.Analyze(ctx, a, b, prefs, criteria), nil
}

// CreateMatchParams carries everything needed to persist one pairing.
type CreateMatchParams struct {
	TripID                string
	MatchedTripID         string
	Analysis              models.CompatibilityAnalysis
	SuggestedPickupPoint  *models.LocationPoint
	SuggestedDropoffPoint *models.LocationPoint
}

// CreateMatch persists the pairing in status suggested with a 30-day expiry
// (per config) and writes a best-effort reciprocal row so either party can
// discover the pairing from their own trip. A duplicate ordered pair is
// success-equivalent: the existing row is returned with created=false.
func (s *Service) CreateMatch(ctx context.Context, p CreateMatchParams) (*models.Match, bool, error) {
	if p.TripID == p.MatchedTripID {
		return nil, false, fmt.Errorf("a trip cannot match itself")
	}
	trip, err := s.Trips.GetTrip(ctx, p.TripID)
	if err != nil {
		return nil, false, fmt.Errorf("load trip %s: %w", p.TripID, err)
	}
	matched, err := s.Trips.GetTrip(ctx, p.MatchedTripID)
	if err != nil {
		return nil, false, fmt.Errorf("load trip %s: %w", p.MatchedTripID, err)
	}
	if trip.UserID == matched.UserID {
		return nil, false, fmt.Errorf("trips %s and %s belong to the same user", p.TripID, p.MatchedTripID)
	}

	now := s.Now()
	m := &models.Match{
		ID:                    newID(),
		TripID:                p.TripID,
		MatchedTripID:         p.MatchedTripID,
		CompatibilityScore:    p.Analysis.OverallScore,
		MatchType:             p.Analysis.MatchType,
		DetourDistanceKm:      p.Analysis.DetourDistanceKm,
		DetourTimeMin:         p.Analysis.DetourTimeMin,
		EstimatedSavings:      p.Analysis.EstimatedSavings,
		SuggestedPickupPoint:  p.SuggestedPickupPoint,
		SuggestedDropoffPoint: p.SuggestedDropoffPoint,
		Status:                models.MatchSuggested,
		CreatedAt:             now,
		ExpiresAt:             now.Add(s.Cfg.MatchExpiry),
	}

	if err := s.Store.CreateMatch(ctx, m); err != nil {
		if errors.Is(err, storage.ErrDuplicateMatch) {
			observability.MatchesDuplicate.Inc()
			existing, getErr := s.Store.GetMatchByPair(ctx, p.TripID, p.MatchedTripID)
			if getErr != nil {
				return nil, false, fmt.Errorf("load existing match: %w", getErr)
			}
			return existing, false, nil
		}
		return nil, false, fmt.Errorf("create match: %w", err)
	}
	observability.MatchesCreated.Inc()

	// Best-effort reciprocal row; its absence is not fatal.
	reciprocal := *m
	reciprocal.ID = newID()
	reciprocal.TripID, reciprocal.MatchedTripID = m.MatchedTripID, m.TripID
	reciprocal.SuggestedPickupPoint, reciprocal.SuggestedDropoffPoint = m.SuggestedDropoffPoint, m.SuggestedPickupPoint
	if err := s.Store.CreateMatch(ctx, &reciprocal); err != nil && !errors.Is(err, storage.ErrDuplicateMatch) {
		s.log().Warn("reciprocal match insert failed", "trip_id", reciprocal.TripID, "error", err)
	}

	s.emit(ctx, events.Event{Type: events.TypeMatchCreated, Match: *m, OccurredAt: now})
	return m, true, nil
}

// UpdateMatchStatus advances the lifecycle, stamping viewed/contacted/
// responded timestamps. Re-entering viewed or contacted is an idempotent
// no-op. Seat-count adjustments belong to the trip subsystem, not here.
func (s *Service) UpdateMatchStatus(ctx context.Context, matchID string, status models.MatchStatus) (*models.Match, error) {
	m, err := s.Store.GetMatch(ctx, matchID)
	if err != nil {
		return nil, fmt.Errorf("load match %s: %w", matchID, err)
	}
	if m.Status == status && (status == models.MatchViewed || status == models.MatchContacted) {
		return m, nil
	}
	if !models.CanTransition(m.Status, status) {
		return nil, fmt.Errorf("invalid status transition %s -> %s", m.Status, status)
	}

	now := s.Now()
	prev := m.Status
	m.Status = status
	switch status {
	case models.MatchViewed:
		if m.ViewedAt == nil {
			m.ViewedAt = &now
		}
	case models.MatchContacted:
		if m.ContactedAt == nil {
			m.ContactedAt = &now
		}
	case models.MatchAccepted, models.MatchDeclined:
		m.RespondedAt = &now
	}
	if err := s.Store.UpdateMatch(ctx, m); err != nil {
		return nil, fmt.Errorf("update match %s: %w", matchID, err)
	}

	if status == models.MatchAccepted {
		s.holdFareShare(ctx, m)
	}

	s.emit(ctx, events.Event{Type: events.TypeMatchStatusChanged, Match: *m, PrevStatus: prev, OccurredAt: now})
	return m, nil
}

// ExpireMatches sweeps every overdue row to expired and emits a status event
// per affected match.
func (s *Service) ExpireMatches(ctx context.Context) (int, error) {
	expired, err := s.Store.ExpireDue(ctx, s.Now())
	if err != nil {
		return 0, fmt.Errorf("expire sweep: %w", err)
	}
	for _, m := range expired {
		observability.MatchesExpired.Inc()
		s.emit(ctx, events.Event{Type: events.TypeMatchStatusChanged, Match: *m, OccurredAt: s.Now()})
	}
	return len(expired), nil
}

// holdFareShare places a best-effort payment hold for the accepted fare
// share: the matched trip's seat price minus the estimated shared savings.
func (s *Service) holdFareShare(ctx context.Context, m *models.Match) {
	if s.Fare == nil {
		return
	}
	trip, err := s.Trips.GetTrip(ctx, m.MatchedTripID)
	if err != nil || trip.PricePerSeat == nil {
		return
	}
	amount := *trip.PricePerSeat - m.EstimatedSavings
	if amount <= 0 {
		return
	}
	currency := trip.Currency
	if currency == "" {
		currency = "usd"
	}
	if _, err := s.Fare.Hold(ctx, int64(amount*100), currency, trip.UserID); err != nil {
		s.log().Warn("fare hold failed", "match_id", m.ID, "error", err)
	}
}

func (s *Service) emit(ctx context.Context, e events.Event) {
	if err := s.Events.Publish(ctx, e); err != nil {
		s.log().Warn("event publish failed", "type", e.Type, "match_id", e.Match.ID, "error", err)
	}
}

func (s *Service) log() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

func newID() string {
	b := make([]byte, 12)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
