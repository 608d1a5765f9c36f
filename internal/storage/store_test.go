package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/trip-matching/internal/models"
)

func TestMemoryStoreDuplicatePair(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	m := &models.Match{ID: "m1", TripID: "a", MatchedTripID: "b", Status: models.MatchSuggested}
	if err := s.CreateMatch(ctx, m); err != nil {
		t.Fatalf("create: %v", err)
	}

	dup := &models.Match{ID: "m2", TripID: "a", MatchedTripID: "b", Status: models.MatchSuggested}
	if err := s.CreateMatch(ctx, dup); !errors.Is(err, ErrDuplicateMatch) {
		t.Fatalf("expected ErrDuplicateMatch, got %v", err)
	}

	// reversed pair is a distinct row
	rev := &models.Match{ID: "m3", TripID: "b", MatchedTripID: "a", Status: models.MatchSuggested}
	if err := s.CreateMatch(ctx, rev); err != nil {
		t.Fatalf("reversed pair must be allowed: %v", err)
	}
}

func TestMemoryStoreGetByPair(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	m := &models.Match{ID: "m1", TripID: "a", MatchedTripID: "b"}
	_ = s.CreateMatch(ctx, m)

	got, err := s.GetMatchByPair(ctx, "a", "b")
	if err != nil {
		t.Fatalf("get by pair: %v", err)
	}
	if got.ID != "m1" {
		t.Errorf("wrong row: %+v", got)
	}
	if _, err := s.GetMatchByPair(ctx, "b", "a"); !errors.Is(err, ErrNotFound) {
		t.Errorf("reversed pair should not resolve, got %v", err)
	}
}

func TestMemoryStoreListSortedAndPaged(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	scores := []float64{0.4, 0.9, 0.7}
	for i, sc := range scores {
		m := &models.Match{
			ID: string(rune('a' + i)), TripID: "trip", MatchedTripID: string(rune('x' + i)),
			CompatibilityScore: sc, Status: models.MatchSuggested,
		}
		if err := s.CreateMatch(ctx, m); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	out, err := s.ListMatchesByTrip(ctx, "trip", MatchFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(out) != 3 || out[0].CompatibilityScore != 0.9 || out[2].CompatibilityScore != 0.4 {
		t.Fatalf("not sorted by score desc: %+v", out)
	}

	paged, err := s.ListMatchesByTrip(ctx, "trip", MatchFilter{Limit: 1, Offset: 1})
	if err != nil {
		t.Fatalf("list paged: %v", err)
	}
	if len(paged) != 1 || paged[0].CompatibilityScore != 0.7 {
		t.Fatalf("paging wrong: %+v", paged)
	}

	none, err := s.ListMatchesByTrip(ctx, "trip", MatchFilter{Offset: 10})
	if err != nil || len(none) != 0 {
		t.Fatalf("offset past end should be empty, got %v %v", none, err)
	}
}

func TestMemoryStoreListStatusFilter(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	_ = s.CreateMatch(ctx, &models.Match{ID: "m1", TripID: "t", MatchedTripID: "x", Status: models.MatchSuggested})
	_ = s.CreateMatch(ctx, &models.Match{ID: "m2", TripID: "t", MatchedTripID: "y", Status: models.MatchAccepted})

	out, err := s.ListMatchesByTrip(ctx, "t", MatchFilter{Status: models.MatchAccepted})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(out) != 1 || out[0].ID != "m2" {
		t.Fatalf("status filter wrong: %+v", out)
	}
}

func TestMemoryStoreUpdate(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	m := &models.Match{ID: "m1", TripID: "a", MatchedTripID: "b", Status: models.MatchSuggested}
	_ = s.CreateMatch(ctx, m)

	m.Status = models.MatchViewed
	if err := s.UpdateMatch(ctx, m); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, _ := s.GetMatch(ctx, "m1")
	if got.Status != models.MatchViewed {
		t.Errorf("update not persisted: %v", got.Status)
	}

	if err := s.UpdateMatch(ctx, &models.Match{ID: "missing"}); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStoreCopyOnRead(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	_ = s.CreateMatch(ctx, &models.Match{ID: "m1", TripID: "a", MatchedTripID: "b", Status: models.MatchSuggested})

	got, _ := s.GetMatch(ctx, "m1")
	got.Status = models.MatchDeclined

	again, _ := s.GetMatch(ctx, "m1")
	if again.Status != models.MatchSuggested {
		t.Fatal("mutating a returned row must not affect the store")
	}
}

func TestMemoryStoreExpireDue(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

	_ = s.CreateMatch(ctx, &models.Match{ID: "overdue", TripID: "a", MatchedTripID: "b", Status: models.MatchViewed, ExpiresAt: now.Add(-time.Minute)})
	_ = s.CreateMatch(ctx, &models.Match{ID: "fresh", TripID: "a", MatchedTripID: "c", Status: models.MatchSuggested, ExpiresAt: now.Add(time.Minute)})
	_ = s.CreateMatch(ctx, &models.Match{ID: "declined", TripID: "a", MatchedTripID: "d", Status: models.MatchDeclined, ExpiresAt: now.Add(-time.Minute)})

	expired, err := s.ExpireDue(ctx, now)
	if err != nil {
		t.Fatalf("expire: %v", err)
	}
	if len(expired) != 1 || expired[0].ID != "overdue" {
		t.Fatalf("expected only the overdue row, got %+v", expired)
	}

	got, _ := s.GetMatch(ctx, "declined")
	if got.Status != models.MatchDeclined {
		t.Errorf("terminal rows must not expire, got %v", got.Status)
	}
}

func TestMemoryStoreTrips(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	s.PutTrip(&models.TripRequest{ID: "t1", UserID: "u1", Status: models.TripActive})

	got, err := s.GetTrip(ctx, "t1")
	if err != nil {
		t.Fatalf("get trip: %v", err)
	}
	if got.UserID != "u1" {
		t.Errorf("wrong trip: %+v", got)
	}
	if _, err := s.GetTrip(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
