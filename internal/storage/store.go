package storage

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/example/trip-matching/internal/models"
)

var (
	// ErrNotFound means the requested row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDuplicateMatch means a row already exists for the ordered
	// (trip_id, matched_trip_id) pair. Callers treat it as success-equivalent.
	ErrDuplicateMatch = errors.New("match already exists for trip pair")
)

// MatchFilter narrows and pages ListMatchesByTrip results.
type MatchFilter struct {
	Status models.MatchStatus
	Limit  int
	Offset int
}

// MatchStore defines persistence for match rows. Implementations must
// enforce uniqueness of the ordered (TripID, MatchedTripID) pair.
type MatchStore interface {
	CreateMatch(ctx context.Context, m *models.Match) error
	GetMatch(ctx context.Context, id string) (*models.Match, error)
	GetMatchByPair(ctx context.Context, tripID, matchedTripID string) (*models.Match, error)
	ListMatchesByTrip(ctx context.Context, tripID string, f MatchFilter) ([]*models.Match, error)
	UpdateMatch(ctx context.Context, m *models.Match) error
	// ExpireDue flips every non-terminal row with expires_at < now to
	// expired and returns the affected rows.
	ExpireDue(ctx context.Context, now time.Time) ([]*models.Match, error)
}

// TripStore reads published trips. The trip subsystem owns the writes.
type TripStore interface {
	GetTrip(ctx context.Context, id string) (*models.TripRequest, error)
}

// MemoryStore backs MatchStore and TripStore with mutex-guarded maps for
// local runs and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	matches map[string]*models.Match // by ID
	pairs   map[string]string       // pair key -> match ID
	trips   map[string]*models.TripRequest
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		matches: make(map[string]*models.Match),
		pairs:   make(map[string]string),
		trips:   make(map[string]*models.TripRequest),
	}
}

func pairKey(tripID, matchedTripID string) string { return tripID + "\x00" + matchedTripID }

func (m *MemoryStore) CreateMatch(_ context.Context, mt *models.Match) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := pairKey(mt.TripID, mt.MatchedTripID)
	if _, exists := m.pairs[k]; exists {
		return ErrDuplicateMatch
	}
	cp := *mt
	m.matches[mt.ID] = &cp
	m.pairs[k] = mt.ID
	return nil
}

func (m *MemoryStore) GetMatch(_ context.Context, id string) (*models.Match, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	mt, ok := m.matches[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *mt
	return &cp, nil
}

func (m *MemoryStore) GetMatchByPair(_ context.Context, tripID, matchedTripID string) (*models.Match, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.pairs[pairKey(tripID, matchedTripID)]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *m.matches[id]
	return &cp, nil
}

func (m *MemoryStore) ListMatchesByTrip(_ context.Context, tripID string, f MatchFilter) ([]*models.Match, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*models.Match
	for _, mt := range m.matches {
		if mt.TripID != tripID {
			continue
		}
		if f.Status != "" && mt.Status != f.Status {
			continue
		}
		cp := *mt
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CompatibilityScore > out[j].CompatibilityScore })
	if f.Offset > 0 {
		if f.Offset >= len(out) {
			return nil, nil
		}
		out = out[f.Offset:]
	}
	if f.Limit > 0 && f.Limit < len(out) {
		out = out[:f.Limit]
	}
	return out, nil
}

func (m *MemoryStore) UpdateMatch(_ context.Context, mt *models.Match) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.matches[mt.ID]; !ok {
		return ErrNotFound
	}
	cp := *mt
	m.matches[mt.ID] = &cp
	return nil
}

func (m *MemoryStore) ExpireDue(_ context.Context, now time.Time) ([]*models.Match, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Match
	for _, mt := range m.matches {
		if mt.Status == models.MatchExpired || mt.Status == models.MatchAccepted || mt.Status == models.MatchDeclined {
			continue
		}
		if mt.ExpiresAt.Before(now) {
			mt.Status = models.MatchExpired
			cp := *mt
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MemoryStore) GetTrip(_ context.Context, id string) (*models.TripRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.trips[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *t
	return &cp, nil
}

// PutTrip seeds a trip; used by tests and local runs.
func (m *MemoryStore) PutTrip(t *models.TripRequest) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *t
	m.trips[t.ID] = &cp
}
