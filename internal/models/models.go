package models

import (
	"fmt"
	"time"
)

// LocationPoint is an immutable geographic point attached to a trip.
type LocationPoint struct {
	Address string  `json:"address,omitempty"`
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	PlaceID string  `json:"place_id,omitempty"`
}

// RouteGeometry is a routed path between two points: an ordered polyline
// plus the total driving distance and duration reported by the router.
type RouteGeometry struct {
	Points    []LocationPoint `json:"points"`
	DistanceM float64         `json:"distance_m"`
	DurationS float64         `json:"duration_s"`
}

// Preference is a categorical trip preference. "any" (or unset) counts as
// agreeing with whatever the other party wants.
type Preference string

const PrefAny Preference = "any"

// Indifferent reports whether this preference places no constraint.
func (p Preference) Indifferent() bool { return p == "" || p == PrefAny }

// Agrees reports whether two preferences are compatible.
func (p Preference) Agrees(other Preference) bool {
	return p.Indifferent() || other.Indifferent() || p == other
}

// UserPreferences carries the four categorical axes used by the scorer.
type UserPreferences struct {
	Smoking      Preference `json:"smoking"`
	Pets         Preference `json:"pets"`
	Music        Preference `json:"music"`
	Conversation Preference `json:"conversation"`
}

// Empty reports whether no axis is set at all.
func (u UserPreferences) Empty() bool {
	return u.Smoking == "" && u.Pets == "" && u.Music == "" && u.Conversation == ""
}

type TripStatus string

const (
	TripActive    TripStatus = "active"
	TripCompleted TripStatus = "completed"
	TripCancelled TripStatus = "cancelled"
)

// TripRequest is a published trip. Created by the trip subsystem and
// read-only to the matching core.
type TripRequest struct {
	ID                string        `json:"id"`
	UserID            string        `json:"user_id"`
	Origin            LocationPoint `json:"origin"`
	Destination       LocationPoint `json:"destination"`
	DepartureTime     time.Time     `json:"departure_time"`
	MaxPassengers     int           `json:"max_passengers"`
	AvailableSeats    int           `json:"available_seats"`
	PricePerSeat      *float64      `json:"price_per_seat,omitempty"`
	Currency          string        `json:"currency,omitempty"`
	Status            TripStatus    `json:"status"`
	SmokingAllowed    Preference    `json:"smoking_allowed"`
	PetsAllowed       Preference    `json:"pets_allowed"`
	MusicPreference   Preference    `json:"music_preference"`
	ConversationLevel Preference    `json:"conversation_level"`
}

// Preferences collects the trip's categorical axes.
func (t *TripRequest) Preferences() UserPreferences {
	return UserPreferences{
		Smoking:      t.SmokingAllowed,
		Pets:         t.PetsAllowed,
		Music:        t.MusicPreference,
		Conversation: t.ConversationLevel,
	}
}

// HasCoordinates reports whether both endpoints carry usable coordinates.
func (t *TripRequest) HasCoordinates() bool {
	zero := func(p LocationPoint) bool { return p.Lat == 0 && p.Lng == 0 }
	return !zero(t.Origin) && !zero(t.Destination)
}

// MatchingCriteria are per-user matching limits. Zero values are replaced by
// defaults via Normalize.
type MatchingCriteria struct {
	MaxDetourDistanceKm float64 `json:"max_detour_distance_km"`
	MaxDetourTimeMin    float64 `json:"max_detour_time_min"`
	MaxWalkingDistanceM float64 `json:"max_walking_distance_m"`
	TimeFlexibilityMin  float64 `json:"time_flexibility_min"`
	PriceMin            float64 `json:"price_min"`
	PriceMax            float64 `json:"price_max"` // 0 means no upper bound
}

// DefaultCriteria returns the limits applied when a user supplies none.
func DefaultCriteria() MatchingCriteria {
	return MatchingCriteria{
		MaxDetourDistanceKm: 5,
		MaxDetourTimeMin:    15,
		MaxWalkingDistanceM: 500,
		TimeFlexibilityMin:  30,
	}
}

// Validate rejects contradictory limits. Unset (zero) values are fine; they
// are filled in by Normalize.
func (c MatchingCriteria) Validate() error {
	if c.PriceMax > 0 && c.PriceMin > c.PriceMax {
		return fmt.Errorf("price min %v exceeds price max %v", c.PriceMin, c.PriceMax)
	}
	for name, v := range map[string]float64{
		"max detour distance":  c.MaxDetourDistanceKm,
		"max detour time":      c.MaxDetourTimeMin,
		"max walking distance": c.MaxWalkingDistanceM,
		"time flexibility":     c.TimeFlexibilityMin,
		"price min":            c.PriceMin,
	} {
		if v < 0 {
			return fmt.Errorf("%s must not be negative, got %v", name, v)
		}
	}
	return nil
}

// Normalize fills unset limits from the defaults.
func (c MatchingCriteria) Normalize() MatchingCriteria {
	d := DefaultCriteria()
	if c.MaxDetourDistanceKm <= 0 {
		c.MaxDetourDistanceKm = d.MaxDetourDistanceKm
	}
	if c.MaxDetourTimeMin <= 0 {
		c.MaxDetourTimeMin = d.MaxDetourTimeMin
	}
	if c.MaxWalkingDistanceM <= 0 {
		c.MaxWalkingDistanceM = d.MaxWalkingDistanceM
	}
	if c.TimeFlexibilityMin <= 0 {
		c.TimeFlexibilityMin = d.TimeFlexibilityMin
	}
	return c
}

type MatchType string

const (
	MatchExactRoute     MatchType = "exact_route"
	MatchPartialOverlap MatchType = "partial_overlap"
	MatchDetourPickup   MatchType = "detour_pickup"
	MatchDetourDropoff  MatchType = "detour_dropoff"
)

// CompatibilityAnalysis is the scored pairing of a source trip against one
// candidate. All scores are in [0,1]. Not persisted directly.
type CompatibilityAnalysis struct {
	TripID           string    `json:"trip_id"`
	CandidateTripID  string    `json:"candidate_trip_id"`
	RouteScore       float64   `json:"route_score"`
	TimeScore        float64   `json:"time_score"`
	PreferencesScore float64   `json:"preferences_score"`
	PriceScore       float64   `json:"price_score"`
	OverallScore     float64   `json:"overall_score"`
	MatchType        MatchType `json:"match_type"`
	DetourDistanceKm float64   `json:"detour_distance_km"`
	DetourTimeMin    float64   `json:"detour_time_min"`
	EstimatedSavings float64   `json:"estimated_savings"`
}

type MatchStatus string

const (
	MatchSuggested MatchStatus = "suggested"
	MatchViewed    MatchStatus = "viewed"
	MatchContacted MatchStatus = "contacted"
	MatchAccepted  MatchStatus = "accepted"
	MatchDeclined  MatchStatus = "declined"
	MatchExpired   MatchStatus = "expired"
)

// statusRank orders the forward lifecycle. Accepted and declined are the two
// terminal responses; expired can follow any non-expired state.
var statusRank = map[MatchStatus]int{
	MatchSuggested: 0,
	MatchViewed:    1,
	MatchContacted: 2,
	MatchAccepted:  3,
	MatchDeclined:  3,
	MatchExpired:   4,
}

// CanTransition reports whether moving between two statuses is allowed.
// Transitions are monotonic forward; re-entering viewed or contacted is a
// permitted no-op handled by the orchestrator.
func CanTransition(from, to MatchStatus) bool {
	fr, okF := statusRank[from]
	tr, okT := statusRank[to]
	if !okF || !okT {
		return false
	}
	if from == to {
		return to == MatchViewed || to == MatchContacted
	}
	if from == MatchAccepted || from == MatchDeclined || from == MatchExpired {
		return to == MatchExpired && from != MatchExpired
	}
	return tr > fr
}

// Match is the persisted pairing record. No two rows share the same ordered
// (TripID, MatchedTripID) pair.
type Match struct {
	ID                    string         `json:"id"`
	TripID                string         `json:"trip_id"`
	MatchedTripID         string         `json:"matched_trip_id"`
	CompatibilityScore    float64        `json:"compatibility_score"`
	MatchType             MatchType      `json:"match_type"`
	DetourDistanceKm      float64        `json:"detour_distance_km"`
	DetourTimeMin         float64        `json:"detour_time_min"`
	EstimatedSavings      float64        `json:"estimated_savings"`
	SuggestedPickupPoint  *LocationPoint `json:"suggested_pickup_point,omitempty"`
	SuggestedDropoffPoint *LocationPoint `json:"suggested_dropoff_point,omitempty"`
	Status                MatchStatus    `json:"status"`
	CreatedAt             time.Time      `json:"created_at"`
	ViewedAt              *time.Time     `json:"viewed_at,omitempty"`
	ContactedAt           *time.Time     `json:"contacted_at,omitempty"`
	RespondedAt           *time.Time     `json:"responded_at,omitempty"`
	ExpiresAt             time.Time      `json:"expires_at"`
}

// POI is a nearby point of interest returned by the routing collaborator.
type POI struct {
	Name     string        `json:"name"`
	Location LocationPoint `json:"location"`
	Types    []string      `json:"types"`
	Rating   float64       `json:"rating"`
}

// MeetingPointAnalysis is one ranked rendezvous candidate. Scores in [0,1].
type MeetingPointAnalysis struct {
	Point              LocationPoint `json:"point"`
	SafetyScore        float64       `json:"safety_score"`
	ConvenienceScore   float64       `json:"convenience_score"`
	AccessibilityScore float64       `json:"accessibility_score"`
	OverallScore       float64       `json:"overall_score"`
	NearbyPOIs         []POI         `json:"nearby_pois"`
}
