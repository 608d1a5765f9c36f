package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/example/trip-matching/internal/models"
)

// PostgresStore persists matches in Postgres. The duplicate-pair invariant
// lives in a unique index on (trip_id, matched_trip_id); the insert relies on
// ON CONFLICT instead of a racy check-then-insert.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

func (p *PostgresStore) DB() *sql.DB { return p.db }

const matchColumns = `id, trip_id, matched_trip_id, compatibility_score, match_type,
	detour_distance_km, detour_time_min, estimated_savings,
	pickup_lat, pickup_lng, pickup_address, dropoff_lat, dropoff_lng, dropoff_address,
	status, created_at, viewed_at, contacted_at, responded_at, expires_at`

func (p *PostgresStore) CreateMatch(ctx context.Context, m *models.Match) error {
	var pickupLat, pickupLng sql.NullFloat64
	var pickupAddr sql.NullString
	if m.SuggestedPickupPoint != nil {
		pickupLat = sql.NullFloat64{Float64: m.SuggestedPickupPoint.Lat, Valid: true}
		pickupLng = sql.NullFloat64{Float64: m.SuggestedPickupPoint.Lng, Valid: true}
		pickupAddr = sql.NullString{String: m.SuggestedPickupPoint.Address, Valid: true}
	}
	var dropLat, dropLng sql.NullFloat64
	var dropAddr sql.NullString
	if m.SuggestedDropoffPoint != nil {
		dropLat = sql.NullFloat64{Float64: m.SuggestedDropoffPoint.Lat, Valid: true}
		dropLng = sql.NullFloat64{Float64: m.SuggestedDropoffPoint.Lng, Valid: true}
		dropAddr = sql.NullString{String: m.SuggestedDropoffPoint.Address, Valid: true}
	}
	res, err := p.db.ExecContext(ctx, `
		INSERT INTO matches (`+matchColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20)
		ON CONFLICT (trip_id, matched_trip_id) DO NOTHING`,
		m.ID, m.TripID, m.MatchedTripID, m.CompatibilityScore, string(m.MatchType),
		m.DetourDistanceKm, m.DetourTimeMin, m.EstimatedSavings,
		pickupLat, pickupLng, pickupAddr, dropLat, dropLng, dropAddr,
		string(m.Status), m.CreatedAt, m.ViewedAt, m.ContactedAt, m.RespondedAt, m.ExpiresAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return ErrDuplicateMatch
		}
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrDuplicateMatch
	}
	return nil
}

func (p *PostgresStore) GetMatch(ctx context.Context, id string) (*models.Match, error) {
	row := p.db.QueryRowContext(ctx, `SELECT `+matchColumns+` FROM matches WHERE id = $1`, id)
	return scanMatch(row)
}

func (p *PostgresStore) GetMatchByPair(ctx context.Context, tripID, matchedTripID string) (*models.Match, error) {
	row := p.db.QueryRowContext(ctx,
		`SELECT `+matchColumns+` FROM matches WHERE trip_id = $1 AND matched_trip_id = $2`,
		tripID, matchedTripID)
	return scanMatch(row)
}

func (p *PostgresStore) ListMatchesByTrip(ctx context.Context, tripID string, f MatchFilter) ([]*models.Match, error) {
	q := `SELECT ` + matchColumns + ` FROM matches WHERE trip_id = $1`
	args := []any{tripID}
	if f.Status != "" {
		args = append(args, string(f.Status))
		q += fmt.Sprintf(" AND status = $%d", len(args))
	}
	q += " ORDER BY compatibility_score DESC"
	if f.Limit > 0 {
		args = append(args, f.Limit)
		q += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if f.Offset > 0 {
		args = append(args, f.Offset)
		q += fmt.Sprintf(" OFFSET $%d", len(args))
	}
	rows, err := p.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*models.Match
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (p *PostgresStore) UpdateMatch(ctx context.Context, m *models.Match) error {
	res, err := p.db.ExecContext(ctx, `
		UPDATE matches SET status = $1, viewed_at = $2, contacted_at = $3, responded_at = $4
		WHERE id = $5`,
		string(m.Status), m.ViewedAt, m.ContactedAt, m.RespondedAt, m.ID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *PostgresStore) ExpireDue(ctx context.Context, now time.Time) ([]*models.Match, error) {
	rows, err := p.db.QueryContext(ctx, `
		UPDATE matches SET status = 'expired'
		WHERE expires_at < $1 AND status NOT IN ('expired','accepted','declined')
		RETURNING `+matchColumns, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*models.Match
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// GetTrip reads the trip fields the matching core needs. The trips table is
// owned by the trip subsystem; this is read-only.
func (p *PostgresStore) GetTrip(ctx context.Context, id string) (*models.TripRequest, error) {
	var t models.TripRequest
	var price sql.NullFloat64
	var currency sql.NullString
	err := p.db.QueryRowContext(ctx, `
		SELECT id, user_id, origin_address, origin_lat, origin_lng,
		       dest_address, dest_lat, dest_lng, departure_time,
		       max_passengers, available_seats, price_per_seat, currency, status,
		       smoking_allowed, pets_allowed, music_preference, conversation_level
		FROM trips WHERE id = $1`, id).Scan(
		&t.ID, &t.UserID, &t.Origin.Address, &t.Origin.Lat, &t.Origin.Lng,
		&t.Destination.Address, &t.Destination.Lat, &t.Destination.Lng, &t.DepartureTime,
		&t.MaxPassengers, &t.AvailableSeats, &price, &currency, &t.Status,
		&t.SmokingAllowed, &t.PetsAllowed, &t.MusicPreference, &t.ConversationLevel)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if price.Valid {
		t.PricePerSeat = &price.Float64
	}
	t.Currency = currency.String
	return &t, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMatch(row rowScanner) (*models.Match, error) {
	var m models.Match
	var matchType, status string
	var pickupLat, pickupLng, dropLat, dropLng sql.NullFloat64
	var pickupAddr, dropAddr sql.NullString
	err := row.Scan(
		&m.ID, &m.TripID, &m.MatchedTripID, &m.CompatibilityScore, &matchType,
		&m.DetourDistanceKm, &m.DetourTimeMin, &m.EstimatedSavings,
		&pickupLat, &pickupLng, &pickupAddr, &dropLat, &dropLng, &dropAddr,
		&status, &m.CreatedAt, &m.ViewedAt, &m.ContactedAt, &m.RespondedAt, &m.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	m.MatchType = models.MatchType(matchType)
	m.Status = models.MatchStatus(status)
	if pickupLat.Valid {
		m.SuggestedPickupPoint = &models.LocationPoint{Lat: pickupLat.Float64, Lng: pickupLng.Float64, Address: pickupAddr.String}
	}
	if dropLat.Valid {
		m.SuggestedDropoffPoint = &models.LocationPoint{Lat: dropLat.Float64, Lng: dropLng.Float64, Address: dropAddr.String}
	}
	return &m, nil
}
