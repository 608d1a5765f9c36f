package geo

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/example/trip-matching/internal/models"
)

// RedisIndex implements TripIndex using Redis GEO commands, with a hash per
// trip carrying the metadata the orchestrator filters on before a full load.
type RedisIndex struct {
	client *redis.Client
	key    string
}

func NewRedisIndex(addr, password, key string) *RedisIndex {
	c := redis.NewClient(&redis.Options{Addr: addr, Password: password})
	return &RedisIndex{client: c, key: key}
}

// NewRedisIndexWithClient wraps an existing client, mainly for tests.
func NewRedisIndexWithClient(c *redis.Client, key string) *RedisIndex {
	return &RedisIndex{client: c, key: key}
}

func (r *RedisIndex) Upsert(ctx context.Context, t models.TripRequest) error {
	if t.Status != models.TripActive {
		return r.Remove(ctx, t.ID)
	}
	pipe := r.client.Pipeline()
	pipe.GeoAdd(ctx, r.key, &redis.GeoLocation{
		Longitude: t.Origin.Lng,
		Latitude:  t.Origin.Lat,
		Name:      t.ID,
	})
	pipe.HSet(ctx, metaKey(t.ID), map[string]interface{}{
		"user_id": t.UserID,
		"seats":   t.AvailableSeats,
		"departs": t.DepartureTime.UTC().Format(time.RFC3339),
	})
	pipe.Expire(ctx, metaKey(t.ID), 31*24*time.Hour)
	_, err := pipe.Exec(ctx)
	return err
}

func (r *RedisIndex) Remove(ctx context.Context, tripID string) error {
	pipe := r.client.Pipeline()
	pipe.ZRem(ctx, r.key, tripID)
	pipe.Del(ctx, metaKey(tripID))
	_, err := pipe.Exec(ctx)
	return err
}

func (r *RedisIndex) Nearby(ctx context.Context, lat, lng, radiusKm float64, limit int) ([]string, error) {
	q := &redis.GeoSearchQuery{
		Longitude:  lng,
		Latitude:   lat,
		Radius:     radiusKm,
		RadiusUnit: "km",
		Sort:       "ASC",
	}
	if limit > 0 {
		q.Count = limit
	}
	res, err := r.client.GeoSearch(ctx, r.key, q).Result()
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (r *RedisIndex) Close() error { return r.client.Close() }

func metaKey(id string) string { return "trip:meta:" + id }
