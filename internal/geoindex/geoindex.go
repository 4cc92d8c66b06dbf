// Package geoindex maintains last-known courier positions and availability in
// Redis and answers nearest-available-courier queries.
package geoindex

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"service-dispatch/internal/domain"
)

const (
	positionsKey  = "dispatch:couriers:geo"
	metaKeyPrefix = "dispatch:courier:%s"
)

// Query narrows a nearest-courier search.
type Query struct {
	RadiusKm  float64
	MaxAge    time.Duration // staleness threshold for the last heartbeat
	Limit     int
	Exclude   []string
	Preferred []string // store-preferred courier pool, empty means open pool
}

// Candidate is one eligible courier returned by Nearest, ranked by distance.
type Candidate struct {
	CourierID      string
	DistanceKm     float64
	AvailableSince time.Time
}

// Index is the Redis-backed courier geo index. Each courier's entry is
// independent; heartbeat writes are last-writer-wins per courier id.
type Index struct {
	rdb *redis.Client
	now func() time.Time
}

// New creates an Index on the given Redis client.
func New(rdb *redis.Client) *Index {
	return &Index{
		rdb: rdb,
		now: func() time.Time { return time.Now().UTC() },
	}
}

// Update applies a courier heartbeat: position, availability and timestamps.
func (i *Index) Update(ctx context.Context, loc domain.CourierLocation) error {
	if loc.CourierID == "" || !loc.ValidCoordinates() {
		return errors.New("geoindex: invalid courier location")
	}
	if loc.UpdatedAt.IsZero() {
		loc.UpdatedAt = i.now()
	}

	key := metaKey(loc.CourierID)

	availableSince := loc.AvailableSince
	if loc.Available && availableSince.IsZero() {
		// keep the original available_since across consecutive available
		// heartbeats so the tie-break stays stable
		prev, err := i.rdb.HGetAll(ctx, key).Result()
		if err != nil {
			return fmt.Errorf("geoindex: read meta for %s: %w", loc.CourierID, err)
		}
		if m, perr := parseMeta(prev); perr == nil && m.available {
			availableSince = m.availableSince
		} else {
			availableSince = loc.UpdatedAt
		}
	}

	pipe := i.rdb.Pipeline()
	pipe.GeoAdd(ctx, positionsKey, &redis.GeoLocation{
		Name:      loc.CourierID,
		Longitude: loc.Position.Lng,
		Latitude:  loc.Position.Lat,
	})
	fields := map[string]any{
		"available":  boolField(loc.Available),
		"updated_at": loc.UpdatedAt.Format(time.RFC3339Nano),
	}
	if loc.Available {
		fields["available_since"] = availableSince.Format(time.RFC3339Nano)
	}
	pipe.HSet(ctx, key, fields)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("geoindex: update %s: %w", loc.CourierID, err)
	}
	return nil
}

// Remove drops a courier from the index entirely.
func (i *Index) Remove(ctx context.Context, courierID string) error {
	pipe := i.rdb.Pipeline()
	pipe.ZRem(ctx, positionsKey, courierID)
	pipe.Del(ctx, metaKey(courierID))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("geoindex: remove %s: %w", courierID, err)
	}
	return nil
}

// Nearest returns available couriers around origin ranked by great-circle
// distance, ties broken by the earliest available-since timestamp. Couriers
// with stale locations or listed in q.Exclude are filtered out. When the
// preferred pool yields no candidate the open pool is used as a fallback.
func (i *Index) Nearest(ctx context.Context, origin domain.Point, q Query) ([]Candidate, error) {
	if q.RadiusKm <= 0 {
		return nil, errors.New("geoindex: non-positive search radius")
	}

	locs, err := i.rdb.GeoSearchLocation(ctx, positionsKey, &redis.GeoSearchLocationQuery{
		GeoSearchQuery: redis.GeoSearchQuery{
			Longitude:  origin.Lng,
			Latitude:   origin.Lat,
			Radius:     q.RadiusKm,
			RadiusUnit: "km",
			Sort:       "ASC",
		},
		WithDist: true,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("geoindex: geo search: %w", err)
	}
	if len(locs) == 0 {
		return nil, nil
	}

	pipe := i.rdb.Pipeline()
	metaCmds := make([]*redis.MapStringStringCmd, len(locs))
	for n, loc := range locs {
		metaCmds[n] = pipe.HGetAll(ctx, metaKey(loc.Name))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("geoindex: read courier meta: %w", err)
	}

	now := i.now()
	excluded := toSet(q.Exclude)

	candidates := make([]Candidate, 0, len(locs))
	for n, loc := range locs {
		if excluded[loc.Name] {
			continue
		}
		m, perr := parseMeta(metaCmds[n].Val())
		if perr != nil {
			continue
		}
		if !eligible(m, now, q.MaxAge) {
			continue
		}
		candidates = append(candidates, Candidate{
			CourierID:      loc.Name,
			DistanceKm:     loc.Dist,
			AvailableSince: m.availableSince,
		})
	}

	candidates = pickPool(candidates, q.Preferred)
	rank(candidates)

	if q.Limit > 0 && len(candidates) > q.Limit {
		candidates = candidates[:q.Limit]
	}
	return candidates, nil
}

func metaKey(courierID string) string {
	return fmt.Sprintf(metaKeyPrefix, courierID)
}

func boolField(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func toSet(ids []string) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}
