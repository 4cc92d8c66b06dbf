package geoindex

import (
	"errors"
	"sort"
	"time"
)

type courierMeta struct {
	available      bool
	updatedAt      time.Time
	availableSince time.Time
}

func parseMeta(fields map[string]string) (courierMeta, error) {
	if len(fields) == 0 {
		return courierMeta{}, errors.New("no meta")
	}

	var m courierMeta
	m.available = fields["available"] == "1"

	updated, err := time.Parse(time.RFC3339Nano, fields["updated_at"])
	if err != nil {
		return courierMeta{}, err
	}
	m.updatedAt = updated

	if raw := fields["available_since"]; raw != "" {
		since, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return courierMeta{}, err
		}
		m.availableSince = since
	}
	return m, nil
}

// eligible filters out unavailable couriers and stale heartbeats.
func eligible(m courierMeta, now time.Time, maxAge time.Duration) bool {
	if !m.available {
		return false
	}
	if maxAge > 0 && now.Sub(m.updatedAt) > maxAge {
		return false
	}
	return true
}

// pickPool restricts candidates to the store-preferred pool when it yields at
// least one candidate; otherwise the open pool is kept as a fallback.
func pickPool(candidates []Candidate, preferred []string) []Candidate {
	if len(preferred) == 0 {
		return candidates
	}
	pool := toSet(preferred)
	var preferredCands []Candidate
	for _, c := range candidates {
		if pool[c.CourierID] {
			preferredCands = append(preferredCands, c)
		}
	}
	if len(preferredCands) == 0 {
		return candidates
	}
	return preferredCands
}

// rank orders candidates by distance, ties broken by who has been available
// longest (earlier available_since wins).
func rank(candidates []Candidate) {
	sort.SliceStable(candidates, func(a, b int) bool {
		if candidates[a].DistanceKm != candidates[b].DistanceKm {
			return candidates[a].DistanceKm < candidates[b].DistanceKm
		}
		return candidates[a].AvailableSince.Before(candidates[b].AvailableSince)
	})
}
