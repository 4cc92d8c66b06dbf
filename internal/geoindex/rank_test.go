package geoindex

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func TestParseMeta(t *testing.T) {
	t.Parallel()

	m, err := parseMeta(map[string]string{
		"available":       "1",
		"updated_at":      testNow.Format(time.RFC3339Nano),
		"available_since": testNow.Add(-time.Hour).Format(time.RFC3339Nano),
	})
	require.NoError(t, err)
	require.True(t, m.available)
	require.True(t, m.updatedAt.Equal(testNow))
	require.True(t, m.availableSince.Equal(testNow.Add(-time.Hour)))

	_, err = parseMeta(nil)
	require.Error(t, err)

	_, err = parseMeta(map[string]string{"available": "1", "updated_at": "garbage"})
	require.Error(t, err)
}

func TestEligible(t *testing.T) {
	t.Parallel()

	maxAge := time.Minute

	tests := []struct {
		name string
		m    courierMeta
		want bool
	}{
		{
			name: "fresh and available",
			m:    courierMeta{available: true, updatedAt: testNow.Add(-30 * time.Second)},
			want: true,
		},
		{
			name: "unavailable",
			m:    courierMeta{available: false, updatedAt: testNow},
			want: false,
		},
		{
			name: "stale heartbeat",
			m:    courierMeta{available: true, updatedAt: testNow.Add(-2 * time.Minute)},
			want: false,
		},
		{
			name: "exactly at the threshold",
			m:    courierMeta{available: true, updatedAt: testNow.Add(-time.Minute)},
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, eligible(tt.m, testNow, maxAge))
		})
	}
}

func TestRank_DistanceThenAvailableSince(t *testing.T) {
	t.Parallel()

	cands := []Candidate{
		{CourierID: "far", DistanceKm: 5.0},
		{CourierID: "near-late", DistanceKm: 1.0, AvailableSince: testNow},
		{CourierID: "near-early", DistanceKm: 1.0, AvailableSince: testNow.Add(-time.Hour)},
	}

	rank(cands)

	require.Equal(t, "near-early", cands[0].CourierID)
	require.Equal(t, "near-late", cands[1].CourierID)
	require.Equal(t, "far", cands[2].CourierID)
}

func TestPickPool(t *testing.T) {
	t.Parallel()

	cands := []Candidate{
		{CourierID: "a", DistanceKm: 1},
		{CourierID: "b", DistanceKm: 2},
		{CourierID: "c", DistanceKm: 3},
	}

	t.Run("no preferred pool keeps everyone", func(t *testing.T) {
		require.Len(t, pickPool(cands, nil), 3)
	})

	t.Run("preferred pool restricts", func(t *testing.T) {
		got := pickPool(cands, []string{"b"})
		require.Len(t, got, 1)
		require.Equal(t, "b", got[0].CourierID)
	})

	t.Run("empty preferred intersection falls back to open pool", func(t *testing.T) {
		require.Len(t, pickPool(cands, []string{"zzz"}), 3)
	})
}
