package domain

import "time"

// CourierLocation is the last-known position and availability of a courier.
// Overwritten on every heartbeat; a location older than the staleness
// threshold is excluded from matching.
type CourierLocation struct {
	CourierID      string
	Position       Point
	Available      bool
	UpdatedAt      time.Time
	AvailableSince time.Time
}

// ValidCoordinates checks the position is a plausible lat/lng pair.
func (l CourierLocation) ValidCoordinates() bool {
	return l.Position.Valid()
}
