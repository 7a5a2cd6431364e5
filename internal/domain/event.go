package domain

import (
	"time"
)

// Event represents a bookable event with its inventory.
//
// SpotsLeft is the single source of truth for remaining capacity and is
// mutated only through the inventory repository's atomic adjustment; it
// always satisfies 0 <= SpotsLeft <= Capacity.
type Event struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	HostID    string    `json:"host_id"`
	Capacity  int       `json:"capacity"`
	SpotsLeft int       `json:"spots_left"`
	UnitPrice float64   `json:"unit_price"`
	Currency  string    `json:"currency"`
	StartsAt  time.Time `json:"starts_at"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HoursUntilStart returns the number of hours between now and the event start
func (e *Event) HoursUntilStart(now time.Time) float64 {
	return e.StartsAt.Sub(now).Hours()
}
