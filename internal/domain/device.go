package domain

import "time"

// Device is a peer observed over the sync channel, or the local install.
type Device struct {
	ID             string    `json:"id"`
	FirstSeen      time.Time `json:"first_seen"`
	LastSeen       time.Time `json:"last_seen"`
	EventsReceived int64     `json:"events_received"`
	IsSelf         bool      `json:"is_self"`
}
