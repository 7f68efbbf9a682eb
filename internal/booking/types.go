package booking

import "time"

// Session is a named workout offering of a business. Its bookable time
// windows live in Slot rows.
type Session struct {
	ID         string    `json:"id"`
	BusinessID string    `json:"businessId"`
	Name       string    `json:"name"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Slot is a single bookable time window of a session. Booked mirrors whether
// a booking row exists for the slot at read time.
type Slot struct {
	ID        string    `json:"id"`
	SessionID string    `json:"sessionId"`
	StartTime time.Time `json:"startTime"`
	EndTime   time.Time `json:"endTime"`
	Booked    bool      `json:"booked"`
}

// Booking ties a user to a slot. A slot carries at most one booking.
type Booking struct {
	ID        string    `json:"id"`
	SlotID    string    `json:"slotId"`
	UserID    string    `json:"userId"`
	CreatedAt time.Time `json:"createdAt"`
}

// Availability is a session together with its slots, as returned by the
// availability listings.
type Availability struct {
	Session Session `json:"session"`
	Slots   []Slot  `json:"slots"`
}
