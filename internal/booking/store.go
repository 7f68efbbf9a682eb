package booking

import (
	"context"
	"time"
)

// SlotFilter narrows slot listings. A nil Date keeps every slot of the
// session; OpenOnly drops slots that already carry a booking.
type SlotFilter struct {
	SessionID string
	Date      *time.Time
	OpenOnly  bool
}

// Store persists sessions, slots and bookings.
type Store interface {
	// CreateSessionWithSlots inserts the session and its initial slots in one
	// transaction.
	CreateSessionWithSlots(ctx context.Context, s *Session, slots []*Slot) error
	FindSession(ctx context.Context, id string) (*Session, error)
	// ListAvailabilities returns sessions of the business with their slots.
	// from/to, when set, keep only sessions that have at least one slot
	// overlapping the window; slots outside the window are dropped.
	ListAvailabilities(ctx context.Context, businessID string, from, to *time.Time) ([]*Availability, error)
	// CreateSlots appends slots to an existing session. A missing session
	// yields ErrNotFound.
	CreateSlots(ctx context.Context, slots []*Slot) error
	ListSlots(ctx context.Context, f SlotFilter) ([]*Slot, error)
	// SlotBusinesses maps each slot id to the business owning its session.
	// Unknown slot ids are absent from the result.
	SlotBusinesses(ctx context.Context, slotIDs []string) (map[string]string, error)
	// CreateBookings inserts all bookings in one transaction. Any slot that
	// already carries a booking fails the whole batch with ErrSlotTaken; a
	// missing slot fails it with ErrNotFound.
	CreateBookings(ctx context.Context, bookings []*Booking) error
	FindBooking(ctx context.Context, id string) (*Booking, error)
	ListBookingsByUser(ctx context.Context, userID string) ([]*Booking, error)
	DeleteBooking(ctx context.Context, id string) error
}
