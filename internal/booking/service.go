package booking

import (
	"context"
	"fmt"
	"time"

	"fitbook.org/internal/ids"
)

// SlotInput is one requested time window.
type SlotInput struct {
	StartTime time.Time `json:"startTime"`
	EndTime   time.Time `json:"endTime"`
}

// SetAvailabilityInput names a session and its initial slots.
type SetAvailabilityInput struct {
	SessionName string      `json:"sessionName"`
	Slots       []SlotInput `json:"availabilities"`
}

// Service implements workout scheduling and booking on top of a Store.
type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

// SetAvailability creates a session for the business together with its
// bookable slots.
func (s *Service) SetAvailability(ctx context.Context, businessID string, in SetAvailabilityInput) (*Availability, error) {
	if businessID == "" {
		return nil, fmt.Errorf("%w: business id required", ErrInvalidInput)
	}
	if in.SessionName == "" {
		return nil, fmt.Errorf("%w: session name required", ErrInvalidInput)
	}
	if len(in.Slots) == 0 {
		return nil, fmt.Errorf("%w: at least one slot required", ErrInvalidInput)
	}

	session := &Session{
		ID:         ids.New(),
		BusinessID: businessID,
		Name:       in.SessionName,
	}
	slots, err := buildSlots(session.ID, in.Slots)
	if err != nil {
		return nil, err
	}
	if err := s.store.CreateSessionWithSlots(ctx, session, slots); err != nil {
		return nil, err
	}

	out := &Availability{Session: *session}
	for _, sl := range slots {
		out.Slots = append(out.Slots, *sl)
	}
	return out, nil
}

// Session returns one workout session by id.
func (s *Service) Session(ctx context.Context, id string) (*Session, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: session id required", ErrInvalidInput)
	}
	return s.store.FindSession(ctx, id)
}

// CreateSlots appends slots to an existing session.
func (s *Service) CreateSlots(ctx context.Context, sessionID string, inputs []SlotInput) ([]*Slot, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("%w: session id required", ErrInvalidInput)
	}
	if len(inputs) == 0 {
		return nil, fmt.Errorf("%w: at least one slot required", ErrInvalidInput)
	}
	if _, err := s.store.FindSession(ctx, sessionID); err != nil {
		return nil, err
	}
	slots, err := buildSlots(sessionID, inputs)
	if err != nil {
		return nil, err
	}
	if err := s.store.CreateSlots(ctx, slots); err != nil {
		return nil, err
	}
	return slots, nil
}

// ListAvailabilities returns the business's sessions and slots, optionally
// windowed.
func (s *Service) ListAvailabilities(ctx context.Context, businessID string, from, to *time.Time) ([]*Availability, error) {
	if businessID == "" {
		return nil, fmt.Errorf("%w: business id required", ErrInvalidInput)
	}
	if from != nil && to != nil && to.Before(*from) {
		return nil, fmt.Errorf("%w: window end before start", ErrInvalidInput)
	}
	return s.store.ListAvailabilities(ctx, businessID, from, to)
}

// ListOpenSlots returns the session's unbooked slots, optionally restricted
// to one calendar day.
func (s *Service) ListOpenSlots(ctx context.Context, sessionID string, date *time.Time) ([]*Slot, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("%w: session id required", ErrInvalidInput)
	}
	if _, err := s.store.FindSession(ctx, sessionID); err != nil {
		return nil, err
	}
	return s.store.ListSlots(ctx, SlotFilter{SessionID: sessionID, Date: date, OpenOnly: true})
}

// BusinessForSlots resolves the single business owning every requested slot.
// A slot that does not exist reads as absent; a batch spanning more than one
// business is rejected.
func (s *Service) BusinessForSlots(ctx context.Context, slotIDs []string) (string, error) {
	if len(slotIDs) == 0 {
		return "", fmt.Errorf("%w: at least one slot id required", ErrInvalidInput)
	}
	owners, err := s.store.SlotBusinesses(ctx, slotIDs)
	if err != nil {
		return "", err
	}
	var businessID string
	for _, slotID := range slotIDs {
		if slotID == "" {
			return "", fmt.Errorf("%w: empty slot id", ErrInvalidInput)
		}
		owner, ok := owners[slotID]
		if !ok {
			return "", fmt.Errorf("%w: slot %s", ErrNotFound, slotID)
		}
		if businessID == "" {
			businessID = owner
			continue
		}
		if owner != businessID {
			return "", fmt.Errorf("%w: slots belong to different businesses", ErrInvalidInput)
		}
	}
	return businessID, nil
}

// BookSlots books every requested slot for the user, or none of them.
func (s *Service) BookSlots(ctx context.Context, userID string, slotIDs []string) ([]*Booking, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user id required", ErrInvalidInput)
	}
	if len(slotIDs) == 0 {
		return nil, fmt.Errorf("%w: at least one slot id required", ErrInvalidInput)
	}
	seen := make(map[string]struct{}, len(slotIDs))
	bookings := make([]*Booking, 0, len(slotIDs))
	for _, slotID := range slotIDs {
		if slotID == "" {
			return nil, fmt.Errorf("%w: empty slot id", ErrInvalidInput)
		}
		if _, dup := seen[slotID]; dup {
			return nil, fmt.Errorf("%w: duplicate slot id %s", ErrInvalidInput, slotID)
		}
		seen[slotID] = struct{}{}
		bookings = append(bookings, &Booking{ID: ids.New(), SlotID: slotID, UserID: userID})
	}
	if err := s.store.CreateBookings(ctx, bookings); err != nil {
		return nil, err
	}
	return bookings, nil
}

// ListBookings returns the user's bookings.
func (s *Service) ListBookings(ctx context.Context, userID string) ([]*Booking, error) {
	return s.store.ListBookingsByUser(ctx, userID)
}

// CancelBooking deletes the user's booking and returns it. Bookings of other
// users read as absent rather than forbidden.
func (s *Service) CancelBooking(ctx context.Context, userID, bookingID string) (*Booking, error) {
	b, err := s.store.FindBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if b.UserID != userID {
		return nil, ErrNotFound
	}
	if err := s.store.DeleteBooking(ctx, bookingID); err != nil {
		return nil, err
	}
	return b, nil
}

func buildSlots(sessionID string, inputs []SlotInput) ([]*Slot, error) {
	slots := make([]*Slot, 0, len(inputs))
	for _, in := range inputs {
		if in.StartTime.IsZero() || in.EndTime.IsZero() {
			return nil, fmt.Errorf("%w: slot times required", ErrInvalidInput)
		}
		if !in.EndTime.After(in.StartTime) {
			return nil, fmt.Errorf("%w: slot end must be after start", ErrInvalidInput)
		}
		slots = append(slots, &Slot{
			ID:        ids.New(),
			SessionID: sessionID,
			StartTime: in.StartTime.UTC(),
			EndTime:   in.EndTime.UTC(),
		})
	}
	return slots, nil
}
