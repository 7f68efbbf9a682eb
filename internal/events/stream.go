package events

import (
	"context"
	"sync"
	"time"
)

// Booking event types.
const (
	TypeBooked    = "booked"
	TypeCancelled = "cancelled"
)

// BookingEvent describes a slot being booked or released, for live
// schedule views.
type BookingEvent struct {
	Type       string    `json:"type"`
	BusinessID string    `json:"businessId,omitempty"`
	SlotID     string    `json:"slotId"`
	BookingID  string    `json:"bookingId"`
	UserID     string    `json:"userId"`
	Timestamp  time.Time `json:"timestamp"`
}

// Stream fan-outs booking events to all active subscribers (SSE clients).
type Stream struct {
	mu   sync.RWMutex
	subs map[int]chan BookingEvent
	next int
}

// New initialises an empty stream.
func New() *Stream {
	return &Stream{subs: make(map[int]chan BookingEvent)}
}

// Subscribe registers a subscriber and returns a channel which will receive
// events. The channel is closed when the provided context ends.
func (s *Stream) Subscribe(ctx context.Context) <-chan BookingEvent {
	ch := make(chan BookingEvent, 16)

	s.mu.Lock()
	id := s.next
	s.next++
	s.subs[id] = ch
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		delete(s.subs, id)
		close(ch)
		s.mu.Unlock()
	}()

	return ch
}

// Publish fan-outs the event to all subscribers. Timestamp is filled in when
// the caller left it zero.
func (s *Stream) Publish(evt BookingEvent) {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ch := range s.subs {
		select {
		case ch <- evt:
		default:
			// Drop when subscriber is slow to avoid blocking.
		}
	}
}
