package events

import (
	"context"
	"testing"
	"time"
)

func TestPublishReachesSubscribers(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := s.Subscribe(ctx)
	s.Publish(BookingEvent{Type: TypeBooked, SlotID: "slot-1", UserID: "u-1"})

	select {
	case evt := <-ch:
		if evt.SlotID != "slot-1" || evt.Type != TypeBooked {
			t.Fatalf("unexpected event: %+v", evt)
		}
		if evt.Timestamp.IsZero() {
			t.Fatal("expected timestamp to be set")
		}
	case <-time.After(time.Second):
		t.Fatal("no event received")
	}
}

func TestSubscriberRemovedOnContextCancel(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	ch := s.Subscribe(ctx)
	cancel()

	deadline := time.After(time.Second)
	for {
		select {
		case _, open := <-ch:
			if !open {
				return
			}
		case <-deadline:
			t.Fatal("channel not closed after cancel")
		}
	}
}
