package httpapi

import (
	"net/http"
	"strings"
	"time"

	"fitbook.org/internal/audit"
	"fitbook.org/internal/auth"
	"fitbook.org/internal/booking"
	"fitbook.org/internal/events"
)

type setAvailabilityRequest struct {
	BusinessID  string              `json:"businessId"`
	SessionName string              `json:"sessionName"`
	Slots       []booking.SlotInput `json:"availabilities"`
}

type createSlotsRequest struct {
	Slots []booking.SlotInput `json:"slots"`
}

type bookSlotsRequest struct {
	BusinessID string   `json:"businessId"`
	SlotIDs    []string `json:"slotIds"`
}

func (a *API) handleSetAvailability(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req setAvailabilityRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	rc := auth.RequestContext{
		BusinessID:     r.URL.Query().Get("businessId"),
		BodyBusinessID: req.BusinessID,
	}
	if _, ok := a.authorize(w, r, "workout.create", rc); !ok {
		return
	}
	businessID := req.BusinessID
	if businessID == "" {
		businessID = rc.BusinessID
	}
	av, err := a.workouts.SetAvailability(r.Context(), businessID, booking.SetAvailabilityInput{
		SessionName: req.SessionName,
		Slots:       req.Slots,
	})
	if err != nil {
		handleBookingError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "workout.availability.set", map[string]any{
		"session_id":  av.Session.ID,
		"business_id": av.Session.BusinessID,
		"slots":       len(av.Slots),
	})
	writeJSON(w, http.StatusCreated, av)
}

func (a *API) handleListAvailabilities(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	businessID := r.URL.Query().Get("businessId")
	rc := auth.RequestContext{BusinessID: businessID}
	if _, ok := a.authorize(w, r, "workout.read", rc); !ok {
		return
	}
	from, err := parseTimeParam(r, "from")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	to, err := parseTimeParam(r, "to")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	items, err := a.workouts.ListAvailabilities(r.Context(), businessID, from, to)
	if err != nil {
		handleBookingError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

// handleSessionResource serves /v1/workouts/sessions/{id}/slots. The session
// row supplies the business context for the guard.
func (a *API) handleSessionResource(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/workouts/sessions/"), "/")
	parts := strings.Split(path, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] != "slots" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	sessionID := parts[0]
	sess, err := a.workouts.Session(r.Context(), sessionID)
	if err != nil {
		handleBookingError(w, r, err)
		return
	}
	rc := auth.RequestContext{BusinessID: sess.BusinessID}

	switch r.Method {
	case http.MethodPost:
		if _, ok := a.authorize(w, r, "workout.create", rc); !ok {
			return
		}
		var req createSlotsRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		slots, err := a.workouts.CreateSlots(r.Context(), sessionID, req.Slots)
		if err != nil {
			handleBookingError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"items": slots})
	case http.MethodGet:
		if _, ok := a.authorize(w, r, "workout.read", rc); !ok {
			return
		}
		date, err := parseTimeParam(r, "date")
		if err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		slots, err := a.workouts.ListOpenSlots(r.Context(), sessionID, date)
		if err != nil {
			handleBookingError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": slots})
	default:
		methodNotAllowed(w, r, http.MethodPost, http.MethodGet)
	}
}

func (a *API) handleBookingCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		a.bookSlots(w, r)
	case http.MethodGet:
		a.listOwnBookings(w, r)
	default:
		methodNotAllowed(w, r, http.MethodPost, http.MethodGet)
	}
}

// bookSlots authorizes against the business actually owning the requested
// slots, never against a caller-chosen one. A body businessId that disagrees
// with the slots' business is denied by the guard.
func (a *API) bookSlots(w http.ResponseWriter, r *http.Request) {
	var req bookSlotsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	businessID, err := a.workouts.BusinessForSlots(r.Context(), req.SlotIDs)
	if err != nil {
		handleBookingError(w, r, err)
		return
	}
	rc := auth.RequestContext{BusinessID: businessID, BodyBusinessID: req.BusinessID}
	user, ok := a.authorize(w, r, "booking.create", rc)
	if !ok {
		return
	}
	bookings, err := a.workouts.BookSlots(r.Context(), user.ID, req.SlotIDs)
	if err != nil {
		handleBookingError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "booking.create", map[string]any{
		"user_id": user.ID,
		"slots":   len(bookings),
	})
	if a.stream != nil {
		for _, b := range bookings {
			a.stream.Publish(events.BookingEvent{
				Type:       events.TypeBooked,
				BusinessID: businessID,
				SlotID:     b.SlotID,
				BookingID:  b.ID,
				UserID:     b.UserID,
				Timestamp:  b.CreatedAt,
			})
		}
	}
	writeJSON(w, http.StatusCreated, map[string]any{"items": bookings})
}

// listOwnBookings is identity-bound rather than business-bound, so it needs
// authentication only.
func (a *API) listOwnBookings(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		handleAuthError(w, r, auth.ErrUnauthorized)
		return
	}
	items, err := a.workouts.ListBookings(r.Context(), user.ID)
	if err != nil {
		handleBookingError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (a *API) handleBookingResource(w http.ResponseWriter, r *http.Request) {
	id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/bookings/"), "/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	if r.Method != http.MethodDelete {
		methodNotAllowed(w, r, http.MethodDelete)
		return
	}
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		handleAuthError(w, r, auth.ErrUnauthorized)
		return
	}
	cancelled, err := a.workouts.CancelBooking(r.Context(), user.ID, id)
	if err != nil {
		handleBookingError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "booking.cancel", map[string]any{
		"user_id":    user.ID,
		"booking_id": id,
	})
	if a.stream != nil {
		a.stream.Publish(events.BookingEvent{
			Type:      events.TypeCancelled,
			SlotID:    cancelled.SlotID,
			BookingID: cancelled.ID,
			UserID:    cancelled.UserID,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "cancelled"})
}

func parseTimeParam(r *http.Request, name string) (*time.Time, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t, nil
		}
	}
	return nil, &paramError{name: name}
}

type paramError struct {
	name string
}

func (e *paramError) Error() string {
	return e.name + " must be RFC 3339 or YYYY-MM-DD"
}
