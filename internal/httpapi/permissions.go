package httpapi

import (
	"net/http"

	"fitbook.org/internal/auth"
	"fitbook.org/internal/obs"
)

// routePermissions is the static registry of required permissions per
// operation. The guard resolves business context per request; an operation
// absent from the table requires authentication only.
var routePermissions = map[string][]string{
	"business.create":   {"business:create:global"},
	"business.read":     {"business:read:global"},
	"membership.create": {"membership:create:business"},
	"membership.read":   {"membership:read:business"},
	"membership.delete": {"membership:delete:business"},
	"workout.create":    {"workout:create:business"},
	"workout.read":      {"workout:read:own"},
	"booking.create":    {"booking:create:own"},
}

// authorize runs the guard for the named operation. It returns the
// authenticated user on success and writes the error response otherwise.
func (a *API) authorize(w http.ResponseWriter, r *http.Request, operation string, rc auth.RequestContext) (*auth.User, bool) {
	user, _ := auth.UserFromContext(r.Context())
	required := routePermissions[operation]
	if a.guard == nil {
		if user == nil {
			handleAuthError(w, r, auth.ErrUnauthorized)
			return nil, false
		}
		return user, true
	}
	if err := a.guard.Authorize(r.Context(), user, required, rc); err != nil {
		obs.CountAuthDecision("deny")
		handleAuthError(w, r, err)
		return nil, false
	}
	obs.CountAuthDecision("allow")
	return user, true
}
