package httpapi

import (
	"fmt"
	"net/http"
	"strings"

	"fitbook.org/internal/audit"
	"fitbook.org/internal/auth"
)

type createMembershipRequest struct {
	UserID     string `json:"userId"`
	BusinessID string `json:"businessId"`
	Role       string `json:"role"`
}

func (a *API) handleBusinessCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		a.createBusiness(w, r)
	case http.MethodGet:
		a.listBusinesses(w, r)
	default:
		methodNotAllowed(w, r, http.MethodPost, http.MethodGet)
	}
}

func (a *API) createBusiness(w http.ResponseWriter, r *http.Request) {
	user, ok := a.authorize(w, r, "business.create", auth.RequestContext{})
	if !ok {
		return
	}
	var req auth.CreateBusinessInput
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	b, err := a.businesses.Create(r.Context(), user.ID, req)
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "business.create", map[string]any{
		"business_id": b.ID,
		"name":        b.Name,
	})
	w.Header().Set("Location", fmt.Sprintf("/v1/businesses/%s", b.ID))
	writeJSON(w, http.StatusCreated, b)
}

func (a *API) listBusinesses(w http.ResponseWriter, r *http.Request) {
	if _, ok := a.authorize(w, r, "business.read", auth.RequestContext{}); !ok {
		return
	}
	items, err := a.businesses.List(r.Context())
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (a *API) handleBusinessResource(w http.ResponseWriter, r *http.Request) {
	id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/businesses/"), "/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if _, ok := a.authorize(w, r, "business.read", auth.RequestContext{}); !ok {
		return
	}
	b, err := a.businesses.Get(r.Context(), id)
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (a *API) handleMembershipCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		a.createMembership(w, r)
	case http.MethodGet:
		a.listMemberships(w, r)
	default:
		methodNotAllowed(w, r, http.MethodPost, http.MethodGet)
	}
}

func (a *API) createMembership(w http.ResponseWriter, r *http.Request) {
	var req createMembershipRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	rc := auth.RequestContext{
		BusinessID:     r.URL.Query().Get("businessId"),
		BodyBusinessID: req.BusinessID,
	}
	if _, ok := a.authorize(w, r, "membership.create", rc); !ok {
		return
	}
	m, err := a.memberships.Create(r.Context(), req.UserID, req.BusinessID, auth.Role(req.Role))
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "membership.create", map[string]any{
		"membership_id": m.ID,
		"business_id":   m.BusinessID,
		"role":          string(m.Role),
	})
	w.Header().Set("Location", fmt.Sprintf("/v1/memberships/%s", m.ID))
	writeJSON(w, http.StatusCreated, m)
}

// listMemberships requires a business context, so the listing is always
// scoped to the business the guard authorized.
func (a *API) listMemberships(w http.ResponseWriter, r *http.Request) {
	rc := auth.RequestContext{BusinessID: r.URL.Query().Get("businessId")}
	if _, ok := a.authorize(w, r, "membership.read", rc); !ok {
		return
	}
	items, err := a.memberships.ListByBusiness(r.Context(), rc.BusinessID)
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

// handleMembershipResource resolves the membership first so the guard can
// check permissions against its business.
func (a *API) handleMembershipResource(w http.ResponseWriter, r *http.Request) {
	id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/memberships/"), "/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	m, err := a.memberships.Get(r.Context(), id)
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	rc := auth.RequestContext{BusinessID: m.BusinessID}
	switch r.Method {
	case http.MethodGet:
		if _, ok := a.authorize(w, r, "membership.read", rc); !ok {
			return
		}
		writeJSON(w, http.StatusOK, m)
	case http.MethodDelete:
		if _, ok := a.authorize(w, r, "membership.delete", rc); !ok {
			return
		}
		if err := a.memberships.Delete(r.Context(), id); err != nil {
			handleAuthError(w, r, err)
			return
		}
		_ = audit.LogEvent(r.Context(), "membership.delete", map[string]any{
			"membership_id": id,
			"business_id":   m.BusinessID,
		})
		writeJSON(w, http.StatusOK, map[string]any{"status": "deleted"})
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodDelete)
	}
}
