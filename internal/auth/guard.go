package auth

import (
	"context"
	"errors"
)

// Denial reasons surfaced by the guard. The caller already authenticated, so
// these are safe to return verbatim.
const (
	ReasonNotAuthenticated        = "not authenticated"
	ReasonBusinessContextNotFound = "business context not found"
	ReasonBusinessContextMismatch = "business context mismatch"
	ReasonNoMembership            = "no membership"
	ReasonInsufficientPermissions = "insufficient permissions"
)

// RequestContext carries the request parameters the guard may consult when
// resolving business context.
type RequestContext struct {
	// BusinessID is an explicit businessId path or query parameter.
	BusinessID string
	// ResourceID is the generic id path parameter of business-shaped routes.
	ResourceID string
	// BodyBusinessID is a businessId field found in the request body.
	BodyBusinessID string
}

// Guard is the request-time authorization decision function. It owns no
// state beyond the immutable catalog and a membership lookup; every decision
// re-reads current membership so revocations apply immediately.
type Guard struct {
	catalog     *Catalog
	memberships MembershipStore
}

// NewGuard constructs a Guard.
func NewGuard(catalog *Catalog, memberships MembershipStore) (*Guard, error) {
	if catalog == nil {
		return nil, errors.New("permission catalog is required")
	}
	if memberships == nil {
		return nil, errors.New("membership store is required")
	}
	return &Guard{catalog: catalog, memberships: memberships}, nil
}

// RoleOf resolves the user's effective role within a business. ErrNotFound
// covers both a missing membership and a nonexistent business.
func (g *Guard) RoleOf(ctx context.Context, userID, businessID string) (Role, error) {
	m, err := g.memberships.FindByUserAndBusiness(ctx, userID, businessID)
	if err != nil {
		return "", err
	}
	return m.Role, nil
}

// Authorize decides whether user may perform an operation requiring the given
// permissions. All required permissions must pass (conjunction). Returns nil
// to allow, ErrUnauthorized when no identity is present, or a ForbiddenError
// carrying the denial reason.
func (g *Guard) Authorize(ctx context.Context, user *User, required []string, rc RequestContext) error {
	if len(required) == 0 {
		return nil
	}
	if user == nil {
		return ErrUnauthorized
	}
	if g.allGlobal(required) {
		return nil
	}

	businessID, err := resolveBusinessID(rc)
	if err != nil {
		return err
	}
	if businessID == "" {
		return Forbidden(ReasonBusinessContextNotFound)
	}

	role, err := g.RoleOf(ctx, user.ID, businessID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Forbidden(ReasonNoMembership)
		}
		return err
	}

	for _, perm := range required {
		if !g.catalog.HasPermission(role, perm) {
			return Forbidden(ReasonInsufficientPermissions)
		}
	}
	return nil
}

func (g *Guard) allGlobal(required []string) bool {
	for _, perm := range required {
		if !g.catalog.IsGlobalPermission(perm) {
			return false
		}
	}
	return true
}

// resolveBusinessID extracts the business identifier from the request
// context. Explicit parameters win: businessId first, then the generic id
// parameter; the body field is consulted only as a last resort. When an
// explicit parameter and the body are both present and disagree, the request
// is denied rather than silently preferring one.
func resolveBusinessID(rc RequestContext) (string, error) {
	for _, candidate := range []string{rc.BusinessID, rc.ResourceID} {
		if candidate == "" {
			continue
		}
		if rc.BodyBusinessID != "" && rc.BodyBusinessID != candidate {
			return "", Forbidden(ReasonBusinessContextMismatch)
		}
		return candidate, nil
	}
	return rc.BodyBusinessID, nil
}
