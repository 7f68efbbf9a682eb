package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"fitbook.org/internal/ids"
)

// BusinessService manages businesses and their ownership.
type BusinessService struct {
	store BusinessStore
}

// NewBusinessService constructs a BusinessService.
func NewBusinessService(store BusinessStore) (*BusinessService, error) {
	if store == nil {
		return nil, errors.New("business store is required")
	}
	return &BusinessService{store: store}, nil
}

// CreateBusinessInput carries the descriptive attributes of a new business.
type CreateBusinessInput struct {
	Name        string   `json:"name"`
	HouseNumber string   `json:"houseNumber"`
	Street      string   `json:"street"`
	City        string   `json:"city"`
	State       string   `json:"state"`
	ZipCode     string   `json:"zipCode"`
	PhoneNumber string   `json:"phoneNumber"`
	MapURL      string   `json:"mapUrl"`
	Latitude    *float64 `json:"latitude"`
	Longitude   *float64 `json:"longitude"`
}

// Create inserts a business owned by ownerID. The OWNER membership is created
// in the same transaction, so a business can never exist without its owning
// membership.
func (s *BusinessService) Create(ctx context.Context, ownerID string, in CreateBusinessInput) (*Business, error) {
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return nil, fmt.Errorf("%w: owner id is required", ErrInvalidInput)
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: business name is required", ErrInvalidInput)
	}

	b := &Business{
		ID:          ids.New(),
		OwnerID:     ownerID,
		Name:        name,
		HouseNumber: strings.TrimSpace(in.HouseNumber),
		Street:      strings.TrimSpace(in.Street),
		City:        strings.TrimSpace(in.City),
		State:       strings.TrimSpace(in.State),
		ZipCode:     strings.TrimSpace(in.ZipCode),
		PhoneNumber: strings.TrimSpace(in.PhoneNumber),
		MapURL:      strings.TrimSpace(in.MapURL),
		Latitude:    in.Latitude,
		Longitude:   in.Longitude,
	}
	owner := &Membership{
		ID:         ids.New(),
		UserID:     ownerID,
		BusinessID: b.ID,
		Role:       RoleOwner,
	}
	if err := s.store.CreateWithOwner(ctx, b, owner); err != nil {
		return nil, err
	}
	return b, nil
}

// List returns all businesses.
func (s *BusinessService) List(ctx context.Context) ([]*Business, error) {
	return s.store.List(ctx)
}

// Get returns a business by id.
func (s *BusinessService) Get(ctx context.Context, id string) (*Business, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("%w: business id is required", ErrInvalidInput)
	}
	return s.store.Find(ctx, id)
}

// MembershipService manages explicit membership grants.
type MembershipService struct {
	store MembershipStore
}

// NewMembershipService constructs a MembershipService.
func NewMembershipService(store MembershipStore) (*MembershipService, error) {
	if store == nil {
		return nil, errors.New("membership store is required")
	}
	return &MembershipService{store: store}, nil
}

// Create grants a role to a user within a business. A second membership for
// the same (user, business) pair yields ErrConflict; roles are never
// escalated implicitly.
func (s *MembershipService) Create(ctx context.Context, userID, businessID string, role Role) (*Membership, error) {
	userID = strings.TrimSpace(userID)
	businessID = strings.TrimSpace(businessID)
	if userID == "" || businessID == "" {
		return nil, fmt.Errorf("%w: user id and business id are required", ErrInvalidInput)
	}
	role, err := ParseRole(string(role))
	if err != nil {
		return nil, err
	}

	m := &Membership{
		ID:         ids.New(),
		UserID:     userID,
		BusinessID: businessID,
		Role:       role,
	}
	if err := s.store.Create(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

// List returns all memberships.
func (s *MembershipService) List(ctx context.Context) ([]*Membership, error) {
	return s.store.List(ctx)
}

// ListByBusiness returns the memberships of one business.
func (s *MembershipService) ListByBusiness(ctx context.Context, businessID string) ([]*Membership, error) {
	businessID = strings.TrimSpace(businessID)
	if businessID == "" {
		return nil, fmt.Errorf("%w: business id is required", ErrInvalidInput)
	}
	return s.store.ListByBusiness(ctx, businessID)
}

// Get returns a membership by id.
func (s *MembershipService) Get(ctx context.Context, id string) (*Membership, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("%w: membership id is required", ErrInvalidInput)
	}
	return s.store.Find(ctx, id)
}

// Delete removes a membership by id, revoking the user's role in that
// business on the next request.
func (s *MembershipService) Delete(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("%w: membership id is required", ErrInvalidInput)
	}
	if _, err := s.store.Find(ctx, id); err != nil {
		return err
	}
	return s.store.Delete(ctx, id)
}
