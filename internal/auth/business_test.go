package auth

import (
	"context"
	"errors"
	"testing"
)

type stubBusinessStore struct {
	createFn func(ctx context.Context, b *Business, owner *Membership) error
	findFn   func(ctx context.Context, id string) (*Business, error)
}

func (s *stubBusinessStore) CreateWithOwner(ctx context.Context, b *Business, owner *Membership) error {
	if s.createFn != nil {
		return s.createFn(ctx, b, owner)
	}
	return nil
}

func (s *stubBusinessStore) Find(ctx context.Context, id string) (*Business, error) {
	if s.findFn != nil {
		return s.findFn(ctx, id)
	}
	return nil, ErrNotFound
}

func (s *stubBusinessStore) List(ctx context.Context) ([]*Business, error) {
	return nil, nil
}

func TestCreateBusinessRecordsOwnerMembership(t *testing.T) {
	var captured *Membership
	store := &stubBusinessStore{
		createFn: func(_ context.Context, b *Business, owner *Membership) error {
			captured = owner
			if owner.BusinessID != b.ID {
				t.Fatalf("owner membership bound to wrong business: %s vs %s", owner.BusinessID, b.ID)
			}
			return nil
		},
	}
	svc, err := NewBusinessService(store)
	if err != nil {
		t.Fatalf("NewBusinessService: %v", err)
	}

	b, err := svc.Create(context.Background(), "u1", CreateBusinessInput{Name: "Iron Temple", City: "Austin"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if b.OwnerID != "u1" {
		t.Fatalf("unexpected owner: %s", b.OwnerID)
	}
	if captured == nil || captured.UserID != "u1" || captured.Role != RoleOwner {
		t.Fatalf("expected OWNER membership for creator, got %+v", captured)
	}
}

func TestCreateBusinessRequiresName(t *testing.T) {
	svc, _ := NewBusinessService(&stubBusinessStore{})
	if _, err := svc.Create(context.Background(), "u1", CreateBusinessInput{}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestMembershipCreateDuplicateConflicts(t *testing.T) {
	store := &stubMembershipStore{
		createFn: func(_ context.Context, _ *Membership) error { return ErrConflict },
	}
	svc, err := NewMembershipService(store)
	if err != nil {
		t.Fatalf("NewMembershipService: %v", err)
	}

	_, err = svc.Create(context.Background(), "u1", "b1", RoleMember)
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestMembershipCreateValidatesRole(t *testing.T) {
	svc, _ := NewMembershipService(&stubMembershipStore{})

	if _, err := svc.Create(context.Background(), "u1", "b1", Role("SUPERUSER")); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for unknown role, got %v", err)
	}
	m, err := svc.Create(context.Background(), "u1", "b1", Role("manager"))
	if err != nil {
		t.Fatalf("lowercase role should normalize: %v", err)
	}
	if m.Role != RoleManager {
		t.Fatalf("unexpected role %q", m.Role)
	}
}

func TestMembershipDeleteMissing(t *testing.T) {
	svc, _ := NewMembershipService(&stubMembershipStore{})
	if err := svc.Delete(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
