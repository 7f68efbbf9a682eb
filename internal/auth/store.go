package auth

import "context"

// UserStore persists identities and their credential fields.
type UserStore interface {
	// Create inserts a new user. Duplicate email, phone number or Google id
	// yields ErrConflict.
	Create(ctx context.Context, u *User) error
	Find(ctx context.Context, id string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	// LinkGoogleID attaches an external identity to an existing user.
	LinkGoogleID(ctx context.Context, userID, googleID string) error
	// UpdateRefreshTokenHash replaces the stored refresh-token hash. An empty
	// hash stores NULL, revoking any outstanding refresh token.
	UpdateRefreshTokenHash(ctx context.Context, userID, hash string) error
}

// BusinessStore persists businesses.
type BusinessStore interface {
	// CreateWithOwner inserts the business and its OWNER membership in one
	// transaction; a business must never exist without its owning membership.
	CreateWithOwner(ctx context.Context, b *Business, owner *Membership) error
	Find(ctx context.Context, id string) (*Business, error)
	List(ctx context.Context) ([]*Business, error)
}

// MembershipStore persists user-to-business role bindings.
type MembershipStore interface {
	// Create inserts a membership. An existing (user, business) pair yields
	// ErrConflict.
	Create(ctx context.Context, m *Membership) error
	Find(ctx context.Context, id string) (*Membership, error)
	// FindByUserAndBusiness returns the unique membership for the pair, or
	// ErrNotFound, including when the business itself does not exist.
	FindByUserAndBusiness(ctx context.Context, userID, businessID string) (*Membership, error)
	List(ctx context.Context) ([]*Membership, error)
	// ListByBusiness returns the memberships of one business only.
	ListByBusiness(ctx context.Context, businessID string) ([]*Membership, error)
	Delete(ctx context.Context, id string) error
}
