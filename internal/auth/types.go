package auth

import (
	"fmt"
	"strings"
	"time"
)

// Role is a membership role within a business.
type Role string

const (
	RoleOwner   Role = "OWNER"
	RoleManager Role = "MANAGER"
	RoleMember  Role = "MEMBER"
)

// ParseRole normalizes and validates a role name.
func ParseRole(s string) (Role, error) {
	switch Role(strings.ToUpper(strings.TrimSpace(s))) {
	case RoleOwner:
		return RoleOwner, nil
	case RoleManager:
		return RoleManager, nil
	case RoleMember:
		return RoleMember, nil
	default:
		return "", fmt.Errorf("%w: unknown role %q", ErrInvalidInput, s)
	}
}

// User is an identity with embedded credential fields. Email is globally
// unique; GoogleID, when linked, is unique as well. Only a one-way hash of
// the current refresh token is kept; the plaintext never persists.
type User struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Email       string `json:"email"`
	PhoneNumber string `json:"phone_number,omitempty"`

	PasswordHash     string `json:"-"`
	GoogleID         string `json:"-"`
	RefreshTokenHash string `json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Business is a bookable venue. Ownership is recorded as an OWNER membership
// created in the same transaction as the business row.
type Business struct {
	ID          string `json:"id"`
	OwnerID     string `json:"owner_id"`
	Name        string `json:"name"`
	HouseNumber string `json:"house_number"`
	Street      string `json:"street"`
	City        string `json:"city"`
	State       string `json:"state"`
	ZipCode     string `json:"zip_code"`
	PhoneNumber string `json:"phone_number"`

	MapURL    string   `json:"map_url,omitempty"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Membership binds a user to a business with a role. At most one membership
// exists per (user, business) pair.
type Membership struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	BusinessID string    `json:"business_id"`
	Role       Role      `json:"role"`
	CreatedAt  time.Time `json:"created_at"`
}
