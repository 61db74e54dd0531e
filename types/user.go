package types

import (
	"strings"
	"time"
)

// User represents an account in the portal.
// It contains identity, profile, staff flag, and audit metadata.
type User struct {
	// ID is the unique identifier of the user.
	ID int64 `json:"id" db:"id"`

	// Username is the unique login name. It is stored lowercased and
	// trimmed so lookups are case-insensitive.
	Username string `json:"username" db:"username"`

	// Email is the user's email address, unique and stored lowercased.
	Email string `json:"email" db:"email"`

	// FirstName is the user's given name.
	FirstName string `json:"first_name" db:"first_name"`

	// LastName is the user's family name.
	LastName string `json:"last_name" db:"last_name"`

	// Organization is the company or institution the user works for.
	Organization string `json:"organization" db:"organization"`

	// JobTitle is the user's role within their organization.
	JobTitle string `json:"job_title" db:"job_title"`

	// PhoneNumber is an optional contact number.
	PhoneNumber string `json:"phone_number" db:"phone_number"`

	// IsStaff marks portal administrators. Staff users may manage
	// entitlements and read every report regardless of entitlement.
	IsStaff bool `json:"is_staff" db:"is_staff"`

	// PasswordHash stores the bcrypt hash of the user's password.
	// This field is never exposed in API responses.
	PasswordHash string `json:"-" db:"password_hash"`

	// CreatedAt is the timestamp when the user account was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the user account.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// FullName returns the user's first and last name, falling back to the
// username when both are empty.
func (u User) FullName() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return u.Username
	}
	return name
}
