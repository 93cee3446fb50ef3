package models

import (
	"strings"
	"time"
)

// User is an account row. PasswordHash holds an argon2id PHC string and is
// never serialized.
type User struct {
	ID             string
	Email          string
	PasswordHash   string
	FirstName      string
	LastName       string
	IsStaff        bool
	IsActive       bool
	IsSuperuser    bool
	Bio            string
	ProfilePicture string
	PhoneNumber    string
	EmailVerified  bool
	LastLogin      *time.Time
	DateJoined     time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// FullName returns first and last name separated by a space.
func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// NormalizeEmail lower-cases the domain part of an address and trims
// surrounding whitespace. The local part is left untouched.
func NormalizeEmail(email string) string {
	email = strings.TrimSpace(email)
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return email
	}
	return email[:at] + "@" + strings.ToLower(email[at+1:])
}

// UserFilter narrows user listings. Nil bounds are ignored.
type UserFilter struct {
	// OnlyID restricts the listing to a single user (non-staff callers).
	OnlyID        string
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
	UpdatedAfter  *time.Time
	UpdatedBefore *time.Time
}

// UserUpdate carries the mutable profile fields. Nil fields are left as is.
type UserUpdate struct {
	FirstName      *string
	LastName       *string
	Bio            *string
	ProfilePicture *string
	PhoneNumber    *string
}

// Empty reports whether the update changes nothing.
func (u *UserUpdate) Empty() bool {
	return u.FirstName == nil && u.LastName == nil && u.Bio == nil &&
		u.ProfilePicture == nil && u.PhoneNumber == nil
}
