package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation is returned when a request carries malformed or missing input.
	ErrValidation = errors.New("validation failed")
	// ErrMissingField is returned when a required field is empty or absent.
	ErrMissingField = fmt.Errorf("%w: missing field", ErrValidation)
	// ErrNoFields is returned when an update supplies none of the updatable fields.
	ErrNoFields = fmt.Errorf("%w: no fields to update", ErrValidation)
	// ErrPasswordTooLong is returned when a password exceeds what the hasher accepts.
	ErrPasswordTooLong = fmt.Errorf("%w: password too long", ErrValidation)

	// ErrDuplicateEmail is returned when an email is already used by another user.
	ErrDuplicateEmail = errors.New("duplicate email")
	// ErrUserNotFound is returned when looking up a non-existent user.
	ErrUserNotFound = errors.New("user not found")
	// ErrInvalidCredentials is returned when the email/password combination is incorrect.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// User is the public view of a stored user. It never carries the password hash.
type User struct {
	ID    int64  `json:"id"    db:"id"`    // Assigned by the store on creation
	Name  string `json:"name"  db:"name"`  // Display name
	Email string `json:"email" db:"email"` // Unique login identifier
}

// NewUser holds the fields required to create a user.
type NewUser struct {
	Name         string
	Email        string
	PasswordHash string
}

// Validate reports ErrMissingField if name or email is empty.
func (u NewUser) Validate() error {
	if u.Name == "" || u.Email == "" {
		return ErrMissingField
	}

	return nil
}

// UserUpdate is a partial update. Nil fields are left untouched.
type UserUpdate struct {
	Name  *string
	Email *string
}

// IsEmpty reports whether no field is set.
func (u UserUpdate) IsEmpty() bool {
	return u.Name == nil && u.Email == nil
}

// Credentials is what login needs to verify a password.
type Credentials struct {
	ID           int64  `db:"id"`
	PasswordHash string `db:"password_hash"`
}
