package model

import (
	"time"

	"github.com/google/uuid"
)

// User represents a registered account
type User struct {
	ID           uuid.UUID
	Name         string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// Session represents the single active token pair for a user
type Session struct {
	ID                     uuid.UUID
	UserID                 uuid.UUID
	AccessToken            string
	RefreshToken           string
	AccessTokenValidUntil  time.Time
	RefreshTokenValidUntil time.Time
	CreatedAt              time.Time
}

// Contact types accepted by the API
const (
	ContactTypeWork     = "work"
	ContactTypeHome     = "home"
	ContactTypePersonal = "personal"
)

// Contact represents a contact owned by a user
type Contact struct {
	ID          uuid.UUID
	UserID      uuid.UUID
	Name        string
	PhoneNumber string
	Email       *string
	IsFavourite bool
	ContactType string
	PhotoURL    *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// IsValidContactType reports whether t is one of the accepted contact types.
func IsValidContactType(t string) bool {
	switch t {
	case ContactTypeWork, ContactTypeHome, ContactTypePersonal:
		return true
	}
	return false
}
