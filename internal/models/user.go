package models

import (
	"time"

	"github.com/google/uuid"
)

// User is an account that may log in by face or by password.
// PasswordHash is a bcrypt hash; it may be empty for accounts created by
// bulk enrollment, in which case only face login works.
type User struct {
	ID           uuid.UUID `json:"id" db:"id"`
	Username     string    `json:"username" db:"username"`
	PasswordHash string    `json:"-" db:"password_hash"`
	Active       bool      `json:"active" db:"active"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}
